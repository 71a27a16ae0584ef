package extractorrpc

import (
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/bifshteksex/roombot/internal/model"
)

// Client holds one long-lived connection to an Extractor server and
// serializes requests through it: "only one in-flight request per
// client" (spec §4.7). The original's recursive lock is a plain
// sync.Mutex here — Go's non-reentrant mutex is sufficient since a
// client never calls itself while holding the lock.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial opens the client's single connection to an Extractor server.
func Dial(addr string) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial extractor: %w", err)
	}
	return &Client{conn: conn}, nil
}

// Extract requests track info for a single URL.
func (c *Client) Extract(url string) (model.Track, error) {
	resp, err := c.call(Request{Verb: VerbExtract, Text: url})
	if err != nil {
		return model.Track{}, err
	}
	if resp.Error != "" {
		return model.Track{}, errors.New(resp.Error)
	}
	if resp.Track == nil {
		return model.Track{}, fmt.Errorf("extractor returned no track for %q", url)
	}
	return *resp.Track, nil
}

// Search requests a list of candidate tracks for free-text input.
func (c *Client) Search(text string) ([]model.Track, error) {
	resp, err := c.call(Request{Verb: VerbSearch, Text: text})
	if err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, errors.New(resp.Error)
	}
	return resp.Tracks, nil
}

// Shutdown tells the server to stop accepting connections.
func (c *Client) Shutdown() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return WriteRequest(c.conn, Request{Verb: VerbShutdown})
}

// Close closes the underlying connection.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) call(req Request) (Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := WriteRequest(c.conn, req); err != nil {
		return Response{}, err
	}
	return ReadResponse(c.conn)
}
