// Package extractorrpc implements the Extractor subprocess's request
// protocol (spec §4.7): a length-prefixed (verb, payload) request/response
// pair reused from internal/controlwire's framing, carrying `extract`,
// `search` and `shutdown` verbs over a pool of media extractors. Grounded
// on original_source/service/bot/extractor.py's ExtractorRequestHandler
// (semaphore-style pool, one worker pool entry borrowed per request,
// `(result, error)` reply shape) with pickle replaced by JSON, the same
// substitution spec §9 allows for the Balancer<->Worker channel.
package extractorrpc

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"

	"github.com/bifshteksex/roombot/internal/model"
)

const headerSize = 8

const (
	VerbExtract  = "extract"
	VerbSearch   = "search"
	VerbShutdown = "shutdown"
)

// Request is a Bot -> Extractor call.
type Request struct {
	Verb string `json:"verb"`
	Text string `json:"text,omitempty"`
}

// Response is an Extractor -> Bot reply. Exactly one of Track/Tracks is
// set on success; Error is set on a known failure kind.
type Response struct {
	Track  *model.Track  `json:"track,omitempty"`
	Tracks []model.Track `json:"tracks,omitempty"`
	Error  string        `json:"error,omitempty"`
}

func writeFrame(w io.Writer, payload []byte) error {
	var header [headerSize]byte
	binary.BigEndian.PutUint64(header[:], uint64(len(payload)))
	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("failed to write frame header: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write frame payload: %w", err)
	}
	return nil
}

func readFrame(r io.Reader) ([]byte, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("failed to read frame header: %w", err)
	}
	size := binary.BigEndian.Uint64(header[:])
	payload := make([]byte, size)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("failed to read frame payload: %w", err)
	}
	return payload, nil
}

// WriteRequest encodes and writes one Request frame.
func WriteRequest(w io.Writer, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal extractor request: %w", err)
	}
	return writeFrame(w, payload)
}

// ReadRequest reads and decodes one Request frame.
func ReadRequest(r io.Reader) (Request, error) {
	var req Request
	payload, err := readFrame(r)
	if err != nil {
		return req, err
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		return req, fmt.Errorf("failed to unmarshal extractor request: %w", err)
	}
	return req, nil
}

// WriteResponse encodes and writes one Response frame.
func WriteResponse(w io.Writer, resp Response) error {
	payload, err := json.Marshal(resp)
	if err != nil {
		return fmt.Errorf("failed to marshal extractor response: %w", err)
	}
	return writeFrame(w, payload)
}

// ReadResponse reads and decodes one Response frame.
func ReadResponse(r io.Reader) (Response, error) {
	var resp Response
	payload, err := readFrame(r)
	if err != nil {
		return resp, err
	}
	if err := json.Unmarshal(payload, &resp); err != nil {
		return resp, fmt.Errorf("failed to unmarshal extractor response: %w", err)
	}
	return resp, nil
}
