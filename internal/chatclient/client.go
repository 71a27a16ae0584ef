// Package chatclient defines the opaque chat-service contract spec §1
// scopes out of this repo ("no authentication of the chat service
// itself"): Worker/Bot code only needs to call it, not implement or
// secure it. HTTPClient is a thin stdlib net/http JSON client, following
// the teacher's own preference for stdlib http handling (the teacher
// never reaches for a third-party HTTP client library anywhere in its
// stack) with the spec §5 "external chat-service HTTP calls, budgeted at
// 30 s" timeout.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/bifshteksex/roombot/internal/model"
)

// Update is one polling response from `GET /room/update?since=<ts>`.
type Update struct {
	Room       model.Room `json:"room"`
	Messages   []Message  `json:"messages"`
	UpdateTime int64      `json:"update_time"`
}

// Message is one chat event: a join, a plain message, or a music share.
type Message struct {
	Type      string             `json:"type"` // "join" | "message" | "music"
	Timestamp int64              `json:"timestamp"`
	User      model.UserIdentity `json:"user"`
	Text      string             `json:"text,omitempty"`
}

// ChatClient is the contract the Bot core (internal/bot) and Worker
// (internal/workerproc) depend on; HTTPClient is the only implementation,
// but tests substitute a fake satisfying this interface.
type ChatClient interface {
	Login(ctx context.Context, name, tripcode, passcode string) (token string, err error)
	JoinRoom(ctx context.Context, token, roomURL, botName string, hidden bool) (model.Room, error)
	Update(ctx context.Context, token string, since int64) (Update, error)
	PostMessage(ctx context.Context, token, text string) error
	ReturnHost(ctx context.Context, token string) error
	LeaveRoom(ctx context.Context, token string) error
	Logout(ctx context.Context, token string) error
}

// HTTPClient is a stdlib net/http JSON client for the chat service.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient constructs an HTTPClient with the spec §5 30s call
// budget.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

type loginRequest struct {
	Name     string `json:"name"`
	Tripcode string `json:"tripcode"`
	Passcode string `json:"passcode"`
}

type loginResponse struct {
	Token string `json:"token"`
}

func (c *HTTPClient) Login(ctx context.Context, name, tripcode, passcode string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", loginRequest{Name: name, Tripcode: tripcode, Passcode: passcode}, "", &resp)
	return resp.Token, err
}

type joinRoomRequest struct {
	RoomURL string `json:"room_url"`
	BotName string `json:"bot_name"`
	Hidden  bool   `json:"hidden"`
}

func (c *HTTPClient) JoinRoom(ctx context.Context, token, roomURL, botName string, hidden bool) (model.Room, error) {
	var room model.Room
	err := c.do(ctx, http.MethodPost, "/room/join", joinRoomRequest{RoomURL: roomURL, BotName: botName, Hidden: hidden}, token, &room)
	return room, err
}

func (c *HTTPClient) Update(ctx context.Context, token string, since int64) (Update, error) {
	var update Update
	path := fmt.Sprintf("/room/update?since=%d", since)
	err := c.do(ctx, http.MethodGet, path, nil, token, &update)
	return update, err
}

type postMessageRequest struct {
	Text string `json:"text"`
}

func (c *HTTPClient) PostMessage(ctx context.Context, token, text string) error {
	return c.do(ctx, http.MethodPost, "/room/message", postMessageRequest{Text: text}, token, nil)
}

func (c *HTTPClient) ReturnHost(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/room/return-host", nil, token, nil)
}

func (c *HTTPClient) LeaveRoom(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/room/leave", nil, token, nil)
}

func (c *HTTPClient) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/logout", nil, token, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, token string, out any) error {
	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal chat-service request: %w", err)
		}
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to build chat-service request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chat-service request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return &ChatAPIError{StatusCode: resp.StatusCode}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode chat-service response: %w", err)
	}
	return nil
}

// ChatAPIError is the "ChatApiError" the Worker's create-instance path
// (spec §4.4) distinguishes from any other exception.
type ChatAPIError struct {
	StatusCode int
}

func (e *ChatAPIError) Error() string {
	return fmt.Sprintf("chat service returned status %d", e.StatusCode)
}
