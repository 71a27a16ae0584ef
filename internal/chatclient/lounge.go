package chatclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/bifshteksex/roombot/internal/apierr"
)

// Profile is the logged-in user's own entry in a lounge response.
type Profile struct {
	Name     string `json:"name"`
	Tripcode string `json:"tripcode"`
}

// LoungeUser is a room member as listed in a lounge response.
type LoungeUser struct {
	Name     string `json:"name"`
	Tripcode string `json:"tripcode"`
}

// LoungeRoom is one room entry in a lounge response.
type LoungeRoom struct {
	ID    string       `json:"id"`
	Name  string       `json:"name"`
	Total int          `json:"total"`
	Limit int          `json:"limit"`
	Host  LoungeUser   `json:"host"`
	Users []LoungeUser `json:"users"`
}

// Lounge is the `/lounge` response used to resolve a caller's tripcode
// and, when the bot will join a visible room, to verify the caller is
// that room's host (spec §4.1 step 3, ported from
// original_source/service/providers/chat/__init__.py get_lounge_json).
type Lounge struct {
	Profile Profile      `json:"profile"`
	Rooms   []LoungeRoom `json:"rooms"`
}

type loginFullNameRequest struct {
	Name string `json:"name"`
}

// LoginFullName logs in with the raw "name#passcode" string the way
// original_source's get_lounge_json does (the chat service itself parses
// the combined string; spec §1 scopes out any authentication detail of
// that parsing). It returns a token good for one GetLounge call and a
// best-effort Logout.
func (c *HTTPClient) LoginFullName(ctx context.Context, fullName string) (string, error) {
	var resp loginResponse
	err := c.do(ctx, http.MethodPost, "/login", loginFullNameRequest{Name: fullName}, "", &resp)
	if err != nil {
		return "", fmt.Errorf("%w: chat service login failed: %v", apierr.ErrIdentity, err)
	}
	return resp.Token, nil
}

// GetLounge fetches the lounge snapshot (caller profile plus visible
// rooms) for an already-logged-in token.
func (c *HTTPClient) GetLounge(ctx context.Context, token string) (Lounge, error) {
	var lounge Lounge
	if err := c.do(ctx, http.MethodGet, "/lounge", nil, token, &lounge); err != nil {
		return Lounge{}, fmt.Errorf("%w: failed to fetch lounge: %v", apierr.ErrIdentity, err)
	}
	return lounge, nil
}

// ResolveUserInfo mirrors original_source's ChatProvider.get_user_info:
// given a lounge snapshot, returns the caller's tripcode and the target
// room's display name ("[hidden]" if hidden), verifying — when not
// hidden — that the room exists, has space, that the caller is its host,
// and that botName is not already present in it.
func ResolveUserInfo(lounge Lounge, botName, roomID string, hidden bool) (tripcode, roomName string, err error) {
	if hidden {
		return lounge.Profile.Tripcode, "[hidden]", nil
	}

	room, err := findRoom(lounge.Rooms, roomID)
	if err != nil {
		return "", "", err
	}
	if err := checkRoomInfo(room, lounge.Profile.Name, lounge.Profile.Tripcode, botName); err != nil {
		return "", "", err
	}
	return lounge.Profile.Tripcode, room.Name, nil
}

func findRoom(rooms []LoungeRoom, roomID string) (LoungeRoom, error) {
	for _, r := range rooms {
		if r.ID == roomID {
			return r, nil
		}
	}
	return LoungeRoom{}, fmt.Errorf("%w: room does not exist", apierr.ErrIdentity)
}

func checkRoomInfo(room LoungeRoom, userName, userTripcode, botName string) error {
	if room.Total == room.Limit {
		return fmt.Errorf("%w: room is full", apierr.ErrIdentity)
	}
	if userName != room.Host.Name || userTripcode != room.Host.Tripcode {
		return fmt.Errorf("%w: user must be host of the room", apierr.ErrIdentity)
	}
	for _, u := range room.Users {
		if u.Name == botName {
			return fmt.Errorf("%w: a user with the bot's name is already in the room", apierr.ErrIdentity)
		}
	}
	return nil
}
