package chatclient

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/apierr"
)

func TestGetLoungeDecodesProfileAndRooms(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/lounge", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Lounge{
			Profile: Profile{Name: "alice", Tripcode: "abc123"},
			Rooms:   []LoungeRoom{{ID: "room1", Name: "Alice's room"}},
		})
	}))
	defer srv.Close()

	client := NewHTTPClient(srv.URL)
	lounge, err := client.GetLounge(t.Context(), "tok-123")
	require.NoError(t, err)
	assert.Equal(t, "alice", lounge.Profile.Name)
	assert.Equal(t, "room1", lounge.Rooms[0].ID)
}

func TestResolveUserInfoHidden(t *testing.T) {
	lounge := Lounge{Profile: Profile{Name: "alice", Tripcode: "abc123"}}
	tripcode, roomName, err := ResolveUserInfo(lounge, "bot", "room1", true)
	require.NoError(t, err)
	assert.Equal(t, "abc123", tripcode)
	assert.Equal(t, "[hidden]", roomName)
}

func TestResolveUserInfoRequiresCallerToBeHost(t *testing.T) {
	lounge := Lounge{
		Profile: Profile{Name: "alice", Tripcode: "abc123"},
		Rooms: []LoungeRoom{{
			ID: "room1", Name: "Alice's room", Total: 1, Limit: 10,
			Host: LoungeUser{Name: "bob", Tripcode: "xyz"},
		}},
	}
	_, _, err := ResolveUserInfo(lounge, "bot", "room1", false)
	assert.True(t, errors.Is(err, apierr.ErrIdentity))
}

func TestResolveUserInfoRejectsFullRoom(t *testing.T) {
	lounge := Lounge{
		Profile: Profile{Name: "alice", Tripcode: "abc123"},
		Rooms: []LoungeRoom{{
			ID: "room1", Total: 10, Limit: 10,
			Host: LoungeUser{Name: "alice", Tripcode: "abc123"},
		}},
	}
	_, _, err := ResolveUserInfo(lounge, "bot", "room1", false)
	assert.True(t, errors.Is(err, apierr.ErrIdentity))
}

func TestResolveUserInfoRejectsBotNameCollision(t *testing.T) {
	lounge := Lounge{
		Profile: Profile{Name: "alice", Tripcode: "abc123"},
		Rooms: []LoungeRoom{{
			ID: "room1", Name: "Alice's room", Total: 1, Limit: 10,
			Host:  LoungeUser{Name: "alice", Tripcode: "abc123"},
			Users: []LoungeUser{{Name: "bot"}},
		}},
	}
	_, _, err := ResolveUserInfo(lounge, "bot", "room1", false)
	assert.True(t, errors.Is(err, apierr.ErrIdentity))
}

func TestResolveUserInfoSucceeds(t *testing.T) {
	lounge := Lounge{
		Profile: Profile{Name: "alice", Tripcode: "abc123"},
		Rooms: []LoungeRoom{{
			ID: "room1", Name: "Alice's room", Total: 1, Limit: 10,
			Host: LoungeUser{Name: "alice", Tripcode: "abc123"},
		}},
	}
	tripcode, roomName, err := ResolveUserInfo(lounge, "bot", "room1", false)
	require.NoError(t, err)
	assert.Equal(t, "abc123", tripcode)
	assert.Equal(t, "Alice's room", roomName)
}

func TestResolveUserInfoRejectsUnknownRoom(t *testing.T) {
	lounge := Lounge{Profile: Profile{Name: "alice", Tripcode: "abc123"}}
	_, _, err := ResolveUserInfo(lounge, "bot", "room1", false)
	assert.True(t, errors.Is(err, apierr.ErrIdentity))
}
