package bot

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/model"
)

func TestDefaultHooksSendsHelpOnlyOnFirstJoin(t *testing.T) {
	chat := &fakeChat{}
	b := newTestBot(t, chat, DefaultCommands(), DefaultHandlers())
	hooks := NewDefaultHooks(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Sender.Run(ctx)

	require.NoError(t, hooks.OnJoin(context.Background(), chatclient.Message{User: model.UserIdentity{Name: "alice"}}))
	require.NoError(t, hooks.OnJoin(context.Background(), chatclient.Message{User: model.UserIdentity{Name: "alice"}}))

	require.Eventually(t, func() bool { return len(chat.sentMessages()) == 1 }, time.Second, time.Millisecond)
}

func TestDefaultHooksNotifiesBannedUserOnMessage(t *testing.T) {
	chat := &fakeChat{}
	b := newTestBot(t, chat, DefaultCommands(), DefaultHandlers())
	b.permits.Blacklist = map[string]model.BlacklistEntry{"spammer": {Status: "banned"}}
	hooks := NewDefaultHooks(b)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.Sender.Run(ctx)

	require.NoError(t, hooks.OnMessage(context.Background(), chatclient.Message{User: model.UserIdentity{Name: "spammer"}}))
	require.Eventually(t, func() bool { return len(chat.sentMessages()) == 1 }, time.Second, time.Millisecond)
	assert.Equal(t, "banned", chat.sentMessages()[0])
}

func TestBannedUserMessagesAreNotParsedAsCommands(t *testing.T) {
	chat := &fakeChat{updates: []chatclient.Update{
		{UpdateTime: 1, Messages: []chatclient.Message{{Type: "message", User: model.UserIdentity{Name: "spammer"}, Text: "!leave"}}},
	}}
	b := newTestBot(t, chat, DefaultCommands(), DefaultHandlers())
	b.permits.Blacklist = map[string]model.BlacklistEntry{"spammer": {Status: "banned"}}

	require.NoError(t, b.Tick(context.Background()))
	assert.True(t, b.Running(), "a banned user's command must not reach the executor")
}

func TestWhitelistGrantIsReflectedInSnapshot(t *testing.T) {
	chat := &fakeChat{}
	b := newTestBot(t, chat, DefaultCommands(), DefaultHandlers())
	assert.False(t, b.IsWhitelisted("alice"))

	b.GroupsLock()
	b.GrantWhitelist("alice", 100)
	b.GroupsUnlock()

	assert.True(t, b.IsWhitelisted("alice"))
	profile, _ := b.Snapshot()
	assert.Equal(t, int64(100), profile.Whitelist["alice"])
}
