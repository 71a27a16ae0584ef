package sessionstore

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/model"
)

func newTestStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return New(client), mr
}

func testSession(sid string) *model.Session {
	return &model.Session{
		SID:  sid,
		Room: model.Room{ID: "1", URL: "drrr.com/room/?id=ABCDEFGHIJ", Name: "room"},
		User: model.UserIdentity{ID: "u1", Name: "alice", Tripcode: "tc"},
		Bot:  model.BotProfile{Name: "dj", UserID: "u1"},
	}
}

func TestCreateAndGetSession(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	session := testSession("sid1")
	require.NoError(t, store.CreateSession(ctx, session, time.Minute))

	got, err := store.GetSession(ctx, "sid1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "alice", got.User.Name)

	exists, err := store.SessionExists(ctx, "sid1")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestGetSessionMissingReturnsNil(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	got, err := store.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestDeleteSession(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, testSession("sid1"), time.Minute))
	require.NoError(t, store.DeleteSession(ctx, "sid1"))

	exists, err := store.SessionExists(ctx, "sid1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestUpdateBotPublishesChange(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.CreateSession(ctx, testSession("sid1"), time.Minute))

	sub := store.SubscribeBotUpdates(ctx, "sid1")
	defer sub.Close()
	time.Sleep(50 * time.Millisecond)

	newBot := model.BotProfile{Name: "renamed", UserID: "u1"}
	require.NoError(t, store.UpdateBot(ctx, "sid1", newBot, time.Minute))

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.Contains(t, msg.Payload, "renamed")

	got, err := store.GetSession(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "renamed", got.Bot.Name)
}

func TestBalancerRegistryRoundTrip(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	name, score, ok, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "q1", name)
	assert.Equal(t, float64(4), score)

	require.NoError(t, store.SetBalancerForSID(ctx, "sid1", "q1"))
	require.NoError(t, store.IncrBalancerCapacity(ctx, "q1", -1))

	owner, err := store.GetBalancerForSID(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "q1", owner)

	_, score, _, err = store.TopBalancer(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)
}

func TestTopBalancerEmptyRegistry(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()

	_, _, ok, err := store.TopBalancer(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGetDelBalancerForSID(t *testing.T) {
	store, mr := newTestStore(t)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.SetBalancerForSID(ctx, "sid1", "q1"))

	val, err := store.GetDelBalancerForSID(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "q1", val)

	val, err = store.GetBalancerForSID(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "", val)
}
