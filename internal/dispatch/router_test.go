package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/apierr"
	"github.com/bifshteksex/roombot/internal/broker"
	"github.com/bifshteksex/roombot/internal/lockset"
	"github.com/bifshteksex/roombot/internal/sessionstore"
)

// fakePublisher replies immediately and records every publish, letting
// tests drive the reply with a configurable body.
type fakePublisher struct {
	router    *Router
	replyBody []byte
	replyErr  error
	mu        sync.Mutex
	published int
}

func (f *fakePublisher) Publish(ctx context.Context, opts broker.PublishOptions) error {
	f.mu.Lock()
	f.published++
	f.mu.Unlock()

	if f.replyErr != nil {
		return f.replyErr
	}
	f.router.resolve(opts.CorrelationID, f.replyBody, false)
	return nil
}

func newTestRouter(t *testing.T, pub *fakePublisher) (*Router, *sessionstore.Store, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := sessionstore.New(client)

	r := &Router{
		store:   store,
		locks:   lockset.New(),
		futures: make(map[string]*future),
	}
	pub.router = r
	r.conn = pub
	return r, store, mr
}

func TestCreateSelectsTopBalancerAndDecrementsCapacity(t *testing.T) {
	pub := &fakePublisher{}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	err := r.Create(ctx, "sid1")
	require.NoError(t, err)

	owner, err := store.GetBalancerForSID(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "q1", owner)

	_, score, ok, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, float64(3), score)
	assert.Equal(t, 1, pub.published)
}

func TestCreateAlreadyCreatedIsIdempotent(t *testing.T) {
	pub := &fakePublisher{}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	require.NoError(t, r.Create(ctx, "sid1"))
	err := r.Create(ctx, "sid1")

	assert.ErrorIs(t, err, apierr.ErrAlreadyCreated)
	_, score, _, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(3), score, "second create must not decrement capacity again")
}

func TestCreateNoBalancers(t *testing.T) {
	pub := &fakePublisher{}
	r, _, mr := newTestRouter(t, pub)
	defer mr.Close()

	err := r.Create(context.Background(), "sid1")
	assert.ErrorIs(t, err, apierr.ErrNoBalancers)
}

func TestCreateNoWorkersWhenCapacityExhausted(t *testing.T) {
	pub := &fakePublisher{}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 0))

	err := r.Create(ctx, "sid1")
	assert.ErrorIs(t, err, apierr.ErrNoWorkers)
}

func TestCreateRevertsCapacityOnPublishFailure(t *testing.T) {
	pub := &fakePublisher{replyErr: errors.New("channel closed")}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	err := r.Create(ctx, "sid1")
	assert.ErrorIs(t, err, apierr.ErrPublishError)

	owner, err := store.GetBalancerForSID(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, "", owner, "failed create must not leave a balancer pairing")

	_, score, _, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(4), score, "failed create must restore capacity")
}

func TestCreateRevertsCapacityOnFailureReason(t *testing.T) {
	pub := &fakePublisher{replyBody: []byte("room is full")}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	err := r.Create(ctx, "sid1")
	assert.ErrorIs(t, err, apierr.ErrIdentity)

	_, score, _, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(4), score)
}

func TestDeleteNoBotWhenSessionAbsent(t *testing.T) {
	pub := &fakePublisher{}
	r, _, mr := newTestRouter(t, pub)
	defer mr.Close()

	err := r.Delete(context.Background(), "sid1")
	assert.ErrorIs(t, err, apierr.ErrNoBot)
}

func TestDeleteRoutesToOwningBalancer(t *testing.T) {
	pub := &fakePublisher{}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))
	require.NoError(t, r.Create(ctx, "sid1"))

	err := r.Delete(ctx, "sid1")
	require.NoError(t, err)
	assert.Equal(t, 2, pub.published)
}

func TestConcurrentCreatesProduceExactlyOneWinner(t *testing.T) {
	pub := &fakePublisher{}
	r, store, mr := newTestRouter(t, pub)
	defer mr.Close()
	ctx := context.Background()

	require.NoError(t, store.RegisterBalancer(ctx, "q1", 4))

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = r.Create(ctx, "sid1")
		}(i)
	}
	wg.Wait()

	successCount := 0
	alreadyCreatedCount := 0
	for _, err := range errs {
		if err == nil {
			successCount++
		} else if errors.Is(err, apierr.ErrAlreadyCreated) {
			alreadyCreatedCount++
		}
	}
	assert.Equal(t, 1, successCount)
	assert.Equal(t, 3, alreadyCreatedCount)

	_, score, _, err := store.TopBalancer(ctx)
	require.NoError(t, err)
	assert.Equal(t, float64(3), score)
}
