// Package dispatch implements the Router described in spec §4.2: the
// front-end's broker client. It selects a balancer for a sid, publishes
// create/delete commands addressed to that balancer's exclusive queue,
// and tracks in-flight requests as futures keyed by correlation id.
// There is no direct teacher precedent for a broker RPC client; this is
// grounded on spec §4.2 itself plus the request/future bookkeeping shape
// used by other_examples' RabbitMQ RPC clients (reply-queue consumer
// loop dispatching by CorrelationId), combined with the teacher's
// context-cancellation idiom (context.Context plumbed through every
// blocking call).
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bifshteksex/roombot/internal/apierr"
	"github.com/bifshteksex/roombot/internal/broker"
	"github.com/bifshteksex/roombot/internal/lockset"
	"github.com/bifshteksex/roombot/internal/sessionstore"
)

// Command is the verb half of the "{cmd}/{sid}" wire body (spec §6).
type Command string

const (
	// CommandCreate routes a session to its newly selected balancer.
	CommandCreate Command = "create"
	// CommandDelete tears a session down on its owning balancer.
	CommandDelete Command = "delete"
)

type future struct {
	resultCh chan futureResult
}

type futureResult struct {
	body      []byte
	cancelled bool
}

// publisher is the narrow surface Router needs from a broker connection;
// extracted so the selection protocol can be tested against a fake
// without a live RabbitMQ (the teacher's health.SFUChecker interface
// follows the same shape: a minimal interface cut around the one method
// the package under test actually calls).
type publisher interface {
	Publish(ctx context.Context, opts broker.PublishOptions) error
}

// Router is the front-end-side broker client (spec §4.2).
type Router struct {
	conn       publisher
	store      *sessionstore.Store
	replyQueue string
	locks      *lockset.Set

	mu      sync.Mutex
	futures map[string]*future
}

// New declares the Router's exclusive reply queue, starts consuming it,
// and returns a ready Router.
func New(ctx context.Context, conn *broker.Conn, store *sessionstore.Store) (*Router, error) {
	replyQueue, err := conn.DeclareReplyQueue()
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	r := &Router{
		conn:       conn,
		store:      store,
		replyQueue: replyQueue,
		locks:      lockset.New(),
		futures:    make(map[string]*future),
	}

	deliveries, err := conn.Consume(replyQueue, "router")
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}
	go r.consumeReplies(deliveries)

	return r, nil
}

func (r *Router) consumeReplies(deliveries <-chan amqp.Delivery) {
	for d := range deliveries {
		r.resolve(d.CorrelationId, d.Body, false)
		_ = r.conn.Ack(d)
	}
	// Channel closed: every outstanding future is cancelled (spec §4.2
	// "channel close ... completes all outstanding futures with
	// cancellation").
	r.cancelAll()
}

func (r *Router) resolve(correlationID string, body []byte, cancelled bool) {
	r.mu.Lock()
	f, ok := r.futures[correlationID]
	if ok {
		delete(r.futures, correlationID)
	}
	r.mu.Unlock()
	if !ok {
		return
	}
	f.resultCh <- futureResult{body: body, cancelled: cancelled}
}

func (r *Router) cancelAll() {
	r.mu.Lock()
	pending := r.futures
	r.futures = make(map[string]*future)
	r.mu.Unlock()

	for _, f := range pending {
		f.resultCh <- futureResult{cancelled: true}
	}
}

func (r *Router) register(correlationID string) *future {
	f := &future{resultCh: make(chan futureResult, 1)}
	r.mu.Lock()
	r.futures[correlationID] = f
	r.mu.Unlock()
	return f
}

// Create routes a session-create request to the least-loaded balancer
// and waits for its reply (spec §4.2 full selection protocol).
func (r *Router) Create(ctx context.Context, sid string) error {
	unlock := r.locks.Lock(sid)
	defer unlock()

	owner, err := r.store.GetBalancerForSID(ctx, sid)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if owner != "" {
		return apierr.ErrAlreadyCreated
	}

	queueName, score, ok, err := r.store.TopBalancer(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if !ok {
		return apierr.ErrNoBalancers
	}
	if score <= 0 {
		return apierr.ErrNoWorkers
	}

	if err := r.store.SetBalancerForSID(ctx, sid, queueName); err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if err := r.store.IncrBalancerCapacity(ctx, queueName, -1); err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}

	if err := r.publishAndAwait(ctx, queueName, CommandCreate, sid); err != nil {
		r.revertCreate(ctx, sid, queueName)
		return err
	}
	return nil
}

// Delete routes a session-delete request to its owning balancer.
func (r *Router) Delete(ctx context.Context, sid string) error {
	unlock := r.locks.Lock(sid)
	defer unlock()

	owner, err := r.store.GetBalancerForSID(ctx, sid)
	if err != nil {
		return fmt.Errorf("%w: %v", apierr.ErrInternal, err)
	}
	if owner == "" {
		return apierr.ErrNoBot
	}

	return r.publishAndAwait(ctx, owner, CommandDelete, sid)
}

func (r *Router) revertCreate(ctx context.Context, sid, queueName string) {
	_, _ = r.store.GetDelBalancerForSID(ctx, sid)
	_ = r.store.IncrBalancerCapacity(ctx, queueName, 1)
}

func (r *Router) publishAndAwait(ctx context.Context, queueName string, cmd Command, sid string) error {
	correlationID := uuid.New().String()
	f := r.register(correlationID)

	body := []byte(fmt.Sprintf("%s/%s", cmd, sid))
	if err := r.conn.Publish(ctx, broker.PublishOptions{
		RoutingKey:    queueName,
		Body:          body,
		CorrelationID: correlationID,
		ReplyTo:       r.replyQueue,
	}); err != nil {
		r.resolve(correlationID, nil, true)
		return apierr.ErrPublishError
	}

	select {
	case result := <-f.resultCh:
		if result.cancelled {
			return apierr.ErrPublishError
		}
		if len(result.body) > 0 {
			return fmt.Errorf("%w: %s", apierr.ErrIdentity, string(result.body))
		}
		return nil
	case <-ctx.Done():
		return apierr.ErrPublishError
	}
}
