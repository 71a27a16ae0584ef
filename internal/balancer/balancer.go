// Package balancer implements the Balancer described in spec §4.3: it
// owns a fixed fleet of Workers, routes create/delete RPCs from the
// broker to the least-loaded one, and relays Worker lifecycle signals
// back to Redis, Postgres, and the broker reply queue. There is no
// direct teacher precedent for a worker-pool control plane; it is
// grounded on spec §4.3 itself, with the internal event-serialization
// shape ("one helper thread runs the control-plane poll loop and hands
// signals back... All Redis/Postgres/broker calls suspend cooperatively"
// spec §5) modeled as one goroutine per Worker connection feeding a
// single-consumer channel, replacing the asyncio run_coroutine_threadsafe
// bridge the spec describes.
package balancer

import (
	"container/heap"
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/bifshteksex/roombot/internal/controlwire"
	"github.com/bifshteksex/roombot/internal/lockset"
	"github.com/bifshteksex/roombot/internal/model"
	"github.com/bifshteksex/roombot/internal/sessionstore"
)

// replier is the narrow broker surface the Balancer needs to answer RPC
// requests; extracted so message/signal handling can be unit tested
// without a live broker (same idiom as dispatch.publisher).
type replier interface {
	PublishReply(ctx context.Context, replyTo, correlationID string, body []byte) error
}

// botWriter is the narrow Postgres surface the Balancer needs for
// write-backs; extracted so signal handling can be unit tested without a
// live database (same idiom as replier). *userrepo.Repository satisfies
// this.
type botWriter interface {
	UpsertBot(ctx context.Context, p *model.BotProfile) error
}

type pendingMessage struct {
	replyTo       string
	correlationID string
}

type signalEvent struct {
	worker *WorkerEntry
	signal controlwire.Signal
}

// incomingMessage is the Balancer's internal view of a broker delivery,
// decoupled from amqp.Delivery so the routing logic can be tested
// against synthetic messages.
type incomingMessage struct {
	ReplyTo       string
	CorrelationID string
	Body          []byte
	ack           func() error
}

// Balancer routes session create/delete commands to its Worker fleet
// (spec §4.3).
type Balancer struct {
	conn      replier
	store     *sessionstore.Store
	users     botWriter
	queueName string
	ttl       time.Duration
	locks     *lockset.Set

	mu          sync.Mutex
	workers     workerHeap
	connections map[*WorkerEntry]struct{}
	sessions    map[string]*WorkerEntry
	messages    map[string]pendingMessage

	signals chan signalEvent
	stop    chan struct{}
	stopped sync.Once
}

// New constructs a Balancer bound to queueName (its identity in
// `balancers:queue`) with session TTL ttl.
func New(conn replier, store *sessionstore.Store, users botWriter, queueName string, ttl time.Duration) *Balancer {
	return &Balancer{
		conn:        conn,
		store:       store,
		users:       users,
		queueName:   queueName,
		ttl:         ttl,
		locks:       lockset.New(),
		connections: make(map[*WorkerEntry]struct{}),
		sessions:    make(map[string]*WorkerEntry),
		messages:    make(map[string]pendingMessage),
		signals:     make(chan signalEvent, 64),
		stop:        make(chan struct{}),
	}
}

// AddWorker registers a connected Worker and starts relaying its
// signals into the Balancer's event loop.
func (b *Balancer) AddWorker(w *WorkerEntry) {
	b.mu.Lock()
	heap.Push(&b.workers, w)
	b.connections[w] = struct{}{}
	b.mu.Unlock()

	go b.readSignals(w)
}

func (b *Balancer) readSignals(w *WorkerEntry) {
	for {
		sig, err := controlwire.ReadSignal(w.Conn)
		if err != nil {
			b.signals <- signalEvent{worker: w, signal: controlwire.Signal{Signal: controlwire.SignalCrashed}}
			return
		}
		b.signals <- signalEvent{worker: w, signal: sig}
	}
}

func (b *Balancer) leastLoaded() (*WorkerEntry, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.workers) == 0 {
		return nil, false
	}
	heap.Init(&b.workers)
	return b.workers[0], true
}

// Run drains broker deliveries and worker signals until ctx is
// cancelled or a worker crash ends the run loop (spec §4.3 "crashed:
// worker control path declared dead - the balancer fails its run loop").
func (b *Balancer) Run(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.stop:
			return fmt.Errorf("balancer stopped: worker control path crashed")
		case d, ok := <-deliveries:
			if !ok {
				return nil
			}
			delivery := d
			b.handleBrokerMessage(ctx, incomingMessage{
				ReplyTo:       delivery.ReplyTo,
				CorrelationID: delivery.CorrelationId,
				Body:          delivery.Body,
				ack:           func() error { return delivery.Ack(false) },
			})
		case evt := <-b.signals:
			b.handleSignal(ctx, evt)
		}
	}
}

func (b *Balancer) handleBrokerMessage(ctx context.Context, msg incomingMessage) {
	cmd, sid, ok := strings.Cut(string(msg.Body), "/")
	if !ok {
		return
	}

	unlock := b.locks.Lock(sid)
	defer unlock()

	switch cmd {
	case controlwire.CmdCreate:
		b.handleCreateMessage(ctx, sid, msg)
	case controlwire.CmdDelete:
		b.handleDeleteMessage(ctx, sid, msg)
	}
}

func (b *Balancer) handleCreateMessage(ctx context.Context, sid string, msg incomingMessage) {
	session, err := b.store.GetSession(ctx, sid)
	if err != nil || session == nil {
		b.replyNow(ctx, msg, []byte("session not found"))
		return
	}

	worker, ok := b.leastLoaded()
	if !ok {
		b.replyNow(ctx, msg, []byte("no workers available"))
		return
	}

	if err := worker.SendCommand(controlwire.Command{Cmd: controlwire.CmdCreate, SID: sid, Session: session}); err != nil {
		b.replyNow(ctx, msg, []byte(err.Error()))
		return
	}

	b.mu.Lock()
	worker.RunningInstances++
	b.messages[sid] = pendingMessage{replyTo: msg.ReplyTo, correlationID: msg.CorrelationID}
	b.mu.Unlock()

	if msg.ack != nil {
		_ = msg.ack()
	}
}

func (b *Balancer) handleDeleteMessage(ctx context.Context, sid string, msg incomingMessage) {
	b.mu.Lock()
	worker, ok := b.sessions[sid]
	delete(b.sessions, sid)
	b.mu.Unlock()

	if !ok {
		b.replyNow(ctx, msg, nil)
		return
	}

	if err := worker.SendCommand(controlwire.Command{Cmd: controlwire.CmdDelete, SID: sid}); err != nil {
		b.replyNow(ctx, msg, []byte(err.Error()))
		return
	}

	b.mu.Lock()
	b.messages[sid] = pendingMessage{replyTo: msg.ReplyTo, correlationID: msg.CorrelationID}
	b.mu.Unlock()

	if msg.ack != nil {
		_ = msg.ack()
	}
}

func (b *Balancer) replyNow(ctx context.Context, msg incomingMessage, body []byte) {
	if msg.ReplyTo != "" {
		_ = b.conn.PublishReply(ctx, msg.ReplyTo, msg.CorrelationID, body)
	}
	if msg.ack != nil {
		_ = msg.ack()
	}
}

func (b *Balancer) handleSignal(ctx context.Context, evt signalEvent) {
	switch evt.signal.Signal {
	case controlwire.SignalConnected:
		b.onConnected(ctx, evt)
	case controlwire.SignalFailed:
		b.onFailed(ctx, evt)
	case controlwire.SignalDeleted:
		b.onDeleted(ctx, evt)
	case controlwire.SignalDisconnected:
		b.onDisconnected(ctx, evt)
	case controlwire.SignalUpdate:
		b.onUpdate(ctx, evt)
	case controlwire.SignalCrashed:
		b.onCrashed()
	}
}

func (b *Balancer) onConnected(ctx context.Context, evt signalEvent) {
	sid := evt.signal.SID
	b.mu.Lock()
	b.sessions[sid] = evt.worker
	b.mu.Unlock()

	_ = b.store.RefreshSession(ctx, sid, b.ttl)
	b.replyPending(ctx, sid, nil)
}

func (b *Balancer) onFailed(ctx context.Context, evt signalEvent) {
	b.mu.Lock()
	evt.worker.RunningInstances--
	b.mu.Unlock()

	b.replyPending(ctx, evt.signal.SID, []byte(evt.signal.Error))
}

func (b *Balancer) onDeleted(ctx context.Context, evt signalEvent) {
	if evt.signal.Error == "" {
		b.mu.Lock()
		evt.worker.RunningInstances--
		b.mu.Unlock()
	}
	if evt.signal.Error == "" && evt.signal.Session != nil {
		b.writeBackAndForget(ctx, evt.signal.Session)
	}
	b.replyPending(ctx, evt.signal.SID, nil)
}

func (b *Balancer) onDisconnected(ctx context.Context, evt signalEvent) {
	sid := evt.signal.SID
	b.mu.Lock()
	delete(b.sessions, sid)
	evt.worker.RunningInstances--
	b.mu.Unlock()

	_ = b.store.DeleteBalancerForSID(ctx, sid)
	_ = b.store.IncrBalancerCapacity(ctx, b.queueName, 1)
	b.writeBackAndForget(ctx, evt.signal.Session)
}

func (b *Balancer) onUpdate(ctx context.Context, evt signalEvent) {
	sid := evt.signal.SID
	if evt.signal.Session == nil {
		return
	}
	_ = b.store.RefreshSession(ctx, sid, b.ttl)
	_ = b.store.UpdateBot(ctx, sid, evt.signal.Session.Bot, b.ttl)
	_ = b.users.UpsertBot(ctx, &evt.signal.Session.Bot)
}

func (b *Balancer) onCrashed() {
	b.stopped.Do(func() { close(b.stop) })
}

func (b *Balancer) writeBackAndForget(ctx context.Context, session *model.Session) {
	if session == nil {
		return
	}
	_ = b.users.UpsertBot(ctx, &session.Bot)
	_ = b.store.DeleteSession(ctx, session.SID)
}

func (b *Balancer) replyPending(ctx context.Context, sid string, body []byte) {
	b.mu.Lock()
	pending, ok := b.messages[sid]
	if ok {
		delete(b.messages, sid)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	_ = b.conn.PublishReply(ctx, pending.replyTo, pending.correlationID, body)
}

// Shutdown stops every Worker, writes back every still-owned session,
// and removes this balancer from the registry (spec §4.3 "Shutdown").
func (b *Balancer) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	workers := make([]*WorkerEntry, 0, len(b.connections))
	for w := range b.connections {
		workers = append(workers, w)
	}
	remaining := make(map[string]*WorkerEntry, len(b.sessions))
	for sid, w := range b.sessions {
		remaining[sid] = w
	}
	b.mu.Unlock()

	for _, w := range workers {
		_ = w.SendCommand(controlwire.Command{Cmd: controlwire.CmdStop})
		if w.Process != nil {
			_ = w.Process.Wait()
		}
	}

	if err := b.store.UnregisterBalancer(ctx, b.queueName); err != nil {
		return fmt.Errorf("failed to shut down balancer: %w", err)
	}

	for sid := range remaining {
		session, err := b.store.GetSession(ctx, sid)
		if err != nil || session == nil {
			continue
		}
		_ = b.users.UpsertBot(ctx, &session.Bot)
		_ = b.store.DeleteSession(ctx, sid)
	}

	return nil
}
