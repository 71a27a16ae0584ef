// Package workerproc implements the Worker process described in spec
// §4.4: one OS process hosting many Bots, a single control connection
// back to its Balancer, and the create/delete/heartbeat lifecycle that
// drives internal/bot.Bot instances. The spec's sentinel-selector demuxer
// (one thread servicing every Bot's file descriptors) is replaced by one
// goroutine per Bot — see DESIGN.md's "Sentinel selector demuxer" open-
// question decision — so the "command receiver"/"disconnect reporter"/
// "heartbeat reporter" threads spec §4.4 names become one reader
// goroutine, one per-Bot tick goroutine (which reports its own eviction),
// and one heartbeat goroutine, all serialized onto the control
// connection by writeMu.
package workerproc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/bot"
	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/command"
	"github.com/bifshteksex/roombot/internal/config"
	"github.com/bifshteksex/roombot/internal/controlwire"
	"github.com/bifshteksex/roombot/internal/extractorrpc"
	"github.com/bifshteksex/roombot/internal/model"
)

const (
	defaultHeartbeatInterval = 5 * time.Second
	defaultSentinelPoll      = 100 * time.Millisecond
)

// sessionHandle is a live Bot plus the bookkeeping needed to report it
// back to the Balancer on heartbeat, disconnect, or delete.
type sessionHandle struct {
	bot    *bot.Bot
	user   model.UserIdentity
	cancel context.CancelFunc
}

// Worker hosts N Bots over one control connection to its Balancer.
// extractor may be nil. The Worker holds it but does not hand it to the
// Bots it hosts, so no hosted command uses it.
type Worker struct {
	conn      net.Conn
	writeMu   sync.Mutex
	chat      chatclient.ChatClient
	extractor *extractorrpc.Client

	registry     map[string]*command.CommandSpec
	handlers     map[string]bot.CommandHandler
	translations bot.Translations
	cfg          config.WorkerConfig

	mu       sync.Mutex
	sessions map[string]*sessionHandle

	wg sync.WaitGroup
}

// New constructs a Worker over an already-dialed control connection
// (spec §4.3/§4.4: the Worker dials the Balancer's accept socket, not
// the other way around).
func New(
	conn net.Conn,
	chat chatclient.ChatClient,
	extractor *extractorrpc.Client,
	cfg config.WorkerConfig,
	registry map[string]*command.CommandSpec,
	handlers map[string]bot.CommandHandler,
	translations bot.Translations,
) *Worker {
	return &Worker{
		conn:         conn,
		chat:         chat,
		extractor:    extractor,
		cfg:          cfg,
		registry:     registry,
		handlers:     handlers,
		translations: translations,
		sessions:     make(map[string]*sessionHandle),
	}
}

// Run reads commands from the control connection until it is closed, a
// "stop" command arrives, or ctx is cancelled; it blocks until every
// hosted Bot has been torn down. A non-nil error means the control
// connection died unexpectedly (spec §4.4 has no Worker-side
// reconnection logic, so the caller should exit the process).
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancelHeartbeat := context.WithCancel(ctx)
	defer cancelHeartbeat()

	w.wg.Add(1)
	go w.heartbeatLoop(ctx)

	type received struct {
		cmd controlwire.Command
		err error
	}
	// Buffered by one so the reader goroutine can deliver a final error
	// and exit even if Run has already stopped reading from commands
	// (the stop/ctx-done paths below break out without draining it).
	commands := make(chan received, 1)
	go func() {
		for {
			cmd, err := controlwire.ReadCommand(w.conn)
			commands <- received{cmd: cmd, err: err}
			if err != nil {
				return
			}
		}
	}()

	var runErr error
loop:
	for {
		select {
		case <-ctx.Done():
			break loop
		case r := <-commands:
			if r.err != nil {
				runErr = fmt.Errorf("control connection closed: %w", r.err)
				break loop
			}
			switch r.cmd.Cmd {
			case controlwire.CmdCreate:
				w.wg.Add(1)
				go w.createInstance(ctx, r.cmd.SID, r.cmd.Session)
			case controlwire.CmdDelete:
				w.wg.Add(1)
				go w.deleteInstance(ctx, r.cmd.SID)
			case controlwire.CmdStop:
				break loop
			}
		}
	}

	w.stopAllSessions()
	cancelHeartbeat()
	w.wg.Wait()
	return runErr
}

func (w *Worker) stopAllSessions() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, h := range w.sessions {
		h.cancel()
	}
}

func (w *Worker) writeSignal(sig controlwire.Signal) error {
	w.writeMu.Lock()
	defer w.writeMu.Unlock()
	return controlwire.WriteSignal(w.conn, sig)
}

// createInstance implements spec §4.4's "Create instance": login,
// joinRoom, install the Bot, reply connected; ChatAPIError replies with
// its own message, any other error replies with a generic one.
func (w *Worker) createInstance(ctx context.Context, sid string, session *model.Session) {
	defer w.wg.Done()

	if session == nil {
		w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalFailed, SID: sid, Error: "missing session"})
		return
	}

	token, err := w.chat.Login(ctx, session.Bot.Name, session.Bot.Tripcode, session.Bot.PasscodeHash)
	if err != nil {
		w.replyCreateFailed(ctx, sid, err)
		return
	}

	room, err := w.chat.JoinRoom(ctx, token, session.Room.URL, session.Bot.Name, session.Room.Hidden)
	if err != nil {
		w.replyCreateFailed(ctx, sid, err)
		return
	}
	session.Room = room

	b := bot.NewBot(sid, token, session.User.Name, session.Bot.Name, session.Bot, w.chat, w.registry, w.handlers, w.translations, w.cfg.CommandPoolSize)
	b.Hooks = bot.NewDefaultHooks(b)

	botCtx, cancel := context.WithCancel(ctx)
	handle := &sessionHandle{bot: b, user: session.User, cancel: cancel}

	w.mu.Lock()
	w.sessions[sid] = handle
	w.mu.Unlock()

	w.wg.Add(2)
	go func() {
		defer w.wg.Done()
		b.Sender.Run(botCtx)
	}()
	go w.runBot(botCtx, sid, handle)

	w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalConnected, SID: sid, Session: session})
}

func (w *Worker) replyCreateFailed(ctx context.Context, sid string, err error) {
	var apiErr *chatclient.ChatAPIError
	reason := "Internal service error"
	if errors.As(err, &apiErr) {
		reason = err.Error()
	}
	w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalFailed, SID: sid, Error: reason})
}

// runBot ticks one Bot on its own goroutine until it errors, terminates,
// or ctx is cancelled (spec §4.4's per-tick scheduler, reshaped per
// DESIGN.md's sentinel-selector decision). A non-nil Tick error or a
// latched TERMINATE both mean the Bot must be evicted and reported
// disconnected, matching spec §4.4 exactly ("if a Bot throws or reports
// running=false, move it to the disconnects queue and evict it").
func (w *Worker) runBot(ctx context.Context, sid string, handle *sessionHandle) {
	defer w.wg.Done()

	poll := time.Duration(w.cfg.SentinelPollMillis) * time.Millisecond
	if poll <= 0 {
		poll = defaultSentinelPoll
	}

	var tickErr error
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(poll):
		}

		tickErr = handle.bot.Tick(ctx)
		if tickErr != nil || !handle.bot.Running() {
			break
		}
	}

	if tickErr != nil {
		hlog.CtxErrorf(ctx, "workerproc: bot %s evicted: %v", sid, tickErr)
	}
	w.evict(sid, handle)
}

func (w *Worker) evict(sid string, handle *sessionHandle) {
	w.mu.Lock()
	delete(w.sessions, sid)
	w.mu.Unlock()
	handle.cancel()

	profile, room := handle.bot.Snapshot()
	session := &model.Session{SID: sid, Room: room, User: handle.user, Bot: profile}
	w.safeWriteSignal(context.Background(), controlwire.Signal{Signal: controlwire.SignalDisconnected, SID: sid, Session: session})
}

// deleteInstance implements spec §4.4's "Delete instance": returnHost,
// leaveRoom, logout, then reply deleted (or deleted with an error if the
// sid is unknown).
func (w *Worker) deleteInstance(ctx context.Context, sid string) {
	defer w.wg.Done()

	w.mu.Lock()
	handle, ok := w.sessions[sid]
	if ok {
		delete(w.sessions, sid)
	}
	w.mu.Unlock()

	if !ok {
		w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalDeleted, SID: sid, Error: "no bot"})
		return
	}

	handle.cancel()
	handle.bot.Wait()

	token := handle.bot.Token
	if err := w.chat.ReturnHost(ctx, token); err != nil {
		hlog.CtxErrorf(ctx, "workerproc: bot %s return-host failed: %v", sid, err)
	}
	if err := w.chat.LeaveRoom(ctx, token); err != nil {
		hlog.CtxErrorf(ctx, "workerproc: bot %s leave-room failed: %v", sid, err)
	}
	if err := w.chat.Logout(ctx, token); err != nil {
		hlog.CtxErrorf(ctx, "workerproc: bot %s logout failed: %v", sid, err)
	}

	profile, room := handle.bot.Snapshot()
	session := &model.Session{SID: sid, Room: room, User: handle.user, Bot: profile}
	w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalDeleted, SID: sid, Session: session})
}

// heartbeatLoop emits an `update` signal for every live Bot roughly every
// HeartbeatIntervalSeconds (spec §4.4 "Heartbeat reporter").
func (w *Worker) heartbeatLoop(ctx context.Context) {
	defer w.wg.Done()

	interval := time.Duration(w.cfg.HeartbeatIntervalSeconds) * time.Second
	if interval <= 0 {
		interval = defaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			w.emitHeartbeats(ctx)
		}
	}
}

func (w *Worker) emitHeartbeats(ctx context.Context) {
	w.mu.Lock()
	snapshot := make(map[string]*sessionHandle, len(w.sessions))
	for sid, h := range w.sessions {
		snapshot[sid] = h
	}
	w.mu.Unlock()

	for sid, h := range snapshot {
		profile, room := h.bot.Snapshot()
		session := &model.Session{SID: sid, Room: room, User: h.user, Bot: profile}
		w.safeWriteSignal(ctx, controlwire.Signal{Signal: controlwire.SignalUpdate, SID: sid, Session: session})
	}
}

func (w *Worker) safeWriteSignal(ctx context.Context, sig controlwire.Signal) {
	if err := w.writeSignal(sig); err != nil {
		hlog.CtxErrorf(ctx, "workerproc: failed to write signal %s for sid %s: %v", sig.Signal, sig.SID, err)
	}
}
