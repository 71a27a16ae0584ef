package bot

import (
	"context"
	"sync"

	"github.com/cloudwego/hertz/pkg/common/hlog"

	"github.com/bifshteksex/roombot/internal/chatclient"
	"github.com/bifshteksex/roombot/internal/command"
	"github.com/bifshteksex/roombot/internal/model"
)

// DefaultPermitRanks is the spec §4.5 fixed permit table: lower rank is
// more privileged.
func DefaultPermitRanks() map[string]int {
	return map[string]int{
		"admin": model.PermitAdmin,
		"moder": model.PermitModer,
		"dj":    model.PermitDJ,
		"user":  model.PermitUser,
	}
}

// Hooks lets a Worker wire whitelist/blacklist enforcement, private-message
// relay and first-join help notices into MessagesProcessing (spec §4.5
// "Fire on_join/on_message hooks") without this package owning that policy.
// Either method may be left unimplemented by a caller that has no hooks to
// run.
type Hooks interface {
	OnJoin(ctx context.Context, msg chatclient.Message) error
	OnMessage(ctx context.Context, msg chatclient.Message) error
}

// CommandHandler implements one bot command. Returning SignalTerminate
// (used by the `leave` command) stops the Bot; a CommandException or
// ContextException is reported to the user, a ModException is logged and
// reported, anything else propagates to ExceptionsSentinel.
type CommandHandler func(ctx context.Context, b *Bot, user model.UserIdentity, cmd command.ProcessedCommand) (Signal, error)

type pendingCommand struct {
	user model.UserIdentity
	cmd  command.ProcessedCommand
}

// terminateSignal is pushed onto the exceptions channel when a threaded
// command handler requests termination; a background goroutine cannot
// return a Signal to the event-loop thread directly; this is the original's
// "background thread appended an exception" that ExceptionsSentinel
// re-raises on the next tick.
type terminateSignal struct{}

func (terminateSignal) Error() string { return "bot terminated by threaded command" }

// Bot is the single-session core: one priority-ordered, cancellable
// subroutine pipeline (spec §4.5), driven by one Tick per Worker event-loop
// pass. Locks are held only for the duration of the mutating statement,
// never across I/O (spec §5 "Shared resources").
type Bot struct {
	SID   string
	Token string
	Name  string // the bot's own display name, to skip its own messages

	chat        chatclient.ChatClient
	parser      *command.Parser
	permitRanks map[string]int
	handlers    map[string]CommandHandler
	profile     model.BotProfile

	Sender *Sender
	Spam   *SpamThrottle
	Hooks  Hooks

	chatMu        sync.Mutex
	room          model.Room
	lastUpdate    int64
	messagesQueue []chatclient.Message

	groupsMu  sync.Mutex
	permits   *Permits
	whitelist map[string]int64
	joined    map[string]bool

	djMu         sync.Mutex
	djMode       bool
	isHost       bool
	musicEnabled bool

	playerMu      sync.Mutex
	player        *Player
	commandsQueue []pendingCommand

	exceptions  chan error
	commandPool chan struct{}
	wg          sync.WaitGroup

	executor *Executor
}

// NewBot wires the five spec §4.5 subroutines into one Executor, over a
// caller-supplied command registry and handler table.
func NewBot(
	sid, token, ownerName, name string,
	profile model.BotProfile,
	chat chatclient.ChatClient,
	registry map[string]*command.CommandSpec,
	handlers map[string]CommandHandler,
	translations Translations,
	commandPoolSize int,
) *Bot {
	if commandPoolSize <= 0 {
		commandPoolSize = 4
	}
	whitelist := make(map[string]int64, len(profile.Whitelist))
	for name, epoch := range profile.Whitelist {
		whitelist[name] = epoch
	}

	b := &Bot{
		SID:          sid,
		Token:        token,
		Name:         name,
		chat:         chat,
		parser:       command.NewParser(profile.CommandPrefix, registry),
		permitRanks:  DefaultPermitRanks(),
		handlers:     handlers,
		profile:      profile,
		Spam:         NewSpamThrottle(),
		permits:      NewPermits(ownerName, profile.Groups, profile.Blacklist),
		whitelist:    whitelist,
		joined:       make(map[string]bool),
		player:       NewPlayer(),
		musicEnabled: true,
		isHost:       true,
		exceptions:   make(chan error, 16),
		commandPool:  make(chan struct{}, commandPoolSize),
	}
	b.Sender = NewSender(chat, token, profile.Language, translations)

	b.executor = NewExecutor([]Subroutine{
		{Name: "ExceptionsSentinel", Run: b.exceptionsSentinel},
		{Name: "MessagesUpdating", Run: b.messagesUpdating},
		{Name: "MessagesProcessing", Run: b.messagesProcessing},
		{Name: "CommandsProcessing", Run: b.commandsProcessing},
		{Name: "MusicPlayerRoutine", Run: b.musicPlayerRoutine},
	})
	return b
}

// Tick runs one pass of the subroutine pipeline. A non-nil error means the
// Bot must be evicted by the caller (spec §4.4 "if a Bot throws... move it
// to the disconnects queue"); Running() reports the TERMINATE case, which
// returns no error.
func (b *Bot) Tick(ctx context.Context) error {
	return b.executor.Tick(ctx)
}

// Running reports whether the Bot's executor has not latched TERMINATE.
func (b *Bot) Running() bool { return b.executor.Running() }

// Wait blocks until every in-flight threaded command handler has returned;
// called by Delete-instance teardown before returnHost/leaveRoom/logout.
func (b *Bot) Wait() { b.wg.Wait() }

// Player exposes the music player for commands that queue/skip tracks; it
// must only be touched under PlayerLock.
func (b *Bot) Player() *Player { return b.player }

// PlayerLock/PlayerUnlock let command handlers mutate the player under the
// same lock MusicPlayerRoutine uses (spec §5 "locks.player").
func (b *Bot) PlayerLock()   { b.playerMu.Lock() }
func (b *Bot) PlayerUnlock() { b.playerMu.Unlock() }

// SetDJMode toggles DJ-mode gating for MusicPlayerRoutine.
func (b *Bot) SetDJMode(on bool) {
	b.djMu.Lock()
	b.djMode = on
	b.djMu.Unlock()
}

// SetHost records whether this Bot currently holds room host.
func (b *Bot) SetHost(host bool) {
	b.djMu.Lock()
	b.isHost = host
	b.djMu.Unlock()
}

// Groups exposes the permit resolver for commands that edit
// groups/blacklist at runtime (kick/whitelist/ban), mutated only under
// GroupsLock.
func (b *Bot) Groups() *Permits { return b.permits }
func (b *Bot) GroupsLock()      { b.groupsMu.Lock() }
func (b *Bot) GroupsUnlock()    { b.groupsMu.Unlock() }

// IsWhitelisted reports whether name has ever been granted access; the
// whitelist never expires (spec §9 open-question decision).
func (b *Bot) IsWhitelisted(name string) bool {
	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()
	_, ok := b.whitelist[name]
	return ok
}

// GrantWhitelist records name's access at epoch, called only under
// GroupsLock by a command handler that mutates the whitelist.
func (b *Bot) GrantWhitelist(name string, epoch int64) {
	b.whitelist[name] = epoch
}

// MarkJoined records that name has been seen joining and reports whether
// this is the first time (spec §4.5 "first-join help notice").
func (b *Bot) MarkJoined(name string) bool {
	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()
	if b.joined[name] {
		return false
	}
	b.joined[name] = true
	return true
}

// Snapshot materializes the Bot's current profile and room state for
// Postgres/Redis write-back (heartbeat, delete, disconnect reporting).
func (b *Bot) Snapshot() (model.BotProfile, model.Room) {
	b.chatMu.Lock()
	room := b.room
	b.chatMu.Unlock()

	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()

	profile := b.profile
	profile.Groups = b.permits.Groups
	profile.Blacklist = b.permits.Blacklist
	whitelist := make(map[string]int64, len(b.whitelist))
	for name, epoch := range b.whitelist {
		whitelist[name] = epoch
	}
	profile.Whitelist = whitelist
	return profile, room
}

func (b *Bot) exceptionsSentinel(ctx context.Context) (Signal, error) {
	select {
	case err := <-b.exceptions:
		return SignalNone, err
	default:
		return SignalNone, nil
	}
}

func (b *Bot) messagesUpdating(ctx context.Context) (Signal, error) {
	var update chatclient.Update
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		update, err = b.chat.Update(ctx, b.Token, b.lastUpdate)
		if err == nil {
			break
		}
	}
	if err != nil {
		hlog.CtxErrorf(ctx, "bot %s: update failed after retries: %v", b.SID, err)
		return SignalNone, nil
	}

	b.chatMu.Lock()
	b.room = update.Room
	b.lastUpdate = update.UpdateTime
	b.messagesQueue = append(b.messagesQueue, update.Messages...)
	b.chatMu.Unlock()
	return SignalNone, nil
}

func (b *Bot) messagesProcessing(ctx context.Context) (Signal, error) {
	b.chatMu.Lock()
	msgs := b.messagesQueue
	b.messagesQueue = nil
	b.chatMu.Unlock()

	for _, msg := range msgs {
		if msg.User.Name == b.Name {
			continue
		}

		if b.Hooks != nil {
			var hookErr error
			if msg.Type == "join" {
				hookErr = b.Hooks.OnJoin(ctx, msg)
			} else {
				hookErr = b.Hooks.OnMessage(ctx, msg)
			}
			if hookErr != nil {
				hlog.CtxErrorf(ctx, "bot %s: hook failed: %v", b.SID, hookErr)
			}
		}

		switch msg.Type {
		case "music":
			b.playerMu.Lock()
			b.player.Pause()
			b.player.ResetTimestamp()
			b.playerMu.Unlock()
		case "message":
			if b.isBanned(msg.User.Name) {
				continue
			}
			permit := b.permitFor(msg.User)
			parsed, err := b.parser.Parse(msg.Text, permit, b.permitRanks)
			if err != nil {
				b.Sender.Send(err.Error())
				continue
			}
			for _, cmd := range parsed {
				b.commandsQueue = append(b.commandsQueue, pendingCommand{user: msg.User, cmd: cmd})
			}
		}
	}
	return SignalNone, nil
}

func (b *Bot) permitFor(user model.UserIdentity) int {
	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()
	return b.permits.Effective(user.Name, user.Tripcode)
}

func (b *Bot) isBanned(name string) bool {
	b.groupsMu.Lock()
	defer b.groupsMu.Unlock()
	return b.permits.IsBanned(name)
}

func (b *Bot) commandsProcessing(ctx context.Context) (Signal, error) {
	queue := b.commandsQueue
	b.commandsQueue = nil

	overallSignal := SignalNone
	for _, pc := range queue {
		if !b.Spam.Allow(pc.user.Name) {
			b.Sender.Send("spam_throttled")
			continue
		}
		if sig := b.executeCommand(ctx, pc); sig == SignalTerminate {
			overallSignal = SignalTerminate
		}
	}
	return overallSignal, nil
}

// executeCommand dispatches one parsed command to its handler following
// spec.threaded/batch_values semantics (spec §4.5 "ExecuteCommand").
func (b *Bot) executeCommand(ctx context.Context, pc pendingCommand) Signal {
	handler, ok := b.handlers[pc.cmd.Spec.Name]
	if !ok {
		hlog.CtxErrorf(ctx, "bot %s: no handler registered for command %s", b.SID, pc.cmd.Spec.Name)
		return SignalNone
	}

	valueGroups := [][]string{pc.cmd.Values}
	if !pc.cmd.Spec.BatchValues && len(pc.cmd.Values) > 1 {
		valueGroups = make([][]string, len(pc.cmd.Values))
		for i, v := range pc.cmd.Values {
			valueGroups[i] = []string{v}
		}
	}

	signal := SignalNone
	for _, values := range valueGroups {
		invoked := pc.cmd
		invoked.Values = values

		if pc.cmd.Spec.Threaded {
			b.runThreaded(ctx, handler, pc.user, invoked)
			continue
		}
		sig, err := handler(ctx, b, pc.user, invoked)
		if err != nil {
			b.reportCommandError(ctx, pc.cmd.Spec.Name, err)
			continue
		}
		if sig == SignalTerminate {
			signal = SignalTerminate
		}
	}
	return signal
}

func (b *Bot) runThreaded(ctx context.Context, handler CommandHandler, user model.UserIdentity, cmd command.ProcessedCommand) {
	b.wg.Add(1)
	b.commandPool <- struct{}{}
	go func() {
		defer b.wg.Done()
		defer func() { <-b.commandPool }()

		sig, err := handler(ctx, b, user, cmd)
		if err != nil {
			b.reportCommandError(ctx, cmd.Spec.Name, err)
			return
		}
		if sig == SignalTerminate {
			select {
			case b.exceptions <- terminateSignal{}:
			default:
			}
		}
	}()
}

// reportCommandError implements spec §4.5's three known exception kinds
// plus the sentinel fallback for anything else.
func (b *Bot) reportCommandError(ctx context.Context, name string, err error) {
	switch e := err.(type) {
	case *CommandException:
		b.Sender.Send(e.Msg)
	case *ContextException:
		b.Sender.Send(e.Msg)
	case *ModException:
		hlog.CtxErrorf(ctx, "bot %s: command %s: %v", b.SID, name, e)
		b.Sender.Send(e.Msg)
	default:
		select {
		case b.exceptions <- unexpectedError(name, err):
		default:
			hlog.CtxErrorf(ctx, "bot %s: dropped command error, exceptions channel full: %v", b.SID, err)
		}
	}
}

func (b *Bot) musicPlayerRoutine(ctx context.Context) (Signal, error) {
	b.djMu.Lock()
	available := b.musicEnabled && (!b.djMode || b.isHost)
	b.djMu.Unlock()
	if !available {
		return SignalNone, nil
	}

	b.playerMu.Lock()
	defer b.playerMu.Unlock()
	if b.player.Paused() || b.player.Playing() {
		return SignalNone, nil
	}
	if track, ok := b.player.Launch(); ok {
		b.Sender.Send("now_playing", track.Title)
	}
	return SignalNone, nil
}
