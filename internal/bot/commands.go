package bot

import (
	"context"

	"github.com/bifshteksex/roombot/internal/command"
	"github.com/bifshteksex/roombot/internal/model"
)

// DefaultCommands returns the one command spec §4.5 names explicitly: a
// moder-level `leave` that terminates the Bot. Callers register their own
// music/moderation commands alongside these.
func DefaultCommands() []*command.CommandSpec {
	return []*command.CommandSpec{
		{Name: "leave", Permit: "moder"},
	}
}

// DefaultHandlers wires DefaultCommands to their CommandHandlers.
func DefaultHandlers() map[string]CommandHandler {
	return map[string]CommandHandler{
		"leave": func(ctx context.Context, b *Bot, user model.UserIdentity, cmd command.ProcessedCommand) (Signal, error) {
			return SignalTerminate, nil
		},
	}
}
