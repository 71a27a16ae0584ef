package bot

import "fmt"

// CommandException is a user-visible command failure (spec §4.5
// "Known exception kinds").
type CommandException struct{ Msg string }

func (e *CommandException) Error() string { return e.Msg }

// ContextException signals that a command cannot run in the bot's
// current context (not host, DJ mode, player unavailable — mirrors
// original_source/bot/context.py: ContextException).
type ContextException struct{ Msg string }

func (e *ContextException) Error() string { return e.Msg }

// ModException is logged and reported to the user, but does not
// terminate the Bot (spec §4.5).
type ModException struct{ Msg string }

func (e *ModException) Error() string { return e.Msg }

// unexpectedError wraps any other handler error, which the caller must
// treat as fatal (propagated to ExceptionsSentinel).
func unexpectedError(name string, err error) error {
	return fmt.Errorf("command %s: %w", name, err)
}
