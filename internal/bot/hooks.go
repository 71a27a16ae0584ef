package bot

import (
	"context"

	"github.com/bifshteksex/roombot/internal/chatclient"
)

// DefaultHooks implements Hooks with the two behaviors spec §4.5 names
// that don't require a wire concept the opaque chatclient.Message type
// doesn't carry: a first-join help notice, and a banned-user notice.
// Private-message relay is not modeled here: chatclient.Message has no
// field distinguishing a private message from a room message, and
// inventing one would mean inventing chat-service wire behavior spec §1
// explicitly scopes out ("the upstream chat-service wire protocol...
// opaque HTTP+JSON client").
type DefaultHooks struct {
	bot *Bot
}

// NewDefaultHooks wires DefaultHooks to the bot whose whitelist/blacklist
// state it inspects.
func NewDefaultHooks(b *Bot) *DefaultHooks {
	return &DefaultHooks{bot: b}
}

// OnJoin sends a one-time help notice to a name the first time it's seen
// joining the room.
func (h *DefaultHooks) OnJoin(ctx context.Context, msg chatclient.Message) error {
	if h.bot.isBanned(msg.User.Name) {
		return nil
	}
	if h.bot.MarkJoined(msg.User.Name) {
		h.bot.Sender.Send("help")
	}
	return nil
}

// OnMessage notifies a banned user that their messages are ignored;
// command parsing for banned users is already short-circuited upstream
// in messagesProcessing.
func (h *DefaultHooks) OnMessage(ctx context.Context, msg chatclient.Message) error {
	if h.bot.isBanned(msg.User.Name) {
		h.bot.Sender.Send("banned")
	}
	return nil
}
