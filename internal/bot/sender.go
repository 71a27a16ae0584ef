package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/cloudwego/hertz/pkg/common/hlog"
)

// SendDelay is the rate-limited sender's minimum gap between posts
// (spec §4.5 "Rate-limited message sender").
const SendDelay = 1 * time.Second

// Poster is the one method Sender needs from the chat client; narrowed
// for testability (same idiom as dispatch.publisher/balancer.replier).
type Poster interface {
	PostMessage(ctx context.Context, token, text string) error
}

// Translations maps a message label to a language -> localized-text
// table; an unknown label falls through unchanged (spec §4.5).
type Translations map[string]map[string]string

// outgoing is one queued send request.
type outgoing struct {
	label string
	args  []any
}

// Sender is a single-threaded FIFO message queue that throttles posts to
// at most one per SendDelay (spec §4.5). Arguments are substituted
// positionally into `{}` placeholders; named placeholders are not
// supported.
type Sender struct {
	client       Poster
	token        string
	language     string
	translations Translations

	mu       sync.Mutex
	queue    []outgoing
	notEmpty chan struct{}
	now      func() time.Time
	lastSend time.Time
}

// NewSender constructs a Sender posting through client under token, using
// language to look up translations.
func NewSender(client Poster, token, language string, translations Translations) *Sender {
	return &Sender{
		client:       client,
		token:        token,
		language:     language,
		translations: translations,
		notEmpty:     make(chan struct{}, 1),
		now:          time.Now,
	}
}

// Send enqueues label, formatted and translated, for delivery.
func (s *Sender) Send(label string, args ...any) {
	s.mu.Lock()
	s.queue = append(s.queue, outgoing{label: label, args: args})
	s.mu.Unlock()
	select {
	case s.notEmpty <- struct{}{}:
	default:
	}
}

// Run drains the queue until ctx is cancelled, sleeping as needed to
// respect SendDelay.
func (s *Sender) Run(ctx context.Context) {
	for {
		s.mu.Lock()
		var next *outgoing
		if len(s.queue) > 0 {
			item := s.queue[0]
			s.queue = s.queue[1:]
			next = &item
		}
		s.mu.Unlock()

		if next == nil {
			select {
			case <-ctx.Done():
				return
			case <-s.notEmpty:
				continue
			}
		}

		wait := s.lastSend.Add(SendDelay).Sub(s.now())
		if wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}

		text := s.render(next.label, next.args)
		if err := s.client.PostMessage(ctx, s.token, text); err != nil {
			hlog.CtxErrorf(ctx, "bot: failed to post message: %v", err)
		}
		s.lastSend = s.now()
	}
}

func (s *Sender) render(label string, args []any) string {
	text := label
	if table, ok := s.translations[label]; ok {
		if localized, ok := table[s.language]; ok {
			text = localized
		}
	}
	if len(args) == 0 {
		return text
	}
	return fmt.Sprintf(strings.ReplaceAll(text, "{}", "%v"), args...)
}
