package bot

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoster struct {
	mu   sync.Mutex
	sent []string
}

func (f *fakePoster) PostMessage(ctx context.Context, token, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, text)
	return nil
}

func (f *fakePoster) all() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	copy(out, f.sent)
	return out
}

func TestSenderRendersUntranslatedLabelUnchanged(t *testing.T) {
	poster := &fakePoster{}
	s := NewSender(poster, "tok", "en", nil)
	assert.Equal(t, "hello", s.render("hello", nil))
}

func TestSenderTranslatesKnownLabel(t *testing.T) {
	poster := &fakePoster{}
	translations := Translations{"greeting": {"ru": "привет"}}
	s := NewSender(poster, "tok", "ru", translations)
	assert.Equal(t, "привет", s.render("greeting", nil))
}

func TestSenderFallsThroughForUnknownLanguage(t *testing.T) {
	poster := &fakePoster{}
	translations := Translations{"greeting": {"ru": "привет"}}
	s := NewSender(poster, "tok", "fr", translations)
	assert.Equal(t, "greeting", s.render("greeting", nil))
}

func TestSenderFormatsPositionalArgs(t *testing.T) {
	poster := &fakePoster{}
	s := NewSender(poster, "tok", "en", nil)
	assert.Equal(t, "track: one", s.render("track: {}", []any{"one"}))
}

// fakeClock advances by one SendDelay on every read, so a freshly
// constructed Sender never actually blocks in time.After during a test: the
// computed wait is always <= 0.
func fakeClock() func() time.Time {
	var calls int64
	return func() time.Time {
		calls++
		return time.Unix(0, 0).Add(time.Duration(calls) * SendDelay)
	}
}

func TestSenderDeliversQueuedMessagesInFIFOOrder(t *testing.T) {
	poster := &fakePoster{}
	s := NewSender(poster, "tok", "en", nil)
	s.now = fakeClock()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Send("first")
	s.Send("second")

	go s.Run(ctx)

	require.Eventually(t, func() bool {
		return len(poster.all()) == 2
	}, time.Second, time.Millisecond)
	assert.Equal(t, []string{"first", "second"}, poster.all())
}

func TestSenderRespectsSendDelayBetweenPosts(t *testing.T) {
	poster := &fakePoster{}
	s := NewSender(poster, "tok", "en", nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.Send("first")
	go s.Run(ctx)

	require.Eventually(t, func() bool { return len(poster.all()) == 1 }, time.Second, time.Millisecond)

	before := time.Now()
	s.Send("second")
	require.Eventually(t, func() bool { return len(poster.all()) == 2 }, 2*time.Second, time.Millisecond)
	assert.GreaterOrEqual(t, time.Since(before), SendDelay/2, "second post should be throttled by roughly SendDelay")
}
