package bot

import (
	"sync"
	"time"
)

// SpamDelay is the CommandsSpam sliding window (spec §4.5).
const SpamDelay = 2 * time.Second

// SpamThrottle rate-limits command invocations per user (spec §4.5
// "CommandsSpam"). The first call for a user always passes; a call
// within SpamDelay of the last allowed one is rejected, and the window
// does not slide on a rejection.
type SpamThrottle struct {
	mu   sync.Mutex
	last map[string]time.Time
	now  func() time.Time
}

// NewSpamThrottle constructs a SpamThrottle using the real clock.
func NewSpamThrottle() *SpamThrottle {
	return &SpamThrottle{last: make(map[string]time.Time), now: time.Now}
}

// Allow reports whether user may invoke a command now, sliding the
// window forward on success.
func (s *SpamThrottle) Allow(user string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if last, ok := s.last[user]; ok && now.Before(last.Add(SpamDelay)) {
		return false
	}
	s.last[user] = now
	return true
}
