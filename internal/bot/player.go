package bot

import (
	"fmt"
	"time"

	"github.com/bifshteksex/roombot/internal/model"
)

const (
	// QueueLimit is the default bounded queue size (spec §4.5 Player
	// contract).
	QueueLimit = 20
	// DurationLimit is the default per-track duration cap in seconds.
	DurationLimit = 720
)

// TrackDurationError is raised by AddTrack when a track exceeds
// DurationLimit and extendDuration was not set.
type TrackDurationError struct{ DurationSec float64 }

func (e *TrackDurationError) Error() string {
	return fmt.Sprintf("track duration %.0fs exceeds the limit", e.DurationSec)
}

// QueueLimitError is raised by AddTrack when the queue is full and
// extendQueue was not set.
type QueueLimitError struct{ Limit int }

func (e *QueueLimitError) Error() string {
	return fmt.Sprintf("queue limit of %d reached", e.Limit)
}

// Player is a bounded FIFO music queue plus the currently playing track
// (spec §4.5 "Player contract"). now is injectable for deterministic
// tests; it defaults to time.Now in NewPlayer.
type Player struct {
	QueueLimit    int
	DurationLimit float64
	Repeat        bool

	queue     []model.Track
	current   *model.Track
	timestamp time.Time
	paused    bool
	now       func() time.Time
}

// NewPlayer constructs a Player with the spec's default limits.
func NewPlayer() *Player {
	return &Player{
		QueueLimit:    QueueLimit,
		DurationLimit: DurationLimit,
		now:           time.Now,
	}
}

// AddTrack appends track to the queue, or inserts it at index when
// index >= 0.
func (p *Player) AddTrack(track model.Track, index int, extendQueue, extendDuration bool) error {
	if track.DurationSec > p.DurationLimit && !extendDuration {
		return &TrackDurationError{DurationSec: track.DurationSec}
	}
	if len(p.queue) >= p.QueueLimit && !extendQueue {
		return &QueueLimitError{Limit: p.QueueLimit}
	}

	if index < 0 || index >= len(p.queue) {
		p.queue = append(p.queue, track)
		return nil
	}
	p.queue = append(p.queue, model.Track{})
	copy(p.queue[index+1:], p.queue[index:])
	p.queue[index] = track
	return nil
}

// Pause marks the player paused; it does not clear the current track.
func (p *Player) Pause() { p.paused = true }

// Paused reports whether the player is paused.
func (p *Player) Paused() bool { return p.paused }

// ResetTimestamp forces the current track to be considered finished
// (spec: "forces timestamp=0 (skip)").
func (p *Player) ResetTimestamp() { p.timestamp = time.Time{} }

// Playing reports whether the current track is still within its
// duration window.
func (p *Player) Playing() bool {
	if p.current == nil || p.timestamp.IsZero() {
		return false
	}
	elapsed := p.now().Sub(p.timestamp).Seconds()
	return elapsed < p.current.DurationSec
}

// Current returns the currently loaded track, or nil.
func (p *Player) Current() *model.Track { return p.current }

// Launch pops the next track (honoring Repeat) and starts its clock,
// returning false if there is nothing to play.
func (p *Player) Launch() (model.Track, bool) {
	if p.Repeat && p.current != nil {
		p.timestamp = p.now()
		p.paused = false
		return *p.current, true
	}
	if len(p.queue) == 0 {
		p.current = nil
		return model.Track{}, false
	}
	track := p.queue[0]
	p.queue = p.queue[1:]
	p.current = &track
	p.timestamp = p.now()
	p.paused = false
	return track, true
}
