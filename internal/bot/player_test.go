package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bifshteksex/roombot/internal/model"
)

func newTestPlayer(t *testing.T) (*Player, *time.Time) {
	t.Helper()
	p := NewPlayer()
	now := time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC)
	p.now = func() time.Time { return now }
	return p, &now
}

func TestAddTrackAppendsToQueue(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))
	require.NoError(t, p.AddTrack(model.Track{Title: "two", DurationSec: 100}, -1, false, false))
	assert.Equal(t, []model.Track{{Title: "one", DurationSec: 100}, {Title: "two", DurationSec: 100}}, p.queue)
}

func TestAddTrackInsertsAtIndex(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one"}, -1, false, false))
	require.NoError(t, p.AddTrack(model.Track{Title: "two"}, -1, false, false))
	require.NoError(t, p.AddTrack(model.Track{Title: "inserted"}, 1, false, false))
	assert.Equal(t, []string{"one", "inserted", "two"}, trackTitles(p.queue))
}

func TestAddTrackRejectsOverDurationWithoutExtend(t *testing.T) {
	p, _ := newTestPlayer(t)
	err := p.AddTrack(model.Track{Title: "long", DurationSec: DurationLimit + 1}, -1, false, false)
	require.Error(t, err)
	var durErr *TrackDurationError
	assert.ErrorAs(t, err, &durErr)
}

func TestAddTrackAllowsOverDurationWithExtend(t *testing.T) {
	p, _ := newTestPlayer(t)
	err := p.AddTrack(model.Track{Title: "long", DurationSec: DurationLimit + 1}, -1, false, true)
	require.NoError(t, err)
}

func TestAddTrackRejectsOverQueueLimitWithoutExtend(t *testing.T) {
	p, _ := newTestPlayer(t)
	p.QueueLimit = 1
	require.NoError(t, p.AddTrack(model.Track{Title: "one"}, -1, false, false))
	err := p.AddTrack(model.Track{Title: "two"}, -1, false, false)
	require.Error(t, err)
	var qErr *QueueLimitError
	assert.ErrorAs(t, err, &qErr)
}

func TestAddTrackAllowsOverQueueLimitWithExtend(t *testing.T) {
	p, _ := newTestPlayer(t)
	p.QueueLimit = 1
	require.NoError(t, p.AddTrack(model.Track{Title: "one"}, -1, false, false))
	require.NoError(t, p.AddTrack(model.Track{Title: "two"}, -1, true, false))
}

func TestLaunchPopsQueueHeadAndStartsClock(t *testing.T) {
	p, now := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))

	track, ok := p.Launch()
	require.True(t, ok)
	assert.Equal(t, "one", track.Title)
	assert.Empty(t, p.queue)
	assert.True(t, p.Playing())

	*now = now.Add(101 * time.Second)
	assert.False(t, p.Playing())
}

func TestLaunchWithRepeatReplaysCurrentTrack(t *testing.T) {
	p, now := newTestPlayer(t)
	p.Repeat = true
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))

	_, ok := p.Launch()
	require.True(t, ok)
	*now = now.Add(150 * time.Second)
	assert.False(t, p.Playing())

	track, ok := p.Launch()
	require.True(t, ok)
	assert.Equal(t, "one", track.Title)
	assert.True(t, p.Playing())
}

func TestLaunchReturnsFalseWhenQueueEmpty(t *testing.T) {
	p, _ := newTestPlayer(t)
	_, ok := p.Launch()
	assert.False(t, ok)
}

func TestLaunchClearsCurrentWhenQueueDrains(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))
	_, ok := p.Launch()
	require.True(t, ok)
	require.NotNil(t, p.Current())

	_, ok = p.Launch()
	assert.False(t, ok)
	assert.Nil(t, p.Current())
}

func TestResetTimestampForcesNotPlaying(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))
	_, ok := p.Launch()
	require.True(t, ok)
	require.True(t, p.Playing())

	p.ResetTimestamp()
	assert.False(t, p.Playing())
}

func TestPauseDoesNotClearCurrentTrack(t *testing.T) {
	p, _ := newTestPlayer(t)
	require.NoError(t, p.AddTrack(model.Track{Title: "one", DurationSec: 100}, -1, false, false))
	_, ok := p.Launch()
	require.True(t, ok)

	p.Pause()
	assert.True(t, p.Paused())
	assert.Equal(t, "one", p.Current().Title)
}

func trackTitles(tracks []model.Track) []string {
	titles := make([]string, len(tracks))
	for i, tr := range tracks {
		titles[i] = tr.Title
	}
	return titles
}
