package bot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecutorRunsSubroutinesInOrder(t *testing.T) {
	var order []string
	ex := NewExecutor([]Subroutine{
		{Name: "a", Run: func(ctx context.Context) (Signal, error) { order = append(order, "a"); return SignalNone, nil }},
		{Name: "b", Run: func(ctx context.Context) (Signal, error) { order = append(order, "b"); return SignalNone, nil }},
		{Name: "c", Run: func(ctx context.Context) (Signal, error) { order = append(order, "c"); return SignalNone, nil }},
	})

	require.NoError(t, ex.Tick(context.Background()))
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.True(t, ex.Running())
}

func TestExecutorSkipCancelsRemainingSubroutinesThisTickOnly(t *testing.T) {
	var order []string
	ex := NewExecutor([]Subroutine{
		{Name: "a", Run: func(ctx context.Context) (Signal, error) { order = append(order, "a"); return SignalSkip, nil }},
		{Name: "b", Run: func(ctx context.Context) (Signal, error) { order = append(order, "b"); return SignalNone, nil }},
	})

	require.NoError(t, ex.Tick(context.Background()))
	assert.Equal(t, []string{"a"}, order)
	assert.True(t, ex.Running())

	require.NoError(t, ex.Tick(context.Background()))
	assert.Equal(t, []string{"a", "a"}, order)
}

func TestExecutorTerminateLatchesAcrossTicks(t *testing.T) {
	calls := 0
	ex := NewExecutor([]Subroutine{
		{Name: "leave", Run: func(ctx context.Context) (Signal, error) { calls++; return SignalTerminate, nil }},
		{Name: "never", Run: func(ctx context.Context) (Signal, error) { t.Fatal("should not run after TERMINATE"); return SignalNone, nil }},
	})

	require.NoError(t, ex.Tick(context.Background()))
	assert.False(t, ex.Running())
	assert.Equal(t, 1, calls)

	require.NoError(t, ex.Tick(context.Background()))
	assert.Equal(t, 1, calls, "a latched TERMINATE must make further Tick calls no-ops")
}

func TestExecutorPropagatesSubroutineError(t *testing.T) {
	boom := errors.New("boom")
	ex := NewExecutor([]Subroutine{
		{Name: "failing", Run: func(ctx context.Context) (Signal, error) { return SignalNone, boom }},
	})

	err := ex.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.True(t, ex.Running(), "an error does not itself latch TERMINATE; the caller evicts the Bot")
}
