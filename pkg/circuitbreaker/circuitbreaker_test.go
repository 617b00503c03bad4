package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStore = errors.New("store down")

func failing(ctx context.Context) error { return errStore }
func succeeding(ctx context.Context) error { return nil }

func TestOpensAfterConsecutiveFailures(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	}
	assert.Equal(t, StateOpen, cb.State())

	err := cb.Execute(ctx, succeeding)
	assert.ErrorIs(t, err, ErrCircuitOpen, "open circuit must fail fast without calling the store")
}

func TestSuccessResetsFailureCount(t *testing.T) {
	cb := New("test", WithFailureThreshold(3))
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	require.NoError(t, cb.Execute(ctx, succeeding))
	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)

	assert.Equal(t, StateClosed, cb.State())
}

func TestRecoversThroughHalfOpen(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithSuccessThreshold(2),
		WithTimeout(10*time.Millisecond),
	)
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	require.Equal(t, StateOpen, cb.State())

	time.Sleep(15 * time.Millisecond)

	// First probe transitions to half-open.
	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeeding))
	assert.Equal(t, StateClosed, cb.State())
}

func TestHalfOpenFailureReopens(t *testing.T) {
	cb := New("test",
		WithFailureThreshold(1),
		WithTimeout(10*time.Millisecond),
	)
	ctx := context.Background()

	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	time.Sleep(15 * time.Millisecond)

	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	assert.Equal(t, StateOpen, cb.State())
}

func TestIsFailurePredicate(t *testing.T) {
	errIgnored := errors.New("not found")
	cb := New("test",
		WithFailureThreshold(1),
		WithIsFailure(func(err error) bool { return !errors.Is(err, errIgnored) }),
	)
	ctx := context.Background()

	// Business errors pass through without tripping the breaker.
	for i := 0; i < 5; i++ {
		require.ErrorIs(t, cb.Execute(ctx, func(ctx context.Context) error { return errIgnored }), errIgnored)
	}
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, failing), errStore)
	assert.Equal(t, StateOpen, cb.State())
}

func TestOnStateChangeCallback(t *testing.T) {
	type transition struct{ from, to State }
	var transitions []transition

	cb := New("test",
		WithFailureThreshold(1),
		WithOnStateChange(func(name string, from, to State) {
			assert.Equal(t, "test", name)
			transitions = append(transitions, transition{from, to})
		}),
	)

	require.ErrorIs(t, cb.Execute(context.Background(), failing), errStore)

	require.Len(t, transitions, 1)
	assert.Equal(t, StateClosed, transitions[0].from)
	assert.Equal(t, StateOpen, transitions[0].to)
}
