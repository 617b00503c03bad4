package messaging

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

func TestPublishSync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var got []shared.Event
	require.NoError(t, bus.Subscribe(shared.EventRouteCreated, func(event shared.Event) error {
		got = append(got, event)
		return nil
	}))

	event := shared.NewRouteCreatedEvent("route-1", "driver-1")
	require.NoError(t, bus.Publish(event))

	require.Len(t, got, 1)
	assert.Equal(t, event.EventID(), got[0].EventID())
}

func TestPublishSyncReturnsHandlerErrors(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	errBroken := errors.New("broken handler")
	calls := 0

	require.NoError(t, bus.Subscribe(shared.EventRouteCreated, func(event shared.Event) error {
		calls++
		return errBroken
	}))
	require.NoError(t, bus.Subscribe(shared.EventRouteCreated, func(event shared.Event) error {
		calls++
		return nil
	}))

	err := bus.Publish(shared.NewRouteCreatedEvent("route-1", "driver-1"))

	require.Error(t, err)
	assert.ErrorIs(t, err, errBroken)
	assert.Equal(t, 2, calls, "one failing handler must not stop the others")
}

func TestPublishRoutesByType(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var created, joined int
	require.NoError(t, bus.Subscribe(shared.EventRouteCreated, func(event shared.Event) error {
		created++
		return nil
	}))
	require.NoError(t, bus.Subscribe(shared.EventRouteJoined, func(event shared.Event) error {
		joined++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRouteCreatedEvent("route-1", "driver-1")))
	require.NoError(t, bus.Publish(shared.NewRouteCreatedEvent("route-2", "driver-1")))
	require.NoError(t, bus.Publish(shared.NewRouteJoinedEvent("route-1", "driver-1", "passenger-1")))

	assert.Equal(t, 2, created)
	assert.Equal(t, 1, joined)
}

func TestSubscribeAll(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	defer bus.Close()

	var all int
	require.NoError(t, bus.SubscribeAll(func(event shared.Event) error {
		all++
		return nil
	}))

	require.NoError(t, bus.Publish(shared.NewRouteCreatedEvent("route-1", "driver-1")))
	require.NoError(t, bus.Publish(shared.NewValuationGivenEvent("val-1", "giver-1", "receiver-1")))

	assert.Equal(t, 2, all)
}

func TestPublishAsync(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 4,
	})

	var handled atomic.Int32
	var wg sync.WaitGroup
	wg.Add(10)
	require.NoError(t, bus.Subscribe(shared.EventRouteCreated, func(event shared.Event) error {
		defer wg.Done()
		handled.Add(1)
		return nil
	}))

	for i := 0; i < 10; i++ {
		require.NoError(t, bus.Publish(shared.NewRouteCreatedEvent("route-1", "driver-1")))
	}
	wg.Wait()
	require.NoError(t, bus.Close())

	assert.Equal(t, int32(10), handled.Load())
}

func TestClosedBusRejectsOperations(t *testing.T) {
	bus := NewInMemoryEventBus(InMemoryEventBusConfig{})
	require.NoError(t, bus.Close())

	assert.ErrorIs(t, bus.Publish(shared.NewRouteCreatedEvent("route-1", "driver-1")), ErrEventBusClosed)
	assert.ErrorIs(t, bus.Subscribe(shared.EventRouteCreated, func(shared.Event) error { return nil }), ErrEventBusClosed)

	// Closing twice is a no-op.
	assert.NoError(t, bus.Close())
}
