package shared

import (
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the achievement progress engine.
// Each event represents something significant that happened elsewhere in
// the ride-sharing platform; the engine never validates the underlying
// business action, only reacts to the fact that it happened.
const (
	// Account events
	EventAccountCreated EventType = "account.created"
	EventProfileChanged EventType = "account.profile_changed"

	// Route events
	EventRouteCreated   EventType = "route.created"
	EventRouteJoined    EventType = "route.joined"
	EventRouteFinalized EventType = "route.finalized"

	// Valuation events
	EventValuationGiven EventType = "valuation.given"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// EventID returns the unique identifier of this event instance.
	// Used as the idempotency key for duplicate-delivery detection.
	EventID() string

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string

	// Payload returns the event data as a map for serialization.
	Payload() map[string]interface{}
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	ID            string    `json:"id"`
	Type          EventType `json:"type"`
	Timestamp     time.Time `json:"timestamp"`
	AggregateId   string    `json:"aggregate_id"`
	CorrelationID string    `json:"correlation_id,omitempty"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// EventID implements Event interface.
func (e BaseEvent) EventID() string {
	return e.ID
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		ID:          uuid.NewString(),
		Type:        eventType,
		Timestamp:   time.Now().UTC(),
		AggregateId: aggregateID,
	}
}

// WithCorrelationID sets the correlation ID for tracing.
func (e BaseEvent) WithCorrelationID(id string) BaseEvent {
	e.CorrelationID = id
	return e
}

// ═══════════════════════════════════════════════════════════════════════════
// Account Events
// ═══════════════════════════════════════════════════════════════════════════

// AccountCreatedEvent is emitted when a user or driver account is created.
// The engine pre-provisions a progress row for every catalog entry.
type AccountCreatedEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
}

// Payload implements Event interface.
func (e AccountCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id": e.UserID,
	}
}

// NewAccountCreatedEvent creates a new AccountCreatedEvent.
func NewAccountCreatedEvent(userID string) AccountCreatedEvent {
	return AccountCreatedEvent{
		BaseEvent: NewBaseEvent(EventAccountCreated, userID),
		UserID:    userID,
	}
}

// ProfileChangedEvent is emitted when an existing account's profile is
// updated. ChangedFields must be diffed against the pre-update snapshot by
// the producer; the engine only checks which fields are listed.
type ProfileChangedEvent struct {
	BaseEvent
	UserID        string   `json:"user_id"`
	ChangedFields []string `json:"changed_fields"`
}

// Payload implements Event interface.
func (e ProfileChangedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"user_id":        e.UserID,
		"changed_fields": e.ChangedFields,
	}
}

// NewProfileChangedEvent creates a new ProfileChangedEvent.
func NewProfileChangedEvent(userID string, changedFields []string) ProfileChangedEvent {
	return ProfileChangedEvent{
		BaseEvent:     NewBaseEvent(EventProfileChanged, userID),
		UserID:        userID,
		ChangedFields: changedFields,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Route Events
// ═══════════════════════════════════════════════════════════════════════════

// RouteCreatedEvent is emitted when a driver publishes a new route.
type RouteCreatedEvent struct {
	BaseEvent
	RouteID  string `json:"route_id"`
	DriverID string `json:"driver_id"`
}

// Payload implements Event interface.
func (e RouteCreatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"route_id":  e.RouteID,
		"driver_id": e.DriverID,
	}
}

// NewRouteCreatedEvent creates a new RouteCreatedEvent.
func NewRouteCreatedEvent(routeID, driverID string) RouteCreatedEvent {
	return RouteCreatedEvent{
		BaseEvent: NewBaseEvent(EventRouteCreated, routeID),
		RouteID:   routeID,
		DriverID:  driverID,
	}
}

// RouteJoinedEvent is emitted when a passenger joins a published route.
type RouteJoinedEvent struct {
	BaseEvent
	RouteID     string `json:"route_id"`
	DriverID    string `json:"driver_id"`
	PassengerID string `json:"passenger_id"`
}

// Payload implements Event interface.
func (e RouteJoinedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"route_id":     e.RouteID,
		"driver_id":    e.DriverID,
		"passenger_id": e.PassengerID,
	}
}

// NewRouteJoinedEvent creates a new RouteJoinedEvent.
func NewRouteJoinedEvent(routeID, driverID, passengerID string) RouteJoinedEvent {
	return RouteJoinedEvent{
		BaseEvent:   NewBaseEvent(EventRouteJoined, routeID),
		RouteID:     routeID,
		DriverID:    driverID,
		PassengerID: passengerID,
	}
}

// RouteFinalizedEvent is emitted when a driver finalizes a route.
// AlreadyFinalized carries the value of the route's finalized flag *before*
// this call: repeated finalize calls on an already-finalized route must not
// advance progress again.
type RouteFinalizedEvent struct {
	BaseEvent
	RouteID          string `json:"route_id"`
	DriverID         string `json:"driver_id"`
	AlreadyFinalized bool   `json:"already_finalized"`
}

// Payload implements Event interface.
func (e RouteFinalizedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"route_id":          e.RouteID,
		"driver_id":         e.DriverID,
		"already_finalized": e.AlreadyFinalized,
	}
}

// NewRouteFinalizedEvent creates a new RouteFinalizedEvent.
func NewRouteFinalizedEvent(routeID, driverID string, alreadyFinalized bool) RouteFinalizedEvent {
	return RouteFinalizedEvent{
		BaseEvent:        NewBaseEvent(EventRouteFinalized, routeID),
		RouteID:          routeID,
		DriverID:         driverID,
		AlreadyFinalized: alreadyFinalized,
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Valuation Events
// ═══════════════════════════════════════════════════════════════════════════

// ValuationGivenEvent is emitted when a user submits a valuation of another
// user. Progress is attributed to the giver, not the receiver.
type ValuationGivenEvent struct {
	BaseEvent
	ValuationID string `json:"valuation_id"`
	GiverID     string `json:"giver_id"`
	ReceiverID  string `json:"receiver_id"`
}

// Payload implements Event interface.
func (e ValuationGivenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"valuation_id": e.ValuationID,
		"giver_id":     e.GiverID,
		"receiver_id":  e.ReceiverID,
	}
}

// NewValuationGivenEvent creates a new ValuationGivenEvent.
func NewValuationGivenEvent(valuationID, giverID, receiverID string) ValuationGivenEvent {
	return ValuationGivenEvent{
		BaseEvent:   NewBaseEvent(EventValuationGiven, valuationID),
		ValuationID: valuationID,
		GiverID:     giverID,
		ReceiverID:  receiverID,
	}
}

// EventHandler processes a domain event. Returning an error signals the
// dispatcher that handling failed; the event itself is never mutated.
type EventHandler func(event Event) error

// EventBus publishes domain events to subscribed handlers.
type EventBus interface {
	// Subscribe registers a handler for a specific event type.
	Subscribe(eventType EventType, handler EventHandler) error

	// SubscribeAll registers a handler for all events.
	SubscribeAll(handler EventHandler) error

	// Publish sends an event to all subscribed handlers.
	Publish(event Event) error

	// Close gracefully shuts down the event bus.
	Close() error
}
