package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
	"github.com/ridepool-hub/ridepool-achievements/pkg/circuitbreaker"
	"github.com/ridepool-hub/ridepool-achievements/pkg/clock"
	"github.com/ridepool-hub/ridepool-achievements/pkg/keylock"
	"github.com/ridepool-hub/ridepool-achievements/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// ENGINE FACADE
// The single entry point collaborators call when a domain event happened.
// Orchestrates classification, fetch-or-create of the progress row,
// evaluation, and persistence - serialized per (user, achievement) key.
// ══════════════════════════════════════════════════════════════════════════════

// Config contains the engine's collaborators and tuning knobs.
type Config struct {
	// Catalog resolves achievement definitions by title.
	Catalog achievement.CatalogRepository

	// Store is the durable progress store.
	Store achievement.ProgressRepository

	// Classifier maps events to increments. Defaults to
	// NewClassifier(DefaultClassifierConfig()).
	Classifier *Classifier

	// Guard deduplicates at-least-once event deliveries. Defaults to an
	// in-memory guard with one hour retention.
	Guard IdempotencyGuard

	// Clock supplies occurredAt when the caller passes the zero time.
	Clock clock.Clock

	// Logger for structured logging.
	Logger *slog.Logger

	// LockShards is the number of key mutex shards.
	LockShards int

	// SaveMaxAttempts bounds internal retries of a conflicting save before
	// the failure is surfaced as engine unavailability.
	SaveMaxAttempts int

	// BreakerFailureThreshold is the number of consecutive store failures
	// before the engine fails fast with ErrEngineUnavailable.
	BreakerFailureThreshold int
}

// Engine is the achievement progress engine facade.
type Engine struct {
	catalog    achievement.CatalogRepository
	store      achievement.ProgressRepository
	classifier *Classifier
	guard      IdempotencyGuard
	clock      clock.Clock
	locks      *keylock.KeyLock
	retrier    *retry.Retrier
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger
}

// New creates a new Engine. Catalog and Store are required.
func New(config Config) (*Engine, error) {
	if config.Catalog == nil {
		return nil, errors.New("engine: catalog repository is required")
	}
	if config.Store == nil {
		return nil, errors.New("engine: progress store is required")
	}
	if config.Classifier == nil {
		config.Classifier = NewClassifier(DefaultClassifierConfig())
	}
	if config.Guard == nil {
		config.Guard = NewMemoryGuard(time.Hour)
	}
	if config.Clock == nil {
		config.Clock = clock.System()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.SaveMaxAttempts <= 0 {
		config.SaveMaxAttempts = 3
	}
	if config.BreakerFailureThreshold <= 0 {
		config.BreakerFailureThreshold = 5
	}

	logger := config.Logger.With("component", "achievement_engine")

	breaker := circuitbreaker.New("progress-store",
		circuitbreaker.WithFailureThreshold(config.BreakerFailureThreshold),
		// Data errors and per-key contention are not store outages; only
		// infrastructure failures may open the circuit.
		circuitbreaker.WithIsFailure(func(err error) bool {
			return !errors.Is(err, shared.ErrNotFound) &&
				!errors.Is(err, shared.ErrInvalidInput) &&
				!errors.Is(err, shared.ErrConcurrentModification)
		}),
		circuitbreaker.WithOnStateChange(func(name string, from, to circuitbreaker.State) {
			logger.Warn("circuit state changed",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		}),
	)

	retrier := retry.New(
		retry.WithMaxAttempts(config.SaveMaxAttempts),
		retry.WithInitialDelay(10*time.Millisecond),
		retry.WithMaxDelay(250*time.Millisecond),
		retry.WithRetryIf(func(err error) bool {
			return errors.Is(err, shared.ErrPersistenceConflict)
		}),
	)

	return &Engine{
		catalog:    config.Catalog,
		store:      config.Store,
		classifier: config.Classifier,
		guard:      config.Guard,
		clock:      config.Clock,
		locks:      keylock.New(config.LockShards),
		retrier:    retrier,
		breaker:    breaker,
		logger:     logger,
	}, nil
}

// ApplyEvent advances achievement progress for everything the event
// qualifies for. occurredAt is the wall-clock time attributed to
// DateAchieved if a completion happens; the zero time means "now".
//
// Classifier results for one event form an unordered batch: each
// (user, achievement) key is processed independently, and a persistence
// failure on one key does not prevent the others. Per-key failures are
// collected and returned joined; a nil return means every key was applied.
func (e *Engine) ApplyEvent(ctx context.Context, event shared.Event, occurredAt time.Time) error {
	if event == nil {
		return shared.ErrInvalidEvent
	}
	if err := validateEvent(event); err != nil {
		return err
	}

	marked := false
	fresh, err := e.guard.MarkIfNew(ctx, event.EventID())
	if err != nil {
		// Deduplication is best effort: losing the guard must not stall
		// progress tracking, so the event is applied anyway.
		e.logger.Warn("idempotency guard unavailable, applying without dedup",
			"event_id", event.EventID(),
			"error", err,
		)
	} else if !fresh {
		e.logger.Debug("dropping duplicate event delivery",
			"event_id", event.EventID(),
			"event_type", event.EventType(),
		)
		return nil
	} else {
		marked = true
	}

	if err := e.apply(ctx, event, occurredAt); err != nil {
		// The caller retries failed events by redelivering them; the mark
		// is released so the redelivery is applied, not dropped.
		if marked {
			if relErr := e.guard.Release(ctx, event.EventID()); relErr != nil {
				e.logger.Warn("failed to release idempotency mark",
					"event_id", event.EventID(),
					"error", relErr,
				)
			}
		}
		return err
	}
	return nil
}

// apply runs classification and the per-key batch for one deduplicated
// event.
func (e *Engine) apply(ctx context.Context, event shared.Event, occurredAt time.Time) error {
	defs, err := e.listDefinitions(ctx)
	if err != nil {
		return err
	}

	byTitle := make(map[achievement.Title]*achievement.Definition, len(defs))
	titles := make([]achievement.Title, 0, len(defs))
	for _, def := range defs {
		byTitle[def.Title] = def
		titles = append(titles, def.Title)
	}

	if occurredAt.IsZero() {
		occurredAt = e.clock.Now()
	}

	increments := e.classifier.Classify(event, titles)
	if len(increments) == 0 {
		return nil
	}

	// Zero-delta increments only guarantee row existence; they are grouped
	// per user and handed to BulkEnsure in one idempotent shot.
	ensureIDs := make(map[string][]string)
	var errs []error

	for _, inc := range increments {
		def, ok := byTitle[inc.Title]
		if !ok {
			// Catalog rollout may lag event wiring; never an error.
			e.logger.Debug("skipping unknown achievement title",
				"title", string(inc.Title),
				"event_type", event.EventType(),
			)
			continue
		}

		if inc.Delta == 0 {
			ensureIDs[inc.UserID] = append(ensureIDs[inc.UserID], def.ID)
			continue
		}

		if err := e.applyIncrement(ctx, def, inc, occurredAt); err != nil {
			errs = append(errs, fmt.Errorf("key %s/%s: %w", inc.UserID, def.Title, err))
		}
	}

	for userID, achievementIDs := range ensureIDs {
		if err := e.ensureRows(ctx, userID, achievementIDs); err != nil {
			errs = append(errs, fmt.Errorf("provision user %s: %w", userID, err))
		}
	}

	return errors.Join(errs...)
}

// HandleEvent adapts the engine to shared.EventHandler so it can be
// subscribed directly to an event bus. The event's own timestamp is used
// as occurredAt.
func (e *Engine) HandleEvent(event shared.Event) error {
	return e.ApplyEvent(context.Background(), event, event.OccurredAt())
}

// Subscribe registers the engine for every event type it classifies.
func (e *Engine) Subscribe(bus shared.EventBus) error {
	types := []shared.EventType{
		shared.EventAccountCreated,
		shared.EventProfileChanged,
		shared.EventRouteCreated,
		shared.EventRouteJoined,
		shared.EventRouteFinalized,
		shared.EventValuationGiven,
	}
	for _, t := range types {
		if err := bus.Subscribe(t, e.HandleEvent); err != nil {
			return err
		}
	}
	return nil
}

// ListProgress returns all progress rows of a user joined with achievement
// metadata, for presentation by the API layer.
func (e *Engine) ListProgress(ctx context.Context, userID string) ([]*achievement.ProgressView, error) {
	if userID == "" {
		return nil, shared.WrapError("engine", "ListProgress", shared.ErrInvalidID, "user id is required", nil)
	}

	var views []*achievement.ProgressView
	err := e.storeExec(ctx, func(ctx context.Context) error {
		var err error
		views, err = e.store.ListByUser(ctx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return views, nil
}

// applyIncrement runs the serialized fetch → evaluate → save sequence for
// one (user, achievement) key.
func (e *Engine) applyIncrement(ctx context.Context, def *achievement.Definition, inc Increment, occurredAt time.Time) error {
	key := inc.UserID + ":" + def.ID
	e.locks.Lock(key)
	defer e.locks.Unlock(key)

	var row *achievement.UserProgress
	err := e.storeExec(ctx, func(ctx context.Context) error {
		var err error
		row, err = e.store.GetOrCreate(ctx, inc.UserID, def.ID)
		return err
	})
	if err != nil {
		return err
	}

	updated, changed, err := achievement.Advance(*row, *def, inc.Delta, occurredAt)
	if err != nil {
		return err
	}
	if !changed {
		// Frozen after completion, or zero delta: skip the write entirely.
		return nil
	}
	updated.UpdatedAt = e.clock.Now()

	err = e.retrier.Do(ctx, func(ctx context.Context) error {
		return e.storeExec(ctx, func(ctx context.Context) error {
			return e.store.Save(ctx, &updated)
		})
	})
	if err != nil {
		if errors.Is(err, shared.ErrPersistenceConflict) {
			// Bounded retries exhausted.
			return shared.WrapError("engine", "ApplyEvent", shared.ErrEngineUnavailable,
				"persistent write conflict", err)
		}
		return err
	}

	if updated.Achieved && !row.Achieved {
		e.logger.Info("achievement unlocked",
			"user_id", inc.UserID,
			"title", string(def.Title),
			"progress", updated.Progress,
			"required", def.RequiredPoints,
		)
	}
	return nil
}

// ensureRows pre-provisions the user's progress rows for the given
// achievement IDs.
func (e *Engine) ensureRows(ctx context.Context, userID string, achievementIDs []string) error {
	return e.storeExec(ctx, func(ctx context.Context) error {
		return e.store.BulkEnsure(ctx, userID, achievementIDs)
	})
}

// listDefinitions loads the full catalog through the breaker.
func (e *Engine) listDefinitions(ctx context.Context) ([]*achievement.Definition, error) {
	var defs []*achievement.Definition
	err := e.storeExec(ctx, func(ctx context.Context) error {
		var err error
		defs, err = e.catalog.List(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	return defs, nil
}

// storeExec routes a storage operation through the circuit breaker and maps
// breaker rejections to the engine's unavailability error.
func (e *Engine) storeExec(ctx context.Context, fn func(ctx context.Context) error) error {
	err := e.breaker.Execute(ctx, fn)
	if errors.Is(err, circuitbreaker.ErrCircuitOpen) || errors.Is(err, circuitbreaker.ErrTooManyRequests) {
		return shared.WrapError("engine", "ApplyEvent", shared.ErrEngineUnavailable,
			"progress store circuit open", err)
	}
	return err
}

// validateEvent rejects events whose actor references are structurally
// invalid. Whether the referenced user or route actually exists is the
// caller's responsibility.
func validateEvent(event shared.Event) error {
	invalid := func(msg string) error {
		return shared.WrapError("engine", "ApplyEvent", shared.ErrInvalidInput, msg, nil)
	}

	switch e := event.(type) {
	case shared.AccountCreatedEvent:
		if e.UserID == "" {
			return invalid("account created: user id is required")
		}
	case shared.ProfileChangedEvent:
		if e.UserID == "" {
			return invalid("profile changed: user id is required")
		}
	case shared.RouteCreatedEvent:
		if e.DriverID == "" {
			return invalid("route created: driver id is required")
		}
	case shared.RouteJoinedEvent:
		if e.DriverID == "" || e.PassengerID == "" {
			return invalid("route joined: driver and passenger ids are required")
		}
	case shared.RouteFinalizedEvent:
		if e.DriverID == "" {
			return invalid("route finalized: driver id is required")
		}
	case shared.ValuationGivenEvent:
		if e.GiverID == "" {
			return invalid("valuation given: giver id is required")
		}
	default:
		return invalid(fmt.Sprintf("unsupported event type %q", event.EventType()))
	}
	return nil
}
