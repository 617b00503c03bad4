package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/ridepool-hub/ridepool-achievements/internal/application/engine"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/shared"
)

const maxBodySize = 64 << 10 // 64 KiB

// Handler bundles the HTTP endpoints of the achievement service.
type Handler struct {
	engine    *engine.Engine
	catalog   achievement.CatalogRepository
	bus       shared.EventBus
	logger    *slog.Logger
	version   string
	startedAt time.Time
}

// NewHandler creates the handler set.
func NewHandler(eng *engine.Engine, catalog achievement.CatalogRepository, bus shared.EventBus, version string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine:    eng,
		catalog:   catalog,
		bus:       bus,
		logger:    logger.With("component", "http_handler"),
		version:   version,
		startedAt: time.Now().UTC(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Health
// ─────────────────────────────────────────────────────────────────────────────

// Health reports liveness.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Event ingestion
// ─────────────────────────────────────────────────────────────────────────────

// ingestRequest is the wire envelope producers POST to /api/v1/events.
// Only the fields relevant to the declared type are read; the rest are
// ignored. ID is optional: producers that retry deliveries should set it so
// duplicates are dropped, otherwise a fresh one is generated.
type ingestRequest struct {
	Type       string    `json:"type"`
	ID         string    `json:"id,omitempty"`
	OccurredAt time.Time `json:"occurred_at,omitempty"`

	UserID           string   `json:"user_id,omitempty"`
	ChangedFields    []string `json:"changed_fields,omitempty"`
	RouteID          string   `json:"route_id,omitempty"`
	DriverID         string   `json:"driver_id,omitempty"`
	PassengerID      string   `json:"passenger_id,omitempty"`
	AlreadyFinalized bool     `json:"already_finalized,omitempty"`
	ValuationID      string   `json:"valuation_id,omitempty"`
	GiverID          string   `json:"giver_id,omitempty"`
	ReceiverID       string   `json:"receiver_id,omitempty"`
}

// IngestEvent accepts a domain event from a platform producer and publishes
// it on the internal bus. 202 means the event was dispatched; idempotent
// duplicate deliveries also return 202.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	event, err := req.toEvent()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.bus.Publish(event); err != nil {
		h.writeEngineError(w, event, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status":   "accepted",
		"event_id": event.EventID(),
	})
}

// toEvent builds the typed domain event described by the envelope.
func (req ingestRequest) toEvent() (shared.Event, error) {
	base := func(eventType shared.EventType, aggregateID string) shared.BaseEvent {
		b := shared.NewBaseEvent(eventType, aggregateID)
		if req.ID != "" {
			b.ID = req.ID
		}
		if !req.OccurredAt.IsZero() {
			b.Timestamp = req.OccurredAt.UTC()
		}
		return b
	}
	if req.ID != "" {
		if _, err := uuid.Parse(req.ID); err != nil {
			return nil, fmt.Errorf("event id must be a UUID")
		}
	}

	switch shared.EventType(req.Type) {
	case shared.EventAccountCreated:
		return shared.AccountCreatedEvent{
			BaseEvent: base(shared.EventAccountCreated, req.UserID),
			UserID:    req.UserID,
		}, nil
	case shared.EventProfileChanged:
		return shared.ProfileChangedEvent{
			BaseEvent:     base(shared.EventProfileChanged, req.UserID),
			UserID:        req.UserID,
			ChangedFields: req.ChangedFields,
		}, nil
	case shared.EventRouteCreated:
		return shared.RouteCreatedEvent{
			BaseEvent: base(shared.EventRouteCreated, req.RouteID),
			RouteID:   req.RouteID,
			DriverID:  req.DriverID,
		}, nil
	case shared.EventRouteJoined:
		return shared.RouteJoinedEvent{
			BaseEvent:   base(shared.EventRouteJoined, req.RouteID),
			RouteID:     req.RouteID,
			DriverID:    req.DriverID,
			PassengerID: req.PassengerID,
		}, nil
	case shared.EventRouteFinalized:
		return shared.RouteFinalizedEvent{
			BaseEvent:        base(shared.EventRouteFinalized, req.RouteID),
			RouteID:          req.RouteID,
			DriverID:         req.DriverID,
			AlreadyFinalized: req.AlreadyFinalized,
		}, nil
	case shared.EventValuationGiven:
		return shared.ValuationGivenEvent{
			BaseEvent:   base(shared.EventValuationGiven, req.ValuationID),
			ValuationID: req.ValuationID,
			GiverID:     req.GiverID,
			ReceiverID:  req.ReceiverID,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported event type %q", req.Type)
	}
}

// writeEngineError maps engine failures to HTTP status codes. Partial
// failures from the per-key batch surface here joined; any unavailability
// inside the join yields 503 so producers redeliver.
func (h *Handler) writeEngineError(w http.ResponseWriter, event shared.Event, err error) {
	h.logger.Error("event processing failed",
		"event_id", event.EventID(),
		"event_type", event.EventType(),
		"error", err,
	)
	switch {
	case errors.Is(err, shared.ErrInvalidInput), errors.Is(err, shared.ErrInvalidID):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, shared.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "progress store unavailable, retry later")
	default:
		writeError(w, http.StatusInternalServerError, "event processing failed")
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Progress queries
// ─────────────────────────────────────────────────────────────────────────────

// ListUserAchievements returns every progress row of a user joined with
// catalog metadata.
func (h *Handler) ListUserAchievements(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("id")

	views, err := h.engine.ListProgress(r.Context(), userID)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrInvalidID):
			writeError(w, http.StatusBadRequest, "user id is required")
		case errors.Is(err, shared.ErrServiceUnavailable):
			writeError(w, http.StatusServiceUnavailable, "progress store unavailable, retry later")
		default:
			h.logger.Error("listing progress failed", "user_id", userID, "error", err)
			writeError(w, http.StatusInternalServerError, "listing progress failed")
		}
		return
	}
	if views == nil {
		views = []*achievement.ProgressView{}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user_id":      userID,
		"achievements": views,
	})
}

// ─────────────────────────────────────────────────────────────────────────────
// Catalog
// ─────────────────────────────────────────────────────────────────────────────

type definitionResponse struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	RequiredPoints int       `json:"required_points"`
	CreatedAt      time.Time `json:"created_at"`
}

func toDefinitionResponse(def *achievement.Definition) definitionResponse {
	return definitionResponse{
		ID:             def.ID,
		Title:          string(def.Title),
		Description:    def.Description,
		RequiredPoints: def.RequiredPoints,
		CreatedAt:      def.CreatedAt,
	}
}

// ListAchievements returns the full catalog.
func (h *Handler) ListAchievements(w http.ResponseWriter, r *http.Request) {
	defs, err := h.catalog.List(r.Context())
	if err != nil {
		h.logger.Error("listing catalog failed", "error", err)
		writeError(w, http.StatusInternalServerError, "listing catalog failed")
		return
	}

	out := make([]definitionResponse, 0, len(defs))
	for _, def := range defs {
		out = append(out, toDefinitionResponse(def))
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"achievements": out})
}

type createAchievementRequest struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	RequiredPoints int    `json:"required_points"`
}

// CreateAchievement registers a new catalog entry. Admin only.
func (h *Handler) CreateAchievement(w http.ResponseWriter, r *http.Request) {
	var req createAchievementRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body")
		return
	}

	def := &achievement.Definition{
		ID:             uuid.NewString(),
		Title:          achievement.Title(req.Title),
		Description:    req.Description,
		RequiredPoints: req.RequiredPoints,
		CreatedAt:      time.Now().UTC(),
	}
	if err := def.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.catalog.Create(r.Context(), def); err != nil {
		if errors.Is(err, shared.ErrAlreadyExists) {
			writeError(w, http.StatusConflict, "achievement title already registered")
			return
		}
		h.logger.Error("creating achievement failed", "title", req.Title, "error", err)
		writeError(w, http.StatusInternalServerError, "creating achievement failed")
		return
	}

	h.logger.Info("achievement registered", "title", req.Title, "required_points", req.RequiredPoints)
	writeJSON(w, http.StatusCreated, toDefinitionResponse(def))
}

// ─────────────────────────────────────────────────────────────────────────────
// Response helpers
// ─────────────────────────────────────────────────────────────────────────────

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
