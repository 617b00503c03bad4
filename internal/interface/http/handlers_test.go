package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/ridepool-hub/ridepool-achievements/internal/application/engine"
	"github.com/ridepool-hub/ridepool-achievements/internal/domain/achievement"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/messaging"
	"github.com/ridepool-hub/ridepool-achievements/internal/infrastructure/persistence/memory"
)

const testAdminKey = "sesame"

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	catalog, err := memory.NewSeededCatalog(memory.SeedDefinitions()...)
	require.NoError(t, err)
	store := memory.NewProgressStore(catalog)

	eng, err := engine.New(engine.Config{Catalog: catalog, Store: store})
	require.NoError(t, err)

	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { bus.Close() })
	require.NoError(t, eng.Subscribe(bus))

	keyHash, err := bcrypt.GenerateFromPassword([]byte(testAdminKey), bcrypt.MinCost)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(eng, catalog, bus, "test", logger)

	cfg := DefaultConfig()
	cfg.AdminKeyHash = string(keyHash)
	return newRouter(cfg, handler, logger)
}

func doJSON(t *testing.T, router http.Handler, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "test", body["version"])
}

func TestIngestAndListFlow(t *testing.T) {
	router := newTestRouter(t)

	// Five valuations complete Critic.
	for i := 0; i < 5; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/events", map[string]interface{}{
			"type":         "valuation.given",
			"valuation_id": fmt.Sprintf("val-%d", i),
			"giver_id":     "giver-1",
			"receiver_id":  "receiver-1",
		}, nil)
		require.Equal(t, http.StatusAccepted, rec.Code, rec.Body.String())
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/giver-1/achievements", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		UserID       string                     `json:"user_id"`
		Achievements []*achievement.ProgressView `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "giver-1", body.UserID)
	require.Len(t, body.Achievements, 1)
	assert.Equal(t, achievement.TitleCritic, body.Achievements[0].Title)
	assert.Equal(t, 5, body.Achievements[0].Progress)
	assert.True(t, body.Achievements[0].Achieved)
	assert.NotNil(t, body.Achievements[0].DateAchieved)
}

func TestIngestDuplicateDelivery(t *testing.T) {
	router := newTestRouter(t)

	event := map[string]interface{}{
		"type":         "valuation.given",
		"id":           "3e7f8a44-7a39-4d44-9d6e-0c2a8b3f1d11",
		"valuation_id": "val-1",
		"giver_id":     "giver-1",
		"receiver_id":  "receiver-1",
	}

	for i := 0; i < 3; i++ {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/events", event, nil)
		require.Equal(t, http.StatusAccepted, rec.Code)
	}

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/giver-1/achievements", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Achievements []*achievement.ProgressView `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Achievements, 1)
	assert.Equal(t, 1, body.Achievements[0].Progress, "redelivered event must count once")
}

func TestIngestRejectsBadRequests(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			name: "unsupported type",
			body: map[string]interface{}{"type": "billing.invoiced"},
		},
		{
			name: "missing actor",
			body: map[string]interface{}{"type": "route.created", "route_id": "route-1"},
		},
		{
			name: "non uuid event id",
			body: map[string]interface{}{
				"type":     "route.created",
				"id":       "not-a-uuid",
				"route_id": "route-1", "driver_id": "driver-1",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/events", tt.body, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestListUnknownUserIsEmpty(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/users/nobody/achievements", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Achievements []*achievement.ProgressView `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Empty(t, body.Achievements)
}

func TestCatalogListing(t *testing.T) {
	router := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/api/v1/achievements", nil, nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Achievements []definitionResponse `json:"achievements"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body.Achievements, len(memory.SeedDefinitions()))
}

func TestAdminCreateAchievement(t *testing.T) {
	router := newTestRouter(t)

	payload := map[string]interface{}{
		"title":           "NightOwl",
		"description":     "Publish a route after midnight",
		"required_points": 3,
	}

	t.Run("rejects missing key", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", payload, nil)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("rejects wrong key", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", payload,
			map[string]string{"X-API-Key": "wrong"})
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("creates with valid key", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", payload,
			map[string]string{"X-API-Key": testAdminKey})
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		var created definitionResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.Equal(t, "NightOwl", created.Title)
		assert.NotEmpty(t, created.ID)
	})

	t.Run("duplicate title conflicts", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", payload,
			map[string]string{"X-API-Key": testAdminKey})
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("invalid threshold rejected", func(t *testing.T) {
		rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", map[string]interface{}{
			"title":           "Freebie",
			"required_points": 0,
		}, map[string]string{"X-API-Key": testAdminKey})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestAdminDisabledWithoutKeyHash(t *testing.T) {
	catalog, err := memory.NewSeededCatalog(memory.SeedDefinitions()...)
	require.NoError(t, err)
	store := memory.NewProgressStore(catalog)

	eng, err := engine.New(engine.Config{Catalog: catalog, Store: store})
	require.NoError(t, err)
	bus := messaging.NewInMemoryEventBus(messaging.InMemoryEventBusConfig{})
	t.Cleanup(func() { bus.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewHandler(eng, catalog, bus, "test", logger)
	router := newRouter(DefaultConfig(), handler, logger)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/admin/achievements", map[string]interface{}{
		"title":           "NightOwl",
		"required_points": 3,
	}, map[string]string{"X-API-Key": "anything"})

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
