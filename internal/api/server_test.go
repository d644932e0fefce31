package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress"
	"github.com/miguelmontanez/bbb-roofing-business-scraper/internal/progress/sinks"
)

func seededStatus(t *testing.T) *sinks.StatusSink {
	t.Helper()
	status := sinks.NewStatusSink()
	runID := progress.UUIDToBytes(uuid.New())
	base := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	batch := []progress.Event{
		{RunID: runID, TS: base, Stage: progress.StageRunStart},
		{RunID: runID, TS: base.Add(time.Second), Stage: progress.StageTargetStart, Target: "Chicago, IL"},
		{RunID: runID, TS: base.Add(2 * time.Second), Stage: progress.StageTargetDone, Target: "Chicago, IL", Found: 20, Accepted: 4, Dur: time.Second},
		{RunID: runID, TS: base.Add(3 * time.Second), Stage: progress.StageTargetStart, Target: "Aurora, IL"},
		{RunID: runID, TS: base.Add(4 * time.Second), Stage: progress.StageTargetError, Target: "Aurora, IL", Note: "boom", Dur: time.Second},
		{RunID: runID, TS: base.Add(5 * time.Second), Stage: progress.StageTargetStart, Target: "Naperville, IL"},
	}
	require.NoError(t, status.Consume(context.Background(), batch))
	return status
}

func TestServer_HealthAndReadiness(t *testing.T) {
	t.Parallel()

	server := NewServer(sinks.NewStatusSink(), Config{}, zap.NewNop())
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, path)
		require.NotEmpty(t, rec.Header().Get("X-Request-ID"), path)
	}
}

func TestServer_Metrics(t *testing.T) {
	t.Parallel()

	server := NewServer(sinks.NewStatusSink(), Config{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestServer_GetProgress(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStatus(t), Config{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Run sinks.RunStatus `json:"run"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.True(t, body.Run.Running)
	require.Equal(t, "Naperville, IL", body.Run.CurrentTarget)
	require.Equal(t, int64(1), body.Run.TargetsDone)
	require.Equal(t, int64(1), body.Run.TargetsFailed)
}

func TestServer_ListTargets(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStatus(t), Config{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/targets", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Total   int                  `json:"total"`
		Targets []sinks.TargetStatus `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)
	require.Equal(t, "Chicago, IL", body.Targets[0].Target)
	require.Equal(t, "done", body.Targets[0].Status)
}

func TestServer_ListTargetsFiltersAndPaginates(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStatus(t), Config{}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/targets?status=failed", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Total   int                  `json:"total"`
		Targets []sinks.TargetStatus `json:"targets"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	require.Equal(t, "Aurora, IL", body.Targets[0].Target)

	req = httptest.NewRequest(http.MethodGet, "/v1/targets?limit=1&offset=1", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 3, body.Total)
	require.Len(t, body.Targets, 1)
	require.Equal(t, "Aurora, IL", body.Targets[0].Target)

	req = httptest.NewRequest(http.MethodGet, "/v1/targets?offset=99", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Empty(t, body.Targets)
}

func TestServer_ListTargetsRejectsBadQuery(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStatus(t), Config{}, zap.NewNop())
	for _, q := range []string{"?limit=0", "?limit=abc", "?offset=-1", "?status=bogus"} {
		req := httptest.NewRequest(http.MethodGet, "/v1/targets"+q, nil)
		rec := httptest.NewRecorder()
		server.Handler().ServeHTTP(rec, req)
		require.Equal(t, http.StatusBadRequest, rec.Code, q)
	}
}

func TestServer_APIKeyGuardsV1Only(t *testing.T) {
	t.Parallel()

	server := NewServer(seededStatus(t), Config{APIKey: "sekrit"}, zap.NewNop())

	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	rec := httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	req = httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	req.Header.Set("X-API-Key", "sekrit")
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	// Probes stay open.
	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec = httptest.NewRecorder()
	server.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusHandlerWithoutView(t *testing.T) {
	t.Parallel()

	handler := NewStatusHandler(nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/v1/progress", nil)
	rec := httptest.NewRecorder()
	handler.GetProgress(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
