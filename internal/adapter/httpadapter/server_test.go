package httpadapter_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gasparespejo/EFILabs/internal/adapter/httpadapter"
	"github.com/gasparespejo/EFILabs/internal/observability"
	"github.com/gasparespejo/EFILabs/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRuns struct {
	status *pipeline.RunStatus
}

func (m *mockRuns) LastRun() (pipeline.RunStatus, bool) {
	if m.status == nil {
		return pipeline.RunStatus{}, false
	}
	return *m.status, true
}

func newTestServer(readyErr error, runs *mockRuns) *httpadapter.Server {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsForTesting()
	reg.MustRegister(m.RunsTotal)
	m.RunsTotal.WithLabelValues("success").Inc()
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, runs, reg, slog.Default())
}

func get(t *testing.T, srv http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockRuns{}), "/healthz")

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name     string
		readyErr error
		code     int
		status   string
	}{
		{"ready", nil, http.StatusOK, "ready"},
		{"not ready", fmt.Errorf("pipeline has not completed a run yet"), http.StatusServiceUnavailable, "not ready"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(t, newTestServer(tt.readyErr, &mockRuns{}), "/readyz")

			assert.Equal(t, tt.code, rec.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.status, body["status"])
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := get(t, newTestServer(nil, &mockRuns{}), "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `tire_etl_runs_total{outcome="success"} 1`)
}

func TestLatestRun(t *testing.T) {
	t.Run("no run yet", func(t *testing.T) {
		rec := get(t, newTestServer(nil, &mockRuns{}), "/runs/latest")
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("finished run", func(t *testing.T) {
		status := &pipeline.RunStatus{
			RunID:     "run-1",
			StartedAt: time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC),
			Outcome:   pipeline.OutcomePartial,
			Accepted:  []string{"nazar.csv"},
			Rejected:  []pipeline.FileError{{File: "roto.csv", Reason: "malformed file"}},
			Records:   4,
			Estados:   map[string]int{"OK": 1, "SUBINFLADO": 2},
		}
		rec := get(t, newTestServer(nil, &mockRuns{status: status}), "/runs/latest")

		assert.Equal(t, http.StatusOK, rec.Code)
		var got pipeline.RunStatus
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
		assert.Equal(t, *status, got)
	})
}
