package httpapi

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/marketpulse/corelens/internal/types"
)

type fakeHealth struct {
	snap HealthSnapshot
}

func (f fakeHealth) Health() HealthSnapshot { return f.snap }

func TestHealthEndpointReportsSnapshot(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s := New("127.0.0.1:0", fakeHealth{snap: HealthSnapshot{
		LastTickAt: now, LastSignal: types.Buy, TicksRun: 10, TicksAborted: 1, LastAbortCause: "data_stale",
	}})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "BUY", body["last_signal"])
	require.Equal(t, float64(10), body["ticks_run"])
}

func TestMetricsEndpointServesPrometheusFormat(t *testing.T) {
	s := New("127.0.0.1:0", fakeHealth{})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "go_goroutines")
}
