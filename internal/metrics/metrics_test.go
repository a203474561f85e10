package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveAuthOutcome(t *testing.T) {
	m := New()

	m.ObserveAuthOutcome("authenticate_staff", "success")
	m.ObserveAuthOutcome("authenticate_staff", "success")
	m.ObserveAuthOutcome("authenticate_staff", "locked")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("authenticate_staff", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authOutcomes.WithLabelValues("authenticate_staff", "locked")))
}

func TestObserveMaintenance(t *testing.T) {
	m := New()

	m.ObserveMaintenance("end_due_shifts", nil)
	m.ObserveMaintenance("end_due_shifts", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.maintenanceRuns.WithLabelValues("end_due_shifts", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.maintenanceRuns.WithLabelValues("end_due_shifts", "error")))
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	m := New()
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/shifts/{shiftID}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	for _, id := range []string{"a", "b", "c"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/shifts/"+id, nil))
		require.Equal(t, http.StatusNoContent, rec.Code)
	}

	assert.Equal(t, 3.0, testutil.ToFloat64(m.httpRequestsTotal.WithLabelValues("GET", "/shifts/{shiftID}", "204")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.httpInFlight))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveAuthOutcome("start_shift", "conflict")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, `auth_outcomes_total{operation="start_shift",result="conflict"} 1`))
	assert.Contains(t, body, "go_goroutines")
}
