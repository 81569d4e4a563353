package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveDispatch("individual", nil)
	m.ObserveDispatch("individual", nil)
	m.ObserveDispatch("bulk", errors.New("gateway down"))
	m.ObserveJob("drain-unlock-queue", time.Second, nil)
	m.ObserveDirective("/ivr/init", "gather")
	m.ObserveOutcome("confirm")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.dispatches.WithLabelValues("individual", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.dispatches.WithLabelValues("bulk", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.jobRuns.WithLabelValues("drain-unlock-queue", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.directives.WithLabelValues("/ivr/init", "gather")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.outcomes.WithLabelValues("confirm")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveDispatch("bulk", nil)
		m.ObserveJob("x", time.Second, nil)
		m.ObserveDirective("/", "hangup")
		m.ObserveOutcome("lock")
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveOutcome("acknowledge")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `prayer_attendance_attendance_outcomes_total{outcome="acknowledge"} 1`)
}
