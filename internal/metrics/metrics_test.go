package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandler_ExposesCollectors(t *testing.T) {
	NotificationsTotal.WithLabelValues("budget_alert", OutcomeCreated).Inc()
	SweepsTotal.WithLabelValues("budget", SweepSucceeded).Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	for _, name := range []string{"finwatch_notifications_total", "finwatch_sweeps_total", "go_goroutines"} {
		if !strings.Contains(string(body), name) {
			t.Errorf("expected %s in exposition output", name)
		}
	}
}

func TestCounters(t *testing.T) {
	before := testutil.ToFloat64(EntityFailures.WithLabelValues("goal"))
	EntityFailures.WithLabelValues("goal").Inc()
	if got := testutil.ToFloat64(EntityFailures.WithLabelValues("goal")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}
