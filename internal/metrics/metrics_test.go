package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func gatheredSeries(t *testing.T, c prometheus.Collector) int {
	t.Helper()
	reg := prometheus.NewRegistry()
	reg.MustRegister(c)
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	n := 0
	for _, mf := range families {
		n += len(mf.GetMetric())
	}
	return n
}

// TestTimerDuration tests duration measurement
func TestTimerDuration(t *testing.T) {
	timer := NewTimer()
	if timer.start.IsZero() {
		t.Fatal("NewTimer() start time is zero")
	}

	sleepDuration := 20 * time.Millisecond
	time.Sleep(sleepDuration)

	if d := timer.Duration(); d < sleepDuration {
		t.Errorf("Timer.Duration() = %v, want >= %v", d, sleepDuration)
	}
}

// TestTimerObserveDuration tests observation on a plain histogram
func TestTimerObserveDuration(t *testing.T) {
	histogram := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name: "test_timer_seconds",
		Help: "test histogram",
	})

	NewTimer().ObserveDuration(histogram)

	if got := gatheredSeries(t, histogram); got != 1 {
		t.Errorf("expected 1 collected metric, got %d", got)
	}
}

// TestTimerObserveDurationVec tests observation on a labelled histogram
func TestTimerObserveDurationVec(t *testing.T) {
	vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name: "test_timer_vec_seconds",
		Help: "test histogram vec",
	}, []string{"provider"})

	timer := NewTimer()
	timer.ObserveDurationVec(vec, "foursquare")
	timer.ObserveDurationVec(vec, "google_places")

	if got := gatheredSeries(t, vec); got != 2 {
		t.Errorf("expected 2 label sets, got %d", got)
	}
}

// TestHandlerExposesCollectors checks that registered collectors are scraped
func TestHandlerExposesCollectors(t *testing.T) {
	ProviderRequestsTotal.WithLabelValues("foursquare", "places/search", "ok").Inc()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "onthecheap_provider_requests_total") {
		t.Fatalf("expected provider counter in scrape output")
	}
}
