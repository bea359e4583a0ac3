package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestHandlerExposesCounters(t *testing.T) {
	// Arrange
	m := New()
	m.Messages.WithLabelValues(OutcomeRetained).Inc()
	m.Messages.WithLabelValues(OutcomeCleaned).Add(2)
	m.SinkErrors.Inc()

	// Act
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	// Assert
	for _, want := range []string{
		`telescan_messages_total{outcome="retained"} 1`,
		`telescan_messages_total{outcome="cleaned"} 2`,
		`telescan_sink_errors_total 1`,
	} {
		if !strings.Contains(string(body), want) {
			t.Errorf("expected %q in metrics output", want)
		}
	}
}

func TestNewUsesPrivateRegistry(t *testing.T) {
	// Two pipelines in one process must not collide on registration.
	New()
	New()
}
