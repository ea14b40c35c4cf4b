package metrics_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/fluxorio/asyncnet/pkg/telemetry/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

func TestRecordHTTPRequest(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "2xx", 10*time.Millisecond, 128, 4096)
	m.RecordHTTPRequest("POST", "4xx", 5*time.Millisecond, 64, 32)
	// No panic means the label sets matched what NewMetrics registered.
}

func TestRecordWSMessage(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.RecordWSMessage("sent", 0)
	m.RecordWSMessage("received", 15*time.Millisecond)
}

func TestRecordJournalWrite(t *testing.T) {
	m := metrics.NewMetrics(prometheus.NewRegistry())
	m.RecordJournalWrite("fs", time.Millisecond, nil)
	m.RecordJournalWrite("sql", time.Millisecond, errTest)
}

var errTest = &testError{}

type testError struct{}

func (*testError) Error() string { return "boom" }

func TestCustomCounterIsLazilyRegisteredOnce(t *testing.T) {
	m := metrics.GetMetrics()
	c1 := m.Counter("asyncnet_test_custom_total", "test counter", "label")
	c2 := m.Counter("asyncnet_test_custom_total", "test counter", "label")
	if c1 != c2 {
		t.Fatal("Counter registered the same name twice instead of returning the cached collector")
	}
}

func TestHandlerServesPrometheusFormat(t *testing.T) {
	metrics.GetMetrics().RecordHTTPRequest("GET", "2xx", time.Millisecond, 1, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "asyncnet_http_requests_total") {
		t.Fatal("expected exposition output to include asyncnet_http_requests_total")
	}
}
