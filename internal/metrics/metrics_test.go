package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()
	m.IncrCacheHit("summary")
	m.IncrCacheHit("summary")
	m.IncrCacheMiss("summary")
	m.ObserveQuery("period_summary", "error", time.Millisecond)
	m.IncrSourceError("fetch_expenses")
	m.IncrEvent("published", "ok")

	if got := testutil.ToFloat64(m.cacheHits.WithLabelValues("summary")); got != 2 {
		t.Fatalf("cache hits = %v", got)
	}
	if got := testutil.ToFloat64(m.queryTotal.WithLabelValues("period_summary", "error")); got != 1 {
		t.Fatalf("query errors = %v", got)
	}
	if got := testutil.ToFloat64(m.sourceErrors.WithLabelValues("fetch_expenses")); got != 1 {
		t.Fatalf("source errors = %v", got)
	}
}

func TestNewTwiceDoesNotPanic(t *testing.T) {
	_ = New()
	_ = New()
}

func TestNilMetricsAreNoOps(t *testing.T) {
	var m *Metrics
	m.IncrCacheHit("x")
	m.ObserveQuery("q", "success", time.Second)
	m.ObserveHTTP("GET", "/", 200, time.Second)
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/periods/{period}/summary", 200, 10*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `saldo_http_requests_total{code="200",method="GET",route="/api/periods/{period}/summary"} 1`) {
		t.Fatalf("metric not exposed:\n%s", body)
	}
}
