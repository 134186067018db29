package trace

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"saldo/internal/log"
	"saldo/internal/metrics"
)

func TestMiddlewareRecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Format: "json", Output: &buf})
	m := metrics.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(NewMiddleware(logger, m, nil).Middleware)
	r.Get("/api/periods/{period}/summary", func(w http.ResponseWriter, r *http.Request) {
		if GetRequestID(r.Context()) == "" {
			t.Error("request id missing")
		}
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/periods/062024/summary", nil))

	if rec.Code != http.StatusTeapot {
		t.Fatalf("code = %d", rec.Code)
	}
	if !strings.Contains(buf.String(), `"route":"/api/periods/{period}/summary"`) {
		t.Fatalf("log = %s", buf.String())
	}

	expected := `
# HELP saldo_http_requests_total HTTP requests by route and status code.
# TYPE saldo_http_requests_total counter
saldo_http_requests_total{code="418",method="GET",route="/api/periods/{period}/summary"} 1
`
	if err := testutil.GatherAndCompare(m.Registry, strings.NewReader(expected), "saldo_http_requests_total"); err != nil {
		t.Fatal(err)
	}
}

func TestRoutePatternWithoutRouter(t *testing.T) {
	if got := RoutePattern(httptest.NewRequest(http.MethodGet, "/x", nil)); got != "unmatched" {
		t.Fatalf("RoutePattern = %q", got)
	}
}
