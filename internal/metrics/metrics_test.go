package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	return string(body)
}

func TestGaugesReflectCounters(t *testing.T) {
	m := New()
	m.DetectionsStored.Add(3)
	m.PersistErrors.Add(1)
	m.SourceDropped.Store(5)
	m.ObserveTick(42 * time.Millisecond)

	out := scrape(t, m)
	for _, want := range []string{
		"parking_detections_recorded_total 3",
		"parking_persist_errors_total 1",
		"parking_source_dropped_total 5",
		"parking_ingest_ticks_total 1",
		"parking_ingest_tick_latency_ms 42",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing %q in:\n%s", want, out)
		}
	}
}

func TestMiddlewareCountsRoutes(t *testing.T) {
	m := New()
	e := echo.New()
	e.Use(m.Middleware())
	e.GET("/spots/:id", func(c echo.Context) error { return c.NoContent(http.StatusNotFound) })

	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/spots/Z9", nil))
	}
	out := scrape(t, m)
	want := `parking_http_requests_total{method="GET",route="/spots/:id",status="404"} 2`
	if !strings.Contains(out, want) {
		t.Fatalf("missing %q in:\n%s", want, out)
	}
}
