package metrics_test

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/raysh454/rankdesk/internal/audit"
	"github.com/raysh454/rankdesk/internal/metrics"
	"github.com/raysh454/rankdesk/internal/model"
)

func TestMetrics_Counters(t *testing.T) {
	m := metrics.New()

	m.AuditStarted()
	m.AuditStarted()
	m.AuditFinished(model.AuditFailed, model.ReasonTimeout)
	m.TaskCreated(audit.BrokenPages)
	m.ObserveRequest("GET", "/api/audits/{id}", 200)

	if got := testutil.ToFloat64(m.AuditsStarted); got != 2 {
		t.Errorf("audits started = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.AuditsFinished.WithLabelValues("failed", "timeout")); got != 1 {
		t.Errorf("audits finished = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.TasksCreated.WithLabelValues("broken_pages")); got != 1 {
		t.Errorf("tasks created = %v, want 1", got)
	}
}

func TestMetrics_Handler(t *testing.T) {
	m := metrics.New()
	m.ObserveRequest("POST", "/api/audits", 201)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	want := `rankdesk_http_requests_total{code="201",method="POST",route="/api/audits"} 1`
	if !strings.Contains(string(body), want) {
		t.Errorf("exposition missing %q", want)
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("expected Go runtime collector output")
	}
}
