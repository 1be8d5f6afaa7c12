package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
)

func TestInitIsIdempotent(t *testing.T) {
	// Double registration would panic via MustRegister
	Init()
	Init()
}

func TestHandlerServesCounters(t *testing.T) {
	Init()
	RunsTotal.WithLabelValues("success").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("Expected status 200, got %d", rec.Code)
	}

	body := rec.Body.String()
	if !strings.Contains(body, "simm_runs_total") {
		t.Error("Expected simm_runs_total in metrics output")
	}
}
