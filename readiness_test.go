package backstop

import (
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
)

func TestReadinessHandlerHealthy(t *testing.T) {
	reg := NewRegistry()
	reg.Register(healthyReporter("api"))

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("Content-Type = %q", ct)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !status.Ready || len(status.Policies) != 1 {
		t.Fatalf("body = %+v", status)
	}
}

func TestReadinessHandlerUnhealthy(t *testing.T) {
	reg := NewRegistry()
	reg.Register(criticalReporter("payments"))

	rec := httptest.NewRecorder()
	ReadinessHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}

	var status ReadinessStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if status.Ready {
		t.Fatal("body claims ready while a critical policy is down")
	}
	if status.Policies[0].State != "circuit_open" {
		t.Fatalf("policy state = %q", status.Policies[0].State)
	}
}
