package health

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"remindbot/internal/reminder"
)

func collector(status string) Collector {
	return func() Snapshot {
		return Snapshot{
			Status:    status,
			StartedAt: time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
			Reminders: reminder.StoreStats{Owners: 2, Reminders: 5},
			Cadence:   "every 3s",
		}
	}
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	tests := []struct {
		status string
		code   int
	}{
		{"ok", http.StatusOK},
		{"starting", http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		h := Handler(Config{}, collector(tt.status))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
		if rr.Code != tt.code {
			t.Fatalf("status %q: code = %d, want %d", tt.status, rr.Code, tt.code)
		}
		var got Snapshot
		if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
			t.Fatal(err)
		}
		if got.Reminders.Reminders != 5 || got.Cadence != "every 3s" {
			t.Fatalf("body = %+v", got)
		}
	}
}

func TestBearerToken(t *testing.T) {
	t.Parallel()
	h := Handler(Config{Token: "s3cret"}, collector("ok"))
	tests := []struct {
		name string
		mod  func(*http.Request)
		code int
	}{
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"wrong", func(r *http.Request) { r.Header.Set("Authorization", "Bearer nope") }, http.StatusUnauthorized},
		{"header", func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") }, http.StatusOK},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=s3cret" }, http.StatusOK},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		tt.mod(req)
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		if rr.Code != tt.code {
			t.Errorf("%s: code = %d, want %d", tt.name, rr.Code, tt.code)
		}
	}
}

func TestPprofMountedOnlyWhenEnabled(t *testing.T) {
	t.Parallel()
	for _, on := range []bool{false, true} {
		h := Handler(Config{Pprof: on}, collector("ok"))
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/debug/pprof/", nil))
		if got := rr.Code == http.StatusOK; got != on {
			t.Fatalf("pprof=%v: code = %d", on, rr.Code)
		}
	}
}
