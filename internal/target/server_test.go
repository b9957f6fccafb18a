package target

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tidwall/gjson"

	"leakcheck/internal/runner"
)

func get(t *testing.T, h http.Handler, url string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, url, nil))
	return rec
}

func TestSafeAPI_ReturnsMatchingIDs(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	rec := get(t, srv.Handler(), "/api/safe?delay=0")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	body := rec.Body.String()
	if gjson.Get(body, "route").String() != "safe" {
		t.Errorf("route = %q", gjson.Get(body, "route").String())
	}
	call1 := gjson.Get(body, "call1RequestId").String()
	if call1 == "" {
		t.Fatal("call1RequestId missing")
	}
	if gjson.Get(body, "call2RequestId").String() != call1 {
		t.Error("second read returned a different client")
	}
	if !gjson.Get(body, "match").Bool() {
		t.Error("expected match=true")
	}
	if gjson.Get(body, "delayMs").Int() != 0 {
		t.Errorf("delayMs = %d", gjson.Get(body, "delayMs").Int())
	}
}

func TestSafePage_IsDecodable(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	rec := get(t, srv.Handler(), "/safe?delay=0")
	body := rec.Body.String()

	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(body, "&quot;call1RequestId&quot;") {
		t.Errorf("page does not entity-encode the document: %s", body)
	}

	id, err := runner.DecodeCorrelationID(rec.Body.Bytes())
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(id) != 36 {
		t.Errorf("id %q is not a uuid", id)
	}
}

func TestSafe_EachRequestGetsItsOwnClient(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		rec := get(t, srv.Handler(), "/api/safe?delay=0")
		id := gjson.Get(rec.Body.String(), "call1RequestId").String()
		if seen[id] {
			t.Fatalf("id %s served twice", id)
		}
		seen[id] = true
	}
}

func TestUnsafe_SequentialRequestsDoNotCollide(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	first := gjson.Get(get(t, srv.Handler(), "/api/unsafe?delay=0").Body.String(), "call1RequestId").String()
	second := gjson.Get(get(t, srv.Handler(), "/api/unsafe?delay=0").Body.String(), "call1RequestId").String()

	if first == "" || first == second {
		t.Errorf("singleton was not reset between requests: %q %q", first, second)
	}
}

func TestUnsafe_PatternField(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	body := get(t, srv.Handler(), "/api/unsafe?delay=0").Body.String()
	if got := gjson.Get(body, "pattern").String(); got != "module singleton" {
		t.Errorf("pattern = %q", got)
	}
}

func TestParseDelay(t *testing.T) {
	tests := []struct {
		query string
		want  time.Duration
	}{
		{"", DefaultDelay},
		{"delay=abc", DefaultDelay},
		{"delay=-5", DefaultDelay},
		{"delay=0", 0},
		{"delay=250", 250 * time.Millisecond},
	}

	for _, tt := range tests {
		r := httptest.NewRequest(http.MethodGet, "/safe?"+tt.query, nil)
		if got := parseDelay(r, DefaultDelay); got != tt.want {
			t.Errorf("parseDelay(%q) = %v, want %v", tt.query, got, tt.want)
		}
	}
}

func TestRateLimit_Returns429(t *testing.T) {
	srv := New(ServerConfig{RateLimit: 2}, nil)

	var limited int
	for i := 0; i < 10; i++ {
		if get(t, srv.Handler(), "/api/safe?delay=0").Code == http.StatusTooManyRequests {
			limited++
		}
	}
	if limited == 0 {
		t.Error("expected some requests to be rate limited")
	}
}

func TestMetrics_CountRequests(t *testing.T) {
	srv := New(ServerConfig{}, nil)
	get(t, srv.Handler(), "/api/safe?delay=0")
	get(t, srv.Handler(), "/safe?delay=0")

	rec := get(t, srv.Handler(), "/metrics")
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `leakcheck_target_requests_total{route="safe"} 2`) {
		t.Errorf("metrics missing request count:\n%s", body)
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := New(ServerConfig{}, nil)

	if rec := get(t, srv.Handler(), "/"); rec.Code != http.StatusOK {
		t.Errorf("GET / = %d", rec.Code)
	}
	rec := get(t, srv.Handler(), "/health")
	if gjson.Get(rec.Body.String(), "status").String() != "healthy" {
		t.Errorf("health body = %s", rec.Body.String())
	}
	if rec := get(t, srv.Handler(), "/nope"); rec.Code != http.StatusNotFound {
		t.Errorf("GET /nope = %d, want 404", rec.Code)
	}
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	srv := New(ServerConfig{Port: 0}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("ListenAndServe() = %v", err)
		}
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
