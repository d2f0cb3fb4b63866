package server

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

// okHandler answers 200 so tests can tell pass-through from rejection.
var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func chatFrom(addr string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/chat", nil)
	req.RemoteAddr = addr
	return req
}

func TestRateLimiter_BurstThenReject(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 3, slog.Default())
	defer stop()

	var rejected []string
	rl.onReject = func(h string) { rejected = append(rejected, h) }
	h := rl.wrap("chat", okHandler)

	for i := range 3 {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, chatFrom("10.0.0.1:5000"))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d within burst: status %d", i, w.Code)
		}
	}

	w := httptest.NewRecorder()
	h.ServeHTTP(w, chatFrom("10.0.0.1:5001"))
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429", w.Code)
	}
	if len(rejected) != 1 || rejected[0] != "chat" {
		t.Errorf("onReject calls = %v, want [chat]", rejected)
	}

	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode 429 body: %v", err)
	}
	if body.Error == "" {
		t.Error("429 body has no error message")
	}
	// 0.001 rps means a wait far beyond the one hour cap.
	if got := w.Header().Get("Retry-After"); got != "3600" {
		t.Errorf("Retry-After = %q, want 3600", got)
	}
}

func TestRateLimiter_RejectedRequestKeepsNoToken(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(1, 1, slog.Default())
	defer stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }

	if wait := rl.reserve("a"); wait != 0 {
		t.Fatalf("first reserve waited %v", wait)
	}
	for range 5 {
		if wait := rl.reserve("a"); wait <= 0 {
			t.Fatal("empty bucket should report a wait")
		}
	}

	// Cancelled reservations return their tokens, so one second refills
	// exactly one request.
	now = now.Add(time.Second)
	if wait := rl.reserve("a"); wait != 0 {
		t.Errorf("reserve after refill waited %v", wait)
	}
}

func TestRateLimiter_ClientsAreIsolated(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(0.001, 1, slog.Default())
	defer stop()
	h := rl.wrap("route", okHandler)

	for range 3 {
		h.ServeHTTP(httptest.NewRecorder(), chatFrom("192.168.1.1:1111"))
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, chatFrom("192.168.1.2:2222"))
	if w.Code != http.StatusOK {
		t.Errorf("second client status = %d, want 200", w.Code)
	}
	if n := rl.size(); n != 2 {
		t.Errorf("tracked clients = %d, want 2", n)
	}
}

func TestRateLimiter_SweepDropsIdleClients(t *testing.T) {
	t.Parallel()

	rl, stop := newRateLimiter(5, 5, slog.Default())
	defer stop()

	now := time.Unix(1_700_000_000, 0)
	rl.now = func() time.Time { return now }
	rl.reserve("old")

	now = now.Add(idleTTL - time.Second)
	rl.reserve("recent")

	now = now.Add(2 * time.Second)
	if dropped := rl.sweep(); dropped != 1 {
		t.Errorf("sweep dropped %d, want 1", dropped)
	}
	if n := rl.size(); n != 1 {
		t.Errorf("tracked clients after sweep = %d, want 1", n)
	}
}

func TestRetryAfterSeconds(t *testing.T) {
	t.Parallel()

	cases := map[time.Duration]int{
		time.Millisecond:        1,
		time.Second:             1,
		1500 * time.Millisecond: 2,
		2 * time.Hour:           3600,
	}
	for wait, want := range cases {
		if got := retryAfterSeconds(wait); got != want {
			t.Errorf("retryAfterSeconds(%v) = %d, want %d", wait, got, want)
		}
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"127.0.0.1:54321": "127.0.0.1",
		"[::1]:8080":      "::1",
		"::1:8080":        "::1",
		"noport":          "noport",
	}
	for remote, want := range cases {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = remote
		if got := clientIP(req); got != want {
			t.Errorf("clientIP(%q) = %q, want %q", remote, got, want)
		}
	}
}
