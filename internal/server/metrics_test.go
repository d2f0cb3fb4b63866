package server

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/raglab-go/internal/pipeline"
)

func TestMetrics_ChatOutcomeCounted(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := newChatTestServer(&fakeRunner{result: pipeline.Result{Response: "ok"}})
	s.metrics = newServerMetrics(reg)

	w := httptest.NewRecorder()
	s.handleChat(w, postJSON("/api/chat", `{"conversation_id":"c1","message":"q"}`))

	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("chat ok counter = %v, want 1", got)
	}
	if got := testutil.ToFloat64(s.metrics.chatActiveStreams); got != 0 {
		t.Errorf("active streams after completion = %v, want 0", got)
	}
	if n := testutil.CollectAndCount(s.metrics.chatDurationSeconds); n != 1 {
		t.Errorf("duration series = %d, want 1", n)
	}
}

func TestMetrics_InstrumentLabelsByHandler(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	h := s.instrument("segment", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/segment", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/segment", nil))

	got := testutil.ToFloat64(s.metrics.httpRequestsTotal.WithLabelValues(http.MethodPost, "segment", "400"))
	if got != 2 {
		t.Errorf("segment 400 counter = %v, want 2", got)
	}
}

func TestMetrics_RateLimitedThroughServer(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(Deps{Pipeline: &fakeRunner{}}, &Config{
		RateLimit:       0.001,
		RateBurst:       1,
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.stopRL)

	for range 3 {
		s.Handler().ServeHTTP(httptest.NewRecorder(), postJSON("/api/route", `{"message":"q"}`))
	}
	if got := testutil.ToFloat64(s.metrics.rateLimitedTotal.WithLabelValues("route")); got != 2 {
		t.Errorf("route rate limited counter = %v, want 2", got)
	}

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	for _, name := range []string{"raglab_http_rate_limited_total", "raglab_http_requests_total"} {
		if !strings.Contains(w.Body.String(), name) {
			t.Errorf("/metrics output missing %s", name)
		}
	}
}
