package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/router"
)

// ---------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------

// fakeRunner implements the runner interface and records the last request.
type fakeRunner struct {
	mu     sync.Mutex
	result pipeline.Result
	last   pipeline.Request
	routed bool
}

func (f *fakeRunner) Run(_ context.Context, req pipeline.Request) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last, f.routed = req, false
	return f.result
}

func (f *fakeRunner) RunRouted(_ context.Context, req pipeline.Request) pipeline.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.last, f.routed = req, true
	return f.result
}

// fakeHistory is an in-memory historyReader.
type fakeHistory struct {
	turns   map[string][]memory.Turn
	err     error
	deleted []string
}

func (f *fakeHistory) Read(_ context.Context, id string) ([]memory.Turn, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.turns[id], nil
}

func (f *fakeHistory) Delete(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = append(f.deleted, id)
	delete(f.turns, id)
	return nil
}

// fakeRouteFinder returns a fixed decision.
type fakeRouteFinder struct {
	decision *router.RouteDecision
	err      error
}

func (f *fakeRouteFinder) Route(context.Context, string) (*router.RouteDecision, error) {
	return f.decision, f.err
}

// newTestServer builds a *Server with a no-op runner and isolated metrics.
func newTestServer() *Server {
	return newChatTestServer(&fakeRunner{})
}

// newChatTestServer builds a *Server wired with the given runner fake.
func newChatTestServer(r runner) *Server {
	return &Server{
		runner:  r,
		cfg:     &Config{Port: 8080},
		log:     slog.Default(),
		metrics: newServerMetrics(prometheus.NewRegistry()),
	}
}

func postJSON(path, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// ---------------------------------------------------------------------------
// POST /api/chat: validation error paths
// ---------------------------------------------------------------------------

func TestHandleChat_BadRequests(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"invalid json":            `not-json`,
		"missing message":         `{"conversation_id":"c1"}`,
		"blank message":           `{"conversation_id":"c1","message":"   "}`,
		"missing conversation id": `{"message":"hi"}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			s := newTestServer()
			w := httptest.NewRecorder()
			s.handleChat(w, postJSON("/api/chat", body))
			if w.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", w.Code)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/chat: SSE stream
// ---------------------------------------------------------------------------

// TestHandleChat_Success verifies that a valid request produces an SSE stream
// with the response as data lines and a final done event.
// httptest.ResponseRecorder implements http.Flusher.
func TestHandleChat_Success(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{result: pipeline.Result{Response: "RAG combina\nbusca e geração.", Prompt: "<query>q</query>"}}
	s := newChatTestServer(r)

	w := httptest.NewRecorder()
	s.handleChat(w, postJSON("/api/chat", `{"conversation_id":"c1","message":"O que é RAG?","dataset":"docs"}`))

	body := w.Body.String()
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type: got %q", ct)
	}
	if !strings.Contains(body, "data: RAG combina\ndata: busca e geração.\n\n") {
		t.Errorf("expected multi-line data frame, got: %s", body)
	}
	if !strings.Contains(body, "event: done\ndata: [DONE]") {
		t.Errorf("expected SSE done event in body, got: %s", body)
	}
	if strings.Contains(body, "event: prompt") {
		t.Errorf("prompt must only be sent in debug mode, got: %s", body)
	}
	if r.routed || r.last.Dataset != "docs" || r.last.ConversationID != "c1" {
		t.Errorf("runner got routed=%v req=%+v", r.routed, r.last)
	}
	if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues("ok")); got != 1 {
		t.Errorf("chat ok counter: got %v", got)
	}
}

func TestHandleChat_DebugWarningsAndRoute(t *testing.T) {
	t.Parallel()

	r := &fakeRunner{result: pipeline.Result{
		Response: "answer",
		Prompt:   "<chunks>\nc\n</chunks>",
		Warnings: []string{"Nenhum chunk recuperado"},
		Decision: &router.RouteDecision{Dataset: "direito_constitucional", Locale: "pt-br", Query: "q"},
	}}
	s := newChatTestServer(r)

	w := httptest.NewRecorder()
	s.handleChat(w, postJSON("/api/chat", `{"conversation_id":"c1","message":"q","route":true,"debug":true}`))

	body := w.Body.String()
	for _, want := range []string{
		"event: route\ndata: {\"dataset_name\":\"direito_constitucional\"",
		"event: warning\ndata: Nenhum chunk recuperado",
		"event: prompt\ndata: <chunks>\ndata: c\ndata: </chunks>",
		"event: done",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("expected %q in body, got: %s", want, body)
		}
	}
	if !r.routed {
		t.Error("expected RunRouted to be called")
	}
}

// TestHandleChat_PipelineError verifies that a failed run produces an error
// event carrying the user-facing message and no done event.
func TestHandleChat_PipelineError(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		err     error
		outcome string
	}{
		{"generation", errors.New("LLM unavailable"), "error"},
		{"timeout", fmt.Errorf("%w: %w", pipeline.ErrTimeout, context.DeadlineExceeded), "timeout"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			s := newChatTestServer(&fakeRunner{result: pipeline.Result{Response: "Erro: falhou.", Err: tc.err}})

			w := httptest.NewRecorder()
			s.handleChat(w, postJSON("/api/chat", `{"conversation_id":"c1","message":"q"}`))

			body := w.Body.String()
			if !strings.Contains(body, "event: error\ndata: Erro: falhou.") {
				t.Errorf("expected error event, got: %s", body)
			}
			if strings.Contains(body, "event: done") {
				t.Errorf("unexpected done event: %s", body)
			}
			if strings.Contains(body, tc.err.Error()) {
				t.Errorf("internal error leaked to client: %s", body)
			}
			if got := testutil.ToFloat64(s.metrics.chatRequestsTotal.WithLabelValues(tc.outcome)); got != 1 {
				t.Errorf("outcome %q counter: got %v", tc.outcome, got)
			}
		})
	}
}

// ---------------------------------------------------------------------------
// POST /api/route
// ---------------------------------------------------------------------------

func TestHandleRoute(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	w := httptest.NewRecorder()
	s.handleRoute(w, postJSON("/api/route", `{"query":"x"}`))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("no router: expected 501, got %d", w.Code)
	}

	s.router = &fakeRouteFinder{decision: &router.RouteDecision{Dataset: "synthetic_dataset_papers", Locale: "en", Query: "x"}}
	w = httptest.NewRecorder()
	s.handleRoute(w, postJSON("/api/route", `{"query":"x"}`))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var got router.RouteDecision
	if err := json.NewDecoder(w.Body).Decode(&got); err != nil {
		t.Fatal(err)
	}
	if got.Dataset != "synthetic_dataset_papers" || got.Locale != "en" {
		t.Errorf("decision: got %+v", got)
	}

	s.router = &fakeRouteFinder{err: router.ErrMalformedDecision}
	w = httptest.NewRecorder()
	s.handleRoute(w, postJSON("/api/route", `{"query":"x"}`))
	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("malformed: expected 422, got %d", w.Code)
	}

	w = httptest.NewRecorder()
	s.handleRoute(w, postJSON("/api/route", `{"query":""}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty query: expected 400, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// /api/conversations/{id}
// ---------------------------------------------------------------------------

func TestHandleConversation(t *testing.T) {
	t.Parallel()

	h := &fakeHistory{turns: map[string][]memory.Turn{
		"c1": {
			{Role: memory.RoleAssistant, Content: "second"},
			{Role: memory.RoleUser, Content: "first"},
		},
	}}
	s := newTestServer()
	s.history = h

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1", nil)
	req.SetPathValue("id", "c1")
	w := httptest.NewRecorder()
	s.handleConversation(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var resp conversationResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Turns) != 2 || resp.Turns[0].Content != "first" || resp.Turns[1].Content != "second" {
		t.Errorf("expected chronological turns, got %+v", resp.Turns)
	}
	// The store's slice is not reordered in place.
	if h.turns["c1"][0].Content != "second" {
		t.Error("handler mutated the stored slice")
	}

	req = httptest.NewRequest(http.MethodDelete, "/api/conversations/c1", nil)
	req.SetPathValue("id", "c1")
	w = httptest.NewRecorder()
	s.handleConversationDelete(w, req)
	if w.Code != http.StatusNoContent {
		t.Errorf("delete: expected 204, got %d", w.Code)
	}
	if len(h.deleted) != 1 || h.deleted[0] != "c1" {
		t.Errorf("deleted: got %v", h.deleted)
	}
}

func TestHandleConversation_StoreError(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.history = &fakeHistory{err: errors.New("disk full")}

	req := httptest.NewRequest(http.MethodGet, "/api/conversations/c1", nil)
	req.SetPathValue("id", "c1")
	w := httptest.NewRecorder()
	s.handleConversation(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "disk full") {
		t.Error("store error leaked to client")
	}
}

// ---------------------------------------------------------------------------
// POST /api/segment
// ---------------------------------------------------------------------------

func TestHandleSegment(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.Chunking.ChunkSize, s.cfg.Chunking.Overlap = 50, 10

	text := strings.Repeat("Frase curta de teste. ", 20)
	body, _ := json.Marshal(segmentRequest{Text: text, Source: map[string]string{"source": "inline"}})
	w := httptest.NewRecorder()
	s.handleSegment(w, postJSON("/api/segment", string(body)))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body: %s", w.Code, w.Body.String())
	}
	var resp segmentResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Settings.ChunkSize != 50 || resp.Settings.Step != 40 {
		t.Errorf("settings: got %+v", resp.Settings)
	}
	if len(resp.Chunks) < 2 {
		t.Fatalf("expected several chunks, got %d", len(resp.Chunks))
	}
	for i, c := range resp.Chunks {
		if c.Index != i || c.Total != len(resp.Chunks) || c.SourceInfo["source"] != "inline" {
			t.Errorf("chunk %d metadata: %+v", i, c)
		}
	}
}

func TestHandleSegment_InvalidOverride(t *testing.T) {
	t.Parallel()

	s := newTestServer()
	s.cfg.Chunking.ChunkSize, s.cfg.Chunking.Overlap = 50, 10

	w := httptest.NewRecorder()
	s.handleSegment(w, postJSON("/api/segment", `{"text":"abc","chunk_size":10,"overlap":10}`))
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for overlap >= chunk size, got %d", w.Code)
	}
}

// ---------------------------------------------------------------------------
// Full mux
// ---------------------------------------------------------------------------

// TestNew_Routing exercises the mux with auth, request ids and streaming
// through the middleware chain.
func TestNew_Routing(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s, err := New(Deps{Pipeline: &fakeRunner{result: pipeline.Result{Response: "ok"}}}, &Config{
		APIKey:          "secret",
		MetricsRegistry: reg,
		MetricsGatherer: reg,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.stopRL)
	h := s.Handler()

	w := httptest.NewRecorder()
	h.ServeHTTP(w, postJSON("/api/chat", `{"conversation_id":"c1","message":"q"}`))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("chat without token: expected 401, got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) == "" {
		t.Error("expected a generated request id header")
	}

	req := postJSON("/api/chat", `{"conversation_id":"c1","message":"q"}`)
	req.Header.Set("Authorization", "Bearer secret")
	req.Header.Set(requestIDHeader, "req-123")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusOK || !strings.Contains(w.Body.String(), "event: done") {
		t.Errorf("chat with token: got %d %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get(requestIDHeader); got != "req-123" {
		t.Errorf("request id: got %q, want req-123", got)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if w.Code != http.StatusOK {
		t.Errorf("health is unauthenticated: got %d", w.Code)
	}

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "raglab_http_requests_total") {
		t.Errorf("metrics endpoint missing http counter: %s", w.Body.String())
	}

	// Conversation endpoints answer 501 when memory is disabled.
	req = httptest.NewRequest(http.MethodGet, "/api/conversations/c1", nil)
	req.Header.Set("Authorization", "Bearer secret")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, req)
	if w.Code != http.StatusNotImplemented {
		t.Errorf("conversation without history: expected 501, got %d", w.Code)
	}
}

func TestNew_RequiresPipeline(t *testing.T) {
	t.Parallel()

	if _, err := New(Deps{}, nil); err == nil {
		t.Fatal("expected error for nil pipeline")
	}
}
