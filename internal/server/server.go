// Package server implements the HTTP server that exposes the RAG pipeline
// via a REST/SSE API. The server is started by the `raglab serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/raglab-go/internal/logging"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/segment"
)

// Request body caps.
const (
	maxChatBody    = 1 << 20
	maxSegmentBody = 16 << 20
)

// New constructs a Server from the provided dependencies and config.
func New(deps Deps, cfg *Config) (*Server, error) {
	if deps.Pipeline == nil {
		return nil, fmt.Errorf("server: pipeline must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation on a local model can take minutes.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.Chunking == (segment.Config{}) {
		cfg.Chunking = segment.DefaultConfig()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	s := &Server{
		runner:  deps.Pipeline,
		history: deps.History,
		router:  deps.Router,
		cfg:     cfg,
		log:     log,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	rl, stop := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	rl.onReject = func(handler string) { s.metrics.rateLimitedTotal.WithLabelValues(handler).Inc() }
	s.stopRL = stop

	protect := func(h http.HandlerFunc) http.Handler { return authMiddleware(cfg.APIKey, h) }
	limited := func(name string, h http.HandlerFunc) http.Handler { return rl.wrap(name, protect(h)) }

	mux := http.NewServeMux()
	mux.Handle("POST /api/chat", s.instrument("chat", limited("chat", s.handleChat)))
	mux.Handle("POST /api/route", s.instrument("route", limited("route", s.handleRoute)))
	mux.Handle("GET /api/conversations/{id}", s.instrument("conversation_get", protect(s.handleConversation)))
	mux.Handle("DELETE /api/conversations/{id}", s.instrument("conversation_delete", protect(s.handleConversationDelete)))
	mux.Handle("POST /api/segment", s.instrument("segment", protect(s.handleSegment)))
	mux.Handle("GET /api/health", s.instrument("health", http.HandlerFunc(s.handleHealth)))
	mux.Handle("GET /api/ready", s.instrument("ready", http.HandlerFunc(s.handleReady)))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	if cfg.APIKey == "" {
		log.Warn("server: API key not set, authentication disabled")
	}
	return s, nil
}

// Handler returns the root handler, for tests and embedding.
func (s *Server) Handler() http.Handler { return s.httpServer.Handler }

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	defer s.stopRL()
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", "http://"+s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleChat handles POST /api/chat requests. The answer is delivered as a
// Server-Sent Events stream: optional route, warning and prompt events, then
// the response as data lines and a final done event. Pipeline failures are
// reported in-band as an error event carrying the user-facing message.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.ConversationID) == "" {
		writeError(w, http.StatusBadRequest, "conversation_id is required")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// Set SSE headers so the client receives a streaming response.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	s.metrics.chatActiveStreams.Inc()
	defer s.metrics.chatActiveStreams.Dec()
	start := time.Now()

	preq := pipeline.Request{ConversationID: req.ConversationID, Query: req.Message, Dataset: req.Dataset}
	var res pipeline.Result
	if req.Route {
		res = s.runner.RunRouted(r.Context(), preq)
	} else {
		res = s.runner.Run(r.Context(), preq)
	}

	outcome := chatOutcome(res)
	s.metrics.chatRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.chatDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	sw := &sseWriter{w: w, flusher: flusher}
	if res.Decision != nil {
		if b, err := json.Marshal(res.Decision); err == nil {
			sw.event("route", string(b))
		}
	}
	for _, warning := range res.Warnings {
		sw.event("warning", warning)
	}
	if req.Debug && res.Prompt != "" {
		sw.event("prompt", res.Prompt)
	}

	if !res.OK() {
		log.Warn("chat failed", slog.String("outcome", outcome), slog.Any("error", res.Err))
		sw.event("error", res.Response)
		return
	}

	sw.event("", res.Response)
	// Signal stream completion.
	sw.event("done", "[DONE]")
}

// chatOutcome maps a pipeline result to the metrics outcome label.
func chatOutcome(res pipeline.Result) string {
	switch {
	case res.OK():
		return "ok"
	case errors.Is(res.Err, pipeline.ErrTimeout):
		return "timeout"
	default:
		return "error"
	}
}

// handleRoute handles POST /api/route. It returns the routing decision as
// JSON, or 422 when the router could not determine a route.
func (s *Server) handleRoute(w http.ResponseWriter, r *http.Request) {
	if s.router == nil {
		writeError(w, http.StatusNotImplemented, "routing is not configured")
		return
	}
	var req routeRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	decision, err := s.router.Route(r.Context(), req.Query)
	if decision == nil {
		logging.FromContext(r.Context()).Warn("route not determined", slog.Any("error", err))
		writeError(w, http.StatusUnprocessableEntity, "route not determined")
		return
	}
	writeJSON(w, http.StatusOK, decision)
}

// handleConversation handles GET /api/conversations/{id}. Turns are returned
// oldest first; an unknown or expired conversation yields an empty list.
func (s *Server) handleConversation(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "conversation memory is disabled")
		return
	}
	id := r.PathValue("id")
	turns, err := s.history.Read(r.Context(), id)
	if err != nil {
		logging.FromContext(r.Context()).Error("conversation read failed", slog.String("conversation_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to read conversation")
		return
	}
	chrono := slices.Clone(turns)
	slices.Reverse(chrono)
	writeJSON(w, http.StatusOK, conversationResponse{ID: id, Turns: chrono})
}

// handleConversationDelete handles DELETE /api/conversations/{id}.
func (s *Server) handleConversationDelete(w http.ResponseWriter, r *http.Request) {
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "conversation memory is disabled")
		return
	}
	id := r.PathValue("id")
	if err := s.history.Delete(r.Context(), id); err != nil {
		logging.FromContext(r.Context()).Error("conversation delete failed", slog.String("conversation_id", id), slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "failed to delete conversation")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSegment handles POST /api/segment. It splits the posted text with the
// configured or overridden chunk settings and returns the chunks with their
// metadata.
func (s *Server) handleSegment(w http.ResponseWriter, r *http.Request) {
	var req segmentRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxSegmentBody)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	size, overlap := s.cfg.Chunking.ChunkSize, s.cfg.Chunking.Overlap
	if req.ChunkSize > 0 {
		size, overlap = req.ChunkSize, req.Overlap
	}
	settings, err := segment.Info(size, overlap)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	chunks, err := segment.SegmentWithMetadata(req.Text, size, overlap, req.Source)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, segmentResponse{Settings: settings, Chunks: chunks})
}

// writeJSON encodes v with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// sseWriter emits Server-Sent Event frames and flushes after each one.
type sseWriter struct {
	// w is the underlying response writer.
	w http.ResponseWriter

	// flusher flushes buffered data to the client after each write.
	flusher http.Flusher
}

// event writes one frame. An empty name produces an unnamed data frame.
// Each newline in payload is prefixed with "data: " so multi-line content
// never breaks the frame boundary.
func (s *sseWriter) event(name, payload string) {
	var buf strings.Builder
	if name != "" {
		buf.WriteString("event: ")
		buf.WriteString(name)
		buf.WriteString("\n")
	}
	for _, line := range strings.Split(strings.TrimRight(payload, "\n"), "\n") {
		buf.WriteString("data: ")
		buf.WriteString(line)
		buf.WriteString("\n")
	}
	buf.WriteString("\n")
	if _, err := fmt.Fprint(s.w, buf.String()); err != nil {
		return
	}
	s.flusher.Flush()
}
