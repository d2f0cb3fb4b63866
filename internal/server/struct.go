package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/router"
	"github.com/54b3r/raglab-go/internal/segment"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [slog.Default] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is required on protected /api/* routes, as a Bearer token or
	// in X-API-Key. Empty disables authentication.
	APIKey string
	// Chunking is the default segmenter configuration for POST /api/segment.
	Chunking segment.Config
	// MetricsRegistry receives the server metrics. Defaults to
	// prometheus.DefaultRegisterer.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// runner is the interface handleChat calls to answer a turn.
// *pipeline.Pipeline satisfies it; tests inject a fake.
type runner interface {
	// Run answers a query against an explicit or default dataset.
	Run(ctx context.Context, req pipeline.Request) pipeline.Result
	// RunRouted lets the router choose the dataset first.
	RunRouted(ctx context.Context, req pipeline.Request) pipeline.Result
}

// historyReader is the subset of memory.Store the conversation endpoints use.
type historyReader interface {
	Read(ctx context.Context, conversationID string) ([]memory.Turn, error)
	Delete(ctx context.Context, conversationID string) error
}

// routeFinder is the router used by POST /api/route. *router.Router
// satisfies it.
type routeFinder interface {
	Route(ctx context.Context, query string) (*router.RouteDecision, error)
}

// Deps are the collaborators the handlers call into.
type Deps struct {
	// Pipeline answers chat turns. Required.
	Pipeline runner
	// History backs the conversation endpoints. Nil disables them.
	History historyReader
	// Router backs POST /api/route. Nil disables it.
	Router routeFinder
}

// Server is the HTTP server that exposes the RAG pipeline.
type Server struct {
	// runner answers chat turns.
	runner runner
	// history reads and clears conversations; may be nil.
	history historyReader
	// router resolves datasets for POST /api/route; may be nil.
	router routeFinder
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus collectors owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// chatRequest is the JSON body for POST /api/chat.
type chatRequest struct {
	// ConversationID keys the conversation history. Required.
	ConversationID string `json:"conversation_id"`
	// Message is the user's natural language query.
	Message string `json:"message"`
	// Dataset selects the collection. Empty uses the configured default.
	Dataset string `json:"dataset,omitempty"`
	// Route asks the router to choose the dataset. Dataset is ignored.
	Route bool `json:"route,omitempty"`
	// Debug adds the composed prompt to the stream.
	Debug bool `json:"debug,omitempty"`
}

// routeRequest is the JSON body for POST /api/route.
type routeRequest struct {
	// Query is the user request to route.
	Query string `json:"query"`
}

// conversationResponse is the JSON response for GET /api/conversations/{id}.
type conversationResponse struct {
	// ID is the conversation id.
	ID string `json:"id"`
	// Turns are the stored turns, oldest first.
	Turns []memory.Turn `json:"turns"`
}

// segmentRequest is the JSON body for POST /api/segment.
type segmentRequest struct {
	// Text is the document to split.
	Text string `json:"text"`
	// ChunkSize overrides the configured chunk size when positive.
	ChunkSize int `json:"chunk_size,omitempty"`
	// Overlap overrides the configured overlap when ChunkSize is set.
	Overlap int `json:"overlap,omitempty"`
	// Source is attached to every chunk untouched.
	Source map[string]string `json:"source,omitempty"`
}

// segmentResponse is the JSON response for POST /api/segment.
type segmentResponse struct {
	// Settings echoes the effective chunking configuration.
	Settings segment.Settings `json:"settings"`
	// Chunks are the produced segments in order.
	Chunks []segment.Chunk `json:"chunks"`
}

// errorResponse is the JSON body for non-streaming errors.
type errorResponse struct {
	Error string `json:"error"`
}
