package server

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantPinger probes a Qdrant instance using its native HealthCheck RPC.
type QdrantPinger struct {
	// client is the Qdrant gRPC client to probe.
	client *qdrant.Client
}

// NewQdrantPinger constructs a QdrantPinger for the given Qdrant client.
func NewQdrantPinger(client *qdrant.Client) *QdrantPinger {
	return &QdrantPinger{client: client}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	if _, err := p.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

// pingable is anything with its own connectivity probe: the pgvector pool,
// the SQLite and Redis conversation stores.
type pingable interface {
	Ping(ctx context.Context) error
}

// StorePinger adapts a pingable dependency to the Pinger interface under a
// fixed name.
type StorePinger struct {
	name string
	p    pingable
}

// NewStorePinger labels p as name in readiness responses.
func NewStorePinger(name string, p pingable) *StorePinger {
	return &StorePinger{name: name, p: p}
}

// Name returns the dependency label.
func (s *StorePinger) Name() string { return s.name }

// Ping delegates to the wrapped dependency.
func (s *StorePinger) Ping(ctx context.Context) error { return s.p.Ping(ctx) }

// HTTPPinger probes an HTTP endpoint with a GET and expects a 2xx status.
// It is used for the Ollama server so readiness never spends tokens.
type HTTPPinger struct {
	name   string
	url    string
	client *http.Client
}

// NewOllamaPinger probes GET {host}/api/tags.
func NewOllamaPinger(host string, client *http.Client) *HTTPPinger {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPPinger{name: "ollama", url: strings.TrimRight(host, "/") + "/api/tags", client: client}
}

// Name returns the dependency label.
func (h *HTTPPinger) Name() string { return h.name }

// Ping issues the GET request.
func (h *HTTPPinger) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, h.url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}
