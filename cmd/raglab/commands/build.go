package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/54b3r/raglab-go/internal/embedder"
	"github.com/54b3r/raglab-go/internal/memory"
	"github.com/54b3r/raglab-go/internal/pipeline"
	"github.com/54b3r/raglab-go/internal/provider"
	"github.com/54b3r/raglab-go/internal/rag"
	"github.com/54b3r/raglab-go/internal/router"
	"github.com/54b3r/raglab-go/internal/server"
)

// closers releases resources in reverse acquisition order.
type closers []func() error

func (c *closers) add(f func() error) { *c = append(*c, f) }

func (c closers) close(log *slog.Logger) {
	for i := len(c) - 1; i >= 0; i-- {
		if err := c[i](); err != nil {
			log.Warn("close failed", slog.Any("error", err))
		}
	}
}

// buildEmbedder constructs the configured embedder and warns when the model
// looks like a chat model.
func (a *app) buildEmbedder(ctx context.Context) (rag.Embedder, error) {
	embedder.WarnIfChatModel(a.cfg.Embedding, a.log)
	emb, err := embedder.New(ctx, a.cfg.Embedding)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}
	return emb, nil
}

// buildCollections connects to the configured vector store. The returned
// pinger is nil for the in-process backend.
func (a *app) buildCollections(ctx context.Context) (rag.Collections, server.Pinger, error) {
	vs := a.cfg.VectorStore
	size := a.cfg.Embedding.VectorSize()
	switch vs.Backend {
	case rag.BackendPgvector:
		c, err := rag.NewPgvectorCollections(ctx, vs.Pgvector, size)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to pgvector: %w", err)
		}
		return c, server.NewStorePinger("pgvector", c), nil
	case rag.BackendMemory:
		c, err := rag.NewMemoryCollections(vs.Memory.Dir)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open in-process vector store: %w", err)
		}
		return c, nil, nil
	default:
		c, err := rag.NewQdrantCollections(vs.Qdrant, size)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", vs.Qdrant.Host, vs.Qdrant.Port, err)
		}
		return c, server.NewQdrantPinger(c.Client()), nil
	}
}

// buildMemory opens the conversation store.
func (a *app) buildMemory(ctx context.Context) (memory.Store, error) {
	store, err := memory.Open(ctx, a.cfg.Memory)
	if err != nil {
		return nil, fmt.Errorf("failed to open conversation memory: %w", err)
	}
	return store, nil
}

// runtime bundles everything a query needs.
type runtime struct {
	pipeline    *pipeline.Pipeline
	router      *router.Router
	memory      memory.Store
	collections rag.Collections
	pingers     []server.Pinger
	closers     closers
}

// buildRuntime wires provider, embedder, vector store, memory, router and
// pipeline from the configuration. Callers must call close.
func (a *app) buildRuntime(ctx context.Context, opts ...pipeline.Option) (*runtime, error) {
	rt := &runtime{}
	ok := false
	defer func() {
		if !ok {
			rt.closers.close(a.log)
		}
	}()

	chatModel, err := provider.New(ctx, a.cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}
	a.log.Debug("provider initialised",
		slog.String("provider", string(a.cfg.Model.Backend)),
		slog.String("model", a.cfg.Model.ModelName()),
	)
	if a.cfg.Model.Backend == provider.BackendOllama {
		rt.pingers = append(rt.pingers, server.NewOllamaPinger(a.cfg.Model.Ollama.Host, nil))
	}

	emb, err := a.buildEmbedder(ctx)
	if err != nil {
		return nil, err
	}

	collections, vsPinger, err := a.buildCollections(ctx)
	if err != nil {
		return nil, err
	}
	rt.collections = collections
	rt.closers.add(collections.Close)
	if vsPinger != nil {
		rt.pingers = append(rt.pingers, vsPinger)
	}

	store, err := a.buildMemory(ctx)
	if err != nil {
		return nil, err
	}
	rt.memory = store
	rt.closers.add(store.Close)
	if p, isPingable := store.(interface{ Ping(context.Context) error }); isPingable {
		rt.pingers = append(rt.pingers, server.NewStorePinger(string(a.cfg.Memory.Backend), p))
	}

	retriever, err := rag.NewRetriever(emb, collections, a.cfg.Pipeline.TopK)
	if err != nil {
		return nil, err
	}

	rt.router, err = router.New(chatModel, a.cfg.Router)
	if err != nil {
		return nil, err
	}

	rt.pipeline, err = pipeline.New(pipeline.Deps{
		Retriever: retriever,
		Memory:    store,
		Generator: provider.NewGenerator(chatModel),
		Router:    rt.router,
	}, a.cfg.Pipeline, append([]pipeline.Option{
		pipeline.WithTemplate(a.cfg.Prompt),
		pipeline.WithWindow(a.cfg.Memory.Window),
	}, opts...)...)
	if err != nil {
		return nil, err
	}

	ok = true
	return rt, nil
}

// close releases every backend connection.
func (rt *runtime) close(log *slog.Logger) { rt.closers.close(log) }

// errNoQuestion is returned when a command needs a question and got none.
var errNoQuestion = errors.New("a question is required")
