// Package ingestion builds a knowledge base: it reads documents from files,
// directories or URLs, segments them, embeds every chunk and upserts the
// results into a named vector store collection. It backs `raglab ingest`.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/54b3r/raglab-go/internal/logging"
	"github.com/54b3r/raglab-go/internal/rag"
	"github.com/54b3r/raglab-go/internal/segment"
)

// chunkNamespace scopes chunk IDs so they never collide with other UUIDv5 users.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/54b3r/raglab-go/chunks"))

// Config holds the fetch settings of the ingestion pipeline.
type Config struct {
	// HTTPTimeoutSeconds bounds each URL fetch.
	HTTPTimeoutSeconds int `yaml:"http_timeout_seconds" toml:"http_timeout_seconds"`
	// UserAgent is sent with fetch requests.
	UserAgent string `yaml:"user_agent" toml:"user_agent"`
	// RequestsPerSecond throttles URL fetches.
	RequestsPerSecond float64 `yaml:"requests_per_second" toml:"requests_per_second"`
}

// DefaultConfig returns the stock fetch settings.
func DefaultConfig() Config {
	return Config{
		HTTPTimeoutSeconds: 30,
		UserAgent:          "raglab-go/1.0 (document ingestion)",
		RequestsPerSecond:  2,
	}
}

// Validate checks the settings.
func (c Config) Validate() error {
	var errs []error
	if c.HTTPTimeoutSeconds <= 0 {
		errs = append(errs, fmt.Errorf("ingestion: http_timeout_seconds must be positive, got %d", c.HTTPTimeoutSeconds))
	}
	if c.RequestsPerSecond <= 0 {
		errs = append(errs, fmt.Errorf("ingestion: requests_per_second must be positive, got %g", c.RequestsPerSecond))
	}
	return errors.Join(errs...)
}

// Stage names a step reported through Progress.
type Stage string

const (
	StageRead    Stage = "read"
	StageChunked Stage = "chunked"
	StageStored  Stage = "stored"
	StageSkipped Stage = "skipped"
	StageRemoved Stage = "removed"
)

// Event is one progress notification.
type Event struct {
	Source string
	Stage  Stage
	Chunks int
	Err    error
}

// Progress receives events as sources move through the pipeline.
type Progress func(Event)

// Report summarises an ingestion run.
type Report struct {
	Collection string   `json:"collection"`
	Sources    int      `json:"sources"`
	Chunks     int      `json:"chunks"`
	Skipped    []string `json:"skipped,omitempty"`
}

// Pipeline orchestrates the read → segment → embed → upsert flow.
type Pipeline struct {
	embedder    rag.Embedder
	collections rag.Collections
	chunking    segment.Config
	cfg         Config
	httpClient  *http.Client
	limiter     *rate.Limiter
}

// NewPipeline constructs a Pipeline from the provided dependencies and config.
func NewPipeline(embedder rag.Embedder, collections rag.Collections, chunking segment.Config, cfg Config) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if collections == nil {
		return nil, fmt.Errorf("ingestion: collections must not be nil")
	}
	if err := chunking.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Pipeline{
		embedder:    embedder,
		collections: collections,
		chunking:    chunking,
		cfg:         cfg,
		httpClient: &http.Client{
			Timeout: time.Duration(cfg.HTTPTimeoutSeconds) * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
	}, nil
}

// Ingest reads, segments, embeds and stores every source into collection,
// creating it if needed. Directories are expanded to the supported files
// they contain. Unsupported formats are skipped and listed in the report;
// any other failure stops the run.
func (p *Pipeline) Ingest(ctx context.Context, collection string, sources []string, progress Progress) (Report, error) {
	if progress == nil {
		progress = func(Event) {}
	}
	ctx, log := logging.With(ctx, slog.String("collection", collection))
	report := Report{Collection: collection}

	expanded, err := ExpandSources(sources)
	if err != nil {
		return report, err
	}

	store, err := p.collections.Open(ctx, collection, true)
	if err != nil {
		return report, fmt.Errorf("ingestion: open collection %q: %w", collection, err)
	}

	for _, src := range expanded {
		doc, err := p.read(ctx, src)
		if errors.Is(err, ErrUnsupportedFormat) {
			report.Skipped = append(report.Skipped, src)
			progress(Event{Source: src, Stage: StageSkipped, Err: err})
			log.Warn("ingestion: skipping unsupported source", slog.String("source", src))
			continue
		}
		if err != nil {
			return report, fmt.Errorf("ingestion: read failed for %s: %w", src, err)
		}
		progress(Event{Source: src, Stage: StageRead})

		n, err := p.store(ctx, store, doc, progress)
		if err != nil {
			return report, err
		}
		report.Sources++
		report.Chunks += n
		progress(Event{Source: src, Stage: StageStored, Chunks: n})
		log.Info("ingestion: source stored", slog.String("source", src), slog.Int("chunks", n))
	}
	return report, nil
}

// IngestDocument segments, embeds and stores one already extracted document.
func (p *Pipeline) IngestDocument(ctx context.Context, collection string, doc Document) (int, error) {
	store, err := p.collections.Open(ctx, collection, true)
	if err != nil {
		return 0, fmt.Errorf("ingestion: open collection %q: %w", collection, err)
	}
	return p.store(ctx, store, doc, func(Event) {})
}

// RemoveSource deletes every chunk stored for source in collection.
func (p *Pipeline) RemoveSource(ctx context.Context, collection, source string) error {
	store, err := p.collections.Open(ctx, collection, false)
	if errors.Is(err, rag.ErrCollectionNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("ingestion: open collection %q: %w", collection, err)
	}
	if err := store.DeleteSource(ctx, source); err != nil {
		return fmt.Errorf("ingestion: remove %s: %w", source, err)
	}
	return nil
}

func (p *Pipeline) read(ctx context.Context, src string) (Document, error) {
	info := InferSource(src)
	if info.Kind == KindURL {
		if err := p.limiter.Wait(ctx); err != nil {
			return Document{}, err
		}
		return fetch(ctx, p.httpClient, p.cfg.UserAgent, src)
	}
	return ReadFile(src)
}

func (p *Pipeline) store(ctx context.Context, store rag.VectorStore, doc Document, progress Progress) (int, error) {
	chunks, err := segment.SegmentWithMetadata(doc.Text, p.chunking.ChunkSize, p.chunking.Overlap, doc.Info.Labels())
	if err != nil {
		return 0, err
	}
	progress(Event{Source: doc.Source, Stage: StageChunked, Chunks: len(chunks)})
	if len(chunks) == 0 {
		if err := store.DeleteSource(ctx, doc.Source); err != nil {
			return 0, fmt.Errorf("ingestion: clear previous chunks of %s: %w", doc.Source, err)
		}
		return 0, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("ingestion: embedding failed for %s: %w", doc.Source, err)
	}

	docs := make([]rag.Document, len(chunks))
	for i, c := range chunks {
		meta := make(map[string]string, len(c.SourceInfo)+4)
		for k, v := range c.SourceInfo {
			meta[k] = v
		}
		meta["chunk_index"] = strconv.Itoa(c.Index)
		meta["chunk_size"] = strconv.Itoa(c.Length)
		meta["total_chunks"] = strconv.Itoa(c.Total)
		meta["chunk_start_char"] = strconv.Itoa(c.StartOffset)
		docs[i] = rag.Document{
			ID:       ChunkID(doc.Source, c.Index),
			Content:  c.Text,
			Source:   doc.Source,
			Metadata: meta,
		}
	}

	// A shorter rewrite must not leave the old tail chunks behind.
	if err := store.DeleteSource(ctx, doc.Source); err != nil {
		return 0, fmt.Errorf("ingestion: clear previous chunks of %s: %w", doc.Source, err)
	}
	if err := store.Upsert(ctx, docs, embeddings); err != nil {
		return 0, fmt.Errorf("ingestion: upsert failed for %s: %w", doc.Source, err)
	}
	return len(docs), nil
}

// ChunkID returns the deterministic UUIDv5 of a chunk.
func ChunkID(source string, index int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(source+"#"+strconv.Itoa(index))).String()
}

// ExpandSources replaces every directory in sources with the supported
// files beneath it, sorted by path. Files and URLs pass through unchanged.
func ExpandSources(sources []string) ([]string, error) {
	var out []string
	for _, src := range sources {
		if InferSource(src).Kind == KindURL {
			out = append(out, src)
			continue
		}
		st, err := os.Stat(src)
		if err != nil {
			return nil, fmt.Errorf("ingestion: %w", err)
		}
		if !st.IsDir() {
			out = append(out, src)
			continue
		}
		var found []string
		err = filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != src && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if InferSource(path).Supported() {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("ingestion: walk %s: %w", src, err)
		}
		sort.Strings(found)
		out = append(out, found...)
	}
	return out, nil
}
