package rag

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/54b3r/raglab-go/internal/rank"
)

// snapshotExt is the file extension of a persisted in-process collection.
const snapshotExt = ".jsonl"

// MemoryCollections keeps collections in process and ranks them with exact
// cosine similarity. When dir is set every collection is persisted as a JSON
// Lines snapshot named after it and reloaded on Open.
type MemoryCollections struct {
	dir string

	mu     sync.Mutex
	stores map[string]*MemoryStore
}

// NewMemoryCollections returns an empty set of in-process collections. An
// empty dir keeps everything in memory only.
func NewMemoryCollections(dir string) (*MemoryCollections, error) {
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("memory store: create %s: %w", dir, err)
		}
	}
	return &MemoryCollections{dir: dir, stores: make(map[string]*MemoryStore)}, nil
}

// collectionKey normalises a collection name the same way for the map key
// and the snapshot file name.
func collectionKey(name string) string {
	return tableName("collection", name)
}

func (c *MemoryCollections) snapshotPath(key string) string {
	if c.dir == "" {
		return ""
	}
	return filepath.Join(c.dir, key+snapshotExt)
}

// Open returns the named collection, loading it from its snapshot if needed.
func (c *MemoryCollections) Open(_ context.Context, name string, create bool) (VectorStore, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	key := collectionKey(name)
	if s, ok := c.stores[key]; ok {
		return s, nil
	}

	s := &MemoryStore{path: c.snapshotPath(key)}
	if s.path != "" {
		err := s.load()
		switch {
		case err == nil:
			c.stores[key] = s
			return s, nil
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}
	if !create {
		return nil, fmt.Errorf("memory store: collection %q: %w", name, ErrCollectionNotFound)
	}
	c.stores[key] = s
	return s, nil
}

// List returns the open and persisted collection names, sorted.
func (c *MemoryCollections) List(context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.stores))
	for key := range c.stores {
		names = append(names, strings.TrimPrefix(key, "collection_"))
	}
	if c.dir != "" {
		entries, err := os.ReadDir(c.dir)
		if err != nil {
			return nil, fmt.Errorf("memory store: list %s: %w", c.dir, err)
		}
		for _, e := range entries {
			if e.IsDir() || !strings.HasSuffix(e.Name(), snapshotExt) {
				continue
			}
			n := strings.TrimPrefix(strings.TrimSuffix(e.Name(), snapshotExt), "collection_")
			if !slices.Contains(names, n) {
				names = append(names, n)
			}
		}
	}
	slices.Sort(names)
	return names, nil
}

// Close drops every open collection.
func (c *MemoryCollections) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	clear(c.stores)
	return nil
}

// memoryEntry is one line of a snapshot.
type memoryEntry struct {
	Document
	Embedding []float32 `json:"embedding"`
}

// MemoryStore is an in-process VectorStore ranked with rank.Rank.
type MemoryStore struct {
	path string

	mu      sync.RWMutex
	entries []memoryEntry
}

// Upsert replaces documents with the same ID and appends new ones, then
// rewrites the snapshot. Every vector must have the dimension of the
// vectors already stored; the first batch into an empty store sets it.
func (s *MemoryStore) Upsert(_ context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("memory store: %d documents but %d embeddings", len(docs), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := 0
	if len(s.entries) > 0 {
		dim = len(s.entries[0].Embedding)
	} else if len(embeddings) > 0 {
		dim = len(embeddings[0])
	}
	for i, e := range embeddings {
		if len(e) != dim {
			return fmt.Errorf("memory store: document %q has %d dimensions, collection uses %d", docs[i].ID, len(e), dim)
		}
	}

	index := make(map[string]int, len(s.entries))
	for i, e := range s.entries {
		index[e.ID] = i
	}
	for i, doc := range docs {
		doc.Score = 0
		entry := memoryEntry{Document: doc, Embedding: slices.Clone(embeddings[i])}
		if at, ok := index[doc.ID]; ok {
			s.entries[at] = entry
			continue
		}
		index[doc.ID] = len(s.entries)
		s.entries = append(s.entries, entry)
	}
	return s.save()
}

// Search ranks every stored vector against the query with exact cosine
// similarity.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	vectors := make([][]float32, len(s.entries))
	for i, e := range s.entries {
		vectors[i] = e.Embedding
	}

	ranked := rank.Rank(queryEmbedding, vectors, topK)
	docs := make([]Document, len(ranked))
	for i, r := range ranked {
		doc := s.entries[r.Index].Document
		doc.Score = r.Score
		docs[i] = doc
	}
	return docs, nil
}

// Delete removes documents by ID and rewrites the snapshot.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = slices.DeleteFunc(s.entries, func(e memoryEntry) bool {
		return slices.Contains(ids, e.ID)
	})
	return s.save()
}

// DeleteSource removes the documents of one source and rewrites the
// snapshot.
func (s *MemoryStore) DeleteSource(_ context.Context, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = slices.DeleteFunc(s.entries, func(e memoryEntry) bool {
		return e.Source == source
	})
	return s.save()
}

// Count returns the number of stored documents.
func (s *MemoryStore) Count(context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.entries)), nil
}

// save writes the snapshot atomically. Callers hold the write lock.
func (s *MemoryStore) save() error {
	if s.path == "" {
		return nil
	}
	tmp := s.path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("memory store: create snapshot: %w", err)
	}

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, e := range s.entries {
		if err := enc.Encode(e); err != nil {
			_ = f.Close()
			return fmt.Errorf("memory store: write snapshot entry: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return fmt.Errorf("memory store: flush snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("memory store: close snapshot: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("memory store: replace snapshot: %w", err)
	}
	return nil
}

// load reads the snapshot. A missing file returns an error matching
// os.ErrNotExist.
func (s *MemoryStore) load() error {
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	var entries []memoryEntry
	for {
		var e memoryEntry
		err := dec.Decode(&e)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("memory store: read snapshot %s: %w", s.path, err)
		}
		entries = append(entries, e)
	}
	s.entries = entries
	return nil
}
