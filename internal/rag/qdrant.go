package rag

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// QdrantConfig holds connection parameters for a Qdrant vector store instance.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string `yaml:"host" toml:"host"`

	// Port is the Qdrant gRPC port (default: 6334).
	Port int `yaml:"port" toml:"port"`

	// APIKey is the optional Qdrant API key. Prefer env var QDRANT_API_KEY.
	APIKey string `yaml:"api_key" toml:"api_key"`

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool `yaml:"tls" toml:"tls"`
}

// QdrantCollections opens collections on one Qdrant instance.
type QdrantCollections struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// vectorSize is the dimensionality used when creating collections.
	vectorSize uint64
}

// NewQdrantCollections connects to Qdrant. vectorSize is only used when a
// collection has to be created.
func NewQdrantCollections(cfg QdrantConfig, vectorSize int) (*QdrantCollections, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}
	return &QdrantCollections{client: client, vectorSize: uint64(vectorSize)}, nil
}

// Client exposes the gRPC client for health checks.
func (c *QdrantCollections) Client() *qdrant.Client {
	return c.client
}

// Open returns the store for the named collection, creating it with cosine
// distance when create is true.
func (c *QdrantCollections) Open(ctx context.Context, name string, create bool) (VectorStore, error) {
	exists, err := c.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if !exists {
		if !create {
			return nil, fmt.Errorf("qdrant: collection %q: %w", name, ErrCollectionNotFound)
		}
		if c.vectorSize == 0 {
			return nil, fmt.Errorf("qdrant: cannot create collection %q without a vector size", name)
		}
		err = c.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: name,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     c.vectorSize,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return nil, fmt.Errorf("qdrant: failed to create collection %q: %w", name, err)
		}
	}
	return &QdrantStore{client: c.client, collection: name}, nil
}

// List returns the names of every collection on the server.
func (c *QdrantCollections) List(ctx context.Context) ([]string, error) {
	names, err := c.client.ListCollections(ctx)
	if err != nil {
		return nil, fmt.Errorf("qdrant: list collections: %w", err)
	}
	return names, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (c *QdrantCollections) Close() error {
	return c.client.Close()
}

// QdrantStore implements VectorStore for one Qdrant collection.
type QdrantStore struct {
	client     *qdrant.Client
	collection string
}

// mapQdrantError turns a gRPC NotFound into ErrCollectionNotFound.
func mapQdrantError(op string, err error) error {
	if status.Code(err) == codes.NotFound {
		return fmt.Errorf("qdrant: %s: %w: %v", op, ErrCollectionNotFound, err)
	}
	return fmt.Errorf("qdrant: %s failed: %w", op, err)
}

// Upsert stores or updates a batch of documents with their embeddings.
func (s *QdrantStore) Upsert(ctx context.Context, docs []Document, embeddings [][]float32) error {
	if len(docs) != len(embeddings) {
		return fmt.Errorf("qdrant: %d documents but %d embeddings", len(docs), len(embeddings))
	}
	if len(docs) == 0 {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, len(docs))
	for i, doc := range docs {
		payload := map[string]any{
			"content": doc.Content,
			"source":  doc.Source,
		}
		for k, v := range doc.Metadata {
			payload[k] = v
		}

		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(doc.ID),
			Vectors: qdrant.NewVectors(embeddings[i]...),
			Payload: qdrant.NewValueMap(payload),
		})
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points:         points,
	})
	if err != nil {
		return mapQdrantError("upsert", err)
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k results.
func (s *QdrantStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Document, error) {
	if topK <= 0 {
		return []Document{}, nil
	}
	limit := uint64(topK)
	results, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, mapQdrantError("search", err)
	}

	docs := make([]Document, 0, len(results))
	for _, r := range results {
		doc := Document{
			ID:       r.Id.GetUuid(),
			Score:    r.Score,
			Metadata: make(map[string]string),
		}
		for k, v := range r.Payload {
			switch k {
			case "content":
				doc.Content = v.GetStringValue()
			case "source":
				doc.Source = v.GetStringValue()
			default:
				doc.Metadata[k] = v.GetStringValue()
			}
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Delete removes documents from the collection by their IDs.
func (s *QdrantStore) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	pointIDs := make([]*qdrant.PointId, 0, len(ids))
	for _, id := range ids {
		pointIDs = append(pointIDs, qdrant.NewIDUUID(id))
	}

	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points:         qdrant.NewPointsSelector(pointIDs...),
	})
	if err != nil {
		return mapQdrantError("delete", err)
	}
	return nil
}

// DeleteSource removes the points whose "source" payload equals source.
func (s *QdrantStore) DeleteSource(ctx context.Context, source string) error {
	_, err := s.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: s.collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("source", source)},
		}),
	})
	if err != nil {
		return mapQdrantError("delete source", err)
	}
	return nil
}

// Count returns the exact number of points in the collection.
func (s *QdrantStore) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, mapQdrantError("count", err)
	}
	return n, nil
}
