// Package knowledge stores and retrieves knowledge-base passages in Qdrant.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"

	"github.com/botdesk/botdesk/internal/config"
)

// Payload keys stored on each point.
const (
	payloadTenantID   = "tenant_id"
	payloadDocumentID = "document_id"
	payloadTitle      = "title"
	payloadContent    = "content"
)

// QdrantStore holds passage vectors in a single collection, partitioned by
// tenant through payload filters.
type QdrantStore struct {
	client     *qdrant.Client
	embedder   Embedder
	logger     *slog.Logger
	collection string
	dimensions int
	timeout    time.Duration
}

var _ Searcher = (*QdrantStore)(nil)

// NewQdrantStore connects to Qdrant and ensures the collection exists.
func NewQdrantStore(ctx context.Context, log *slog.Logger, cfg config.QdrantConfig, embedder Embedder, dimensions int) (*QdrantStore, error) {
	if log == nil {
		log = slog.Default()
	}
	if dimensions <= 0 {
		dimensions = 1536
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant client: %w", err)
	}
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	store := &QdrantStore{
		client:     client,
		embedder:   embedder,
		logger:     log.With(slog.String("service", "knowledge")),
		collection: cfg.Collection,
		dimensions: dimensions,
		timeout:    timeout,
	}
	if err := store.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *QdrantStore) ensureCollection(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("check collection: %w", err)
	}
	if exists {
		return nil
	}
	err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(s.dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}
	s.logger.Info("created collection", slog.String("collection", s.collection))
	return nil
}

// UpsertPassage embeds and stores one passage of a document.
func (s *QdrantStore) UpsertPassage(ctx context.Context, tenantID, documentID, title, content string) error {
	vector, err := s.embedder.Embed(ctx, content)
	if err != nil {
		return fmt.Errorf("embed passage: %w", err)
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(uuid.NewString()),
			Vectors: qdrant.NewVectors(vector...),
			Payload: qdrant.NewValueMap(map[string]any{
				payloadTenantID:   tenantID,
				payloadDocumentID: documentID,
				payloadTitle:      title,
				payloadContent:    content,
			}),
		}},
	})
	if err != nil {
		return fmt.Errorf("upsert passage: %w", err)
	}
	return nil
}

// Search embeds the query and returns the topK closest passages for the
// tenant, optionally restricted to the given document ids.
func (s *QdrantStore) Search(ctx context.Context, tenantID string, documentIDs []string, query string, topK int) ([]Passage, error) {
	if topK <= 0 {
		topK = config.DefaultRetrievalTopK
	}
	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	must := []*qdrant.Condition{
		qdrant.NewMatch(payloadTenantID, tenantID),
	}
	if len(documentIDs) > 0 {
		must = append(must, qdrant.NewMatchKeywords(payloadDocumentID, documentIDs...))
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	limit := uint64(topK)
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          &limit,
		Filter:         &qdrant.Filter{Must: must},
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}

	passages := make([]Passage, 0, len(points))
	for _, point := range points {
		payload := point.GetPayload()
		content := strings.TrimSpace(payload[payloadContent].GetStringValue())
		if content == "" {
			continue
		}
		passages = append(passages, Passage{
			DocumentID: payload[payloadDocumentID].GetStringValue(),
			Title:      payload[payloadTitle].GetStringValue(),
			Content:    content,
			Score:      point.GetScore(),
		})
	}
	return passages, nil
}
