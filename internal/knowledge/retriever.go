package knowledge

import (
	"context"
	"log/slog"
	"strings"
)

// Retriever wraps a Searcher with the degradation policy context assembly
// relies on: retrieval failures produce zero passages, never an error, so a
// knowledge-base outage degrades answer quality instead of availability.
type Retriever struct {
	searcher Searcher
	logger   *slog.Logger
	topK     int
}

// NewRetriever creates a retriever. searcher may be nil when no knowledge
// base is configured; retrieval then always yields zero passages.
func NewRetriever(log *slog.Logger, searcher Searcher, topK int) *Retriever {
	if log == nil {
		log = slog.Default()
	}
	return &Retriever{
		searcher: searcher,
		logger:   log.With(slog.String("service", "retriever")),
		topK:     topK,
	}
}

// Retrieve returns up to topK passages for the query, or none.
func (r *Retriever) Retrieve(ctx context.Context, tenantID string, documentIDs []string, query string) []Passage {
	if r.searcher == nil || strings.TrimSpace(query) == "" || len(documentIDs) == 0 {
		return nil
	}
	passages, err := r.searcher.Search(ctx, tenantID, documentIDs, query, r.topK)
	if err != nil {
		r.logger.Warn("retrieval degraded to zero passages",
			slog.String("tenant_id", tenantID), slog.Any("error", err))
		return nil
	}
	return passages
}
