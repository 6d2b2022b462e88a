package knowledge

import "context"

// Passage is a retrieved knowledge-base excerpt ranked by similarity.
type Passage struct {
	DocumentID string  `json:"documentId"`
	Title      string  `json:"title,omitempty"`
	Content    string  `json:"content"`
	Score      float32 `json:"score"`
}

// Searcher retrieves passages relevant to a query, scoped to a tenant and
// optionally restricted to specific documents.
type Searcher interface {
	Search(ctx context.Context, tenantID string, documentIDs []string, query string, topK int) ([]Passage, error)
}

// Embedder turns text into a dense vector.
type Embedder interface {
	Embed(ctx context.Context, input string) ([]float32, error)
}
