package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeSearcher struct {
	passages []Passage
	err      error
	calls    int
}

func (s *fakeSearcher) Search(_ context.Context, _ string, _ []string, _ string, _ int) ([]Passage, error) {
	s.calls++
	return s.passages, s.err
}

func TestRetrieveReturnsPassages(t *testing.T) {
	searcher := &fakeSearcher{passages: []Passage{
		{DocumentID: "doc-1", Title: "Shipping", Content: "We ship worldwide.", Score: 0.92},
	}}
	retriever := NewRetriever(nil, searcher, 4)

	passages := retriever.Retrieve(context.Background(), "tenant-1", []string{"doc-1"}, "do you ship abroad?")
	assert.Len(t, passages, 1)
	assert.Equal(t, "Shipping", passages[0].Title)
}

func TestRetrieveDegradesSilentlyOnError(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("qdrant unreachable")}
	retriever := NewRetriever(nil, searcher, 4)

	passages := retriever.Retrieve(context.Background(), "tenant-1", []string{"doc-1"}, "hello")
	assert.Nil(t, passages)
}

func TestRetrieveSkipsWhenNothingToSearch(t *testing.T) {
	searcher := &fakeSearcher{passages: []Passage{{Content: "x"}}}
	retriever := NewRetriever(nil, searcher, 4)

	assert.Nil(t, retriever.Retrieve(context.Background(), "tenant-1", nil, "query"))
	assert.Nil(t, retriever.Retrieve(context.Background(), "tenant-1", []string{"doc-1"}, "   "))
	assert.Zero(t, searcher.calls)

	nilRetriever := NewRetriever(nil, nil, 4)
	assert.Nil(t, nilRetriever.Retrieve(context.Background(), "tenant-1", []string{"doc-1"}, "query"))
}
