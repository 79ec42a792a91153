package vectorstore

import (
	"context"
	"fmt"

	"research-agent/internal/application/port/output"
	"research-agent/internal/domain/entity"

	"github.com/tmc/langchaingo/schema"
	"github.com/tmc/langchaingo/vectorstores"
)

const (
	metaSource = "source"
	metaTitle  = "title"
	metaDomain = "domain"
)

var _ output.RetrievalIndex = (*Index)(nil)

// Clearer is implemented by stores that can drop their collection.
type Clearer interface {
	Clear(ctx context.Context) error
}

type ClearableStore interface {
	vectorstores.VectorStore
	Clearer
}

// Index adapts a langchaingo vector store to the retrieval port.
type Index struct {
	store ClearableStore
}

func NewIndex(store ClearableStore) *Index {
	return &Index{store: store}
}

func (i *Index) Add(ctx context.Context, docs []entity.Document) error {
	lc := make([]schema.Document, len(docs))
	for n, d := range docs {
		lc[n] = schema.Document{
			PageContent: d.Content,
			Metadata: map[string]any{
				metaSource: d.Source,
				metaTitle:  d.Title,
				metaDomain: d.Domain,
			},
		}
	}
	if _, err := i.store.AddDocuments(ctx, lc); err != nil {
		return fmt.Errorf("add documents: %w", err)
	}
	return nil
}

func (i *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]entity.Document, error) {
	found, err := i.store.SimilaritySearch(ctx, query, k)
	if err != nil {
		return nil, fmt.Errorf("similarity search: %w", err)
	}
	out := make([]entity.Document, len(found))
	for n, d := range found {
		out[n] = entity.Document{
			Content: d.PageContent,
			Source:  metaString(d.Metadata, metaSource, "Unknown URL"),
			Title:   metaString(d.Metadata, metaTitle, "Untitled"),
			Domain:  metaString(d.Metadata, metaDomain, "Unknown Source"),
			Score:   d.Score,
		}
	}
	return out, nil
}

func (i *Index) Clear(ctx context.Context) error {
	return i.store.Clear(ctx)
}

func metaString(m map[string]any, key, fallback string) string {
	if s, ok := m[key].(string); ok && s != "" {
		return s
	}
	return fallback
}
