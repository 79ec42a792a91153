package output

import (
	"context"
	"errors"

	"research-agent/internal/domain/entity"
)

// RetrievalIndex is subtopic-scoped working memory. It has a single writer.
type RetrievalIndex interface {
	Add(ctx context.Context, docs []entity.Document) error
	SimilaritySearch(ctx context.Context, query string, k int) ([]entity.Document, error)
	Clear(ctx context.Context) error
}

var (
	ErrForbidden   = errors.New("access to source denied")
	ErrNoData      = errors.New("no extractable text")
	ErrNotDocument = errors.New("not a valid PDF file")
)

// ContentExtractor returns page text or one of ErrForbidden, ErrNoData,
// ErrNotDocument.
type ContentExtractor interface {
	ExtractWebpage(ctx context.Context, url, renderedHTML string) (string, error)
	ExtractDocument(ctx context.Context, url string) (string, error)
}
