package testutil

import (
	"context"
	"strings"
	"sync"

	"research-agent/internal/domain/entity"
)

// Index is an in-memory RetrievalIndex. Search returns documents containing
// any query word first, then the rest, in insertion order.
type Index struct {
	mu       sync.Mutex
	Docs     []entity.Document
	Clears   int
	AddErr   error
	ClearErr error
	Queries  []string
}

func NewIndex(docs ...entity.Document) *Index {
	return &Index{Docs: docs}
}

func (i *Index) Add(ctx context.Context, docs []entity.Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.AddErr != nil {
		return i.AddErr
	}
	i.Docs = append(i.Docs, docs...)
	return nil
}

func (i *Index) SimilaritySearch(ctx context.Context, query string, k int) ([]entity.Document, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.Queries = append(i.Queries, query)

	words := strings.Fields(strings.ToLower(query))
	var hits, rest []entity.Document
	for _, d := range i.Docs {
		content := strings.ToLower(d.Content)
		matched := false
		for _, w := range words {
			if strings.Contains(content, w) {
				matched = true
				break
			}
		}
		if matched {
			hits = append(hits, d)
		} else {
			rest = append(rest, d)
		}
	}
	out := append(hits, rest...)
	if k > 0 && len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (i *Index) Clear(ctx context.Context) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.ClearErr != nil {
		return i.ClearErr
	}
	i.Clears++
	i.Docs = nil
	return nil
}

// Extractor returns fixed text per URL or an error.
type Extractor struct {
	Pages     map[string]string
	Documents map[string]string
	Err       error
	Calls     []string
}

func (e *Extractor) ExtractWebpage(ctx context.Context, url, renderedHTML string) (string, error) {
	e.Calls = append(e.Calls, "webpage "+url)
	if e.Err != nil {
		return "", e.Err
	}
	return e.Pages[url], nil
}

func (e *Extractor) ExtractDocument(ctx context.Context, url string) (string, error) {
	e.Calls = append(e.Calls, "document "+url)
	if e.Err != nil {
		return "", e.Err
	}
	return e.Documents[url], nil
}
