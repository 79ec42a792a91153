package vectorstore

import (
	"context"
	"hash/fnv"
	"path/filepath"
	"strings"
	"testing"

	"research-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/embeddings"
)

// hashClient embeds text as a bag of hashed lowercase words.
type hashClient struct{}

func (hashClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, 64)
		for _, w := range strings.Fields(strings.ToLower(t)) {
			h := fnv.New32a()
			h.Write([]byte(strings.Trim(w, ".,;:!?")))
			v[h.Sum32()%64]++
		}
		out[i] = v
	}
	return out, nil
}

func newTestIndex(t *testing.T) (*Index, *Store) {
	t.Helper()
	emb, err := embeddings.NewEmbedder(hashClient{})
	require.NoError(t, err)

	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "rag", "index.db"), "webpage_rag", emb)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewIndex(store), store
}

func TestIndex_IngestThenQueryRoundTrip(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	const url = "https://example.org/remote-work-study.html"
	require.NoError(t, idx.Add(ctx, []entity.Document{
		{Content: "Remote workers reported higher productivity in the Stanford trial.", Source: url, Title: "Remote Work Study", Domain: "example.org"},
		{Content: "Volcanic soil is rich in minerals.", Source: "https://geo.example/soil", Title: "Soil", Domain: "geo.example"},
	}))

	docs, err := idx.SimilaritySearch(ctx, "remote workers productivity", 1)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, url, docs[0].Source)
	assert.Equal(t, "Remote Work Study", docs[0].Title)
	assert.Equal(t, "example.org", docs[0].Domain)
	assert.Greater(t, docs[0].Score, float32(0))
}

func TestIndex_ClearIsIdempotent(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndex(t)

	require.NoError(t, idx.Add(ctx, []entity.Document{{Content: "some evidence", Source: "https://a.example/x"}}))
	require.NoError(t, idx.Clear(ctx))
	require.NoError(t, idx.Clear(ctx))

	docs, err := idx.SimilaritySearch(ctx, "evidence", 40)
	require.NoError(t, err)
	assert.Empty(t, docs)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestIndex_MissingMetadataFallsBack(t *testing.T) {
	ctx := context.Background()
	idx, _ := newTestIndex(t)

	require.NoError(t, idx.Add(ctx, []entity.Document{{Content: "orphan chunk"}}))
	docs, err := idx.SimilaritySearch(ctx, "orphan", 5)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Unknown URL", docs[0].Source)
	assert.Equal(t, "Untitled", docs[0].Title)
}

func TestStore_CollectionsAreIsolated(t *testing.T) {
	ctx := context.Background()
	emb, err := embeddings.NewEmbedder(hashClient{})
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "index.db")

	a, err := Open(ctx, path, "a", emb)
	require.NoError(t, err)
	defer a.Close()
	b, err := Open(ctx, path, "b", emb)
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, NewIndex(a).Add(ctx, []entity.Document{{Content: "alpha"}}))
	require.NoError(t, NewIndex(b).Clear(ctx))

	n, err := a.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 2}, []float32{2, 4}), 1e-6)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-6)
	assert.Zero(t, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, []float32{1.5, -2}, decodeVector(encodeVector([]float32{1.5, -2})))
}
