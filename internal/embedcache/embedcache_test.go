package embedcache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papersearch/internal/model"
)

type countingEmbedder struct {
	texts []string
}

func (c *countingEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := c.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	c.texts = append(c.texts, texts...)
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (c *countingEmbedder) ModelName() string {
	return "test-model"
}

type memStore struct {
	items map[string][]float32
}

func (m *memStore) GetMany(ctx context.Context, modelName, taskType string, hashes []string) (map[string][]float32, error) {
	out := map[string][]float32{}
	for _, h := range hashes {
		if v, ok := m.items[modelName+taskType+h]; ok {
			out[h] = v
		}
	}
	return out, nil
}

func (m *memStore) Save(ctx context.Context, item *model.EmbeddingCache) error {
	m.items[item.ModelName+item.TaskType+item.ContentHash] = item.Embedding
	return nil
}

func TestLruEmbedderOnlyEmbedsMisses(t *testing.T) {
	next := &countingEmbedder{}
	e := WrapLruCacheToEmbedder(next, 16, time.Minute)
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"a", "bb"}, "")
	require.NoError(t, err)
	res, err := e.EmbedBatch(ctx, []string{"bb", "ccc", "a"}, "")
	require.NoError(t, err)
	require.Equal(t, []string{"a", "bb", "ccc"}, next.texts)
	require.Equal(t, [][]float32{{2, 1}, {3, 1}, {1, 1}}, res)
}

func TestDBEmbedderReusesStoredVectors(t *testing.T) {
	store := &memStore{items: map[string][]float32{}}
	next := &countingEmbedder{}
	e := WrapDBCacheToEmbedder(next, store)
	ctx := context.Background()

	_, err := e.EmbedBatch(ctx, []string{"title", "abstract"}, "")
	require.NoError(t, err)
	require.Len(t, store.items, 2)

	res, err := WrapDBCacheToEmbedder(&countingEmbedder{}, store).EmbedBatch(ctx, []string{"abstract"}, "")
	require.NoError(t, err)
	require.Equal(t, [][]float32{{8, 1}}, res)
	require.Equal(t, []string{"title", "abstract"}, next.texts)
}

func TestContentHashIsStable(t *testing.T) {
	require.Equal(t, ContentHash("x"), ContentHash("x"))
	require.NotEqual(t, ContentHash("x"), ContentHash("y"))
	require.Len(t, ContentHash(""), 64)
}
