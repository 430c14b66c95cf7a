package job

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papersearch/internal/model"
)

type fakeBackfiller struct {
	limit int
	err   error
}

func (f *fakeBackfiller) BackfillEmbeddings(ctx context.Context, limit int) (*model.BackfillStats, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return &model.BackfillStats{Papers: 1, Failed: 1}, nil
}

func TestEnrichEmbeddingJob(t *testing.T) {
	b := &fakeBackfiller{}
	j := NewEnrichEmbeddingJob(b, 200)
	require.Equal(t, "enrich_embedding", j.Name())
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, 200, b.limit)

	b.err = errors.New("db down")
	require.Error(t, j.Run(context.Background()))
	require.NoError(t, NewEnrichEmbeddingJob(nil, 1).Run(context.Background()))
}

type fakeCleaner struct {
	cutoff int64
}

func (f *fakeCleaner) DeleteBefore(ctx context.Context, cutoff int64) (int64, error) {
	f.cutoff = cutoff
	return 3, nil
}

func TestEmbeddingCacheCleanupJob(t *testing.T) {
	now := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)
	c := &fakeCleaner{}
	j := NewEmbeddingCacheCleanupJob(c, 0)
	j.now = func() time.Time { return now }
	require.NoError(t, j.Run(context.Background()))
	require.Equal(t, now.Add(-30*24*time.Hour).Unix(), c.cutoff)
}
