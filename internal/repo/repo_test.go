package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/papersearch/internal/model"
	appErr "github.com/xxxsen/papersearch/internal/pkg/errors"
	"github.com/xxxsen/papersearch/internal/repo"
	"github.com/xxxsen/papersearch/test/testutil"
)

func TestPaperRepoNearestSelf(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	papers := repo.NewPaperRepo(db)

	require.NoError(t, papers.UpsertBatch(ctx, []model.Paper{
		{Title: "Diffusion Models", Abstract: "a", Authors: []string{"X", "Y"}, ContentHash: "h1", Mtime: 1},
		{Title: "Graph Networks", Abstract: "b", ContentHash: "h2", Mtime: 1},
		{Title: "No Embeddings", Abstract: "c", ContentHash: "h3", Mtime: 1},
	}))
	missing, err := papers.ListMissingEmbeddings(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, missing, 3)
	for i, p := range missing[:2] {
		ok, err := papers.SaveEmbeddings(ctx, p.ID, p.ContentHash, testutil.UnitVector(i), testutil.UnitVector(i))
		require.NoError(t, err)
		require.True(t, ok)
	}

	hits, err := papers.SearchNearest(ctx, testutil.UnitVector(1), 50)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	require.Equal(t, "Graph Networks", hits[0].Item.GetTitle())
	require.InDelta(t, 0, hits[0].Distance, 1e-6)
	require.InDelta(t, 1, hits[1].Distance, 1e-6)

	got, err := papers.GetByTitle(ctx, "Diffusion Models")
	require.NoError(t, err)
	require.Equal(t, []string{"X", "Y"}, got.Authors)
	require.Len(t, got.AbstractEmbedding, 768)

	_, err = papers.GetByTitle(ctx, "missing")
	require.ErrorIs(t, err, appErr.ErrNotFound)
}

func TestPaperRepoUpsertKeepsEmbeddingsForSameContent(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	papers := repo.NewPaperRepo(db)

	require.NoError(t, papers.UpsertBatch(ctx, []model.Paper{{Title: "P", Abstract: "a", ContentHash: "h1"}}))
	p, err := papers.GetByTitle(ctx, "P")
	require.NoError(t, err)
	ok, err := papers.SaveEmbeddings(ctx, p.ID, "h1", testutil.UnitVector(0), testutil.UnitVector(0))
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, papers.UpsertBatch(ctx, []model.Paper{{Title: "P", Abstract: "a", URL: "https://x", ContentHash: "h1"}}))
	p, err = papers.GetByTitle(ctx, "P")
	require.NoError(t, err)
	require.NotNil(t, p.TitleEmbedding)
	require.Equal(t, "https://x", p.URL)

	require.NoError(t, papers.UpsertBatch(ctx, []model.Paper{{Title: "P", Abstract: "changed", ContentHash: "h2"}}))
	p, err = papers.GetByTitle(ctx, "P")
	require.NoError(t, err)
	require.Nil(t, p.TitleEmbedding)

	// stale hash never overwrites
	ok, err = papers.SaveEmbeddings(ctx, p.ID, "h1", testutil.UnitVector(0), nil)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestWorkshopRepoNearest(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	workshops := repo.NewWorkshopRepo(db)

	require.NoError(t, workshops.UpsertBatch(ctx, []model.Workshop{
		{Title: "Workshop A", Category: "Vision", Topics: []string{"3d"}, ContentHash: "a"},
		{Title: "Workshop B", Category: "Robotics", ContentHash: "b"},
	}))
	missing, err := workshops.ListMissingEmbeddings(ctx, 0, 10)
	require.NoError(t, err)
	require.Len(t, missing, 2)
	after, err := workshops.ListMissingEmbeddings(ctx, missing[0].ID, 10)
	require.NoError(t, err)
	require.Len(t, after, 1)

	ok, err := workshops.SaveEmbedding(ctx, missing[0].ID, "a", testutil.UnitVector(3))
	require.NoError(t, err)
	require.True(t, ok)

	hits, err := workshops.SearchNearest(ctx, testutil.UnitVector(3), 20)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	require.Equal(t, "Workshop A", hits[0].Item.GetTitle())
	require.Equal(t, model.ItemKindWorkshop, hits[0].Item.Kind())
	require.InDelta(t, 0, hits[0].Distance, 1e-6)

	store := repo.NewItemStore(db, repo.NewPaperRepo(db), workshops)
	require.NoError(t, store.Ping(ctx))
	cov, err := store.Coverage(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(2), cov.Workshops)
	require.Equal(t, int64(1), cov.WorkshopsWithEmbedding)
}

func TestEmbeddingCacheRepo(t *testing.T) {
	db, cleanup := testutil.OpenTestDB(t)
	defer cleanup()
	ctx := context.Background()
	cache := repo.NewEmbeddingCacheRepo(db)

	now := time.Now().Unix()
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m", ContentHash: "old", Embedding: testutil.UnitVector(0), Ctime: now - 100}))
	require.NoError(t, cache.Save(ctx, &model.EmbeddingCache{ModelName: "m", ContentHash: "new", Embedding: testutil.UnitVector(1), Ctime: now}))

	got, err := cache.GetMany(ctx, "m", "", []string{"old", "new", "absent"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, float32(1), got["new"][1])

	deleted, err := cache.DeleteBefore(ctx, now-10)
	require.NoError(t, err)
	require.Equal(t, int64(1), deleted)
}
