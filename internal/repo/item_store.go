package repo

import (
	"context"
	"database/sql"

	"github.com/xxxsen/papersearch/internal/model"
)

// ItemStore is the read side the retrieval engine queries: nearest-neighbor
// search over workshops and papers on one shared connection pool.
type ItemStore struct {
	db        *sql.DB
	papers    *PaperRepo
	workshops *WorkshopRepo
}

func NewItemStore(db *sql.DB, papers *PaperRepo, workshops *WorkshopRepo) *ItemStore {
	return &ItemStore{db: db, papers: papers, workshops: workshops}
}

func (s *ItemStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *ItemStore) SearchWorkshops(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error) {
	return s.workshops.SearchNearest(ctx, vec, limit)
}

func (s *ItemStore) SearchPapers(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error) {
	return s.papers.SearchNearest(ctx, vec, limit)
}

func (s *ItemStore) Coverage(ctx context.Context) (*model.CoverageStats, error) {
	var stats model.CoverageStats
	var err error
	if stats.Papers, err = s.papers.Count(ctx, ""); err != nil {
		return nil, err
	}
	if stats.PapersWithTitleEmbedding, err = s.papers.Count(ctx, "title_embedding IS NOT NULL"); err != nil {
		return nil, err
	}
	if stats.PapersWithAbstractEmb, err = s.papers.Count(ctx, "abstract_embedding IS NOT NULL"); err != nil {
		return nil, err
	}
	if stats.Workshops, err = s.workshops.Count(ctx, ""); err != nil {
		return nil, err
	}
	if stats.WorkshopsWithEmbedding, err = s.workshops.Count(ctx, "abstract_embedding IS NOT NULL"); err != nil {
		return nil, err
	}
	return &stats, nil
}
