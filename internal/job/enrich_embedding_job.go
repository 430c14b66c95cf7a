package job

import (
	"context"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/model"
)

type Backfiller interface {
	BackfillEmbeddings(ctx context.Context, limit int) (*model.BackfillStats, error)
}

// EnrichEmbeddingJob embeds items imported since the last run.
type EnrichEmbeddingJob struct {
	backfill Backfiller
	limit    int
}

func NewEnrichEmbeddingJob(backfill Backfiller, limit int) *EnrichEmbeddingJob {
	return &EnrichEmbeddingJob{backfill: backfill, limit: limit}
}

func (j *EnrichEmbeddingJob) Name() string {
	return "enrich_embedding"
}

func (j *EnrichEmbeddingJob) Run(ctx context.Context) error {
	if j.backfill == nil {
		return nil
	}
	stats, err := j.backfill.BackfillEmbeddings(ctx, j.limit)
	if err != nil {
		return err
	}
	if stats.Failed > 0 {
		logutil.GetLogger(ctx).Warn("embedding backfill had failures", zap.Int("failed", stats.Failed))
	}
	return nil
}
