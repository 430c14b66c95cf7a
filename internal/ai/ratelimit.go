package ai

import (
	"context"

	"golang.org/x/time/rate"
)

// WithRateLimit makes every batch call wait for a token from limiter.
func WithRateLimit(e IEmbedder, limiter *rate.Limiter) IEmbedder {
	if e == nil || limiter == nil {
		return e
	}
	return &limitedEmbedder{next: e, limiter: limiter}
}

type limitedEmbedder struct {
	next    IEmbedder
	limiter *rate.Limiter
}

func (l *limitedEmbedder) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	res, err := l.EmbedBatch(ctx, []string{text}, taskType)
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

func (l *limitedEmbedder) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return l.next.EmbedBatch(ctx, texts, taskType)
}

func (l *limitedEmbedder) ModelName() string {
	return l.next.ModelName()
}
