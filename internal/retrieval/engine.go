package retrieval

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/xxxsen/common/logutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/ai"
	"github.com/xxxsen/papersearch/internal/keyword"
	"github.com/xxxsen/papersearch/internal/model"
)

const tracerName = "internal/retrieval"

type ItemStore interface {
	Ping(ctx context.Context) error
	SearchWorkshops(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error)
	SearchPapers(ctx context.Context, vec []float32, limit int) ([]model.Candidate, error)
}

type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error)
}

type KeywordExtractor interface {
	Extract(text string) keyword.Set
}

type Config struct {
	VariantCount      int
	WorkshopLimit     int
	PaperLimit        int
	WorkshopThreshold float64
	PaperThreshold    float64
	MaxResults        int
	Timeout           time.Duration
	Parallelism       int
}

func DefaultConfig() Config {
	return Config{
		VariantCount:      9,
		WorkshopLimit:     20,
		PaperLimit:        50,
		WorkshopThreshold: 0.6,
		PaperThreshold:    0.5,
		MaxResults:        20,
		Timeout:           15 * time.Second,
		Parallelism:       1,
	}
}

type Options struct {
	SearchPapers    bool
	SearchWorkshops bool
}

func DefaultOptions() Options {
	return Options{SearchPapers: true, SearchWorkshops: true}
}

type Engine struct {
	store     ItemStore
	expander  QueryExpander
	embedder  Embedder
	extractor KeywordExtractor
	cfg       Config
	pool      *ants.Pool
}

func NewEngine(store ItemStore, expander QueryExpander, embedder Embedder, extractor KeywordExtractor, cfg Config) (*Engine, error) {
	if store == nil || embedder == nil || extractor == nil {
		return nil, fmt.Errorf("retrieval engine requires store, embedder and keyword extractor")
	}
	e := &Engine{
		store:     store,
		expander:  expander,
		embedder:  embedder,
		extractor: extractor,
		cfg:       cfg,
	}
	if cfg.Parallelism > 1 {
		pool, err := ants.NewPool(cfg.Parallelism)
		if err != nil {
			return nil, fmt.Errorf("create variant pool: %w", err)
		}
		e.pool = pool
	}
	return e, nil
}

func (e *Engine) Close() {
	if e.pool != nil {
		e.pool.Release()
	}
}

// Search never fails: every problem degrades to fewer or zero results and is
// described in the returned report.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]model.SearchResult, Report) {
	var report Report
	results := []model.SearchResult{}
	if strings.TrimSpace(query) == "" {
		report.Aborted = ErrEmptyQuery
		return results, report
	}
	if e.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
		defer cancel()
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.search")
	defer span.End()
	start := time.Now()
	defer func() {
		span.SetAttributes(attribute.Int("variants", report.Variants), attribute.Int("results", report.Results))
		if report.Aborted != nil {
			span.SetStatus(codes.Error, report.Aborted.Error())
		}
		e.logReport(ctx, query, report, time.Since(start))
	}()

	variants, err := e.expand(ctx, query)
	if err != nil {
		report.fail(StageExpand, -1, ErrProviderUnavailable, err)
	}
	report.Variants = len(variants)

	vectors, err := e.embed(ctx, variants)
	if err != nil {
		report.Aborted = fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		report.fail(StageEmbed, -1, ErrProviderUnavailable, err)
		return results, report
	}
	if err := e.store.Ping(ctx); err != nil {
		report.Aborted = fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		report.fail(StageConnect, -1, ErrStoreUnavailable, err)
		return results, report
	}

	outs := e.searchVariants(ctx, variants, vectors, opts)
	results = mergeVariants(outs)
	for _, out := range outs {
		report.Failures = append(report.Failures, out.failures...)
	}
	results = rankResults(results, e.cfg.MaxResults)
	report.Results = len(results)
	return results, report
}

func (e *Engine) expand(ctx context.Context, query string) ([]string, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.expand")
	defer span.End()
	variants, err := expandVariants(ctx, e.expander, query, e.cfg.VariantCount)
	if err != nil {
		span.RecordError(err)
	}
	return variants, err
}

func (e *Engine) embed(ctx context.Context, variants []string) ([][]float32, error) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.embed")
	defer span.End()
	vectors, err := e.embedder.EmbedBatch(ctx, variants, ai.TaskTypeUnspecified)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(vectors) != len(variants) {
		err := fmt.Errorf("got %d embeddings for %d variants", len(vectors), len(variants))
		span.RecordError(err)
		return nil, err
	}
	return vectors, nil
}

type variantOutput struct {
	accepted []model.SearchResult
	failures []StageError
}

func (e *Engine) searchVariants(ctx context.Context, variants []string, vectors [][]float32, opts Options) []variantOutput {
	outs := make([]variantOutput, len(variants))
	if e.pool == nil || len(variants) == 1 {
		for i := range variants {
			outs[i] = e.searchVariant(ctx, i, variants[i], vectors[i], opts)
		}
		return outs
	}
	var wg sync.WaitGroup
	for i := range variants {
		idx := i
		wg.Add(1)
		task := func() {
			defer wg.Done()
			outs[idx] = e.searchVariant(ctx, idx, variants[idx], vectors[idx], opts)
		}
		if err := e.pool.Submit(task); err != nil {
			task()
		}
	}
	wg.Wait()
	return outs
}

func (e *Engine) searchVariant(ctx context.Context, idx int, variant string, vec []float32, opts Options) variantOutput {
	var out variantOutput
	if len(vec) == 0 {
		out.failures = append(out.failures, StageError{Stage: StageEmbed, Variant: idx, Err: ErrProviderUnavailable})
		return out
	}
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retrieval.variant")
	defer span.End()
	span.SetAttributes(attribute.Int("variant", idx))

	keywords := e.extractor.Extract(variant)
	if opts.SearchWorkshops {
		cands, err := e.store.SearchWorkshops(ctx, vec, e.cfg.WorkshopLimit)
		if err != nil {
			out.failures = append(out.failures, StageError{Stage: StageSearchWorkshop, Variant: idx, Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)})
		} else {
			out.accepted = appendAccepted(out.accepted, cands, keywords, e.cfg.WorkshopThreshold)
		}
	}
	if opts.SearchPapers {
		cands, err := e.store.SearchPapers(ctx, vec, e.cfg.PaperLimit)
		if err != nil {
			out.failures = append(out.failures, StageError{Stage: StageSearchPaper, Variant: idx, Err: fmt.Errorf("%w: %v", ErrStoreUnavailable, err)})
		} else {
			out.accepted = appendAccepted(out.accepted, cands, keywords, e.cfg.PaperThreshold)
		}
	}
	return out
}

func appendAccepted(dst []model.SearchResult, cands []model.Candidate, keywords keyword.Set, threshold float64) []model.SearchResult {
	for _, c := range cands {
		if c.Item == nil {
			continue
		}
		if keyword.OverlapRatio(keywords, c.Item.GetTitle(), c.Item.GetAbstract()) < threshold {
			continue
		}
		dst = append(dst, toResult(c))
	}
	return dst
}

func toResult(c model.Candidate) model.SearchResult {
	return model.SearchResult{
		Title:    c.Item.GetTitle(),
		Abstract: c.Item.GetAbstract(),
		Authors:  c.Item.GetAuthors(),
		Link:     c.Item.GetLink(),
		Score:    scoreFromDistance(c.Distance),
		Kind:     c.Item.Kind(),
	}
}

// mergeVariants walks the per-variant buffers in variant order so the first
// variant to accept a title keeps it regardless of which goroutine finished
// first.
func mergeVariants(outs []variantOutput) []model.SearchResult {
	seen := make(map[string]struct{})
	merged := []model.SearchResult{}
	for _, out := range outs {
		for _, r := range out.accepted {
			if _, ok := seen[r.Title]; ok {
				continue
			}
			seen[r.Title] = struct{}{}
			merged = append(merged, r)
		}
	}
	return merged
}

func (e *Engine) logReport(ctx context.Context, query string, report Report, cost time.Duration) {
	logger := logutil.GetLogger(ctx).With(
		zap.String("query", query),
		zap.Int("variants", report.Variants),
		zap.Int("results", report.Results),
		zap.Duration("cost", cost),
	)
	if !report.Degraded() {
		logger.Debug("search finished")
		return
	}
	fields := make([]zap.Field, 0, len(report.Failures)+1)
	if report.Aborted != nil {
		fields = append(fields, zap.NamedError("aborted", report.Aborted))
	}
	for i, f := range report.Failures {
		fields = append(fields, zap.String(fmt.Sprintf("failure_%d", i), f.Error()))
	}
	logger.Warn("search degraded", fields...)
}
