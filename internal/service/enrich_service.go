package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/ai"
	"github.com/xxxsen/papersearch/internal/embedcache"
	"github.com/xxxsen/papersearch/internal/filestore"
	"github.com/xxxsen/papersearch/internal/model"
	appErr "github.com/xxxsen/papersearch/internal/pkg/errors"
	"github.com/xxxsen/papersearch/internal/pkg/mdtext"
)

const upsertChunk = 500

type PaperWriter interface {
	UpsertBatch(ctx context.Context, papers []model.Paper) error
	ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]model.Paper, error)
	SaveEmbeddings(ctx context.Context, id int64, contentHash string, titleEmb, abstractEmb []float32) (bool, error)
}

type WorkshopWriter interface {
	UpsertBatch(ctx context.Context, workshops []model.Workshop) error
	ListMissingEmbeddings(ctx context.Context, afterID int64, limit int) ([]model.Workshop, error)
	SaveEmbedding(ctx context.Context, id int64, contentHash string, emb []float32) (bool, error)
}

type EnrichConfig struct {
	BatchSize int
}

// EnrichService loads crawled corpus files into the item tables and fills
// in missing embeddings. Only one backfill runs at a time.
type EnrichService struct {
	papers    PaperWriter
	workshops WorkshopWriter
	files     filestore.Store
	embedder  ai.IEmbedder
	cfg       EnrichConfig
	running   atomic.Bool
}

func NewEnrichService(papers PaperWriter, workshops WorkshopWriter, files filestore.Store, embedder ai.IEmbedder, cfg EnrichConfig) *EnrichService {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &EnrichService{
		papers:    papers,
		workshops: workshops,
		files:     files,
		embedder:  embedder,
		cfg:       cfg,
	}
}

// ImportFromStore reads the given keys from the configured file store. An
// empty key skips that kind.
func (s *EnrichService) ImportFromStore(ctx context.Context, papersKey, workshopsKey string) (*model.ImportStats, error) {
	if s.files == nil {
		return nil, fmt.Errorf("file store not configured")
	}
	if papersKey == "" && workshopsKey == "" {
		return nil, fmt.Errorf("%w: no corpus key given", appErr.ErrInvalid)
	}
	total := &model.ImportStats{}
	if papersKey != "" {
		st, err := s.importKey(ctx, papersKey, s.ImportPapers)
		if err != nil {
			return nil, err
		}
		total.Papers += st.Papers
		total.Skipped += st.Skipped
	}
	if workshopsKey != "" {
		st, err := s.importKey(ctx, workshopsKey, s.ImportWorkshops)
		if err != nil {
			return nil, err
		}
		total.Workshops += st.Workshops
		total.Skipped += st.Skipped
	}
	return total, nil
}

func (s *EnrichService) importKey(ctx context.Context, key string, fn func(context.Context, io.Reader) (*model.ImportStats, error)) (*model.ImportStats, error) {
	rc, err := s.files.Open(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", key, err)
	}
	defer rc.Close()
	return fn(ctx, rc)
}

func (s *EnrichService) ImportPapers(ctx context.Context, r io.Reader) (*model.ImportStats, error) {
	var records []model.PaperRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrCorrupted, err)
	}
	now := time.Now().Unix()
	stats := &model.ImportStats{}
	seen := make(map[string]struct{}, len(records))
	papers := make([]model.Paper, 0, len(records))
	for _, rec := range records {
		title := strings.TrimSpace(rec.Title)
		if title == "" {
			stats.Skipped++
			continue
		}
		if _, ok := seen[title]; ok {
			stats.Skipped++
			continue
		}
		seen[title] = struct{}{}
		abstract := strings.TrimSpace(rec.Abstract)
		papers = append(papers, model.Paper{
			Title:       title,
			Abstract:    abstract,
			Authors:     rec.Authors,
			URL:         rec.URL,
			PDFURL:      rec.PDFURL,
			ContentHash: embedcache.ContentHash(title + "\n" + abstract),
			Mtime:       now,
		})
	}
	for start := 0; start < len(papers); start += upsertChunk {
		end := min(start+upsertChunk, len(papers))
		if err := s.papers.UpsertBatch(ctx, papers[start:end]); err != nil {
			return nil, err
		}
	}
	stats.Papers = len(papers)
	logutil.GetLogger(ctx).Info("papers imported", zap.Int("count", stats.Papers), zap.Int("skipped", stats.Skipped))
	return stats, nil
}

func (s *EnrichService) ImportWorkshops(ctx context.Context, r io.Reader) (*model.ImportStats, error) {
	var grouped model.WorkshopsByCategory
	if err := json.NewDecoder(r).Decode(&grouped); err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrCorrupted, err)
	}
	now := time.Now().Unix()
	stats := &model.ImportStats{}
	seen := make(map[string]struct{})
	workshops := make([]model.Workshop, 0)
	// map order is random, sort so the first category wins a duplicate title
	// the same way on every run.
	categories := make([]string, 0, len(grouped))
	for category := range grouped {
		categories = append(categories, category)
	}
	sort.Strings(categories)
	for _, category := range categories {
		titles := make([]string, 0, len(grouped[category]))
		for title := range grouped[category] {
			titles = append(titles, title)
		}
		sort.Strings(titles)
		for _, rawTitle := range titles {
			rec := grouped[category][rawTitle]
			title := strings.TrimSpace(rawTitle)
			if title == "" {
				stats.Skipped++
				continue
			}
			if _, ok := seen[title]; ok {
				stats.Skipped++
				continue
			}
			seen[title] = struct{}{}
			w := model.Workshop{
				Title:    title,
				Category: category,
				Abstract: strings.TrimSpace(rec.Abstract),
				URL:      rec.URL,
				Topics:   rec.Topics,
				Mtime:    now,
			}
			w.ContentHash = embedcache.ContentHash(WorkshopEmbeddingText(&w))
			workshops = append(workshops, w)
		}
	}
	for start := 0; start < len(workshops); start += upsertChunk {
		end := min(start+upsertChunk, len(workshops))
		if err := s.workshops.UpsertBatch(ctx, workshops[start:end]); err != nil {
			return nil, err
		}
	}
	stats.Workshops = len(workshops)
	logutil.GetLogger(ctx).Info("workshops imported", zap.Int("count", stats.Workshops), zap.Int("skipped", stats.Skipped))
	return stats, nil
}

// WorkshopEmbeddingText is the text a workshop vector is computed from: its
// title, the plain text of its abstract, then its topic list.
func WorkshopEmbeddingText(w *model.Workshop) string {
	var sb strings.Builder
	sb.WriteString(w.Title)
	if abstract := mdtext.Plain(w.Abstract); abstract != "" {
		sb.WriteString("\n")
		sb.WriteString(abstract)
	}
	if len(w.Topics) > 0 {
		sb.WriteString("\nTopics:\n")
		sb.WriteString(strings.Join(w.Topics, "\n"))
	}
	return sb.String()
}

// BackfillEmbeddings embeds up to limit papers and limit workshops that lack
// vectors. limit <= 0 processes everything.
func (s *EnrichService) BackfillEmbeddings(ctx context.Context, limit int) (*model.BackfillStats, error) {
	if s.embedder == nil {
		return nil, ai.ErrUnavailable
	}
	if !s.running.CompareAndSwap(false, true) {
		return nil, appErr.ErrBusy
	}
	defer s.running.Store(false)

	stats := &model.BackfillStats{}
	start := time.Now()
	if err := s.backfillPapers(ctx, limit, stats); err != nil {
		return stats, err
	}
	if err := s.backfillWorkshops(ctx, limit, stats); err != nil {
		return stats, err
	}
	logutil.GetLogger(ctx).Info("embedding backfill finished",
		zap.Int("papers", stats.Papers),
		zap.Int("workshops", stats.Workshops),
		zap.Int("failed", stats.Failed),
		zap.Duration("cost", time.Since(start)),
	)
	return stats, nil
}

func (s *EnrichService) Running() bool {
	return s.running.Load()
}

func (s *EnrichService) batchSize(done, limit int) int {
	n := s.cfg.BatchSize
	if limit > 0 && limit-done < n {
		n = limit - done
	}
	return n
}

func (s *EnrichService) backfillPapers(ctx context.Context, limit int, stats *model.BackfillStats) error {
	var cursor int64
	processed := 0
	for limit <= 0 || processed < limit {
		papers, err := s.papers.ListMissingEmbeddings(ctx, cursor, s.batchSize(processed, limit))
		if err != nil {
			return err
		}
		if len(papers) == 0 {
			return nil
		}
		cursor = papers[len(papers)-1].ID
		processed += len(papers)

		texts := make([]string, 0, len(papers)*2)
		for _, p := range papers {
			texts = append(texts, p.Title)
			if p.Abstract != "" {
				texts = append(texts, p.Abstract)
			}
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts, ai.TaskTypeUnspecified)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logutil.GetLogger(ctx).Error("embed paper batch failed", zap.Int64("cursor", cursor), zap.Error(err))
			stats.Failed += len(papers)
			continue
		}
		idx := 0
		for _, p := range papers {
			titleEmb := vecs[idx]
			idx++
			var abstractEmb []float32
			if p.Abstract != "" {
				abstractEmb = vecs[idx]
				idx++
			}
			ok, err := s.papers.SaveEmbeddings(ctx, p.ID, p.ContentHash, titleEmb, abstractEmb)
			if err != nil {
				logutil.GetLogger(ctx).Error("save paper embeddings failed", zap.Int64("paper_id", p.ID), zap.Error(err))
				stats.Failed++
				continue
			}
			if !ok {
				logutil.GetLogger(ctx).Debug("paper changed during backfill", zap.Int64("paper_id", p.ID))
				continue
			}
			stats.Papers++
		}
	}
	return nil
}

func (s *EnrichService) backfillWorkshops(ctx context.Context, limit int, stats *model.BackfillStats) error {
	var cursor int64
	processed := 0
	for limit <= 0 || processed < limit {
		workshops, err := s.workshops.ListMissingEmbeddings(ctx, cursor, s.batchSize(processed, limit))
		if err != nil {
			return err
		}
		if len(workshops) == 0 {
			return nil
		}
		cursor = workshops[len(workshops)-1].ID
		processed += len(workshops)

		texts := make([]string, 0, len(workshops))
		for i := range workshops {
			texts = append(texts, WorkshopEmbeddingText(&workshops[i]))
		}
		vecs, err := s.embedder.EmbedBatch(ctx, texts, ai.TaskTypeUnspecified)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logutil.GetLogger(ctx).Error("embed workshop batch failed", zap.Int64("cursor", cursor), zap.Error(err))
			stats.Failed += len(workshops)
			continue
		}
		for i, w := range workshops {
			ok, err := s.workshops.SaveEmbedding(ctx, w.ID, w.ContentHash, vecs[i])
			if err != nil {
				logutil.GetLogger(ctx).Error("save workshop embedding failed", zap.Int64("workshop_id", w.ID), zap.Error(err))
				stats.Failed++
				continue
			}
			if ok {
				stats.Workshops++
			}
		}
	}
	return nil
}
