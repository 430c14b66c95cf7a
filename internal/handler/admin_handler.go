package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/model"
	appErr "github.com/xxxsen/papersearch/internal/pkg/errors"
	"github.com/xxxsen/papersearch/internal/pkg/errcode"
	"github.com/xxxsen/papersearch/internal/pkg/response"
)

type AdminLoginer interface {
	Login(ctx context.Context, password string) (string, error)
}

type Enricher interface {
	ImportFromStore(ctx context.Context, papersKey, workshopsKey string) (*model.ImportStats, error)
	BackfillEmbeddings(ctx context.Context, limit int) (*model.BackfillStats, error)
	Running() bool
}

type CoverageReader interface {
	Coverage(ctx context.Context) (*model.CoverageStats, error)
}

type AdminHandler struct {
	auth     AdminLoginer
	enrich   Enricher
	coverage CoverageReader
	// background runs detached backfills; tests replace it to run inline.
	background func(fn func())
}

func NewAdminHandler(auth AdminLoginer, enrich Enricher, coverage CoverageReader) *AdminHandler {
	return &AdminHandler{
		auth:       auth,
		enrich:     enrich,
		coverage:   coverage,
		background: func(fn func()) { go fn() },
	}
}

type adminLoginRequest struct {
	Password string `json:"password"`
}

func (h *AdminHandler) Login(c *gin.Context) {
	var req adminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	token, err := h.auth.Login(c.Request.Context(), req.Password)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"token": token})
}

type enrichRequest struct {
	PapersKey    string `json:"papers_key"`
	WorkshopsKey string `json:"workshops_key"`
	Limit        int    `json:"limit"`
}

// Enrich optionally imports corpus files, then starts an embedding backfill
// in the background.
func (h *AdminHandler) Enrich(c *gin.Context) {
	var req enrichRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, errcode.ErrInvalid, "invalid request")
			return
		}
	}
	if req.Limit < 0 {
		response.Error(c, errcode.ErrInvalid, "limit must not be negative")
		return
	}
	if h.enrich.Running() {
		handleError(c, appErr.ErrBusy)
		return
	}
	imported := &model.ImportStats{}
	if req.PapersKey != "" || req.WorkshopsKey != "" {
		st, err := h.enrich.ImportFromStore(c.Request.Context(), req.PapersKey, req.WorkshopsKey)
		if err != nil {
			handleError(c, err)
			return
		}
		imported = st
	}
	limit := req.Limit
	h.background(func() {
		ctx := context.Background()
		start := time.Now()
		stats, err := h.enrich.BackfillEmbeddings(ctx, limit)
		if err != nil {
			logutil.GetLogger(ctx).Error("admin backfill failed", zap.Error(err))
			return
		}
		logutil.GetLogger(ctx).Info("admin backfill done",
			zap.Int("papers", stats.Papers),
			zap.Int("workshops", stats.Workshops),
			zap.Duration("cost", time.Since(start)),
		)
	})
	response.Success(c, gin.H{"imported": imported, "started": true})
}

func (h *AdminHandler) Stats(c *gin.Context) {
	stats, err := h.coverage.Coverage(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, gin.H{"coverage": stats, "enriching": h.enrich.Running()})
}
