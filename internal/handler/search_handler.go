package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/papersearch/internal/middleware"
	"github.com/xxxsen/papersearch/internal/model"
	"github.com/xxxsen/papersearch/internal/pkg/response"
	"github.com/xxxsen/papersearch/internal/retrieval"
)

type Searcher interface {
	Search(ctx context.Context, query string, opts retrieval.Options) ([]model.SearchResult, retrieval.Report)
}

type SearchHandler struct {
	engine Searcher
}

func NewSearchHandler(engine Searcher) *SearchHandler {
	return &SearchHandler{engine: engine}
}

type searchRequest struct {
	Query           string `json:"query"`
	SearchPapers    *bool  `json:"search_papers"`
	SearchWorkshops *bool  `json:"search_workshops"`
}

// Search always answers with a json array. Bad input and degraded searches
// both produce [] rather than an error envelope.
func (h *SearchHandler) Search(c *gin.Context) {
	req, ok := bindSearchRequest(c)
	if !ok {
		response.Array(c, []model.SearchResult{})
		return
	}
	opts := retrieval.Options{
		SearchPapers:    boolOr(req.SearchPapers, true),
		SearchWorkshops: boolOr(req.SearchWorkshops, true),
	}
	results, report := h.engine.Search(c.Request.Context(), req.Query, opts)
	if report.Degraded() {
		logutil.GetLogger(c.Request.Context()).Debug("search served degraded",
			zap.String("request_id", middleware.GetRequestID(c)),
			zap.Int("failures", len(report.Failures)),
		)
	}
	response.Array(c, results)
}

func bindSearchRequest(c *gin.Context) (*searchRequest, bool) {
	req := &searchRequest{}
	if strings.HasPrefix(c.ContentType(), "application/json") {
		if err := c.ShouldBindJSON(req); err != nil {
			logutil.GetLogger(c.Request.Context()).Warn("bad search request", zap.Error(err))
			return nil, false
		}
		return req, true
	}
	req.Query = c.PostForm("query")
	papers := formBool(c.DefaultPostForm("search_papers", "true"))
	workshops := formBool(c.DefaultPostForm("search_workshops", "true"))
	req.SearchPapers = &papers
	req.SearchWorkshops = &workshops
	return req, true
}

func formBool(v string) bool {
	return strings.EqualFold(strings.TrimSpace(v), "true")
}

func boolOr(v *bool, def bool) bool {
	if v == nil {
		return def
	}
	return *v
}
