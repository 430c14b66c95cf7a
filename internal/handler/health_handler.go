package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/papersearch/internal/pkg/errcode"
	"github.com/xxxsen/papersearch/internal/pkg/response"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthHandler struct {
	store Pinger
}

func NewHealthHandler(store Pinger) *HealthHandler {
	return &HealthHandler{store: store}
}

func (h *HealthHandler) Health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		response.Error(c, errcode.ErrInternal, "store unavailable")
		return
	}
	response.Success(c, gin.H{"status": "ok"})
}
