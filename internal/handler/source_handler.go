package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/response"
)

type SourceReader interface {
	GetByID(ctx context.Context, id string) (*model.DocumentSource, error)
}

type SourceHandler struct {
	sources SourceReader
}

func NewSourceHandler(sources SourceReader) *SourceHandler {
	return &SourceHandler{sources: sources}
}

func (h *SourceHandler) Get(c *gin.Context) {
	src, err := h.sources.GetByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, src)
}
