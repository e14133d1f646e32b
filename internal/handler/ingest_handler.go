package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coachrag/internal/ai"
	"github.com/xxxsen/coachrag/internal/filestore"
	"github.com/xxxsen/coachrag/internal/loader"
	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	appErr "github.com/xxxsen/coachrag/internal/pkg/errors"
	"github.com/xxxsen/coachrag/internal/pkg/response"
	"github.com/xxxsen/coachrag/internal/service"
)

var errNoFileStore = fmt.Errorf("file store not configured: %w", appErr.ErrInvalidInput)

type Ingester interface {
	Ingest(ctx context.Context, doc service.IngestDocument, opts service.IngestOptions, observer ai.ProgressObserver) (*service.IngestResult, error)
}

type IngestHandler struct {
	ingest Ingester
	groups service.CoachGroups
	store  filestore.Store
}

func NewIngestHandler(ingest Ingester, groups service.CoachGroups, store filestore.Store) *IngestHandler {
	return &IngestHandler{ingest: ingest, groups: groups, store: store}
}

type ingestRequest struct {
	Title       string            `json:"title"`
	Content     string            `json:"content"`
	SourceType  string            `json:"source_type"`
	FileKey     string            `json:"file_key"`
	Tier        string            `json:"tier"`
	Coaches     []string          `json:"coaches"`
	Tags        []string          `json:"tags"`
	Extra       map[string]string `json:"extra"`
	Attribution model.Attribution `json:"attribution"`
}

func (h *IngestHandler) Ingest(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	tier, err := model.ParseAccessTier(req.Tier)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, err.Error())
		return
	}
	coaches, err := h.groups.Expand(req.Coaches)
	if err != nil {
		response.Error(c, errcode.ErrInvalid, "at least one coach is required")
		return
	}
	doc, err := h.document(c.Request.Context(), req)
	if err != nil {
		handleError(c, err)
		return
	}
	res, err := h.ingest.Ingest(c.Request.Context(), doc, service.IngestOptions{
		Attribution: req.Attribution,
		Tier:        tier,
		Tags:        req.Tags,
		Coaches:     coaches,
		Extra:       req.Extra,
	}, nil)
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, res)
}

func (h *IngestHandler) document(ctx context.Context, req ingestRequest) (service.IngestDocument, error) {
	if strings.TrimSpace(req.FileKey) == "" {
		return service.IngestDocument{
			Title:      req.Title,
			Content:    req.Content,
			SourceType: req.SourceType,
		}, nil
	}
	if h.store == nil {
		return service.IngestDocument{}, errNoFileStore
	}
	loaded, err := loader.Load(ctx, h.store, req.FileKey, req.SourceType)
	if err != nil {
		return service.IngestDocument{}, err
	}
	title := req.Title
	if strings.TrimSpace(title) == "" {
		title = loaded.Title
	}
	return service.IngestDocument{
		Title:      title,
		Content:    loaded.Content,
		SourceType: loaded.SourceType,
		ByteSize:   loaded.ByteSize,
	}, nil
}
