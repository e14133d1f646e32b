package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/xxxsen/coachrag/internal/middleware"
	"github.com/xxxsen/coachrag/internal/model"
	"github.com/xxxsen/coachrag/internal/pkg/errcode"
	"github.com/xxxsen/coachrag/internal/pkg/response"
	"github.com/xxxsen/coachrag/internal/service"
)

type Searcher interface {
	Search(ctx context.Context, req service.SearchRequest) (*service.SearchResponse, error)
}

type SearchHandler struct {
	search Searcher
}

func NewSearchHandler(search Searcher) *SearchHandler {
	return &SearchHandler{search: search}
}

type searchRequest struct {
	Query     string   `json:"query"`
	CoachID   string   `json:"coach_id"`
	Limit     int      `json:"limit"`
	Threshold *float64 `json:"threshold"`
	Tier      string   `json:"tier"`
}

// Search ranks chunks for the caller's coach. The caller may narrow the tier
// below its entitlement but never widen it.
func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, errcode.ErrInvalid, "invalid request")
		return
	}
	tier := middleware.Tier(c)
	if req.Tier != "" {
		requested, err := model.ParseAccessTier(req.Tier)
		if err != nil {
			response.Error(c, errcode.ErrInvalid, err.Error())
			return
		}
		if tierAllows(tier, requested) {
			tier = requested
		}
	}
	resp, err := h.search.Search(c.Request.Context(), service.SearchRequest{
		Query:     req.Query,
		CoachID:   req.CoachID,
		Limit:     req.Limit,
		Threshold: req.Threshold,
		Tier:      tier,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, resp)
}

func tierAllows(entitled, requested model.AccessTier) bool {
	for _, t := range model.TiersUpTo(entitled) {
		if t == requested {
			return true
		}
	}
	return false
}
