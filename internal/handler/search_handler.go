package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/intellipatent/intellipatent/internal/pkg/errcode"
	"github.com/intellipatent/intellipatent/internal/pkg/response"
	"github.com/intellipatent/intellipatent/internal/service"
)

type SearchHandler struct {
	search   *service.SearchService
	sessions *service.SessionService
}

func NewSearchHandler(search *service.SearchService, sessions *service.SessionService) *SearchHandler {
	return &SearchHandler{search: search, sessions: sessions}
}

type searchRequest struct {
	Query   string `json:"query"`
	TopK    int    `json:"top_k"`
	Hybrid  bool   `json:"hybrid"`
	Summary bool   `json:"summary"`
}

func (h *SearchHandler) Search(c *gin.Context) {
	var req searchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "invalid request")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "query is required")
		return
	}
	if req.TopK < 0 {
		response.Error(c, http.StatusBadRequest, errcode.ErrInvalid, "top_k must be non-negative")
		return
	}

	state := h.sessions.Get(getSessionID(c))
	result, err := h.search.Search(c.Request.Context(), state, service.SearchRequest{
		Query:   req.Query,
		TopK:    req.TopK,
		Hybrid:  req.Hybrid,
		Summary: req.Summary,
	})
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, result)
}
