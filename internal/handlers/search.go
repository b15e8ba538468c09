package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medscribe-backend/internal/platform/logger"
	"github.com/yungbote/medscribe-backend/internal/search"
)

type SearchHandler struct {
	log *logger.Logger
	svc *search.Service
}

func NewSearchHandler(log *logger.Logger, svc *search.Service) *SearchHandler {
	return &SearchHandler{
		log: log.With("handler", "SearchHandler"),
		svc: svc,
	}
}

func (h *SearchHandler) Search(c *gin.Context) {
	query := strings.TrimSpace(c.Query("query"))
	if query == "" {
		RespondError(c, http.StatusBadRequest, fmt.Errorf("query parameter is required"))
		return
	}

	limit := search.DefaultLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			RespondError(c, http.StatusBadRequest, fmt.Errorf("limit must be a positive integer"))
			return
		}
		limit = parsed
	}

	if h.svc.Empty() {
		RespondOK(c, gin.H{"message": "No processed data available."})
		return
	}

	results := h.svc.Search(query, limit)
	if len(results) == 0 {
		RespondOK(c, gin.H{"message": fmt.Sprintf("No matches found for '%s'.", query)})
		return
	}

	RespondOK(c, search.Response{
		Query:        query,
		TotalResults: len(results),
		Results:      results,
	})
}
