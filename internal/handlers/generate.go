package handlers

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/medscribe-backend/internal/agent"
	"github.com/yungbote/medscribe-backend/internal/platform/apierr"
	"github.com/yungbote/medscribe-backend/internal/platform/logger"
)

// GenerateRequest is the /generate payload: a client-supplied conversation
// id plus the user's question.
type GenerateRequest struct {
	UniqueID string `json:"unique_id" binding:"required"`
	Query    string `json:"query" binding:"required"`
}

type GenerateResponse struct {
	Answer string `json:"answer"`
}

// Invoker runs one agent-graph invocation per call.
type Invoker interface {
	Invoke(ctx context.Context, threadID, query string) (*agent.State, error)
}

type GenerateHandler struct {
	log    *logger.Logger
	runner Invoker
}

func NewGenerateHandler(log *logger.Logger, runner Invoker) *GenerateHandler {
	return &GenerateHandler{
		log:    log.With("handler", "GenerateHandler"),
		runner: runner,
	}
}

func (h *GenerateHandler) Generate(c *gin.Context) {
	var req GenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}

	state, err := h.runner.Invoke(c.Request.Context(), req.UniqueID, req.Query)
	if err != nil {
		h.log.Error("Agent invocation failed", "thread_id", req.UniqueID, "error", err)
		RespondError(c, apierr.StatusOf(err), err)
		return
	}

	answer := state.GeneratedAnswer
	if answer == "" {
		answer = "No answer generated."
	}
	RespondOK(c, GenerateResponse{Answer: answer})
}
