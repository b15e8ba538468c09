package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorEnvelope is the error payload for every endpoint: a detail message,
// matching what API clients already parse.
type ErrorEnvelope struct {
	Detail string `json:"detail"`
}

func RespondError(c *gin.Context, status int, err error) {
	detail := "unknown error"
	if err != nil {
		detail = err.Error()
	}
	c.JSON(status, ErrorEnvelope{Detail: detail})
}

func RespondOK(c *gin.Context, payload any) {
	c.JSON(http.StatusOK, payload)
}
