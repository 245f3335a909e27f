package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/intellipatent/intellipatent/internal/pkg/response"
	"github.com/intellipatent/intellipatent/internal/service"
)

type SessionHandler struct {
	sessions *service.SessionService
}

func NewSessionHandler(sessions *service.SessionService) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(c *gin.Context) {
	token, err := h.sessions.Create(c.Request.Context())
	if err != nil {
		handleError(c, err)
		return
	}
	response.Success(c, token)
}

func (h *SessionHandler) Delete(c *gin.Context) {
	h.sessions.Clear(c.Request.Context(), getSessionID(c))
	response.Success(c, gin.H{"status": "cleared"})
}
