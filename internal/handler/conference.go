package handler

import (
	"net/http"

	"medcom_capture/internal/domain"
	"medcom_capture/internal/service"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ConferenceHandler struct {
	conference service.ConferenceService
	log        logger.Logger
}

func NewConferenceHandler(conference service.ConferenceService, log logger.Logger) *ConferenceHandler {
	return &ConferenceHandler{
		conference: conference,
		log:        log,
	}
}

type ResolveRequest struct {
	Payload string `json:"payload" binding:"required"`
}

type TokenRequest struct {
	Payload     string `json:"payload"`
	ServerURL   string `json:"server_url"`
	Room        string `json:"room"`
	DisplayName string `json:"display_name"`
}

func (h *ConferenceHandler) Resolve(c *gin.Context) {
	var req ResolveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conf, err := h.conference.Resolve(req.Payload)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conference": conf, "url": conf.URL()})
}

// Token выдаёт LiveKit-токен для комнаты из QR или для явно указанной.
func (h *ConferenceHandler) Token(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	conf := domain.Conference{ServerURL: req.ServerURL, Room: req.Room}
	if req.Payload != "" {
		resolved, err := h.conference.Resolve(req.Payload)
		if err != nil {
			_ = c.Error(err)
			return
		}
		conf = *resolved
	}

	token, err := h.conference.JoinToken(c.Request.Context(), conf, req.DisplayName)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, token)
}
