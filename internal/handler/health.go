package handler

import (
	"net/http"

	"medcom_capture/internal/service"

	"github.com/gin-gonic/gin"
)

type HealthHandler struct {
	services *service.Services
	hub      *EventHub
	catalog  bool
	history  bool
}

func NewHealthHandler(services *service.Services, hub *EventHub, catalog, history bool) *HealthHandler {
	return &HealthHandler{
		services: services,
		hub:      hub,
		catalog:  catalog,
		history:  history,
	}
}

func (h *HealthHandler) Check(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "medcom-capture",
	})
}

// Info: состояние контроллеров и подключённых хранилищ
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"recording":   h.services.Recording.Snapshot().State,
		"scanner":     h.services.Scan.Snapshot().State,
		"subscribers": h.hub.Clients(),
		"catalog":     h.catalog,
		"history":     h.history,
	})
}
