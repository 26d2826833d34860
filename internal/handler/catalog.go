package handler

import (
	"net/http"
	"strconv"

	"medcom_capture/internal/service"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

type CatalogHandler struct {
	catalog service.CatalogService
	log     logger.Logger
}

func NewCatalogHandler(catalog service.CatalogService, log logger.Logger) *CatalogHandler {
	return &CatalogHandler{
		catalog: catalog,
		log:     log,
	}
}

func (h *CatalogHandler) Recordings(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	recordings, err := h.catalog.Recordings(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to list recordings", "error", err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"recordings": recordings})
}
