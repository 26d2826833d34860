package handler

import (
	"net/http"
	"strconv"
	"time"

	"medcom_capture/internal/domain"
	"medcom_capture/internal/service"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

type ScannerHandler struct {
	scan       service.ScanService
	catalog    service.CatalogService
	startDelay time.Duration
	log        logger.Logger
}

func NewScannerHandler(scan service.ScanService, catalog service.CatalogService, startDelay time.Duration, log logger.Logger) *ScannerHandler {
	return &ScannerHandler{
		scan:       scan,
		catalog:    catalog,
		startDelay: startDelay,
		log:        log,
	}
}

func (h *ScannerHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.scan.Snapshot())
}

// Begin запускает сканер. С ?deferred=true запуск откладывается на
// startDelay и ответ приходит сразу.
func (h *ScannerHandler) Begin(c *gin.Context) {
	if deferred, _ := strconv.ParseBool(c.Query("deferred")); deferred {
		if !h.scan.BeginAfter(h.startDelay) {
			c.JSON(http.StatusConflict, gin.H{"error": "scanner already active", "scanner": h.scan.Snapshot()})
			return
		}
		c.JSON(http.StatusAccepted, gin.H{"scheduled": true, "delay": h.startDelay.String()})
		return
	}

	result := h.scan.Begin(c.Request.Context())

	switch result.Outcome {
	case domain.OutcomeStarted:
		c.JSON(http.StatusCreated, gin.H{"result": result, "scanner": h.scan.Snapshot()})
	case domain.OutcomeIgnored:
		c.JSON(http.StatusConflict, gin.H{"result": result, "error": "scanner already active"})
	case domain.OutcomeFailed:
		c.JSON(statusForResult(result.Err), gin.H{"result": result, "scanner": h.scan.Snapshot()})
	default:
		c.JSON(http.StatusOK, gin.H{"result": result, "scanner": h.scan.Snapshot()})
	}
}

func (h *ScannerHandler) Cancel(c *gin.Context) {
	cancelled := h.scan.Cancel()
	c.JSON(http.StatusOK, gin.H{"cancelled": cancelled, "scanner": h.scan.Snapshot()})
}

func (h *ScannerHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	events, err := h.catalog.ScanHistory(c.Request.Context(), limit)
	if err != nil {
		h.log.Error("Failed to load scan history", "error", err)
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"history": events})
}
