package handler

import (
	"net/http"

	"medcom_capture/internal/domain"
	"medcom_capture/internal/service"
	"medcom_capture/pkg/logger"

	"github.com/gin-gonic/gin"
)

type RecordingHandler struct {
	recording service.RecordingService
	log       logger.Logger
}

func NewRecordingHandler(recording service.RecordingService, log logger.Logger) *RecordingHandler {
	return &RecordingHandler{
		recording: recording,
		log:       log,
	}
}

func (h *RecordingHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.recording.Snapshot())
}

// Start блокируется, пока пользователь выбирает экран.
func (h *RecordingHandler) Start(c *gin.Context) {
	result := h.recording.Start(c.Request.Context())

	switch result.Outcome {
	case domain.OutcomeStarted:
		c.JSON(http.StatusCreated, gin.H{"result": result, "recording": h.recording.Snapshot()})
	case domain.OutcomeIgnored:
		c.JSON(http.StatusConflict, gin.H{"result": result, "error": "recording already in progress"})
	case domain.OutcomeFailed:
		// Ошибка уже в lastError, тело повторяет её для удобства клиента
		c.JSON(statusForResult(result.Err), gin.H{"result": result, "recording": h.recording.Snapshot()})
	default:
		c.JSON(http.StatusOK, gin.H{"result": result, "recording": h.recording.Snapshot()})
	}
}

// Stop не ждёт сохранения файла: состояние вернётся в idle после финализации.
func (h *RecordingHandler) Stop(c *gin.Context) {
	stopped := h.recording.Stop()
	status := http.StatusOK
	if stopped {
		status = http.StatusAccepted
	}
	c.JSON(status, gin.H{"stopped": stopped, "recording": h.recording.Snapshot()})
}
