package handler

import (
	"net/http"

	"medcom_capture/internal/config"
	"medcom_capture/internal/repository"
	"medcom_capture/internal/service"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"
)

type Handlers struct {
	Health     *HealthHandler
	Recording  *RecordingHandler
	Scanner    *ScannerHandler
	Conference *ConferenceHandler
	Catalog    *CatalogHandler
	Events     *EventHub
}

func NewHandlers(services *service.Services, repos *repository.Repositories, hub *EventHub, cfg *config.Config, log logger.Logger) *Handlers {
	return &Handlers{
		Health:     NewHealthHandler(services, hub, repos.Recording != nil, repos.ScanHistory != nil),
		Recording:  NewRecordingHandler(services.Recording, log),
		Scanner:    NewScannerHandler(services.Scan, services.Catalog, cfg.Scanner.StartDelay, log),
		Conference: NewConferenceHandler(services.Conference, log),
		Catalog:    NewCatalogHandler(services.Catalog, log),
		Events:     hub,
	}
}

func statusForResult(err *apperrors.CaptureError) int {
	if err == nil {
		return http.StatusInternalServerError
	}
	return apperrors.HTTPStatusFromError(err)
}
