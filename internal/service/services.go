package service

import (
	"medcom_capture/internal/config"
	"medcom_capture/internal/media"
	"medcom_capture/internal/recorder"
	"medcom_capture/internal/repository"
	"medcom_capture/internal/scanner"
	"medcom_capture/internal/storage"
	"medcom_capture/pkg/logger"
)

// Platform: платформенные возможности, которые контроллеры получают снаружи.
type Platform struct {
	Acquirer   media.Acquirer
	Recorder   recorder.Capability
	Saver      storage.Saver
	NewPreview func() scanner.Preview
	Decoder    scanner.Decoder
}

type Services struct {
	Recording  RecordingService
	Scan       ScanService
	Conference ConferenceService
	Catalog    CatalogService
}

func NewServices(repos *repository.Repositories, platform Platform, notify ScanNotifier, cfg *config.Config, log logger.Logger) *Services {
	conference := NewConferenceService(cfg.LiveKit, log)

	services := &Services{
		Conference: conference,
		Recording: NewRecordingController(
			platform.Acquirer, platform.Recorder, platform.Saver, repos.Recording,
			cfg.Recording, log.With("component", "recording"),
		),
		Scan: NewScanController(
			platform.Acquirer, platform.NewPreview, platform.Decoder, conference,
			repos.ScanHistory, notify, cfg.Scanner, log.With("component", "scanner"),
		),
		Catalog: NewCatalogService(repos.Recording, repos.ScanHistory, log),
	}

	log.Info("Capture services initialized")
	return services
}

// Shutdown выполняет teardown хоста: останавливает обе сессии и освобождает потоки.
func (s *Services) Shutdown() {
	s.Scan.Cancel()
	s.Recording.Close()
}
