package service

import (
	"context"

	"medcom_capture/internal/domain"
	"medcom_capture/internal/repository"
	"medcom_capture/pkg/logger"
)

const defaultListLimit = 20

// CatalogService отдаёт хосту сохранённые записи и историю сканирований.
// Без настроенного хранилища списки пустые.
type CatalogService interface {
	Recordings(ctx context.Context, limit int) ([]*domain.SavedRecording, error)
	ScanHistory(ctx context.Context, limit int) ([]*domain.ScanEvent, error)
}

type catalogService struct {
	recordings repository.RecordingRepository
	history    repository.ScanHistoryRepository
	log        logger.Logger
}

func NewCatalogService(recordings repository.RecordingRepository, history repository.ScanHistoryRepository, log logger.Logger) CatalogService {
	return &catalogService{
		recordings: recordings,
		history:    history,
		log:        log,
	}
}

func (s *catalogService) Recordings(ctx context.Context, limit int) ([]*domain.SavedRecording, error) {
	if s.recordings == nil {
		return []*domain.SavedRecording{}, nil
	}
	if limit <= 0 || limit > 100 {
		limit = defaultListLimit
	}
	list, err := s.recordings.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []*domain.SavedRecording{}
	}
	return list, nil
}

func (s *catalogService) ScanHistory(ctx context.Context, limit int) ([]*domain.ScanEvent, error) {
	if s.history == nil {
		return []*domain.ScanEvent{}, nil
	}
	return s.history.Recent(ctx, limit)
}
