package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"medcom_capture/internal/domain"
	"medcom_capture/pkg/logger"

	"github.com/redis/go-redis/v9"
)

const ScanHistoryKey = "scanner:history"

// ScanHistoryRepository хранит последние принятые QR-коды в Redis.
type ScanHistoryRepository interface {
	Push(ctx context.Context, event *domain.ScanEvent) error
	Recent(ctx context.Context, limit int) ([]*domain.ScanEvent, error)
}

type scanHistoryRepository struct {
	rdb    *redis.Client
	ttl    time.Duration
	maxLen int
	log    logger.Logger
}

func NewScanHistoryRepository(rdb *redis.Client, ttl time.Duration, maxLen int, log logger.Logger) ScanHistoryRepository {
	if maxLen <= 0 {
		maxLen = 20
	}
	return &scanHistoryRepository{rdb: rdb, ttl: ttl, maxLen: maxLen, log: log}
}

func (r *scanHistoryRepository) Push(ctx context.Context, event *domain.ScanEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal scan event: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.LPush(ctx, ScanHistoryKey, data)
	pipe.LTrim(ctx, ScanHistoryKey, 0, int64(r.maxLen-1))
	if r.ttl > 0 {
		pipe.Expire(ctx, ScanHistoryKey, r.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		r.log.Error("Failed to push scan history", "error", err)
		return err
	}
	return nil
}

func (r *scanHistoryRepository) Recent(ctx context.Context, limit int) ([]*domain.ScanEvent, error) {
	if limit <= 0 || limit > r.maxLen {
		limit = r.maxLen
	}

	items, err := r.rdb.LRange(ctx, ScanHistoryKey, 0, int64(limit-1)).Result()
	if err == redis.Nil {
		return []*domain.ScanEvent{}, nil
	}
	if err != nil {
		r.log.Error("Failed to read scan history", "error", err)
		return nil, err
	}

	events := make([]*domain.ScanEvent, 0, len(items))
	for _, item := range items {
		var ev domain.ScanEvent
		if err := json.Unmarshal([]byte(item), &ev); err != nil {
			r.log.Warn("Skipping malformed scan history entry", "error", err)
			continue
		}
		events = append(events, &ev)
	}
	return events, nil
}
