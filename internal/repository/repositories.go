package repository

import (
	"medcom_capture/internal/config"
	"medcom_capture/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Repositories: хранилища хоста. Каждое может быть nil, если бэкенд
// не настроен: хост работает и без каталога, и без истории.
type Repositories struct {
	Recording   RecordingRepository
	ScanHistory ScanHistoryRepository
}

func NewRepositories(db *pgxpool.Pool, rdb *redis.Client, cfg config.RedisConfig, log logger.Logger) *Repositories {
	repos := &Repositories{}

	if db != nil {
		repos.Recording = NewRecordingRepository(db, log)
		log.Info("Recording catalog repository initialized")
	} else {
		log.Warn("Database not configured, recording catalog disabled")
	}

	if rdb != nil {
		repos.ScanHistory = NewScanHistoryRepository(rdb, cfg.HistoryTTL, cfg.HistoryLen, log)
		log.Info("Scan history repository initialized")
	} else {
		log.Warn("Redis not configured, scan history disabled")
	}

	return repos
}
