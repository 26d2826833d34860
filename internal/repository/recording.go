package repository

import (
	"context"
	"time"

	"medcom_capture/internal/domain"
	"medcom_capture/pkg/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

const recordingsSchema = `
	CREATE TABLE IF NOT EXISTS recordings (
		id          UUID PRIMARY KEY,
		file_name   TEXT NOT NULL,
		path        TEXT NOT NULL,
		mime_type   TEXT NOT NULL,
		size_bytes  BIGINT NOT NULL,
		started_at  TIMESTAMPTZ NOT NULL,
		duration_ms BIGINT NOT NULL,
		chunk_count INTEGER NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
	)
`

// RecordingRepository: каталог сохранённых записей.
type RecordingRepository interface {
	EnsureSchema(ctx context.Context) error
	Create(ctx context.Context, rec *domain.SavedRecording) error
	ListRecent(ctx context.Context, limit int) ([]*domain.SavedRecording, error)
}

type recordingRepository struct {
	db  *pgxpool.Pool
	log logger.Logger
}

func NewRecordingRepository(db *pgxpool.Pool, log logger.Logger) RecordingRepository {
	return &recordingRepository{db: db, log: log}
}

func (r *recordingRepository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, recordingsSchema); err != nil {
		r.log.Error("Failed to ensure recordings schema", "error", err)
		return err
	}
	return nil
}

func (r *recordingRepository) Create(ctx context.Context, rec *domain.SavedRecording) error {
	query := `
		INSERT INTO recordings (id, file_name, path, mime_type, size_bytes, started_at, duration_ms, chunk_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.ID, rec.FileName, rec.Path, rec.MimeType, rec.SizeBytes,
		rec.StartedAt, rec.Duration.Milliseconds(), rec.ChunkCount,
	).Scan(&rec.CreatedAt)

	if err != nil {
		r.log.Error("Failed to create recording entry", "error", err, "file", rec.FileName)
		return err
	}

	return nil
}

func (r *recordingRepository) ListRecent(ctx context.Context, limit int) ([]*domain.SavedRecording, error) {
	query := `
		SELECT id, file_name, path, mime_type, size_bytes, started_at, duration_ms, chunk_count, created_at
		FROM recordings
		ORDER BY created_at DESC
		LIMIT $1
	`

	rows, err := r.db.Query(ctx, query, limit)
	if err != nil {
		r.log.Error("Failed to list recordings", "error", err)
		return nil, err
	}
	defer rows.Close()

	var recordings []*domain.SavedRecording
	for rows.Next() {
		rec := &domain.SavedRecording{}
		var durationMs int64
		err := rows.Scan(
			&rec.ID, &rec.FileName, &rec.Path, &rec.MimeType, &rec.SizeBytes,
			&rec.StartedAt, &durationMs, &rec.ChunkCount, &rec.CreatedAt,
		)
		if err != nil {
			r.log.Error("Failed to scan recording", "error", err)
			return nil, err
		}
		rec.Duration = time.Duration(durationMs) * time.Millisecond
		recordings = append(recordings, rec)
	}

	return recordings, rows.Err()
}
