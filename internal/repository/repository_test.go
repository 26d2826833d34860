package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/domain"
	"medcom_capture/pkg/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// Тесты ходят в настоящие Postgres и Redis и пропускаются без них:
// TEST_DATABASE_DSN=postgres://... TEST_REDIS_ADDR=localhost:6379 go test ./...

func TestNewRepositoriesWithoutBackends(t *testing.T) {
	repos := NewRepositories(nil, nil, config.RedisConfig{}, logger.NewNop())
	if repos.Recording != nil || repos.ScanHistory != nil {
		t.Error("repositories must be disabled without backends")
	}
}

func TestRecordingRepository(t *testing.T) {
	dsn := os.Getenv("TEST_DATABASE_DSN")
	if dsn == "" {
		t.Skip("TEST_DATABASE_DSN not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	defer pool.Close()

	repo := NewRecordingRepository(pool, logger.NewNop())
	if err := repo.EnsureSchema(ctx); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	rec := &domain.SavedRecording{
		ID:         uuid.New(),
		FileName:   "medcom-meeting-2026-10-18T09-30-05.webm",
		Path:       "/tmp/medcom-meeting-2026-10-18T09-30-05.webm",
		MimeType:   "video/webm",
		SizeBytes:  1024,
		StartedAt:  time.Now().Add(-time.Minute),
		Duration:   time.Minute,
		ChunkCount: 60,
	}
	if err := repo.Create(ctx, rec); err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer pool.Exec(ctx, "DELETE FROM recordings WHERE id = $1", rec.ID)

	if rec.CreatedAt.IsZero() {
		t.Error("expected created_at to be filled")
	}

	list, err := repo.ListRecent(ctx, 50)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	var found *domain.SavedRecording
	for _, r := range list {
		if r.ID == rec.ID {
			found = r
		}
	}
	if found == nil {
		t.Fatal("created recording not listed")
	}
	if found.Duration != time.Minute || found.ChunkCount != 60 {
		t.Errorf("unexpected stored recording %+v", found)
	}
}

func TestScanHistoryRepository(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}

	ctx := context.Background()
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	defer rdb.Close()
	rdb.Del(ctx, ScanHistoryKey)
	defer rdb.Del(ctx, ScanHistoryKey)

	repo := NewScanHistoryRepository(rdb, time.Minute, 2, logger.NewNop())
	for _, payload := range []string{"a", "b", "c"} {
		ev := &domain.ScanEvent{Type: domain.ScanEventSuccess, SessionID: uuid.New(), Payload: payload, At: time.Now()}
		if err := repo.Push(ctx, ev); err != nil {
			t.Fatalf("Push: %v", err)
		}
	}

	events, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(events) != 2 || events[0].Payload != "c" || events[1].Payload != "b" {
		t.Errorf("expected newest two entries, got %+v", events)
	}

	ttl, err := rdb.TTL(ctx, ScanHistoryKey).Result()
	if err != nil || ttl <= 0 {
		t.Errorf("expected TTL on history key, got %s, %v", ttl, err)
	}
}
