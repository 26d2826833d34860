package service

import (
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/domain"
	"medcom_capture/internal/media"
	"medcom_capture/internal/recorder"
	"medcom_capture/internal/repository"
	"medcom_capture/internal/schedule"
	"medcom_capture/internal/storage"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	"github.com/google/uuid"
)

const catalogTimeout = 5 * time.Second

type RecordingService interface {
	Start(ctx context.Context) domain.RecordingResult
	Stop() bool
	Snapshot() domain.RecordingSnapshot
	Close()
}

// RecordingController ведёт сессию записи экрана:
// Idle → Acquiring → Recording → Stopping → Idle.
//
// Все асинхронные продолжения (данные рекордера, финализация, тик
// таймера) несут эпоху сессии, в которой были созданы. Если эпоха
// сменилась, продолжение ничего не делает.
type RecordingController struct {
	acquirer   media.Acquirer
	capability recorder.Capability
	saver      storage.Saver
	catalog    repository.RecordingRepository
	cfg        config.RecordingConfig
	log        logger.Logger
	now        func() time.Time

	mu        sync.Mutex
	state     domain.RecordingState
	epoch     uint64
	sessionID uuid.UUID
	startedAt time.Time
	elapsed   time.Duration
	chunks    [][]byte
	resource  *media.Resource
	session   recorder.Session
	profile   recorder.Profile
	lastError *apperrors.CaptureError
	tick      *schedule.Task

	// Финализация, пришедшая до того, как Start сохранил сессию
	earlyEpoch uint64
	earlyErr   error
}

func NewRecordingController(
	acquirer media.Acquirer,
	capability recorder.Capability,
	saver storage.Saver,
	catalog repository.RecordingRepository,
	cfg config.RecordingConfig,
	log logger.Logger,
) *RecordingController {
	return &RecordingController{
		acquirer:   acquirer,
		capability: capability,
		saver:      saver,
		catalog:    catalog,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		state:      domain.RecordingStateIdle,
	}
}

// Start запрашивает захват экрана и запускает запись. Блокируется на время
// запроса разрешения. Повторный вызов во время активной сессии игнорируется.
func (c *RecordingController) Start(ctx context.Context) domain.RecordingResult {
	c.mu.Lock()
	if c.state != domain.RecordingStateIdle {
		state := c.state
		c.mu.Unlock()
		return domain.RecordingResult{Outcome: domain.OutcomeIgnored, State: state}
	}
	c.epoch++
	epoch := c.epoch
	c.state = domain.RecordingStateAcquiring
	c.sessionID = uuid.New()
	c.lastError = nil
	c.elapsed = 0
	sessionID := c.sessionID
	c.mu.Unlock()

	log := c.log.With("session_id", sessionID)
	log.Info("Requesting screen capture")

	acqCtx, cancel := context.WithTimeout(ctx, c.cfg.AcquireTimeout)
	defer cancel()

	res, err := c.acquirer.Acquire(acqCtx, media.Request{
		Kind: media.KindScreen,
		Constraints: media.Constraints{
			Width:     c.cfg.Width,
			Height:    c.cfg.Height,
			FrameRate: c.cfg.FrameRate,
			Audio: media.AudioConstraints{
				Enabled:          true,
				NoiseSuppression: true,
				EchoCancellation: true,
				SampleRate:       c.cfg.SampleRate,
			},
		},
	})
	if err != nil {
		return c.fail(epoch, err, log)
	}

	// Сессию могли закрыть, пока пользователь выбирал экран
	if !c.isCurrent(epoch) {
		res.Release()
		log.Info("Screen capture acquired after teardown, discarding")
		return domain.RecordingResult{Outcome: domain.OutcomeDiscarded, State: c.currentState()}
	}

	session, err := c.capability.Record(res, recorder.Options{
		Profiles:   recorder.DefaultProfiles(),
		Timeslice:  c.cfg.Timeslice,
		Width:      c.cfg.Width,
		Height:     c.cfg.Height,
		SampleRate: c.cfg.SampleRate,
		Channels:   2,
	}, recorder.Events{
		OnData:     func(chunk []byte) { c.onData(epoch, chunk) },
		OnFinalize: func(err error) { c.onFinalize(epoch, err) },
	})
	if err != nil {
		res.Release()
		return c.fail(epoch, media.Normalize(err), log)
	}

	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		session.Stop()
		res.Release()
		log.Info("Recorder started after teardown, discarding")
		return domain.RecordingResult{Outcome: domain.OutcomeDiscarded, State: c.currentState()}
	}
	if c.earlyEpoch == epoch {
		recErr := c.earlyErr
		c.earlyEpoch, c.earlyErr = 0, nil
		c.mu.Unlock()
		session.Stop()
		res.Release()
		if recErr == nil {
			recErr = apperrors.NewCaptureError(apperrors.KindUnknown, "recorder finished before recording started", nil)
		}
		log.Warn("Recorder finalized before recording started", "error", recErr)
		return c.fail(epoch, media.Normalize(recErr), log)
	}
	c.state = domain.RecordingStateRecording
	c.resource = res
	c.session = session
	c.profile = session.Profile()
	c.startedAt = c.now()
	c.chunks = nil
	c.tick = schedule.Every(c.cfg.DisplayTick, func() { c.onTick(epoch) })
	profile := c.profile
	c.mu.Unlock()

	log.Info("Screen recording started", "profile", profile.Name)
	return domain.RecordingResult{
		Outcome: domain.OutcomeStarted,
		State:   domain.RecordingStateRecording,
		Profile: profile.Name,
	}
}

// Stop просит рекордер завершить запись. Файл сохраняется по событию
// финализации. Вне состояния Recording ничего не делает.
func (c *RecordingController) Stop() bool {
	c.mu.Lock()
	if c.state != domain.RecordingStateRecording {
		c.mu.Unlock()
		return false
	}
	c.state = domain.RecordingStateStopping
	c.tick.Stop()
	c.tick = nil
	session := c.session
	sessionID := c.sessionID
	c.mu.Unlock()

	c.log.Info("Stopping screen recording", "session_id", sessionID)
	session.Stop()
	return true
}

// Close выполняет teardown хоста: таймеры останавливаются, поток освобождается
// сразу, накопленные данные отбрасываются.
func (c *RecordingController) Close() {
	c.mu.Lock()
	c.epoch++
	c.tick.Stop()
	c.tick = nil
	res, session := c.resource, c.session
	wasActive := c.state != domain.RecordingStateIdle
	c.resource = nil
	c.session = nil
	c.chunks = nil
	c.state = domain.RecordingStateIdle
	c.mu.Unlock()

	if session != nil {
		session.Stop()
	}
	res.Release()

	if wasActive {
		c.log.Info("Recording controller torn down, active session discarded")
	}
}

func (c *RecordingController) Snapshot() domain.RecordingSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.RecordingSnapshot{
		State:          c.state,
		ElapsedSeconds: int64(c.elapsed / time.Second),
		Duration:       FormatDuration(c.elapsed),
		Chunks:         len(c.chunks),
		LastError:      c.lastError,
	}
	if c.state != domain.RecordingStateIdle {
		id := c.sessionID
		snap.SessionID = &id
	}
	if c.resource != nil {
		started := c.startedAt
		snap.StartedAt = &started
		snap.Profile = c.profile.Name
	}
	return snap
}

func (c *RecordingController) isCurrent(epoch uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch == epoch
}

func (c *RecordingController) currentState() domain.RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// fail возвращает контроллер в Idle. Отмена пользователем не показывается.
func (c *RecordingController) fail(epoch uint64, err error, log logger.Logger) domain.RecordingResult {
	ce := apperrors.AsCapture(err)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.epoch != epoch {
		return domain.RecordingResult{Outcome: domain.OutcomeDiscarded, State: c.state, Err: ce}
	}

	c.tick.Stop()
	c.tick = nil
	c.state = domain.RecordingStateIdle
	c.chunks = nil

	if ce.Silent() {
		log.Info("Screen capture cancelled by user")
		c.lastError = nil
		return domain.RecordingResult{Outcome: domain.OutcomeCancelled, State: c.state, Err: ce}
	}

	log.Error("Screen recording failed", "kind", ce.Kind, "error", ce)
	c.lastError = recordingError(ce)
	return domain.RecordingResult{Outcome: domain.OutcomeFailed, State: c.state, Err: c.lastError}
}

func (c *RecordingController) onData(epoch uint64, chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch {
		return
	}
	if c.state != domain.RecordingStateRecording && c.state != domain.RecordingStateStopping {
		return
	}
	c.chunks = append(c.chunks, chunk)
}

func (c *RecordingController) onTick(epoch uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.state != domain.RecordingStateRecording {
		return
	}
	c.elapsed = c.now().Sub(c.startedAt).Truncate(time.Second)
}

// onFinalize собирает файл из накопленных порций, сохраняет его один раз
// и освобождает поток.
func (c *RecordingController) onFinalize(epoch uint64, recErr error) {
	c.mu.Lock()
	if c.epoch != epoch {
		c.mu.Unlock()
		return
	}
	if c.state == domain.RecordingStateAcquiring {
		c.earlyEpoch = epoch
		c.earlyErr = recErr
		c.mu.Unlock()
		return
	}
	if c.resource == nil {
		c.mu.Unlock()
		return
	}
	// Финализация без Stop означает, что рекордер упал сам
	if c.state == domain.RecordingStateRecording {
		c.state = domain.RecordingStateStopping
		c.tick.Stop()
		c.tick = nil
	}
	chunks := c.chunks
	res := c.resource
	profile := c.profile
	startedAt := c.startedAt
	sessionID := c.sessionID
	c.mu.Unlock()

	log := c.log.With("session_id", sessionID)

	var lastErr *apperrors.CaptureError
	if recErr != nil {
		log.Error("Recorder finished with error", "error", recErr)
		lastErr = recordingError(media.Normalize(recErr))
	}

	var saved *domain.SavedRecording
	if recErr == nil || len(chunks) > 0 {
		var err error
		saved, err = c.save(chunks, profile, startedAt)
		if err != nil {
			log.Error("Failed to save recording", "error", err)
			lastErr = apperrors.NewCaptureError(apperrors.KindSaveFailed, "Screen recording failed: "+err.Error(), err)
		}
	}

	res.Release()

	c.mu.Lock()
	if c.epoch == epoch {
		c.state = domain.RecordingStateIdle
		c.resource = nil
		c.session = nil
		c.chunks = nil
		c.lastError = lastErr
	}
	c.mu.Unlock()

	if saved != nil {
		log.Info("Screen recording finished", "file", saved.FileName, "bytes", saved.SizeBytes, "duration", FormatDuration(saved.Duration))
		c.addToCatalog(saved, log)
	}
}

func (c *RecordingController) save(chunks [][]byte, profile recorder.Profile, startedAt time.Time) (*domain.SavedRecording, error) {
	blob := bytes.Join(chunks, nil)
	finishedAt := c.now()
	name := storage.FileName(c.cfg.ProductName, finishedAt, profile.Extension)

	path, err := c.saver.Save(name, bytes.NewReader(blob))
	if err != nil {
		return nil, err
	}

	return &domain.SavedRecording{
		ID:         uuid.New(),
		FileName:   name,
		Path:       path,
		MimeType:   profile.MimeType,
		SizeBytes:  int64(len(blob)),
		StartedAt:  startedAt,
		Duration:   finishedAt.Sub(startedAt),
		ChunkCount: len(chunks),
		CreatedAt:  finishedAt,
	}, nil
}

func (c *RecordingController) addToCatalog(rec *domain.SavedRecording, log logger.Logger) {
	if c.catalog == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), catalogTimeout)
	defer cancel()
	if err := c.catalog.Create(ctx, rec); err != nil {
		log.Warn("Recording saved but not added to catalog", "error", err)
	}
}

func recordingError(ce *apperrors.CaptureError) *apperrors.CaptureError {
	return apperrors.NewCaptureError(ce.Kind, "Screen recording failed: "+ce.Error(), ce)
}

// FormatDuration форматирует MM:SS для отображения длительности записи.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	secs := int64(d / time.Second)
	return fmt.Sprintf("%02d:%02d", secs/60, secs%60)
}
