package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/domain"
	"medcom_capture/internal/media"
	"medcom_capture/internal/repository"
	"medcom_capture/internal/scanner"
	"medcom_capture/internal/schedule"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	"github.com/google/uuid"
)

const historyTimeout = 3 * time.Second

// ScanNotifier получает события сканера: успех, закрытие, ошибку.
type ScanNotifier func(ev domain.ScanEvent)

type ScanService interface {
	Begin(ctx context.Context) domain.ScanResult
	BeginAfter(delay time.Duration) bool
	Cancel() bool
	Snapshot() domain.ScanSnapshot
}

// scanRun: всё, что принадлежит одному запуску сканера. Колбэки сэмплера
// держат указатель на свой run и сверяют его с текущим.
type scanRun struct {
	epoch   uint64
	id      uuid.UUID
	preview scanner.Preview
	canvas  scanner.Canvas
}

// ScanController ведёт сессию сканирования QR:
// Idle → RequestingPermission → Previewing → Sampling → Completed.
type ScanController struct {
	acquirer   media.Acquirer
	newPreview func() scanner.Preview
	decode     scanner.Decoder
	conference ConferenceService
	history    repository.ScanHistoryRepository
	notify     ScanNotifier
	cfg        config.ScannerConfig
	log        logger.Logger
	now        func() time.Time

	mu          sync.Mutex
	state       domain.ScanState
	epoch       uint64
	run         *scanRun
	resource    *media.Resource
	sampler     *schedule.Task
	pending     *schedule.Task
	hits        int
	lastPayload string
	lastError   *apperrors.CaptureError
}

func NewScanController(
	acquirer media.Acquirer,
	newPreview func() scanner.Preview,
	decode scanner.Decoder,
	conference ConferenceService,
	history repository.ScanHistoryRepository,
	notify ScanNotifier,
	cfg config.ScannerConfig,
	log logger.Logger,
) *ScanController {
	if decode == nil {
		decode = scanner.DecodeQR
	}
	if notify == nil {
		notify = func(domain.ScanEvent) {}
	}
	return &ScanController{
		acquirer:   acquirer,
		newPreview: newPreview,
		decode:     decode,
		conference: conference,
		history:    history,
		notify:     notify,
		cfg:        cfg,
		log:        log,
		now:        time.Now,
		state:      domain.ScanStateIdle,
	}
}

func (c *ScanController) startable() bool {
	return c.state == domain.ScanStateIdle || c.state == domain.ScanStateCompleted
}

// Begin запрашивает камеру, запускает превью и сэмплер. Блокируется до
// начала сэмплирования или до ошибки.
func (c *ScanController) Begin(ctx context.Context) domain.ScanResult {
	c.mu.Lock()
	if !c.startable() {
		state := c.state
		c.mu.Unlock()
		return domain.ScanResult{Outcome: domain.OutcomeIgnored, State: state}
	}
	c.pending.Stop()
	c.pending = nil
	c.epoch++
	run := &scanRun{epoch: c.epoch, id: uuid.New(), preview: c.newPreview()}
	c.run = run
	c.state = domain.ScanStateRequestingPermission
	c.hits = 0
	c.lastPayload = ""
	c.lastError = nil
	c.mu.Unlock()

	log := c.log.With("scan_id", run.id)
	log.Info("Requesting camera for QR scan", "width", c.cfg.Width, "height", c.cfg.Height)

	res, err := c.acquirer.Acquire(ctx, media.Request{
		Kind: media.KindCamera,
		Constraints: media.Constraints{
			Width:  c.cfg.Width,
			Height: c.cfg.Height,
		},
	})
	if err != nil {
		return c.fail(run, nil, apperrors.AsCapture(err), log)
	}

	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		res.Release()
		log.Info("Camera acquired after scan was cancelled, releasing")
		return domain.ScanResult{Outcome: domain.OutcomeDiscarded, State: c.currentState()}
	}
	c.state = domain.ScanStatePreviewing
	c.resource = res
	c.mu.Unlock()

	if err := run.preview.Attach(res); err != nil {
		return c.fail(run, res, apperrors.AsCapture(err), log)
	}

	playCtx, cancel := context.WithTimeout(ctx, c.cfg.PlaybackWait)
	err = run.preview.Play(playCtx)
	cancel()
	if err != nil {
		ce := apperrors.AsCapture(err)
		if ce.Kind != apperrors.KindPlaybackStartFailed {
			ce = apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Failed to start video stream: "+ce.Error(), err)
		}
		return c.fail(run, res, ce, log)
	}

	c.mu.Lock()
	if c.run != run {
		c.mu.Unlock()
		run.preview.Detach()
		res.Release()
		return domain.ScanResult{Outcome: domain.OutcomeDiscarded, State: c.currentState()}
	}
	c.state = domain.ScanStateSampling
	c.sampler = schedule.Every(c.cfg.SampleInterval, func() { c.sampleOnce(run) })
	c.mu.Unlock()

	log.Info("QR sampling started", "interval", c.cfg.SampleInterval, "confirm_hits", c.cfg.ConfirmHits)
	return domain.ScanResult{Outcome: domain.OutcomeStarted, State: domain.ScanStateSampling}
}

// BeginAfter откладывает Begin на delay. Cancel до срабатывания отменяет запуск.
func (c *ScanController) BeginAfter(delay time.Duration) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.startable() || c.pending != nil {
		return false
	}

	var task *schedule.Task
	task = schedule.After(delay, func() {
		c.mu.Lock()
		current := c.pending == task
		if current {
			c.pending = nil
		}
		c.mu.Unlock()
		if current {
			c.Begin(context.Background())
		}
	})
	c.pending = task
	return true
}

// Cancel выполняет teardown хоста. Безопасен без Begin и при повторных вызовах.
// Из Completed ничего не делает: ресурсы там уже освобождены.
func (c *ScanController) Cancel() bool {
	c.mu.Lock()
	if c.state == domain.ScanStateCompleted {
		c.mu.Unlock()
		return false
	}
	hadPending := c.pending != nil
	c.pending.Stop()
	c.pending = nil

	if c.state == domain.ScanStateIdle {
		c.mu.Unlock()
		return hadPending
	}

	c.epoch++
	run := c.run
	res := c.resource
	c.sampler.Stop()
	c.sampler = nil
	c.run = nil
	c.resource = nil
	c.hits = 0
	c.state = domain.ScanStateIdle
	c.mu.Unlock()

	if run != nil {
		run.preview.Detach()
	}
	res.Release()

	ev := domain.ScanEvent{Type: domain.ScanEventClosed, At: c.now()}
	if run != nil {
		ev.SessionID = run.id
	}
	c.log.Info("QR scan cancelled", "scan_id", ev.SessionID)
	c.notify(ev)
	return true
}

func (c *ScanController) Snapshot() domain.ScanSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := domain.ScanSnapshot{
		State:           c.state,
		ConsecutiveHits: c.hits,
		LastPayload:     c.lastPayload,
		LastError:       c.lastError,
	}
	if c.run != nil {
		id := c.run.id
		snap.SessionID = &id
	}
	return snap
}

func (c *ScanController) currentState() domain.ScanState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// sampleOnce: один тик сэмплера. Ошибки декодирования не выходят наружу.
func (c *ScanController) sampleOnce(run *scanRun) {
	c.mu.Lock()
	if c.run != run || c.state != domain.ScanStateSampling {
		c.mu.Unlock()
		return
	}
	c.mu.Unlock()

	payload, ok := c.decodeFrame(run)

	c.mu.Lock()
	if c.run != run || c.state != domain.ScanStateSampling {
		c.mu.Unlock()
		return
	}

	if !ok {
		c.hits = 0
		c.mu.Unlock()
		return
	}

	if c.hits > 0 && payload != c.lastPayload {
		c.hits = 1
	} else {
		c.hits++
	}
	c.lastPayload = payload

	if c.hits < c.cfg.ConfirmHits {
		c.mu.Unlock()
		return
	}

	c.sampler.Stop()
	c.sampler = nil
	res := c.resource
	c.resource = nil
	c.state = domain.ScanStateCompleted
	c.mu.Unlock()

	run.preview.Detach()
	res.Release()
	run.canvas.Reset()

	c.complete(run, payload)
}

func (c *ScanController) decodeFrame(run *scanRun) (payload string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Warn("QR decode failed", "error", apperrors.NewCaptureError(apperrors.KindDecodeTransient, fmt.Sprint(r), nil))
			payload, ok = "", false
		}
	}()

	frame, err := run.preview.Frame()
	if errors.Is(err, scanner.ErrNoFrame) {
		return "", false
	}
	if err != nil {
		c.log.Debug("Preview frame unavailable", "error", err)
		return "", false
	}

	pixels, w, h := run.canvas.Render(frame)
	if pixels == nil {
		return "", false
	}
	return c.decode(pixels, w, h)
}

func (c *ScanController) complete(run *scanRun, payload string) {
	ev := domain.ScanEvent{
		Type:      domain.ScanEventSuccess,
		SessionID: run.id,
		Payload:   payload,
		At:        c.now(),
	}
	if c.conference != nil {
		if conf, err := c.conference.Resolve(payload); err == nil {
			ev.Conference = conf
		}
	}

	c.log.Info("QR code accepted", "scan_id", run.id, "payload", payload)

	c.notify(ev)

	// История пишется после уведомления: медленный Redis не задерживает хост
	if c.history != nil {
		ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
		if err := c.history.Push(ctx, &ev); err != nil {
			c.log.Warn("Failed to store scan history", "error", err)
		}
		cancel()
	}
}

// fail завершает запуск ошибкой получения камеры или старта превью.
func (c *ScanController) fail(run *scanRun, res *media.Resource, ce *apperrors.CaptureError, log logger.Logger) domain.ScanResult {
	run.preview.Detach()
	res.Release()

	c.mu.Lock()
	if c.run != run {
		state := c.state
		c.mu.Unlock()
		return domain.ScanResult{Outcome: domain.OutcomeDiscarded, State: state, Err: ce}
	}
	c.run = nil
	c.resource = nil
	c.state = domain.ScanStateIdle

	if ce.Silent() {
		c.lastError = nil
		c.mu.Unlock()
		log.Info("Camera request cancelled")
		return domain.ScanResult{Outcome: domain.OutcomeCancelled, State: domain.ScanStateIdle, Err: ce}
	}

	c.lastError = scanError(ce)
	lastErr := c.lastError
	c.mu.Unlock()

	log.Error("QR scan failed", "kind", ce.Kind, "error", ce)
	c.notify(domain.ScanEvent{
		Type:      domain.ScanEventError,
		SessionID: run.id,
		Error:     lastErr,
		At:        c.now(),
	})
	return domain.ScanResult{Outcome: domain.OutcomeFailed, State: domain.ScanStateIdle, Err: lastErr}
}

// scanError подбирает сообщение для пользователя по классу ошибки.
func scanError(ce *apperrors.CaptureError) *apperrors.CaptureError {
	var msg string
	switch ce.Kind {
	case apperrors.KindPermissionDenied:
		msg = "Camera permission denied. Please allow camera access in your system settings."
	case apperrors.KindDeviceNotFound:
		msg = "No webcam found on this device."
	case apperrors.KindUnsupported:
		msg = "Camera not supported on this platform."
	case apperrors.KindPlaybackStartFailed:
		msg = ce.Error()
	default:
		msg = "Camera access denied or not available"
	}
	return apperrors.NewCaptureError(ce.Kind, msg, ce)
}
