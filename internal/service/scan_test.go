package service

import (
	"context"
	"errors"
	"image"
	"sync"
	"testing"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/domain"
	"medcom_capture/internal/media"
	"medcom_capture/internal/scanner"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	qrcode "github.com/skip2/go-qrcode"
)

type eventLog struct {
	mu     sync.Mutex
	events []domain.ScanEvent
}

func (l *eventLog) notify(ev domain.ScanEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, ev)
}

func (l *eventLog) count(typ domain.ScanEventType) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, ev := range l.events {
		if ev.Type == typ {
			n++
		}
	}
	return n
}

func (l *eventLog) last() domain.ScanEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.events[len(l.events)-1]
}

func testScannerConfig() config.ScannerConfig {
	return config.ScannerConfig{
		Width:  640,
		Height: 480,
		// Сэмплер в тестах дёргается вручную
		SampleInterval: time.Hour,
		ConfirmHits:    3,
		StartDelay:     200 * time.Millisecond,
		PlaybackWait:   time.Second,
	}
}

type scanFixture struct {
	ctrl     *ScanController
	acq      *fakeAcquirer
	previews []*fakePreview
	events   *eventLog
	mu       sync.Mutex
	template fakePreview
}

func newScanFixture(acq *fakeAcquirer, decode scanner.Decoder) *scanFixture {
	f := &scanFixture{acq: acq, events: &eventLog{}}
	f.template.frame = image.NewRGBA(image.Rect(0, 0, 8, 8))
	newPreview := func() scanner.Preview {
		f.mu.Lock()
		defer f.mu.Unlock()
		p := &fakePreview{
			attachErr: f.template.attachErr,
			playErr:   f.template.playErr,
			frame:     f.template.frame,
		}
		f.previews = append(f.previews, p)
		return p
	}
	conf := NewConferenceService(config.LiveKitConfig{DefaultServer: "https://meet.jit.si"}, logger.NewNop())
	f.ctrl = NewScanController(acq, newPreview, decode, conf, nil, f.events.notify, testScannerConfig(), logger.NewNop())
	return f
}

func (f *scanFixture) currentRun() *scanRun {
	f.ctrl.mu.Lock()
	defer f.ctrl.mu.Unlock()
	return f.ctrl.run
}

func TestScanConfirmationSequence(t *testing.T) {
	dec := &scriptedDecoder{results: []string{"", "room-42", "room-42", "", "room-42", "room-42", "room-42"}}
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, dec.decode)

	result := f.ctrl.Begin(context.Background())
	if result.Outcome != domain.OutcomeStarted || result.State != domain.ScanStateSampling {
		t.Fatalf("unexpected begin result %+v", result)
	}

	run := f.currentRun()
	want := []int{0, 1, 2, 0, 1, 2, 3}
	for i, hits := range want {
		f.ctrl.sampleOnce(run)
		snap := f.ctrl.Snapshot()
		if snap.ConsecutiveHits != hits {
			t.Fatalf("step %d: expected %d hits, got %d", i, hits, snap.ConsecutiveHits)
		}
		if i < len(want)-1 && f.events.count(domain.ScanEventSuccess) != 0 {
			t.Fatalf("step %d: success fired too early", i)
		}
	}

	if f.ctrl.Snapshot().State != domain.ScanStateCompleted {
		t.Fatalf("expected completed, got %s", f.ctrl.Snapshot().State)
	}
	if n := f.events.count(domain.ScanEventSuccess); n != 1 {
		t.Fatalf("expected one success, got %d", n)
	}

	ev := f.events.last()
	if ev.Payload != "room-42" {
		t.Errorf("unexpected payload %q", ev.Payload)
	}
	if ev.Conference == nil || ev.Conference.Room != "room-42" || ev.Conference.ServerURL != "https://meet.jit.si" {
		t.Errorf("unexpected conference %+v", ev.Conference)
	}

	assertAllReleased(t, acq)
	if f.previews[0].detachCount() == 0 {
		t.Error("preview must be detached on completion")
	}

	// Запоздавший тик после завершения ничего не делает
	f.ctrl.sampleOnce(run)
	if n := f.events.count(domain.ScanEventSuccess); n != 1 {
		t.Errorf("success must fire exactly once, got %d", n)
	}
}

func TestScanDifferentPayloadRestartsCount(t *testing.T) {
	dec := &scriptedDecoder{results: []string{"a", "a", "b", "b", "b"}}
	f := newScanFixture(&fakeAcquirer{}, dec.decode)
	f.ctrl.Begin(context.Background())
	run := f.currentRun()

	want := []int{1, 2, 1, 2, 3}
	for i, hits := range want {
		f.ctrl.sampleOnce(run)
		if got := f.ctrl.Snapshot().ConsecutiveHits; got != hits {
			t.Fatalf("step %d: expected %d, got %d", i, hits, got)
		}
	}
	if f.events.last().Payload != "b" {
		t.Errorf("expected payload b, got %q", f.events.last().Payload)
	}
}

func TestScanCancelOnIdle(t *testing.T) {
	f := newScanFixture(&fakeAcquirer{}, nil)

	if f.ctrl.Cancel() {
		t.Error("cancel on idle must report nothing to cancel")
	}
	f.ctrl.Cancel()

	if f.ctrl.Snapshot().State != domain.ScanStateIdle {
		t.Errorf("expected idle, got %s", f.ctrl.Snapshot().State)
	}
	if f.events.count(domain.ScanEventClosed) != 0 {
		t.Error("cancel on idle must not emit close")
	}
}

func TestScanCancelWhileSampling(t *testing.T) {
	dec := &scriptedDecoder{results: []string{"x", "x", "x"}}
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, dec.decode)
	f.ctrl.Begin(context.Background())
	run := f.currentRun()

	if !f.ctrl.Cancel() {
		t.Fatal("expected cancel to stop the session")
	}
	f.ctrl.Cancel()

	snap := f.ctrl.Snapshot()
	if snap.State != domain.ScanStateIdle || snap.ConsecutiveHits != 0 {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	assertAllReleased(t, acq)
	if f.events.count(domain.ScanEventClosed) != 1 {
		t.Error("expected one close event")
	}

	// Тик, успевший сработать до остановки, не трогает ресурсы
	for i := 0; i < 3; i++ {
		f.ctrl.sampleOnce(run)
	}
	if f.events.count(domain.ScanEventSuccess) != 0 {
		t.Error("stale sampler tick must be a no-op")
	}
	if dec.next != 0 {
		t.Error("stale tick must not decode")
	}
}

func TestScanPermissionDenied(t *testing.T) {
	acq := &fakeAcquirer{err: &media.PlatformError{Name: "NotAllowedError"}}
	f := newScanFixture(acq, nil)

	result := f.ctrl.Begin(context.Background())
	if result.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", result.Outcome)
	}

	snap := f.ctrl.Snapshot()
	if snap.State != domain.ScanStateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if snap.LastError == nil || !errors.Is(snap.LastError, apperrors.ErrPermissionDenied) {
		t.Fatalf("expected permission denied, got %v", snap.LastError)
	}
	if snap.LastError.Message != "Camera permission denied. Please allow camera access in your system settings." {
		t.Errorf("unexpected message %q", snap.LastError.Message)
	}
	if f.events.count(domain.ScanEventError) != 1 {
		t.Error("expected error event")
	}

	f.ctrl.mu.Lock()
	res := f.ctrl.resource
	f.ctrl.mu.Unlock()
	if res != nil {
		t.Error("no resource may be held after failure")
	}
}

func TestScanErrorMessages(t *testing.T) {
	cases := []struct {
		name string
		want string
	}{
		{"NotFoundError", "No webcam found on this device."},
		{"NotSupportedError", "Camera not supported on this platform."},
		{"SomethingElse", "Camera access denied or not available"},
	}
	for _, tc := range cases {
		f := newScanFixture(&fakeAcquirer{err: &media.PlatformError{Name: tc.name}}, nil)
		f.ctrl.Begin(context.Background())
		if got := f.ctrl.Snapshot().LastError; got == nil || got.Message != tc.want {
			t.Errorf("%s: expected %q, got %v", tc.name, tc.want, got)
		}
	}
}

func TestScanAbortedIsSilent(t *testing.T) {
	f := newScanFixture(&fakeAcquirer{err: &media.PlatformError{Name: "AbortError"}}, nil)

	result := f.ctrl.Begin(context.Background())
	if result.Outcome != domain.OutcomeCancelled {
		t.Errorf("expected cancelled, got %s", result.Outcome)
	}
	snap := f.ctrl.Snapshot()
	if snap.State != domain.ScanStateIdle || snap.LastError != nil {
		t.Errorf("unexpected snapshot %+v", snap)
	}
	if f.events.count(domain.ScanEventError) != 0 {
		t.Error("aborted acquisition must not emit error")
	}
}

func TestScanPlaybackFailureReleasesCamera(t *testing.T) {
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, nil)
	f.template.playErr = errors.New("video element not ready")

	result := f.ctrl.Begin(context.Background())
	if result.Outcome != domain.OutcomeFailed {
		t.Fatalf("expected failed, got %s", result.Outcome)
	}
	snap := f.ctrl.Snapshot()
	if snap.State != domain.ScanStateIdle {
		t.Errorf("expected idle, got %s", snap.State)
	}
	if snap.LastError == nil || snap.LastError.Kind != apperrors.KindPlaybackStartFailed {
		t.Errorf("expected playback failure, got %v", snap.LastError)
	}
	assertAllReleased(t, acq)

	// Контроллер остаётся готов к повторной попытке
	f.template.playErr = nil
	if r := f.ctrl.Begin(context.Background()); r.Outcome != domain.OutcomeStarted {
		t.Errorf("expected retry to start, got %s", r.Outcome)
	}
	f.ctrl.Cancel()
	assertAllReleased(t, acq)
}

func TestScanDecodePanicIsSwallowed(t *testing.T) {
	calls := 0
	decode := func(pixels []byte, w, h int) (string, bool) {
		calls++
		if calls == 2 {
			panic("corrupt frame")
		}
		return "room", true
	}
	f := newScanFixture(&fakeAcquirer{}, decode)
	f.ctrl.Begin(context.Background())
	run := f.currentRun()

	f.ctrl.sampleOnce(run)
	f.ctrl.sampleOnce(run)
	if got := f.ctrl.Snapshot().ConsecutiveHits; got != 0 {
		t.Errorf("panicking decode must count as a miss, got %d hits", got)
	}
	if f.ctrl.Snapshot().State != domain.ScanStateSampling {
		t.Error("sampling must continue after a corrupt frame")
	}
	f.ctrl.Cancel()
}

func TestScanMissingFrameIsMiss(t *testing.T) {
	dec := &scriptedDecoder{results: []string{"room"}}
	f := newScanFixture(&fakeAcquirer{}, dec.decode)
	f.template.frame = nil
	f.ctrl.Begin(context.Background())

	f.ctrl.sampleOnce(f.currentRun())
	if got := f.ctrl.Snapshot().ConsecutiveHits; got != 0 {
		t.Errorf("expected 0 hits without a frame, got %d", got)
	}
	if dec.next != 0 {
		t.Error("decoder must not run without a frame")
	}
	f.ctrl.Cancel()
}

func TestScanBeginIgnoredWhileActive(t *testing.T) {
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, nil)
	f.ctrl.Begin(context.Background())

	if r := f.ctrl.Begin(context.Background()); r.Outcome != domain.OutcomeIgnored {
		t.Errorf("expected ignored, got %s", r.Outcome)
	}
	if acq.callCount() != 1 {
		t.Errorf("expected one camera request, got %d", acq.callCount())
	}
	f.ctrl.Cancel()
}

func TestScanBeginAfterCancelledBeforeStart(t *testing.T) {
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, nil)

	if !f.ctrl.BeginAfter(time.Hour) {
		t.Fatal("expected delayed begin to be scheduled")
	}
	if f.ctrl.BeginAfter(time.Hour) {
		t.Error("second delayed begin must be rejected")
	}
	if !f.ctrl.Cancel() {
		t.Error("cancel must report the pending start")
	}
	if acq.callCount() != 0 {
		t.Error("camera must not be requested after cancel")
	}
}

func TestScanBeginAfterStartsSampling(t *testing.T) {
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, nil)

	f.ctrl.BeginAfter(10 * time.Millisecond)

	deadline := time.Now().Add(2 * time.Second)
	for f.ctrl.Snapshot().State != domain.ScanStateSampling {
		if time.Now().After(deadline) {
			t.Fatal("scanner never started sampling")
		}
		time.Sleep(5 * time.Millisecond)
	}
	f.ctrl.Cancel()
	assertAllReleased(t, acq)
}

func TestScanDecodesRealQRCode(t *testing.T) {
	png, err := qrcode.New("https://meet.example.org/team/standup", qrcode.Medium)
	if err != nil {
		t.Fatalf("qrcode.New: %v", err)
	}

	f := newScanFixture(&fakeAcquirer{}, scanner.DecodeQR)
	f.template.frame = png.Image(256)
	f.ctrl.Begin(context.Background())
	run := f.currentRun()

	for i := 0; i < 3; i++ {
		f.ctrl.sampleOnce(run)
	}

	if f.ctrl.Snapshot().State != domain.ScanStateCompleted {
		t.Fatalf("expected completed, got %s (hits %d)", f.ctrl.Snapshot().State, f.ctrl.Snapshot().ConsecutiveHits)
	}
	ev := f.events.last()
	if ev.Conference == nil || ev.Conference.ServerURL != "https://meet.example.org" || ev.Conference.Room != "standup" {
		t.Errorf("unexpected conference %+v", ev.Conference)
	}
}

// slowHistory держит Push, пока тест не откроет gate.
type slowHistory struct {
	gate   chan struct{}
	mu     sync.Mutex
	pushed []*domain.ScanEvent
}

func (h *slowHistory) Push(ctx context.Context, event *domain.ScanEvent) error {
	select {
	case <-h.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pushed = append(h.pushed, event)
	return nil
}

func (h *slowHistory) Recent(ctx context.Context, limit int) ([]*domain.ScanEvent, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]*domain.ScanEvent(nil), h.pushed...), nil
}

func TestScanSuccessNotifiedBeforeHistoryWrite(t *testing.T) {
	dec := &scriptedDecoder{results: []string{"room-7", "room-7", "room-7"}}
	acq := &fakeAcquirer{}
	f := newScanFixture(acq, dec.decode)
	hist := &slowHistory{gate: make(chan struct{})}
	f.ctrl.history = hist

	if r := f.ctrl.Begin(context.Background()); r.Outcome != domain.OutcomeStarted {
		t.Fatalf("unexpected begin result %+v", r)
	}
	run := f.currentRun()
	f.ctrl.sampleOnce(run)
	f.ctrl.sampleOnce(run)

	done := make(chan struct{})
	go func() {
		defer close(done)
		f.ctrl.sampleOnce(run)
	}()

	deadline := time.Now().Add(2 * time.Second)
	for f.events.count(domain.ScanEventSuccess) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("success must be delivered while history write is pending")
		}
		time.Sleep(time.Millisecond)
	}

	close(hist.gate)
	<-done

	stored, _ := hist.Recent(context.Background(), 10)
	if len(stored) != 1 || stored[0].Payload != "room-7" {
		t.Errorf("unexpected history %+v", stored)
	}
}
