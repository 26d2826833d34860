package service

import (
	"context"
	"image"
	"io"
	"sync"

	"medcom_capture/internal/media"
	"medcom_capture/internal/recorder"
	"medcom_capture/internal/scanner"
)

type fakeAcquirer struct {
	mu        sync.Mutex
	err       error
	gate      chan struct{}
	calls     int
	resources []*media.Resource
}

func (a *fakeAcquirer) Acquire(ctx context.Context, req media.Request) (*media.Resource, error) {
	a.mu.Lock()
	a.calls++
	gate, err := a.gate, a.err
	a.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if err != nil {
		return nil, media.Normalize(err)
	}

	res := media.NewResource(req.Kind, nil)
	a.mu.Lock()
	a.resources = append(a.resources, res)
	a.mu.Unlock()
	return res, nil
}

func (a *fakeAcquirer) callCount() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

func (a *fakeAcquirer) acquired() []*media.Resource {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]*media.Resource(nil), a.resources...)
}

type fakeSession struct {
	events  recorder.Events
	profile recorder.Profile
	once    sync.Once
	stops   int
}

func (s *fakeSession) Profile() recorder.Profile {
	return s.profile
}

// Stop финализирует синхронно: контроллер вызывает Stop вне своей блокировки.
func (s *fakeSession) Stop() {
	s.stops++
	s.once.Do(func() {
		s.events.OnFinalize(nil)
	})
}

type fakeCapability struct {
	mu       sync.Mutex
	err      error
	sessions []*fakeSession

	// finalizeEarly завершает сессию ещё до возврата из Record,
	// как рекордер, у которого трек упал на первом чтении
	finalizeEarly bool
	earlyErr      error
}

func (c *fakeCapability) Record(res *media.Resource, opts recorder.Options, events recorder.Events) (recorder.Session, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	s := &fakeSession{events: events, profile: opts.Profiles[0]}
	c.sessions = append(c.sessions, s)
	if c.finalizeEarly {
		s.once.Do(func() {
			events.OnFinalize(c.earlyErr)
		})
	}
	return s, nil
}

func (c *fakeCapability) last() *fakeSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sessions) == 0 {
		return nil
	}
	return c.sessions[len(c.sessions)-1]
}

type savedFile struct {
	name string
	data []byte
}

type fakeSaver struct {
	mu    sync.Mutex
	err   error
	saved []savedFile
}

func (s *fakeSaver) Save(name string, r io.Reader) (string, error) {
	data, _ := io.ReadAll(r)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	s.saved = append(s.saved, savedFile{name: name, data: data})
	return "/downloads/" + name, nil
}

func (s *fakeSaver) files() []savedFile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]savedFile(nil), s.saved...)
}

type fakePreview struct {
	mu        sync.Mutex
	attachErr error
	playErr   error
	frame     image.Image
	attached  bool
	detached  int
}

func (p *fakePreview) Attach(res *media.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.attachErr != nil {
		return p.attachErr
	}
	p.attached = true
	return nil
}

func (p *fakePreview) Play(ctx context.Context) error {
	return p.playErr
}

func (p *fakePreview) Frame() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.frame == nil {
		return nil, scanner.ErrNoFrame
	}
	return p.frame, nil
}

func (p *fakePreview) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.detached++
}

func (p *fakePreview) detachCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.detached
}

// scriptedDecoder возвращает заранее заданные результаты по очереди.
type scriptedDecoder struct {
	mu      sync.Mutex
	results []string
	next    int
}

func (d *scriptedDecoder) decode(pixels []byte, width, height int) (string, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.next >= len(d.results) {
		return "", false
	}
	r := d.results[d.next]
	d.next++
	return r, r != ""
}
