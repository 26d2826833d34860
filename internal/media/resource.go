package media

import (
	"sync"
	"sync/atomic"

	"github.com/pion/mediadevices"
)

// Resource: эксклюзивная обёртка над захваченным потоком.
// Release идемпотентен: повторный вызов ничего не делает.
type Resource struct {
	kind      Kind
	stream    mediadevices.MediaStream
	onRelease []func()

	once     sync.Once
	released atomic.Bool
}

// NewResource оборачивает поток. onRelease вызываются после закрытия треков
// (например, отмена контекста кастомного источника).
func NewResource(kind Kind, stream mediadevices.MediaStream, onRelease ...func()) *Resource {
	return &Resource{
		kind:      kind,
		stream:    stream,
		onRelease: onRelease,
	}
}

func (r *Resource) Kind() Kind {
	return r.kind
}

// Stream отдаёт поток владельцу ресурса. После Release возвращает nil.
func (r *Resource) Stream() mediadevices.MediaStream {
	if r == nil || r.released.Load() {
		return nil
	}
	return r.stream
}

func (r *Resource) Released() bool {
	if r == nil {
		return true
	}
	return r.released.Load()
}

func (r *Resource) Release() {
	if r == nil {
		return
	}
	r.once.Do(func() {
		r.released.Store(true)
		if r.stream != nil {
			// Закрываем все треки в стриме
			for _, track := range r.stream.GetTracks() {
				_ = track.Close()
			}
		}
		for _, fn := range r.onRelease {
			fn()
		}
	})
}
