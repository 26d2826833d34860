package scanner

import (
	"context"
	"errors"
	"image"
	"sync"

	"medcom_capture/internal/media"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/io/video"
	"golang.org/x/image/draw"
)

var ErrNoFrame = errors.New("no preview frame available")

// Preview: живое превью камеры, из которого сэмплер берёт кадры.
type Preview interface {
	Attach(res *media.Resource) error
	Play(ctx context.Context) error
	Frame() (image.Image, error)
	Detach()
}

// TrackPreview читает сырые кадры видеотрека mediadevices и хранит последний.
type TrackPreview struct {
	log logger.Logger

	mu     sync.Mutex
	reader video.Reader
	latest image.Image
	stop   chan struct{}
}

func NewTrackPreview(log logger.Logger) *TrackPreview {
	return &TrackPreview{log: log}
}

func (p *TrackPreview) Attach(res *media.Resource) error {
	stream := res.Stream()
	if stream == nil {
		return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Camera stream not available", nil)
	}

	tracks := stream.GetVideoTracks()
	if len(tracks) == 0 {
		return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Camera stream has no video track", nil)
	}
	vt, ok := tracks[0].(*mediadevices.VideoTrack)
	if !ok {
		return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Unsupported video track type", nil)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.reader = vt.NewReader(false)
	p.latest = nil
	p.stop = make(chan struct{})
	return nil
}

// Play запускает чтение кадров и ждёт первый кадр.
func (p *TrackPreview) Play(ctx context.Context) error {
	p.mu.Lock()
	reader, stop := p.reader, p.stop
	p.mu.Unlock()
	if reader == nil {
		return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Video element not found", nil)
	}

	ready := make(chan error, 1)
	go p.loop(reader, stop, ready)

	select {
	case err := <-ready:
		if err != nil {
			return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Failed to start video stream: "+err.Error(), err)
		}
		return nil
	case <-ctx.Done():
		return apperrors.NewCaptureError(apperrors.KindPlaybackStartFailed, "Failed to start video stream: "+ctx.Err().Error(), ctx.Err())
	}
}

func (p *TrackPreview) loop(reader video.Reader, stop chan struct{}, ready chan<- error) {
	first := true
	for {
		select {
		case <-stop:
			return
		default:
		}

		img, release, err := reader.Read()
		if err != nil {
			if first {
				ready <- err
			} else {
				p.log.Debug("Preview read stopped", "error", err)
			}
			return
		}

		frame := copyFrame(img)
		if release != nil {
			release()
		}

		p.mu.Lock()
		if p.stop == stop {
			p.latest = frame
		}
		p.mu.Unlock()

		if first {
			first = false
			ready <- nil
		}
	}
}

func (p *TrackPreview) Frame() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.latest == nil {
		return nil, ErrNoFrame
	}
	return p.latest, nil
}

func (p *TrackPreview) Detach() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stop != nil {
		close(p.stop)
		p.stop = nil
	}
	p.reader = nil
	p.latest = nil
}

// copyFrame снимает копию: буфер кадра драйвера переиспользуется после release.
func copyFrame(img image.Image) image.Image {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Rect, img, b.Min, draw.Src)
	return dst
}
