//go:build cgo
// +build cgo

package media

import (
	"context"
	"image"
	"sync/atomic"
	"time"

	"medcom_capture/pkg/logger"

	"github.com/kbinani/screenshot"
	"github.com/pion/mediadevices/pkg/frame"
	"github.com/pion/mediadevices/pkg/prop"
)

// screenVideoSource реализует mediadevices.VideoSource
type screenVideoSource struct {
	displayIndex int
	bounds       image.Rectangle
	fps          int
	log          logger.Logger
	ctx          context.Context
	frames       atomic.Int64
}

func (s *screenVideoSource) Read() (image.Image, func(), error) {
	select {
	case <-s.ctx.Done():
		return nil, nil, s.ctx.Err()
	default:
	}

	img, err := screenshot.CaptureDisplay(s.displayIndex)
	if err != nil {
		s.log.Error("Failed to capture display", "error", err, "display_index", s.displayIndex)
		return nil, nil, err
	}

	n := s.frames.Add(1)
	if n <= 5 || n%300 == 0 {
		s.log.Debug("Captured frame", "frame", n, "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	}

	// Небольшая задержка для контроля FPS
	time.Sleep(time.Second / time.Duration(s.fps))

	return img, func() {}, nil
}

func (s *screenVideoSource) Close() error {
	return nil
}

func (s *screenVideoSource) ID() string {
	return "screen-capture"
}

func (s *screenVideoSource) Properties() []prop.Media {
	// screenshot.CaptureDisplay возвращает RGBA
	return []prop.Media{
		{
			Video: prop.Video{
				Width:       s.bounds.Dx(),
				Height:      s.bounds.Dy(),
				FrameFormat: frame.FormatRGBA,
				FrameRate:   float32(s.fps),
			},
		},
	}
}
