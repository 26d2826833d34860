//go:build cgo
// +build cgo

package media

import (
	"context"
	"errors"

	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	"github.com/kbinani/screenshot"
	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	"github.com/pion/mediadevices/pkg/codec/vpx"
	"github.com/pion/mediadevices/pkg/prop"

	// Драйверы устройств регистрируются через init
	_ "github.com/pion/mediadevices/pkg/driver/camera"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	_ "github.com/pion/mediadevices/pkg/driver/screen"
)

type EncoderConfig struct {
	VideoBitRate int
	AudioBitRate int
}

// DeviceAcquirer получает потоки через pion/mediadevices.
type DeviceAcquirer struct {
	log     logger.Logger
	encoder EncoderConfig
}

func NewDeviceAcquirer(encoder EncoderConfig, log logger.Logger) *DeviceAcquirer {
	return &DeviceAcquirer{
		log:     log,
		encoder: encoder,
	}
}

func (a *DeviceAcquirer) Acquire(ctx context.Context, req Request) (*Resource, error) {
	switch req.Kind {
	case KindScreen:
		return acquireAsync(ctx, func() (*Resource, error) {
			return a.acquireScreen(req.Constraints)
		})
	case KindCamera:
		return acquireAsync(ctx, func() (*Resource, error) {
			return a.acquireCamera(req.Constraints)
		})
	default:
		return nil, Normalize(&PlatformError{Name: "TypeError", Message: "unknown capture kind " + string(req.Kind)})
	}
}

// codecSelector: VP9 предпочтительнее, VP8 как запасной вариант.
func (a *DeviceAcquirer) codecSelector(withAudio bool) (*mediadevices.CodecSelector, error) {
	vp9Params, err := vpx.NewVP9Params()
	if err != nil {
		a.log.Error("Failed to create VP9 params", "error", err)
		return nil, err
	}
	vp9Params.BitRate = a.encoder.VideoBitRate
	vp9Params.KeyFrameInterval = 30

	vp8Params, err := vpx.NewVP8Params()
	if err != nil {
		a.log.Error("Failed to create VP8 params", "error", err)
		return nil, err
	}
	vp8Params.BitRate = a.encoder.VideoBitRate
	vp8Params.KeyFrameInterval = 30

	opts := []mediadevices.CodecSelectorOption{
		mediadevices.WithVideoEncoders(&vp9Params, &vp8Params),
	}
	if withAudio {
		opusParams, err := opus.NewParams()
		if err != nil {
			a.log.Error("Failed to create Opus params", "error", err)
			return nil, err
		}
		opusParams.BitRate = a.encoder.AudioBitRate
		opts = append(opts, mediadevices.WithAudioEncoders(&opusParams))
	}
	return mediadevices.NewCodecSelector(opts...), nil
}

func (a *DeviceAcquirer) acquireScreen(c Constraints) (*Resource, error) {
	a.log.Info("Requesting screen capture", "width", c.Width, "height", c.Height, "fps", c.FrameRate)

	selector, err := a.codecSelector(c.Audio.Enabled)
	if err != nil {
		return nil, err
	}

	stream, err := mediadevices.GetDisplayMedia(mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			constraint.Width = prop.Int(c.Width)
			constraint.Height = prop.Int(c.Height)
			constraint.FrameRate = prop.Float(float32(c.FrameRate))
		},
		Codec: selector,
	})

	var cancel context.CancelFunc
	if err != nil {
		kind := Normalize(err).Kind
		if kind == apperrors.KindAborted || kind == apperrors.KindPermissionDenied {
			return nil, err
		}
		a.log.Warn("GetDisplayMedia failed, falling back to custom screen capture", "error", err)
		stream, cancel, err = a.startCustomCapture(c, selector)
		if err != nil {
			return nil, err
		}
	}

	if len(stream.GetVideoTracks()) == 0 {
		closeTracks(stream)
		if cancel != nil {
			cancel()
		}
		return nil, errors.New("no video tracks in stream")
	}

	if c.Audio.Enabled {
		a.attachAudio(stream, c.Audio, selector)
	}

	a.log.Info("Screen capture stream created",
		"video_tracks", len(stream.GetVideoTracks()),
		"audio_tracks", len(stream.GetAudioTracks()))

	if cancel != nil {
		return NewResource(KindScreen, stream, cancel), nil
	}
	return NewResource(KindScreen, stream), nil
}

// attachAudio добавляет звук отдельным запросом. Без звука запись продолжается.
func (a *DeviceAcquirer) attachAudio(stream mediadevices.MediaStream, ac AudioConstraints, selector *mediadevices.CodecSelector) {
	if ac.NoiseSuppression || ac.EchoCancellation {
		a.log.Debug("Audio processing requested", "noise_suppression", ac.NoiseSuppression, "echo_cancellation", ac.EchoCancellation)
	}

	audio, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(constraint *mediadevices.MediaTrackConstraints) {
			constraint.SampleRate = prop.Int(ac.SampleRate)
			if ac.ChannelCount > 0 {
				constraint.ChannelCount = prop.Int(ac.ChannelCount)
			}
		},
		Codec: selector,
	})
	if err != nil {
		a.log.Warn("Failed to start audio capture, continuing without audio", "error", err)
		return
	}
	for _, track := range audio.GetAudioTracks() {
		stream.AddTrack(track)
	}
}

// startCustomCapture: захват экрана через kbinani/screenshot, если драйвер
// экрана недоступен.
func (a *DeviceAcquirer) startCustomCapture(c Constraints, selector *mediadevices.CodecSelector) (mediadevices.MediaStream, context.CancelFunc, error) {
	if screenshot.NumActiveDisplays() == 0 {
		return nil, nil, ErrNoDisplayFound
	}

	displayIndex := 0
	bounds := screenshot.GetDisplayBounds(displayIndex)
	fps := c.FrameRate
	if fps <= 0 {
		fps = 30
	}

	// Контекст источника живёт до Release ресурса, а не до конца запроса
	srcCtx, cancel := context.WithCancel(context.Background())
	source := &screenVideoSource{
		displayIndex: displayIndex,
		bounds:       bounds,
		fps:          fps,
		log:          a.log,
		ctx:          srcCtx,
	}

	track := mediadevices.NewVideoTrack(source, selector)
	stream, err := mediadevices.NewMediaStream(track)
	if err != nil {
		cancel()
		track.Close()
		a.log.Error("Failed to create media stream", "error", err)
		return nil, nil, err
	}

	a.log.Info("Custom screen capture stream created", "display_index", displayIndex, "bounds", bounds, "fps", fps)
	return stream, cancel, nil
}

func (a *DeviceAcquirer) acquireCamera(c Constraints) (*Resource, error) {
	a.log.Info("Requesting camera", "width", c.Width, "height", c.Height, "device_id", c.DeviceID)

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Video: func(constraint *mediadevices.MediaTrackConstraints) {
			constraint.Width = prop.Int(c.Width)
			constraint.Height = prop.Int(c.Height)
			if c.DeviceID != "" {
				constraint.DeviceID = prop.StringExact(c.DeviceID)
			}
		},
	})
	if err != nil {
		return nil, err
	}

	if len(stream.GetVideoTracks()) == 0 {
		closeTracks(stream)
		return nil, &PlatformError{Name: "NotFoundError", Message: "no video tracks from camera"}
	}
	return NewResource(KindCamera, stream), nil
}

func closeTracks(stream mediadevices.MediaStream) {
	for _, track := range stream.GetTracks() {
		track.Close()
	}
}
