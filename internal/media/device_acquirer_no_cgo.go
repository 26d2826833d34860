//go:build !cgo
// +build !cgo

package media

import (
	"context"

	"medcom_capture/pkg/logger"
)

// Stub implementation for when CGO is disabled.
// Full implementation with codecs and device drivers is in device_acquirer.go.

type EncoderConfig struct {
	VideoBitRate int
	AudioBitRate int
}

type DeviceAcquirer struct {
	log logger.Logger
}

func NewDeviceAcquirer(_ EncoderConfig, log logger.Logger) *DeviceAcquirer {
	return &DeviceAcquirer{log: log}
}

func (a *DeviceAcquirer) Acquire(ctx context.Context, req Request) (*Resource, error) {
	a.log.Error("Media capture requires CGO and codec libraries (libvpx, libopus)", "kind", req.Kind)
	return nil, Normalize(&PlatformError{Name: "NotSupportedError", Message: "media capture not available: requires cgo"})
}
