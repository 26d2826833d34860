package media

import (
	"context"
	"errors"
	"os"
	"strings"

	apperrors "medcom_capture/pkg/errors"
)

type Kind string

const (
	KindScreen Kind = "screen"
	KindCamera Kind = "camera"
)

type AudioConstraints struct {
	Enabled          bool
	NoiseSuppression bool
	EchoCancellation bool
	SampleRate       int
	ChannelCount     int
}

// Constraints: предпочтения (ideal), а не жёсткие требования.
type Constraints struct {
	Width     int
	Height    int
	FrameRate int
	DeviceID  string
	Audio     AudioConstraints
}

type Request struct {
	Kind        Kind
	Constraints Constraints
}

// Acquirer запрашивает у платформы поток. Ошибки всегда *errors.CaptureError.
type Acquirer interface {
	Acquire(ctx context.Context, req Request) (*Resource, error)
}

// PlatformError: ошибка медиаподсистемы с именем в стиле DOMException
// (NotAllowedError, NotFoundError, ...).
type PlatformError struct {
	Name    string
	Message string
}

func (e *PlatformError) Error() string {
	if e.Message == "" {
		return e.Name
	}
	return e.Name + ": " + e.Message
}

var ErrNoDisplayFound = errors.New("no display found")

// Normalize приводит ошибку платформы к одному из классов
// permission-denied, device-not-found, unsupported, aborted, unknown.
func Normalize(err error) *apperrors.CaptureError {
	if err == nil {
		return nil
	}

	var ce *apperrors.CaptureError
	if errors.As(err, &ce) {
		return ce
	}

	kind := classify(err)
	return apperrors.NewCaptureError(kind, err.Error(), err)
}

func classify(err error) apperrors.Kind {
	var pe *PlatformError
	if errors.As(err, &pe) {
		switch pe.Name {
		case "NotAllowedError", "PermissionDeniedError", "SecurityError":
			return apperrors.KindPermissionDenied
		case "NotFoundError", "DevicesNotFoundError", "OverconstrainedError":
			return apperrors.KindDeviceNotFound
		case "NotSupportedError", "TypeError":
			return apperrors.KindUnsupported
		case "AbortError":
			return apperrors.KindAborted
		default:
			return apperrors.KindUnknown
		}
	}

	switch {
	case errors.Is(err, context.Canceled):
		return apperrors.KindAborted
	case errors.Is(err, os.ErrPermission):
		return apperrors.KindPermissionDenied
	case errors.Is(err, os.ErrNotExist), errors.Is(err, ErrNoDisplayFound):
		return apperrors.KindDeviceNotFound
	}

	// mediadevices не экспортирует свои ошибки, сверяемся по тексту
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return apperrors.KindPermissionDenied
	case strings.Contains(msg, "failed to find"), strings.Contains(msg, "no such device"):
		return apperrors.KindDeviceNotFound
	case strings.Contains(msg, "not supported"), strings.Contains(msg, "not implemented"), strings.Contains(msg, "requires cgo"):
		return apperrors.KindUnsupported
	}
	return apperrors.KindUnknown
}

// acquireAsync выполняет блокирующий запрос платформы. Сам запрос не
// прерывается: если ctx завершился раньше, результат по готовности
// освобождается и отбрасывается.
func acquireAsync(ctx context.Context, fn func() (*Resource, error)) (*Resource, error) {
	if err := ctx.Err(); err != nil {
		return nil, Normalize(err)
	}

	type result struct {
		res *Resource
		err error
	}
	done := make(chan result, 1)
	go func() {
		res, err := fn()
		done <- result{res: res, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return nil, Normalize(r.err)
		}
		return r.res, nil
	case <-ctx.Done():
		go func() {
			if r := <-done; r.res != nil {
				r.res.Release()
			}
		}()
		return nil, Normalize(ctx.Err())
	}
}
