package errors

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrBadRequest     = errors.New("bad request")
	ErrInternalServer = errors.New("internal server error")
	ErrInvalidToken   = errors.New("invalid token")
	ErrTokenExpired   = errors.New("token expired")
	ErrSessionBusy    = errors.New("capture session already in progress")
	ErrInvalidMeeting = errors.New("invalid meeting URL")
)

// Kind: класс ошибки захвата медиа.
type Kind string

const (
	KindPermissionDenied    Kind = "permission-denied"
	KindDeviceNotFound      Kind = "device-not-found"
	KindUnsupported         Kind = "unsupported"
	KindAborted             Kind = "aborted"
	KindPlaybackStartFailed Kind = "playback-start-failed"
	KindDecodeTransient     Kind = "decode-transient"
	KindUnknown             Kind = "unknown"
	KindSaveFailed          Kind = "save-failed"
)

// CaptureError: нормализованная ошибка получения или обработки медиапотока.
// Сравнение через errors.Is выполняется по Kind.
type CaptureError struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *CaptureError) Error() string {
	if e.Err != nil && e.Message == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	if e.Message == "" {
		return string(e.Kind)
	}
	return e.Message
}

func (e *CaptureError) Unwrap() error {
	return e.Err
}

func (e *CaptureError) Is(target error) bool {
	t, ok := target.(*CaptureError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

// Silent сообщает, что ошибку не нужно показывать пользователю.
func (e *CaptureError) Silent() bool {
	return e.Kind == KindAborted
}

var (
	ErrPermissionDenied    = &CaptureError{Kind: KindPermissionDenied, Message: "permission denied"}
	ErrDeviceNotFound      = &CaptureError{Kind: KindDeviceNotFound, Message: "device not found"}
	ErrUnsupportedPlatform = &CaptureError{Kind: KindUnsupported, Message: "not supported on this platform"}
	ErrAcquisitionAborted  = &CaptureError{Kind: KindAborted, Message: "acquisition aborted"}
	ErrPlaybackStartFailed = &CaptureError{Kind: KindPlaybackStartFailed, Message: "failed to start video stream"}
	ErrDecodeTransient     = &CaptureError{Kind: KindDecodeTransient, Message: "frame decode failed"}
	ErrUnknownAcquisition  = &CaptureError{Kind: KindUnknown, Message: "media acquisition failed"}
	ErrSaveFailed          = &CaptureError{Kind: KindSaveFailed, Message: "failed to save recording"}
)

// NewCaptureError оборачивает причину в ошибку заданного класса.
func NewCaptureError(kind Kind, message string, cause error) *CaptureError {
	return &CaptureError{Kind: kind, Message: message, Err: cause}
}

// AsCapture приводит произвольную ошибку к CaptureError. Неизвестные ошибки
// попадают в KindUnknown.
func AsCapture(err error) *CaptureError {
	if err == nil {
		return nil
	}
	var ce *CaptureError
	if errors.As(err, &ce) {
		return ce
	}
	return &CaptureError{Kind: KindUnknown, Message: err.Error(), Err: err}
}

type APIError struct {
	Message string `json:"error"`
	Kind    Kind   `json:"kind,omitempty"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

func NewAPIError(message string, code int) *APIError {
	return &APIError{
		Message: message,
		Code:    code,
	}
}

func HTTPStatusFromError(err error) int {
	var ce *CaptureError
	if errors.As(err, &ce) {
		switch ce.Kind {
		case KindPermissionDenied:
			return http.StatusForbidden
		case KindDeviceNotFound:
			return http.StatusNotFound
		case KindUnsupported:
			return http.StatusNotImplemented
		case KindAborted:
			return http.StatusConflict
		default:
			return http.StatusInternalServerError
		}
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidToken), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest), errors.Is(err, ErrInvalidMeeting):
		return http.StatusBadRequest
	case errors.Is(err, ErrSessionBusy):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
