package domain

import (
	"time"

	apperrors "medcom_capture/pkg/errors"

	"github.com/google/uuid"
)

type ScanState string

const (
	ScanStateIdle                 ScanState = "idle"
	ScanStateRequestingPermission ScanState = "requesting_permission"
	ScanStatePreviewing           ScanState = "previewing"
	ScanStateSampling             ScanState = "sampling"
	ScanStateCompleted            ScanState = "completed"
)

type ScanSnapshot struct {
	SessionID       *uuid.UUID              `json:"session_id,omitempty"`
	State           ScanState               `json:"state"`
	ConsecutiveHits int                     `json:"consecutive_hits"`
	LastPayload     string                  `json:"last_payload,omitempty"`
	LastError       *apperrors.CaptureError `json:"last_error,omitempty"`
}

type ScanResult struct {
	Outcome ResultOutcome           `json:"outcome"`
	State   ScanState               `json:"state"`
	Err     *apperrors.CaptureError `json:"error,omitempty"`
}

// ScanEventType: события сканера для хоста.
type ScanEventType string

const (
	ScanEventSuccess ScanEventType = "scan_success"
	ScanEventClosed  ScanEventType = "scan_closed"
	ScanEventError   ScanEventType = "scan_error"
)

type ScanEvent struct {
	Type       ScanEventType           `json:"type"`
	SessionID  uuid.UUID               `json:"session_id"`
	Payload    string                  `json:"payload,omitempty"`
	Conference *Conference             `json:"conference,omitempty"`
	Error      *apperrors.CaptureError `json:"error,omitempty"`
	At         time.Time               `json:"at"`
}
