package domain

import (
	"time"

	apperrors "medcom_capture/pkg/errors"

	"github.com/google/uuid"
)

type RecordingState string

const (
	RecordingStateIdle      RecordingState = "idle"
	RecordingStateAcquiring RecordingState = "acquiring"
	RecordingStateRecording RecordingState = "recording"
	RecordingStateStopping  RecordingState = "stopping"
)

// RecordingSnapshot: то, что хост видит и рендерит. Только для чтения.
type RecordingSnapshot struct {
	SessionID      *uuid.UUID              `json:"session_id,omitempty"`
	State          RecordingState          `json:"state"`
	StartedAt      *time.Time              `json:"started_at,omitempty"`
	ElapsedSeconds int64                   `json:"elapsed_seconds"`
	Duration       string                  `json:"duration"`
	Chunks         int                     `json:"chunks"`
	Profile        string                  `json:"profile,omitempty"`
	LastError      *apperrors.CaptureError `json:"last_error,omitempty"`
}

// SavedRecording: запись в каталоге завершённых записей.
type SavedRecording struct {
	ID         uuid.UUID     `json:"id"`
	FileName   string        `json:"file_name"`
	Path       string        `json:"path"`
	MimeType   string        `json:"mime_type"`
	SizeBytes  int64         `json:"size_bytes"`
	StartedAt  time.Time     `json:"started_at"`
	Duration   time.Duration `json:"duration"`
	ChunkCount int           `json:"chunk_count"`
	CreatedAt  time.Time     `json:"created_at"`
}

// ResultOutcome описывает, чем закончился вызов операции контроллера.
type ResultOutcome string

const (
	OutcomeStarted   ResultOutcome = "started"
	OutcomeIgnored   ResultOutcome = "ignored"
	OutcomeCancelled ResultOutcome = "cancelled"
	OutcomeDiscarded ResultOutcome = "discarded"
	OutcomeFailed    ResultOutcome = "failed"
)

// RecordingResult: типизированный результат Start. Состояние контроллера
// к этому моменту уже выставлено.
type RecordingResult struct {
	Outcome ResultOutcome           `json:"outcome"`
	State   RecordingState          `json:"state"`
	Profile string                  `json:"profile,omitempty"`
	Err     *apperrors.CaptureError `json:"error,omitempty"`
}
