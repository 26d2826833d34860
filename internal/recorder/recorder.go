package recorder

import (
	"time"

	"medcom_capture/internal/media"

	"github.com/pion/webrtc/v4"
)

// Profile: профиль кодирования записи (аналог mimeType у MediaRecorder).
type Profile struct {
	Name         string
	MimeType     string
	Extension    string
	VideoCodec   string
	VideoCodecID string
	AudioCodec   string
	AudioCodecID string
}

var (
	ProfileVP9 = Profile{
		Name:         "video/webm;codecs=vp9",
		MimeType:     "video/webm",
		Extension:    "webm",
		VideoCodec:   webrtc.MimeTypeVP9,
		VideoCodecID: "V_VP9",
		AudioCodec:   webrtc.MimeTypeOpus,
		AudioCodecID: "A_OPUS",
	}
	ProfileVP8 = Profile{
		Name:         "video/webm",
		MimeType:     "video/webm",
		Extension:    "webm",
		VideoCodec:   webrtc.MimeTypeVP8,
		VideoCodecID: "V_VP8",
		AudioCodec:   webrtc.MimeTypeOpus,
		AudioCodecID: "A_OPUS",
	}
)

// DefaultProfiles: VP9, а при отсутствии поддержки VP8.
func DefaultProfiles() []Profile {
	return []Profile{ProfileVP9, ProfileVP8}
}

type Options struct {
	Profiles   []Profile
	Timeslice  time.Duration
	Width      int
	Height     int
	SampleRate int
	Channels   int
}

// Events: колбэки рекордера. OnData получает очередную порцию контейнера,
// OnFinalize вызывается ровно один раз после Stop.
type Events struct {
	OnData     func(chunk []byte)
	OnFinalize func(err error)
}

// Capability: платформенная возможность записи потока.
type Capability interface {
	Record(res *media.Resource, opts Options, events Events) (Session, error)
}

// Session: активная запись. Stop не блокирует: финализация приходит
// через Events.OnFinalize.
type Session interface {
	Profile() Profile
	Stop()
}
