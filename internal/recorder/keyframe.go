package recorder

import (
	"strings"

	"github.com/pion/webrtc/v4"
)

func isKeyframe(codec string, data []byte) bool {
	if len(data) == 0 {
		return false
	}
	switch {
	case strings.EqualFold(codec, webrtc.MimeTypeVP8):
		// P-бит в первом байте: 0 означает ключевой кадр
		return data[0]&0x01 == 0
	case strings.EqualFold(codec, webrtc.MimeTypeVP9):
		return vp9Keyframe(data[0])
	default:
		// аудио-кадры независимы
		return true
	}
}

// vp9Keyframe разбирает начало uncompressed header:
// frame_marker(2) profile_low(1) profile_high(1) [reserved(1)] show_existing(1) frame_type(1).
func vp9Keyframe(b byte) bool {
	if b>>6 != 0x2 {
		return false
	}
	profile := (b>>5)&0x1 | ((b>>4)&0x1)<<1
	shift := uint(3)
	if profile == 3 {
		shift = 2
	}
	showExisting := (b >> shift) & 0x1
	frameType := (b >> (shift - 1)) & 0x1
	return showExisting == 0 && frameType == 0
}
