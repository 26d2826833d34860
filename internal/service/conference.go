package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"medcom_capture/internal/config"
	"medcom_capture/internal/domain"
	apperrors "medcom_capture/pkg/errors"
	"medcom_capture/pkg/logger"

	"github.com/google/uuid"
	"github.com/livekit/protocol/auth"
)

const joinTokenTTL = time.Hour

type ConferenceService interface {
	Resolve(payload string) (*domain.Conference, error)
	JoinToken(ctx context.Context, conf domain.Conference, displayName string) (*domain.JoinToken, error)
}

type conferenceService struct {
	cfg config.LiveKitConfig
	log logger.Logger
}

func NewConferenceService(cfg config.LiveKitConfig, log logger.Logger) ConferenceService {
	return &conferenceService{
		cfg: cfg,
		log: log,
	}
}

// Resolve превращает содержимое QR в адрес конференции.
func (s *conferenceService) Resolve(payload string) (*domain.Conference, error) {
	conf, err := ParseConferenceURL(payload, s.cfg.DefaultServer)
	if err != nil {
		s.log.Warn("Scanned payload is not a meeting link", "payload", payload, "error", err)
		return nil, err
	}
	return conf, nil
}

func (s *conferenceService) JoinToken(ctx context.Context, conf domain.Conference, displayName string) (*domain.JoinToken, error) {
	if conf.Room == "" {
		return nil, apperrors.ErrInvalidMeeting
	}

	identity := uuid.New().String()
	if displayName == "" {
		displayName = "Guest"
	}

	at := auth.NewAccessToken(s.cfg.APIKey, s.cfg.APISecret)
	canPublish := true
	canSubscribe := true
	grant := &auth.VideoGrant{
		RoomJoin:     true,
		Room:         conf.Room,
		CanPublish:   &canPublish,
		CanSubscribe: &canSubscribe,
	}

	at.AddGrant(grant).
		SetIdentity(identity).
		SetName(displayName).
		SetValidFor(joinTokenTTL)

	token, err := at.ToJWT()
	if err != nil {
		s.log.Error("Failed to generate LiveKit token", "error", err)
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	s.log.Info("Join token issued", "room", conf.Room, "server", conf.ServerURL, "identity", identity)

	return &domain.JoinToken{
		Conference: conf,
		Identity:   identity,
		Token:      token,
		URL:        websocketURL(s.cfg.URL),
	}, nil
}

// ParseConferenceURL разбирает ссылку на встречу:
//
//	https://meet.example.org/team/daily -> {https://meet.example.org, daily}
//	meet.example.org/daily              -> {https://meet.example.org, daily}
//	daily                               -> {defaultServer, daily}
func ParseConferenceURL(raw, defaultServer string) (*domain.Conference, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, apperrors.ErrInvalidMeeting
	}

	if !strings.Contains(raw, "://") {
		if !strings.Contains(raw, "/") {
			if strings.ContainsAny(raw, " \t\r\n?#") {
				return nil, apperrors.ErrInvalidMeeting
			}
			return &domain.Conference{
				ServerURL: strings.TrimRight(defaultServer, "/"),
				Room:      raw,
			}, nil
		}
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidMeeting, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", apperrors.ErrInvalidMeeting, u.Scheme)
	}
	if u.Host == "" {
		return nil, apperrors.ErrInvalidMeeting
	}

	var room string
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			room = segments[i]
			break
		}
	}
	if room == "" {
		return nil, fmt.Errorf("%w: no room in %q", apperrors.ErrInvalidMeeting, raw)
	}

	return &domain.Conference{
		ServerURL: u.Scheme + "://" + u.Host,
		Room:      room,
	}, nil
}

func websocketURL(raw string) string {
	switch {
	case raw == "":
		return "ws://localhost:7880"
	case strings.HasPrefix(raw, "https://"):
		return "wss://" + strings.TrimPrefix(raw, "https://")
	case strings.HasPrefix(raw, "http://"):
		return "ws://" + strings.TrimPrefix(raw, "http://")
	case strings.HasPrefix(raw, "ws://"), strings.HasPrefix(raw, "wss://"):
		return raw
	default:
		return "ws://" + raw
	}
}
