package recorder

import (
	"errors"
	"io"
	"sync"
	"time"

	"medcom_capture/internal/media"
	"medcom_capture/internal/schedule"
	"medcom_capture/pkg/logger"

	"github.com/at-wat/ebml-go/webm"
	"github.com/pion/mediadevices"
)

const finalizeGrace = 2 * time.Second

var (
	ErrNoStream           = errors.New("resource has no stream")
	ErrNoSupportedProfile = &media.PlatformError{Name: "NotSupportedError", Message: "no supported recording profile"}
)

// encodedReader: часть mediadevices.EncodedReadCloser, которая нужна рекордеру.
type encodedReader interface {
	Read() (mediadevices.EncodedBuffer, func(), error)
	Close() error
}

// WebMCapability пишет закодированные треки потока в контейнер WebM.
type WebMCapability struct {
	log logger.Logger
}

func NewWebMCapability(log logger.Logger) *WebMCapability {
	return &WebMCapability{log: log}
}

func (c *WebMCapability) Record(res *media.Resource, opts Options, events Events) (Session, error) {
	stream := res.Stream()
	if stream == nil {
		return nil, ErrNoStream
	}

	videoTracks := stream.GetVideoTracks()
	if len(videoTracks) == 0 {
		return nil, &media.PlatformError{Name: "NotFoundError", Message: "no video tracks in stream"}
	}

	profiles := opts.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}

	var (
		videoReader encodedReader
		profile     Profile
	)
	for _, p := range profiles {
		r, err := videoTracks[0].NewEncodedReader(p.VideoCodec)
		if err != nil {
			c.log.Warn("Recording profile not supported, trying fallback", "profile", p.Name, "error", err)
			continue
		}
		videoReader = r
		profile = p
		break
	}
	if videoReader == nil {
		return nil, ErrNoSupportedProfile
	}

	var audioReader encodedReader
	if audioTracks := stream.GetAudioTracks(); len(audioTracks) > 0 {
		r, err := audioTracks[0].NewEncodedReader(profile.AudioCodec)
		if err != nil {
			c.log.Warn("Failed to open audio encoder, recording without audio", "codec", profile.AudioCodec, "error", err)
		} else {
			audioReader = r
		}
	}

	s, err := newWebMSession(profile, opts, videoReader, audioReader, events, c.log)
	if err != nil {
		videoReader.Close()
		if audioReader != nil {
			audioReader.Close()
		}
		return nil, err
	}

	c.log.Info("Recording started", "profile", profile.Name, "audio", audioReader != nil, "timeslice", opts.Timeslice)
	return s, nil
}

type pump struct {
	codec  string
	reader encodedReader
	writer webm.BlockWriteCloser
	video  bool
}

type webmSession struct {
	profile Profile
	events  Events
	log     logger.Logger
	buf     *chunkBuffer
	pumps   []*pump
	flusher *schedule.Task
	started time.Time

	wg       sync.WaitGroup
	stopping chan struct{}
	stopOnce sync.Once
	readOnce sync.Once

	errMu sync.Mutex
	err   error
}

func newWebMSession(profile Profile, opts Options, video, audio encodedReader, events Events, log logger.Logger) (*webmSession, error) {
	entries := []webm.TrackEntry{
		{
			Name:        "Video",
			TrackNumber: 1,
			TrackUID:    1,
			CodecID:     profile.VideoCodecID,
			TrackType:   1,
			Video: &webm.Video{
				PixelWidth:  uint64(opts.Width),
				PixelHeight: uint64(opts.Height),
			},
		},
	}
	if audio != nil {
		sampleRate := opts.SampleRate
		if sampleRate <= 0 {
			sampleRate = 48000
		}
		channels := opts.Channels
		if channels <= 0 {
			channels = 2
		}
		entries = append(entries, webm.TrackEntry{
			Name:        "Audio",
			TrackNumber: 2,
			TrackUID:    2,
			CodecID:     profile.AudioCodecID,
			TrackType:   2,
			Audio: &webm.Audio{
				SamplingFrequency: float64(sampleRate),
				Channels:          uint64(channels),
			},
		})
	}

	buf := &chunkBuffer{}
	writers, err := webm.NewSimpleBlockWriter(buf, entries)
	if err != nil {
		return nil, err
	}

	s := &webmSession{
		profile:  profile,
		events:   events,
		log:      log,
		buf:      buf,
		started:  time.Now(),
		stopping: make(chan struct{}),
	}
	s.pumps = append(s.pumps, &pump{codec: profile.VideoCodec, reader: video, writer: writers[0], video: true})
	if audio != nil {
		s.pumps = append(s.pumps, &pump{codec: profile.AudioCodec, reader: audio, writer: writers[1]})
	}

	for _, p := range s.pumps {
		s.wg.Add(1)
		go s.run(p)
	}

	timeslice := opts.Timeslice
	if timeslice <= 0 {
		timeslice = time.Second
	}
	s.flusher = schedule.Every(timeslice, s.flush)
	return s, nil
}

func (s *webmSession) Profile() Profile {
	return s.profile
}

func (s *webmSession) run(p *pump) {
	defer s.wg.Done()

	// Контейнер должен начинаться с ключевого кадра
	waitKey := p.video
	for {
		select {
		case <-s.stopping:
			return
		default:
		}

		buf, release, err := p.reader.Read()
		if err != nil {
			select {
			case <-s.stopping:
			default:
				if errors.Is(err, io.EOF) {
					s.log.Info("Captured track ended", "codec", p.codec)
				} else {
					s.setErr(err)
					s.log.Warn("Encoded track read failed", "codec", p.codec, "error", err)
				}
				// Без видеотрека запись завершается
				if p.video {
					s.Stop()
				}
			}
			return
		}

		key := isKeyframe(p.codec, buf.Data)
		if waitKey && !key {
			release()
			continue
		}
		waitKey = false

		ts := time.Since(s.started).Milliseconds()
		if _, err := p.writer.Write(key, ts, buf.Data); err != nil {
			s.setErr(err)
			s.log.Error("Failed to write block", "codec", p.codec, "error", err)
			release()
			return
		}
		release()
	}
}

func (s *webmSession) flush() {
	if chunk := s.buf.Drain(); len(chunk) > 0 && s.events.OnData != nil {
		s.events.OnData(chunk)
	}
}

func (s *webmSession) setErr(err error) {
	s.errMu.Lock()
	if s.err == nil {
		s.err = err
	}
	s.errMu.Unlock()
}

func (s *webmSession) closeReaders() {
	s.readOnce.Do(func() {
		for _, p := range s.pumps {
			p.reader.Close()
		}
	})
}

func (s *webmSession) Stop() {
	s.stopOnce.Do(func() {
		close(s.stopping)
		go s.finalize()
	})
}

func (s *webmSession) finalize() {
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(finalizeGrace):
		// чтение зависло, закрываем кодировщики принудительно
		s.log.Warn("Encoded readers did not stop in time, closing")
		s.closeReaders()
		<-done
	}
	s.closeReaders()
	s.flusher.Stop()
	<-s.flusher.Done()

	for _, p := range s.pumps {
		if err := p.writer.Close(); err != nil {
			s.setErr(err)
		}
	}
	s.flush()

	s.errMu.Lock()
	err := s.err
	s.errMu.Unlock()

	if s.events.OnFinalize != nil {
		s.events.OnFinalize(err)
	}
}
