package media

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	pionmedia "github.com/pion/webrtc/v4/pkg/media"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"

	"github.com/junnushon/voice-chat-5/internal/mesh"
)

const (
	opusClockRate   = 48000
	oggPageDuration = 20 * time.Millisecond
)

// FileSource streams an Ogg/Opus file as the local microphone.
type FileSource struct {
	Path string
	Loop bool

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewFileSource(path string, loop bool) *FileSource {
	return &FileSource{Path: path, Loop: loop}
}

func (s *FileSource) RegisterCodecs(m *webrtc.MediaEngine) error {
	return mesh.RegisterOpus(m)
}

// Capture opens the file and starts pacing its pages into a single track.
// Playback stops when ctx is cancelled or Close is called.
func (s *FileSource) Capture(ctx context.Context, c Constraints) ([]webrtc.TrackLocal, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}
	ogg, header, err := oggreader.NewWith(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %s: %v", ErrMediaUnavailable, s.Path, err)
	}
	slog.Debug("audio file opened", "path", s.Path, "channels", header.Channels, "rate", header.SampleRate,
		"requested_rate", c.SampleRate)

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus, ClockRate: opusClockRate, Channels: 2},
		"audio", "voicechat")
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.mu.Lock()
	s.cancel = cancel
	s.done = done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer f.Close()
		s.play(ctx, f, ogg, track)
	}()

	return []webrtc.TrackLocal{track}, nil
}

func (s *FileSource) play(ctx context.Context, f *os.File, ogg *oggreader.OggReader, track *webrtc.TrackLocalStaticSample) {
	var lastGranule uint64
	ticker := time.NewTicker(oggPageDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		page, header, err := ogg.ParseNextPage()
		if errors.Is(err, io.EOF) {
			if !s.Loop {
				slog.Debug("audio file finished", "path", s.Path)
				return
			}
			if _, err := f.Seek(0, io.SeekStart); err != nil {
				slog.Warn("rewinding audio file", "err", err)
				return
			}
			if ogg, _, err = oggreader.NewWith(f); err != nil {
				slog.Warn("reopening audio file", "err", err)
				return
			}
			lastGranule = 0
			continue
		}
		if err != nil {
			slog.Warn("reading audio file", "path", s.Path, "err", err)
			return
		}

		// Header pages carry no granule advance.
		if header.GranulePosition <= lastGranule {
			continue
		}
		samples := header.GranulePosition - lastGranule
		lastGranule = header.GranulePosition
		duration := time.Duration(samples) * time.Second / opusClockRate

		if err := track.WriteSample(pionmedia.Sample{Data: page, Duration: duration}); err != nil {
			slog.Debug("writing audio sample", "err", err)
		}
	}
}

// Close stops playback and waits for it to finish.
func (s *FileSource) Close() error {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	<-done
	return nil
}
