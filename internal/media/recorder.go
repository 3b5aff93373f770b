package media

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// RemoteTrack is the read side of a received track.
type RemoteTrack interface {
	ReadRTP() (*rtp.Packet, interceptor.Attributes, error)
	Codec() webrtc.RTPCodecParameters
}

// Recorder drains remote audio tracks. With a directory set, Opus tracks
// are written to <dir>/<participant>.ogg.
type Recorder struct {
	dir string

	mu    sync.Mutex
	seen  map[string]int
	files []string
	wg    sync.WaitGroup
}

func NewRecorder(dir string) *Recorder {
	return &Recorder{dir: dir, seen: make(map[string]int)}
}

// Consume starts draining track in the background. Reading stops when the
// track ends.
func (r *Recorder) Consume(participant string, track RemoteTrack) {
	var w *oggwriter.OggWriter
	if r.dir != "" && strings.EqualFold(track.Codec().MimeType, webrtc.MimeTypeOpus) {
		path := r.nextPath(participant)
		var err error
		w, err = oggwriter.New(path, opusClockRate, 2)
		if err != nil {
			slog.Warn("cannot record participant", "participant", participant, "err", err)
			w = nil
		} else {
			slog.Info("recording participant", "participant", participant, "path", path)
		}
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.drain(participant, track, w)
	}()
}

func (r *Recorder) drain(participant string, track RemoteTrack, w *oggwriter.OggWriter) {
	defer func() {
		if w != nil {
			if err := w.Close(); err != nil {
				slog.Debug("closing recording", "participant", participant, "err", err)
			}
		}
	}()

	packets := 0
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				slog.Debug("remote track read", "participant", participant, "err", err)
			}
			slog.Debug("remote track ended", "participant", participant, "packets", packets)
			return
		}
		packets++
		if w == nil {
			continue
		}
		if err := w.WriteRTP(pkt); err != nil {
			slog.Warn("recording write failed", "participant", participant, "err", err)
			w.Close()
			w = nil
		}
	}
}

// Wait blocks until every consumed track has ended.
func (r *Recorder) Wait() {
	r.wg.Wait()
}

// Files returns the recordings started so far.
func (r *Recorder) Files() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.files...)
}

func (r *Recorder) nextPath(participant string) string {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := safeName(participant)
	r.seen[name]++
	if n := r.seen[name]; n > 1 {
		name = fmt.Sprintf("%s-%d", name, n)
	}
	path := filepath.Join(r.dir, name+".ogg")
	r.files = append(r.files, path)
	return path
}

func safeName(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		}
		return '_'
	}, s)
	if s == "" {
		return "participant"
	}
	return s
}

// EnsureDir creates the recording directory if it does not exist.
func EnsureDir(dir string) error {
	if dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
