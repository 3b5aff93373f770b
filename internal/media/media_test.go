package media

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/pion/webrtc/v4/pkg/media/oggreader"
	"github.com/pion/webrtc/v4/pkg/media/oggwriter"
)

// fakeTrack replays packets then reports io.EOF.
type fakeTrack struct {
	mime    string
	packets []*rtp.Packet
}

func (f *fakeTrack) ReadRTP() (*rtp.Packet, interceptor.Attributes, error) {
	if len(f.packets) == 0 {
		return nil, nil, io.EOF
	}
	p := f.packets[0]
	f.packets = f.packets[1:]
	return p, nil, nil
}

func (f *fakeTrack) Codec() webrtc.RTPCodecParameters {
	return webrtc.RTPCodecParameters{RTPCodecCapability: webrtc.RTPCodecCapability{MimeType: f.mime}}
}

func opusPackets(n int) []*rtp.Packet {
	out := make([]*rtp.Packet, n)
	for i := range out {
		out[i] = &rtp.Packet{
			Header: rtp.Header{
				Version:        2,
				PayloadType:    111,
				SequenceNumber: uint16(i),
				Timestamp:      uint32(i * 960),
				SSRC:           1,
			},
			Payload: []byte{0xfc, 0xff, 0xfe},
		}
	}
	return out
}

func writeOgg(t *testing.T, path string, packets []*rtp.Packet) {
	t.Helper()
	w, err := oggwriter.New(path, 48000, 2)
	if err != nil {
		t.Fatalf("oggwriter: %v", err)
	}
	for _, p := range packets {
		if err := w.WriteRTP(p); err != nil {
			t.Fatalf("WriteRTP: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close ogg: %v", err)
	}
}

func TestRecorderWritesOpusPerParticipant(t *testing.T) {
	dir := t.TempDir()
	r := NewRecorder(dir)

	r.Consume("p1", &fakeTrack{mime: webrtc.MimeTypeOpus, packets: opusPackets(5)})
	r.Consume("p1", &fakeTrack{mime: webrtc.MimeTypeOpus, packets: opusPackets(2)})
	r.Consume("../p2", &fakeTrack{mime: "audio/PCMU", packets: opusPackets(2)})
	r.Wait()

	files := r.Files()
	want := []string{filepath.Join(dir, "p1.ogg"), filepath.Join(dir, "p1-2.ogg")}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i := range want {
		if files[i] != want[i] {
			t.Errorf("file %d = %s, want %s", i, files[i], want[i])
		}
	}

	f, err := os.Open(files[0])
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	_, header, err := oggreader.NewWith(f)
	if err != nil {
		t.Fatalf("recording unreadable: %v", err)
	}
	if header.SampleRate != 48000 || header.Channels != 2 {
		t.Fatalf("header = %+v", header)
	}
}

func TestRecorderWithoutDirOnlyDrains(t *testing.T) {
	track := &fakeTrack{mime: webrtc.MimeTypeOpus, packets: opusPackets(3)}
	r := NewRecorder("")
	r.Consume("p1", track)
	r.Wait()

	if len(track.packets) != 0 {
		t.Fatal("track not drained")
	}
	if len(r.Files()) != 0 {
		t.Fatal("recorder without dir created files")
	}
}

func TestFileSourceCapture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "in.ogg")
	writeOgg(t, path, opusPackets(10))

	src := NewFileSource(path, false)
	tracks, err := src.Capture(context.Background(), DefaultConstraints(44100))
	if err != nil {
		t.Fatalf("Capture: %v", err)
	}
	if len(tracks) != 1 || tracks[0].Kind() != webrtc.RTPCodecTypeAudio {
		t.Fatalf("tracks = %v, want one audio track", tracks)
	}
	if err := src.Close(); err != nil {
		t.Fatal(err)
	}
	if err := src.Close(); err != nil {
		t.Fatal("second Close:", err)
	}
}

func TestFileSourceMissingFile(t *testing.T) {
	src := NewFileSource(filepath.Join(t.TempDir(), "missing.ogg"), false)
	if _, err := src.Capture(context.Background(), DefaultConstraints(44100)); !errors.Is(err, ErrMediaUnavailable) {
		t.Fatalf("err = %v, want ErrMediaUnavailable", err)
	}
}

func TestFileSourceRejectsNonOgg(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ogg")
	if err := os.WriteFile(path, []byte("not an ogg stream"), 0o644); err != nil {
		t.Fatal(err)
	}
	src := NewFileSource(path, false)
	if _, err := src.Capture(context.Background(), DefaultConstraints(44100)); !errors.Is(err, ErrMediaUnavailable) {
		t.Fatalf("err = %v, want ErrMediaUnavailable", err)
	}
}

func TestDefaultConstraints(t *testing.T) {
	c := DefaultConstraints(44100)
	if !c.EchoCancellation || !c.NoiseSuppression || c.SampleRate != 44100 || c.ChannelCount != 1 {
		t.Fatalf("constraints = %+v", c)
	}
}
