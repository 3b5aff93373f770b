//go:build mediadevices

package media

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pion/mediadevices"
	"github.com/pion/mediadevices/pkg/codec/opus"
	_ "github.com/pion/mediadevices/pkg/driver/microphone"
	"github.com/pion/mediadevices/pkg/prop"
	"github.com/pion/webrtc/v4"
)

// Microphone captures the default input device through pion/mediadevices
// and encodes it with Opus.
type Microphone struct {
	selector *mediadevices.CodecSelector

	mu     sync.Mutex
	tracks []mediadevices.Track
}

func NewMicrophone() (*Microphone, error) {
	params, err := opus.NewParams()
	if err != nil {
		return nil, fmt.Errorf("%w: opus encoder: %v", ErrMediaUnavailable, err)
	}
	return &Microphone{
		selector: mediadevices.NewCodecSelector(mediadevices.WithAudioEncoders(&params)),
	}, nil
}

func (m *Microphone) RegisterCodecs(me *webrtc.MediaEngine) error {
	m.selector.Populate(me)
	return nil
}

func (m *Microphone) Capture(_ context.Context, c Constraints) ([]webrtc.TrackLocal, error) {
	for _, d := range mediadevices.EnumerateDevices() {
		if d.Kind == mediadevices.AudioInput {
			slog.Debug("audio input", "label", d.Label)
		}
	}
	if c.EchoCancellation || c.NoiseSuppression {
		slog.Debug("capture driver does not process audio; echo cancellation and noise suppression are left to the device")
	}

	stream, err := mediadevices.GetUserMedia(mediadevices.MediaStreamConstraints{
		Audio: func(mc *mediadevices.MediaTrackConstraints) {
			if c.SampleRate > 0 {
				mc.SampleRate = prop.Int(c.SampleRate)
			}
			if c.ChannelCount > 0 {
				mc.ChannelCount = prop.Int(c.ChannelCount)
			}
		},
		Codec: m.selector,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMediaUnavailable, err)
	}

	var out []webrtc.TrackLocal
	m.mu.Lock()
	for _, t := range stream.GetAudioTracks() {
		t.OnEnded(func(err error) {
			if err != nil {
				slog.Warn("microphone track ended", "err", err)
			}
		})
		m.tracks = append(m.tracks, t)
		out = append(out, t)
	}
	m.mu.Unlock()

	if len(out) == 0 {
		return nil, fmt.Errorf("%w: no audio input", ErrMediaUnavailable)
	}
	return out, nil
}

func (m *Microphone) Close() error {
	m.mu.Lock()
	tracks := m.tracks
	m.tracks = nil
	m.mu.Unlock()

	for _, t := range tracks {
		t.Close()
	}
	return nil
}
