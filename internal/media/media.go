// Package media captures local audio tracks and consumes remote ones.
package media

import (
	"context"
	"errors"

	"github.com/pion/webrtc/v4"

	"github.com/junnushon/voice-chat-5/internal/mesh"
)

// ErrMediaUnavailable marks a capture failure. Callers continue without
// outbound audio.
var ErrMediaUnavailable = errors.New("media unavailable")

// Constraints describe the requested local audio.
type Constraints struct {
	EchoCancellation bool
	NoiseSuppression bool
	SampleRate       int
	ChannelCount     int
}

// DefaultConstraints requests mono audio with echo cancellation and noise
// suppression at the given sample rate.
func DefaultConstraints(sampleRate int) Constraints {
	return Constraints{
		EchoCancellation: true,
		NoiseSuppression: true,
		SampleRate:       sampleRate,
		ChannelCount:     1,
	}
}

// Source yields zero or more local audio tracks.
type Source interface {
	// RegisterCodecs prepares the media engine for the tracks Capture
	// will produce.
	RegisterCodecs(m *webrtc.MediaEngine) error
	Capture(ctx context.Context, c Constraints) ([]webrtc.TrackLocal, error)
	Close() error
}

// NoSource captures nothing; the session only receives audio.
type NoSource struct{}

func (NoSource) RegisterCodecs(m *webrtc.MediaEngine) error { return mesh.RegisterOpus(m) }

func (NoSource) Capture(context.Context, Constraints) ([]webrtc.TrackLocal, error) {
	return nil, nil
}

func (NoSource) Close() error { return nil }
