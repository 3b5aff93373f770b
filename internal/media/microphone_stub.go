//go:build !mediadevices

package media

import (
	"context"
	"fmt"

	"github.com/pion/webrtc/v4"
)

// Microphone is unavailable in builds without the mediadevices tag, which
// pulls in cgo audio drivers and libopus.
type Microphone struct{}

func NewMicrophone() (*Microphone, error) {
	return nil, fmt.Errorf("%w: built without microphone support (rebuild with -tags mediadevices)", ErrMediaUnavailable)
}

func (*Microphone) RegisterCodecs(m *webrtc.MediaEngine) error { return NoSource{}.RegisterCodecs(m) }

func (*Microphone) Capture(context.Context, Constraints) ([]webrtc.TrackLocal, error) {
	return nil, ErrMediaUnavailable
}

func (*Microphone) Close() error { return nil }
