package mesh

import (
	"fmt"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/transport/v3"
	"github.com/pion/webrtc/v4"
)

// Settings configures the pion API shared by every link's connection.
type Settings struct {
	// ICEServers is called once per connection so no two links share
	// server slices.
	ICEServers func() []webrtc.ICEServer
	Policy     webrtc.ICETransportPolicy

	// RegisterCodecs fills the media engine. Nil registers Opus only.
	RegisterCodecs func(m *webrtc.MediaEngine) error

	LoggerFactory logging.LoggerFactory

	// Net replaces the host network, e.g. with a vnet for tests.
	Net transport.Net
}

// NewAPI builds a pion API with default interceptors on top of the
// configured codecs.
func NewAPI(s Settings) (*webrtc.API, error) {
	m := &webrtc.MediaEngine{}
	register := s.RegisterCodecs
	if register == nil {
		register = RegisterOpus
	}
	if err := register(m); err != nil {
		return nil, fmt.Errorf("register codecs: %w", err)
	}

	ir := &interceptor.Registry{}
	if err := webrtc.RegisterDefaultInterceptors(m, ir); err != nil {
		return nil, fmt.Errorf("register interceptors: %w", err)
	}

	se := webrtc.SettingEngine{}
	if s.LoggerFactory != nil {
		se.LoggerFactory = s.LoggerFactory
	}
	if s.Net != nil {
		se.SetNet(s.Net)
	}

	return webrtc.NewAPI(
		webrtc.WithMediaEngine(m),
		webrtc.WithInterceptorRegistry(ir),
		webrtc.WithSettingEngine(se),
	), nil
}

// NewPeerFactory returns a factory creating real pion connections.
func NewPeerFactory(s Settings) (PeerFactory, error) {
	api, err := NewAPI(s)
	if err != nil {
		return nil, err
	}
	return func(participant string) (PeerConnection, error) {
		cfg := webrtc.Configuration{ICETransportPolicy: s.Policy}
		if s.ICEServers != nil {
			cfg.ICEServers = s.ICEServers()
		}
		pc, err := api.NewPeerConnection(cfg)
		if err != nil {
			return nil, err
		}
		return pc, nil
	}, nil
}

// RegisterOpus registers the Opus audio codec.
func RegisterOpus(m *webrtc.MediaEngine) error {
	return m.RegisterCodec(webrtc.RTPCodecParameters{
		RTPCodecCapability: webrtc.RTPCodecCapability{
			MimeType:    webrtc.MimeTypeOpus,
			ClockRate:   48000,
			Channels:    2,
			SDPFmtpLine: "minptime=10;useinbandfec=1",
		},
		PayloadType: 111,
	}, webrtc.RTPCodecTypeAudio)
}
