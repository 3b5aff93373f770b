package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/pion/webrtc/v4"
)

// Default configuration values (local development relay)
const (
	DefaultRelayURL   = "ws://localhost:8000/ws"
	DefaultSTUN       = "stun:stun.l.google.com:19302"
	DefaultSampleRate = 44100
)

// Config holds application configuration
type Config struct {
	// RelayURL is the signaling websocket endpoint, without room parameters
	RelayURL string

	// DirectoryURL serves the room list used for titles
	DirectoryURL string

	// WebOrigin is the base of shareable room links
	WebOrigin string

	// ICE servers for WebRTC
	STUNServer string
	TURNServer string
	TURNUser   string
	TURNPass   string
	ForceRelay bool

	// iceOverride is set from ICE_SERVERS_JSON and replaces STUN/TURN entirely
	iceOverride []webrtc.ICEServer

	// Local participant
	Nickname string

	// Media
	AudioFile  string
	Microphone bool
	SampleRate int
	RecordDir  string
}

// Options for loading config with CLI flag overrides
type Options struct {
	ConfigFile   string
	RelayURL     string
	DirectoryURL string
	WebOrigin    string
	STUNServer   string
	TURNServer   string
	TURNUser     string
	TURNPass     string
	ForceRelay   bool
	Nickname     string
	AudioFile    string
	Microphone   bool
	RecordDir    string
}

// Load reads configuration with the following priority:
// 1. CLI flags (passed via Options) - highest priority
// 2. Environment variables
// 3. Config file (YAML)
// 4. Defaults - lowest priority
func Load(opts Options) (*Config, error) {
	fc, err := loadFile(opts.ConfigFile)
	if err != nil {
		return nil, err
	}

	relayURL := pick(opts.RelayURL, "RELAY_URL", fc.RelayURL, DefaultRelayURL)
	relay, err := url.Parse(relayURL)
	if err != nil {
		return nil, fmt.Errorf("invalid relay URL: %w", err)
	}
	if relay.Scheme != "ws" && relay.Scheme != "wss" {
		return nil, fmt.Errorf("invalid relay URL %q: scheme must be ws or wss", relayURL)
	}
	if relay.Host == "" {
		return nil, fmt.Errorf("invalid relay URL %q: missing host", relayURL)
	}

	origin := pick(opts.WebOrigin, "WEB_ORIGIN", fc.WebOrigin, httpOrigin(relay))
	directory := pick(opts.DirectoryURL, "DIRECTORY_URL", fc.DirectoryURL, strings.TrimSuffix(origin, "/")+"/rooms")

	iceOverride, err := parseICEServersJSON(os.Getenv(envICEServersJSON))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		RelayURL:     relayURL,
		DirectoryURL: directory,
		WebOrigin:    strings.TrimSuffix(origin, "/"),
		STUNServer:   pick(opts.STUNServer, "STUN_SERVER", fc.STUNServer, DefaultSTUN),
		TURNServer:   pick(opts.TURNServer, "TURN_SERVER", fc.TURN.Server),
		TURNUser:     pick(opts.TURNUser, "TURN_USERNAME", fc.TURN.Username),
		TURNPass:     pick(opts.TURNPass, "TURN_PASSWORD", fc.TURN.Password),
		ForceRelay:   opts.ForceRelay || envBool("FORCE_RELAY") || fc.ForceRelay,
		iceOverride:  iceOverride,
		Nickname:     strings.TrimSpace(pick(opts.Nickname, "NICKNAME", fc.Nickname)),
		AudioFile:    pick(opts.AudioFile, "AUDIO_FILE", fc.AudioFile),
		Microphone:   opts.Microphone || envBool("MICROPHONE") || fc.Microphone,
		SampleRate:   DefaultSampleRate,
		RecordDir:    pick(opts.RecordDir, "RECORD_DIR", fc.RecordDir),
	}

	if cfg.ForceRelay && len(cfg.GetTURNServers()) == 0 && !hasTURN(cfg.iceOverride) {
		return nil, fmt.Errorf("cannot force relay mode without TURN server configured")
	}

	return cfg, nil
}

// RoomRelayURL returns the relay endpoint for a room, with the optional
// password as a query parameter.
func (c *Config) RoomRelayURL(roomID, password string) string {
	u, err := url.Parse(c.RelayURL)
	if err != nil {
		return c.RelayURL
	}
	q := u.Query()
	q.Set("room", roomID)
	if password != "" {
		q.Set("password", password)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// RoomLink returns the shareable web link for a room ID
func (c *Config) RoomLink(roomID string) string {
	return fmt.Sprintf("%s/room.html?room=%s", c.WebOrigin, url.QueryEscape(roomID))
}

// GetSTUNServers returns STUN server URLs as strings
func (c *Config) GetSTUNServers() []string {
	if c.STUNServer == "" {
		return nil
	}
	return []string{c.STUNServer}
}

// GetTURNServers returns TURN server URLs if configured
func (c *Config) GetTURNServers() []string {
	if c.TURNServer == "" {
		return nil
	}
	host := strings.TrimPrefix(strings.TrimPrefix(c.TURNServer, "turn:"), "turns:")
	return []string{
		fmt.Sprintf("turn:%s:3478?transport=udp", host),
		fmt.Sprintf("turn:%s:3478?transport=tcp", host),
		fmt.Sprintf("turns:%s:5349?transport=tcp", host),
	}
}

// ICEServers returns a fresh ICE server list. Each call allocates new slices
// so peer connections never share configuration.
func (c *Config) ICEServers() []webrtc.ICEServer {
	if len(c.iceOverride) > 0 {
		out := make([]webrtc.ICEServer, len(c.iceOverride))
		for i, s := range c.iceOverride {
			s.URLs = append([]string(nil), s.URLs...)
			out[i] = s
		}
		return out
	}

	var servers []webrtc.ICEServer
	if stun := c.GetSTUNServers(); stun != nil {
		servers = append(servers, webrtc.ICEServer{URLs: stun})
	}
	if turn := c.GetTURNServers(); turn != nil {
		servers = append(servers, webrtc.ICEServer{
			URLs:       turn,
			Username:   c.TURNUser,
			Credential: c.TURNPass,
		})
	}
	return servers
}

// TransportPolicy returns relay-only when forced, or when a TURN server is
// available and the host looks like it sits behind a VPN or CGNAT.
func (c *Config) TransportPolicy() webrtc.ICETransportPolicy {
	if !hasTURN(c.ICEServers()) {
		return webrtc.ICETransportPolicyAll
	}
	if c.ForceRelay || restrictedNetwork(systemInterfaces()) {
		return webrtc.ICETransportPolicyRelay
	}
	return webrtc.ICETransportPolicyAll
}

// pick returns the flag value, then the environment variable, then the
// first non-empty fallback.
func pick(flag, env string, fallbacks ...string) string {
	if flag != "" {
		return flag
	}
	if v := os.Getenv(env); v != "" {
		return v
	}
	for _, v := range fallbacks {
		if v != "" {
			return v
		}
	}
	return ""
}

func envBool(env string) bool {
	switch strings.ToLower(os.Getenv(env)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func httpOrigin(relay *url.URL) string {
	scheme := "http"
	if relay.Scheme == "wss" {
		scheme = "https"
	}
	return scheme + "://" + relay.Host
}

func hasTURN(servers []webrtc.ICEServer) bool {
	for _, s := range servers {
		for _, u := range s.URLs {
			if strings.HasPrefix(u, "turn:") || strings.HasPrefix(u, "turns:") {
				return true
			}
		}
	}
	return false
}
