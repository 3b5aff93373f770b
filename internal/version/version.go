package version

// Version is the current version of the voicechat CLI.
// This value can be overridden at build time using:
//
//	go build -ldflags="-X 'github.com/junnushon/voice-chat-5/internal/version.Version=v1.0.0'"
var Version = "dev"
