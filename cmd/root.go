package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/junnushon/voice-chat-5/internal/config"
	"github.com/junnushon/voice-chat-5/internal/ui"
	"github.com/junnushon/voice-chat-5/internal/version"
)

// Flags shared by every command that talks to the relay.
var (
	flagConfigFile   string
	flagRelayURL     string
	flagDirectoryURL string
	flagWebOrigin    string
	flagSTUN         string
	flagTURN         string
	flagTURNUser     string
	flagTURNPass     string
	flagForceRelay   bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "voicechat",
	Short: "Mesh audio rooms over WebRTC, signaled through a relay",
	Long: `voicechat joins an audio room and connects directly to every other
participant using WebRTC. The relay only carries connection negotiation and
chat; audio flows peer to peer.`,
	Version: version.Version,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

// loadConfig resolves configuration from the persistent flags plus the
// command's own options.
func loadConfig(opts config.Options) (*config.Config, error) {
	opts.ConfigFile = flagConfigFile
	opts.RelayURL = flagRelayURL
	opts.DirectoryURL = flagDirectoryURL
	opts.WebOrigin = flagWebOrigin
	opts.STUNServer = flagSTUN
	opts.TURNServer = flagTURN
	opts.TURNUser = flagTURNUser
	opts.TURNPass = flagTURNPass
	opts.ForceRelay = flagForceRelay
	return config.Load(opts)
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagConfigFile, "config", "c", "", "Config file (default "+config.DefaultConfigPath()+")")
	pf.StringVar(&flagRelayURL, "relay-url", "", "Signaling relay websocket URL")
	pf.StringVar(&flagDirectoryURL, "directory-url", "", "Room directory URL")
	pf.StringVar(&flagWebOrigin, "web-origin", "", "Base URL for shareable room links")
	pf.StringVarP(&flagSTUN, "stun", "s", "", "Custom STUN server")
	pf.StringVarP(&flagTURN, "turn", "t", "", "Custom TURN server")
	pf.StringVar(&flagTURNUser, "turn-user", "", "TURN username")
	pf.StringVar(&flagTURNPass, "turn-pass", "", "TURN password")
	pf.BoolVarP(&flagForceRelay, "relay", "r", false, "Force relay (TURN) mode")
}
