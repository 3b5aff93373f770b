package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/junnushon/voice-chat-5/internal/config"
	"github.com/junnushon/voice-chat-5/internal/directory"
	"github.com/junnushon/voice-chat-5/internal/dns"
	"github.com/junnushon/voice-chat-5/internal/logging"
	"github.com/junnushon/voice-chat-5/internal/media"
	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/session"
	"github.com/junnushon/voice-chat-5/internal/signaling"
	"github.com/junnushon/voice-chat-5/internal/ui"
)

var (
	flagNickname   string
	flagPassword   string
	flagAudioFile  string
	flagLoopAudio  bool
	flagMicrophone bool
	flagRecordDir  string
	flagPlain      bool
)

var joinCmd = &cobra.Command{
	Use:     "join <room-id|link>",
	Aliases: []string{"j"},
	Short:   "Join an audio room",
	Long: `Join an audio room and connect directly to every participant.

Examples:
  voicechat join r1
  voicechat join "https://example.org/room.html?room=r1&password=secret"
  voicechat join r1 --audio greeting.ogg --record-dir ./recordings`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, password, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		if flagPassword != "" {
			password = flagPassword
		}
		return joinRoom(cmd.Context(), room, password)
	},
}

func joinRoom(ctx context.Context, room, password string) error {
	cfg, err := loadConfig(config.Options{
		Nickname:   flagNickname,
		AudioFile:  flagAudioFile,
		Microphone: flagMicrophone,
		RecordDir:  flagRecordDir,
	})
	if err != nil {
		return err
	}

	nickname := cfg.Nickname
	if nickname == "" {
		nickname, err = promptNickname(os.Stdin, ui.Out)
		if err != nil {
			return err
		}
	}

	source, err := selectSource(cfg)
	if err != nil {
		return err
	}

	var recorder *media.Recorder
	if cfg.RecordDir != "" {
		if err := media.EnsureDir(cfg.RecordDir); err != nil {
			return err
		}
		recorder = media.NewRecorder(cfg.RecordDir)
	}

	title := roomTitle(ctx, cfg, room)
	resolver := dns.NewResolver()

	fmt.Println()
	stopSpinner := ui.RunConnectionSpinner("Connecting to relay...")
	s, err := session.Join(ctx, session.Options{
		Room:     room,
		Nickname: nickname,
		RelayURL: cfg.RoomRelayURL(room, password),
		Dial:     signaling.Dialer{NetDialContext: resolver.DialContext}.Dial,
		Peer: mesh.Settings{
			ICEServers:    cfg.ICEServers,
			Policy:        cfg.TransportPolicy(),
			LoggerFactory: logging.NewPionFactory(slog.Default()),
		},
		Source:      source,
		Constraints: media.DefaultConstraints(cfg.SampleRate),
		Recorder:    recorder,
	})
	stopSpinner()
	if err != nil {
		return err
	}

	info := ui.RoomInfo{
		Title:    title,
		RoomID:   room,
		Link:     cfg.RoomLink(room),
		Nickname: nickname,
	}

	var viewErr error
	if flagPlain || !isatty.IsTerminal(os.Stdout.Fd()) {
		viewErr = ui.RunPlain(ctx, info, s, os.Stdin, ui.Out)
	} else {
		viewErr = ui.RunRoom(info, s)
	}

	closed := s.Leave()
	sessionErr := s.Wait()
	slog.Debug("left room", "room", room, "closed_links", closed)

	if recorder != nil {
		recorder.Wait()
		for _, f := range recorder.Files() {
			ui.PrintSuccess("Recorded " + f)
		}
	}

	if sessionErr != nil {
		return sessionErr
	}
	if viewErr != nil {
		return viewErr
	}
	ui.PrintInfof("Left %s", title)
	return nil
}

// selectSource picks the local audio source: an ogg file, the microphone,
// or nothing at all.
func selectSource(cfg *config.Config) (media.Source, error) {
	switch {
	case cfg.AudioFile != "":
		if _, err := os.Stat(cfg.AudioFile); err != nil {
			return nil, fmt.Errorf("audio file: %w", err)
		}
		return media.NewFileSource(cfg.AudioFile, flagLoopAudio), nil
	case cfg.Microphone:
		mic, err := media.NewMicrophone()
		if err != nil {
			ui.PrintWarning("Microphone unavailable, joining to listen only")
			slog.Warn("microphone unavailable", "error", err)
			return media.NoSource{}, nil
		}
		return mic, nil
	default:
		return media.NoSource{}, nil
	}
}

func roomTitle(ctx context.Context, cfg *config.Config, room string) string {
	if cfg.DirectoryURL == "" {
		return room
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return directory.New(cfg.DirectoryURL).Title(ctx, room)
}

// promptNickname asks for a nickname on in. An empty answer is an error.
func promptNickname(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, ui.BoldStyle.Render("Nickname: "))
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read nickname: %w", err)
	}
	nickname := strings.TrimSpace(line)
	if nickname == "" {
		return "", errors.New("nickname is required")
	}
	return nickname, nil
}

// parseRoomInput accepts a bare room id or a room link carrying the id and
// an optional password in its query.
func parseRoomInput(input string) (room, password string, err error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return "", "", errors.New("room ID cannot be empty")
	}
	if !strings.Contains(input, "://") && !strings.Contains(input, "?") {
		return input, "", nil
	}

	u, err := url.Parse(input)
	if err != nil {
		return "", "", fmt.Errorf("parse room link: %w", err)
	}
	q := u.Query()
	room = q.Get("room")
	if room == "" {
		return "", "", fmt.Errorf("could not extract room ID from link: %s", input)
	}
	return room, q.Get("password"), nil
}

func init() {
	rootCmd.AddCommand(joinCmd)

	joinCmd.Flags().StringVarP(&flagNickname, "nickname", "n", "", "Nickname shown in chat")
	joinCmd.Flags().StringVarP(&flagPassword, "password", "p", "", "Room password")
	joinCmd.Flags().StringVarP(&flagAudioFile, "audio", "a", "", "Ogg/Opus file to send as your audio")
	joinCmd.Flags().BoolVar(&flagLoopAudio, "loop", false, "Loop the audio file")
	joinCmd.Flags().BoolVarP(&flagMicrophone, "mic", "m", false, "Capture the default microphone")
	joinCmd.Flags().StringVarP(&flagRecordDir, "record-dir", "d", "", "Directory to record each participant's audio")
	joinCmd.Flags().BoolVar(&flagPlain, "plain", false, "Line-oriented output instead of the interactive view")
}
