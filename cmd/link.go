package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/junnushon/voice-chat-5/internal/config"
	"github.com/junnushon/voice-chat-5/internal/ui"
)

var linkCmd = &cobra.Command{
	Use:   "link <room-id>",
	Short: "Print the shareable link for a room",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		room, _, err := parseRoomInput(args[0])
		if err != nil {
			return err
		}
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, ui.NewLinkBox(room, cfg.RoomLink(room)).View())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(linkCmd)
}
