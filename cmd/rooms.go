package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/junnushon/voice-chat-5/internal/config"
	"github.com/junnushon/voice-chat-5/internal/directory"
	"github.com/junnushon/voice-chat-5/internal/ui"
)

var (
	flagRoomsFormat string
	flagRoomsLinks  bool
)

var roomsCmd = &cobra.Command{
	Use:     "rooms",
	Aliases: []string{"ls"},
	Short:   "List rooms from the directory",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(config.Options{})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 15*time.Second)
		defer cancel()

		rooms, err := directory.New(cfg.DirectoryURL).List(ctx)
		if err != nil {
			return err
		}
		if len(rooms) == 0 {
			ui.PrintInfo("No rooms listed")
			return nil
		}

		var link func(string) string
		if flagRoomsLinks {
			link = cfg.RoomLink
		}
		return ui.RenderRooms(ui.Out, rooms, flagRoomsFormat, link)
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)

	roomsCmd.Flags().StringVarP(&flagRoomsFormat, "format", "f", ui.FormatTable, "Output format: table, markdown or csv")
	roomsCmd.Flags().BoolVarP(&flagRoomsLinks, "links", "l", false, "Include shareable links")
}
