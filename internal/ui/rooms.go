package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/junnushon/voice-chat-5/internal/directory"
)

// Output formats accepted by RenderRooms.
const (
	FormatTable    = "table"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// RenderRooms writes the room directory in the given format. link builds the
// shareable link for a room id and may be nil.
func RenderRooms(w io.Writer, rooms []directory.Room, format string, link func(string) string) error {
	t := table.NewWriter()
	t.SetOutputMirror(w)

	header := table.Row{"#", "Room", "Name"}
	if link != nil {
		header = append(header, "Link")
	}
	t.AppendHeader(header)

	for i, r := range rooms {
		id := string(r.ID)
		row := table.Row{i + 1, id, r.Title()}
		if link != nil {
			row = append(row, link(id))
		}
		t.AppendRow(row)
	}
	t.AppendFooter(table.Row{"", "Total", len(rooms)})

	switch strings.ToLower(format) {
	case "", FormatTable:
		t.SetStyle(table.StyleRounded)
		t.Style().Color.Header = text.Colors{text.FgHiCyan, text.Bold}
		t.Style().Format.Header = text.FormatUpper
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Align: text.AlignRight, WidthMax: 4},
			{Number: 3, WidthMax: 40},
		})
		t.Render()
	case FormatMarkdown, "md":
		t.RenderMarkdown()
	case FormatCSV:
		t.RenderCSV()
	default:
		return fmt.Errorf("unknown output format %q (want table, markdown or csv)", format)
	}
	return nil
}
