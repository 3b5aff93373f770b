package ui

import (
	"fmt"
	"maps"
	"slices"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/junnushon/voice-chat-5/internal/mesh"
)

// RosterView renders the participants the relay reported along with the
// state of our link to each. Participants we have a link to but the relay
// has not listed yet are appended.
func RosterView(selfID string, participants []string, links map[string]mesh.State) string {
	seen := make(map[string]bool, len(participants))
	var rows [][]string
	for _, id := range participants {
		seen[id] = true
		if id == selfID {
			rows = append(rows, []string{id, "you"})
			continue
		}
		rows = append(rows, []string{id, linkLabel(links, id)})
	}
	for _, id := range slices.Sorted(maps.Keys(links)) {
		if !seen[id] {
			rows = append(rows, []string{id, linkLabel(links, id)})
		}
	}

	if len(rows) == 0 {
		return MutedStyle.Render("No participants")
	}

	tbl := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(Primary)).
		Headers("Participant", "Link").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return TableHeaderStyle
			case row%2 == 0:
				return TableRowStyle
			default:
				return TableRowAltStyle
			}
		})

	return tbl.Render()
}

func linkLabel(links map[string]mesh.State, id string) string {
	st, ok := links[id]
	if !ok {
		return "-"
	}
	return st.String()
}

// LinkBox renders the shareable link for a room.
type LinkBox struct {
	RoomID   string
	RoomLink string
}

func NewLinkBox(roomID, roomLink string) *LinkBox {
	return &LinkBox{RoomID: roomID, RoomLink: roomLink}
}

func (r *LinkBox) View() string {
	content := fmt.Sprintf("%s\n\n%s Room ID:    %s\n%s Room Link:  %s",
		TitleStyle.Render(IconRoom+" Share this room"),
		IconCopy, BoldStyle.Foreground(Primary).Render(r.RoomID),
		IconWeb, MutedStyle.Render(r.RoomLink),
	)

	return InfoBoxStyle.Render(content)
}
