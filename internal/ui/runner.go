package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/session"
)

// RunRoom runs the interactive room view until the user leaves or the
// session ends. It returns the fatal session error, if any.
func RunRoom(info RoomInfo, s RoomSession) error {
	m := NewRoomModel(info, s)
	p := tea.NewProgram(m, tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("room view: %w", err)
	}
	return m.Err()
}

// RunPlain is the line-oriented room view used when stdout is not a
// terminal. Each input line is sent as a chat message. It returns when the
// session ends, input is exhausted or ctx is cancelled.
func RunPlain(ctx context.Context, info RoomInfo, s RoomSession, in io.Reader, out io.Writer) error {
	title := info.Title
	if title == "" {
		title = info.RoomID
	}
	fmt.Fprintf(out, "joined %s as %s\n", title, info.Nickname)
	if info.Link != "" {
		fmt.Fprintf(out, "link: %s\n", info.Link)
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	events := s.Events()
	for {
		select {
		case <-ctx.Done():
			return nil

		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			if _, err := s.SendChat(line); err != nil {
				fmt.Fprintf(out, "! message not delivered: %v\n", err)
			}

		case e, ok := <-events:
			if !ok {
				return nil
			}
			if closed, ok := e.(session.ClosedEvent); ok {
				return closed.Err
			}
			if line := PlainLine(e); line != "" {
				fmt.Fprintln(out, line)
			}
		}
	}
}

// PlainLine formats an event for the line-oriented view. Events with
// nothing to show yield "".
func PlainLine(e session.Event) string {
	switch e := e.(type) {
	case session.IdentityEvent:
		return "id: " + e.ID
	case session.PresenceEvent:
		return "participants " + FormatCount(e.Count)
	case session.ChatEvent:
		if e.Entry.Local {
			return "> " + e.Entry.Body
		}
		return e.Entry.Nickname + ": " + e.Entry.Body
	case session.LinkEvent:
		if e.State == mesh.StateNew {
			return ""
		}
		return fmt.Sprintf("link %s %s", e.Participant, e.State)
	case session.AnnounceEvent:
		return fmt.Sprintf("relay sent no participant list %s, linking to the first peer that answers", FormatCount(e.Count))
	case session.MediaEvent:
		if e.Err != nil {
			return "audio unavailable, listening only"
		}
		return fmt.Sprintf("sending %d audio track(s)", e.Tracks)
	}
	return ""
}
