package ui

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/junnushon/voice-chat-5/internal/chat"
	"github.com/junnushon/voice-chat-5/internal/directory"
	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/session"
)

type fakeRoom struct {
	events     chan session.Event
	transcript *chat.Transcript

	mu   sync.Mutex
	sent []string
}

func newFakeRoom() *fakeRoom {
	return &fakeRoom{
		events:     make(chan session.Event, 16),
		transcript: chat.NewTranscript(chat.DefaultCapacity),
	}
}

func (f *fakeRoom) Events() <-chan session.Event { return f.events }

func (f *fakeRoom) Transcript() *chat.Transcript { return f.transcript }

func (f *fakeRoom) SendChat(body string) (chat.Entry, error) {
	f.mu.Lock()
	f.sent = append(f.sent, body)
	f.mu.Unlock()
	e := chat.Entry{Nickname: "me", Body: body, Local: true, At: time.Now()}
	f.transcript.Append(e)
	return e, nil
}

func (f *fakeRoom) Sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent...)
}

func TestFormatCount(t *testing.T) {
	if got := FormatCount(1); got != "(1)" {
		t.Fatalf("FormatCount(1) = %q", got)
	}
	if got := FormatCount(12); got != "(12)" {
		t.Fatalf("FormatCount(12) = %q", got)
	}
}

func TestRenderChatAlignsLocalRight(t *testing.T) {
	out := RenderChat([]chat.Entry{
		{Nickname: "bob", Body: "hi there"},
		{Nickname: "me", Body: "hello", Local: true},
	}, 40)

	lines := strings.Split(out, "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d: %q", len(lines), out)
	}
	if !strings.Contains(lines[0], "bob:") || !strings.Contains(lines[0], "hi there") {
		t.Errorf("remote line = %q", lines[0])
	}
	if strings.HasPrefix(lines[0], " ") {
		t.Errorf("remote line should be left-aligned: %q", lines[0])
	}

	local := lines[1]
	if lipgloss.Width(local) != 40 {
		t.Errorf("local line width = %d, want 40", lipgloss.Width(local))
	}
	if !strings.HasPrefix(local, " ") || !strings.Contains(local, "hello") {
		t.Errorf("local line should be right-aligned: %q", local)
	}
	if strings.Contains(local, "me:") {
		t.Errorf("local line should not carry a nickname: %q", local)
	}
}

func TestRoomModelPresenceCount(t *testing.T) {
	f := newFakeRoom()
	m := NewRoomModel(RoomInfo{Title: "Lounge", RoomID: "r1", Nickname: "me"}, f)

	m.Update(eventMsg{session.PresenceEvent{Count: 1}})
	if v := m.View(); !strings.Contains(v, "(1)") || !strings.Contains(v, "Lounge") {
		t.Fatalf("view missing count or title:\n%s", v)
	}

	m.Update(eventMsg{session.IdentityEvent{ID: "p1"}})
	m.Update(eventMsg{session.PresenceEvent{Count: 2, Participants: []string{"p1", "p2"}}})
	m.Update(eventMsg{session.LinkEvent{Participant: "p2", State: mesh.StateNegotiating}})

	v := m.View()
	if !strings.Contains(v, "(2)") {
		t.Fatalf("view should show (2):\n%s", v)
	}
	if !strings.Contains(v, "p2") || !strings.Contains(v, "negotiating") {
		t.Fatalf("roster should list p2 as negotiating:\n%s", v)
	}
	if !strings.Contains(v, "you") {
		t.Fatalf("roster should mark the local participant:\n%s", v)
	}

	m.Update(eventMsg{session.LinkEvent{Participant: "p2", State: mesh.StateClosed}})
	if _, ok := m.links["p2"]; ok {
		t.Fatalf("closed link should leave the roster state")
	}
}

func TestRoomModelChatAndSend(t *testing.T) {
	f := newFakeRoom()
	m := NewRoomModel(RoomInfo{RoomID: "r1", Nickname: "me"}, f)

	msg := m.send("hello")()
	if res, ok := msg.(sendResultMsg); !ok || res.err != nil {
		t.Fatalf("send result = %#v", msg)
	}
	if got := f.Sent(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("sent = %v", got)
	}

	f.transcript.Append(chat.Entry{Nickname: "bob", Body: "hey"})
	m.Update(eventMsg{session.ChatEvent{Entry: chat.Entry{Nickname: "bob", Body: "hey"}}})
	v := m.View()
	if !strings.Contains(v, "hello") || !strings.Contains(v, "bob:") {
		t.Fatalf("chat not rendered:\n%s", v)
	}
}

func TestRoomModelClosedEvent(t *testing.T) {
	f := newFakeRoom()
	m := NewRoomModel(RoomInfo{RoomID: "r1"}, f)

	rejected := &session.JoinError{Reason: "Room does not exist", Err: session.ErrJoinRejected}
	_, cmd := m.Update(eventMsg{session.ClosedEvent{Err: rejected}})
	if cmd == nil {
		t.Fatalf("closed event should quit")
	}
	if !errors.Is(m.Err(), session.ErrJoinRejected) {
		t.Fatalf("Err() = %v", m.Err())
	}
	if m.View() != "" {
		t.Fatalf("closed view should be empty")
	}
}

func TestPlainLine(t *testing.T) {
	tests := []struct {
		event session.Event
		want  string
	}{
		{session.PresenceEvent{Count: 1}, "participants (1)"},
		{session.ChatEvent{Entry: chat.Entry{Nickname: "bob", Body: "hi"}}, "bob: hi"},
		{session.ChatEvent{Entry: chat.Entry{Nickname: "me", Body: "hello", Local: true}}, "> hello"},
		{session.LinkEvent{Participant: "p2", State: mesh.StateConnected}, "link p2 connected"},
		{session.LinkEvent{Participant: "p2", State: mesh.StateNew}, ""},
		{session.MediaEvent{Err: errors.New("no device")}, "audio unavailable, listening only"},
		{session.AnnounceEvent{Count: 3}, "relay sent no participant list (3), linking to the first peer that answers"},
	}
	for _, tt := range tests {
		if got := PlainLine(tt.event); got != tt.want {
			t.Errorf("PlainLine(%#v) = %q, want %q", tt.event, got, tt.want)
		}
	}
}

func TestRunPlain(t *testing.T) {
	f := newFakeRoom()
	f.events <- session.PresenceEvent{Count: 1}

	in, inW := io.Pipe()
	defer inW.Close()
	var out bytes.Buffer

	done := make(chan error, 1)
	go func() {
		done <- RunPlain(context.Background(), RoomInfo{RoomID: "r1", Nickname: "me"}, f, in, &out)
	}()

	if _, err := io.WriteString(inW, "  \nhello\n"); err != nil {
		t.Fatalf("write input: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(f.Sent()) == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("chat line was not sent")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if got := f.Sent(); len(got) != 1 || got[0] != "hello" {
		t.Fatalf("sent = %v, blank lines must be skipped", got)
	}

	rejected := &session.JoinError{Reason: "Invalid password", Err: session.ErrJoinRejected}
	f.events <- session.ClosedEvent{Err: rejected}

	select {
	case err := <-done:
		if !errors.Is(err, session.ErrJoinRejected) {
			t.Fatalf("RunPlain returned %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("RunPlain did not return")
	}
	if !strings.Contains(out.String(), "participants (1)") {
		t.Fatalf("output missing presence line:\n%s", out.String())
	}
}

func TestRenderRooms(t *testing.T) {
	rooms := []directory.Room{{ID: "r1", Name: "Lounge"}, {ID: "7"}}
	link := func(id string) string { return "https://voice.example/room.html?room=" + id }

	var csv bytes.Buffer
	if err := RenderRooms(&csv, rooms, FormatCSV, link); err != nil {
		t.Fatalf("csv: %v", err)
	}
	if !strings.Contains(csv.String(), "r1,Lounge,https://voice.example/room.html?room=r1") {
		t.Fatalf("csv output:\n%s", csv.String())
	}
	if !strings.Contains(csv.String(), "7,7,") {
		t.Fatalf("unnamed room should fall back to its id:\n%s", csv.String())
	}

	var md bytes.Buffer
	if err := RenderRooms(&md, rooms, FormatMarkdown, nil); err != nil {
		t.Fatalf("markdown: %v", err)
	}
	if !strings.Contains(md.String(), "| Lounge |") || strings.Contains(md.String(), "https://") {
		t.Fatalf("markdown output:\n%s", md.String())
	}

	if err := RenderRooms(&md, rooms, "xml", nil); err == nil {
		t.Fatalf("unknown format should fail")
	}
}

func TestRoomModelAnnounceNotice(t *testing.T) {
	f := newFakeRoom()
	m := NewRoomModel(RoomInfo{RoomID: "r1", Nickname: "me"}, f)

	m.Update(eventMsg{session.AnnounceEvent{Count: 2}})
	if v := m.View(); !strings.Contains(v, "no participant list") {
		t.Fatalf("announce notice missing:\n%s", v)
	}
}

func TestLinkBoxView(t *testing.T) {
	v := NewLinkBox("r1", "https://voice.example/room.html?room=r1").View()
	for _, want := range []string{"Share this room", "r1", "https://voice.example/room.html?room=r1"} {
		if !strings.Contains(v, want) {
			t.Fatalf("link box missing %q:\n%s", want, v)
		}
	}
}
