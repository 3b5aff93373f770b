package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/junnushon/voice-chat-5/internal/chat"
	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/session"
)

// RoomSession is the part of a session the room view drives.
type RoomSession interface {
	Events() <-chan session.Event
	SendChat(body string) (chat.Entry, error)
	Transcript() *chat.Transcript
}

// RoomInfo is the static header of the room view.
type RoomInfo struct {
	Title    string
	RoomID   string
	Link     string
	Nickname string
}

// chatFrame is the width BoxStyle adds around the chat viewport.
const chatFrame = 4

type eventMsg struct{ event session.Event }

type streamClosedMsg struct{}

type sendResultMsg struct{ err error }

// RoomModel is the interactive room: chat transcript, roster and input.
type RoomModel struct {
	info    RoomInfo
	session RoomSession

	count        int
	participants []string
	selfID       string
	links        map[string]mesh.State
	media        string
	notice       string

	viewport viewport.Model
	input    textinput.Model
	spinner  spinner.Model
	ready    bool

	closed    bool
	closedErr error
}

func NewRoomModel(info RoomInfo, s RoomSession) *RoomModel {
	in := textinput.New()
	in.Placeholder = "Type a message"
	in.Prompt = "› "
	in.CharLimit = 1000
	in.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = SpinnerStyle

	return &RoomModel{
		info:     info,
		session:  s,
		links:    make(map[string]mesh.State),
		viewport: viewport.New(80-chatFrame, 12),
		input:    in,
		spinner:  sp,
	}
}

// Err returns the fatal session error seen by the view, if any.
func (m *RoomModel) Err() error { return m.closedErr }

func (m *RoomModel) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, m.listen())
}

func (m *RoomModel) listen() tea.Cmd {
	events := m.session.Events()
	return func() tea.Msg {
		e, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return eventMsg{e}
	}
}

func (m *RoomModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			m.closed = true
			return m, tea.Quit
		case tea.KeyEnter:
			body := m.input.Value()
			m.input.Reset()
			if strings.TrimSpace(body) != "" {
				cmds = append(cmds, m.send(body))
			}
		}

	case tea.WindowSizeMsg:
		m.viewport.Width = max(10, msg.Width-chatFrame)
		m.viewport.Height = max(3, msg.Height-12)
		m.input.Width = max(10, msg.Width-4)
		m.ready = true
		m.refreshChat()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		cmds = append(cmds, cmd)

	case sendResultMsg:
		if msg.err != nil {
			m.notice = "message not delivered: " + msg.err.Error()
		}

	case eventMsg:
		if m.apply(msg.event) {
			m.closed = true
			return m, tea.Quit
		}
		cmds = append(cmds, m.listen())

	case streamClosedMsg:
		m.closed = true
		return m, tea.Quit
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m *RoomModel) send(body string) tea.Cmd {
	s := m.session
	return func() tea.Msg {
		_, err := s.SendChat(body)
		return sendResultMsg{err}
	}
}

// apply folds a session event into the view and reports whether the
// session has ended.
func (m *RoomModel) apply(e session.Event) bool {
	switch e := e.(type) {
	case session.IdentityEvent:
		m.selfID = e.ID
	case session.PresenceEvent:
		m.count = e.Count
		if e.Participants != nil {
			m.participants = e.Participants
		}
	case session.ChatEvent:
		m.refreshChat()
	case session.LinkEvent:
		if e.State == mesh.StateClosed {
			delete(m.links, e.Participant)
		} else {
			m.links[e.Participant] = e.State
		}
	case session.AnnounceEvent:
		m.notice = "relay sent no participant list, linking to the first peer that answers"
	case session.MediaEvent:
		if e.Err != nil {
			m.media = IconMuted + " listening only"
		} else if e.Tracks > 0 {
			m.media = IconMic + " sending audio"
		} else {
			m.media = IconMuted + " no local audio"
		}
	case session.ClosedEvent:
		m.closedErr = e.Err
		return true
	}
	return false
}

func (m *RoomModel) refreshChat() {
	m.viewport.SetContent(RenderChat(m.session.Transcript().Entries(), m.viewport.Width))
	m.viewport.GotoBottom()
}

func (m *RoomModel) View() string {
	if m.closed {
		return ""
	}

	var b strings.Builder

	title := m.info.Title
	if title == "" {
		title = m.info.RoomID
	}
	b.WriteString(HeaderStyle.Render(IconRoom+" "+title) + " " + CountStyle.Render(FormatCount(m.count)) + "\n")
	b.WriteString(SubtitleStyle.Render(fmt.Sprintf("%s %s   %s %s   %s", IconPeer, m.info.Nickname, IconLink, m.info.Link, m.media)) + "\n\n")

	if len(m.links) == 0 && m.count <= 1 {
		b.WriteString(m.spinner.View() + MutedStyle.Render(" waiting for others to join") + "\n")
	} else {
		b.WriteString(RosterView(m.selfID, m.participants, m.links) + "\n")
	}

	b.WriteString(BoxStyle.Render(m.viewport.View()) + "\n")
	b.WriteString(m.input.View() + "\n")
	if m.notice != "" {
		b.WriteString(WarningStyle.Render(m.notice) + "\n")
	}
	b.WriteString(FooterStyle.Render(IconChat + " enter send · esc leave"))
	return b.String()
}

// RenderChat lays out transcript entries: local lines right-aligned, remote
// lines as "nickname: body" on the left.
func RenderChat(entries []chat.Entry, width int) string {
	if width <= 0 {
		width = 80
	}
	lines := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Local {
			lines = append(lines, lipgloss.NewStyle().Width(width).Align(lipgloss.Right).Render(LocalChatStyle.Render(e.Body)))
			continue
		}
		lines = append(lines, NicknameStyle.Render(e.Nickname+":")+" "+e.Body)
	}
	return strings.Join(lines, "\n")
}
