// Package relaytest runs an in-process signaling relay speaking the room
// protocol, for tests of the client and session layers.
package relaytest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/junnushon/voice-chat-5/internal/signaling"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 64 * 1024
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  64 * 1024,
	WriteBufferSize: 64 * 1024,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// Server is a relay bound to a loopback httptest server. Rooms maps room id
// to password; an empty password admits anyone.
type Server struct {
	srv *httptest.Server
	hub *hub

	// SendWelcome controls whether joiners are told their assigned id and
	// whether presence messages list participants. Set before clients join.
	SendWelcome bool
}

// NewServer starts a relay hosting the given rooms.
func NewServer(rooms map[string]string) *Server {
	s := &Server{
		hub:         newHub(rooms),
		SendWelcome: true,
	}
	go s.hub.run()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.serveWs)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the ws:// relay endpoint without room parameters.
func (s *Server) URL() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
}

// RoomURL returns the relay endpoint for a room.
func (s *Server) RoomURL(room, password string) string {
	u := s.URL() + "?room=" + room
	if password != "" {
		u += "&password=" + password
	}
	return u
}

// Close disconnects every client and stops the server.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
	s.hub.stop()
}

// Participants returns the sorted ids currently in a room.
func (s *Server) Participants(room string) []string {
	reply := make(chan []string, 1)
	s.hub.queries <- func(h *hub) { reply <- h.ids(room) }
	return <-reply
}

// Received returns every envelope the relay has read from clients, in order.
func (s *Server) Received() []signaling.Envelope {
	reply := make(chan []signaling.Envelope, 1)
	s.hub.queries <- func(h *hub) {
		reply <- append([]signaling.Envelope(nil), h.received...)
	}
	return <-reply
}

// Deliver pushes an arbitrary envelope to one participant.
func (s *Server) Deliver(room, id string, env *signaling.Envelope) {
	s.hub.queries <- func(h *hub) {
		if c, ok := h.rooms[room][id]; ok {
			c.enqueue(env)
		}
	}
}

func (s *Server) serveWs(w http.ResponseWriter, r *http.Request) {
	room := r.URL.Query().Get("room")
	password := r.URL.Query().Get("password")

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("relaytest: upgrade failed", "err", err)
		return
	}

	if reason := s.hub.admit(room, password); reason != "" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, reason),
			time.Now().Add(writeWait))
		conn.Close()
		return
	}

	c := &client{
		hub:     s.hub,
		conn:    conn,
		room:    room,
		send:    make(chan *signaling.Envelope, 256),
		welcome: s.SendWelcome,
	}
	select {
	case s.hub.register <- c:
	case <-s.hub.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

type client struct {
	hub     *hub
	conn    *websocket.Conn
	room    string
	id      string
	welcome bool
	send    chan *signaling.Envelope
	once    sync.Once
}

func (c *client) enqueue(env *signaling.Envelope) {
	select {
	case c.send <- env:
	default:
		slog.Warn("relaytest: dropping message for slow client", "id", c.id)
	}
}

func (c *client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	for {
		var env signaling.Envelope
		if err := c.conn.ReadJSON(&env); err != nil {
			return
		}
		select {
		case c.hub.inbound <- inbound{from: c, env: &env}:
		case <-c.hub.done:
			return
		}
	}
}

func (c *client) writePump() {
	defer c.conn.Close()
	for env := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteJSON(env); err != nil {
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, []byte{})
}

type inbound struct {
	from *client
	env  *signaling.Envelope
}

// hub owns every room and client; only run touches its maps.
type hub struct {
	mu        sync.Mutex
	passwords map[string]string

	rooms    map[string]map[string]*client
	received []signaling.Envelope
	nextID   int

	register   chan *client
	unregister chan *client
	inbound    chan inbound
	queries    chan func(*hub)
	done       chan struct{}
	stopOnce   sync.Once
}

func newHub(rooms map[string]string) *hub {
	passwords := make(map[string]string, len(rooms))
	for id, pw := range rooms {
		passwords[id] = pw
	}
	return &hub{
		passwords:  passwords,
		rooms:      make(map[string]map[string]*client),
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan inbound),
		queries:    make(chan func(*hub)),
		done:       make(chan struct{}),
	}
}

// admit returns the close reason for a rejected join, or "".
func (h *hub) admit(room, password string) string {
	h.mu.Lock()
	defer h.mu.Unlock()
	want, ok := h.passwords[room]
	if !ok {
		return signaling.ReasonRoomMissing
	}
	if want != "" && want != password {
		return signaling.ReasonInvalidPassword
	}
	return ""
}

func (h *hub) stop() {
	h.stopOnce.Do(func() { close(h.done) })
}

func (h *hub) run() {
	for {
		select {
		case c := <-h.register:
			h.nextID++
			c.id = fmt.Sprintf("p%d", h.nextID)
			if h.rooms[c.room] == nil {
				h.rooms[c.room] = make(map[string]*client)
			}
			h.rooms[c.room][c.id] = c
			if c.welcome {
				c.enqueue(&signaling.Envelope{Type: signaling.TypeWelcome, ID: c.id})
			}
			h.presence(c.room)

		case c := <-h.unregister:
			if members, ok := h.rooms[c.room]; ok && members[c.id] == c {
				delete(members, c.id)
				c.once.Do(func() { close(c.send) })
				if len(members) == 0 {
					delete(h.rooms, c.room)
				} else {
					h.presence(c.room)
				}
			}

		case in := <-h.inbound:
			h.received = append(h.received, *in.env)
			h.route(in.from, in.env)

		case q := <-h.queries:
			q(h)

		case <-h.done:
			return
		}
	}
}

// route forwards addressed messages to their target and broadcasts chat and
// unaddressed negotiation to everyone else in the room. Negotiation always
// carries the sender id stamped by the relay.
func (h *hub) route(from *client, env *signaling.Envelope) {
	members := h.rooms[from.room]
	out := *env
	if out.To != "" {
		out.From = from.id
		if target, ok := members[out.To]; ok {
			target.enqueue(&out)
		}
		return
	}
	negotiation := len(out.SDP) > 0 || len(out.Candidate) > 0
	if negotiation {
		out.From = from.id
	}
	if negotiation || out.Type == signaling.TypeChat {
		for id, c := range members {
			if id != from.id {
				c.enqueue(&out)
			}
		}
	}
}

func (h *hub) presence(room string) {
	ids := h.ids(room)
	for _, c := range h.rooms[room] {
		env := &signaling.Envelope{Type: signaling.TypeUserCount, UserCount: len(ids)}
		if c.welcome {
			env.Participants = ids
		}
		c.enqueue(env)
	}
}

func (h *hub) ids(room string) []string {
	ids := make([]string, 0, len(h.rooms[room]))
	for id := range h.rooms[room] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
