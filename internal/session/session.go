// Package session joins a room: it owns the relay connection, the link
// registry and negotiation engine, and the chat sink for one membership.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/junnushon/voice-chat-5/internal/chat"
	"github.com/junnushon/voice-chat-5/internal/media"
	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/signaling"
)

const eventBuffer = 256

// Options configures Join.
type Options struct {
	Room     string
	Nickname string

	// RelayURL is the full relay endpoint including room and password.
	RelayURL string
	Dial     signaling.DialFunc

	// Peer configures real connections. Factory, when set, replaces them.
	Peer    mesh.Settings
	Factory mesh.PeerFactory

	Source      media.Source
	Constraints media.Constraints
	Recorder    *media.Recorder

	// SelfID presets the local id; the relay's welcome still overrides it.
	SelfID string
}

// Session is one room membership. Everything that touches negotiation state
// runs on a single loop goroutine.
type Session struct {
	room     string
	relay    signaling.Relay
	engine   *mesh.Engine
	router   *signaling.Router
	sink     *chat.Sink
	source   media.Source
	recorder *media.Recorder

	// Loop-owned.
	selfID       string
	count        int
	participants []string
	offered      bool

	tasksMu sync.Mutex
	tasks   []func()
	closing bool
	wake    chan struct{}

	events chan Event

	leave       chan struct{}
	leaveOnce   sync.Once
	stopped     chan struct{}
	err         error
	closedLinks int
	stopMedia   context.CancelFunc
}

// Join captures local audio, connects to the relay and starts the session
// loop. A capture failure is not fatal; a relay connection failure is.
func Join(ctx context.Context, opts Options) (*Session, error) {
	if opts.Room == "" {
		return nil, errors.New("room id is required")
	}
	if opts.RelayURL == "" {
		return nil, errors.New("relay URL is required")
	}

	source := opts.Source
	if source == nil {
		source = media.NoSource{}
	}
	recorder := opts.Recorder
	if recorder == nil {
		recorder = media.NewRecorder("")
	}

	factory := opts.Factory
	if factory == nil {
		settings := opts.Peer
		if settings.RegisterCodecs == nil {
			settings.RegisterCodecs = source.RegisterCodecs
		}
		var err error
		if factory, err = mesh.NewPeerFactory(settings); err != nil {
			return nil, fmt.Errorf("webrtc setup: %w", err)
		}
	}

	mediaCtx, stopMedia := context.WithCancel(context.Background())
	tracks, mediaErr := source.Capture(mediaCtx, opts.Constraints)
	if mediaErr != nil {
		slog.Warn("local audio unavailable, joining receive-only", "err", mediaErr)
		tracks = nil
	}

	dial := opts.Dial
	if dial == nil {
		dial = signaling.Dialer{}.Dial
	}
	relay, err := dial(ctx, opts.RelayURL)
	if err != nil {
		stopMedia()
		source.Close()
		return nil, fmt.Errorf("%w: %v", ErrRelayUnreachable, err)
	}

	selfID := opts.SelfID
	if selfID == "" {
		selfID = uuid.NewString()
	}

	s := &Session{
		room:      opts.Room,
		relay:     relay,
		source:    source,
		recorder:  recorder,
		selfID:    selfID,
		wake:      make(chan struct{}, 1),
		events:    make(chan Event, eventBuffer),
		leave:     make(chan struct{}),
		stopped:   make(chan struct{}),
		stopMedia: stopMedia,
	}
	s.engine = mesh.NewEngine(mesh.Options{
		SelfID:        selfID,
		Signaler:      outbound{s},
		Factory:       factory,
		Post:          func(fn func()) { s.post(fn) },
		OnLinkState:   s.linkState,
		OnRemoteTrack: s.remoteTrack,
	})
	if len(tracks) > 0 {
		if err := s.engine.AttachTracks(tracks...); err != nil {
			slog.Warn("attaching local audio", "err", err)
		}
	}
	s.router = signaling.NewRouter(inbound{s})
	s.sink = chat.NewSink(opts.Nickname, outbound{s}, chat.NewTranscript(chat.DefaultCapacity))

	s.emit(MediaEvent{Tracks: len(tracks), Err: mediaErr})
	slog.Info("joined room", "room", opts.Room, "self", selfID, "tracks", len(tracks))

	go s.run()
	return s, nil
}

// Events returns the session's event stream. It is closed after the
// ClosedEvent.
func (s *Session) Events() <-chan Event { return s.events }

// Transcript returns the chat transcript.
func (s *Session) Transcript() *chat.Transcript { return s.sink.Transcript() }

func (s *Session) Nickname() string { return s.sink.Nickname() }
func (s *Session) Room() string     { return s.room }

// SendChat echoes body into the transcript and sends it to the room.
func (s *Session) SendChat(body string) (chat.Entry, error) {
	type result struct {
		entry chat.Entry
		err   error
	}
	reply := make(chan result, 1)
	ok := s.post(func() {
		e, err := s.sink.Send(body)
		if !errors.Is(err, chat.ErrEmptyMessage) {
			s.emit(ChatEvent{Entry: e})
		}
		reply <- result{e, err}
	})
	if !ok {
		return chat.Entry{}, ErrSessionClosed
	}
	select {
	case r := <-reply:
		return r.entry, r.err
	case <-s.stopped:
		return chat.Entry{}, ErrSessionClosed
	}
}

// Snapshot returns the current room view.
func (s *Session) Snapshot() (Snapshot, error) {
	reply := make(chan Snapshot, 1)
	ok := s.post(func() {
		snap := Snapshot{
			Room:         s.room,
			SelfID:       s.selfID,
			Count:        s.count,
			Participants: append([]string(nil), s.participants...),
			Tracks:       len(s.engine.Tracks()),
		}
		s.engine.Registry().Each(func(l *mesh.Link) {
			snap.Links = append(snap.Links, LinkInfo{Participant: l.Participant(), State: l.State()})
		})
		reply <- snap
	})
	if !ok {
		return Snapshot{}, ErrSessionClosed
	}
	select {
	case snap := <-reply:
		return snap, nil
	case <-s.stopped:
		return Snapshot{}, ErrSessionClosed
	}
}

// Leave closes every link and the relay. It returns the number of links
// closed; calls after the first return 0.
func (s *Session) Leave() int {
	first := false
	s.leaveOnce.Do(func() {
		first = true
		close(s.leave)
	})
	<-s.stopped
	if !first {
		return 0
	}
	return s.closedLinks
}

// Wait blocks until the session ends and returns the fatal error, if any.
func (s *Session) Wait() error {
	<-s.stopped
	return s.err
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.stopped }

func (s *Session) run() {
	defer close(s.stopped)

	incoming := s.relay.Incoming()
	for {
		select {
		case env, ok := <-incoming:
			if !ok {
				s.finish(s.relayEnded())
				return
			}
			s.router.Dispatch(env)

		case <-s.wake:
			s.runTasks()

		case <-s.leave:
			slog.Info("leaving room", "room", s.room)
			s.finish(nil)
			return
		}
	}
}

// post queues fn for the loop. Work posted after teardown is dropped.
func (s *Session) post(fn func()) bool {
	s.tasksMu.Lock()
	if s.closing {
		s.tasksMu.Unlock()
		return false
	}
	s.tasks = append(s.tasks, fn)
	s.tasksMu.Unlock()

	select {
	case s.wake <- struct{}{}:
	default:
	}
	return true
}

func (s *Session) runTasks() {
	s.tasksMu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.tasksMu.Unlock()

	for _, fn := range tasks {
		fn()
	}
}

func (s *Session) finish(err error) {
	s.tasksMu.Lock()
	s.closing = true
	s.tasks = nil
	s.tasksMu.Unlock()

	s.closedLinks = s.engine.Close()
	s.relay.Close()
	s.stopMedia()
	if err := s.source.Close(); err != nil {
		slog.Debug("closing media source", "err", err)
	}

	s.err = err
	s.emitFinal(ClosedEvent{Err: err})
	close(s.events)
	slog.Debug("session ended", "room", s.room, "links_closed", s.closedLinks, "err", err)
}

func (s *Session) relayEnded() error {
	err := s.relay.Err()
	if reason, ok := signaling.Rejection(err); ok {
		return &JoinError{Reason: reason, Err: ErrJoinRejected}
	}
	if err != nil {
		slog.Warn("relay connection ended", "room", s.room, "err", err)
	}
	return nil
}

func (s *Session) emit(e Event) {
	select {
	case s.events <- e:
	default:
		slog.Warn("event buffer full, dropping event", "event", fmt.Sprintf("%T", e))
	}
}

// emitFinal delivers e even when the buffer is full by discarding the
// oldest undelivered events. Only the loop sends on events, so a freed
// slot stays free.
func (s *Session) emitFinal(e Event) {
	for {
		select {
		case s.events <- e:
			return
		default:
		}
		select {
		case old := <-s.events:
			slog.Warn("event buffer full, dropping event", "event", fmt.Sprintf("%T", old))
		default:
		}
	}
}

func (s *Session) linkState(participant string, state mesh.State) {
	slog.Debug("link state", "participant", participant, "state", state.String())
	s.emit(LinkEvent{Participant: participant, State: state})
}

func (s *Session) remoteTrack(participant string, track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	slog.Info("receiving audio", "participant", participant, "codec", track.Codec().MimeType)
	s.recorder.Consume(participant, track)
}
