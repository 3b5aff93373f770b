package mesh

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// Signaler carries negotiation artifacts to a remote participant.
type Signaler interface {
	SendDescription(to string, desc webrtc.SessionDescription) error
	SendCandidate(to string, candidate webrtc.ICECandidateInit) error
}

// Options configures an Engine.
type Options struct {
	SelfID   string
	Signaler Signaler
	Factory  PeerFactory

	// Post schedules fn on the goroutine that owns the engine. Connection
	// callbacks arrive on pion goroutines and are always routed through it.
	// Nil runs fn immediately, which is only safe when callbacks are
	// already serialized with engine calls.
	Post func(fn func())

	OnLinkState   func(participant string, state State)
	OnRemoteTrack func(participant string, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver)
}

// Engine drives offer/answer negotiation for every link in its registry.
// All methods must be called from one goroutine.
type Engine struct {
	selfID   string
	signaler Signaler
	factory  PeerFactory
	post     func(fn func())

	onLinkState   func(string, State)
	onRemoteTrack func(string, *webrtc.TrackRemote, *webrtc.RTPReceiver)

	registry *Registry
	tracks   []webrtc.TrackLocal
	closed   bool

	// announce is the unaddressed offer sent when the relay gives no
	// participant list. The first answer binds it to the answering peer.
	announce *Link
}

// NewEngine returns an engine with an empty registry.
func NewEngine(opts Options) *Engine {
	e := &Engine{
		selfID:        opts.SelfID,
		signaler:      opts.Signaler,
		factory:       opts.Factory,
		post:          opts.Post,
		onLinkState:   opts.OnLinkState,
		onRemoteTrack: opts.OnRemoteTrack,
	}
	if e.post == nil {
		e.post = func(fn func()) { fn() }
	}
	e.registry = NewRegistry(e.newLink)
	return e
}

func (e *Engine) SelfID() string { return e.selfID }

// SetSelfID replaces the local participant id used to ignore echoed
// messages and skip self-offers.
func (e *Engine) SetSelfID(id string) { e.selfID = id }

func (e *Engine) Registry() *Registry { return e.registry }

// Tracks returns the local tracks attached to every link.
func (e *Engine) Tracks() []webrtc.TrackLocal {
	return append([]webrtc.TrackLocal(nil), e.tracks...)
}

// Offer runs the outbound flow toward participant. Links that already hold
// a local or remote description are left alone.
func (e *Engine) Offer(participant string) error {
	if e.closed {
		return ErrEngineClosed
	}
	if participant == "" || participant == e.selfID {
		return nil
	}

	link, err := e.registry.GetOrCreate(participant)
	if err != nil {
		return err
	}
	if link.local != nil || link.remote != nil {
		return nil
	}

	offer, err := link.pc.CreateOffer(nil)
	if err != nil {
		return linkError("create offer", participant, err)
	}
	if err := link.setLocal(offer); err != nil {
		return linkError("set local description", participant, err)
	}
	e.notify(link)

	if err := e.signaler.SendDescription(participant, offer); err != nil {
		return linkError("send offer", participant, err)
	}
	slog.Debug("offer sent", "participant", participant)
	return nil
}

// Announce sends one unaddressed offer for relays that report only a
// participant count. Whoever answers first is bound to it; every later
// peer has to be reached through Offer once its id is known. It is a no-op
// when links already exist or an announcement is outstanding.
func (e *Engine) Announce() error {
	if e.closed {
		return ErrEngineClosed
	}
	if e.announce != nil || e.registry.Len() > 0 {
		return nil
	}

	link, err := e.newLink("")
	if err != nil {
		return err
	}
	offer, err := link.pc.CreateOffer(nil)
	if err == nil {
		err = link.setLocal(offer)
	}
	if err != nil {
		link.close()
		return linkError("create announcement", "", err)
	}
	e.announce = link

	if err := e.signaler.SendDescription("", offer); err != nil {
		return linkError("send announcement", "", err)
	}
	slog.Debug("announcement sent")
	return nil
}

// Announcing reports whether an unaddressed offer is waiting for an answer.
func (e *Engine) Announcing() bool { return e.announce != nil }

// OfferAll runs Offer for each participant and returns the joined errors.
func (e *Engine) OfferAll(participants []string) error {
	var errs []error
	for _, id := range participants {
		if err := e.Offer(id); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// HandleDescription applies a remote description from participant and, for
// an offer, sends exactly one answer back. Malformed or rejected
// descriptions leave the link as it was.
func (e *Engine) HandleDescription(from string, raw json.RawMessage) error {
	if e.closed {
		return ErrEngineClosed
	}

	desc, err := decodeDescription(raw)
	if err != nil {
		return malformed("decode description", from, err)
	}
	if from == e.selfID {
		return nil
	}

	var (
		link    *Link
		created bool
	)
	if _, ok := e.registry.Get(from); !ok && desc.Type == webrtc.SDPTypeAnswer && e.announce != nil {
		link, created = e.bindAnnouncement(from), true
	} else if link, created, err = e.registry.getOrCreate(from); err != nil {
		return err
	}

	if err := link.setRemote(desc); err != nil {
		if created {
			e.registry.Remove(from)
		}
		if errors.Is(err, ErrDuplicateRemoteDescription) || errors.Is(err, ErrLinkClosed) {
			return linkError("set remote description", from, err)
		}
		return malformed("set remote description", from, err)
	}

	if n := link.drain(); n > 0 {
		slog.Debug("applied queued candidates", "participant", from, "count", n)
	}
	e.notify(link)

	if desc.Type != webrtc.SDPTypeOffer {
		return nil
	}

	answer, err := link.pc.CreateAnswer(nil)
	if err != nil {
		return linkError("create answer", from, err)
	}
	if err := link.setLocal(answer); err != nil {
		return linkError("set local description", from, err)
	}
	if err := e.signaler.SendDescription(from, answer); err != nil {
		return linkError("send answer", from, err)
	}
	slog.Debug("answer sent", "participant", from)
	return nil
}

// HandleCandidate applies a remote network-path candidate. Candidates that
// arrive before a remote description are queued on the link, creating it
// if needed, and applied once the description lands.
func (e *Engine) HandleCandidate(from string, raw json.RawMessage) error {
	if e.closed {
		return ErrEngineClosed
	}

	var c webrtc.ICECandidateInit
	if err := json.Unmarshal(raw, &c); err != nil {
		return malformed("decode candidate", from, err)
	}
	if from == e.selfID {
		return nil
	}

	link, err := e.registry.GetOrCreate(from)
	if err != nil {
		return err
	}

	switch err := link.addCandidate(c); {
	case errors.Is(err, ErrCandidateQueueFull):
		e.registry.Remove(from)
		e.notify(link)
		return linkError("queue candidate", from, err)
	case errors.Is(err, ErrInvalidNegotiationState):
		slog.Debug("queued candidate", "participant", from, "pending", len(link.pending))
		return nil
	case err != nil:
		return linkError("add candidate", from, err)
	}
	return nil
}

// AttachTracks adds local tracks to every current link and remembers them
// for links created later. Links that already exchanged a description
// receive the track without a new offer.
func (e *Engine) AttachTracks(tracks ...webrtc.TrackLocal) error {
	if e.closed {
		return ErrEngineClosed
	}
	e.tracks = append(e.tracks, tracks...)

	var errs []error
	e.registry.Each(func(link *Link) {
		for _, t := range tracks {
			added, err := link.attach(t)
			if err != nil {
				errs = append(errs, linkError("add track", link.participant, err))
				continue
			}
			if added && link.local != nil {
				slog.Warn("track added after negotiation; renegotiation is not supported",
					"participant", link.participant, "track", t.ID())
			}
		}
	})
	return errors.Join(errs...)
}

// Close closes every link and empties the registry. Later calls and late
// connection callbacks are no-ops.
func (e *Engine) Close() int {
	if e.closed {
		return 0
	}
	e.closed = true
	if e.announce != nil {
		e.announce.close()
		e.announce = nil
	}
	return e.registry.CloseAll()
}

func (e *Engine) Closed() bool { return e.closed }

func (e *Engine) newLink(participant string) (*Link, error) {
	pc, err := e.factory(participant)
	if err != nil {
		return nil, linkError("create peer connection", participant, err)
	}
	link := newLink(participant, pc)

	for _, t := range e.tracks {
		if _, err := link.attach(t); err != nil {
			slog.Warn("attaching local track", "participant", participant, "err", err)
		}
	}
	if len(link.tracks) == 0 {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			slog.Warn("adding receive-only audio", "participant", participant, "err", err)
		}
	}

	pc.OnICECandidate(func(c *webrtc.ICECandidate) {
		if c == nil {
			return
		}
		init := c.ToJSON()
		e.post(func() {
			if !e.current(link) {
				return
			}
			if link.participant == "" {
				link.unsent = append(link.unsent, init)
				return
			}
			if err := e.signaler.SendCandidate(link.participant, init); err != nil {
				slog.Debug("sending candidate", "participant", link.participant, "err", err)
			}
		})
	})

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		e.post(func() {
			if !e.current(link) {
				return
			}
			slog.Debug("peer connection state", "participant", link.participant, "state", s.String())
			switch s {
			case webrtc.PeerConnectionStateConnected:
				link.state = StateConnected
				e.notify(link)
			case webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
				if link == e.announce {
					e.announce = nil
					link.close()
					return
				}
				e.registry.Remove(link.participant)
				e.notify(link)
			}
		})
	})

	pc.OnTrack(func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		e.post(func() {
			if !e.current(link) || e.onRemoteTrack == nil {
				return
			}
			e.onRemoteTrack(link.participant, track, receiver)
		})
	})

	return link, nil
}

// current reports whether link is still the live entry for its participant.
func (e *Engine) current(link *Link) bool {
	if e.closed {
		return false
	}
	if link == e.announce {
		return true
	}
	l, ok := e.registry.Get(link.participant)
	return ok && l == link
}

// bindAnnouncement hands the outstanding announcement to participant and
// sends it the candidates gathered so far.
func (e *Engine) bindAnnouncement(participant string) *Link {
	link := e.announce
	e.announce = nil
	link.participant = participant
	e.registry.adopt(link)
	slog.Debug("announcement answered", "participant", participant)

	held := link.unsent
	link.unsent = nil
	for _, c := range held {
		if err := e.signaler.SendCandidate(participant, c); err != nil {
			slog.Debug("sending candidate", "participant", participant, "err", err)
		}
	}
	return link
}

func (e *Engine) notify(link *Link) {
	if link.participant == "" {
		return
	}
	if e.onLinkState != nil {
		e.onLinkState(link.participant, link.state)
	}
}

func decodeDescription(raw json.RawMessage) (webrtc.SessionDescription, error) {
	var desc webrtc.SessionDescription
	if err := json.Unmarshal(raw, &desc); err != nil {
		return desc, err
	}
	switch desc.Type {
	case webrtc.SDPTypeOffer, webrtc.SDPTypeAnswer:
	default:
		return desc, fmt.Errorf("unsupported description type %q", desc.Type.String())
	}
	if desc.SDP == "" {
		return desc, errors.New("empty sdp")
	}
	if _, err := desc.Unmarshal(); err != nil {
		return desc, err
	}
	return desc, nil
}
