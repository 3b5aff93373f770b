package session

import (
	"encoding/json"
	"errors"
	"log/slog"
	"slices"

	"github.com/pion/webrtc/v4"

	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/signaling"
)

// inbound handles routed relay messages on the loop goroutine.
type inbound struct{ s *Session }

func (h inbound) HandlePresence(count int, participants []string) {
	s := h.s
	s.count = count
	if participants != nil {
		s.participants = append([]string(nil), participants...)
	}
	s.emit(PresenceEvent{Count: count, Participants: s.participants})

	// The newcomer offers to everyone already present; incumbents answer.
	if s.offered {
		return
	}
	s.offered = true

	if participants == nil {
		if count <= 1 {
			return
		}
		slog.Warn("relay reports no participant list, announcing to the room",
			"room", s.room, "count", count)
		s.emit(AnnounceEvent{Count: count})
		if err := s.engine.Announce(); err != nil {
			slog.Warn("announcing to the room", "err", err)
		}
		return
	}

	remote := slices.DeleteFunc(slices.Clone(participants), func(id string) bool { return id == s.selfID })
	if err := s.engine.OfferAll(remote); err != nil {
		slog.Warn("offering to participants", "err", err)
	}
}

func (h inbound) HandleWelcome(id string) {
	s := h.s
	if id == s.selfID {
		return
	}
	slog.Debug("relay assigned participant id", "id", id)
	s.selfID = id
	s.engine.SetSelfID(id)
	s.emit(IdentityEvent{ID: id})
}

func (h inbound) HandleDescription(from string, sdp json.RawMessage) {
	if err := h.s.engine.HandleDescription(from, sdp); err != nil {
		logNegotiation("description", from, err)
	}
}

func (h inbound) HandleCandidate(from string, candidate json.RawMessage) {
	if err := h.s.engine.HandleCandidate(from, candidate); err != nil {
		logNegotiation("candidate", from, err)
	}
}

func (h inbound) HandleChat(nickname, body string) {
	e := h.s.sink.Receive(nickname, body)
	h.s.emit(ChatEvent{Entry: e})
}

func logNegotiation(kind, from string, err error) {
	switch {
	case errors.Is(err, mesh.ErrNegotiationMalformed):
		slog.Warn("ignoring malformed "+kind, "participant", from, "err", err)
	case errors.Is(err, mesh.ErrEngineClosed):
		slog.Debug("negotiation after leave", "participant", from)
	default:
		slog.Warn("negotiation failed", "kind", kind, "participant", from, "err", err)
	}
}

// outbound addresses negotiation and chat messages to the relay.
type outbound struct{ s *Session }

func (o outbound) SendDescription(to string, desc webrtc.SessionDescription) error {
	env, err := signaling.NewDescription(o.s.selfID, to, desc)
	if err != nil {
		return err
	}
	return o.s.relay.Send(env)
}

func (o outbound) SendCandidate(to string, c webrtc.ICECandidateInit) error {
	env, err := signaling.NewCandidate(o.s.selfID, to, c)
	if err != nil {
		return err
	}
	return o.s.relay.Send(env)
}

func (o outbound) SendChat(nickname, body string) error {
	return o.s.relay.Send(signaling.NewChat(nickname, body))
}
