package signaling

import (
	"encoding/json"
	"log/slog"
)

// Handler receives routed relay messages. Implementations run on the
// caller's goroutine and must finish before the next message is routed.
type Handler interface {
	HandlePresence(count int, participants []string)
	HandleWelcome(id string)
	HandleDescription(from string, sdp json.RawMessage)
	HandleCandidate(from string, candidate json.RawMessage)
	HandleChat(nickname, body string)
}

// Router dispatches inbound envelopes to a Handler.
type Router struct {
	handler Handler
}

// NewRouter creates a router delivering to h.
func NewRouter(h Handler) *Router {
	return &Router{handler: h}
}

// Dispatch routes one envelope and reports how it was classified.
func (r *Router) Dispatch(env *Envelope) Kind {
	kind := Classify(env)
	switch kind {
	case KindPresence:
		r.handler.HandlePresence(env.UserCount, env.Participants)
	case KindWelcome:
		r.handler.HandleWelcome(env.ID)
	case KindDescription:
		r.handler.HandleDescription(env.From, env.SDP)
	case KindCandidate:
		r.handler.HandleCandidate(env.From, env.Candidate)
	case KindChat:
		r.handler.HandleChat(env.Nickname, env.Message)
	default:
		slog.Debug("ignoring unrecognised relay message", "type", env.Type)
	}
	return kind
}
