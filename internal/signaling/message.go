package signaling

import (
	"bytes"
	"encoding/json"
)

// Envelope is every JSON message exchanged with the relay. Which fields are
// set decides what the message means; see Classify.
type Envelope struct {
	Type         string          `json:"type,omitempty"`
	UserCount    int             `json:"user_count,omitempty"`
	Participants []string        `json:"participants,omitempty"`
	ID           string          `json:"id,omitempty"`
	From         string          `json:"from,omitempty"`
	To           string          `json:"to,omitempty"`
	SDP          json.RawMessage `json:"sdp,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
	Message      string          `json:"message,omitempty"`
	Nickname     string          `json:"nickname,omitempty"`
}

// Message type constants.
const (
	TypeUserCount = "user_count"
	TypeWelcome   = "welcome"
	TypeChat      = "chat"
)

// Close reasons the relay uses to reject a join.
const (
	ReasonInvalidPassword = "Invalid password"
	ReasonRoomMissing     = "Room does not exist"
)

// Kind is the routing class of an inbound envelope.
type Kind int

const (
	KindUnknown Kind = iota
	KindPresence
	KindWelcome
	KindDescription
	KindCandidate
	KindChat
)

func (k Kind) String() string {
	switch k {
	case KindPresence:
		return "presence"
	case KindWelcome:
		return "welcome"
	case KindDescription:
		return "description"
	case KindCandidate:
		return "candidate"
	case KindChat:
		return "chat"
	}
	return "unknown"
}

// Classify decides what an envelope is by field presence, checked in a fixed
// order. A message carrying both sdp and candidate is a description.
func Classify(env *Envelope) Kind {
	switch {
	case env == nil:
		return KindUnknown
	case env.Type == TypeUserCount:
		return KindPresence
	case env.Type == TypeWelcome && env.ID != "":
		return KindWelcome
	case env.From != "" && present(env.SDP):
		return KindDescription
	case env.From != "" && present(env.Candidate):
		return KindCandidate
	case env.Type == TypeChat:
		return KindChat
	}
	return KindUnknown
}

// present reports whether a raw field carries a value. Explicit JSON null
// counts as absent.
func present(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// NewDescription builds a {from,to,sdp} envelope.
func NewDescription(from, to string, sdp any) (*Envelope, error) {
	raw, err := json.Marshal(sdp)
	if err != nil {
		return nil, err
	}
	return &Envelope{From: from, To: to, SDP: raw}, nil
}

// NewCandidate builds a {from,to,candidate} envelope.
func NewCandidate(from, to string, candidate any) (*Envelope, error) {
	raw, err := json.Marshal(candidate)
	if err != nil {
		return nil, err
	}
	return &Envelope{From: from, To: to, Candidate: raw}, nil
}

// NewChat builds a {type:'chat',message,nickname} envelope.
func NewChat(nickname, body string) *Envelope {
	return &Envelope{Type: TypeChat, Message: body, Nickname: nickname}
}
