package session

import (
	"github.com/junnushon/voice-chat-5/internal/chat"
	"github.com/junnushon/voice-chat-5/internal/mesh"
)

// Event is delivered on Session.Events in loop order.
type Event interface {
	event()
}

// IdentityEvent reports the participant id the relay assigned to us.
type IdentityEvent struct {
	ID string
}

// PresenceEvent carries the relay's advisory participant count.
type PresenceEvent struct {
	Count        int
	Participants []string
}

// AnnounceEvent reports that the relay gave no participant list and the
// session sent one unaddressed offer instead. Only the first peer to answer
// is linked this way.
type AnnounceEvent struct {
	Count int
}

type ChatEvent struct {
	Entry chat.Entry
}

type LinkEvent struct {
	Participant string
	State       mesh.State
}

// MediaEvent reports the outcome of local capture. Err is non-nil when the
// session joined receive-only.
type MediaEvent struct {
	Tracks int
	Err    error
}

// ClosedEvent is the last event. Err is nil for a leave or an unexplained
// relay close.
type ClosedEvent struct {
	Err error
}

func (IdentityEvent) event() {}
func (PresenceEvent) event() {}
func (AnnounceEvent) event() {}
func (ChatEvent) event()     {}
func (LinkEvent) event()     {}
func (MediaEvent) event()    {}
func (ClosedEvent) event()   {}

// LinkInfo describes one tracked link.
type LinkInfo struct {
	Participant string
	State       mesh.State
}

// Snapshot is a point-in-time view of the room.
type Snapshot struct {
	Room         string
	SelfID       string
	Count        int
	Participants []string
	Links        []LinkInfo
	Tracks       int
}
