package mesh

import (
	"log/slog"

	"github.com/pion/webrtc/v4"
)

// PeerConnection is the part of *webrtc.PeerConnection a Link drives.
type PeerConnection interface {
	AddTrack(track webrtc.TrackLocal) (*webrtc.RTPSender, error)
	AddTransceiverFromKind(kind webrtc.RTPCodecType, init ...webrtc.RTPTransceiverInit) (*webrtc.RTPTransceiver, error)
	CreateOffer(options *webrtc.OfferOptions) (webrtc.SessionDescription, error)
	CreateAnswer(options *webrtc.AnswerOptions) (webrtc.SessionDescription, error)
	SetLocalDescription(desc webrtc.SessionDescription) error
	SetRemoteDescription(desc webrtc.SessionDescription) error
	AddICECandidate(candidate webrtc.ICECandidateInit) error
	OnICECandidate(f func(*webrtc.ICECandidate))
	OnConnectionStateChange(f func(webrtc.PeerConnectionState))
	OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver))
	Close() error
}

// PeerFactory creates the connection for a new link. Each call must return
// a connection with its own configuration.
type PeerFactory func(participant string) (PeerConnection, error)

// State is the negotiation state of a Link.
type State int

const (
	StateNew State = iota
	StateNegotiating
	StateConnected
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateNew:
		return "new"
	case StateNegotiating:
		return "negotiating"
	case StateConnected:
		return "connected"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// MaxPendingCandidates bounds the candidates a link queues while it waits
// for a remote description.
const MaxPendingCandidates = 64

// Link is the negotiated media path to one remote participant.
type Link struct {
	participant string
	pc          PeerConnection
	state       State

	local   *webrtc.SessionDescription
	remote  *webrtc.SessionDescription
	pending []webrtc.ICECandidateInit

	// unsent holds local candidates gathered before the link had a peer.
	unsent []webrtc.ICECandidateInit

	tracks map[string]struct{}
}

func newLink(participant string, pc PeerConnection) *Link {
	return &Link{
		participant: participant,
		pc:          pc,
		tracks:      make(map[string]struct{}),
	}
}

func (l *Link) Participant() string { return l.participant }
func (l *Link) State() State        { return l.state }

// LocalDescription returns the description this side produced, or nil.
func (l *Link) LocalDescription() *webrtc.SessionDescription { return l.local }

// RemoteDescription returns the applied remote description, or nil.
func (l *Link) RemoteDescription() *webrtc.SessionDescription { return l.remote }

// PendingCandidates returns a copy of the candidates waiting for a remote
// description, in arrival order.
func (l *Link) PendingCandidates() []webrtc.ICECandidateInit {
	return append([]webrtc.ICECandidateInit(nil), l.pending...)
}

// TrackCount reports how many local tracks are attached.
func (l *Link) TrackCount() int { return len(l.tracks) }

func (l *Link) attach(track webrtc.TrackLocal) (bool, error) {
	if l.state == StateClosed {
		return false, ErrLinkClosed
	}
	if _, ok := l.tracks[track.ID()]; ok {
		return false, nil
	}
	if _, err := l.pc.AddTrack(track); err != nil {
		return false, err
	}
	l.tracks[track.ID()] = struct{}{}
	return true, nil
}

func (l *Link) setLocal(desc webrtc.SessionDescription) error {
	if l.state == StateClosed {
		return ErrLinkClosed
	}
	if err := l.pc.SetLocalDescription(desc); err != nil {
		return err
	}
	l.local = &desc
	if l.state == StateNew {
		l.state = StateNegotiating
	}
	return nil
}

// setRemote applies desc once. The connection is only touched when the link
// has no remote description yet, so a rejected description leaves the link
// exactly as it was.
func (l *Link) setRemote(desc webrtc.SessionDescription) error {
	if l.state == StateClosed {
		return ErrLinkClosed
	}
	if l.remote != nil {
		return ErrDuplicateRemoteDescription
	}
	if err := l.pc.SetRemoteDescription(desc); err != nil {
		return err
	}
	l.remote = &desc
	if l.state == StateNew {
		l.state = StateNegotiating
	}
	return nil
}

// addCandidate applies c, or queues it and reports ErrInvalidNegotiationState
// when no remote description exists yet.
func (l *Link) addCandidate(c webrtc.ICECandidateInit) error {
	if l.state == StateClosed {
		return ErrLinkClosed
	}
	if l.remote == nil {
		if len(l.pending) >= MaxPendingCandidates {
			return ErrCandidateQueueFull
		}
		l.pending = append(l.pending, c)
		return ErrInvalidNegotiationState
	}
	return l.pc.AddICECandidate(c)
}

// drain applies queued candidates in arrival order and returns how many the
// connection accepted.
func (l *Link) drain() int {
	if l.remote == nil || len(l.pending) == 0 {
		return 0
	}
	queued := l.pending
	l.pending = nil

	applied := 0
	for _, c := range queued {
		if err := l.pc.AddICECandidate(c); err != nil {
			slog.Warn("dropping queued candidate", "participant", l.participant, "err", err)
			continue
		}
		applied++
	}
	return applied
}

func (l *Link) close() error {
	if l.state == StateClosed {
		return nil
	}
	l.state = StateClosed
	l.pending = nil
	return l.pc.Close()
}
