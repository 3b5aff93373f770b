// Package meshtest provides an in-memory PeerConnection for negotiation
// tests that do not need a network.
package meshtest

import (
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/junnushon/voice-chat-5/internal/mesh"
)

// SDP returns a minimal session description body that parses cleanly.
func SDP(id string) string {
	return fmt.Sprintf("v=0\r\no=- %s 1 IN IP4 0.0.0.0\r\ns=-\r\nt=0 0\r\n", id)
}

// Offer and Answer build descriptions around SDP.
func Offer(id string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: SDP(id)}
}

func Answer(id string) webrtc.SessionDescription {
	return webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: SDP(id)}
}

var errNoRemote = errors.New("meshtest: remote description not set")

// PeerConnection records every call made by a Link.
type PeerConnection struct {
	Participant string

	mu         sync.Mutex
	tracks     []webrtc.TrackLocal
	recvOnly   int
	local      *webrtc.SessionDescription
	remote     *webrtc.SessionDescription
	candidates []webrtc.ICECandidateInit
	closed     bool

	// RemoteErr, when set, is returned by SetRemoteDescription.
	RemoteErr error

	onCandidate func(*webrtc.ICECandidate)
	onState     func(webrtc.PeerConnectionState)
	onTrack     func(*webrtc.TrackRemote, *webrtc.RTPReceiver)
}

var _ mesh.PeerConnection = (*PeerConnection)(nil)

func (p *PeerConnection) AddTrack(t webrtc.TrackLocal) (*webrtc.RTPSender, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.tracks = append(p.tracks, t)
	return nil, nil
}

func (p *PeerConnection) AddTransceiverFromKind(kind webrtc.RTPCodecType, init ...webrtc.RTPTransceiverInit) (*webrtc.RTPTransceiver, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if kind == webrtc.RTPCodecTypeAudio {
		p.recvOnly++
	}
	return nil, nil
}

func (p *PeerConnection) CreateOffer(*webrtc.OfferOptions) (webrtc.SessionDescription, error) {
	return Offer("offer-" + p.Participant), nil
}

func (p *PeerConnection) CreateAnswer(*webrtc.AnswerOptions) (webrtc.SessionDescription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil || p.remote.Type != webrtc.SDPTypeOffer {
		return webrtc.SessionDescription{}, errors.New("meshtest: no remote offer")
	}
	return Answer("answer-" + p.Participant), nil
}

func (p *PeerConnection) SetLocalDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.local = &d
	return nil
}

func (p *PeerConnection) SetRemoteDescription(d webrtc.SessionDescription) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.RemoteErr != nil {
		return p.RemoteErr
	}
	p.remote = &d
	return nil
}

func (p *PeerConnection) AddICECandidate(c webrtc.ICECandidateInit) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.remote == nil {
		return errNoRemote
	}
	p.candidates = append(p.candidates, c)
	return nil
}

func (p *PeerConnection) OnICECandidate(f func(*webrtc.ICECandidate)) {
	p.mu.Lock()
	p.onCandidate = f
	p.mu.Unlock()
}

func (p *PeerConnection) OnConnectionStateChange(f func(webrtc.PeerConnectionState)) {
	p.mu.Lock()
	p.onState = f
	p.mu.Unlock()
}

func (p *PeerConnection) OnTrack(f func(*webrtc.TrackRemote, *webrtc.RTPReceiver)) {
	p.mu.Lock()
	p.onTrack = f
	p.mu.Unlock()
}

func (p *PeerConnection) Close() error {
	p.mu.Lock()
	p.closed = true
	f := p.onState
	p.mu.Unlock()
	if f != nil {
		f(webrtc.PeerConnectionStateClosed)
	}
	return nil
}

// FireCandidate delivers a local candidate as pion would after gathering.
func (p *PeerConnection) FireCandidate(c *webrtc.ICECandidate) {
	p.mu.Lock()
	f := p.onCandidate
	p.mu.Unlock()
	if f != nil {
		f(c)
	}
}

// FireState delivers a connection state change.
func (p *PeerConnection) FireState(s webrtc.PeerConnectionState) {
	p.mu.Lock()
	f := p.onState
	p.mu.Unlock()
	if f != nil {
		f(s)
	}
}

func (p *PeerConnection) Tracks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.tracks)
}

func (p *PeerConnection) RecvOnly() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.recvOnly
}

func (p *PeerConnection) Local() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.local
}

func (p *PeerConnection) Remote() *webrtc.SessionDescription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remote
}

// Candidates returns the applied candidates in order.
func (p *PeerConnection) Candidates() []webrtc.ICECandidateInit {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]webrtc.ICECandidateInit(nil), p.candidates...)
}

func (p *PeerConnection) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Factory hands out fake connections and remembers every one it made.
type Factory struct {
	mu    sync.Mutex
	made  []*PeerConnection
	Err   error
	Setup func(*PeerConnection)
}

// New satisfies mesh.PeerFactory.
func (f *Factory) New(participant string) (mesh.PeerConnection, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Err != nil {
		return nil, f.Err
	}
	pc := &PeerConnection{Participant: participant}
	if f.Setup != nil {
		f.Setup(pc)
	}
	f.made = append(f.made, pc)
	return pc, nil
}

// Last returns the newest connection made for participant, or nil.
func (f *Factory) Last(participant string) *PeerConnection {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.made) - 1; i >= 0; i-- {
		if f.made[i].Participant == participant {
			return f.made[i]
		}
	}
	return nil
}

// Count returns how many connections were made.
func (f *Factory) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.made)
}

// Signaler records outbound negotiation messages.
type Signaler struct {
	mu           sync.Mutex
	Descriptions []Sent[webrtc.SessionDescription]
	Candidates   []Sent[webrtc.ICECandidateInit]
}

// Sent is one recorded outbound message.
type Sent[T any] struct {
	To      string
	Payload T
}

func (s *Signaler) SendDescription(to string, d webrtc.SessionDescription) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Descriptions = append(s.Descriptions, Sent[webrtc.SessionDescription]{To: to, Payload: d})
	return nil
}

func (s *Signaler) SendCandidate(to string, c webrtc.ICECandidateInit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Candidates = append(s.Candidates, Sent[webrtc.ICECandidateInit]{To: to, Payload: c})
	return nil
}
