package mesh_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/vnet"
	"github.com/pion/webrtc/v4"

	"github.com/junnushon/voice-chat-5/internal/mesh"
)

// side is one participant running its engine on a private loop goroutine.
type side struct {
	id     string
	engine *mesh.Engine
	tasks  chan func()
	states chan mesh.State
	done   chan struct{}
}

func (s *side) post(fn func()) {
	select {
	case s.tasks <- fn:
	case <-s.done:
	}
}

func (s *side) run() {
	for {
		select {
		case fn := <-s.tasks:
			fn()
		case <-s.done:
			return
		}
	}
}

// crossSignaler delivers messages to the other side's loop through JSON,
// the way the relay would.
type crossSignaler struct {
	from string
	to   func() *side
}

func (c crossSignaler) SendDescription(_ string, d webrtc.SessionDescription) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return err
	}
	peer := c.to()
	peer.post(func() { peer.engine.HandleDescription(c.from, raw) })
	return nil
}

func (c crossSignaler) SendCandidate(_ string, init webrtc.ICECandidateInit) error {
	raw, err := json.Marshal(init)
	if err != nil {
		return err
	}
	peer := c.to()
	peer.post(func() { peer.engine.HandleCandidate(c.from, raw) })
	return nil
}

func newSide(t *testing.T, id string, n *vnet.Net, peer func() *side) *side {
	t.Helper()
	factory, err := mesh.NewPeerFactory(mesh.Settings{
		Net:           n,
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("peer factory %s: %v", id, err)
	}

	s := &side{
		id:     id,
		tasks:  make(chan func(), 1024),
		states: make(chan mesh.State, 16),
		done:   make(chan struct{}),
	}
	s.engine = mesh.NewEngine(mesh.Options{
		SelfID:   id,
		Signaler: crossSignaler{from: id, to: peer},
		Factory:  factory,
		Post:     s.post,
		OnLinkState: func(_ string, st mesh.State) {
			select {
			case s.states <- st:
			default:
			}
		},
	})
	go s.run()
	t.Cleanup(func() {
		closed := make(chan struct{})
		s.post(func() {
			s.engine.Close()
			close(closed)
		})
		select {
		case <-closed:
		case <-time.After(5 * time.Second):
		}
		close(s.done)
	})
	return s
}

func TestMeshConnectsOverVirtualNetwork(t *testing.T) {
	if testing.Short() {
		t.Skip("vnet negotiation is slow")
	}

	router, err := vnet.NewRouter(&vnet.RouterConfig{
		CIDR:          "10.0.0.0/24",
		LoggerFactory: logging.NewDefaultLoggerFactory(),
	})
	if err != nil {
		t.Fatalf("new router: %v", err)
	}
	t.Cleanup(func() { _ = router.Stop() })

	netA, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.1"}})
	if err != nil {
		t.Fatalf("new net A: %v", err)
	}
	netB, err := vnet.NewNet(&vnet.NetConfig{StaticIPs: []string{"10.0.0.2"}})
	if err != nil {
		t.Fatalf("new net B: %v", err)
	}
	if err := router.AddNet(netA); err != nil {
		t.Fatalf("add net A: %v", err)
	}
	if err := router.AddNet(netB); err != nil {
		t.Fatalf("add net B: %v", err)
	}
	if err := router.Start(); err != nil {
		t.Fatalf("start router: %v", err)
	}

	var a, b *side
	a = newSide(t, "a", netA, func() *side { return b })
	b = newSide(t, "b", netB, func() *side { return a })

	track := newTrack(t, "mic-a")
	errs := make(chan error, 1)
	a.post(func() {
		if err := a.engine.AttachTracks(track); err != nil {
			errs <- err
			return
		}
		errs <- a.engine.Offer("b")
	})
	if err := <-errs; err != nil {
		t.Fatalf("offer: %v", err)
	}

	waitConnected := func(s *side) {
		t.Helper()
		deadline := time.After(20 * time.Second)
		for {
			select {
			case st := <-s.states:
				if st == mesh.StateConnected {
					return
				}
				if st == mesh.StateClosed {
					t.Fatalf("%s: link closed before connecting", s.id)
				}
			case <-deadline:
				t.Fatalf("%s: timed out waiting for connected", s.id)
			}
		}
	}
	waitConnected(a)
	waitConnected(b)
}
