package mesh_test

import (
	"testing"

	"github.com/junnushon/voice-chat-5/internal/mesh"
	"github.com/junnushon/voice-chat-5/internal/mesh/meshtest"
)

func TestGetOrCreateReturnsSameLink(t *testing.T) {
	f := &meshtest.Factory{}
	e := mesh.NewEngine(mesh.Options{SelfID: "me", Signaler: &meshtest.Signaler{}, Factory: f.New})
	r := e.Registry()

	a, err := r.GetOrCreate("b")
	if err != nil {
		t.Fatal(err)
	}
	b, err := r.GetOrCreate("b")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Fatal("GetOrCreate returned two links for one participant")
	}
	if f.Count() != 1 || r.Len() != 1 {
		t.Fatalf("factory made %d, registry holds %d", f.Count(), r.Len())
	}
}

func TestCloseAllEmptiesRegistry(t *testing.T) {
	f := &meshtest.Factory{}
	e := mesh.NewEngine(mesh.Options{SelfID: "me", Signaler: &meshtest.Signaler{}, Factory: f.New})
	r := e.Registry()

	if n := r.CloseAll(); n != 0 {
		t.Fatalf("CloseAll on empty registry = %d", n)
	}

	var links []*mesh.Link
	for _, id := range []string{"c", "a", "b"} {
		l, err := r.GetOrCreate(id)
		if err != nil {
			t.Fatal(err)
		}
		links = append(links, l)
	}
	if got := r.IDs(); len(got) != 3 || got[0] != "a" || got[2] != "c" {
		t.Fatalf("IDs = %v, want sorted", got)
	}

	if n := r.CloseAll(); n != 3 {
		t.Fatalf("CloseAll = %d, want 3", n)
	}
	if r.Len() != 0 {
		t.Fatalf("registry still holds %v", r.IDs())
	}
	for _, l := range links {
		if l.State() != mesh.StateClosed {
			t.Errorf("link %s state = %s", l.Participant(), l.State())
		}
		if !f.Last(l.Participant()).Closed() {
			t.Errorf("connection for %s not closed", l.Participant())
		}
	}

	if r.Remove("a") {
		t.Fatal("Remove reported an erased link")
	}
}
