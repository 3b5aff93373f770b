package session

import (
	"errors"
	"testing"
)

func TestClosedEventSurvivesFullBuffer(t *testing.T) {
	s := &Session{events: make(chan Event, 3)}
	for i := 0; i < 5; i++ {
		s.emit(PresenceEvent{Count: i})
	}
	if len(s.events) != 3 {
		t.Fatalf("buffered %d events, want 3", len(s.events))
	}

	rejected := &JoinError{Reason: "Invalid password", Err: ErrJoinRejected}
	s.emitFinal(ClosedEvent{Err: rejected})
	close(s.events)

	var last Event
	n := 0
	for e := range s.events {
		last = e
		n++
	}
	if n != 3 {
		t.Fatalf("read %d events, want 3", n)
	}
	closed, ok := last.(ClosedEvent)
	if !ok {
		t.Fatalf("last event = %#v, want ClosedEvent", last)
	}
	if !errors.Is(closed.Err, ErrJoinRejected) || closed.Err.Error() != "Invalid password" {
		t.Fatalf("closed err = %v", closed.Err)
	}
}

func TestClosedEventWithRoom(t *testing.T) {
	s := &Session{events: make(chan Event, 3)}
	s.emit(PresenceEvent{Count: 1})
	s.emitFinal(ClosedEvent{})
	close(s.events)

	var got []Event
	for e := range s.events {
		got = append(got, e)
	}
	if len(got) != 2 {
		t.Fatalf("events = %#v, want presence then closed", got)
	}
	if _, ok := got[1].(ClosedEvent); !ok {
		t.Fatalf("last event = %#v", got[1])
	}
}
