package chat

import (
	"errors"
	"testing"
)

type recordingSender struct {
	sent []string
	err  error

	// seen is the transcript length observed at send time.
	seen       []int
	transcript *Transcript
}

func (r *recordingSender) SendChat(nickname, body string) error {
	r.sent = append(r.sent, nickname+": "+body)
	if r.transcript != nil {
		r.seen = append(r.seen, r.transcript.Len())
	}
	return r.err
}

func TestSendEchoesBeforeSending(t *testing.T) {
	tr := NewTranscript(10)
	sender := &recordingSender{transcript: tr}
	s := NewSink("alice", sender, tr)

	e, err := s.Send("  hello ")
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !e.Local || e.Body != "hello" || e.Nickname != "alice" {
		t.Fatalf("entry = %+v", e)
	}
	if len(sender.seen) != 1 || sender.seen[0] != 1 {
		t.Fatalf("transcript length at send = %v, want [1]", sender.seen)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "alice: hello" {
		t.Fatalf("sent = %v", sender.sent)
	}
}

func TestSendRejectsBlank(t *testing.T) {
	sender := &recordingSender{}
	s := NewSink("alice", sender, nil)

	for _, body := range []string{"", "   ", "\n\t"} {
		if _, err := s.Send(body); !errors.Is(err, ErrEmptyMessage) {
			t.Errorf("Send(%q) = %v, want ErrEmptyMessage", body, err)
		}
	}
	if len(sender.sent) != 0 || s.Transcript().Len() != 0 {
		t.Fatal("blank message was recorded or sent")
	}
}

func TestSendFailureKeepsEcho(t *testing.T) {
	sender := &recordingSender{err: errors.New("relay closed")}
	s := NewSink("alice", sender, nil)

	if _, err := s.Send("hi"); err == nil {
		t.Fatal("expected send error")
	}
	if s.Transcript().Len() != 1 {
		t.Fatal("echo dropped after send failure")
	}
	if len(sender.sent) != 1 {
		t.Fatalf("send attempted %d times, want 1", len(sender.sent))
	}
}

func TestReceiveKeepsArrivalOrder(t *testing.T) {
	s := NewSink("alice", &recordingSender{}, nil)

	s.Receive("bob", "one")
	s.Send("two")
	s.Receive("carol", "three\x1b[2J")

	got := s.Transcript().Entries()
	want := []Entry{
		{Nickname: "bob", Body: "one"},
		{Nickname: "alice", Body: "two", Local: true},
		{Nickname: "carol", Body: "three[2J"},
	}
	if len(got) != len(want) {
		t.Fatalf("got %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Nickname != want[i].Nickname || got[i].Body != want[i].Body || got[i].Local != want[i].Local {
			t.Errorf("entry %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestTranscriptOverwritesOldest(t *testing.T) {
	tr := NewTranscript(3)
	for _, b := range []string{"a", "b", "c", "d", "e"} {
		tr.Append(Entry{Body: b})
	}
	got := tr.Entries()
	if len(got) != 3 || got[0].Body != "c" || got[2].Body != "e" {
		t.Fatalf("entries = %+v, want c..e", got)
	}
}
