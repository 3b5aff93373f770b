package chat

import (
	"sync"
	"time"
)

// DefaultCapacity bounds how many lines a transcript keeps.
const DefaultCapacity = 500

// Entry is one chat line.
type Entry struct {
	Nickname string
	Body     string
	Local    bool
	At       time.Time
}

// Transcript is a fixed-capacity log of chat entries. When full, Append
// overwrites the oldest entry. Safe for concurrent use.
type Transcript struct {
	mu    sync.RWMutex
	buf   []Entry
	head  int
	count int
}

// NewTranscript creates a transcript holding at most capacity entries.
func NewTranscript(capacity int) *Transcript {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Transcript{buf: make([]Entry, capacity)}
}

func (t *Transcript) Append(e Entry) {
	t.mu.Lock()
	idx := (t.head + t.count) % len(t.buf)
	t.buf[idx] = e
	if t.count == len(t.buf) {
		t.head = (t.head + 1) % len(t.buf)
	} else {
		t.count++
	}
	t.mu.Unlock()
}

// Entries returns a copy of the transcript, oldest first.
func (t *Transcript) Entries() []Entry {
	t.mu.RLock()
	out := make([]Entry, t.count)
	for i := 0; i < t.count; i++ {
		out[i] = t.buf[(t.head+i)%len(t.buf)]
	}
	t.mu.RUnlock()
	return out
}

func (t *Transcript) Len() int {
	t.mu.RLock()
	n := t.count
	t.mu.RUnlock()
	return n
}
