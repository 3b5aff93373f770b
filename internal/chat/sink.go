// Package chat keeps the room transcript and sends chat lines over the
// relay with optimistic local echo.
package chat

import (
	"errors"
	"log/slog"
	"strings"
	"time"
	"unicode"
)

var ErrEmptyMessage = errors.New("empty chat message")

// Sender delivers a chat line to the room.
type Sender interface {
	SendChat(nickname, body string) error
}

// Sink appends local and remote chat lines to a transcript. Outbound lines
// are recorded before they are sent and are never retried.
type Sink struct {
	nickname   string
	sender     Sender
	transcript *Transcript
	now        func() time.Time
}

func NewSink(nickname string, sender Sender, transcript *Transcript) *Sink {
	if transcript == nil {
		transcript = NewTranscript(DefaultCapacity)
	}
	return &Sink{
		nickname:   nickname,
		sender:     sender,
		transcript: transcript,
		now:        time.Now,
	}
}

func (s *Sink) Nickname() string        { return s.nickname }
func (s *Sink) Transcript() *Transcript { return s.transcript }

// Send echoes body into the transcript and then sends it. The returned entry
// is the echoed line; it stays in the transcript even if sending fails.
func (s *Sink) Send(body string) (Entry, error) {
	body = clean(body)
	if body == "" {
		return Entry{}, ErrEmptyMessage
	}

	e := Entry{Nickname: s.nickname, Body: body, Local: true, At: s.now()}
	s.transcript.Append(e)

	if err := s.sender.SendChat(s.nickname, body); err != nil {
		slog.Warn("chat send failed", "err", err)
		return e, err
	}
	return e, nil
}

// Receive records an inbound line in arrival order.
func (s *Sink) Receive(nickname, body string) Entry {
	e := Entry{
		Nickname: clean(nickname),
		Body:     clean(body),
		At:       s.now(),
	}
	s.transcript.Append(e)
	return e
}

// clean trims whitespace and drops control characters so remote text cannot
// drive the terminal.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			if r == '\t' {
				return ' '
			}
			return -1
		}
		return r
	}, s)
	return strings.TrimSpace(s)
}
