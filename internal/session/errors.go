package session

import (
	"errors"
	"fmt"
)

var (
	ErrJoinRejected     = errors.New("join rejected")
	ErrRelayUnreachable = errors.New("relay unreachable")
	ErrSessionClosed    = errors.New("session closed")
)

// JoinError is a fatal join failure. Reason is the relay's rejection text,
// shown to the user as is.
type JoinError struct {
	Reason string
	Err    error
}

func (e *JoinError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return fmt.Sprintf("join: %v", e.Err)
}

func (e *JoinError) Unwrap() error {
	return e.Err
}
