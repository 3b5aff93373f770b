package mesh

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidNegotiationState    = errors.New("invalid negotiation state")
	ErrNegotiationMalformed       = errors.New("malformed negotiation message")
	ErrDuplicateRemoteDescription = errors.New("remote description already applied")
	ErrLinkClosed                 = errors.New("link closed")
	ErrEngineClosed               = errors.New("negotiation engine closed")
	ErrCandidateQueueFull         = errors.New("too many candidates before a remote description")
)

// LinkError records the negotiation step that failed for one participant.
type LinkError struct {
	Op          string
	Participant string
	Err         error
	Details     string
}

func (e *LinkError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s %s: %v (%s)", e.Op, e.Participant, e.Err, e.Details)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Participant, e.Err)
}

func (e *LinkError) Unwrap() error {
	return e.Err
}

func linkError(op, participant string, err error) *LinkError {
	return &LinkError{Op: op, Participant: participant, Err: err}
}

func malformed(op, participant string, cause error) *LinkError {
	return &LinkError{Op: op, Participant: participant, Err: ErrNegotiationMalformed, Details: cause.Error()}
}
