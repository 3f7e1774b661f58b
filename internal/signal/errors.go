package signal

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrConnectionClosed is matched by every transport failure that ends a
// session. It is the expected way for a session to stop, not a fault.
var ErrConnectionClosed = errors.New("signal: connection closed")

// Cause classifies why a session loop stopped.
type Cause int

const (
	CausePeerClosed Cause = iota
	CauseWriteError
	CauseEncodeError
	CauseCancelled
)

var causeNames = map[Cause]string{
	CausePeerClosed:  "peer_closed",
	CauseWriteError:  "write_error",
	CauseEncodeError: "encode_error",
	CauseCancelled:   "cancelled",
}

func (c Cause) String() string {
	if s, ok := causeNames[c]; ok {
		return s
	}
	return "unknown"
}

func (c Cause) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

// Expected reports whether the cause is part of normal session teardown.
func (c Cause) Expected() bool {
	return c == CausePeerClosed || c == CauseCancelled
}

// CloseError is returned by a Sender when a message could not be delivered.
// It matches ErrConnectionClosed.
type CloseError struct {
	Cause Cause
	Err   error
}

func (e *CloseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("signal: connection closed (%s)", e.Cause)
	}
	return fmt.Sprintf("signal: connection closed (%s): %v", e.Cause, e.Err)
}

func (e *CloseError) Unwrap() error {
	return e.Err
}

func (e *CloseError) Is(target error) bool {
	return target == ErrConnectionClosed
}

// PeerClosed wraps err as a peer-initiated close.
func PeerClosed(err error) *CloseError {
	return &CloseError{Cause: CausePeerClosed, Err: err}
}

// WriteFailed wraps err as a local write failure.
func WriteFailed(err error) *CloseError {
	return &CloseError{Cause: CauseWriteError, Err: err}
}

// classify maps any send error onto a CloseError. Errors that do not carry
// a cause are treated as write failures.
func classify(err error) *CloseError {
	var ce *CloseError
	if errors.As(err, &ce) {
		return ce
	}
	return WriteFailed(err)
}
