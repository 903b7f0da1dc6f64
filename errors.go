package rtsock

import (
	"fmt"

	"github.com/pkg/errors"
)

// Connection errors
var (
	// ErrNotConnected is returned when an operation needs a connected socket.
	ErrNotConnected = errors.New("socket is not connected")
	// ErrClosed fails every pending call when the socket is closed by the caller.
	ErrClosed = errors.New("socket closed")
	// ErrDisconnected fails every pending call when the transport goes away.
	ErrDisconnected = errors.New("socket disconnected by transport")
	// ErrConnectFailed fails connect waiters when the transport closes before
	// reporting a connection.
	ErrConnectFailed = errors.New("connect failed")
)

// Protocol errors
var (
	// ErrMalformed is wrapped by every frame decode failure.
	ErrMalformed = errors.New("malformed envelope")
	// ErrFrameTooLarge is returned when an encoded envelope exceeds MaxFrameSize.
	ErrFrameTooLarge = errors.New("frame too large")
	// ErrUnexpectedReply is matched by UnexpectedReplyError.
	ErrUnexpectedReply = errors.New("unexpected reply shape")
	// ErrDuplicateCID means a correlation id was registered twice.
	ErrDuplicateCID = errors.New("duplicate correlation id")
)

// Server errors
var (
	ErrAlreadyRunning = errors.New("server already running")
)

// MaxFrameSize bounds a single encoded envelope.
const MaxFrameSize = 10 * 1024 * 1024

// UnexpectedReplyError reports a reply that resolved a call but does not
// carry the payload the call expects.
type UnexpectedReplyError struct {
	CID  string
	Want string
	Got  []string
}

func (e *UnexpectedReplyError) Error() string {
	if len(e.Got) == 0 {
		return fmt.Sprintf("reply for cid %s: want %q, got empty envelope", e.CID, e.Want)
	}
	return fmt.Sprintf("reply for cid %s: want %q, got %v", e.CID, e.Want, e.Got)
}

// Is lets errors.Is(err, ErrUnexpectedReply) match.
func (e *UnexpectedReplyError) Is(target error) bool {
	return target == ErrUnexpectedReply
}
