package eventprocessor

import (
	"errors"
	"fmt"

	"github.com/KarelPeeters/wtf/internal/proctree"
	"github.com/KarelPeeters/wtf/internal/ptrace"
)

// ErrProcessVanished is reported when a tracee disappears between a stop and
// the request that should act on it.
var ErrProcessVanished = errors.New("process vanished")

// TraceProtocolError is a stop that could not be interpreted. The affected
// process is marked degraded and tracing continues.
type TraceProtocolError struct {
	Key    proctree.Key
	Stop   ptrace.Stop
	Reason string
	Err    error
}

func (e *TraceProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("trace protocol error on %s at %s: %s: %v", e.Key, e.Stop, e.Reason, e.Err)
	}
	return fmt.Sprintf("trace protocol error on %s at %s: %s", e.Key, e.Stop, e.Reason)
}

func (e *TraceProtocolError) Unwrap() error {
	return e.Err
}
