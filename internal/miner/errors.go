package miner

import (
	"fmt"
)

// ProtocolError reports malformed job parameters from the job source. The
// offending job is dropped and the previous job stays active.
type ProtocolError struct {
	Op      string
	Message string
	Err     error
}

func (e *ProtocolError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("miner: %s: %s: %v", e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("miner: %s: %s", e.Op, e.Message)
}

func (e *ProtocolError) Unwrap() error { return e.Err }

func protocolError(op, msg string, err error) error {
	return &ProtocolError{Op: op, Message: msg, Err: err}
}

// BackendFault reports a runtime failure raised by a solver. A faulting
// backend cannot be trusted with further work.
type BackendFault struct {
	Worker int
	Solver string
	Op     string
	Err    error
}

func (e *BackendFault) Error() string {
	return fmt.Sprintf("miner#%d | solver %s failed in %s: %v", e.Worker, e.Solver, e.Op, e.Err)
}

func (e *BackendFault) Unwrap() error { return e.Err }
