package core

import (
	"fmt"
)

// Kind identifies the class of device a solver runs on. Workers are started
// in ascending Kind order.
type Kind int

const (
	// KindCPU is a host CPU solver
	KindCPU Kind = iota
	// KindCUDA is an NVIDIA GPU solver
	KindCUDA
)

func (k Kind) String() string {
	switch k {
	case KindCPU:
		return "CPU"
	case KindCUDA:
		return "CUDA"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// CancelFunc reports whether the current solve call should be abandoned.
// Solvers must poll it at least between independent phases of their search.
type CancelFunc func() bool

// SolutionFunc receives one structural solution. Either indices holds the
// raw index tuple and packed is nil, or packed holds an already minimal
// encoded solution. bitLen is the collision bit length the indices were
// produced with.
type SolutionFunc func(indices []uint32, bitLen int, packed []byte)

// HashFunc is invoked once per base hash unit processed. It must not block.
type HashFunc func()

// Solver defines the interface every Equihash solver backend must follow
type Solver interface {
	// Name returns the human-readable name of the solver
	Name() string

	// DeviceInfo describes the device the solver is bound to
	DeviceInfo() string

	// Kind returns the device class used for start ordering
	Kind() Kind

	// Start performs any necessary setup before the first Solve
	Start() error

	// Stop releases the solver's resources
	Stop() error

	// Solve searches for solutions of header || nonce. It returns when the
	// search space is exhausted or cancel reports true; a non-nil error is a
	// backend failure.
	Solve(header, nonce []byte, cancel CancelFunc, onSolution SolutionFunc, onHash HashFunc) error
}
