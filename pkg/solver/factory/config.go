package factory

import (
	"fmt"

	"equiminer/pkg/equihash"
)

// CUDADevice selects one GPU and its launch geometry
type CUDADevice struct {
	ID              int `json:"id"`
	Blocks          int `json:"blocks"`
	ThreadsPerBlock int `json:"threads_per_block"`
}

// SolverConfig contains configuration for solver generation
type SolverConfig struct {
	// Equihash parameters
	N uint32 `json:"n"`
	K uint32 `json:"k"`

	// Number of CPU solvers; negative means one per logical CPU
	CPUThreads int `json:"cpu_threads"`

	// Registered method names used for each device class
	CPUMethod  string `json:"cpu_method"`
	CUDAMethod string `json:"cuda_method"`

	// GPUs to drive, generated before any CPU solver
	CUDADevices []CUDADevice `json:"cuda_devices"`
}

// DefaultSolverConfig returns a CPU-only configuration for (210, 9)
func DefaultSolverConfig() *SolverConfig {
	return &SolverConfig{
		N:          equihash.DefaultParams.N,
		K:          equihash.DefaultParams.K,
		CPUThreads: -1,
		CPUMethod:  "wagner",
		CUDAMethod: "cuda",
	}
}

// Params validates and returns the configured Equihash parameters
func (c *SolverConfig) Params() (equihash.Params, error) {
	p, err := equihash.NewParams(c.N, c.K)
	if err != nil {
		return equihash.Params{}, fmt.Errorf("solver config: %w", err)
	}
	return p, nil
}
