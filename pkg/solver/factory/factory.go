package factory

import (
	"fmt"
	"runtime"
	"strings"
	"sync"

	psutil "github.com/shirou/gopsutil/v3/cpu"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
	"equiminer/pkg/solver/methods/wagner"
)

// Constructor builds one solver instance. slot is the CPU thread number for
// CPU solvers and the device entry for CUDA solvers.
type Constructor func(p equihash.Params, slot int, dev *CUDADevice) (core.Solver, error)

// SolverFactory creates solver instances and owns them for their whole
// lifetime. The generated slice doubles as the arena indexed by worker id.
type SolverFactory struct {
	config       *SolverConfig
	constructors map[string]Constructor

	mutex   sync.Mutex
	solvers []core.Solver
}

// NewSolverFactory creates a factory with the built-in CPU method registered
func NewSolverFactory(config *SolverConfig) *SolverFactory {
	if config == nil {
		config = DefaultSolverConfig()
	}
	f := &SolverFactory{
		config:       config,
		constructors: make(map[string]Constructor),
	}
	f.Register("wagner", func(p equihash.Params, slot int, _ *CUDADevice) (core.Solver, error) {
		return wagner.New(p, slot), nil
	})
	return f
}

// Register makes a solver method available by name. A later registration
// replaces an earlier one.
func (f *SolverFactory) Register(name string, ctor Constructor) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.constructors[name] = ctor
}

// Config returns the factory configuration
func (f *SolverFactory) Config() *SolverConfig {
	return f.config
}

// logicalCPUs reports the number of logical CPUs, at least one
func logicalCPUs() int {
	if n, err := psutil.Counts(true); err == nil && n > 0 {
		return n
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return 1
}

// GenerateSolvers creates every configured solver: CUDA devices first, then
// CPU threads. A negative CPU thread count means one per logical CPU, less
// one when GPU solvers exist. Previously generated solvers are released.
// The result is in start order (CPU first), the order Miner.Start numbers
// its workers in.
func (f *SolverFactory) GenerateSolvers() ([]core.Solver, error) {
	p, err := f.config.Params()
	if err != nil {
		return nil, err
	}
	if err := f.ClearAll(); err != nil {
		log.Warnf("Releasing previous solvers: %v", err)
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	var generated []core.Solver
	if len(f.config.CUDADevices) > 0 {
		ctor, ok := f.constructors[f.config.CUDAMethod]
		if !ok {
			return nil, fmt.Errorf("no solver registered for cuda method %q", f.config.CUDAMethod)
		}
		for i := range f.config.CUDADevices {
			dev := f.config.CUDADevices[i]
			s, err := ctor(p, dev.ID, &dev)
			if err != nil {
				return nil, fmt.Errorf("cuda device %d: %w", dev.ID, err)
			}
			generated = append(generated, s)
		}
	}

	threads := f.config.CPUThreads
	if threads < 0 {
		threads = logicalCPUs()
		if len(generated) > 0 {
			threads--
		}
	}
	if threads > 0 {
		ctor, ok := f.constructors[f.config.CPUMethod]
		if !ok {
			return nil, fmt.Errorf("no solver registered for cpu method %q", f.config.CPUMethod)
		}
		for i := 0; i < threads; i++ {
			s, err := ctor(p, i, nil)
			if err != nil {
				return nil, fmt.Errorf("cpu thread %d: %w", i, err)
			}
			generated = append(generated, s)
		}
	}

	log.Infof("Generated %d solver(s) for %v: %d cuda, %d cpu",
		len(generated), p, len(f.config.CUDADevices), threads)

	// The arena is kept in start order so a worker id indexes its solver.
	core.SortByKind(generated)
	f.solvers = generated

	out := make([]core.Solver, len(generated))
	copy(out, generated)
	return out, nil
}

// Solver returns the solver driven by worker id, or nil
func (f *SolverFactory) Solver(id int) core.Solver {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	if id < 0 || id >= len(f.solvers) {
		return nil
	}
	return f.solvers[id]
}

// Solvers returns all generated solvers in start order
func (f *SolverFactory) Solvers() []core.Solver {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	out := make([]core.Solver, len(f.solvers))
	copy(out, f.solvers)
	return out
}

// ClearAll stops and forgets every generated solver
func (f *SolverFactory) ClearAll() error {
	f.mutex.Lock()
	solvers := f.solvers
	f.solvers = nil
	f.mutex.Unlock()

	var errs []string
	for i, s := range solvers {
		if err := s.Stop(); err != nil {
			errs = append(errs, fmt.Sprintf("#%d %s: %v", i, s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// DetectionReport describes the generated solvers in start order
type DetectionReport struct {
	Params     string          `json:"params"`
	CPUThreads int             `json:"cpu_threads"`
	CUDACount  int             `json:"cuda_count"`
	Solvers    []*SolverStatus `json:"solvers"`
}

// SolverStatus describes a single generated solver
type SolverStatus struct {
	Worker     int    `json:"worker"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	DeviceInfo string `json:"device_info"`
}

// GetDetectionReport returns the generated solvers ordered as the miner
// starts them
func (f *SolverFactory) GetDetectionReport() *DetectionReport {
	solvers := f.Solvers()
	core.SortByKind(solvers)

	report := &DetectionReport{
		Params:  fmt.Sprintf("Equihash(%d,%d)", f.config.N, f.config.K),
		Solvers: make([]*SolverStatus, 0, len(solvers)),
	}
	for i, s := range solvers {
		switch s.Kind() {
		case core.KindCPU:
			report.CPUThreads++
		case core.KindCUDA:
			report.CUDACount++
		}
		report.Solvers = append(report.Solvers, &SolverStatus{
			Worker:     i,
			Name:       s.Name(),
			Kind:       s.Kind().String(),
			DeviceInfo: s.DeviceInfo(),
		})
	}
	return report
}
