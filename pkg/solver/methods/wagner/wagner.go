// Package wagner is a reference CPU solver running Wagner's generalized
// birthday algorithm directly on equihash.StepRow values. It favours clarity
// over memory footprint and is meant for small parameter sets, tests and
// benchmarks.
package wagner

import (
	"bytes"
	"fmt"
	"sort"
	"sync"

	psutil "github.com/shirou/gopsutil/v3/cpu"
	psmem "github.com/shirou/gopsutil/v3/mem"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
)

// maxRowsFactor bounds each round's row list at maxRowsFactor times the
// initial list size.
const maxRowsFactor = 4

// cancelStride is how many leaves are hashed between cancel polls.
const cancelStride = 4096

// Method implements core.Solver with a straightforward sort-and-pair search
type Method struct {
	params equihash.Params
	thread int

	mutex   sync.Mutex
	started bool
	device  string
}

// New creates a solver for p bound to CPU thread number thread.
func New(p equihash.Params, thread int) *Method {
	return &Method{params: p, thread: thread}
}

// Name returns the human-readable name of the solver
func (m *Method) Name() string {
	return "wagner"
}

// Kind reports KindCPU
func (m *Method) Kind() core.Kind {
	return core.KindCPU
}

// DeviceInfo describes the host CPU and memory
func (m *Method) DeviceInfo() string {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.device == "" {
		m.device = describeHost(m.thread)
	}
	return m.device
}

func describeHost(thread int) string {
	model := "unknown CPU"
	if infos, err := psutil.Info(); err == nil && len(infos) > 0 && infos[0].ModelName != "" {
		model = infos[0].ModelName
	}
	desc := fmt.Sprintf("%s, thread #%d", model, thread)
	if vm, err := psmem.VirtualMemory(); err == nil {
		desc += fmt.Sprintf(", %d MiB RAM", vm.Total>>20)
	}
	return desc
}

// Start validates the parameters and marks the solver ready
func (m *Method) Start() error {
	if err := m.params.Validate(); err != nil {
		return fmt.Errorf("wagner: %w", err)
	}
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.started = true
	return nil
}

// Stop marks the solver stopped. Stop is idempotent.
func (m *Method) Stop() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.started = false
	return nil
}

func (m *Method) isStarted() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.started
}

// Solve runs one full search over header || nonce.
func (m *Method) Solve(header, nonce []byte, cancel core.CancelFunc, onSolution core.SolutionFunc, onHash core.HashFunc) error {
	if !m.isStarted() {
		return fmt.Errorf("wagner: solver #%d not started", m.thread)
	}
	if cancel == nil {
		cancel = func() bool { return false }
	}

	p := m.params
	preimage := make([]byte, 0, len(header)+len(nonce))
	preimage = append(preimage, header...)
	preimage = append(preimage, nonce...)
	hasher := equihash.NewHasher(p, preimage)

	if onHash != nil {
		onHash()
	}

	n := p.InitialListSize()
	rows := make([]equihash.StepRow, 0, n)
	for i := 0; i < n; i++ {
		if i%cancelStride == 0 && cancel() {
			return nil
		}
		row, err := hasher.Row(uint32(i))
		if err != nil {
			return fmt.Errorf("wagner: hashing index %d: %w", i, err)
		}
		rows = append(rows, row)
	}

	cByteLen := p.CollisionByteLength()
	limit := maxRowsFactor * n
	for round := 1; round < int(p.K); round++ {
		if cancel() {
			return nil
		}
		rows = collide(rows, cByteLen, cByteLen, limit, func(merged equihash.StepRow) bool {
			return !merged.IsZero(len(merged.Hash))
		})
		log.Tracef("wagner#%d | round %d: %d rows", m.thread, round, len(rows))
		if len(rows) == 0 {
			return nil
		}
	}

	if cancel() {
		return nil
	}

	// The last round needs a collision on both remaining digits.
	seen := make(map[string]struct{})
	final := collide(rows, 2*cByteLen, cByteLen, limit, func(merged equihash.StepRow) bool {
		return merged.IsZero(len(merged.Hash))
	})
	for _, sol := range final {
		key := string(sol.Indices)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		if onSolution != nil {
			onSolution(sol.IndexList(), p.CollisionBitLength(), nil)
		}
	}
	return nil
}

// collide sorts rows by their first l hash bytes and merges every pair with
// matching prefix and disjoint indices, dropping trim leading bytes from the
// merged hash. keep filters merged rows.
func collide(rows []equihash.StepRow, l, trim, limit int, keep func(equihash.StepRow) bool) []equihash.StepRow {
	sort.Slice(rows, func(a, b int) bool {
		return bytes.Compare(rows[a].Hash[:l], rows[b].Hash[:l]) < 0
	})

	var next []equihash.StepRow
	for i := 0; i < len(rows); {
		j := i + 1
		for j < len(rows) && rows[j].HasCollision(rows[i], l) {
			j++
		}
		for a := i; a < j; a++ {
			for b := a + 1; b < j; b++ {
				if !equihash.DistinctIndices(rows[a], rows[b]) {
					continue
				}
				merged := equihash.MergeRows(rows[a], rows[b], trim)
				if !keep(merged) {
					continue
				}
				next = append(next, merged)
				if len(next) >= limit {
					return next
				}
			}
		}
		i = j
	}
	return next
}
