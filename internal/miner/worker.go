package miner

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"equiminer/pkg/block"
	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
)

type workerState int32

const (
	stateWaiting workerState = iota
	stateSolving
	stateStopped
)

func (s workerState) String() string {
	switch s {
	case stateWaiting:
		return "waiting"
	case stateSolving:
		return "solving"
	case stateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// snapshot is a worker's private copy of the job it is mining
type snapshot struct {
	jobID      string
	time       string
	header     block.Header
	nonce1Size int
	inc        *uint256.Int
	target     Target
	start, end *uint256.Int
}

// worker drives one solver. The inbox (job) is a single slot overwritten
// on publish; the flags let an in-flight solve notice new work.
type worker struct {
	miner  *Miner
	pos    int
	solver core.Solver

	mutex sync.Mutex
	job   *Job

	workReady atomic.Bool
	cancel    atomic.Bool
	paused    atomic.Bool
	active    atomic.Bool

	state  atomic.Int32
	solves atomic.Uint64
	jobID  atomic.Value

	wake chan struct{}
	quit chan struct{}
}

func newWorker(m *Miner, pos int, s core.Solver) *worker {
	w := &worker{
		miner:  m,
		pos:    pos,
		solver: s,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
	w.active.Store(true)
	w.jobID.Store("")
	return w
}

// publish replaces the inbox. A nil job pauses the worker.
func (w *worker) publish(job *Job) {
	w.mutex.Lock()
	if job != nil {
		log.Debugf("miner#%d | Loading new job #%s", w.pos, job.ID)
		w.job = job
		w.paused.Store(false)
		w.workReady.Store(true)
		if job.Clean {
			w.cancel.Store(true)
		}
	} else {
		w.workReady.Store(false)
		w.cancel.Store(true)
		w.paused.Store(true)
	}
	w.mutex.Unlock()

	select {
	case w.wake <- struct{}{}:
	default:
	}
}

func (w *worker) deactivate() {
	w.active.Store(false)
	w.cancel.Store(true)
	close(w.quit)
}

func (w *worker) status() WorkerStatus {
	return WorkerStatus{
		Worker:     w.pos,
		Solver:     w.solver.Name(),
		Kind:       w.solver.Kind().String(),
		DeviceInfo: w.solver.DeviceInfo(),
		State:      workerState(w.state.Load()).String(),
		JobID:      w.jobID.Load().(string),
		Solves:     w.solves.Load(),
	}
}

func (w *worker) fault(op string, err error) {
	f := &BackendFault{Worker: w.pos, Solver: w.solver.Name(), Op: op, Err: err}
	log.Criticalf("%v", f)
	w.miner.config.Fatal(f)
}

func (w *worker) run() {
	defer w.miner.wg.Done()
	defer w.state.Store(int32(stateStopped))

	log.Infof("miner#%d | Starting thread #%d (%s) %s", w.pos, w.pos, w.solver.Name(), w.solver.DeviceInfo())
	if err := w.solver.Start(); err != nil {
		w.fault("start", err)
		return
	}

	for {
		snap, ok := w.waitForWork()
		if !ok {
			break
		}
		if !w.mine(snap) {
			break
		}
	}

	if err := w.solver.Stop(); err != nil {
		w.fault("stop", err)
		return
	}
	log.Infof("miner#%d | Thread #%d ended (%s)", w.pos, w.pos, w.solver.Name())
}

// waitForWork blocks until a job is ready or the worker is deactivated.
// Taking the snapshot and clearing workReady and cancel happen under the
// same lock publish uses, so no publication is lost in between.
func (w *worker) waitForWork() (*snapshot, bool) {
	w.state.Store(int32(stateWaiting))
	timer := time.NewTimer(w.miner.config.IdlePoll)
	defer timer.Stop()

	for {
		if !w.active.Load() {
			return nil, false
		}

		w.mutex.Lock()
		if w.workReady.Load() && w.job != nil {
			w.workReady.Store(false)
			w.cancel.Store(false)
			snap := w.snapshotLocked()
			w.mutex.Unlock()
			return snap, true
		}
		w.mutex.Unlock()

		select {
		case <-w.wake:
		case <-w.quit:
			return nil, false
		case <-timer.C:
			timer.Reset(w.miner.config.IdlePoll)
		}
	}
}

func (w *worker) snapshotLocked() *snapshot {
	job := w.job
	start, end := WorkerNonceRange(job.Header.Nonce, w.pos)
	header := job.Header
	header.Solution = nil
	return &snapshot{
		jobID:      job.ID,
		time:       job.Time,
		header:     header,
		nonce1Size: job.Nonce1Size,
		inc:        new(uint256.Int).Set(job.Nonce2Inc),
		target:     job.Target,
		start:      start,
		end:        end,
	}
}

// mine runs solve attempts over the worker's nonce range until the range
// is exhausted, new work arrives or mining pauses. It returns false when
// the worker must exit.
func (w *worker) mine(snap *snapshot) bool {
	w.state.Store(int32(stateSolving))
	w.jobID.Store(snap.jobID)

	input := snap.header.Input()
	nonce := new(uint256.Int).Set(snap.start)
	speed := w.miner.speed

	for {
		if !w.active.Load() {
			return false
		}

		wire := NonceFromInt(nonce)
		log.Tracef("miner#%d | Running Equihash solver with nonce %s", w.pos, wire.Hex())

		onSolution := func(indices []uint32, bitLen int, packed []byte) {
			w.solutionFound(snap, wire, indices, bitLen, packed)
		}
		w.solves.Add(1)
		if err := w.solver.Solve(input, wire[:], w.cancel.Load, onSolution, speed.AddHash); err != nil {
			w.fault("solve", err)
			return false
		}

		nonce.Add(nonce, snap.inc)
		if nonce.Eq(snap.end) {
			log.Debugf("miner#%d | Nonce range exhausted for job #%s", w.pos, snap.jobID)
			return true
		}
		if w.workReady.Load() {
			log.Debugf("miner#%d | New work received, dropping current work", w.pos)
			return true
		}
		if w.paused.Load() {
			log.Debugf("miner#%d | Mining paused", w.pos)
			return true
		}
	}
}

// solutionFound encodes one structural solution, checks the header hash
// against the snapshotted target and forwards it when it is below.
func (w *worker) solutionFound(snap *snapshot, nonce Nonce, indices []uint32, bitLen int, packed []byte) {
	p := w.miner.config.Params

	var sol []byte
	if packed != nil {
		sol = make([]byte, p.SolutionWidth())
		copy(sol, packed)
	} else {
		var err error
		sol, err = equihash.MinimalFromIndices(indices, bitLen)
		if err != nil {
			log.Errorf("miner#%d | Encoding solution: %v", w.pos, err)
			return
		}
	}
	w.miner.speed.AddSolution()

	header := snap.header
	header.Nonce = nonce
	header.Solution = sol
	hash := header.Hash()

	log.Tracef("miner#%d | Checking solution against target...", w.pos)
	if !snap.target.Accepts(hash[:]) {
		log.Tracef("miner#%d | Hash of header was larger than target", w.pos)
		return
	}

	log.Debugf("miner#%d | Found a valid solution for job #%s", w.pos, snap.jobID)
	w.miner.submit(EquihashSolution{
		Nonce:      nonce,
		Solution:   sol,
		Time:       snap.time,
		Nonce1Size: snap.nonce1Size,
	}, snap.jobID, w.pos)
}
