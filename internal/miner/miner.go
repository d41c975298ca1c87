package miner

import (
	"os"
	"sync"
	"time"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
)

// Version is reported in the user agent
const Version = "0.4.0"

// DefaultIdlePoll bounds how long an idle worker sleeps before rechecking
// its active flag.
const DefaultIdlePoll = time.Second

// Config contains the miner's collaborators and tunables
type Config struct {
	// Params must match the solvers' parameters
	Params equihash.Params

	// Sink receives every solution below the share target
	Sink Sink

	// Speed is shared with reporting; a fresh one is created when nil
	Speed *Speed

	// IdlePoll is the idle wait upper bound; DefaultIdlePoll when zero
	IdlePoll time.Duration

	// Fatal is called with a *BackendFault when a solver fails. The
	// default logs and exits the process with status 1.
	Fatal func(error)
}

// Miner owns one worker per solver and broadcasts jobs to them
type Miner struct {
	config  Config
	solvers []core.Solver
	speed   *Speed

	mutex       sync.Mutex
	serverNonce *ServerNonce
	current     *Job
	workers     []*worker
	wg          sync.WaitGroup
}

// New creates a miner driving solvers. The miner does not start until
// Start is called.
func New(solvers []core.Solver, config Config) *Miner {
	if config.Params == (equihash.Params{}) {
		config.Params = equihash.DefaultParams
	}
	if config.Speed == nil {
		config.Speed = NewSpeed()
	}
	if config.IdlePoll <= 0 {
		config.IdlePoll = DefaultIdlePoll
	}
	if config.Fatal == nil {
		config.Fatal = func(err error) {
			log.Criticalf("Terminating: %v", err)
			os.Exit(1)
		}
	}
	s := make([]core.Solver, len(solvers))
	copy(s, solvers)
	return &Miner{
		config:  config,
		solvers: s,
		speed:   config.Speed,
	}
}

// UserAgent identifies the miner to the pool
func (m *Miner) UserAgent() string {
	return "equiminer/" + Version
}

// Speed returns the shared counters
func (m *Miner) Speed() *Speed {
	return m.speed
}

// Params returns the configured Equihash parameters
func (m *Miner) Params() equihash.Params {
	return m.config.Params
}

// Start launches one worker per solver, CPU solvers first, and resets the
// speed counters. A running miner is stopped first.
func (m *Miner) Start() {
	m.Stop()

	m.mutex.Lock()
	defer m.mutex.Unlock()

	core.SortByKind(m.solvers)
	m.speed.Reset()
	m.workers = make([]*worker, len(m.solvers))
	for i, s := range m.solvers {
		m.workers[i] = newWorker(m, i, s)
	}
	for _, w := range m.workers {
		m.wg.Add(1)
		go w.run()
	}
	if m.current != nil {
		for _, w := range m.workers {
			w.publish(m.current)
		}
	}
	log.Infof("Started %d worker(s)", len(m.workers))
}

// Stop deactivates every worker, cancels in-flight solves and waits for
// the workers to stop their solvers.
func (m *Miner) Stop() {
	m.mutex.Lock()
	workers := m.workers
	m.workers = nil
	m.mutex.Unlock()

	if len(workers) == 0 {
		return
	}
	for _, w := range workers {
		w.deactivate()
	}
	m.wg.Wait()
	log.Infof("Stopped %d worker(s)", len(workers))
}

// IsMining reports whether workers are running
func (m *Miner) IsMining() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.workers) > 0
}

// WorkerCount returns the number of running workers
func (m *Miner) WorkerCount() int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.workers)
}

// SetServerNonce installs the pool's nonce1. Jobs parsed afterwards use it.
func (m *Miner) SetServerNonce(s string) error {
	sn, err := ParseServerNonce(s)
	if err != nil {
		return err
	}
	log.Infof("Extranonce is %s", s)

	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.serverNonce = &sn
	return nil
}

// ServerNonce returns the current nonce1, if any
func (m *Miner) ServerNonce() (ServerNonce, bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.serverNonce == nil {
		return ServerNonce{}, false
	}
	return *m.serverNonce, true
}

// SetJob broadcasts job to every worker. A nil job pauses mining without
// stopping the workers.
func (m *Miner) SetJob(job *Job) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.current = job
	if job == nil {
		log.Infof("No work, pausing")
	} else {
		log.Debugf("New %v", job)
	}
	for _, w := range m.workers {
		w.publish(job)
	}
}

// CurrentJob returns the last published job
func (m *Miner) CurrentJob() *Job {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.current
}

// Notify parses mining.notify params and publishes the job. On error the
// previous job stays active.
func (m *Miner) Notify(params []interface{}) (*Job, error) {
	job, err := m.ParseJob(params)
	if err != nil {
		log.Errorf("Rejecting job: %v", err)
		return nil, err
	}
	m.SetJob(job)
	return job, nil
}

// AcceptedSolution records a pool acceptance
func (m *Miner) AcceptedSolution(stale bool) {
	m.speed.AddAccepted(stale)
}

// RejectedSolution records a pool rejection
func (m *Miner) RejectedSolution(stale bool) {
	m.speed.AddRejected(stale)
}

// FailedSolution records a submission that failed in transit
func (m *Miner) FailedSolution() {
	m.speed.AddFailed()
}

// WorkerStatus describes one worker for reporting
type WorkerStatus struct {
	Worker     int    `json:"worker"`
	Solver     string `json:"solver"`
	Kind       string `json:"kind"`
	DeviceInfo string `json:"device_info"`
	State      string `json:"state"`
	JobID      string `json:"job_id,omitempty"`
	Solves     uint64 `json:"solves"`
}

// Workers returns the status of every running worker
func (m *Miner) Workers() []WorkerStatus {
	m.mutex.Lock()
	workers := m.workers
	m.mutex.Unlock()

	out := make([]WorkerStatus, 0, len(workers))
	for _, w := range workers {
		out = append(out, w.status())
	}
	return out
}

func (m *Miner) submit(sol EquihashSolution, jobID string, pos int) {
	if m.config.Sink == nil {
		log.Warnf("miner#%d | No submission sink, dropping solution for job %s", pos, jobID)
		return
	}
	if !m.config.Sink.Submit(sol, jobID) {
		log.Warnf("miner#%d | Sink refused solution for job %s", pos, jobID)
	}
	m.speed.AddShare()
}
