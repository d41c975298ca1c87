package miner

import (
	"sync"

	"equiminer/pkg/block"
)

// EquihashSolution is one solution that met the share target. Each is
// handed to the sink exactly once.
type EquihashSolution struct {
	Nonce      Nonce
	Solution   []byte
	Time       string
	Nonce1Size int
}

// Submission pairs a solution with the job it was found for
type Submission struct {
	JobID    string
	Solution EquihashSolution
}

// Params returns the mining.submit arguments
// [job_id, time, nonce2_hex, solution_hex] where solution_hex carries its
// compact size prefix.
func (s Submission) Params() []string {
	full := block.SubmissionHex(s.Solution.Nonce, s.Solution.Solution)
	n1 := s.Solution.Nonce1Size
	if n1 > 2*NonceSize {
		n1 = 2 * NonceSize
	}
	return []string{
		s.JobID,
		s.Solution.Time,
		full[n1 : 2*NonceSize],
		full[2*NonceSize:],
	}
}

// Sink receives solutions found by the miner
type Sink interface {
	// Submit forwards sol and reports whether it was taken
	Submit(sol EquihashSolution, jobID string) bool
}

// SinkFunc adapts a function to the Sink interface
type SinkFunc func(sol EquihashSolution, jobID string) bool

// Submit calls f
func (f SinkFunc) Submit(sol EquihashSolution, jobID string) bool { return f(sol, jobID) }

// ChannelSink queues submissions on a buffered channel. Submit never
// blocks; it reports false when the buffer is full or the sink is closed.
type ChannelSink struct {
	mutex  sync.RWMutex
	ch     chan Submission
	closed bool
}

// NewChannelSink returns a sink buffering up to size submissions
func NewChannelSink(size int) *ChannelSink {
	return &ChannelSink{ch: make(chan Submission, size)}
}

// Submit implements Sink
func (s *ChannelSink) Submit(sol EquihashSolution, jobID string) bool {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if s.closed {
		return false
	}
	select {
	case s.ch <- Submission{JobID: jobID, Solution: sol}:
		return true
	default:
		log.Warnf("Submission queue full, dropping solution for job %s", jobID)
		return false
	}
}

// C returns the receive side of the queue
func (s *ChannelSink) C() <-chan Submission {
	return s.ch
}

// Close closes the queue. Later submissions are refused.
func (s *ChannelSink) Close() {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	if !s.closed {
		s.closed = true
		close(s.ch)
	}
}
