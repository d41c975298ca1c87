package journal

import (
	"equiminer/internal/miner"
)

// minedPrefix keeps miner-side keys apart from pool share keys in the
// same bucket.
const minedPrefix = "mined/"

// Sink journals every solution before handing it to the next sink. A
// solution whose nonce and time were already journaled is dropped, so a
// restarted miner never forwards the same share twice.
type Sink struct {
	journal *Journal
	next    miner.Sink
}

// NewSink wraps next. next may be nil, in which case solutions are only
// journaled.
func NewSink(j *Journal, next miner.Sink) *Sink {
	return &Sink{journal: j, next: next}
}

// Submit implements miner.Sink
func (s *Sink) Submit(sol miner.EquihashSolution, jobID string) bool {
	sub := miner.Submission{JobID: jobID, Solution: sol}
	seq, fresh, err := s.journal.RegisterAndAppend(minedPrefix+sol.Nonce.Hex()+sol.Time, sub)
	if err != nil {
		log.Errorf("Journal: %v", err)
		return false
	}
	if !fresh {
		log.Warnf("Dropping duplicate solution for job %s", jobID)
		return false
	}
	log.Debugf("Journaled solution #%d for job %s", seq, jobID)

	if s.next == nil {
		return true
	}
	return s.next.Submit(sol, jobID)
}
