package miner

import (
	"context"
	"sync/atomic"
	"time"
)

// Speed holds the process-wide mining counters. All methods are safe for
// concurrent use.
type Speed struct {
	start atomic.Int64

	hashes    atomic.Uint64
	solutions atomic.Uint64
	shares    atomic.Uint64
	accepted  atomic.Uint64
	rejected  atomic.Uint64
	stale     atomic.Uint64
	failed    atomic.Uint64
}

// NewSpeed returns zeroed counters starting now.
func NewSpeed() *Speed {
	s := &Speed{}
	s.Reset()
	return s
}

// Reset zeroes every counter and restarts the clock.
func (s *Speed) Reset() {
	s.hashes.Store(0)
	s.solutions.Store(0)
	s.shares.Store(0)
	s.accepted.Store(0)
	s.rejected.Store(0)
	s.stale.Store(0)
	s.failed.Store(0)
	s.start.Store(time.Now().UnixNano())
}

// AddHash counts one base hash unit processed by a solver.
func (s *Speed) AddHash() { s.hashes.Add(1) }

// AddSolution counts one structural solution.
func (s *Speed) AddSolution() { s.solutions.Add(1) }

// AddShare counts one solution that met the target.
func (s *Speed) AddShare() { s.shares.Add(1) }

// AddAccepted counts a share the pool accepted.
func (s *Speed) AddAccepted(stale bool) {
	s.accepted.Add(1)
	if stale {
		s.stale.Add(1)
	}
}

// AddRejected counts a share the pool rejected.
func (s *Speed) AddRejected(stale bool) {
	s.rejected.Add(1)
	if stale {
		s.stale.Add(1)
	}
}

// AddFailed counts a submission that never got an answer.
func (s *Speed) AddFailed() { s.failed.Add(1) }

// SpeedSnapshot is a point-in-time copy of the counters
type SpeedSnapshot struct {
	Elapsed   time.Duration `json:"elapsed"`
	Hashes    uint64        `json:"hashes"`
	Solutions uint64        `json:"solutions"`
	Shares    uint64        `json:"shares"`
	Accepted  uint64        `json:"accepted"`
	Rejected  uint64        `json:"rejected"`
	Stale     uint64        `json:"stale"`
	Failed    uint64        `json:"failed"`

	HashRate     float64 `json:"hash_rate"`
	SolutionRate float64 `json:"solution_rate"`
	ShareRate    float64 `json:"share_rate"`
}

// Snapshot returns the counters with per-second averages since Reset.
func (s *Speed) Snapshot() SpeedSnapshot {
	snap := SpeedSnapshot{
		Elapsed:   time.Since(time.Unix(0, s.start.Load())),
		Hashes:    s.hashes.Load(),
		Solutions: s.solutions.Load(),
		Shares:    s.shares.Load(),
		Accepted:  s.accepted.Load(),
		Rejected:  s.rejected.Load(),
		Stale:     s.stale.Load(),
		Failed:    s.failed.Load(),
	}
	if secs := snap.Elapsed.Seconds(); secs > 0 {
		snap.HashRate = float64(snap.Hashes) / secs
		snap.SolutionRate = float64(snap.Solutions) / secs
		snap.ShareRate = float64(snap.Shares) / secs
	}
	return snap
}

// Monitor logs the interval rates until ctx is done. It must be run as a
// goroutine.
func (s *Speed) Monitor(ctx context.Context, interval time.Duration) {
	log.Trace("Speed monitor started")
	defer log.Trace("Speed monitor done")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	last := s.Snapshot()
	for {
		select {
		case <-ticker.C:
			cur := s.Snapshot()
			secs := (cur.Elapsed - last.Elapsed).Seconds()
			if secs <= 0 || cur.Hashes < last.Hashes {
				// counters were reset
				last = cur
				continue
			}
			log.Infof("Speed [%ds]: %.2f I/s, %.2f Sols/s, shares %d (accepted %d, rejected %d, stale %d)",
				int(interval.Seconds()),
				float64(cur.Hashes-last.Hashes)/secs,
				float64(cur.Solutions-last.Solutions)/secs,
				cur.Shares, cur.Accepted, cur.Rejected, cur.Stale)
			last = cur

		case <-ctx.Done():
			return
		}
	}
}
