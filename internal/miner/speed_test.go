package miner

import (
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpeedConcurrentCounters(t *testing.T) {
	s := NewSpeed()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 1000; j++ {
				s.AddHash()
				s.AddSolution()
			}
			s.AddShare()
			s.AddAccepted(true)
			s.AddRejected(false)
			s.AddFailed()
		}()
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.EqualValues(t, 8000, snap.Hashes)
	assert.EqualValues(t, 8000, snap.Solutions)
	assert.EqualValues(t, 8, snap.Shares)
	assert.EqualValues(t, 8, snap.Accepted)
	assert.EqualValues(t, 8, snap.Rejected)
	assert.EqualValues(t, 8, snap.Stale)
	assert.EqualValues(t, 8, snap.Failed)
	assert.Greater(t, snap.HashRate, 0.0)

	s.Reset()
	snap = s.Snapshot()
	assert.Zero(t, snap.Hashes)
	assert.Zero(t, snap.Accepted)
}

func TestSubmissionParams(t *testing.T) {
	var nonce Nonce
	for i := range nonce {
		nonce[i] = byte(i)
	}
	sub := Submission{
		JobID: "7",
		Solution: EquihashSolution{
			Nonce:      nonce,
			Solution:   []byte{0xaa, 0xbb},
			Time:       testTime,
			Nonce1Size: 8,
		},
	}
	p := sub.Params()
	require.Len(t, p, 4)
	assert.Equal(t, "7", p[0])
	assert.Equal(t, testTime, p[1])
	assert.Equal(t, nonce.Hex()[8:], p[2])
	assert.Equal(t, "02aabb", p[3])

	req := RequestFromSubmission(nonce.Hex()[:8], sub)
	assert.Equal(t, nonce.Hex(), req.ExtraNonce1+req.ExtraNonce2)
}

func TestChannelSinkNeverBlocks(t *testing.T) {
	sink := NewChannelSink(1)
	assert.True(t, sink.Submit(EquihashSolution{}, "a"))
	assert.False(t, sink.Submit(EquihashSolution{}, "b"), "full queue refuses")

	sub := <-sink.C()
	assert.Equal(t, "a", sub.JobID)

	sink.Close()
	sink.Close()
	assert.False(t, sink.Submit(EquihashSolution{}, "c"))
}

func TestCollectorExportsSpeed(t *testing.T) {
	s := NewSpeed()
	s.AddHash()
	s.AddHash()
	s.AddAccepted(false)

	c := NewCollector(s, func() int { return 3 })
	expected := `
# HELP equiminer_hashes_total Base hash units processed by all solvers.
# TYPE equiminer_hashes_total counter
equiminer_hashes_total 2
# HELP equiminer_workers Running solver workers.
# TYPE equiminer_workers gauge
equiminer_workers 3
`
	require.NoError(t, testutil.CollectAndCompare(c, strings.NewReader(expected),
		"equiminer_hashes_total", "equiminer_workers"))

	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(c))
}
