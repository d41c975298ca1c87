package miner

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
	"equiminer/pkg/solver/methods/wagner"
)

func requireShareCode(t *testing.T, err error, code int) {
	t.Helper()
	var serr *ShareError
	require.True(t, errors.As(err, &serr), "expected share error, got %v", err)
	assert.Equal(t, code, serr.Code, serr.Message)
}

// mineOne runs a real solver until one share reaches the sink.
func mineOne(t *testing.T) (*Job, Submission) {
	t.Helper()
	sink := NewChannelSink(64)
	m, faults := newTestMiner(t, []core.Solver{wagner.New(smallParams, 0)}, sink)
	job := testJob(t, m, "share", 0x5a, "", true)

	m.Start()
	defer m.Stop()
	m.SetJob(job)

	select {
	case sub := <-sink.C():
		return job, sub
	case err := <-faults:
		t.Fatalf("solver fault: %v", err)
	case <-time.After(20 * time.Second):
		t.Fatal("no share found")
	}
	return nil, Submission{}
}

func TestCheckShareRoundTrip(t *testing.T) {
	job, sub := mineOne(t)
	v, err := equihash.NewVerifier(smallParams)
	require.NoError(t, err)

	req := RequestFromSubmission(testNonce1, sub)
	assert.Equal(t, "share", req.JobID)
	assert.Equal(t, testTime, req.Time)
	assert.Len(t, req.ExtraNonce1+req.ExtraNonce2, 64)

	registry := NewMemoryRegistry()
	res, err := CheckShare(v, job, req, registry)
	require.NoError(t, err)
	assert.Equal(t, "share", res.JobID)
	assert.Len(t, res.Hash, 64)

	_, err = CheckShare(v, job, req, registry)
	requireShareCode(t, err, ShareErrDuplicate)

	strict := *job
	strict.Target = Target{}
	_, err = CheckShare(v, &strict, req, nil)
	requireShareCode(t, err, ShareErrOther)
	assert.Contains(t, err.Error(), "larger than target")

	other := req
	other.JobID = "other"
	_, err = CheckShare(v, job, other, nil)
	requireShareCode(t, err, ShareErrNotFound)
	_, err = CheckShare(v, nil, req, nil)
	requireShareCode(t, err, ShareErrNotFound)
}

func TestCheckShareFieldSizes(t *testing.T) {
	m, _ := newTestMiner(t, nil, nil)
	job := testJob(t, m, "j", 0x01, "", false)
	v, err := equihash.NewVerifier(smallParams)
	require.NoError(t, err)

	width := smallParams.SolutionWidth()
	good := ShareRequest{
		JobID:       "j",
		ExtraNonce1: testNonce1,
		ExtraNonce2: "00000000000000000000000000000000000000000000000000000000",
		Time:        testTime,
		Solution:    "24" + hexZeros(width),
	}
	require.Len(t, good.ExtraNonce1+good.ExtraNonce2, 64)

	cases := map[string]func(r *ShareRequest){
		"short ntime":    func(r *ShareRequest) { r.Time = "00" },
		"short nonce":    func(r *ShareRequest) { r.ExtraNonce2 = "00" },
		"short solution": func(r *ShareRequest) { r.Solution = "2400" },
		"bad nonce2 hex": func(r *ShareRequest) { r.ExtraNonce2 = "zz" + good.ExtraNonce2[2:] },
		"bad prefix":     func(r *ShareRequest) { r.Solution = "25" + hexZeros(width) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := good
			mutate(&req)
			_, err := CheckShare(v, job, req, nil)
			requireShareCode(t, err, ShareErrOther)
		})
	}

	// well formed but all-zero indices
	_, err = CheckShare(v, job, good, nil)
	requireShareCode(t, err, ShareErrOther)
	assert.Contains(t, err.Error(), "invalid solution")
}

func hexZeros(n int) string {
	b := make([]byte, 2*n)
	for i := range b {
		b[i] = '0'
	}
	return string(b)
}

func TestShareKeyIgnoresCase(t *testing.T) {
	a := ShareRequest{ExtraNonce1: "AB", ExtraNonce2: "Cd", Time: "EF"}
	b := ShareRequest{ExtraNonce1: "ab", ExtraNonce2: "cD", Time: "ef"}
	assert.Equal(t, ShareKey(a), ShareKey(b))

	r := NewMemoryRegistry()
	fresh, err := r.Register(ShareKey(a))
	require.NoError(t, err)
	assert.True(t, fresh)
	fresh, err = r.Register(ShareKey(b))
	require.NoError(t, err)
	assert.False(t, fresh)
}
