package api

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiminer/internal/journal"
	"equiminer/internal/miner"
	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/methods/wagner"
)

var smallParams = equihash.Params{N: 48, K: 5}

func newTestServer(t *testing.T, store SolutionStore) (*Server, *miner.Miner) {
	t.Helper()
	m := miner.New(nil, miner.Config{Params: smallParams})
	s, err := New(Options{Miner: m, Store: store})
	require.NoError(t, err)
	return s, m
}

func do(t *testing.T, s *Server, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/api/v1/health", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var resp HealthResponse
	decode(t, w, &resp)
	assert.Equal(t, "idle", resp.Status)
	assert.Equal(t, miner.Version, resp.Version)
	assert.False(t, resp.HasJob)
	assert.Equal(t, "equiminer/"+miner.Version, resp.UserAgent)
}

func TestJobLifecycle(t *testing.T) {
	s, m := newTestServer(t, nil)

	w := do(t, s, http.MethodGet, "/api/v1/job", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, s, http.MethodPut, "/api/v1/nonce1", Nonce1Request{Nonce1: "zz"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = do(t, s, http.MethodPut, "/api/v1/nonce1", Nonce1Request{Nonce1: "abcd1234"})
	require.Equal(t, http.StatusOK, w.Code)

	partial := strings.Repeat("11", 32)
	w = do(t, s, http.MethodPost, "/api/v1/job", NotifyRequest{
		Params: []interface{}{"j1", true, "00ff", partial, "0000000000000001"},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(t, s, http.MethodGet, "/api/v1/job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var job JobResponse
	decode(t, w, &job)
	assert.Equal(t, "j1", job.ID)
	assert.True(t, job.Clean)
	assert.Equal(t, partial, job.PartialHash)
	assert.Equal(t, "abcd1234", job.Nonce1)
	assert.True(t, strings.HasSuffix(job.Target, "00ff"))

	// a bad job keeps the current one
	w = do(t, s, http.MethodPost, "/api/v1/job", NotifyRequest{Params: []interface{}{"j2", true}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "j1", m.CurrentJob().ID)

	w = do(t, s, http.MethodDelete, "/api/v1/job", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Nil(t, m.CurrentJob())
}

// solveSmall returns a preimage and a valid minimal solution for it.
func solveSmall(t *testing.T) ([]byte, []byte) {
	t.Helper()
	s := wagner.New(smallParams, 0)
	require.NoError(t, s.Start())
	defer s.Stop()

	header := make([]byte, 40)
	for n := 0; n < 256; n++ {
		nonce := make([]byte, 32)
		nonce[0] = byte(n)
		var found []uint32
		require.NoError(t, s.Solve(header, nonce, nil, func(indices []uint32, _ int, _ []byte) {
			if found == nil {
				found = indices
			}
		}, nil))
		if found != nil {
			sol, err := equihash.MinimalFromIndices(found, smallParams.CollisionBitLength())
			require.NoError(t, err)
			return append(header, nonce...), sol
		}
	}
	t.Fatal("no solution found")
	return nil, nil
}

func TestVerify(t *testing.T) {
	s, _ := newTestServer(t, nil)
	preimage, sol := solveSmall(t)

	w := do(t, s, http.MethodPost, "/api/v1/verify", VerifyRequest{
		Header:   hex.EncodeToString(preimage),
		Solution: hex.EncodeToString(sol),
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp VerifyResponse
	decode(t, w, &resp)
	assert.True(t, resp.Valid)

	zero := make([]byte, len(sol))
	w = do(t, s, http.MethodPost, "/api/v1/verify", VerifyRequest{
		Header:   hex.EncodeToString(preimage),
		Solution: hex.EncodeToString(zero),
	})
	require.Equal(t, http.StatusOK, w.Code)
	resp = VerifyResponse{}
	decode(t, w, &resp)
	assert.False(t, resp.Valid)
	assert.NotEmpty(t, resp.Reason)

	w = do(t, s, http.MethodPost, "/api/v1/verify", VerifyRequest{Header: "zz", Solution: "00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestShareWithoutJob(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/api/v1/shares", miner.ShareRequest{JobID: "x"})
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Result *bool         `json:"result"`
		Error  []interface{} `json:"error"`
	}
	decode(t, w, &resp)
	assert.Nil(t, resp.Result)
	require.Len(t, resp.Error, 3)
	assert.EqualValues(t, miner.ShareErrNotFound, resp.Error[0])
}

func TestSolutions(t *testing.T) {
	s, _ := newTestServer(t, nil)
	w := do(t, s, http.MethodGet, "/api/v1/solutions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)

	j, err := journal.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	defer j.Close()
	_, err = j.Append(miner.Submission{JobID: "a", Solution: miner.EquihashSolution{Solution: []byte{1}}})
	require.NoError(t, err)

	s, _ = newTestServer(t, j)
	w = do(t, s, http.MethodGet, "/api/v1/solutions?limit=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Solutions []journal.Record `json:"solutions"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Solutions, 1)
	assert.Equal(t, "a", resp.Solutions[0].JobID)

	w = do(t, s, http.MethodGet, "/api/v1/solutions?limit=x", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResultsAndMetrics(t *testing.T) {
	s, m := newTestServer(t, nil)
	w := do(t, s, http.MethodPost, "/api/v1/results", ResultRequest{Accepted: true})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodPost, "/api/v1/results", ResultRequest{Stale: true})
	require.Equal(t, http.StatusOK, w.Code)
	w = do(t, s, http.MethodPost, "/api/v1/results", ResultRequest{Failed: true})
	require.Equal(t, http.StatusOK, w.Code)

	snap := m.Speed().Snapshot()
	assert.EqualValues(t, 1, snap.Accepted)
	assert.EqualValues(t, 1, snap.Rejected)
	assert.EqualValues(t, 1, snap.Stale)
	assert.EqualValues(t, 1, snap.Failed)

	w = do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `equiminer_submissions_total{result="accepted"} 1`)
	assert.Contains(t, w.Body.String(), "equiminer_workers 0")

	w = do(t, s, http.MethodGet, "/api/v1/speed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var speed miner.SpeedSnapshot
	decode(t, w, &speed)
	assert.EqualValues(t, 1, speed.Accepted)

	w = do(t, s, http.MethodGet, "/api/v1/workers", nil)
	require.Equal(t, http.StatusOK, w.Code)
}
