package wagner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/core"
)

var smallParams = equihash.Params{N: 48, K: 5}

func TestSolveNotStarted(t *testing.T) {
	m := New(smallParams, 0)
	err := m.Solve(make([]byte, 40), make([]byte, 32), nil, nil, nil)
	assert.Error(t, err)
}

func TestStartRejectsBadParams(t *testing.T) {
	m := New(equihash.Params{N: 200, K: 0}, 0)
	assert.Error(t, m.Start())
}

func TestSolutionsVerify(t *testing.T) {
	m := New(smallParams, 1)
	require.NoError(t, m.Start())
	defer m.Stop()
	assert.Equal(t, core.KindCPU, m.Kind())
	assert.Contains(t, m.DeviceInfo(), "thread #1")

	v, err := equihash.NewVerifier(smallParams)
	require.NoError(t, err)

	header := make([]byte, 40)
	found, hashes := 0, 0
	for n := 0; n < 64 && found == 0; n++ {
		nonce := make([]byte, 32)
		nonce[0] = byte(n)
		preimage := append(append([]byte(nil), header...), nonce...)
		err := m.Solve(header, nonce, nil, func(indices []uint32, bitLen int, packed []byte) {
			assert.Nil(t, packed)
			require.Len(t, indices, smallParams.ProofSize())
			sol, err := equihash.MinimalFromIndices(indices, bitLen)
			require.NoError(t, err)
			assert.NoError(t, v.Validate(preimage, sol))
			found++
		}, func() { hashes++ })
		require.NoError(t, err)
		assert.Equal(t, n+1, hashes)
	}
	assert.NotZero(t, found, "no solution in 64 nonces")
}

func TestSolveHonoursCancel(t *testing.T) {
	m := New(smallParams, 0)
	require.NoError(t, m.Start())
	defer m.Stop()

	polls := 0
	err := m.Solve(make([]byte, 40), make([]byte, 32), func() bool {
		polls++
		return true
	}, func([]uint32, int, []byte) {
		t.Error("solution reported after cancel")
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, polls)
}

func TestStopIsIdempotent(t *testing.T) {
	m := New(smallParams, 0)
	require.NoError(t, m.Start())
	assert.NoError(t, m.Stop())
	assert.NoError(t, m.Stop())
	assert.Error(t, m.Solve(make([]byte, 40), make([]byte, 32), nil, nil, nil))
}
