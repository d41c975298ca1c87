package equihash_test

import (
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equiminer/pkg/equihash"
	"equiminer/pkg/solver/methods/wagner"
)

var smallParams = equihash.Params{N: 48, K: 5}

// solveSmall searches nonces until the reference solver yields a solution
// and returns the preimage with its minimal encoding.
func solveSmall(t *testing.T) ([]byte, []byte) {
	t.Helper()

	s := wagner.New(smallParams, 0)
	require.NoError(t, s.Start())
	defer s.Stop()

	header := make([]byte, 40)
	copy(header, "equihash verifier fixture header")
	for n := 0; n < 256; n++ {
		nonce := make([]byte, 32)
		nonce[0] = byte(n)
		nonce[31] = 1

		var found []uint32
		err := s.Solve(header, nonce, nil, func(indices []uint32, bitLen int, packed []byte) {
			if found == nil {
				found = indices
			}
		}, nil)
		require.NoError(t, err)
		if found == nil {
			continue
		}

		minimal, err := equihash.MinimalFromIndices(found, smallParams.CollisionBitLength())
		require.NoError(t, err)
		return append(header, nonce...), minimal
	}
	t.Fatal("no solution found in 256 nonces")
	return nil, nil
}

func newSmallVerifier(t *testing.T) *equihash.Verifier {
	v, err := equihash.NewVerifier(smallParams)
	require.NoError(t, err)
	return v
}

func TestVerifyAcceptsSolverOutput(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	require.NoError(t, v.Validate(preimage, minimal))
	assert.True(t, v.Verify(preimage, minimal))
	// Same inputs, same answer.
	assert.True(t, v.Verify(preimage, minimal))
}

func TestVerifyRejectsOtherPreimage(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	other := append([]byte(nil), preimage...)
	other[0] ^= 0x01
	assert.False(t, v.Verify(other, minimal))
	assert.False(t, v.Verify(other, minimal))
}

func TestVerifyWrongWidth(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	for _, soln := range [][]byte{nil, minimal[:len(minimal)-1], append(append([]byte(nil), minimal...), 0)} {
		err := v.Validate(preimage, soln)
		require.Error(t, err)
		assert.True(t, errors.Is(err, equihash.ErrInvalidLength), "len %d: %v", len(soln), err)
		assert.False(t, equihash.IsMalformed(err))
		assert.False(t, v.Verify(preimage, soln))
	}
}

func TestVerifySingleBitFlips(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	accepted := 0
	total := 0
	for i := range minimal {
		for bit := 0; bit < 8; bit++ {
			mutated := append([]byte(nil), minimal...)
			mutated[i] ^= 1 << uint(bit)
			total++
			if v.Verify(preimage, mutated) {
				accepted++
			}
		}
	}
	assert.LessOrEqual(t, accepted, 2, "%d of %d single-bit mutations verified", accepted, total)
}

func mutateIndices(t *testing.T, minimal []byte, mutate func([]uint32)) []byte {
	t.Helper()
	cbl := smallParams.CollisionBitLength()
	indices, err := equihash.IndicesFromMinimal(minimal, cbl)
	require.NoError(t, err)
	mutate(indices)
	out, err := equihash.MinimalFromIndices(indices, cbl)
	require.NoError(t, err)
	return out
}

func requireReason(t *testing.T, err error, reason equihash.Reason) {
	t.Helper()
	var se *equihash.SolutionError
	require.True(t, errors.As(err, &se), "expected SolutionError, got %v", err)
	assert.Equal(t, reason, se.Reason)
}

func TestVerifyRejectsSwappedPair(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	swapped := mutateIndices(t, minimal, func(idx []uint32) {
		idx[0], idx[1] = idx[1], idx[0]
	})
	err := v.Validate(preimage, swapped)
	requireReason(t, err, equihash.ReasonIndicesOrder)
	assert.True(t, equihash.IsMalformed(err))
}

func TestVerifyRejectsDuplicateIndex(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)

	dup := mutateIndices(t, minimal, func(idx []uint32) {
		idx[1] = idx[0]
	})
	requireReason(t, v.Validate(preimage, dup), equihash.ReasonDuplicateIndices)
}

func TestVerifyRejectsMissingCollision(t *testing.T) {
	preimage, minimal := solveSmall(t)
	v := newSmallVerifier(t)
	h := equihash.NewHasher(smallParams, preimage)

	broken := mutateIndices(t, minimal, func(idx []uint32) {
		first, err := h.Leaf(idx[0])
		require.NoError(t, err)
		for cand := idx[0] + 1; cand < uint32(smallParams.InitialListSize()); cand++ {
			leaf, err := h.Leaf(cand)
			require.NoError(t, err)
			if leaf[0] != first[0] {
				idx[1] = cand
				return
			}
		}
		t.Fatal("no non-colliding index above the first")
	})
	err := v.Validate(preimage, broken)
	requireReason(t, err, equihash.ReasonNoCollision)

	var se *equihash.SolutionError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, 1, se.Round)
	assert.Equal(t, 0, se.Pair)
}

func TestVerifyDefaultParamsRejectsZeroSolution(t *testing.T) {
	preimage := make([]byte, 72)
	soln := make([]byte, equihash.DefaultParams.SolutionWidth())
	assert.False(t, equihash.Verify(preimage, soln))
	assert.False(t, equihash.Verify(preimage, soln[:100]))
}

func TestNewVerifierRejectsBadParams(t *testing.T) {
	_, err := equihash.NewVerifier(equihash.Params{N: 210, K: 8})
	assert.True(t, errors.Is(err, equihash.ErrInvalidParams))
}

// loadDefaultVector reads testdata/aion_210_9.txt: the hex preimage
// (partial hash 00..1f, ntime 0x5b2a3c4d, zero nonce) followed by its
// (210,9) solutions, one per line.
func loadDefaultVector(t *testing.T) ([]byte, [][]byte) {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("testdata", "aion_210_9.txt"))
	require.NoError(t, err)
	lines := strings.Fields(string(data))
	require.GreaterOrEqual(t, len(lines), 2)

	preimage, err := hex.DecodeString(lines[0])
	require.NoError(t, err)
	var sols [][]byte
	for _, l := range lines[1:] {
		sol, err := hex.DecodeString(l)
		require.NoError(t, err)
		sols = append(sols, sol)
	}
	return preimage, sols
}

func TestDefaultParamsDigestKnownAnswer(t *testing.T) {
	preimage, _ := loadDefaultVector(t)
	h := equihash.NewHasher(equihash.DefaultParams, preimage)

	d0, err := h.Digest(0)
	require.NoError(t, err)
	assert.Equal(t, "431040e0c8653af624766066529037b89b7abd178f18072567f453eb6aa97f6ec7d5a2c0bcb1c45973bfdc312cb2097c93f303731194", hex.EncodeToString(d0))

	d1, err := h.Digest(1)
	require.NoError(t, err)
	assert.Equal(t, "c923eecaed5721f737701f83abeb62ea6d7aa9205c00bfa16dfd2c14ba9e11aafd46e0e7a7a01ec797554e3dba8ea9f5bc38708a69a6", hex.EncodeToString(d1))
}

func TestDefaultParamsKnownSolutions(t *testing.T) {
	preimage, sols := loadDefaultVector(t)
	v, err := equihash.NewVerifier(equihash.DefaultParams)
	require.NoError(t, err)

	for i, sol := range sols {
		require.Len(t, sol, 1408)
		assert.NoError(t, v.Validate(preimage, sol), "solution %d", i)
		assert.True(t, equihash.Verify(preimage, sol), "solution %d", i)

		indices, err := equihash.IndicesFromMinimal(sol, equihash.DefaultParams.CollisionBitLength())
		require.NoError(t, err)
		require.Len(t, indices, 512)
		back, err := equihash.MinimalFromIndices(indices, equihash.DefaultParams.CollisionBitLength())
		require.NoError(t, err)
		assert.Equal(t, sol, back)
	}

	other := append([]byte(nil), preimage...)
	other[len(other)-1] = 1
	assert.False(t, equihash.Verify(other, sols[0]), "the solution is bound to its nonce")
}

func TestDefaultParamsKnownSolutionBitFlips(t *testing.T) {
	preimage, sols := loadDefaultVector(t)
	sol := sols[0]
	for bit := 0; bit < 8*len(sol); bit += 97 {
		flipped := append([]byte(nil), sol...)
		flipped[bit/8] ^= 0x80 >> uint(bit%8)
		assert.False(t, equihash.Verify(preimage, flipped), "bit %d", bit)
	}
}
