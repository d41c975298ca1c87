package block

import (
	"encoding/hex"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/blake2b"
)

func testHeader(t *testing.T) Header {
	h, err := ParseHeader(strings.Repeat("ab", PartialHashSize), "000000005b2a3c4d")
	require.NoError(t, err)
	return h
}

func TestParseHeaderLayout(t *testing.T) {
	h := testHeader(t)
	h.Nonce[0] = 0x11
	h.Nonce[31] = 0x22

	input := h.Input()
	require.Len(t, input, InputSize)
	assert.Equal(t, byte(0xab), input[0])
	assert.Equal(t, []byte{0, 0, 0, 0, 0x5b, 0x2a, 0x3c, 0x4d}, input[PartialHashSize:])

	pre := h.Preimage()
	require.Len(t, pre, PreimageSize)
	assert.Equal(t, byte(0x11), pre[InputSize])
	assert.Equal(t, byte(0x22), pre[PreimageSize-1])
}

func TestParseHeaderRejectsBadFields(t *testing.T) {
	_, err := ParseHeader("abcd", "0000000000000000")
	assert.True(t, errors.Is(err, ErrFieldSize))

	_, err = ParseHeader(strings.Repeat("00", 32), "zz")
	assert.Error(t, err)

	_, err = ParseHeader(strings.Repeat("00", 32), "00")
	assert.True(t, errors.Is(err, ErrFieldSize))
}

func TestHeaderHashCoversSolution(t *testing.T) {
	h := testHeader(t)
	h.Solution = make([]byte, 1408)

	full := h.Bytes()
	require.Len(t, full, 1480)
	assert.Equal(t, blake2b.Sum256(full), h.Hash())

	before := h.Hash()
	h.Solution[1407] = 1
	assert.NotEqual(t, before, h.Hash())
}

func TestCompactSize(t *testing.T) {
	assert.Equal(t, []byte{0x10}, CompactSize(0x10))
	assert.Equal(t, []byte{0xfd, 0x80, 0x05}, CompactSize(1408))
	assert.Equal(t, []byte{0xfe, 0x00, 0x00, 0x01, 0x00}, CompactSize(0x10000))

	for _, n := range []uint64{0, 0xfc, 0xfd, 1408, 0xffff, 0x10000, 1 << 33} {
		v, used, err := ReadCompactSize(CompactSize(n))
		require.NoError(t, err)
		assert.Equal(t, n, v)
		assert.Equal(t, len(CompactSize(n)), used)
	}

	_, _, err := ReadCompactSize([]byte{0xfd, 0x01})
	assert.True(t, errors.Is(err, ErrFieldSize))
}

func TestSolutionFraming(t *testing.T) {
	sol := make([]byte, 1408)
	sol[0] = 0xee
	framed := FrameSolution(sol)
	assert.Equal(t, "fd8005ee", hex.EncodeToString(framed[:4]))

	back, err := UnframeSolution(framed)
	require.NoError(t, err)
	assert.Equal(t, sol, back)

	_, err = UnframeSolution(framed[:100])
	assert.True(t, errors.Is(err, ErrFieldSize))
}

func TestSubmissionHex(t *testing.T) {
	var nonce [NonceSize]byte
	nonce[0] = 0xaa
	s := SubmissionHex(nonce, []byte{1, 2, 3})
	assert.Equal(t, "aa"+strings.Repeat("00", 31)+"03010203", s)
}

func TestTimestampHex(t *testing.T) {
	assert.Equal(t, "000000005b2a3c4d", TimestampHex(0x5b2a3c4d))
}
