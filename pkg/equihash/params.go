package equihash

import (
	"encoding/binary"
	"fmt"
)

// IndexSize is the byte width of a single expanded index (eh_index).
const IndexSize = 4

// PersonalizationTag is the 8-byte prefix of the BLAKE2b personalization.
const PersonalizationTag = "AION0PoW"

// Params holds an (N, K) pair and the constants derived from it. A Params
// value is immutable; a different (N, K) needs a new value.
type Params struct {
	N uint32
	K uint32
}

// DefaultParams is the (210, 9) instance used on the wire.
var DefaultParams = Params{N: 210, K: 9}

// NewParams validates n and k and returns the corresponding Params.
func NewParams(n, k uint32) (Params, error) {
	p := Params{N: n, K: k}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	return p, nil
}

// Validate checks that the derived constants fit the codec and hash limits.
func (p Params) Validate() error {
	ctx := map[string]interface{}{"n": p.N, "k": p.K}
	switch {
	case p.K < 1 || p.K > 20:
		return newError(ErrorInvalidParams, "k must be in [1, 20]", ctx)
	case p.N == 0 || p.N > 512:
		return newError(ErrorInvalidParams, "n must be in [1, 512]", ctx)
	case p.N%(p.K+1) != 0:
		return newError(ErrorInvalidParams, "n must be a multiple of k+1", ctx)
	}
	bitLen := p.CollisionBitLength() + 1
	switch {
	case bitLen < 8:
		return newError(ErrorInvalidParams, "index width below 8 bits", ctx)
	case bitLen+7 > 8*IndexSize:
		return newError(ErrorInvalidParams, "index width exceeds accumulator", ctx)
	case (p.ProofSize()*bitLen)%8 != 0:
		return newError(ErrorInvalidParams, "solution is not a whole number of bytes", ctx)
	case p.HashOutput() > 64:
		return newError(ErrorInvalidParams, "hash output exceeds BLAKE2b digest size", ctx)
	case p.CollisionBitLength()+7 > 8*IndexSize:
		return newError(ErrorInvalidParams, "collision width exceeds accumulator", ctx)
	}
	return nil
}

func (p Params) String() string {
	return fmt.Sprintf("Equihash(%d,%d)", p.N, p.K)
}

// CollisionBitLength is N/(K+1), the width of one digit.
func (p Params) CollisionBitLength() int { return int(p.N / (p.K + 1)) }

// CollisionByteLength is the digit width rounded up to whole bytes.
func (p Params) CollisionByteLength() int { return (p.CollisionBitLength() + 7) / 8 }

// HashLength is the expanded hash width carried by a leaf StepRow.
func (p Params) HashLength() int { return int(p.K+1) * p.CollisionByteLength() }

// IndicesPerHashOutput is how many leaf hashes one BLAKE2b digest yields.
func (p Params) IndicesPerHashOutput() int { return int(512 / p.N) }

// HashOutputLen is the byte width of one leaf hash inside a digest.
func (p Params) HashOutputLen() int { return int((p.N + 7) / 8) }

// HashOutput is the BLAKE2b digest length.
func (p Params) HashOutput() int { return p.IndicesPerHashOutput() * p.HashOutputLen() }

// ProofSize is the number of indices in a solution, 2^K.
func (p Params) ProofSize() int { return 1 << p.K }

// SolutionWidth is the byte length of a minimal solution.
func (p Params) SolutionWidth() int {
	return p.ProofSize() * (p.CollisionBitLength() + 1) / 8
}

// InitialListSize is the number of leaf indices a solver enumerates,
// 2^(CollisionBitLength+1).
func (p Params) InitialListSize() int { return 1 << (p.CollisionBitLength() + 1) }

// Personalization returns tag || le32(N) || le32(K).
func (p Params) Personalization() []byte {
	person := make([]byte, 16)
	copy(person, PersonalizationTag)
	binary.LittleEndian.PutUint32(person[8:], p.N)
	binary.LittleEndian.PutUint32(person[12:], p.K)
	return person
}
