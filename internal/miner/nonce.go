package miner

import (
	"encoding/hex"
	"fmt"

	"github.com/holiman/uint256"
)

// NonceSize is the width of the header nonce
const NonceSize = 32

// workerShift places the worker id in byte 19 of the nonce.
const workerShift = 8 * 19

// Nonce is the header nonce in wire order, least significant byte first.
type Nonce [NonceSize]byte

// NonceFromInt converts a 256-bit integer into wire order.
func NonceFromInt(v *uint256.Int) Nonce {
	be := v.Bytes32()
	var n Nonce
	for i := range be {
		n[i] = be[NonceSize-1-i]
	}
	return n
}

// Int returns the nonce as an integer.
func (n Nonce) Int() *uint256.Int {
	var be [NonceSize]byte
	for i := range n {
		be[i] = n[NonceSize-1-i]
	}
	return new(uint256.Int).SetBytes32(be[:])
}

// Hex encodes the nonce in wire order.
func (n Nonce) Hex() string {
	return hex.EncodeToString(n[:])
}

// ServerNonce is the pool-assigned nonce prefix (nonce1) and the nonce2
// space left to the miner.
type ServerNonce struct {
	Nonce1 Nonce
	// Size is the hex length of nonce1 as sent by the pool
	Size int
	// Space is 2^(256-4*Size) - 1
	Space *uint256.Int
	// Inc is 2^(4*Size), one step of nonce2
	Inc *uint256.Int
}

// ParseServerNonce decodes the hex nonce1 sent by the pool. Its bytes occupy
// the start of the wire nonce; the remainder is zero.
func ParseServerNonce(s string) (ServerNonce, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ServerNonce{}, protocolError("set server nonce", "invalid hex", err)
	}
	if len(raw) >= NonceSize {
		return ServerNonce{}, protocolError("set server nonce",
			fmt.Sprintf("nonce1 of %d bytes leaves no nonce2 space", len(raw)), nil)
	}

	sn := ServerNonce{Size: len(s)}
	copy(sn.Nonce1[:], raw)

	bits := uint(4 * sn.Size)
	sn.Space = new(uint256.Int).Lsh(uint256.NewInt(1), 256-bits)
	sn.Space.SubUint64(sn.Space, 1)
	sn.Inc = new(uint256.Int).Lsh(uint256.NewInt(1), bits)
	return sn, nil
}

// Hex returns nonce1 as the pool sent it.
func (sn ServerNonce) Hex() string {
	return hex.EncodeToString(sn.Nonce1[:sn.Size/2])
}

// WorkerNonceRange returns the half-open range [start, end) worker pos
// mines for a job whose nonce starts at base. The worker id is ORed into the
// high byte 19, so ranges of different workers never overlap.
func WorkerNonceRange(base Nonce, pos int) (start, end *uint256.Int) {
	b := base.Int()
	id := uint256.NewInt(uint64(pos))
	start = new(uint256.Int).Lsh(id, workerShift)
	start.Or(start, b)

	next := new(uint256.Int).AddUint64(id, 1)
	end = new(uint256.Int).Lsh(next, workerShift)
	end.Or(end, b)
	return start, end
}
