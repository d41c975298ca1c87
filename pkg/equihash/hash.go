package equihash

import (
	"encoding/binary"
	"fmt"

	"github.com/dchest/blake2b"
)

// Hasher computes the personalized leaf hashes for one header preimage.
// The last digest is cached so sequential index enumeration costs one
// BLAKE2b call per IndicesPerHashOutput indices. A Hasher is not safe for
// concurrent use.
type Hasher struct {
	params   Params
	preimage []byte
	config   *blake2b.Config

	block  int64
	digest []byte
}

// NewHasher prepares a leaf hasher keyed by p's personalization.
func NewHasher(p Params, preimage []byte) *Hasher {
	img := make([]byte, len(preimage))
	copy(img, preimage)
	return &Hasher{
		params:   p,
		preimage: img,
		config: &blake2b.Config{
			Size:   uint8(p.HashOutput()),
			Person: p.Personalization(),
		},
		block: -1,
	}
}

// Digest returns the HashOutput-byte digest of preimage || le32(block).
func (h *Hasher) Digest(block uint32) ([]byte, error) {
	if h.block == int64(block) {
		return h.digest, nil
	}
	d, err := blake2b.New(h.config)
	if err != nil {
		return nil, newError(ErrorInternal, fmt.Sprintf("blake2b init: %v", err), nil)
	}
	var le [4]byte
	binary.LittleEndian.PutUint32(le[:], block)
	d.Write(h.preimage)
	d.Write(le[:])
	h.digest = d.Sum(nil)
	h.block = int64(block)
	return h.digest, nil
}

// Leaf returns the expanded HashLength-byte hash for index i.
func (h *Hasher) Leaf(i uint32) ([]byte, error) {
	p := h.params
	per := uint32(p.IndicesPerHashOutput())
	digest, err := h.Digest(i / per)
	if err != nil {
		return nil, err
	}
	hashLen := p.HashOutputLen()
	off := int(i%per) * hashLen
	return ExpandArray(digest[off:off+hashLen], p.HashLength(), p.CollisionBitLength(), 0)
}

// Row returns the leaf StepRow for index i.
func (h *Hasher) Row(i uint32) (StepRow, error) {
	leaf, err := h.Leaf(i)
	if err != nil {
		return StepRow{}, err
	}
	return StepRow{Hash: leaf, Indices: IndexToBytes(i)}, nil
}
