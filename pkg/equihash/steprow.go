package equihash

import (
	"bytes"
)

// StepRow pairs a partially collapsed hash with the big-endian indices that
// produced it. Rows are plain values owned by a single verify or solve pass.
type StepRow struct {
	Hash    []byte
	Indices []byte
}

// NewStepRow builds a leaf row for index i from its expanded hash.
func NewStepRow(hash []byte, i uint32) StepRow {
	h := make([]byte, len(hash))
	copy(h, hash)
	return StepRow{Hash: h, Indices: IndexToBytes(i)}
}

// HasCollision reports whether the first l hash bytes of both rows agree.
func (r StepRow) HasCollision(o StepRow, l int) bool {
	if len(r.Hash) < l || len(o.Hash) < l {
		return false
	}
	return bytes.Equal(r.Hash[:l], o.Hash[:l])
}

// IndicesBefore reports whether r's index block sorts strictly before o's.
func (r StepRow) IndicesBefore(o StepRow) bool {
	return bytes.Compare(r.Indices, o.Indices) < 0
}

// DistinctIndices reports whether the two rows share no index.
func DistinctIndices(a, b StepRow) bool {
	for i := 0; i+IndexSize <= len(a.Indices); i += IndexSize {
		for j := 0; j+IndexSize <= len(b.Indices); j += IndexSize {
			if bytes.Equal(a.Indices[i:i+IndexSize], b.Indices[j:j+IndexSize]) {
				return false
			}
		}
	}
	return true
}

// MergeRows XORs the hashes past the first trim bytes and concatenates the
// index blocks, lexicographically smaller block first.
func MergeRows(a, b StepRow, trim int) StepRow {
	n := len(a.Hash)
	if len(b.Hash) < n {
		n = len(b.Hash)
	}
	if trim > n {
		trim = n
	}
	hash := make([]byte, n-trim)
	for i := trim; i < n; i++ {
		hash[i-trim] = a.Hash[i] ^ b.Hash[i]
	}

	first, second := a, b
	if !a.IndicesBefore(b) {
		first, second = b, a
	}
	indices := make([]byte, 0, len(a.Indices)+len(b.Indices))
	indices = append(indices, first.Indices...)
	indices = append(indices, second.Indices...)
	return StepRow{Hash: hash, Indices: indices}
}

// IsZero reports whether the first l hash bytes are all zero.
func (r StepRow) IsZero(l int) bool {
	if l > len(r.Hash) {
		l = len(r.Hash)
	}
	for _, b := range r.Hash[:l] {
		if b != 0 {
			return false
		}
	}
	return true
}

// IndexList decodes the index block.
func (r StepRow) IndexList() []uint32 {
	out := make([]uint32, 0, len(r.Indices)/IndexSize)
	for i := 0; i+IndexSize <= len(r.Indices); i += IndexSize {
		out = append(out, BytesToIndex(r.Indices[i:]))
	}
	return out
}
