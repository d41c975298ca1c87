// Package block lays out the Aion header bytes that feed the Equihash
// preimage and the share target hash.
package block

import (
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Field sizes of the pool-side header serialization
const (
	PartialHashSize = 32
	TimestampSize   = 8
	NonceSize       = 32

	// InputSize is the Equihash input I: partial hash || timestamp
	InputSize = PartialHashSize + TimestampSize
	// PreimageSize is I || nonce, the bytes the solver and verifier hash
	PreimageSize = InputSize + NonceSize
)

// ErrFieldSize is returned when a header field has the wrong length
var ErrFieldSize = errors.New("block: invalid field size")

// Header is the mutable working copy of one job's header. The nonce and
// solution are filled in per candidate.
type Header struct {
	PartialHash [PartialHashSize]byte
	Timestamp   [TimestampSize]byte
	Nonce       [NonceSize]byte
	Solution    []byte
}

// ParseHeader decodes the hex partial hash and timestamp of a job.
func ParseHeader(partialHashHex, timeHex string) (Header, error) {
	var h Header
	if err := decodeField(h.PartialHash[:], partialHashHex, "partial hash"); err != nil {
		return Header{}, err
	}
	if err := decodeField(h.Timestamp[:], timeHex, "timestamp"); err != nil {
		return Header{}, err
	}
	return h, nil
}

func decodeField(dst []byte, s, name string) error {
	raw, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return fmt.Errorf("block: %s: %w", name, err)
	}
	if len(raw) != len(dst) {
		return fmt.Errorf("%w: %s is %d bytes, want %d", ErrFieldSize, name, len(raw), len(dst))
	}
	copy(dst, raw)
	return nil
}

// TimestampHex encodes unix seconds as the 8-byte big-endian hex the pool
// expects for ntime.
func TimestampHex(unix uint64) string {
	var b [TimestampSize]byte
	binary.BigEndian.PutUint64(b[:], unix)
	return hex.EncodeToString(b[:])
}

// Input returns the Equihash input I.
func (h *Header) Input() []byte {
	out := make([]byte, 0, InputSize)
	out = append(out, h.PartialHash[:]...)
	return append(out, h.Timestamp[:]...)
}

// Preimage returns I || nonce.
func (h *Header) Preimage() []byte {
	out := make([]byte, 0, PreimageSize)
	out = append(out, h.Input()...)
	return append(out, h.Nonce[:]...)
}

// Bytes returns the full target header I || nonce || solution.
func (h *Header) Bytes() []byte {
	out := make([]byte, 0, PreimageSize+len(h.Solution))
	out = append(out, h.Preimage()...)
	return append(out, h.Solution...)
}

// Hash is the unkeyed, unpersonalized BLAKE2b-256 of Bytes, compared
// big-endian against the share target.
func (h *Header) Hash() [32]byte {
	return blake2b.Sum256(h.Bytes())
}

// CompactSize encodes n as a Bitcoin-style variable length prefix.
func CompactSize(n uint64) []byte {
	switch {
	case n < 0xfd:
		return []byte{byte(n)}
	case n <= 0xffff:
		b := []byte{0xfd, 0, 0}
		binary.LittleEndian.PutUint16(b[1:], uint16(n))
		return b
	case n <= 0xffffffff:
		b := []byte{0xfe, 0, 0, 0, 0}
		binary.LittleEndian.PutUint32(b[1:], uint32(n))
		return b
	default:
		b := make([]byte, 9)
		b[0] = 0xff
		binary.LittleEndian.PutUint64(b[1:], n)
		return b
	}
}

// ReadCompactSize decodes a prefix written by CompactSize and returns the
// value and the number of bytes consumed.
func ReadCompactSize(b []byte) (uint64, int, error) {
	if len(b) == 0 {
		return 0, 0, fmt.Errorf("%w: empty compact size", ErrFieldSize)
	}
	width := 1
	switch b[0] {
	case 0xfd:
		width = 3
	case 0xfe:
		width = 5
	case 0xff:
		width = 9
	default:
		return uint64(b[0]), 1, nil
	}
	if len(b) < width {
		return 0, 0, fmt.Errorf("%w: truncated compact size", ErrFieldSize)
	}
	switch width {
	case 3:
		return uint64(binary.LittleEndian.Uint16(b[1:])), 3, nil
	case 5:
		return uint64(binary.LittleEndian.Uint32(b[1:])), 5, nil
	default:
		return binary.LittleEndian.Uint64(b[1:]), 9, nil
	}
}

// FrameSolution prefixes sol with its compact size.
func FrameSolution(sol []byte) []byte {
	out := CompactSize(uint64(len(sol)))
	return append(out, sol...)
}

// UnframeSolution strips and checks the compact size prefix.
func UnframeSolution(framed []byte) ([]byte, error) {
	n, used, err := ReadCompactSize(framed)
	if err != nil {
		return nil, err
	}
	if uint64(len(framed)-used) != n {
		return nil, fmt.Errorf("%w: solution declares %d bytes, has %d", ErrFieldSize, n, len(framed)-used)
	}
	return framed[used:], nil
}

// SubmissionHex returns hex(nonce || compactSize(len(sol)) || sol), the
// buffer a stratum submission is cut from.
func SubmissionHex(nonce [NonceSize]byte, sol []byte) string {
	buf := make([]byte, 0, NonceSize+9+len(sol))
	buf = append(buf, nonce[:]...)
	buf = append(buf, FrameSolution(sol)...)
	return hex.EncodeToString(buf)
}
