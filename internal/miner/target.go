package miner

import (
	"bytes"
	"encoding/hex"
	"strings"

	"github.com/holiman/uint256"
)

// Target is the share difficulty threshold, big-endian.
type Target [32]byte

// MaxTarget accepts every hash except all 0xff.
var MaxTarget = Target{
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
	0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff,
}

// ParseTarget parses a big-endian hex target. Shorter strings are
// left-padded with zeros; an empty string yields MaxTarget.
func ParseTarget(s string) (Target, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		log.Debugf("New job but no server target, assuming powLimit")
		return MaxTarget, nil
	}
	if len(s) > 64 {
		return Target{}, protocolError("set target", "target wider than 256 bits", nil)
	}
	if len(s)%2 == 1 {
		s = "0" + s
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, protocolError("set target", "invalid hex", err)
	}
	var t Target
	copy(t[32-len(raw):], raw)
	return t, nil
}

// Accepts reports whether hash, read big-endian, is strictly below t.
func (t Target) Accepts(hash []byte) bool {
	if len(hash) != len(t) {
		return false
	}
	return bytes.Compare(hash, t[:]) < 0
}

// Hex encodes the target as 64 hex characters.
func (t Target) Hex() string {
	return hex.EncodeToString(t[:])
}

// Int returns the target as an integer.
func (t Target) Int() *uint256.Int {
	return new(uint256.Int).SetBytes32(t[:])
}
