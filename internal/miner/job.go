package miner

import (
	"fmt"
	"strconv"
	"time"

	"github.com/holiman/uint256"

	"equiminer/pkg/block"
)

// Job is one unit of mining work. A published Job is never modified; newer
// work replaces it.
type Job struct {
	ID string
	// Header carries the partial hash, timestamp and nonce1 as its nonce
	Header block.Header
	// Time is the ntime hex echoed back on submission
	Time        string
	Nonce1Size  int
	Nonce2Space *uint256.Int
	Nonce2Inc   *uint256.Int
	Target      Target
	Clean       bool
}

// NewJob assembles a job from already decoded parts.
func NewJob(id string, header block.Header, timeHex string, sn ServerNonce, target Target, clean bool) *Job {
	header.Nonce = sn.Nonce1
	header.Solution = nil
	return &Job{
		ID:          id,
		Header:      header,
		Time:        timeHex,
		Nonce1Size:  sn.Size,
		Nonce2Space: new(uint256.Int).Set(sn.Space),
		Nonce2Inc:   new(uint256.Int).Set(sn.Inc),
		Target:      target,
		Clean:       clean,
	}
}

func (j *Job) String() string {
	return fmt.Sprintf("job %s (clean=%t, target=%s)", j.ID, j.Clean, j.Target.Hex())
}

// ParseJob decodes mining.notify parameters:
//
//	[job_id, clean, target, partial_hash, ntime]
//
// ntime is optional and defaults to the current unix time. The server nonce
// must have been set first.
func (m *Miner) ParseJob(params []interface{}) (*Job, error) {
	const op = "parse job"
	if len(params) < 4 {
		return nil, protocolError(op, fmt.Sprintf("expected at least 4 params, got %d", len(params)), nil)
	}

	id, ok := params[0].(string)
	if !ok || id == "" {
		return nil, protocolError(op, "job id must be a non-empty string", nil)
	}
	clean, err := parseBool(params[1])
	if err != nil {
		return nil, protocolError(op, "invalid clean flag", err)
	}
	targetHex, ok := params[2].(string)
	if !ok {
		return nil, protocolError(op, "target must be a string", nil)
	}
	target, err := ParseTarget(targetHex)
	if err != nil {
		return nil, err
	}
	partialHash, ok := params[3].(string)
	if !ok {
		return nil, protocolError(op, "partial hash must be a string", nil)
	}

	timeHex := block.TimestampHex(uint64(time.Now().Unix()))
	if len(params) > 4 {
		s, ok := params[4].(string)
		if !ok {
			return nil, protocolError(op, "ntime must be a string", nil)
		}
		timeHex = s
	}

	header, err := block.ParseHeader(partialHash, timeHex)
	if err != nil {
		return nil, protocolError(op, "invalid block header parameters", err)
	}

	sn, ok := m.ServerNonce()
	if !ok {
		return nil, protocolError(op, "server nonce not set", nil)
	}
	return NewJob(id, header, timeHex, sn, target, clean), nil
}

func parseBool(v interface{}) (bool, error) {
	switch b := v.(type) {
	case bool:
		return b, nil
	case string:
		return strconv.ParseBool(b)
	default:
		return false, fmt.Errorf("unexpected type %T", v)
	}
}
