package miner

import (
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"equiminer/pkg/block"
	"equiminer/pkg/equihash"
)

// Stratum share error codes
const (
	ShareErrOther     = 20
	ShareErrNotFound  = 21
	ShareErrDuplicate = 22
)

// ShareError is a share rejection with its stratum code
type ShareError struct {
	Code    int
	Message string
}

func (e *ShareError) Error() string {
	return fmt.Sprintf("share rejected [%d]: %s", e.Code, e.Message)
}

// ShareRequest is one mining.submit as seen by the pool. The full nonce is
// ExtraNonce1 || ExtraNonce2.
type ShareRequest struct {
	JobID       string `json:"job_id"`
	ExtraNonce1 string `json:"extra_nonce1"`
	ExtraNonce2 string `json:"extra_nonce2"`
	Time        string `json:"time"`
	Solution    string `json:"solution"`
}

// RequestFromSubmission rebuilds the pool-side request for a submission
// made under nonce1.
func RequestFromSubmission(nonce1 string, s Submission) ShareRequest {
	p := s.Params()
	return ShareRequest{
		JobID:       p[0],
		ExtraNonce1: nonce1,
		ExtraNonce2: p[2],
		Time:        p[1],
		Solution:    p[3],
	}
}

// Registry remembers submitted shares
type Registry interface {
	// Register records key and reports false when it was already present
	Register(key string) (bool, error)
}

// MemoryRegistry is an in-process Registry
type MemoryRegistry struct {
	mutex sync.Mutex
	seen  map[string]struct{}
}

// NewMemoryRegistry creates an empty registry
func NewMemoryRegistry() *MemoryRegistry {
	return &MemoryRegistry{seen: make(map[string]struct{})}
}

// Register implements Registry
func (r *MemoryRegistry) Register(key string) (bool, error) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if _, ok := r.seen[key]; ok {
		return false, nil
	}
	r.seen[key] = struct{}{}
	return true, nil
}

// ShareKey identifies a submission for duplicate detection
func ShareKey(req ShareRequest) string {
	return strings.ToLower(req.ExtraNonce1) + strings.ToLower(req.ExtraNonce2) + strings.ToLower(req.Time)
}

// ShareResult is an accepted share
type ShareResult struct {
	JobID string `json:"job_id"`
	Hash  string `json:"hash"`
}

// CheckShare runs the pool-side share checks in order: job, field sizes,
// duplicate registration, Equihash validity and the target. job may be nil
// when the job id is unknown; registry may be nil.
func CheckShare(v *equihash.Verifier, job *Job, req ShareRequest, registry Registry) (*ShareResult, error) {
	if job == nil || job.ID != req.JobID {
		return nil, &ShareError{Code: ShareErrNotFound, Message: "job not found"}
	}
	if len(req.Time) != 2*block.TimestampSize {
		return nil, &ShareError{Code: ShareErrOther, Message: "incorrect size of ntime"}
	}
	nonceHex := req.ExtraNonce1 + req.ExtraNonce2
	if len(nonceHex) != 2*block.NonceSize {
		return nil, &ShareError{Code: ShareErrOther, Message: "incorrect size of nonce"}
	}
	width := v.Params().SolutionWidth()
	prefix := block.CompactSize(uint64(width))
	if len(req.Solution) != 2*(len(prefix)+width) {
		return nil, &ShareError{Code: ShareErrOther, Message: "incorrect size of solution"}
	}
	if _, err := hex.DecodeString(req.ExtraNonce2); err != nil {
		return nil, &ShareError{Code: ShareErrOther, Message: "invalid hex in extraNonce2"}
	}

	if registry != nil {
		fresh, err := registry.Register(ShareKey(req))
		if err != nil {
			return nil, fmt.Errorf("registering share: %w", err)
		}
		if !fresh {
			return nil, &ShareError{Code: ShareErrDuplicate, Message: "duplicate share"}
		}
	}

	header, err := block.ParseHeader(hex.EncodeToString(job.Header.PartialHash[:]), req.Time)
	if err != nil {
		return nil, &ShareError{Code: ShareErrOther, Message: err.Error()}
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil {
		return nil, &ShareError{Code: ShareErrOther, Message: "invalid hex in nonce"}
	}
	copy(header.Nonce[:], nonce)

	framed, err := hex.DecodeString(req.Solution)
	if err != nil {
		return nil, &ShareError{Code: ShareErrOther, Message: "invalid hex in solution"}
	}
	sol, err := block.UnframeSolution(framed)
	if err != nil {
		return nil, &ShareError{Code: ShareErrOther, Message: "incorrect size of solution"}
	}

	if !v.Verify(header.Preimage(), sol) {
		return nil, &ShareError{Code: ShareErrOther, Message: "invalid solution"}
	}

	header.Solution = sol
	hash := header.Hash()
	if !job.Target.Accepts(hash[:]) {
		return nil, &ShareError{Code: ShareErrOther, Message: "Header hash larger than target"}
	}
	return &ShareResult{JobID: job.ID, Hash: hex.EncodeToString(hash[:])}, nil
}
