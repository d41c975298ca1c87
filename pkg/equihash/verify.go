package equihash

import (
	"errors"
)

// Verifier checks minimal solutions for a fixed (N, K). It holds no
// per-call state and is safe for concurrent use.
type Verifier struct {
	params Params
}

// NewVerifier returns a verifier for p.
func NewVerifier(p Params) (*Verifier, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Verifier{params: p}, nil
}

// Params returns the verifier's parameters.
func (v *Verifier) Params() Params { return v.params }

// Validate returns nil when soln is a valid minimal solution for preimage.
// A wrong-size solution yields an ErrInvalidLength error before any hashing;
// a structural failure yields a *SolutionError.
func (v *Verifier) Validate(preimage, soln []byte) error {
	p := v.params
	if len(soln) != p.SolutionWidth() {
		return newError(ErrorInvalidLength, "solution width mismatch", map[string]interface{}{
			"want": p.SolutionWidth(), "got": len(soln),
		})
	}

	indices, err := IndicesFromMinimal(soln, p.CollisionBitLength())
	if err != nil {
		return err
	}
	if len(indices) != p.ProofSize() {
		return newError(ErrorInternal, "expanded index count mismatch", map[string]interface{}{
			"want": p.ProofSize(), "got": len(indices),
		})
	}

	h := NewHasher(p, preimage)
	rows := make([]StepRow, 0, len(indices))
	for _, i := range indices {
		row, err := h.Row(i)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	cByteLen := p.CollisionByteLength()
	for round := 1; len(rows) > 1; round++ {
		next := make([]StepRow, 0, len(rows)/2)
		for i := 0; i < len(rows); i += 2 {
			a, b := rows[i], rows[i+1]
			pair := i / 2
			if !a.HasCollision(b, cByteLen) {
				return &SolutionError{Reason: ReasonNoCollision, Round: round, Pair: pair}
			}
			if b.IndicesBefore(a) {
				return &SolutionError{Reason: ReasonIndicesOrder, Round: round, Pair: pair}
			}
			if !DistinctIndices(a, b) {
				return &SolutionError{Reason: ReasonDuplicateIndices, Round: round, Pair: pair}
			}
			next = append(next, MergeRows(a, b, cByteLen))
		}
		rows = next
	}

	residual := p.HashLength() - int(p.K)*cByteLen
	if len(rows[0].Hash) != residual {
		return newError(ErrorInternal, "residual hash width mismatch", map[string]interface{}{
			"want": residual, "got": len(rows[0].Hash),
		})
	}
	if !rows[0].IsZero(residual) {
		return &SolutionError{Reason: ReasonNonZeroResidual}
	}
	return nil
}

// Verify reports whether soln is valid for preimage. Malformed input is a
// negative result, never a panic. Internal invariant violations are logged.
func (v *Verifier) Verify(preimage, soln []byte) bool {
	err := v.Validate(preimage, soln)
	if err == nil {
		return true
	}
	if errors.Is(err, ErrInternal) {
		log.Criticalf("Verifier invariant violated for %v: %v", v.params, err)
	} else {
		log.Tracef("Rejected solution: %v", err)
	}
	return false
}

var defaultVerifier = &Verifier{params: DefaultParams}

// Verify checks soln against preimage with DefaultParams.
func Verify(preimage, soln []byte) bool {
	return defaultVerifier.Verify(preimage, soln)
}
