// Package equation collects the samples observed during one signing attempt.
//
// A Buffer is the hook target of a single signature: the signer reports the
// Boolean shares of y coefficient by coefficient, then the challenge and the
// responses once, and the Buffer keeps the coefficients whose response is
// small enough to be useful to the attack.
package equation

import (
	"errors"

	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/masking"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
)

// ErrNoActiveBuffer is the panic value when a hook is called on a nil Buffer.
var ErrNoActiveBuffer = errors.New("equation: hook called without an active buffer")

// Record is one observed sample z = y + ⟨c, s₁⟩ at a single coefficient.
//
// The fixed size arrays keep the record flat, so that exporting is a plain copy.
type Record struct {
	Poly  uint8
	Coeff uint8
	// Response is the coefficient of z.
	Response int32
	// MaskedShare is the coefficient of y.
	MaskedShare int32
	// Challenge is shared by every Record of the same signature.
	Challenge     [params.N]int32
	BooleanShares masking.Boolean
}

// Buffer collects the Records of a single signature.
//
// A Buffer is owned by one goroutine and needs no locking.
type Buffer struct {
	threshold int32
	// shares is indexed by poly·N + coeff
	shares  []masking.Boolean
	cursor  int
	records []Record
	zeros   uint64
}

var _ dilithium.Hooks = (*Buffer)(nil)

// NewBuffer returns an empty buffer for the parameter set p.
func NewBuffer(p params.Params) *Buffer {
	return &Buffer{
		threshold: p.FilterThreshold,
		shares:    make([]masking.Boolean, p.Coefficients()),
	}
}

// RecordMaskShares stores shares at the next coefficient slot.
//
// A rejected iteration restarts the scan, so once every slot has been written
// the cursor wraps back to the first one.
func (b *Buffer) RecordMaskShares(shares masking.Boolean) {
	if b == nil {
		panic(ErrNoActiveBuffer)
	}
	if b.cursor >= len(b.shares) {
		b.cursor = 0
	}
	b.shares[b.cursor] = shares
	b.cursor++
}

// RecordChallengeAndResponses turns every coefficient with |z| < FilterThreshold
// into a Record, and counts the ones where y = 0.
func (b *Buffer) RecordChallengeAndResponses(c *dilithium.Poly, y, z []dilithium.Poly) {
	if b == nil {
		panic(ErrNoActiveBuffer)
	}
	for i := range z {
		for j, response := range z[i] {
			if response >= b.threshold || response <= -b.threshold {
				continue
			}
			share := y[i][j]
			if share == 0 {
				b.zeros++
			}
			b.records = append(b.records, Record{
				Poly:          uint8(i),
				Coeff:         uint8(j),
				Response:      response,
				MaskedShare:   share,
				Challenge:     *c,
				BooleanShares: b.shares[i*params.N+j],
			})
		}
	}
}

// Records returns the records collected so far.
func (b *Buffer) Records() []Record {
	return b.records
}

// Zeros returns the number of collected records with y = 0.
func (b *Buffer) Zeros() uint64 {
	return b.zeros
}
