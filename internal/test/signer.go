// Package test holds fixtures shared by the tests of several packages.
package test

import (
	"io"
	"sync/atomic"

	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/masking"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
)

// FixedSigner reports, for every signature, Records small responses on the
// first coefficients of s₁[0], of which the first Zeros have y = 0. The Boolean
// shares of slot i are {i, 0}.
type FixedSigner struct {
	Params  params.Params
	Records int
	Zeros   int

	calls atomic.Int64
}

// Calls returns the number of Sign calls so far.
func (s *FixedSigner) Calls() int64 {
	return s.calls.Load()
}

// Sign implements dilithium.Signer.
func (s *FixedSigner) Sign(_ io.Reader, _ []byte, hooks dilithium.Hooks) (*dilithium.Signature, error) {
	s.calls.Add(1)
	for slot := 0; slot < s.Params.Coefficients(); slot++ {
		hooks.RecordMaskShares(masking.Boolean{uint32(slot)})
	}
	var c dilithium.Poly
	c[0] = 1
	y := make([]dilithium.Poly, s.Params.L)
	z := make([]dilithium.Poly, s.Params.L)
	for i := range z {
		for j := range z[i] {
			z[i][j] = s.Params.FilterThreshold
			y[i][j] = 1
		}
	}
	for j := 0; j < s.Records; j++ {
		z[0][j] = 0
		if j < s.Zeros {
			y[0][j] = 0
		}
	}
	hooks.RecordChallengeAndResponses(&c, y, z)
	return &dilithium.Signature{Z: z}, nil
}
