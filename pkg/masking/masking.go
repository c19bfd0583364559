// Package masking implements the share representations used by the masked
// signer: Boolean shares (x = s₀ ⊕ s₁ ⊕ …) and arithmetic shares modulo q
// (x = s₀ + s₁ + … mod q).
//
// The gadgets here reproduce the data flow of a masked implementation, so
// that the harness observes the same intermediates; they make no claim of
// leakage resistance on a general purpose CPU.
package masking

import (
	"io"

	"github.com/taurusgroup/dilithium-sca/pkg/math/sample"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
)

// Boolean holds the Boolean shares of a value.
type Boolean [params.ShareCount]uint32

// Arithmetic holds the arithmetic shares of a value modulo q.
type Arithmetic [params.ShareCount]uint32

// ShareBoolean splits x into fresh Boolean shares.
func ShareBoolean(rand io.Reader, x uint32) Boolean {
	var b Boolean
	b[0] = x
	for i := 1; i < params.ShareCount; i++ {
		b[i] = sample.Uint32(rand)
		b[0] ^= b[i]
	}
	return b
}

// Unmask recombines the shares.
func (b Boolean) Unmask() uint32 {
	var x uint32
	for _, s := range b {
		x ^= s
	}
	return x
}

// ShareArithmetic splits x ∈ [0, q) into fresh arithmetic shares.
func ShareArithmetic(rand io.Reader, x uint32) Arithmetic {
	var a Arithmetic
	a[0] = x
	for i := 1; i < params.ShareCount; i++ {
		a[i] = sample.ModQ(rand)
		a[0] = subQ(a[0], a[i])
	}
	return a
}

// Unmask recombines the shares into [0, q).
func (a Arithmetic) Unmask() uint32 {
	var x uint32
	for _, s := range a {
		x = addQ(x, s)
	}
	return x
}

// Add returns the share-wise sum a + b.
func (a Arithmetic) Add(b Arithmetic) Arithmetic {
	var c Arithmetic
	for i := range c {
		c[i] = addQ(a[i], b[i])
	}
	return c
}

// AddPublic adds the public value x ∈ [0, q) to the first share only.
func (a Arithmetic) AddPublic(x uint32) Arithmetic {
	a[0] = addQ(a[0], x)
	return a
}

// BooleanToArithmetic converts Boolean shares of x < q into arithmetic shares
// of x modulo q, refreshing all but the first output share from rand.
func BooleanToArithmetic(rand io.Reader, b Boolean) Arithmetic {
	var a Arithmetic
	for i := 1; i < params.ShareCount; i++ {
		a[i] = sample.ModQ(rand)
	}
	acc := uint32(0)
	for i := 1; i < params.ShareCount; i++ {
		acc = addQ(acc, a[i])
	}
	a[0] = subQ(b.Unmask()%params.Q, acc)
	return a
}

func addQ(a, b uint32) uint32 {
	c := a + b
	if c >= params.Q {
		c -= params.Q
	}
	return c
}

func subQ(a, b uint32) uint32 {
	return addQ(a, params.Q-b)
}
