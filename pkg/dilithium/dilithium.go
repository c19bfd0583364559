// Package dilithium implements an instrumented Dilithium signer.
//
// The signer reports its internal values through Hooks while it runs: the
// Boolean shares of every coefficient of y when masking is enabled, and the
// challenge c together with y and z = y + c·s₁ once an iteration is accepted.
// Hint computation and verification are left out: the signer exists to be
// observed, not to produce interoperable signatures.
package dilithium

import (
	"errors"
	"io"

	"github.com/taurusgroup/dilithium-sca/pkg/masking"
)

// Hooks receives the values observed during signing.
//
// Hooks are handed to Sign explicitly: a Hooks value belongs to a single
// signing call and is never shared between goroutines.
type Hooks interface {
	// RecordMaskShares is called once per coefficient of y, in polynomial
	// then coefficient order, for every iteration of the rejection loop.
	RecordMaskShares(shares masking.Boolean)
	// RecordChallengeAndResponses is called once per signature, for the
	// accepted iteration.
	RecordChallengeAndResponses(c *Poly, y, z []Poly)
}

// Signer produces one signature on msg, reporting to hooks.
type Signer interface {
	Sign(rand io.Reader, msg []byte, hooks Hooks) (*Signature, error)
}

// maxIterations bounds the rejection loop. The expected number of iterations
// is below 6 for every mode.
const maxIterations = 1000

var (
	// ErrNilHooks is the panic value when signing without Hooks.
	ErrNilHooks = errors.New("dilithium: sign called without hooks")
	// ErrTooManyRejections is returned when the rejection loop does not terminate.
	ErrTooManyRejections = errors.New("dilithium: too many rejections")
)

// Signature is a signature without its hint.
type Signature struct {
	CTilde []byte
	Z      []Poly
}
