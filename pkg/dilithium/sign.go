package dilithium

import (
	"fmt"
	"io"

	"github.com/taurusgroup/dilithium-sca/pkg/masking"
	"github.com/taurusgroup/dilithium-sca/pkg/math/sample"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"golang.org/x/crypto/sha3"
)

// Sign signs msg with the unmasked secret key.
func (sk *PrivateKey) Sign(rand io.Reader, msg []byte, hooks Hooks) (*Signature, error) {
	if hooks == nil {
		panic(ErrNilHooks)
	}
	return sk.sign(rand, msg, hooks, func(rhoPrime []byte, kappa uint16) (y []Poly, cs1 func(c *Poly) []Poly) {
		return sk.expandMask(rhoPrime, kappa), func(c *Poly) []Poly {
			out := make([]Poly, len(sk.s1))
			for j := range sk.s1 {
				out[j] = mulSparse(c, &sk.s1[j])
			}
			return out
		}
	})
}

// MaskedSigner signs with s₁ and y split into params.ShareCount shares.
//
// s₁ is re-masked on every call. Every coefficient of y is generated as
// Boolean shares of y + γ₁ - 1, reported through Hooks.RecordMaskShares, and
// converted to arithmetic shares before z is computed share-wise.
type MaskedSigner struct {
	Key *PrivateKey
}

// Sign implements Signer.
func (m MaskedSigner) Sign(rand io.Reader, msg []byte, hooks Hooks) (*Signature, error) {
	if hooks == nil {
		panic(ErrNilHooks)
	}
	sk := m.Key
	p := sk.params
	ms1 := maskVector(rand, sk.s1)
	offset := uint32(p.Gamma1() - 1)

	return sk.sign(rand, msg, hooks, func(rhoPrime []byte, kappa uint16) ([]Poly, func(c *Poly) []Poly) {
		y := sk.expandMask(rhoPrime, kappa)
		my := make([][params.N]masking.Arithmetic, len(y))
		for j := range y {
			for n, x := range y[j] {
				shares := masking.ShareBoolean(rand, uint32(x)+offset)
				hooks.RecordMaskShares(shares)
				my[j][n] = masking.BooleanToArithmetic(rand, shares).AddPublic(params.Q - offset)
			}
		}
		return y, func(c *Poly) []Poly {
			out := make([]Poly, len(y))
			for j := range ms1 {
				var share [params.N]uint32
				var sums [params.N]masking.Arithmetic
				for i := 0; i < params.ShareCount; i++ {
					for n := range share {
						share[n] = ms1[j][n][i]
					}
					prod := mulSparseModQ(c, &share)
					for n := range prod {
						sums[n][i] = prod[n]
					}
				}
				// z = y + c·s₁ share by share, then unmasked minus y
				for n := range sums {
					z := my[j][n].Add(sums[n]).Unmask()
					out[j][n] = center(uint64(z)) - y[j][n]
				}
			}
			return out
		}
	})
}

func maskVector(rand io.Reader, v []Poly) [][params.N]masking.Arithmetic {
	out := make([][params.N]masking.Arithmetic, len(v))
	for j := range v {
		for n, x := range v[j] {
			out[j][n] = masking.ShareArithmetic(rand, uint32(mod(int64(x))))
		}
	}
	return out
}

// iteration returns y for the given nonce, and a function computing c·s₁.
type iteration func(rhoPrime []byte, kappa uint16) (y []Poly, cs1 func(c *Poly) []Poly)

// sign runs the rejection loop shared by the masked and unmasked signers.
func (sk *PrivateKey) sign(rand io.Reader, msg []byte, hooks Hooks, next iteration) (*Signature, error) {
	p := sk.params

	var mu [params.CRHBytes]byte
	h := sha3.NewShake256()
	_, _ = h.Write(sk.tr[:])
	_, _ = h.Write(msg)
	_, _ = h.Read(mu[:])

	rnd := make([]byte, params.SeedBytes)
	if _, err := io.ReadFull(rand, rnd); err != nil {
		return nil, fmt.Errorf("dilithium: read randomness: %w", err)
	}
	rhoPrime := make([]byte, params.CRHBytes)
	h.Reset()
	_, _ = h.Write(sk.key[:])
	_, _ = h.Write(rnd)
	_, _ = h.Write(mu[:])
	_, _ = h.Read(rhoPrime)

	gamma1, beta := p.Gamma1(), p.Beta()
	kappa := uint16(0)
	for iter := 0; iter < maxIterations; iter, kappa = iter+1, kappa+uint16(p.L) {
		y, cs1 := next(rhoPrime, kappa)
		w := sk.mulA(y)

		w1 := make([]byte, 0, p.K*params.N)
		for i := range w {
			for _, x := range w[i] {
				r1, _ := decompose(mod(int64(x)), p.Gamma2)
				w1 = append(w1, byte(r1))
			}
		}
		cTilde := make([]byte, p.CTildeBytes)
		h.Reset()
		_, _ = h.Write(mu[:])
		_, _ = h.Write(w1)
		_, _ = h.Read(cTilde)
		c := Poly(sample.InBall(cTilde, p.Tau))

		cs := cs1(&c)
		z := make([]Poly, p.L)
		reject := false
		for j := range z {
			for n := range z[j] {
				z[j][n] = y[j][n] + cs[j][n]
			}
			if z[j].Norm() >= gamma1-beta {
				reject = true
			}
		}
		if reject {
			continue
		}

		for i := range w {
			cs2 := mulSparse(&c, &sk.s2[i])
			for n, x := range w[i] {
				_, r0 := decompose(mod(int64(x)-int64(cs2[n])), p.Gamma2)
				if r0 < 0 {
					r0 = -r0
				}
				if r0 >= p.Gamma2-beta {
					reject = true
				}
			}
		}
		if reject {
			continue
		}

		hooks.RecordChallengeAndResponses(&c, y, z)
		return &Signature{CTilde: cTilde, Z: z}, nil
	}
	return nil, ErrTooManyRejections
}

func (sk *PrivateKey) expandMask(rhoPrime []byte, kappa uint16) []Poly {
	y := make([]Poly, sk.params.L)
	for j := range y {
		y[j] = sample.Mask(rhoPrime, kappa+uint16(j), sk.params.Gamma1Bits)
	}
	return y
}
