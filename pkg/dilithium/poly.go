package dilithium

import (
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"github.com/tuneinsight/lattigo/v4/ring"
)

// Poly is a ring element with centered coefficients.
type Poly [params.N]int32

// Norm returns the infinity norm of p, assuming centered coefficients.
func (p *Poly) Norm() int32 {
	var m int32
	for _, x := range p {
		if x < 0 {
			x = -x
		}
		if x > m {
			m = x
		}
	}
	return m
}

// mod returns x mod q in [0, q).
func mod(x int64) uint64 {
	r := x % params.Q
	if r < 0 {
		r += params.Q
	}
	return uint64(r)
}

// center maps x ∈ [0, q) to (-(q-1)/2, (q-1)/2].
func center(x uint64) int32 {
	if x > (params.Q-1)/2 {
		return int32(x) - params.Q
	}
	return int32(x)
}

func (p *Poly) toRing(out *ring.Poly) {
	for i, x := range p {
		out.Coeffs[0][i] = mod(int64(x))
	}
}

func (p *Poly) fromRing(in *ring.Poly) {
	for i := range p {
		p[i] = center(in.Coeffs[0][i])
	}
}

// mulSparse returns c·s in ℤ[X]/(Xᴺ + 1), for a challenge c with coefficients
// in {-1, 0, 1}. No reduction happens: the result is exact for small s.
func mulSparse(c, s *Poly) (out Poly) {
	for k, ck := range c {
		if ck == 0 {
			continue
		}
		for i, si := range s {
			if j := i + k; j < params.N {
				out[j] += ck * si
			} else {
				out[j-params.N] -= ck * si
			}
		}
	}
	return
}

// mulSparseModQ is mulSparse for s given mod q, with output mod q.
func mulSparseModQ(c *Poly, s *[params.N]uint32) (out [params.N]uint32) {
	for k, ck := range c {
		if ck == 0 {
			continue
		}
		for i, si := range s {
			j, neg := i+k, ck < 0
			if j >= params.N {
				j -= params.N
				neg = !neg
			}
			if neg {
				out[j] = uint32(mod(int64(out[j]) - int64(si)))
			} else {
				out[j] = uint32(mod(int64(out[j]) + int64(si)))
			}
		}
	}
	return
}

// decompose splits r ∈ [0, q) into r = r₁·2γ₂ + r₀ with r₀ centered.
func decompose(r uint64, gamma2 int32) (r1, r0 int32) {
	alpha := 2 * gamma2
	r0 = int32(r % uint64(alpha))
	if r0 > gamma2 {
		r0 -= alpha
	}
	if int64(r)-int64(r0) == params.Q-1 {
		return 0, r0 - 1
	}
	return (int32(r) - r0) / alpha, r0
}
