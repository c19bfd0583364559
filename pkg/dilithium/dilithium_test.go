package dilithium

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/dilithium-sca/pkg/masking"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"github.com/taurusgroup/dilithium-sca/pkg/pool"
)

type recorder struct {
	shares []masking.Boolean
	calls  int
	c      Poly
	y, z   []Poly
}

func (r *recorder) RecordMaskShares(shares masking.Boolean) {
	r.shares = append(r.shares, shares)
}

func (r *recorder) RecordChallengeAndResponses(c *Poly, y, z []Poly) {
	r.calls++
	r.c = *c
	r.y = append([]Poly(nil), y...)
	r.z = append([]Poly(nil), z...)
}

func generate(t *testing.T, mode params.Mode) *PrivateKey {
	t.Helper()
	_, sk, err := GenerateKey(rand.Reader, mode, pool.NewPool(0))
	require.NoError(t, err)
	return sk
}

func TestGenerateKey(t *testing.T) {
	for _, mode := range []params.Mode{params.Mode2, params.Mode3, params.Mode5} {
		sk := generate(t, mode)
		p := sk.Params()
		s1 := sk.S1()
		require.Len(t, s1, p.L)
		for j := range s1 {
			assert.LessOrEqual(t, s1[j].Norm(), int32(p.Eta))
		}
	}
	_, _, err := GenerateKey(rand.Reader, params.Mode(4), nil)
	assert.Error(t, err)
}

func checkSignature(t *testing.T, sk *PrivateKey, sig *Signature, r *recorder) {
	t.Helper()
	p := sk.Params()
	require.Equal(t, 1, r.calls)
	assert.Len(t, sig.CTilde, p.CTildeBytes)

	weight := 0
	for _, x := range r.c {
		if x != 0 {
			weight++
		}
	}
	assert.Equal(t, p.Tau, weight)

	s1 := sk.S1()
	for j := range r.z {
		assert.Less(t, r.z[j].Norm(), p.Gamma1()-p.Beta())
		assert.Equal(t, sig.Z[j], r.z[j])
		cs1 := mulSparse(&r.c, &s1[j])
		for n := range r.z[j] {
			require.Equal(t, r.y[j][n]+cs1[n], r.z[j][n])
		}
	}
}

func TestSign(t *testing.T) {
	sk := generate(t, params.Mode2)
	r := &recorder{}
	sig, err := sk.Sign(rand.Reader, []byte("hello"), r)
	require.NoError(t, err)
	checkSignature(t, sk, sig, r)
	assert.Empty(t, r.shares, "unmasked signing reports no shares")
}

func TestMaskedSign(t *testing.T) {
	sk := generate(t, params.Mode3)
	p := sk.Params()
	r := &recorder{}
	sig, err := MaskedSigner{Key: sk}.Sign(rand.Reader, []byte("hello"), r)
	require.NoError(t, err)
	checkSignature(t, sk, sig, r)

	// One share set per coefficient per iteration, the accepted one last.
	require.NotEmpty(t, r.shares)
	require.Zero(t, len(r.shares)%p.Coefficients())
	last := r.shares[len(r.shares)-p.Coefficients():]
	offset := uint32(p.Gamma1() - 1)
	for j := range r.y {
		for n, y := range r.y[j] {
			assert.Equal(t, uint32(y)+offset, last[j*params.N+n].Unmask())
		}
	}
}

func TestSignNilHooks(t *testing.T) {
	sk := generate(t, params.Mode2)
	assert.PanicsWithValue(t, ErrNilHooks, func() { _, _ = sk.Sign(rand.Reader, nil, nil) })
	assert.PanicsWithValue(t, ErrNilHooks, func() { _, _ = MaskedSigner{Key: sk}.Sign(rand.Reader, nil, nil) })
}

func TestPrivateKey_MarshalBinary(t *testing.T) {
	sk := generate(t, params.Mode5)
	data, err := sk.MarshalBinary()
	require.NoError(t, err)

	var sk2 PrivateKey
	require.NoError(t, sk2.UnmarshalBinary(data))
	assert.Equal(t, sk.S1(), sk2.S1())
	assert.Equal(t, sk.Params(), sk2.Params())

	// Both keys expand the same A.
	y := sk.expandMask(make([]byte, params.CRHBytes), 0)
	assert.Equal(t, sk.mulA(y), sk2.mulA(y))

	assert.Error(t, sk2.UnmarshalBinary([]byte{0xff}))
}

func TestDecompose(t *testing.T) {
	for _, gamma2 := range []int32{(params.Q - 1) / 88, (params.Q - 1) / 32} {
		for _, r := range []uint64{0, 1, uint64(gamma2), uint64(gamma2) + 1, params.Q - 1, params.Q / 2} {
			r1, r0 := decompose(r, gamma2)
			assert.Equal(t, r, mod(int64(r1)*int64(2*gamma2)+int64(r0)), "r = %d", r)
			assert.LessOrEqual(t, r0, gamma2)
			assert.GreaterOrEqual(t, r0, -gamma2)
		}
	}
}

func TestMulSparse(t *testing.T) {
	var c, s Poly
	c[1] = 1
	s[params.N-1] = 3
	out := mulSparse(&c, &s)
	// X·3X²⁵⁵ = 3X²⁵⁶ = -3
	assert.Equal(t, int32(-3), out[0])

	var sq [params.N]uint32
	sq[params.N-1] = 3
	outQ := mulSparseModQ(&c, &sq)
	assert.Equal(t, uint32(params.Q-3), outQ[0])
}
