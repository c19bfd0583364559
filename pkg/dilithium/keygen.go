package dilithium

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
	"github.com/taurusgroup/dilithium-sca/pkg/math/sample"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"github.com/taurusgroup/dilithium-sca/pkg/pool"
	"github.com/tuneinsight/lattigo/v4/ring"
	"golang.org/x/crypto/sha3"
)

// PublicKey is a Dilithium public key (ρ, t₁).
type PublicKey struct {
	Rho [params.SeedBytes]byte
	T1  []Poly
}

// PrivateKey is a Dilithium private key.
//
// Once created it is only read, and may be shared between concurrent signers.
type PrivateKey struct {
	params params.Params

	rho [params.SeedBytes]byte
	key [params.SeedBytes]byte
	tr  [params.TRBytes]byte
	s1  []Poly
	s2  []Poly

	// Cached values
	ring *ring.Ring
	// a holds the matrix A in the NTT domain
	a [][]*ring.Poly
}

// GenerateKey creates a key pair for the given mode, reading its seed from rand.
//
// The expansion of A is parallelized over pl, which may be nil.
func GenerateKey(rand io.Reader, mode params.Mode, pl *pool.Pool) (*PublicKey, *PrivateKey, error) {
	p, err := params.ForMode(mode)
	if err != nil {
		return nil, nil, err
	}
	seed := make([]byte, params.SeedBytes)
	if _, err = io.ReadFull(rand, seed); err != nil {
		return nil, nil, fmt.Errorf("dilithium: read seed: %w", err)
	}

	var expanded [2*params.SeedBytes + params.CRHBytes]byte
	sha3.ShakeSum256(expanded[:], seed)
	rhoPrime := expanded[params.SeedBytes : params.SeedBytes+params.CRHBytes]

	sk := &PrivateKey{params: p}
	copy(sk.rho[:], expanded[:params.SeedBytes])
	copy(sk.key[:], expanded[params.SeedBytes+params.CRHBytes:])

	sk.s1 = make([]Poly, p.L)
	for j := range sk.s1 {
		sk.s1[j] = sample.Bounded(rhoPrime, p.Eta, uint16(j))
	}
	sk.s2 = make([]Poly, p.K)
	for i := range sk.s2 {
		sk.s2[i] = sample.Bounded(rhoPrime, p.Eta, uint16(p.L+i))
	}
	if err = sk.precompute(pl); err != nil {
		return nil, nil, err
	}

	// t = A·s₁ + s₂, split as t₁·2ᵈ + t₀
	t := sk.mulA(sk.s1)
	pk := &PublicKey{Rho: sk.rho, T1: make([]Poly, p.K)}
	for i := range t {
		for n := range t[i] {
			r := mod(int64(t[i][n]) + int64(sk.s2[i][n]))
			r0 := int32(r & (1<<params.D - 1))
			if r0 > 1<<(params.D-1) {
				r0 -= 1 << params.D
			}
			pk.T1[i][n] = (int32(r) - r0) >> params.D
		}
	}
	sha3.ShakeSum256(sk.tr[:], pk.Bytes())
	return pk, sk, nil
}

// Bytes returns a simple encoding of the public key, used to compute tr.
func (pk *PublicKey) Bytes() []byte {
	out := make([]byte, 0, params.SeedBytes+2*params.N*len(pk.T1))
	out = append(out, pk.Rho[:]...)
	for i := range pk.T1 {
		for _, x := range pk.T1[i] {
			out = binary.LittleEndian.AppendUint16(out, uint16(x))
		}
	}
	return out
}

// precompute builds the ring and expands A.
func (sk *PrivateKey) precompute(pl *pool.Pool) error {
	r, err := ring.NewRing(params.N, []uint64{params.Q})
	if err != nil {
		return fmt.Errorf("dilithium: ring: %w", err)
	}
	sk.ring = r

	k, l := sk.params.K, sk.params.L
	sk.a = make([][]*ring.Poly, k)
	for i := range sk.a {
		sk.a[i] = make([]*ring.Poly, l)
	}
	pl.Parallelize(k*l, func(idx int) {
		i, j := idx/l, idx%l
		coeffs := sample.Uniform(sk.rho[:], byte(i), byte(j))
		p := r.NewPoly()
		for n, c := range coeffs {
			p.Coeffs[0][n] = uint64(c)
		}
		sk.a[i][j] = p
	})
	return nil
}

// mulA returns A·v with centered coefficients.
func (sk *PrivateKey) mulA(v []Poly) []Poly {
	r := sk.ring
	vHat := make([]*ring.Poly, len(v))
	for j := range v {
		vHat[j] = r.NewPoly()
		v[j].toRing(vHat[j])
		r.NTT(vHat[j], vHat[j])
	}

	out := make([]Poly, sk.params.K)
	acc, tmp := r.NewPoly(), r.NewPoly()
	for i := range out {
		acc.Zero()
		for j := range vHat {
			r.MulCoeffs(sk.a[i][j], vHat[j], tmp)
			r.Add(acc, tmp, acc)
		}
		r.InvNTT(acc, tmp)
		out[i].fromRing(tmp)
	}
	return out
}

// Params returns the parameter set of the key.
func (sk *PrivateKey) Params() params.Params {
	return sk.params
}

// S1 returns a copy of the secret vector s₁, with centered coefficients.
func (sk *PrivateKey) S1() []Poly {
	return append([]Poly(nil), sk.s1...)
}

type keyMarshal struct {
	Mode   params.Mode
	Rho    []byte
	Key    []byte
	Tr     []byte
	S1, S2 []Poly
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (sk *PrivateKey) MarshalBinary() ([]byte, error) {
	return cbor.Marshal(&keyMarshal{
		Mode: sk.params.Mode,
		Rho:  sk.rho[:],
		Key:  sk.key[:],
		Tr:   sk.tr[:],
		S1:   sk.s1,
		S2:   sk.s2,
	})
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (sk *PrivateKey) UnmarshalBinary(data []byte) error {
	var km keyMarshal
	if err := cbor.Unmarshal(data, &km); err != nil {
		return fmt.Errorf("dilithium: unmarshal key: %w", err)
	}
	p, err := params.ForMode(km.Mode)
	if err != nil {
		return err
	}
	if len(km.Rho) != params.SeedBytes || len(km.Key) != params.SeedBytes || len(km.Tr) != params.TRBytes {
		return errors.New("dilithium: unmarshal key: invalid seed length")
	}
	if len(km.S1) != p.L || len(km.S2) != p.K {
		return errors.New("dilithium: unmarshal key: invalid vector length")
	}
	for _, v := range [][]Poly{km.S1, km.S2} {
		for i := range v {
			if v[i].Norm() > int32(p.Eta) {
				return errors.New("dilithium: unmarshal key: secret coefficient out of range")
			}
		}
	}

	*sk = PrivateKey{params: p, s1: km.S1, s2: km.S2}
	copy(sk.rho[:], km.Rho)
	copy(sk.key[:], km.Key)
	copy(sk.tr[:], km.Tr)
	return sk.precompute(nil)
}
