package sample

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"golang.org/x/crypto/sha3"
)

const maxIterations = 255

var ErrMaxIterations = fmt.Errorf("sample: failed to generate after %d iterations", maxIterations)

const (
	shake128Rate = 168
	shake256Rate = 136
)

func mustReadBits(rand io.Reader, buf []byte) {
	for i := 0; i < maxIterations; i++ {
		if _, err := io.ReadFull(rand, buf); err == nil {
			return
		}
	}
	panic(ErrMaxIterations)
}

// Uint32 reads a uniform 32-bit word from rand.
func Uint32(rand io.Reader) uint32 {
	var buf [4]byte
	mustReadBits(rand, buf[:])
	return binary.LittleEndian.Uint32(buf[:])
}

// ModQ returns a uniform element of ℤ_q, read from rand.
func ModQ(rand io.Reader) uint32 {
	for i := 0; i < maxIterations; i++ {
		x := Uint32(rand) & 0x7fffff
		if x < params.Q {
			return x
		}
	}
	panic(ErrMaxIterations)
}

// Bytes fills a fresh slice of length n from rand.
func Bytes(rand io.Reader, n int) []byte {
	buf := make([]byte, n)
	mustReadBits(rand, buf)
	return buf
}

// Uniform samples a polynomial with coefficients uniform in [0, q), by
// rejection sampling on SHAKE128(ρ ‖ j ‖ i).
//
// The output is interpreted in the NTT domain.
func Uniform(rho []byte, i, j byte) (out [params.N]uint32) {
	h := sha3.NewShake128()
	_, _ = h.Write(rho)
	_, _ = h.Write([]byte{j, i})

	var buf [shake128Rate]byte
	n := 0
	for n < params.N {
		_, _ = h.Read(buf[:])
		for k := 0; k+3 <= len(buf) && n < params.N; k += 3 {
			d := uint32(buf[k]) | uint32(buf[k+1])<<8 | (uint32(buf[k+2])&0x7f)<<16
			if d < params.Q {
				out[n] = d
				n++
			}
		}
	}
	return
}

// Bounded samples a polynomial with centered coefficients in [-η, η] from
// SHAKE256(seed ‖ nonce). Only η ∈ {2, 4} are supported.
func Bounded(seed []byte, eta int, nonce uint16) (out [params.N]int32) {
	if eta != 2 && eta != 4 {
		panic(fmt.Sprintf("sample: unsupported η = %d", eta))
	}
	h := sha3.NewShake256()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	var buf [shake256Rate]byte
	n := 0
	for n < params.N {
		_, _ = h.Read(buf[:])
		for k := 0; k < len(buf) && n < params.N; k++ {
			for _, z := range [2]byte{buf[k] & 0x0f, buf[k] >> 4} {
				if n == params.N {
					break
				}
				switch {
				case eta == 2 && z < 15:
					out[n] = 2 - int32(z%5)
					n++
				case eta == 4 && z < 9:
					out[n] = 4 - int32(z)
					n++
				}
			}
		}
	}
	return
}

// Mask samples y with centered coefficients in (-γ₁, γ₁], where γ₁ = 2^gamma1Bits,
// by unpacking (gamma1Bits+1)-bit little-endian words of SHAKE256(seed ‖ nonce).
func Mask(seed []byte, nonce uint16, gamma1Bits int) (out [params.N]int32) {
	bits := gamma1Bits + 1
	h := sha3.NewShake256()
	_, _ = h.Write(seed)
	_, _ = h.Write([]byte{byte(nonce), byte(nonce >> 8)})

	buf := make([]byte, params.N*bits/8)
	_, _ = h.Read(buf)

	gamma1 := int32(1) << gamma1Bits
	mask := uint64(1)<<bits - 1
	var acc uint64
	accBits := 0
	pos := 0
	for i := range out {
		for accBits < bits {
			acc |= uint64(buf[pos]) << accBits
			pos++
			accBits += 8
		}
		out[i] = gamma1 - int32(acc&mask)
		acc >>= bits
		accBits -= bits
	}
	return
}

// InBall samples the challenge polynomial: exactly τ coefficients in {-1, 1},
// the rest 0, placed by a Fisher-Yates shuffle driven by SHAKE256(seed).
func InBall(seed []byte, tau int) (out [params.N]int32) {
	h := sha3.NewShake256()
	_, _ = h.Write(seed)

	var buf [shake256Rate]byte
	_, _ = h.Read(buf[:])
	signs := binary.LittleEndian.Uint64(buf[:8])
	pos := 8

	for i := params.N - tau; i < params.N; i++ {
		var j int
		for {
			if pos >= len(buf) {
				_, _ = h.Read(buf[:])
				pos = 0
			}
			j = int(buf[pos])
			pos++
			if j <= i {
				break
			}
		}
		out[i] = out[j]
		out[j] = 1 - 2*int32(signs&1)
		signs >>= 1
	}
	return
}
