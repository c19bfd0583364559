package sample

import (
	"bytes"
	"crypto/rand"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
)

func TestUniform(t *testing.T) {
	rho := Bytes(rand.Reader, params.SeedBytes)
	a := Uniform(rho, 0, 1)
	for _, x := range a {
		require.Less(t, x, uint32(params.Q))
	}
	assert.Equal(t, a, Uniform(rho, 0, 1), "Uniform must be deterministic")
	assert.NotEqual(t, a, Uniform(rho, 1, 0))
}

func TestBounded(t *testing.T) {
	seed := Bytes(rand.Reader, params.CRHBytes)
	for _, eta := range []int{2, 4} {
		s := Bounded(seed, eta, 7)
		seen := map[int32]bool{}
		for _, x := range s {
			require.LessOrEqual(t, x, int32(eta))
			require.GreaterOrEqual(t, x, int32(-eta))
			seen[x] = true
		}
		assert.Len(t, seen, 2*eta+1, "all values of [-η, η] should appear in 256 samples")
	}
	assert.Panics(t, func() { Bounded(seed, 3, 0) })
}

func TestMask(t *testing.T) {
	seed := Bytes(rand.Reader, params.CRHBytes)
	for _, bits := range []int{17, 19} {
		gamma1 := int32(1) << bits
		y := Mask(seed, 3, bits)
		for _, x := range y {
			require.Greater(t, x, -gamma1)
			require.LessOrEqual(t, x, gamma1)
		}
	}
}

func TestInBall(t *testing.T) {
	seed := Bytes(rand.Reader, params.CRHBytes)
	for _, tau := range []int{39, 49, 60} {
		c := InBall(seed, tau)
		weight := 0
		for _, x := range c {
			switch x {
			case 0:
			case 1, -1:
				weight++
			default:
				t.Fatalf("InBall produced coefficient %d", x)
			}
		}
		assert.Equal(t, tau, weight)
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("no entropy") }

func TestMustReadBitsPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrMaxIterations, func() { Uint32(failingReader{}) })
}

func TestModQ(t *testing.T) {
	r := bytes.NewReader(bytes.Repeat([]byte{0xff, 0xff, 0xff, 0x00}, 4))
	// 0x7fffff >= q is rejected until the reader runs dry.
	assert.Panics(t, func() { ModQ(r) })

	for i := 0; i < 100; i++ {
		assert.Less(t, ModQ(rand.Reader), uint32(params.Q))
	}
}

var resultPoly [params.N]int32

func BenchmarkMask(b *testing.B) {
	seed := Bytes(rand.Reader, params.CRHBytes)
	for i := 0; i < b.N; i++ {
		resultPoly = Mask(seed, uint16(i), 19)
	}
}
