package params

import "fmt"

const (
	// N is the number of coefficients of every ring element.
	N = 256
	// Q is the prime modulus 2²³ - 2¹³ + 1.
	Q = 8380417
	// D is the number of bits dropped from t.
	D = 13

	SeedBytes = 32
	CRHBytes  = 64
	TRBytes   = 64

	// ShareCount is the number of shares a masked value is split into.
	ShareCount = 2

	// MessageBytes is the length of the random messages signed by the harness.
	MessageBytes = 59
)

// Mode identifies one of the Dilithium parameter sets.
type Mode int

const (
	Mode2 Mode = 2
	Mode3 Mode = 3
	Mode5 Mode = 5
)

// Params holds the parameters of a single Dilithium mode.
type Params struct {
	Mode Mode

	K, L       int
	Eta        int
	Tau        int
	Gamma1Bits int
	Gamma2     int32
	Omega      int
	// CTildeBytes is the length of the challenge seed c̃.
	CTildeBytes int

	// FilterThreshold bounds the responses kept for the attack: only
	// coefficients with |z| < FilterThreshold become equations.
	FilterThreshold int32
}

var modes = map[Mode]Params{
	Mode2: {Mode: Mode2, K: 4, L: 4, Eta: 2, Tau: 39, Gamma1Bits: 17, Gamma2: (Q - 1) / 88, Omega: 80, CTildeBytes: 32, FilterThreshold: 50},
	Mode3: {Mode: Mode3, K: 6, L: 5, Eta: 4, Tau: 49, Gamma1Bits: 19, Gamma2: (Q - 1) / 32, Omega: 55, CTildeBytes: 48, FilterThreshold: 100},
	Mode5: {Mode: Mode5, K: 8, L: 7, Eta: 2, Tau: 60, Gamma1Bits: 19, Gamma2: (Q - 1) / 32, Omega: 75, CTildeBytes: 64, FilterThreshold: 80},
}

// ForMode returns the parameter set of mode m.
func ForMode(m Mode) (Params, error) {
	p, ok := modes[m]
	if !ok {
		return Params{}, fmt.Errorf("params: unknown mode %d", m)
	}
	return p, nil
}

// MustForMode is like ForMode, but panics on unknown modes.
func MustForMode(m Mode) Params {
	p, err := ForMode(m)
	if err != nil {
		panic(err)
	}
	return p
}

// Gamma1 is the bound on the coefficients of y.
func (p Params) Gamma1() int32 { return 1 << p.Gamma1Bits }

// Beta = τ·η, the maximum size of a coefficient of c·s₁.
func (p Params) Beta() int32 { return int32(p.Tau * p.Eta) }

// Coefficients returns L·N, the number of coefficient slots of a vector of length L.
func (p Params) Coefficients() int { return p.L * N }
