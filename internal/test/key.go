package test

import (
	"testing"

	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/hash"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"github.com/taurusgroup/dilithium-sca/pkg/pool"
)

// Key returns a private key of the given mode derived from seed, so that
// repeated calls return the same key.
func Key(tb testing.TB, mode params.Mode, seed string, pl *pool.Pool) *dilithium.PrivateKey {
	tb.Helper()
	_, sk, err := dilithium.GenerateKey(hash.Stream([]byte(seed), 0), mode, pl)
	if err != nil {
		tb.Fatalf("generate key: %v", err)
	}
	return sk
}
