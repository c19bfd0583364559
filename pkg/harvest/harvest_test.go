package harvest

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/dilithium-sca/internal/test"
	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/masking"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// randomSigner zeroes y on a fixed fraction of the coefficients, chosen from
// the worker's randomness.
type randomSigner struct {
	p params.Params
}

func (s randomSigner) Sign(rand io.Reader, _ []byte, hooks dilithium.Hooks) (*dilithium.Signature, error) {
	var buf [params.N]byte
	if _, err := io.ReadFull(rand, buf[:]); err != nil {
		return nil, err
	}
	var c dilithium.Poly
	y := make([]dilithium.Poly, s.p.L)
	z := make([]dilithium.Poly, s.p.L)
	for j, b := range buf {
		z[0][j] = int32(b) - 128
		y[0][j] = 1
		// 1 in 64
		if b&63 == 0 {
			y[0][j] = 0
		}
	}
	hooks.RecordChallengeAndResponses(&c, y, z)
	return &dilithium.Signature{Z: z}, nil
}

func newHarvester(t *testing.T, signer dilithium.Signer, seed []byte) *Harvester {
	t.Helper()
	h, err := New(Options{
		Params: params.MustForMode(params.Mode2),
		Signer: signer,
		Seed:   seed,
	})
	require.NoError(t, err)
	return h
}

func TestRun_Convergence(t *testing.T) {
	p := params.MustForMode(params.Mode2)
	for _, workers := range []int{1, 2, 8, 32} {
		const target = 100
		signer := &test.FixedSigner{Params: p, Records: 4, Zeros: 2}
		ds, err := newHarvester(t, signer, nil).Run(context.Background(), workers, target)
		require.NoError(t, err)

		// Never stops early, and overshoots by at most one attempt per worker.
		assert.GreaterOrEqual(t, ds.Zeros, uint64(target))
		assert.Less(t, ds.Zeros, uint64(target+2*workers))

		merged := uint64(signer.Calls())
		assert.Equal(t, 2*merged, ds.Zeros)
		assert.Len(t, ds.Records, int(4*merged))
		// Every worker spends one attempt on noticing the target is reached.
		assert.Equal(t, merged+uint64(workers), ds.Attempts)

		for _, r := range ds.Records {
			require.Less(t, r.Response, p.FilterThreshold)
			assert.Equal(t, masking.Boolean{uint32(r.Coeff)}, r.BooleanShares)
		}
	}
}

func TestRun_ZeroTarget(t *testing.T) {
	p := params.MustForMode(params.Mode2)
	signer := &test.FixedSigner{Params: p, Records: 4, Zeros: 2}
	ds, err := newHarvester(t, signer, nil).Run(context.Background(), 4, 0)
	require.NoError(t, err)
	assert.Empty(t, ds.Records)
	assert.Zero(t, ds.Zeros)
	assert.Zero(t, signer.Calls())
	assert.Equal(t, uint64(4), ds.Attempts)
}

func TestRun_SeededWorkers(t *testing.T) {
	p := params.MustForMode(params.Mode2)
	seed := []byte("fixed seed")
	const target = 50

	single, err := newHarvester(t, randomSigner{p: p}, seed).Run(context.Background(), 1, target)
	require.NoError(t, err)
	again, err := newHarvester(t, randomSigner{p: p}, seed).Run(context.Background(), 1, target)
	require.NoError(t, err)
	multi, err := newHarvester(t, randomSigner{p: p}, seed).Run(context.Background(), 4, target)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, single.Zeros, uint64(target))
	assert.GreaterOrEqual(t, multi.Zeros, uint64(target))
	// A single seeded worker is fully deterministic.
	assert.Equal(t, single.Records, again.Records)
	for _, r := range multi.Records {
		require.Less(t, r.Response, p.FilterThreshold)
		require.Greater(t, r.Response, -p.FilterThreshold)
	}
}

type errSigner struct{ err error }

func (s errSigner) Sign(io.Reader, []byte, dilithium.Hooks) (*dilithium.Signature, error) {
	return nil, s.err
}

func TestRun_SignerError(t *testing.T) {
	boom := errors.New("boom")
	ds, err := newHarvester(t, errSigner{err: boom}, nil).Run(context.Background(), 3, 1)
	assert.ErrorIs(t, err, boom)
	assert.Nil(t, ds)
}

type cancellingSigner struct {
	*test.FixedSigner
	cancel context.CancelFunc
	after  int64
}

func (s cancellingSigner) Sign(rand io.Reader, msg []byte, hooks dilithium.Hooks) (*dilithium.Signature, error) {
	if s.Calls() >= s.after {
		s.cancel()
	}
	return s.FixedSigner.Sign(rand, msg, hooks)
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := params.MustForMode(params.Mode2)
	signer := cancellingSigner{FixedSigner: &test.FixedSigner{Params: p, Records: 1}, cancel: cancel, after: 10}
	_, err := newHarvester(t, signer, nil).Run(ctx, 2, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNew(t *testing.T) {
	_, err := New(Options{Params: params.MustForMode(params.Mode2)})
	assert.Error(t, err)
	_, err = New(Options{Signer: errSigner{}})
	assert.Error(t, err)

	h := newHarvester(t, errSigner{}, nil)
	_, err = h.Run(context.Background(), 0, 1)
	assert.Error(t, err)

	assert.Equal(t, 0, h.reserve(0))
	assert.Equal(t, 2*params.MustForMode(params.Mode2).Coefficients(), h.reserve(2))
	assert.Equal(t, DefaultReserveLimit, h.reserve(1<<40))
	assert.Equal(t, DefaultReserveLimit, h.reserve(^uint64(0)))
}

func TestRun_Dilithium(t *testing.T) {
	if testing.Short() {
		t.Skip("signs real messages")
	}
	sk := test.Key(t, params.Mode2, "harvest", nil)
	p := sk.Params()

	for _, signer := range []dilithium.Signer{sk, dilithium.MaskedSigner{Key: sk}} {
		h, err := New(Options{Params: p, Signer: signer, Seed: []byte("dilithium")})
		require.NoError(t, err)
		ds, err := h.Run(context.Background(), 4, 1)
		require.NoError(t, err)
		require.GreaterOrEqual(t, ds.Zeros, uint64(1))

		_, masked := signer.(dilithium.MaskedSigner)
		offset := uint32(p.Gamma1() - 1)
		zeros := uint64(0)
		for _, r := range ds.Records {
			require.Less(t, r.Response, p.FilterThreshold)
			require.Greater(t, r.Response, -p.FilterThreshold)
			if r.MaskedShare == 0 {
				zeros++
			}
			if masked {
				assert.Equal(t, uint32(r.MaskedShare)+offset, r.BooleanShares.Unmask())
			} else {
				assert.Equal(t, masking.Boolean{}, r.BooleanShares)
			}
		}
		assert.Equal(t, ds.Zeros, zeros)
	}
}
