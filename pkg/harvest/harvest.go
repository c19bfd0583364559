// Package harvest runs signing attempts in parallel and collects the resulting
// equations until enough of them have y = 0.
package harvest

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/taurusgroup/dilithium-sca/pkg/dataset"
	"github.com/taurusgroup/dilithium-sca/pkg/dilithium"
	"github.com/taurusgroup/dilithium-sca/pkg/equation"
	"github.com/taurusgroup/dilithium-sca/pkg/hash"
	"github.com/taurusgroup/dilithium-sca/pkg/params"
	"github.com/taurusgroup/dilithium-sca/pkg/pool"
	"go.uber.org/zap"
)

const (
	// DefaultProgressEvery is the number of attempts between two progress lines.
	DefaultProgressEvery = 500
	// DefaultReserveLimit caps the initial capacity of the store, in records.
	DefaultReserveLimit = 1 << 20
)

// Options configures a Harvester.
type Options struct {
	Params params.Params
	// Signer is the oracle, masked or not.
	Signer dilithium.Signer
	// Seed, when non empty, makes the randomness of every worker a
	// deterministic function of (Seed, worker). Otherwise crypto/rand is used.
	Seed []byte
	// ProgressEvery defaults to DefaultProgressEvery.
	ProgressEvery uint64
	// ReserveLimit defaults to DefaultReserveLimit.
	ReserveLimit int
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
}

// Harvester drives the signing oracle and aggregates its observations.
type Harvester struct {
	params        params.Params
	signer        dilithium.Signer
	seed          []byte
	progressEvery uint64
	reserveLimit  int
	log           *zap.Logger
}

// New validates opts and returns a Harvester.
func New(opts Options) (*Harvester, error) {
	if opts.Signer == nil {
		return nil, errors.New("harvest: no signer")
	}
	if _, err := params.ForMode(opts.Params.Mode); err != nil {
		return nil, fmt.Errorf("harvest: %w", err)
	}
	h := &Harvester{
		params:        opts.Params,
		signer:        opts.Signer,
		seed:          opts.Seed,
		progressEvery: opts.ProgressEvery,
		reserveLimit:  opts.ReserveLimit,
		log:           opts.Logger,
	}
	if h.progressEvery == 0 {
		h.progressEvery = DefaultProgressEvery
	}
	if h.reserveLimit <= 0 {
		h.reserveLimit = DefaultReserveLimit
	}
	if h.log == nil {
		h.log = zap.NewNop()
	}
	return h, nil
}

// worker is the state owned by a single worker goroutine.
type worker struct {
	id    int
	rand  io.Reader
	steps uint64
}

// Run spawns workers goroutines which sign random messages until the number
// of collected records with y = 0 reaches target, and returns everything
// collected.
//
// Workers only check the target, and ctx, before starting an attempt: once the
// target is reached each worker finishes at most its current attempt.
func (h *Harvester) Run(ctx context.Context, workers int, target uint64) (*dataset.Dataset, error) {
	if workers < 1 {
		return nil, fmt.Errorf("harvest: invalid worker count %d", workers)
	}
	store := dataset.NewStore(h.reserve(target))
	state := make([]*worker, workers)
	for i := range state {
		state[i] = &worker{id: i, rand: rand.Reader}
		if len(h.seed) > 0 {
			state[i].rand = hash.Stream(h.seed, i)
		}
	}

	h.log.Info("harvest started",
		zap.Int("mode", int(h.params.Mode)),
		zap.Int("workers", workers),
		zap.Uint64("target", target))
	start := time.Now()

	err := pool.NewPool(workers).Until(ctx, func(ctx context.Context, id int) (bool, error) {
		return h.step(store, state[id], target)
	})
	if err != nil {
		return nil, err
	}

	ds := store.Drain()
	h.log.Info("harvest finished",
		zap.Duration("elapsed", time.Since(start)),
		zap.Uint64("attempts", ds.Attempts),
		zap.Int("records", len(ds.Records)),
		zap.Uint64("zeros", ds.Zeros),
		zap.Uint64("nonzeros", uint64(len(ds.Records))-ds.Zeros))
	return ds, nil
}

// step performs one attempt, and reports whether w should stop.
func (h *Harvester) step(store *dataset.Store, w *worker, target uint64) (bool, error) {
	attempt := store.NextAttempt()
	zeros := store.Zeros()

	if w.id == 0 {
		if w.steps%h.progressEvery == 0 {
			h.log.Info("progress",
				zap.Uint64("zeros", zeros),
				zap.Uint64("target", target),
				zap.Uint64("attempt", attempt))
		}
		w.steps++
	}
	if zeros >= target {
		return true, nil
	}

	buf := equation.NewBuffer(h.params)
	msg := make([]byte, params.MessageBytes)
	if _, err := io.ReadFull(w.rand, msg); err != nil {
		return false, fmt.Errorf("harvest: worker %d: read message: %w", w.id, err)
	}
	if _, err := h.signer.Sign(w.rand, msg, buf); err != nil {
		return false, fmt.Errorf("harvest: worker %d: attempt %d: %w", w.id, attempt, err)
	}
	store.Merge(buf.Records(), buf.Zeros())
	return false, nil
}

// reserve returns the initial capacity of the store: one record per
// coefficient per target signature, capped by the reserve limit.
func (h *Harvester) reserve(target uint64) int {
	perSignature := uint64(h.params.Coefficients())
	if target > math.MaxInt64/perSignature || int(target*perSignature) > h.reserveLimit {
		return h.reserveLimit
	}
	return int(target * perSignature)
}
