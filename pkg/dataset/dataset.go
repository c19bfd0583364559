// Package dataset holds the equations accepted across all signing attempts.
package dataset

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/taurusgroup/dilithium-sca/pkg/equation"
)

// ErrDrained is the panic value when merging into a drained Store.
var ErrDrained = errors.New("dataset: merge after drain")

// Dataset is the content of a drained Store.
type Dataset struct {
	Records []equation.Record
	// Attempts is the number of attempts issued by the workers, including the
	// final check of each worker that found the target reached.
	Attempts uint64
	// Zeros is the number of records with y = 0.
	Zeros uint64
}

// Store is the append-only collection shared by all workers.
//
// The counters are updated atomically and can be read at any time; the
// records are only reachable through Merge and Drain.
type Store struct {
	mu      sync.Mutex
	records []equation.Record
	drained bool

	attempts atomic.Uint64
	zeros    atomic.Uint64
}

// NewStore creates a Store with room for capacity records. The store grows
// past this capacity when needed.
func NewStore(capacity int) *Store {
	if capacity < 0 {
		capacity = 0
	}
	return &Store{records: make([]equation.Record, 0, capacity)}
}

// NextAttempt increments the attempt counter and returns its new value.
func (s *Store) NextAttempt() uint64 {
	return s.attempts.Add(1)
}

// Attempts returns the number of attempts issued so far.
func (s *Store) Attempts() uint64 {
	return s.attempts.Load()
}

// Zeros returns the number of merged records with y = 0.
func (s *Store) Zeros() uint64 {
	return s.zeros.Load()
}

// Merge appends the records of one attempt as a contiguous block, and adds
// zeroDelta to the zero counter.
func (s *Store) Merge(records []equation.Record, zeroDelta uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drained {
		panic(ErrDrained)
	}
	s.records = append(s.records, records...)
	if zeroDelta != 0 {
		s.zeros.Add(zeroDelta)
	}
}

// Len returns the number of merged records.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}

// Drain hands out the content of the store. It must only be called once all
// workers have stopped; any later Merge panics.
func (s *Store) Drain() *Dataset {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drained = true
	records := s.records
	s.records = nil
	return &Dataset{
		Records:  records,
		Attempts: s.attempts.Load(),
		Zeros:    s.zeros.Load(),
	}
}
