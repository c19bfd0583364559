package dataset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taurusgroup/dilithium-sca/pkg/equation"
)

// attempt builds the records of one fake attempt; every record carries the
// worker and attempt number so that loss or duplication can be detected.
func attempt(worker, n, size int) []equation.Record {
	records := make([]equation.Record, size)
	for i := range records {
		records[i].Challenge[0] = int32(worker)
		records[i].Challenge[1] = int32(n)
		records[i].Challenge[2] = int32(i)
		records[i].Challenge[3] = int32(size)
	}
	return records
}

func TestStore_ConcurrentMerge(t *testing.T) {
	const (
		workers  = 16
		attempts = 200
	)
	s := NewStore(8)

	var wg sync.WaitGroup
	expectedRecords, expectedZeros := 0, uint64(0)
	for w := 0; w < workers; w++ {
		for n := 0; n < attempts; n++ {
			expectedRecords += (w + n) % 7
			expectedZeros += uint64(n % 3)
		}
	}
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for n := 0; n < attempts; n++ {
				s.NextAttempt()
				s.Merge(attempt(w, n, (w+n)%7), uint64(n%3))
			}
		}(w)
	}
	wg.Wait()

	assert.Equal(t, expectedRecords, s.Len())
	ds := s.Drain()
	require.Len(t, ds.Records, expectedRecords)
	assert.Equal(t, expectedZeros, ds.Zeros)
	assert.Equal(t, uint64(workers*attempts), ds.Attempts)

	type key struct{ w, n, i int32 }
	seen := make(map[key]bool, len(ds.Records))
	for k := 0; k < len(ds.Records); {
		r := ds.Records[k]
		size := int(r.Challenge[3])
		// The records of one attempt are contiguous and in order.
		for i := 0; i < size; i++ {
			c := ds.Records[k+i].Challenge
			require.Equal(t, r.Challenge[0], c[0])
			require.Equal(t, r.Challenge[1], c[1])
			require.Equal(t, int32(i), c[2])
			id := key{c[0], c[1], c[2]}
			require.False(t, seen[id], "duplicate record %v", id)
			seen[id] = true
		}
		k += size
	}
}

func TestStore_GrowsPastCapacity(t *testing.T) {
	s := NewStore(2)
	s.Merge(attempt(0, 0, 5), 1)
	s.Merge(attempt(0, 1, 5), 0)
	ds := s.Drain()
	assert.Len(t, ds.Records, 10)
	assert.Equal(t, uint64(1), ds.Zeros)
}

func TestStore_MergeAfterDrain(t *testing.T) {
	s := NewStore(0)
	ds := s.Drain()
	assert.Empty(t, ds.Records)
	assert.PanicsWithValue(t, ErrDrained, func() { s.Merge(nil, 0) })
}
