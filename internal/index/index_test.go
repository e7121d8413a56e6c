package index

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inodb/featureindex/internal/feature"
	"github.com/inodb/featureindex/internal/store"
)

func entries(n int, filterStatus string) []*feature.Entry {
	out := make([]*feature.Entry, n)
	for i := range out {
		out[i] = &feature.Entry{
			Chrom:       "chr1",
			Start:       int64(i + 1),
			End:         int64(i + 1),
			Type:        feature.TypeVariation,
			Categorical: map[string]string{"FILTER": filterStatus},
			Numeric:     map[string]float64{"QUAL": float64(i)},
		}
	}
	return out
}

func TestBuildAndGet(t *testing.T) {
	ix := New()

	_, err := ix.Get(1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)

	h, err := ix.Build(1, entries(3, "PASS"))
	require.NoError(t, err)
	assert.Equal(t, 3, h.Store.Size())
	assert.Equal(t, 3, h.Catalog.Entries())
	assert.Equal(t, []string{"PASS"}, h.Catalog.Snapshot().Categorical["FILTER"])

	got, err := ix.Get(1)
	require.NoError(t, err)
	assert.Same(t, h, got)
	assert.Equal(t, []feature.FileID{1}, ix.FileIDs())
}

func TestRebuildSwapsWholeHandle(t *testing.T) {
	ix := New()
	first, err := ix.Build(1, entries(3, "PASS"))
	require.NoError(t, err)

	second, err := ix.Build(1, entries(5, "LowQual"))
	require.NoError(t, err)
	assert.Greater(t, second.Generation, first.Generation)

	// A reader holding the old handle still sees the old, complete store.
	assert.Equal(t, 3, first.Store.Size())
	assert.Equal(t, []string{"PASS"}, first.Catalog.Snapshot().Categorical["FILTER"])

	cur, err := ix.Get(1)
	require.NoError(t, err)
	assert.Equal(t, 5, cur.Store.Size())
	assert.Equal(t, []string{"LowQual"}, cur.Catalog.Snapshot().Categorical["FILTER"])
	assert.Equal(t, 1, ix.Len())
}

func TestMalformedBuildKeepsPreviousStore(t *testing.T) {
	ix := New()
	prev, err := ix.Build(1, entries(2, "PASS"))
	require.NoError(t, err)

	bad := entries(4, "PASS")
	bad[2].Start = 100
	_, err = ix.Build(1, bad)
	require.ErrorIs(t, err, store.ErrMalformedEntry)

	cur, err := ix.Get(1)
	require.NoError(t, err)
	assert.Same(t, prev, cur)
}

func TestMalformedBuildIsolatedPerFile(t *testing.T) {
	ix := New()
	_, err := ix.Build(2, entries(2, "PASS"))
	require.NoError(t, err)

	bad := entries(1, "PASS")
	bad[0].End = 0
	_, err = ix.Build(1, bad)
	require.Error(t, err)

	_, err = ix.Get(1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	h, err := ix.Get(2)
	require.NoError(t, err)
	assert.Equal(t, 2, h.Store.Size())
}

func TestRemove(t *testing.T) {
	ix := New()
	_, err := ix.Build(1, entries(1, "PASS"))
	require.NoError(t, err)

	assert.True(t, ix.Remove(1))
	assert.False(t, ix.Remove(1))
	_, err = ix.Get(1)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, ix.FileIDs())
}

func TestConcurrentReadersDuringRebuild(t *testing.T) {
	ix := New()
	_, err := ix.Build(1, entries(10, "PASS"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	for r := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 200 {
				h, err := ix.Get(1)
				if !assert.NoError(t, err, "reader %d", r) {
					return
				}
				// Each handle is internally consistent.
				n := 0
				for range h.Store.All() {
					n++
				}
				assert.Equal(t, h.Store.Size(), n)
				assert.Equal(t, h.Catalog.Entries(), n)
			}
		}()
	}
	for i := range 50 {
		_, err := ix.Build(1, entries(10+i, fmt.Sprintf("f%d", i)))
		require.NoError(t, err)
	}
	wg.Wait()
}
