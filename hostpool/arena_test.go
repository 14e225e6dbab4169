package hostpool

import (
	"sync"
	"testing"

	"github.com/memtier/tiered/region"
	"github.com/stretchr/testify/require"
)

func TestArenaFirstFitSplitsLowestRange(t *testing.T) {
	var a arena
	a.Init(region.Internal, 1024, true, testLogger())

	first := a.allocate(100, false)
	second := a.allocate(100, false)
	require.NotNil(t, first)
	require.NotNil(t, second)
	require.NoError(t, a.Validate())

	// Free the first range; the next fitting request must land back in it
	require.True(t, a.free(first))
	third := a.allocate(64, false)
	require.NotNil(t, third)
	require.Equal(t, dataPointer(first), dataPointer(third))
	require.NoError(t, a.Validate())
}

func TestArenaReinitPanics(t *testing.T) {
	var a arena
	a.Init(region.Internal, 1024, true, testLogger())

	require.Panics(t, func() {
		a.Init(region.Internal, 1024, true, testLogger())
	})
}

func TestArenaFreeUnknownBlock(t *testing.T) {
	var a arena
	a.Init(region.Internal, 1024, true, testLogger())

	require.False(t, a.free(make([]byte, 8)))
}

func TestPoolConcurrentChurn(t *testing.T) {
	pool := readyPool(t, 64*1024, 256*1024)

	var wg sync.WaitGroup
	for worker := 0; worker < 8; worker++ {
		worker := worker
		wg.Add(1)

		go func() {
			defer wg.Done()

			r := region.Internal
			if worker%2 == 0 {
				r = region.External
			}

			for i := 0; i < 500; i++ {
				buf := pool.Allocate(r, (i*worker)%256)
				if buf == nil {
					continue
				}

				if i%3 == 0 {
					resized := pool.ReallocInPlace(buf, (i*7)%256)
					if resized != nil {
						buf = resized
					}
				}

				pool.Free(buf)
			}
		}()
	}
	wg.Wait()

	require.NoError(t, pool.Validate())
	require.Equal(t, 64*1024, pool.FreeBytes(region.Internal))
	require.Equal(t, 256*1024, pool.FreeBytes(region.External))
	require.NoError(t, pool.Destroy())
}
