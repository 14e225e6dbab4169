package tiered

import (
	"unsafe"

	"github.com/memtier/tiered/region"
)

type fakeBlock struct {
	owner region.Region
	size  int
}

// fakeRegionProvider simulates region primitives with scripted capacities and per-region
// call counters so that routing decisions can be asserted exactly, without real arena
// bookkeeping. Free bytes decrease by exactly the requested size.
type fakeRegionProvider struct {
	externalPresent bool
	free            map[region.Region]int
	total           map[region.Region]int

	allocateCalls map[region.Region]int
	zeroedCalls   map[region.Region]int
	reallocCalls  int
	freeCalls     int

	// allowInPlaceGrowth controls whether ReallocInPlace can succeed at all
	allowInPlaceGrowth bool

	blocks map[uintptr]fakeBlock
}

func newFakeProvider(internalBytes, externalBytes int, externalPresent bool) *fakeRegionProvider {
	return &fakeRegionProvider{
		externalPresent: externalPresent,
		free: map[region.Region]int{
			region.Internal: internalBytes,
			region.External: externalBytes,
		},
		total: map[region.Region]int{
			region.Internal: internalBytes,
			region.External: externalBytes,
		},
		allocateCalls: map[region.Region]int{},
		zeroedCalls:   map[region.Region]int{},
		blocks:        map[uintptr]fakeBlock{},
	}
}

// blockKey returns the address identifying a block. The extra capacity byte in take
// guarantees unique addresses even for zero-size blocks.
func blockKey(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

func (f *fakeRegionProvider) take(r region.Region, size int) []byte {
	if !f.Present(r) || size > f.free[r] {
		return nil
	}

	f.free[r] -= size
	buf := make([]byte, size, size+1)
	f.blocks[blockKey(buf)] = fakeBlock{owner: r, size: size}
	return buf
}

func (f *fakeRegionProvider) Allocate(r region.Region, size int) []byte {
	f.allocateCalls[r]++
	return f.take(r, size)
}

func (f *fakeRegionProvider) AllocateZeroed(r region.Region, count, elemSize int) []byte {
	f.zeroedCalls[r]++
	return f.take(r, count*elemSize)
}

func (f *fakeRegionProvider) ReallocInPlace(buf []byte, newSize int) []byte {
	f.reallocCalls++

	if !f.allowInPlaceGrowth {
		return nil
	}

	key := blockKey(buf)
	b, ok := f.blocks[key]
	if !ok {
		return nil
	}

	delta := newSize - b.size
	if delta > f.free[b.owner] {
		return nil
	}

	f.free[b.owner] -= delta
	resized := make([]byte, newSize, newSize+1)
	copy(resized, buf)
	delete(f.blocks, key)
	f.blocks[blockKey(resized)] = fakeBlock{owner: b.owner, size: newSize}
	return resized
}

func (f *fakeRegionProvider) Free(buf []byte) {
	f.freeCalls++

	key := blockKey(buf)
	b, ok := f.blocks[key]
	if !ok {
		panic("attempting to free a block that does not belong to this provider")
	}

	f.free[b.owner] += b.size
	delete(f.blocks, key)
}

func (f *fakeRegionProvider) OwningRegion(buf []byte) region.Region {
	if buf == nil {
		return region.None
	}

	b, ok := f.blocks[blockKey(buf)]
	if !ok {
		return region.None
	}

	return b.owner
}

func (f *fakeRegionProvider) AllocatedSize(buf []byte) int {
	if buf == nil {
		return 0
	}

	return f.blocks[blockKey(buf)].size
}

func (f *fakeRegionProvider) FreeBytes(r region.Region) int {
	if !f.Present(r) {
		return 0
	}

	return f.free[r]
}

func (f *fakeRegionProvider) TotalBytes(r region.Region) int {
	if !f.Present(r) {
		return 0
	}

	return f.total[r]
}

func (f *fakeRegionProvider) Present(r region.Region) bool {
	switch r {
	case region.Internal:
		return true
	case region.External:
		return f.externalPresent
	}

	return false
}
