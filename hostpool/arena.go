package hostpool

import (
	"context"
	"sync"
	"unsafe"

	"github.com/dolthub/swiss"
	"github.com/memtier/tiered/internal/utils"
	"github.com/memtier/tiered/memutil"
	"github.com/memtier/tiered/region"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

const (
	// blockAlignment is the alignment applied to every allocation's size and offset within
	// an arena. All block extents are multiples of this value.
	blockAlignment uint = 8
)

var blockAllocator = sync.Pool{
	New: func() any {
		return &poolBlock{}
	},
}

// poolBlock describes one contiguous span of an arena's backing memory, either live or free.
// Blocks form a doubly-linked list ordered by offset that always covers the full backing
// slice with no gaps. Adjacent free blocks are coalesced eagerly, so no two neighbors are
// ever both free.
type poolBlock struct {
	offset int
	// size is the block's full extent in bytes, including the guard margin on live blocks
	size int
	free bool

	prevPhysical *poolBlock
	nextPhysical *poolBlock
}

// arena owns one region's backing memory. Mutating methods release the arena lock before
// returning, so callers can run memutil.DebugValidate against the arena afterwards.
type arena struct {
	region  region.Region
	logger  *slog.Logger
	mutex   utils.OptionalRWMutex
	backing []byte

	head       *poolBlock
	freeBytes  int
	allocCount int
	blockKey   *swiss.Map[uintptr, *poolBlock]
}

var _ memutil.Validatable = (*arena)(nil)

func (a *arena) Init(r region.Region, size int, useMutex bool, logger *slog.Logger) {
	if a.backing != nil {
		panic("attempting to initialize an arena that is already in use")
	}

	a.region = r
	a.logger = logger
	a.mutex = utils.OptionalRWMutex{UseMutex: useMutex}
	a.backing = make([]byte, size)
	a.blockKey = swiss.NewMap[uintptr, *poolBlock](42)

	first := a.newBlock()
	first.offset = 0
	first.size = size
	first.free = true
	a.head = first
	a.freeBytes = size
}

func (a *arena) newBlock() *poolBlock {
	b := blockAllocator.Get().(*poolBlock)
	b.offset = 0
	b.size = 0
	b.free = false
	b.prevPhysical = nil
	b.nextPhysical = nil
	return b
}

func (a *arena) releaseBlock(b *poolBlock) {
	blockAllocator.Put(b)
}

func dataPointer(buf []byte) uintptr {
	return uintptr(unsafe.Pointer(unsafe.SliceData(buf)))
}

// payloadExtent converts a requested size into the aligned usable payload size and the full
// block extent including the guard margin. Zero-size requests still consume one alignment
// unit so that every live block has a distinct address.
func payloadExtent(size int) (payload, extent int) {
	payload = memutil.AlignUp(size, blockAlignment)
	if payload == 0 {
		payload = int(blockAlignment)
	}

	return payload, payload + memutil.DebugMargin
}

func (a *arena) allocate(size int, zeroed bool) []byte {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	payload, extent := payloadExtent(size)

	for b := a.head; b != nil; b = b.nextPhysical {
		if !b.free || b.size < extent {
			continue
		}

		a.splitFreeBlock(b, extent)
		b.free = false
		a.freeBytes -= extent
		a.allocCount++

		if zeroed {
			payloadBytes := a.backing[b.offset : b.offset+payload]
			for i := range payloadBytes {
				payloadBytes[i] = 0
			}
		}
		memutil.WriteGuardBytes(a.backing[b.offset+payload : b.offset+extent])

		buf := a.backing[b.offset : b.offset+size : b.offset+payload]
		a.blockKey.Put(dataPointer(buf), b)
		return buf
	}

	return nil
}

// splitFreeBlock carves extent bytes off the front of free block b, inserting a new free
// block for the remainder, if any
func (a *arena) splitFreeBlock(b *poolBlock, extent int) {
	if b.size == extent {
		return
	}

	remainder := a.newBlock()
	remainder.offset = b.offset + extent
	remainder.size = b.size - extent
	remainder.free = true

	remainder.prevPhysical = b
	remainder.nextPhysical = b.nextPhysical
	if b.nextPhysical != nil {
		b.nextPhysical.prevPhysical = remainder
	}
	b.nextPhysical = remainder
	b.size = extent
}

func (a *arena) owns(buf []byte) bool {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	_, ok := a.blockKey.Get(dataPointer(buf))
	return ok
}

func (a *arena) allocatedSize(buf []byte) int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	b, ok := a.blockKey.Get(dataPointer(buf))
	if !ok {
		return 0
	}

	return b.size - memutil.DebugMargin
}

func (a *arena) free(buf []byte) bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	key := dataPointer(buf)
	b, ok := a.blockKey.Get(key)
	if !ok {
		return false
	}

	payload := b.size - memutil.DebugMargin
	if !memutil.ValidateGuardBytes(a.backing[b.offset+payload : b.offset+b.size]) {
		panic("MEMORY CORRUPTION DETECTED AFTER FREED ALLOCATION")
	}

	a.blockKey.Delete(key)
	b.free = true
	a.freeBytes += b.size
	a.allocCount--
	a.coalesce(b)

	return true
}

// coalesce merges the provided free block with free physical neighbors on either side
func (a *arena) coalesce(b *poolBlock) {
	next := b.nextPhysical
	if next != nil && next.free {
		b.size += next.size
		b.nextPhysical = next.nextPhysical
		if next.nextPhysical != nil {
			next.nextPhysical.prevPhysical = b
		}
		a.releaseBlock(next)
	}

	prev := b.prevPhysical
	if prev != nil && prev.free {
		prev.size += b.size
		prev.nextPhysical = b.nextPhysical
		if b.nextPhysical != nil {
			b.nextPhysical.prevPhysical = prev
		}
		a.releaseBlock(b)
	}
}

// reallocInPlace resizes a live block without moving it. Growth succeeds only when the
// physically next block is free and large enough to absorb the difference. Shrinking always
// succeeds and returns the surplus to the free list. Returns nil, leaving the block
// untouched, when in-place growth is impossible.
func (a *arena) reallocInPlace(buf []byte, newSize int) []byte {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	b, ok := a.blockKey.Get(dataPointer(buf))
	if !ok {
		return nil
	}

	payload, extent := payloadExtent(newSize)

	if extent > b.size {
		next := b.nextPhysical
		need := extent - b.size
		if next == nil || !next.free || next.size < need {
			return nil
		}

		if next.size == need {
			b.nextPhysical = next.nextPhysical
			if next.nextPhysical != nil {
				next.nextPhysical.prevPhysical = b
			}
			a.releaseBlock(next)
		} else {
			next.offset += need
			next.size -= need
		}
		b.size = extent
		a.freeBytes -= need
	} else if extent < b.size {
		remainder := a.newBlock()
		remainder.offset = b.offset + extent
		remainder.size = b.size - extent
		remainder.free = true

		remainder.prevPhysical = b
		remainder.nextPhysical = b.nextPhysical
		if b.nextPhysical != nil {
			b.nextPhysical.prevPhysical = remainder
		}
		b.nextPhysical = remainder
		b.size = extent
		a.freeBytes += remainder.size
		a.coalesce(remainder)
	}

	memutil.WriteGuardBytes(a.backing[b.offset+payload : b.offset+extent])

	// Offset is unchanged, so the handle key is still valid
	return a.backing[b.offset : b.offset+newSize : b.offset+payload]
}

func (a *arena) queryFree() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	return a.freeBytes
}

func (a *arena) queryTotal() int {
	return len(a.backing)
}

func (a *arena) addDetailedStatistics(stats *memutil.DetailedStatistics) {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	stats.RegionCount++
	stats.RegionBytes += len(a.backing)

	for b := a.head; b != nil; b = b.nextPhysical {
		if b.free {
			stats.AddFreeRange(b.size)
		} else {
			stats.AddAllocation(b.size - memutil.DebugMargin)
		}
	}
}

// checkCorruption verifies the guard bytes after every live allocation. It is expensive and
// only meaningful when built with the debug_memtier tag; without it there are no guard bytes
// to verify and it always succeeds.
func (a *arena) checkCorruption() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	for b := a.head; b != nil; b = b.nextPhysical {
		if b.free {
			continue
		}

		payload := b.size - memutil.DebugMargin
		if !memutil.ValidateGuardBytes(a.backing[b.offset+payload : b.offset+b.size]) {
			return errors.Errorf("allocation at offset %d in the %s region has overwritten its guard bytes", b.offset, a.region.String())
		}
	}

	return nil
}

func (a *arena) reportLeaks() int {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	leaked := 0
	for b := a.head; b != nil; b = b.nextPhysical {
		if b.free {
			continue
		}

		leaked++
		a.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
			slog.String("region", a.region.String()),
			slog.Int("offset", b.offset),
			slog.Int("size", b.size-memutil.DebugMargin),
		)
	}

	return leaked
}

func (a *arena) Validate() error {
	a.mutex.RLock()
	defer a.mutex.RUnlock()

	expectedOffset := 0
	calculatedFree := 0
	calculatedLive := 0

	for b := a.head; b != nil; b = b.nextPhysical {
		if b.offset != expectedOffset {
			return errors.Errorf("block at offset %d does not begin where the previous block ended (%d)", b.offset, expectedOffset)
		}
		if b.size <= 0 {
			return errors.Errorf("block at offset %d has an invalid size %d", b.offset, b.size)
		}
		if b.free && b.nextPhysical != nil && b.nextPhysical.free {
			return errors.Errorf("free block at offset %d has a free neighbor that was not coalesced", b.offset)
		}
		if b.nextPhysical != nil && b.nextPhysical.prevPhysical != b {
			return errors.Errorf("block at offset %d has a broken physical link", b.offset)
		}

		if b.free {
			calculatedFree += b.size
		} else {
			calculatedLive++
		}
		expectedOffset += b.size
	}

	if expectedOffset != len(a.backing) {
		return errors.Errorf("blocks cover %d bytes but the arena is %d bytes", expectedOffset, len(a.backing))
	}
	if calculatedFree != a.freeBytes {
		return errors.Errorf("declared free byte count (%d) does not match the actual free byte count (%d)", a.freeBytes, calculatedFree)
	}
	if calculatedLive != a.allocCount {
		return errors.Errorf("declared allocation count (%d) does not match the actual allocation count (%d)", a.allocCount, calculatedLive)
	}
	if a.blockKey.Count() != calculatedLive {
		return errors.Errorf("the handle map lists %d allocations but %d are live", a.blockKey.Count(), calculatedLive)
	}

	return nil
}
