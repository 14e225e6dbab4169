// Package tiered routes dynamic allocation requests across the two memory regions of a
// dual-pool device: a small, fast, always-present internal pool and a larger, slower,
// optionally-absent external pool. Small requests are served from the internal pool for
// deterministic latency; large requests prefer the external pool and only fall back to the
// internal pool when doing so would leave a configured reservation of internal memory
// untouched, so bulk allocations can never starve latency-critical ones.
//
// The policy is stateless: every routing decision re-queries the provider's current free
// bytes, no state is cached between calls, and no locks are taken in this layer.
// Concurrency safety is inherited from the region.Provider.
package tiered

import (
	"github.com/cockroachdb/errors"
	"github.com/memtier/tiered/region"
	"golang.org/x/exp/slog"
)

// Allocator applies tiered routing policy over a set of region primitives. Blocks returned
// from an Allocator are owned by the caller and must eventually be returned with Free.
type Allocator struct {
	logger   *slog.Logger
	provider region.Provider

	threshold        int
	reservationFloor int
}

// Allocate requests a block of the provided size from the region best suited to it.
//
// Requests below the configured threshold are served from the internal region only, without
// consulting the external region at all, regardless of internal pressure. Requests at or
// above the threshold attempt the external region first and fall back to the internal
// region only while the internal region's free bytes stay strictly above
// size+ReservationFloor. It returns an error wrapping ErrOutOfMemory when the fallback
// chain is exhausted.
func (a *Allocator) Allocate(size int) ([]byte, error) {
	a.logger.Debug("Allocator::Allocate")

	if size < 0 {
		return nil, errors.Newf("attempting to allocate a negative number of bytes: %d", size)
	}

	return a.routeAllocate(size, func(r region.Region) []byte {
		return a.provider.Allocate(r, size)
	})
}

// AllocateZeroed behaves as Allocate with a size of count*elemSize, but the returned block
// is guaranteed to be zero-filled. Overflow of count*elemSize is the caller's
// responsibility to prevent.
func (a *Allocator) AllocateZeroed(count, elemSize int) ([]byte, error) {
	a.logger.Debug("Allocator::AllocateZeroed")

	if count < 0 || elemSize < 0 {
		return nil, errors.Newf("attempting to allocate a negative number of bytes: %d elements of %d bytes", count, elemSize)
	}

	return a.routeAllocate(count*elemSize, func(r region.Region) []byte {
		return a.provider.AllocateZeroed(r, count, elemSize)
	})
}

// routeAllocate is the routing core shared by Allocate, AllocateZeroed and Resize. The
// allocate callback attempts the actual allocation in the chosen region, returning nil on
// failure; size is the byte count used for threshold and reservation comparisons.
func (a *Allocator) routeAllocate(size int, allocate func(region.Region) []byte) ([]byte, error) {
	if size < a.threshold {
		// Small requests must have deterministic low latency, so the external region is
		// never probed for them
		buf := allocate(region.Internal)
		if buf == nil {
			return nil, errors.Wrapf(ErrOutOfMemory, "the internal region could not serve a %d-byte request", size)
		}

		return buf, nil
	}

	if a.provider.Present(region.External) {
		buf := allocate(region.External)
		if buf != nil {
			return buf, nil
		}
	}

	// The reservation check is cumulative admission control, not a feasibility check: a
	// large request is refused even when raw free space would fit it, so that repeated
	// fallbacks cannot drain the internal region below the floor. The boundary case
	// freeInternal == size+floor is refused.
	freeInternal := a.provider.FreeBytes(region.Internal)
	if freeInternal <= size+a.reservationFloor {
		return nil, errors.Wrapf(ErrOutOfMemory,
			"%d bytes requested, but the internal region has %d bytes free and reserves %d",
			size, freeInternal, a.reservationFloor)
	}

	buf := allocate(region.Internal)
	if buf == nil {
		return nil, errors.Wrapf(ErrOutOfMemory, "the internal region could not serve a %d-byte fallback request", size)
	}

	return buf, nil
}

// Resize grows or shrinks the provided block to newSize, migrating it between regions when
// the new size's preferred region differs from the block's current region. The returned
// block may be the original, a relocated block within the same region, or a block in a
// different region; the caller must use the returned handle in either case.
//
// On failure the original block is left valid and unmodified, with its contents and region
// membership intact. Passing a nil block is equivalent to Allocate(newSize).
func (a *Allocator) Resize(buf []byte, newSize int) ([]byte, error) {
	a.logger.Debug("Allocator::Resize")

	if newSize < 0 {
		return nil, errors.Newf("attempting to resize a block to a negative number of bytes: %d", newSize)
	}

	allocate := func(r region.Region) []byte {
		return a.provider.Allocate(r, newSize)
	}

	if buf == nil {
		return a.routeAllocate(newSize, allocate)
	}

	if newSize >= a.threshold && a.provider.Present(region.External) {
		if a.provider.OwningRegion(buf) == region.External {
			resized := a.provider.ReallocInPlace(buf, newSize)
			if resized != nil {
				return resized, nil
			}
		}

		dst := a.provider.Allocate(region.External, newSize)
		if dst != nil {
			a.migrate(buf, dst, newSize)
			return dst, nil
		}
		// External region exhausted, fall back to threshold/reservation routing
	}

	dst, err := a.routeAllocate(newSize, allocate)
	if err != nil {
		return nil, err
	}

	a.migrate(buf, dst, newSize)
	return dst, nil
}

// migrate copies the overlapping byte range from src into dst and frees src. The copy
// completes before the free, so the data is never in neither region.
func (a *Allocator) migrate(src, dst []byte, newSize int) {
	n := a.provider.AllocatedSize(src)
	if newSize < n {
		n = newSize
	}

	copy(dst[:n], src[:n])
	a.provider.Free(src)
}

// Free returns the provided block to its owning region, which the provider determines
// internally. Freeing a nil block is a no-op.
func (a *Allocator) Free(buf []byte) {
	a.logger.Debug("Allocator::Free")

	if buf == nil {
		return
	}

	a.provider.Free(buf)
}

// OwningRegion reports which region currently owns the provided block, or region.None if
// the block is nil or unrecognized
func (a *Allocator) OwningRegion(buf []byte) region.Region {
	if buf == nil {
		return region.None
	}

	return a.provider.OwningRegion(buf)
}

// IsInRegion reports whether the provided block is currently owned by the requested region.
// It returns false for nil blocks and for region.None.
func (a *Allocator) IsInRegion(buf []byte, r region.Region) bool {
	if buf == nil || r == region.None {
		return false
	}

	return a.provider.OwningRegion(buf) == r
}

// FreeBytes reports the number of bytes currently available in the requested region, or 0
// if the region is absent
func (a *Allocator) FreeBytes(r region.Region) int {
	return a.provider.FreeBytes(r)
}

// TotalBytes reports the capacity in bytes of the requested region, or 0 if the region is
// absent
func (a *Allocator) TotalBytes(r region.Region) int {
	return a.provider.TotalBytes(r)
}
