// Package region defines the capability interface that tiered allocation policy is built
// on top of: a small set of primitives for allocating from, freeing into, and querying
// independently managed memory regions.
//
// A Region is a physically distinct memory pool with its own capacity. Embedded devices
// commonly pair a small, fast, always-available internal pool with a larger, slower pool
// that may not exist at all on a given hardware configuration. Providers expose both pools
// behind the same primitives so that policy code never needs a separate code path for
// hardware that lacks the second pool.
package region

// Region identifies one of the memory pools managed by a Provider.
type Region int32

const (
	// None indicates that a block does not belong to any region known to the Provider,
	// or that a query was made with a nil block
	None Region = iota
	// Internal is the fast, always-present memory pool. Latency-critical allocations
	// are expected to live here.
	Internal
	// External is the bulk memory pool. It may be absent on a given device; consult
	// Provider.Present before assuming it can serve allocations.
	External
)

func (r Region) String() string {
	switch r {
	case Internal:
		return "Internal"
	case External:
		return "External"
	}

	return "None"
}

// Provider is the set of region-aware allocation primitives required from the platform.
// Implementations signal allocation failure by returning a nil slice, never by panicking.
//
// All methods must be safe to call concurrently. Implementations typically guarantee this
// with an internal lock per region; this package adds no synchronization of its own.
type Provider interface {
	// Allocate attempts to allocate size bytes from the requested region, returning nil
	// if the region is absent or cannot satisfy the request. Zero-size requests are
	// permitted; whether they produce an empty block or nil is implementation policy.
	Allocate(r Region, size int) []byte
	// AllocateZeroed behaves as Allocate with a size of count*elemSize, but guarantees the
	// returned memory is zero-filled. Overflow of count*elemSize is the caller's
	// responsibility to prevent.
	AllocateZeroed(r Region, count, elemSize int) []byte
	// ReallocInPlace attempts to resize the provided block to newSize without changing its
	// owning region. The returned slice may alias the original block's memory, or it may be
	// a relocated block within the same region: the handle may change even though the region
	// does not. It returns nil, leaving the original block untouched, if the block cannot be
	// resized within its region.
	ReallocInPlace(buf []byte, newSize int) []byte
	// Free returns the provided block to its owning region, which the Provider determines
	// internally. Freeing a nil block is a no-op. Double-frees and frees of foreign blocks
	// are undefined behavior.
	Free(buf []byte)

	// OwningRegion reports the region that currently owns the provided block, or None if
	// the block is nil or unrecognized
	OwningRegion(buf []byte) Region
	// AllocatedSize reports the usable size in bytes of the provided block, which may be
	// larger than the size originally requested. It returns 0 for nil or unrecognized
	// blocks.
	AllocatedSize(buf []byte) int
	// FreeBytes reports the number of bytes currently available in the requested region,
	// or 0 if the region is absent
	FreeBytes(r Region) int
	// TotalBytes reports the capacity in bytes of the requested region, or 0 if the region
	// is absent
	TotalBytes(r Region) int
	// Present reports whether the requested region exists on this device
	Present(r Region) bool
}
