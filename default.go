package tiered

import "sync/atomic"

// The process-wide default allocator. Registering one lets libraries allocate through the
// tiered policy without threading an *Allocator through every call path, in the same way a
// global operator new/delete override would on the original platform. The policy itself
// stays on Allocator so it remains testable in isolation.
var defaultAllocator atomic.Pointer[Allocator]

// SetDefault registers the provided Allocator as the process-wide default used by the
// package-level allocation functions. Passing nil unregisters the default.
func SetDefault(a *Allocator) {
	defaultAllocator.Store(a)
}

// Default returns the process-wide default Allocator, or nil if none has been registered
func Default() *Allocator {
	return defaultAllocator.Load()
}

func mustDefault() *Allocator {
	a := defaultAllocator.Load()
	if a == nil {
		panic("no default allocator has been registered: call tiered.SetDefault first")
	}

	return a
}

// Allocate requests a block from the process-wide default Allocator. It panics if no
// default has been registered with SetDefault.
func Allocate(size int) ([]byte, error) {
	return mustDefault().Allocate(size)
}

// AllocateZeroed requests a zero-filled block from the process-wide default Allocator. It
// panics if no default has been registered with SetDefault.
func AllocateZeroed(count, elemSize int) ([]byte, error) {
	return mustDefault().AllocateZeroed(count, elemSize)
}

// Resize resizes a block through the process-wide default Allocator. It panics if no
// default has been registered with SetDefault.
func Resize(buf []byte, newSize int) ([]byte, error) {
	return mustDefault().Resize(buf, newSize)
}

// Free returns a block through the process-wide default Allocator. It panics if no default
// has been registered with SetDefault.
func Free(buf []byte) {
	mustDefault().Free(buf)
}
