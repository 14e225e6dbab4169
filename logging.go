package tiered

import (
	"context"

	"github.com/memtier/tiered/region"
	"golang.org/x/exp/slog"
)

// loggingProvider decorates a region.Provider with a debug trace of every allocation,
// resize and free, without duplicating any routing logic. Pure queries pass through
// untraced.
type loggingProvider struct {
	logger *slog.Logger
	inner  region.Provider
}

// NewLoggingProvider wraps the provided region.Provider so that every mutating primitive
// call is logged at debug level, including the region it targeted and whether it succeeded.
// Wrap a provider before passing it to New to trace an Allocator's routing decisions.
func NewLoggingProvider(logger *slog.Logger, inner region.Provider) region.Provider {
	return &loggingProvider{
		logger: logger,
		inner:  inner,
	}
}

func (p *loggingProvider) Allocate(r region.Region, size int) []byte {
	buf := p.inner.Allocate(r, size)
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, "Region::Allocate",
		slog.String("region", r.String()),
		slog.Int("size", size),
		slog.Bool("success", buf != nil),
	)
	return buf
}

func (p *loggingProvider) AllocateZeroed(r region.Region, count, elemSize int) []byte {
	buf := p.inner.AllocateZeroed(r, count, elemSize)
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, "Region::AllocateZeroed",
		slog.String("region", r.String()),
		slog.Int("count", count),
		slog.Int("elemSize", elemSize),
		slog.Bool("success", buf != nil),
	)
	return buf
}

func (p *loggingProvider) ReallocInPlace(buf []byte, newSize int) []byte {
	owner := p.inner.OwningRegion(buf)
	resized := p.inner.ReallocInPlace(buf, newSize)
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, "Region::ReallocInPlace",
		slog.String("region", owner.String()),
		slog.Int("newSize", newSize),
		slog.Bool("success", resized != nil),
	)
	return resized
}

func (p *loggingProvider) Free(buf []byte) {
	owner := p.inner.OwningRegion(buf)
	p.inner.Free(buf)
	p.logger.LogAttrs(context.Background(), slog.LevelDebug, "Region::Free",
		slog.String("region", owner.String()),
	)
}

func (p *loggingProvider) OwningRegion(buf []byte) region.Region {
	return p.inner.OwningRegion(buf)
}

func (p *loggingProvider) AllocatedSize(buf []byte) int {
	return p.inner.AllocatedSize(buf)
}

func (p *loggingProvider) FreeBytes(r region.Region) int {
	return p.inner.FreeBytes(r)
}

func (p *loggingProvider) TotalBytes(r region.Region) int {
	return p.inner.TotalBytes(r)
}

func (p *loggingProvider) Present(r region.Region) bool {
	return p.inner.Present(r)
}
