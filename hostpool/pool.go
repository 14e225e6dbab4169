// Package hostpool provides a region.Provider backed by in-process memory: two
// fixed-capacity arenas standing in for the internal and external RAM pools of a dual-region
// device. It serves both as the reference provider for host builds and as a faithful
// simulated device heap for tests, including exhaustion and region-absence scenarios.
package hostpool

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/memtier/tiered/memutil"
	"github.com/memtier/tiered/region"
	"github.com/pkg/errors"
	"golang.org/x/exp/slog"
)

// CreateFlags indicate specific pool behaviors to activate or deactivate
type CreateFlags int32

const (
	// PoolCreateExternallySynchronized ensures that this pool will not be synchronized
	// internally. The consumer must guarantee it is used from only one thread at a time or
	// is synchronized by some other mechanism, but performance may improve because internal
	// mutexes are not used.
	PoolCreateExternallySynchronized CreateFlags = 1 << iota
)

// CreateOptions contains settings for creating a Pool
type CreateOptions struct {
	// Flags indicates specific pool behaviors to activate or deactivate
	Flags CreateFlags

	// InternalBytes is the capacity of the internal region. It must be positive.
	InternalBytes int
	// ExternalBytes is the capacity of the external region. Zero models a device without a
	// second memory pool: Present(region.External) will report false and external
	// allocations will always fail.
	ExternalBytes int
}

// Pool is a region.Provider whose regions are fixed-capacity arenas over ordinary Go
// slices. Blocks are carved out of an arena with a first-fit search and coalesced back into
// it on free. Zero-size allocations return a valid empty block that still occupies one
// alignment unit, so every live block has a distinct address.
type Pool struct {
	logger *slog.Logger

	internal arena
	external *arena
}

var _ region.Provider = (*Pool)(nil)
var _ memutil.Validatable = (*Pool)(nil)

// New creates a new Pool with the provided region capacities
func New(logger *slog.Logger, options CreateOptions) (*Pool, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if options.InternalBytes <= 0 {
		return nil, errors.Errorf("hostpool.CreateOptions.InternalBytes must be positive, but was %d", options.InternalBytes)
	}
	if options.ExternalBytes < 0 {
		return nil, errors.Errorf("hostpool.CreateOptions.ExternalBytes must not be negative, but was %d", options.ExternalBytes)
	}

	memutil.DebugCheckPow2(blockAlignment, "block alignment")
	useMutex := options.Flags&PoolCreateExternallySynchronized == 0

	pool := &Pool{
		logger: logger,
	}
	pool.internal.Init(region.Internal, options.InternalBytes, useMutex, logger)

	if options.ExternalBytes > 0 {
		pool.external = &arena{}
		pool.external.Init(region.External, options.ExternalBytes, useMutex, logger)
	}

	return pool, nil
}

// arenaFor returns the arena backing the requested region, or nil if the region is absent
// or not a real region
func (p *Pool) arenaFor(r region.Region) *arena {
	switch r {
	case region.Internal:
		return &p.internal
	case region.External:
		if p.external != nil {
			return p.external
		}
	}

	return nil
}

// owningArena locates the arena that owns the provided block, or nil if no region
// recognizes it
func (p *Pool) owningArena(buf []byte) *arena {
	if buf == nil {
		return nil
	}

	if p.internal.owns(buf) {
		return &p.internal
	}
	if p.external != nil && p.external.owns(buf) {
		return p.external
	}

	return nil
}

func (p *Pool) Allocate(r region.Region, size int) []byte {
	if size < 0 {
		panic("attempting to allocate a negative number of bytes")
	}

	a := p.arenaFor(r)
	if a == nil {
		return nil
	}

	buf := a.allocate(size, false)
	memutil.DebugValidate(a)
	return buf
}

func (p *Pool) AllocateZeroed(r region.Region, count, elemSize int) []byte {
	if count < 0 || elemSize < 0 {
		panic("attempting to allocate a negative number of bytes")
	}

	a := p.arenaFor(r)
	if a == nil {
		return nil
	}

	buf := a.allocate(count*elemSize, true)
	memutil.DebugValidate(a)
	return buf
}

func (p *Pool) ReallocInPlace(buf []byte, newSize int) []byte {
	if newSize < 0 {
		panic("attempting to resize a block to a negative number of bytes")
	}
	if buf == nil {
		return nil
	}

	a := p.owningArena(buf)
	if a == nil {
		return nil
	}

	resized := a.reallocInPlace(buf, newSize)
	memutil.DebugValidate(a)
	return resized
}

func (p *Pool) Free(buf []byte) {
	if buf == nil {
		return
	}

	if p.internal.free(buf) {
		memutil.DebugValidate(&p.internal)
		return
	}
	if p.external != nil && p.external.free(buf) {
		memutil.DebugValidate(p.external)
		return
	}

	panic("attempting to free a block that does not belong to this pool")
}

func (p *Pool) OwningRegion(buf []byte) region.Region {
	a := p.owningArena(buf)
	if a == nil {
		return region.None
	}

	return a.region
}

func (p *Pool) AllocatedSize(buf []byte) int {
	a := p.owningArena(buf)
	if a == nil {
		return 0
	}

	return a.allocatedSize(buf)
}

func (p *Pool) FreeBytes(r region.Region) int {
	a := p.arenaFor(r)
	if a == nil {
		return 0
	}

	return a.queryFree()
}

func (p *Pool) TotalBytes(r region.Region) int {
	a := p.arenaFor(r)
	if a == nil {
		return 0
	}

	return a.queryTotal()
}

func (p *Pool) Present(r region.Region) bool {
	return p.arenaFor(r) != nil
}

// AddDetailedStatistics sums this pool's allocation statistics into the statistics
// currently present in the provided memutil.DetailedStatistics object
func (p *Pool) AddDetailedStatistics(stats *memutil.DetailedStatistics) {
	p.internal.addDetailedStatistics(stats)
	if p.external != nil {
		p.external.addDetailedStatistics(stats)
	}
}

// BuildStatsString populates a json object with information about each region in this pool
func (p *Pool) BuildStatsString(writer *jwriter.Writer) {
	objState := writer.Object()
	defer objState.End()

	p.buildRegionStats(&objState, &p.internal)
	if p.external != nil {
		p.buildRegionStats(&objState, p.external)
	}
}

func (p *Pool) buildRegionStats(objState *jwriter.ObjectState, a *arena) {
	var stats memutil.DetailedStatistics
	stats.Clear()
	a.addDetailedStatistics(&stats)

	regionObj := objState.Name(a.region.String()).Object()
	defer regionObj.End()

	regionObj.Name("TotalBytes").Int(a.queryTotal())
	regionObj.Name("FreeBytes").Int(a.queryFree())
	regionObj.Name("Allocations").Int(stats.AllocationCount)
	regionObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	regionObj.Name("FreeRanges").Int(stats.FreeRangeCount)
}

// CheckCorruption verifies the guard bytes trailing every live allocation in every region.
// Guard bytes are only written when this module is built with the debug_memtier build tag;
// without it this method is still safe to call but verifies nothing.
func (p *Pool) CheckCorruption() error {
	err := p.internal.checkCorruption()
	if err != nil {
		return err
	}

	if p.external != nil {
		return p.external.checkCorruption()
	}

	return nil
}

func (p *Pool) Validate() error {
	err := p.internal.Validate()
	if err != nil {
		return err
	}

	if p.external != nil {
		return p.external.Validate()
	}

	return nil
}

// Destroy verifies that every allocation made from this pool has been freed, logging each
// leaked block and returning an error if any are found
func (p *Pool) Destroy() error {
	leaked := p.internal.reportLeaks()
	if p.external != nil {
		leaked += p.external.reportLeaks()
	}

	if leaked > 0 {
		return errors.Errorf("%d allocations were not freed before the destruction of this pool", leaked)
	}

	return nil
}
