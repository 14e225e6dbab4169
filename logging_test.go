package tiered

import (
	"bytes"
	"strings"
	"testing"

	"github.com/memtier/tiered/region"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"
)

func TestLoggingProviderTracesMutations(t *testing.T) {
	var output bytes.Buffer
	logger := slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewJSONHandler(&output))

	inner := newFakeProvider(4096, 65536, true)
	allocator := readyAllocator(t, NewLoggingProvider(logger, inner), CreateOptions{})

	buf, err := allocator.Allocate(64)
	require.NoError(t, err)
	require.Equal(t, region.External, allocator.OwningRegion(buf))

	resized, err := allocator.Resize(buf, 128)
	require.NoError(t, err)
	allocator.Free(resized)

	trace := output.String()
	require.True(t, strings.Contains(trace, "Region::Allocate"))
	require.True(t, strings.Contains(trace, "Region::ReallocInPlace"))
	require.True(t, strings.Contains(trace, "Region::Free"))
	require.True(t, strings.Contains(trace, region.External.String()))
}

func TestLoggingProviderPassesQueriesThrough(t *testing.T) {
	var output bytes.Buffer
	logger := slog.New(slog.HandlerOptions{Level: slog.LevelDebug}.NewJSONHandler(&output))

	inner := newFakeProvider(4096, 0, false)
	wrapped := NewLoggingProvider(logger, inner)

	require.Equal(t, 4096, wrapped.FreeBytes(region.Internal))
	require.Equal(t, 4096, wrapped.TotalBytes(region.Internal))
	require.True(t, wrapped.Present(region.Internal))
	require.False(t, wrapped.Present(region.External))
	require.Equal(t, region.None, wrapped.OwningRegion(nil))
	require.Equal(t, 0, wrapped.AllocatedSize(nil))

	require.Equal(t, 0, output.Len())
}
