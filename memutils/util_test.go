package memutils_test

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/f4os/kcore/memutils"
	"github.com/stretchr/testify/require"
)

func TestCheckAligned(t *testing.T) {
	require.NoError(t, memutils.CheckAligned(uint32(0x20000000), 4, "base"))
	require.True(t, errors.Is(memutils.CheckAligned(uint32(0x20000002), 4, "base"), memutils.AlignmentError))
	require.True(t, errors.Is(memutils.CheckAligned(8, 0, "base"), memutils.AlignmentError))

	require.True(t, memutils.IsAligned(24, 12))
	require.False(t, memutils.IsAligned(20, 12))
	require.False(t, memutils.IsAligned(20, 0))
}

func TestDetailedStatistics(t *testing.T) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	require.Equal(t, -1, stats.LargestAllocatableSize(4))

	stats.AddFreeRun(3)
	stats.AddFreeRun(10)
	stats.AddAllocation(8)
	stats.AddAllocation(4)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&stats)

	require.Equal(t, 2, total.FreeRunCount)
	require.Equal(t, 3, total.FreeRunMin)
	require.Equal(t, 10, total.FreeRunMax)
	require.Equal(t, 2, total.AllocationCount)
	require.Equal(t, 12, total.AllocationBytes)
	require.Equal(t, 4, total.AllocationSizeMin)
	require.Equal(t, 8, total.AllocationSizeMax)
	require.Equal(t, 39, total.LargestAllocatableSize(4))
}
