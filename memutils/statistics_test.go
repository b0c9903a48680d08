package memutils_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/memutils"
)

func TestDetailedStatistics(t *testing.T) {
	var first memutils.DetailedStatistics
	first.Clear()

	require.Equal(t, memutils.DetailedStatistics{
		AllocationSizeMin:  math.MaxInt,
		UnusedRangeSizeMin: math.MaxInt,
	}, first)

	first.HeapCount = 1
	first.AddAllocation(64)
	first.AddAllocation(16)
	first.AddUnusedRange(40)

	var second memutils.DetailedStatistics
	second.Clear()
	second.HeapCount = 1
	second.AddAllocation(128)
	second.AddUnusedRange(8)
	second.AddUnusedRange(200)

	var total memutils.DetailedStatistics
	total.Clear()
	total.AddDetailedStatistics(&first)
	total.AddDetailedStatistics(&second)

	require.Equal(t, memutils.DetailedStatistics{
		Statistics: memutils.Statistics{
			HeapCount:       2,
			AllocationCount: 3,
			AllocationBytes: 208,
		},
		UnusedRangeCount:   3,
		AllocationSizeMin:  16,
		AllocationSizeMax:  128,
		UnusedRangeSizeMin: 8,
		UnusedRangeSizeMax: 200,
	}, total)

	total.Clear()
	require.Equal(t, 0, total.AllocationCount)
	require.Equal(t, math.MaxInt, total.AllocationSizeMin)
}

func TestStatistics(t *testing.T) {
	stats := memutils.Statistics{
		HeapCount:       1,
		AllocationCount: 2,
		ReservedBytes:   1024,
		CommittedBytes:  100,
		AllocationBytes: 68,
		HeaderBytes:     32,
	}

	var total memutils.Statistics
	total.AddStatistics(&stats)
	total.AddStatistics(&stats)
	require.Equal(t, memutils.Statistics{
		HeapCount:       2,
		AllocationCount: 4,
		ReservedBytes:   2048,
		CommittedBytes:  200,
		AllocationBytes: 136,
		HeaderBytes:     64,
	}, total)

	total.Clear()
	require.Equal(t, memutils.Statistics{}, total)
}
