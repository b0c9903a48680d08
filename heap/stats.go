package heap

import (
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// VisitAllSegments calls handleSegment once for every segment in the committed region, from
// the break up to the heap start. offset is the payload address of the segment. This walks
// the whole committed region and is intended for diagnostics.
func (h *Heap) VisitAllSegments(handleSegment func(offset Address, size int, free bool) error) error {
	return h.walkSegments(func(seg Address, size int, free bool) error {
		return handleSegment(payloadOf(seg), size, free)
	})
}

// AllocationCount returns the number of live allocations
func (h *Heap) AllocationCount() int {
	var count int
	err := h.walkSegments(func(seg Address, size int, free bool) error {
		if !free {
			count++
		}
		return nil
	})
	h.warnPartialWalk("AllocationCount", err)

	return count
}

// FreeRegionsCount returns the number of segments on the free list
func (h *Heap) FreeRegionsCount() int {
	var count int
	for seg := h.state.freeHead; seg != noSegment; seg = h.segmentNext(seg) {
		count++
	}
	return count
}

// SumFreeSize returns the total payload size of the segments on the free list. Uncommitted
// space is not included, see Remaining.
func (h *Heap) SumFreeSize() int {
	var sum int
	for seg := h.state.freeHead; seg != noSegment; seg = h.segmentNext(seg) {
		sum += h.segmentSize(seg)
	}
	return sum
}

// IsEmpty will return true if this heap has no live allocations. Because free segments at
// the break are always trimmed, this is the case exactly when nothing is committed.
func (h *Heap) IsEmpty() bool {
	return h.state.brk == h.state.start
}

func (h *Heap) AddStatistics(stats *memutils.Statistics) {
	stats.HeapCount++
	stats.ReservedBytes += h.Size()
	stats.CommittedBytes += h.Committed()

	err := h.walkSegments(func(seg Address, size int, free bool) error {
		stats.HeaderBytes += HeaderSize
		if !free {
			stats.AllocationCount++
			stats.AllocationBytes += size
		}
		return nil
	})
	h.warnPartialWalk("AddStatistics", err)
}

func (h *Heap) AddDetailedStatistics(stats *memutils.DetailedStatistics) {
	stats.HeapCount++
	stats.ReservedBytes += h.Size()
	stats.CommittedBytes += h.Committed()

	err := h.walkSegments(func(seg Address, size int, free bool) error {
		stats.HeaderBytes += HeaderSize
		if free {
			stats.AddUnusedRange(size)
		} else {
			stats.AddAllocation(size)
		}
		return nil
	})
	h.warnPartialWalk("AddDetailedStatistics", err)
}

// PrintDetailedMap populates a json object with a summary of this heap and every segment
// in its committed region
func (h *Heap) PrintDetailedMap(json *jwriter.ObjectState) {
	var stats memutils.DetailedStatistics
	stats.Clear()
	h.AddDetailedStatistics(&stats)

	json.Name("TotalBytes").Int(h.Size())
	json.Name("CommittedBytes").Int(stats.CommittedBytes)
	json.Name("UnusedBytes").Int(h.SumFreeSize() + h.Remaining())
	json.Name("Allocations").Int(stats.AllocationCount)
	json.Name("UnusedRanges").Int(stats.UnusedRangeCount)
	json.Name("Break").Int(int(h.state.brk))

	arrayState := json.Name("Segments").Array()
	defer arrayState.End()

	err := h.VisitAllSegments(func(offset Address, size int, free bool) error {
		obj := arrayState.Object()
		defer obj.End()

		segmentType := SegmentAllocation
		if free {
			segmentType = SegmentFree
		}

		obj.Name("Offset").Int(int(offset))
		obj.Name("Type").String(segmentType.String())
		obj.Name("Size").Int(size)
		return nil
	})
	h.warnPartialWalk("PrintDetailedMap", err)
}

// warnPartialWalk reports a segment walk that stopped early on a corrupt heap, leaving the
// caller with partial results
func (h *Heap) warnPartialWalk(operation string, err error) {
	if err == nil {
		return
	}

	h.logger.Warn("stats: segment walk failed, results are partial",
		slog.String("operation", operation),
		slog.Any("error", err),
	)
}
