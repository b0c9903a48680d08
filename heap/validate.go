package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/memutils"
)

// IsValid reports whether ptr looks like the payload address of a live allocation. It is a
// sanity check against obvious misuse, not a guarantee.
func (h *Heap) IsValid(ptr Address) bool {
	_, err := h.checkPointer(ptr)
	return err == nil
}

// checkPointer validates ptr and returns the address of its segment header
func (h *Heap) checkPointer(ptr Address) (Address, error) {
	if ptr == Null {
		return noSegment, cerrors.Wrap(memutils.ErrInvalidPointer, "null pointer")
	}

	seg := headerOf(ptr)
	if seg < h.state.brk || ptr > h.state.start {
		return noSegment, cerrors.Wrapf(memutils.ErrInvalidPointer, "pointer %d is outside of the committed region [%d, %d)", ptr, h.state.brk, h.state.start)
	}

	if h.released(seg) {
		return noSegment, cerrors.Wrapf(memutils.ErrDoubleRelease, "pointer %d has already been freed", ptr)
	}

	size := h.segmentSize(seg)
	if size < 0 || size >= h.Size() || int(ptr)+size > int(h.state.start) {
		return noSegment, cerrors.Wrapf(memutils.ErrInvalidPointer, "pointer %d has an implausible size %d", ptr, size)
	}

	if h.segmentNext(seg) != noSegment {
		return noSegment, cerrors.Wrapf(memutils.ErrInvalidPointer, "pointer %d has a free list link but is not on the free list", ptr)
	}

	return seg, nil
}

// freeSegments returns the free list in list order, checking that it is strictly
// descending and contained in the committed region
func (h *Heap) freeSegments() ([]Address, error) {
	var segments []Address
	maxSegments := h.Committed()/HeaderSize + 1

	prev := noSegment
	for seg := h.state.freeHead; seg != noSegment; seg = h.segmentNext(seg) {
		if seg < h.state.brk || seg+HeaderSize > h.state.start {
			return nil, errors.Errorf("free segment at %d lies outside of the committed region [%d, %d)", seg, h.state.brk, h.state.start)
		}

		if prev != noSegment && seg >= prev {
			return nil, errors.Errorf("free list is not in descending address order: %d follows %d", seg, prev)
		}

		segments = append(segments, seg)
		if len(segments) > maxSegments {
			return nil, errors.Errorf("free list has more than the %d segments that fit in the committed region", maxSegments)
		}

		prev = seg
	}

	return segments, nil
}

// walkSegments visits every segment in the committed region from the break upward
func (h *Heap) walkSegments(visit func(seg Address, size int, free bool) error) error {
	free, err := h.freeSegments()
	if err != nil {
		return err
	}

	// The free list is descending, the walk is ascending
	nextFree := len(free) - 1

	for seg := h.state.brk; seg < h.state.start; {
		if seg+HeaderSize > h.state.start {
			return errors.Errorf("segment header at %d crosses the heap start %d", seg, h.state.start)
		}

		size := h.segmentSize(seg)
		end := seg + HeaderSize + Address(size)
		if size < 0 || size >= h.Size() || end > h.state.start {
			return errors.Errorf("segment at %d has size %d, which crosses the heap start %d", seg, size, h.state.start)
		}

		isFree := nextFree >= 0 && free[nextFree] == seg
		if isFree {
			nextFree--
		} else {
			if nextFree >= 0 && free[nextFree] < end {
				return errors.Errorf("free segment at %d does not start on a segment boundary", free[nextFree])
			}

			if h.segmentNext(seg) != noSegment {
				return errors.Errorf("allocated segment at %d has a free list link", seg)
			}
		}

		err = visit(seg, size, isFree)
		if err != nil {
			return err
		}

		seg = end
	}

	if nextFree >= 0 {
		return errors.Errorf("free segment at %d was not found in the committed region", free[nextFree])
	}

	return nil
}

// Validate performs internal consistency checks on the heap: the break lies within the bounds,
// the committed region is tiled exactly by segments, the free list is strictly descending
// and only contains segments of the committed region, allocated segments carry no
// free list link, and free segments are fully coalesced and trimmed. These checks walk the
// whole committed region.
func (h *Heap) Validate() error {
	if h.state.end < 0 || h.state.end >= h.state.start || int(h.state.start) > len(h.region) {
		return errors.Errorf("heap bounds [%d, %d) are invalid for a region of %d bytes", h.state.end, h.state.start, len(h.region))
	}

	if h.state.brk < h.state.end || h.state.brk > h.state.start {
		return errors.Errorf("break %d is outside of the heap bounds [%d, %d)", h.state.brk, h.state.end, h.state.start)
	}

	prevFree := false
	prevSeg := noSegment
	return h.walkSegments(func(seg Address, size int, free bool) error {
		if free && seg == h.state.brk {
			return errors.Errorf("free segment at %d sits at the break and should have been trimmed", seg)
		}

		if free && prevFree {
			return errors.Errorf("free segments at %d and %d are adjacent and should have been merged", prevSeg, seg)
		}

		prevFree = free
		prevSeg = seg
		return nil
	})
}
