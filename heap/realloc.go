package heap

import (
	"fmt"

	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// Realloc resizes an allocation, preserving the first min(old, new) bytes of its contents.
// The returned address may differ from ptr even when no relocation takes place, because
// blocks shrink from the low end and grow toward lower addresses.
//
// Growth is attempted in place first: at the break, then into a free neighbour above the
// block, then into a free neighbour below it. Only then is a new block allocated and the
// contents copied. If that allocation fails, ptr is left untouched.
func (h *Heap) Realloc(ptr Address, size int) (Address, error) {
	err := memutils.CheckSize(size, "size")
	if err != nil {
		return Null, err
	}

	seg, err := h.checkPointer(ptr)
	if err != nil {
		h.logger.Warn("realloc: rejected pointer", slog.Int("pointer", int(ptr)), slog.Any("error", err))
		return Null, err
	}

	current := h.segmentSize(seg)
	diff := size - current
	h.logger.Debug("realloc: resizing segment", slog.Int("offset", int(seg)), slog.Int("size", current), slog.Int("diff", diff))

	if diff == 0 {
		return ptr, nil
	}

	var newSeg Address
	if diff < 0 {
		newSeg = h.shrink(seg, size, -diff)
	} else if grown, ok := h.growAtBreak(seg, diff); ok {
		newSeg = grown
	} else if grown, ok := h.growIntoLeft(seg, diff); ok {
		newSeg = grown
	} else if grown, ok := h.growIntoRight(seg, diff); ok {
		newSeg = grown
	} else {
		return h.relocate(seg, size)
	}

	memutils.DebugValidate(h)
	return payloadOf(newSeg), nil
}

// shrink gives the low excess bytes of a segment back to the heap. The excess is released
// through the regular free path, so it may merge or be trimmed.
func (h *Heap) shrink(seg Address, size, excess int) Address {
	if excess <= HeaderSize {
		h.logger.Debug("realloc: shrink too small to reclaim", slog.Int("offset", int(seg)), slog.Int("excess", excess))
		return seg
	}

	newSeg := seg + Address(excess)
	copy(h.region[payloadOf(newSeg):], h.region[payloadOf(seg):payloadOf(seg)+Address(size)])
	h.writeHeader(newSeg, size, noSegment)
	h.setSize(seg, excess-HeaderSize)

	h.logger.Debug("realloc: shrunk segment", slog.Int("offset", int(newSeg)), slog.Int("size", size))

	err := h.release(seg)
	if err != nil {
		panic(fmt.Sprintf("could not release shrunk remainder at %d: %+v", seg, err))
	}

	return newSeg
}

// growAtBreak extends the segment at the break downward
func (h *Heap) growAtBreak(seg Address, diff int) (Address, bool) {
	if seg != h.state.brk {
		return noSegment, false
	}

	newSeg, err := h.grow(diff)
	if err != nil {
		h.logger.Debug("realloc: could not grow break", slog.Int("diff", diff), slog.Any("error", err))
		return noSegment, false
	}

	current := h.segmentSize(seg)
	h.moveSegment(seg, newSeg, current, current+diff)

	h.logger.Debug("realloc: grew at break", slog.Int("offset", int(newSeg)), slog.Int("size", current+diff))
	return newSeg, true
}

// growIntoLeft absorbs some or all of the free segment directly above seg. The payload
// does not move.
func (h *Heap) growIntoLeft(seg Address, diff int) (Address, bool) {
	left := h.segmentEnd(seg)
	if left >= h.state.start {
		return noSegment, false
	}

	leftPrev, found := h.findFree(left)
	if !found {
		return noSegment, false
	}

	leftSize := h.segmentSize(left)
	available := leftSize + HeaderSize
	if available < diff {
		return noSegment, false
	}

	leftNext := h.segmentNext(left)
	current := h.segmentSize(seg)
	h.eraseHeader(left)

	if available == diff || leftSize < diff {
		// The leftover would not hold a header, so the whole neighbour is taken
		h.link(leftPrev, leftNext)
		h.setSize(seg, current+available)

		h.logger.Debug("realloc: absorbed left neighbour", slog.Int("offset", int(seg)), slog.Int("size", current+available))
		return seg, true
	}

	remainder := left + Address(diff)
	h.writeHeader(remainder, leftSize-diff, leftNext)
	h.link(leftPrev, remainder)
	h.setSize(seg, current+diff)

	h.logger.Debug("realloc: split left neighbour",
		slog.Int("offset", int(seg)),
		slog.Int("size", current+diff),
		slog.Int("freeOffset", int(remainder)),
		slog.Int("freeSize", leftSize-diff),
	)
	return seg, true
}

// growIntoRight absorbs some or all of the free segment directly below seg. The payload
// moves down and the contents are copied.
func (h *Heap) growIntoRight(seg Address, diff int) (Address, bool) {
	right, rightPrev := h.freeBelow(seg)
	if right == noSegment || h.segmentEnd(right) != seg {
		return noSegment, false
	}

	rightSize := h.segmentSize(right)
	available := rightSize + HeaderSize
	if available < diff {
		return noSegment, false
	}

	current := h.segmentSize(seg)

	if available == diff || rightSize < diff {
		h.unlink(right, rightPrev)
		h.moveSegment(seg, right, current, current+available)

		h.logger.Debug("realloc: absorbed right neighbour", slog.Int("offset", int(right)), slog.Int("size", current+available))
		return right, true
	}

	h.setSize(right, rightSize-diff)
	newSeg := seg - Address(diff)
	h.moveSegment(seg, newSeg, current, current+diff)

	h.logger.Debug("realloc: split right neighbour",
		slog.Int("offset", int(newSeg)),
		slog.Int("size", current+diff),
		slog.Int("freeOffset", int(right)),
		slog.Int("freeSize", rightSize-diff),
	)
	return newSeg, true
}

// moveSegment moves an allocated segment down to a lower address, carrying keep bytes of
// payload along, and gives it a new size
func (h *Heap) moveSegment(from, to Address, keep, newSize int) {
	h.eraseHeader(from)
	copy(h.region[payloadOf(to):], h.region[payloadOf(from):payloadOf(from)+Address(keep)])
	h.writeHeader(to, newSize, noSegment)
}

// relocate allocates a new block, copies the contents and frees the old block
func (h *Heap) relocate(seg Address, size int) (Address, error) {
	h.logger.Debug("realloc: cannot grow in place, relocating", slog.Int("offset", int(seg)), slog.Int("size", size))

	ptr, err := h.Malloc(size)
	if err != nil {
		return Null, err
	}

	current := h.segmentSize(seg)
	copy(h.region[ptr:ptr+Address(current)], h.payload(seg))

	err = h.release(seg)
	if err != nil {
		panic(fmt.Sprintf("could not release relocated segment at %d: %+v", seg, err))
	}

	memutils.DebugValidate(h)
	return ptr, nil
}
