package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// The free list is singly linked through the segment headers and kept in strictly
// descending address order, head first. Every lookup is a single linear scan.

// link points prev at next, or the list head when prev is noSegment
func (h *Heap) link(prev, next Address) {
	if prev == noSegment {
		h.state.freeHead = next
		return
	}

	h.setNext(prev, next)
}

func (h *Heap) unlink(seg, prev Address) {
	h.link(prev, h.segmentNext(seg))
	h.setNext(seg, noSegment)
}

// findFit returns the first free segment whose payload is exactly size bytes along with
// its predecessor. When there is none, it returns the smallest free segment that can be
// split into a size-byte piece while leaving room for its own header.
func (h *Heap) findFit(size int) (exact, exactPrev, splittable Address) {
	splittable = noSegment
	splittableSize := 0

	prev := noSegment
	for seg := h.state.freeHead; seg != noSegment; seg = h.segmentNext(seg) {
		segSize := h.segmentSize(seg)
		if segSize == size {
			return seg, prev, noSegment
		}

		if segSize > size+HeaderSize && (splittable == noSegment || segSize < splittableSize) {
			splittable = seg
			splittableSize = segSize
		}

		prev = seg
	}

	return noSegment, noSegment, splittable
}

// split carves a size-byte allocated piece off the high end of a free segment. The free
// segment keeps its address and its position in the list.
func (h *Heap) split(seg Address, size int) Address {
	h.setSize(seg, h.segmentSize(seg)-size-HeaderSize)

	piece := h.segmentEnd(seg)
	h.writeHeader(piece, size, noSegment)
	return piece
}

// findFree looks for seg on the free list and returns its predecessor
func (h *Heap) findFree(seg Address) (prev Address, found bool) {
	prev = noSegment
	for cur := h.state.freeHead; cur != noSegment && cur >= seg; cur = h.segmentNext(cur) {
		if cur == seg {
			return prev, true
		}
		prev = cur
	}

	return noSegment, false
}

// freeBelow returns the highest free segment below seg and its predecessor
func (h *Heap) freeBelow(seg Address) (below, prev Address) {
	prev = noSegment
	for cur := h.state.freeHead; cur != noSegment; cur = h.segmentNext(cur) {
		if cur < seg {
			return cur, prev
		}
		prev = cur
	}

	return noSegment, noSegment
}

type neighbours struct {
	// left is the closest free segment above, leftPrev its predecessor
	left     Address
	leftPrev Address
	// right is the closest free segment below
	right Address
}

// locate finds the free segments on either side of seg in one scan. It reports found
// if seg is itself already on the list or lies inside a free segment.
func (h *Heap) locate(seg Address) (n neighbours, found bool) {
	n = neighbours{left: noSegment, leftPrev: noSegment, right: noSegment}

	for cur := h.state.freeHead; cur != noSegment; cur = h.segmentNext(cur) {
		switch {
		case cur > seg:
			n.leftPrev = n.left
			n.left = cur
		case cur < seg:
			n.right = cur
			return n, h.segmentEnd(cur) > seg
		default:
			return n, true
		}
	}

	return n, false
}

// release puts an allocated segment on the free list, merges it with free neighbours that
// touch it, and gives the result back to the uncommitted region if it sits at the break.
func (h *Heap) release(seg Address) error {
	n, found := h.locate(seg)
	if found {
		return cerrors.Wrapf(memutils.ErrDoubleRelease, "segment at %d is already free", seg)
	}

	h.setNext(seg, n.right)
	h.link(n.left, seg)
	prev := n.left

	if n.left != noSegment && h.segmentEnd(seg) == n.left {
		h.setSize(seg, h.segmentSize(seg)+h.segmentSize(n.left)+HeaderSize)
		h.eraseHeader(n.left)
		h.link(n.leftPrev, seg)
		prev = n.leftPrev

		h.logger.Debug("free: merged with left neighbour", slog.Int("offset", int(seg)), slog.Int("size", h.segmentSize(seg)))
	}

	if n.right != noSegment && h.segmentEnd(n.right) == seg {
		h.setSize(n.right, h.segmentSize(n.right)+h.segmentSize(seg)+HeaderSize)
		h.eraseHeader(seg)
		h.link(prev, n.right)
		seg = n.right

		h.logger.Debug("free: merged with right neighbour", slog.Int("offset", int(seg)), slog.Int("size", h.segmentSize(seg)))
	}

	if seg == h.state.brk && h.segmentNext(seg) == noSegment {
		newBreak := h.segmentEnd(seg)
		h.eraseHeader(seg)
		h.link(prev, noSegment)
		h.shrinkTo(newBreak)
	}

	return nil
}

// released reports whether seg is a node of the free list or lies inside one. A segment
// that was merged into a lower neighbour keeps an erased header inside that neighbour.
func (h *Heap) released(seg Address) bool {
	for cur := h.state.freeHead; cur != noSegment; cur = h.segmentNext(cur) {
		if cur == seg {
			return true
		}

		if cur < seg {
			return h.segmentEnd(cur) > seg
		}
	}

	return false
}
