package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// Malloc allocates size bytes and returns the address of the payload. Free segments are
// preferred, exact fits first; the break only grows when no free segment can be used.
// A size of 0 is legal and still consumes a segment header. Like C's malloc, the
// payload is not zeroed.
func (h *Heap) Malloc(size int) (Address, error) {
	err := memutils.CheckSize(size, "size")
	if err != nil {
		return Null, err
	}

	if size >= h.Size() {
		return Null, cerrors.Wrapf(memutils.ErrOutOfMemory, "requested %d bytes from a heap of %d bytes", size, h.Size())
	}

	exact, exactPrev, splittable := h.findFit(size)
	if exact != noSegment {
		h.unlink(exact, exactPrev)
		h.logger.Debug("malloc: using exact free segment", slog.Int("offset", int(exact)), slog.Int("size", size))

		memutils.DebugValidate(h)
		return payloadOf(exact), nil
	}

	if splittable != noSegment {
		piece := h.split(splittable, size)
		h.logger.Debug("malloc: split free segment",
			slog.Int("offset", int(piece)),
			slog.Int("size", size),
			slog.Int("freeOffset", int(splittable)),
			slog.Int("freeSize", h.segmentSize(splittable)),
		)

		memutils.DebugValidate(h)
		return payloadOf(piece), nil
	}

	seg, err := h.grow(size + HeaderSize)
	if err != nil {
		h.logger.Debug("malloc: could not grow break", slog.Int("size", size), slog.Any("error", err))
		return Null, err
	}

	h.writeHeader(seg, size, noSegment)
	h.logger.Debug("malloc: grew break for new segment", slog.Int("offset", int(seg)), slog.Int("size", size))

	memutils.DebugValidate(h)
	return payloadOf(seg), nil
}

// Calloc allocates count*size bytes and zeroes them. A product that overflows int fails
// with an error marked as memutils.ErrOutOfMemory without touching the heap.
func (h *Heap) Calloc(count, size int) (Address, error) {
	err := memutils.CheckSize(count, "count")
	if err != nil {
		return Null, err
	}

	err = memutils.CheckSize(size, "size")
	if err != nil {
		return Null, err
	}

	total, ok := memutils.CheckedMul(count, size)
	if !ok {
		return Null, cerrors.Mark(cerrors.Newf("calloc of %d elements of %d bytes overflows", count, size), memutils.ErrOutOfMemory)
	}

	ptr, err := h.Malloc(total)
	if err != nil {
		return Null, err
	}

	payload := h.payload(headerOf(ptr))
	for i := range payload {
		payload[i] = 0
	}

	return ptr, nil
}
