package heap

import (
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// Free returns an allocation to the heap. An address that does not look like a live
// allocation is rejected with memutils.ErrInvalidPointer, and an address that is already
// free with memutils.ErrDoubleRelease. Rejected calls leave the heap untouched.
func (h *Heap) Free(ptr Address) error {
	seg, err := h.checkPointer(ptr)
	if err == nil {
		h.logger.Debug("free: releasing segment", slog.Int("offset", int(seg)), slog.Int("size", h.segmentSize(seg)))
		err = h.release(seg)
	}

	if err != nil {
		h.logger.Warn("free: rejected pointer", slog.Int("pointer", int(ptr)), slog.Any("error", err))
		return err
	}

	memutils.DebugValidate(h)
	return nil
}
