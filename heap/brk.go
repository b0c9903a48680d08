package heap

import (
	"fmt"

	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

//go:generate mockgen -source brk.go -destination ./mocks/integrity.go -package mock_heap

// IntegrityCheck is consulted before the break grows. It allows an embedding to keep
// the heap from growing into another reserved region, such as a call stack growing
// toward the heap. Returning false rejects the growth and leaves the heap unchanged.
type IntegrityCheck interface {
	CheckBreak(newBreak Address) bool
}

// AlwaysApprove is an IntegrityCheck that never objects
type AlwaysApprove struct{}

func (AlwaysApprove) CheckBreak(newBreak Address) bool { return true }

// CheckBreakFunc adapts an ordinary function to IntegrityCheck
type CheckBreakFunc func(newBreak Address) bool

func (f CheckBreakFunc) CheckBreak(newBreak Address) bool { return f(newBreak) }

// StackGuard keeps the break at least Margin bytes above a boundary that moves over
// time, such as the top of a stack sharing the region with the heap
type StackGuard struct {
	Top    func() Address
	Margin int
}

func (g StackGuard) CheckBreak(newBreak Address) bool {
	return int(newBreak) >= int(g.Top())+g.Margin
}

// grow moves the break toward the heap end by amount bytes and returns the new break
func (h *Heap) grow(amount int) (Address, error) {
	if amount < 0 || amount > h.Remaining() {
		return Null, cerrors.Wrapf(memutils.ErrOutOfMemory, "cannot grow break at %d by %d bytes, heap end is %d", h.state.brk, amount, h.state.end)
	}

	newBreak := h.state.brk - Address(amount)
	if !h.integrity.CheckBreak(newBreak) {
		return Null, cerrors.Wrapf(memutils.ErrOutOfMemory, "integrity check rejected break %d", newBreak)
	}

	h.state.brk = newBreak
	return newBreak, nil
}

// shrinkTo retracts the break toward the heap start
func (h *Heap) shrinkTo(newBreak Address) {
	if newBreak < h.state.brk || newBreak > h.state.start {
		panic(fmt.Sprintf("cannot retract break from %d to %d with heap start %d", h.state.brk, newBreak, h.state.start))
	}

	h.logger.Debug("break retracted", slog.Int("from", int(h.state.brk)), slog.Int("to", int(newBreak)))
	h.state.brk = newBreak
}
