package heap

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// Address is a byte offset into the region a Heap was created over
type Address int

// Null is never a valid payload address: every payload is preceded by a segment header
const Null Address = 0

// Heap manages sub-allocations within a fixed window of a caller-supplied byte region.
// The heap grows downward: the committed region is [Break, Start) and allocations
// move the break toward End.
//
// Heap is not safe for concurrent use. Callers that need to share a Heap between
// goroutines must serialize access themselves.
type Heap struct {
	logger    *slog.Logger
	region    []byte
	integrity IntegrityCheck

	state State
}

var _ memutils.Validatable = &Heap{}

// State is an immutable capture of a heap's bounds, break and free list head. It can be
// handed back to Heap.Restore to roll the heap back to the captured point. The
// bytes of the region are not part of the State.
type State struct {
	start    Address
	end      Address
	brk      Address
	freeHead Address
}

func (s State) Start() Address { return s.start }
func (s State) End() Address   { return s.end }
func (s State) Break() Address { return s.brk }

// New creates a Heap over region and initializes it with the bounds in options.
// The heap never reads or writes outside of region.
func New(logger *slog.Logger, region []byte, options CreateOptions) (*Heap, error) {
	if logger == nil {
		logger = slog.Default()
	}

	integrity := options.IntegrityCheck
	if integrity == nil {
		integrity = AlwaysApprove{}
	}

	start := options.Start
	if start == 0 {
		start = Address(len(region))
	}

	h := &Heap{
		logger:    logger,
		region:    region,
		integrity: integrity,
	}

	err := h.Init(start, options.End)
	if err != nil {
		return nil, err
	}

	return h, nil
}

// Init resets the heap to manage [end, start) of its region with nothing committed.
// Any address previously returned by the heap becomes invalid.
func (h *Heap) Init(start, end Address) error {
	if start <= end || end < 0 || int(start) > len(h.region) {
		return cerrors.Wrapf(memutils.ErrInvalidBounds, "start %d, end %d, region of %d bytes", start, end, len(h.region))
	}

	h.state = State{
		start:    start,
		end:      end,
		brk:      start,
		freeHead: noSegment,
	}

	h.logger.Debug("heap initialized", slog.Int("start", int(start)), slog.Int("end", int(end)))
	return nil
}

// Snapshot captures the current bounds, break and free list head
func (h *Heap) Snapshot() State {
	return h.state
}

// Restore installs a State previously produced by Snapshot. No validation is performed:
// the caller is responsible for the region's contents matching the State.
func (h *Heap) Restore(state State) {
	h.state = state
}

// CurrentBreak returns the lowest committed address
func (h *Heap) CurrentBreak() Address {
	return h.state.brk
}

// Start returns the highest address of the heap (exclusive)
func (h *Heap) Start() Address { return h.state.start }

// End returns the lowest address the break may reach
func (h *Heap) End() Address { return h.state.end }

// Size returns the number of bytes between the heap's end and start
func (h *Heap) Size() int {
	return int(h.state.start - h.state.end)
}

// Committed returns the number of bytes between the break and the heap start
func (h *Heap) Committed() int {
	return int(h.state.start - h.state.brk)
}

// Remaining returns the number of bytes the break can still grow by
func (h *Heap) Remaining() int {
	return int(h.state.brk - h.state.end)
}

// Bytes returns the payload of a live allocation. The returned slice aliases the
// heap's region and its capacity is limited to the allocation's size.
func (h *Heap) Bytes(ptr Address) ([]byte, error) {
	seg, err := h.checkPointer(ptr)
	if err != nil {
		return nil, err
	}

	end := ptr + Address(h.segmentSize(seg))
	return h.region[ptr:end:end], nil
}

// UsableSize returns the payload size of a live allocation, which may exceed the size
// that was requested for it
func (h *Heap) UsableSize(ptr Address) (int, error) {
	seg, err := h.checkPointer(ptr)
	if err != nil {
		return 0, err
	}

	return h.segmentSize(seg), nil
}
