package scope

import (
	cerrors "github.com/cockroachdb/errors"
	"github.com/pkg/errors"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slog"
)

// ErrNoScope is returned by Leave when no scope is open
var ErrNoScope error = errors.New("no scope is open")

type frame struct {
	parent heap.State
	block  heap.Address
}

// Stack opens nested allocation scopes on a single heap. Entering a scope reserves a block
// from the current heap and re-initializes the heap over that block, so that everything
// allocated inside the scope is released at once when the scope is left. Addresses
// allocated inside a scope are not valid after it is left.
//
// Stack is not safe for concurrent use.
type Stack struct {
	logger *slog.Logger
	heap   *heap.Heap
	frames []frame
}

func New(logger *slog.Logger, h *heap.Heap) *Stack {
	if logger == nil {
		logger = slog.Default()
	}

	return &Stack{
		logger: logger,
		heap:   h,
	}
}

// Heap returns the heap that all scopes share. Its bounds change as scopes are entered
// and left.
func (s *Stack) Heap() *heap.Heap {
	return s.heap
}

// Depth returns the number of open scopes
func (s *Stack) Depth() int {
	return len(s.frames)
}

// Enter reserves size bytes from the current scope and makes them the bounds of a new,
// empty scope
func (s *Stack) Enter(size int) error {
	block, err := s.heap.Malloc(size)
	if err != nil {
		return cerrors.Wrapf(err, "could not reserve %d bytes for scope %d", size, len(s.frames)+1)
	}

	parent := s.heap.Snapshot()
	err = s.heap.Init(block+heap.Address(size), block)
	if err != nil {
		s.heap.Restore(parent)
		freeErr := s.heap.Free(block)
		if freeErr != nil {
			panic(cerrors.Wrapf(freeErr, "could not release block at %d for abandoned scope", block))
		}
		return err
	}

	s.frames = append(s.frames, frame{parent: parent, block: block})
	s.logger.Debug("scope entered",
		slog.Int("depth", len(s.frames)),
		slog.Int("start", int(s.heap.Start())),
		slog.Int("end", int(s.heap.End())),
	)
	return nil
}

// Leave discards every allocation made in the innermost scope and returns its block to
// the enclosing scope
func (s *Stack) Leave() error {
	if len(s.frames) == 0 {
		return ErrNoScope
	}

	top := s.frames[len(s.frames)-1]
	if !s.heap.IsEmpty() {
		s.logger.Debug("scope left with live allocations",
			slog.Int("depth", len(s.frames)),
			slog.Int("allocations", s.heap.AllocationCount()),
		)
	}

	s.heap.Restore(top.parent)
	s.frames = s.frames[:len(s.frames)-1]

	err := s.heap.Free(top.block)
	if err != nil {
		return cerrors.Wrapf(err, "could not release block of scope %d", len(s.frames)+1)
	}

	s.logger.Debug("scope left", slog.Int("depth", len(s.frames)))
	return nil
}

// AddStatistics adds the statistics of the innermost scope. The enclosing scopes are
// not visible while it is open.
func (s *Stack) AddStatistics(stats *memutils.Statistics) {
	s.heap.AddStatistics(stats)
}
