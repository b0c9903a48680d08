package tracker

import (
	"context"

	cerrors "github.com/cockroachdb/errors"
	"github.com/dolthub/swiss"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/internal/utils"
	"github.com/vkngwrapper/brkheap/memutils"
	"golang.org/x/exp/slices"
	"golang.org/x/exp/slog"
)

type allocationRecord struct {
	size int
	name string
}

// Tracker forwards allocation calls to a heap and keeps a record of every live allocation
// made through it. It is meant for debugging: leaks can be reported with CheckLeaks and the
// full state of the heap can be dumped with BuildStatsString.
//
// Allocations made on the heap directly, rather than through the Tracker, are not tracked.
type Tracker struct {
	logger  *slog.Logger
	heap    *heap.Heap
	options Options

	mutex     utils.OptionalRWMutex
	live      *swiss.Map[heap.Address, allocationRecord]
	liveBytes int
}

func New(logger *slog.Logger, h *heap.Heap, options Options) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}

	return &Tracker{
		logger:  logger,
		heap:    h,
		options: options,
		mutex: utils.OptionalRWMutex{
			UseMutex: options.Synchronized,
		},
		live: swiss.NewMap[heap.Address, allocationRecord](42),
	}
}

func (t *Tracker) track(ptr heap.Address, record allocationRecord) {
	t.live.Put(ptr, record)
	t.liveBytes += record.size
}

func (t *Tracker) untrack(ptr heap.Address) allocationRecord {
	record, ok := t.live.Get(ptr)
	if !ok {
		return allocationRecord{}
	}

	t.live.Delete(ptr)
	t.liveBytes -= record.size
	return record
}

func (t *Tracker) validate(operation string) error {
	if !t.options.ValidateEveryCall {
		return nil
	}

	err := t.heap.Validate()
	if err != nil {
		t.logger.Error("heap failed validation", slog.String("operation", operation), slog.Any("error", err))
		return cerrors.Wrapf(err, "heap failed validation after %s", operation)
	}

	return nil
}

// Malloc allocates size bytes from the heap and tracks the result
func (t *Tracker) Malloc(size int) (heap.Address, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	ptr, err := t.heap.Malloc(size)
	if err != nil {
		return heap.Null, err
	}

	t.track(ptr, allocationRecord{size: size})
	err = t.validate("malloc")
	if err != nil {
		return heap.Null, err
	}

	return ptr, nil
}

// Calloc allocates count*size zeroed bytes from the heap and tracks the result
func (t *Tracker) Calloc(count, size int) (heap.Address, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	ptr, err := t.heap.Calloc(count, size)
	if err != nil {
		return heap.Null, err
	}

	t.track(ptr, allocationRecord{size: count * size})
	err = t.validate("calloc")
	if err != nil {
		return heap.Null, err
	}

	return ptr, nil
}

// Free returns ptr to the heap and stops tracking it. Rejected pointers remain tracked.
func (t *Tracker) Free(ptr heap.Address) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	err := t.heap.Free(ptr)
	if err != nil {
		return err
	}

	t.untrack(ptr)
	return t.validate("free")
}

// Realloc resizes ptr on the heap. The tracked record, including its name, follows the
// allocation to its new address.
func (t *Tracker) Realloc(ptr heap.Address, size int) (heap.Address, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	newPtr, err := t.heap.Realloc(ptr, size)
	if err != nil {
		return heap.Null, err
	}

	record := t.untrack(ptr)
	record.size = size
	t.track(newPtr, record)
	err = t.validate("realloc")
	if err != nil {
		return heap.Null, err
	}

	return newPtr, nil
}

// SetName attaches a name to a tracked allocation, which is included in leak reports and
// stats dumps
func (t *Tracker) SetName(ptr heap.Address, name string) error {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	record, ok := t.live.Get(ptr)
	if !ok {
		return cerrors.Wrapf(memutils.ErrInvalidPointer, "pointer %d is not a tracked allocation", ptr)
	}

	record.name = name
	t.live.Put(ptr, record)
	return nil
}

// LiveCount returns the number of tracked allocations that have not been freed
func (t *Tracker) LiveCount() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.live.Count()
}

// LiveBytes returns the sum of the requested sizes of tracked allocations that have not
// been freed
func (t *Tracker) LiveBytes() int {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	return t.liveBytes
}

// sortedLive returns the tracked addresses in ascending order
func (t *Tracker) sortedLive() []heap.Address {
	addresses := make([]heap.Address, 0, t.live.Count())
	t.live.Iter(func(ptr heap.Address, record allocationRecord) bool {
		addresses = append(addresses, ptr)
		return false
	})
	slices.Sort(addresses)

	return addresses
}

// CheckLeaks logs every tracked allocation that has not been freed and returns an error
// if there are any
func (t *Tracker) CheckLeaks() error {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	if t.live.Count() == 0 {
		return nil
	}

	for _, ptr := range t.sortedLive() {
		record, _ := t.live.Get(ptr)
		t.logUnreleasedMemory(ptr, record)
	}

	return cerrors.Newf("%d allocations totalling %d bytes were not freed", t.live.Count(), t.liveBytes)
}

func (t *Tracker) logUnreleasedMemory(ptr heap.Address, record allocationRecord) {
	name := record.name
	if name == "" {
		name = "empty"
	}

	t.logger.LogAttrs(context.Background(), slog.LevelError, "[UNRELEASED MEMORY] unfreed allocation",
		slog.Int("offset", int(ptr)),
		slog.Int("size", record.size),
		slog.String("name", name),
	)
}

// BuildStatsString returns a json document describing the heap's segments and the tracked
// allocations
func (t *Tracker) BuildStatsString() string {
	t.mutex.RLock()
	defer t.mutex.RUnlock()

	writer := jwriter.NewWriter()
	obj := writer.Object()

	var stats memutils.DetailedStatistics
	stats.Clear()
	t.heap.AddDetailedStatistics(&stats)

	totalObj := obj.Name("Total").Object()
	totalObj.Name("HeapCount").Int(stats.HeapCount)
	totalObj.Name("AllocationCount").Int(stats.AllocationCount)
	totalObj.Name("AllocationBytes").Int(stats.AllocationBytes)
	totalObj.Name("HeaderBytes").Int(stats.HeaderBytes)
	totalObj.Name("UnusedRangeCount").Int(stats.UnusedRangeCount)
	if stats.AllocationCount > 0 {
		totalObj.Name("AllocationSizeMin").Int(stats.AllocationSizeMin)
		totalObj.Name("AllocationSizeMax").Int(stats.AllocationSizeMax)
	}
	if stats.UnusedRangeCount > 0 {
		totalObj.Name("UnusedRangeSizeMin").Int(stats.UnusedRangeSizeMin)
		totalObj.Name("UnusedRangeSizeMax").Int(stats.UnusedRangeSizeMax)
	}
	totalObj.End()

	heapObj := obj.Name("Heap").Object()
	t.heap.PrintDetailedMap(&heapObj)
	heapObj.End()

	liveArray := obj.Name("LiveAllocations").Array()
	for _, ptr := range t.sortedLive() {
		record, _ := t.live.Get(ptr)

		recordObj := liveArray.Object()
		recordObj.Name("Offset").Int(int(ptr))
		recordObj.Name("Size").Int(record.size)
		if record.name != "" {
			recordObj.Name("Name").String(record.name)
		}
		recordObj.End()
	}
	liveArray.End()

	obj.End()
	return string(writer.Bytes())
}
