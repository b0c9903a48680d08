package tracker_test

import (
	"bytes"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	cerrors "github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/brkheap/heap"
	"github.com/vkngwrapper/brkheap/memutils"
	"github.com/vkngwrapper/brkheap/tracker"
	"golang.org/x/exp/slog"
)

func newTestTracker(t *testing.T, region []byte, logOutput io.Writer, options tracker.Options) (*heap.Heap, *tracker.Tracker) {
	logger := slog.New(slog.NewTextHandler(logOutput))
	h, err := heap.New(logger, region, heap.CreateOptions{})
	require.NoError(t, err)

	return h, tracker.New(logger, h, options)
}

func TestTrackAllocations(t *testing.T) {
	var logs bytes.Buffer
	h, tr := newTestTracker(t, make([]byte, 1024), &logs, tracker.Options{ValidateEveryCall: true})

	a, err := tr.Malloc(32)
	require.NoError(t, err)
	require.NoError(t, tr.SetName(a, "names"))

	b, err := tr.Calloc(4, 4)
	require.NoError(t, err)
	require.Equal(t, heap.Address(960), b)
	require.Equal(t, 2, tr.LiveCount())
	require.Equal(t, 48, tr.LiveBytes())

	a, err = tr.Realloc(a, 40)
	require.NoError(t, err)
	require.Equal(t, heap.Address(904), a)
	require.Equal(t, 2, tr.LiveCount())
	require.Equal(t, 56, tr.LiveBytes())

	err = tr.Free(heap.Null)
	require.True(t, cerrors.Is(err, memutils.ErrInvalidPointer))
	require.Equal(t, 2, tr.LiveCount())

	require.NoError(t, tr.Free(b))
	require.Equal(t, 1, tr.LiveCount())
	require.Equal(t, 40, tr.LiveBytes())

	logs.Reset()
	err = tr.CheckLeaks()
	require.Error(t, err)
	require.Contains(t, logs.String(), "[UNRELEASED MEMORY] unfreed allocation")
	require.Contains(t, logs.String(), "offset=904")
	require.Contains(t, logs.String(), "size=40")
	require.Contains(t, logs.String(), "name=names")

	require.NoError(t, tr.Free(a))
	require.NoError(t, tr.CheckLeaks())
	require.Equal(t, 0, tr.LiveCount())
	require.Equal(t, 0, tr.LiveBytes())
	require.True(t, h.IsEmpty())

	err = tr.SetName(a, "gone")
	require.True(t, cerrors.Is(err, memutils.ErrInvalidPointer))
}

func TestLeakWithoutName(t *testing.T) {
	var logs bytes.Buffer
	_, tr := newTestTracker(t, make([]byte, 1024), &logs, tracker.Options{})

	_, err := tr.Malloc(8)
	require.NoError(t, err)
	_, err = tr.Malloc(8)
	require.NoError(t, err)

	logs.Reset()
	require.Error(t, tr.CheckLeaks())
	require.Equal(t, 2, bytes.Count(logs.Bytes(), []byte("[UNRELEASED MEMORY]")))
	require.Contains(t, logs.String(), "name=empty")
}

func TestBuildStatsString(t *testing.T) {
	_, tr := newTestTracker(t, make([]byte, 1024), io.Discard, tracker.Options{})

	a, err := tr.Malloc(32)
	require.NoError(t, err)
	require.NoError(t, tr.SetName(a, "first"))
	_, err = tr.Malloc(16)
	require.NoError(t, err)

	require.JSONEq(t, `{
		"Total": {
			"HeapCount": 1,
			"AllocationCount": 2,
			"AllocationBytes": 48,
			"HeaderBytes": 32,
			"UnusedRangeCount": 0,
			"AllocationSizeMin": 16,
			"AllocationSizeMax": 32
		},
		"Heap": {
			"TotalBytes": 1024,
			"CommittedBytes": 80,
			"UnusedBytes": 944,
			"Allocations": 2,
			"UnusedRanges": 0,
			"Break": 944,
			"Segments": [
				{"Offset": 960, "Type": "ALLOCATION", "Size": 16},
				{"Offset": 992, "Type": "ALLOCATION", "Size": 32}
			]
		},
		"LiveAllocations": [
			{"Offset": 960, "Size": 16},
			{"Offset": 992, "Size": 32, "Name": "first"}
		]
	}`, tr.BuildStatsString())
}

func TestValidateEveryCall(t *testing.T) {
	region := make([]byte, 1024)
	_, tr := newTestTracker(t, region, io.Discard, tracker.Options{ValidateEveryCall: true})

	a, err := tr.Malloc(32)
	require.NoError(t, err)

	binary.LittleEndian.PutUint64(region[a-heap.HeaderSize:], 5000)

	ptr, err := tr.Malloc(8)
	require.Error(t, err)
	require.Contains(t, err.Error(), "heap failed validation after malloc")
	require.Equal(t, heap.Null, ptr)

	ptr, err = tr.Calloc(2, 4)
	require.Error(t, err)
	require.Contains(t, err.Error(), "heap failed validation after calloc")
	require.Equal(t, heap.Null, ptr)
}

func TestSynchronized(t *testing.T) {
	h, tr := newTestTracker(t, make([]byte, 1<<16), io.Discard, tracker.Options{
		ValidateEveryCall: true,
		Synchronized:      true,
	})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(size int) {
			defer wg.Done()

			for j := 0; j < 50; j++ {
				ptr, err := tr.Malloc(size)
				require.NoError(t, err)

				ptr, err = tr.Realloc(ptr, size*2)
				require.NoError(t, err)

				require.NoError(t, tr.Free(ptr))
			}
		}(i*8 + 1)
	}
	wg.Wait()

	require.Equal(t, 0, tr.LiveCount())
	require.NoError(t, tr.CheckLeaks())
	require.True(t, h.IsEmpty())
}
