package heap_test

import (
	"bytes"
	"fmt"
	"io"

	"github.com/vkngwrapper/brkheap/heap"
	"golang.org/x/exp/slog"
)

func Example() {
	logger := slog.New(slog.NewTextHandler(io.Discard))
	h, err := heap.New(logger, make([]byte, 4096), heap.CreateOptions{Start: 4095, End: 1024})
	if err != nil {
		panic(err)
	}

	var ptrs []heap.Address
	for _, text := range []string{"1234567890abcdef", "qwertyui", "hello world!"} {
		ptr, err := h.Malloc(len(text) + 1)
		if err != nil {
			panic(err)
		}

		payload, _ := h.Bytes(ptr)
		copy(payload, text)
		ptrs = append(ptrs, ptr)
	}
	fmt.Println("break:", h.CurrentBreak())

	_ = h.Free(ptrs[1])
	ptr, _ := h.Malloc(9)
	fmt.Println("reused:", ptr == ptrs[1])

	for _, ptr := range ptrs {
		payload, _ := h.Bytes(ptr)
		fmt.Println(string(bytes.TrimRight(payload, "\x00")))
	}

	for _, ptr := range ptrs {
		_ = h.Free(ptr)
	}
	fmt.Println("empty:", h.IsEmpty())

	// Output:
	// break: 4008
	// reused: true
	// 1234567890abcdef
	// qwertyui
	// hello world!
	// empty: true
}

func ExampleHeap_Realloc() {
	logger := slog.New(slog.NewTextHandler(io.Discard))
	h, err := heap.New(logger, make([]byte, 1024), heap.CreateOptions{})
	if err != nil {
		panic(err)
	}

	p, _ := h.Malloc(5)
	payload, _ := h.Bytes(p)
	copy(payload, "hello")

	// The block sits at the break, so it grows in place and its payload moves down
	q, err := h.Realloc(p, 11)
	if err != nil {
		panic(err)
	}

	payload, _ = h.Bytes(q)
	copy(payload[5:], " world")
	fmt.Println(string(payload))
	fmt.Println("moved:", p != q)

	// Output:
	// hello world
	// moved: true
}
