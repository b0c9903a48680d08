package heap

import "encoding/binary"

// HeaderSize is the number of bytes of bookkeeping placed at the low edge of every segment:
// the payload size followed by the free list link
const HeaderSize = 16

const (
	sizeOffset = 0
	nextOffset = 8
)

// noSegment terminates the free list. Links are stored as address+1 so that an erased,
// all-zero header reads back as size 0 with no link.
const noSegment Address = -1

type SegmentType uint32

const (
	SegmentFree SegmentType = iota
	SegmentAllocation
)

var segmentTypeMapping = map[SegmentType]string{
	SegmentFree:       "FREE",
	SegmentAllocation: "ALLOCATION",
}

func (t SegmentType) String() string {
	return segmentTypeMapping[t]
}

func payloadOf(seg Address) Address { return seg + HeaderSize }
func headerOf(ptr Address) Address  { return ptr - HeaderSize }

func (h *Heap) segmentSize(seg Address) int {
	return int(binary.LittleEndian.Uint64(h.region[seg+sizeOffset:]))
}

func (h *Heap) segmentNext(seg Address) Address {
	return Address(binary.LittleEndian.Uint64(h.region[seg+nextOffset:])) - 1
}

func (h *Heap) segmentEnd(seg Address) Address {
	return seg + HeaderSize + Address(h.segmentSize(seg))
}

func (h *Heap) setSize(seg Address, size int) {
	binary.LittleEndian.PutUint64(h.region[seg+sizeOffset:], uint64(size))
}

func (h *Heap) setNext(seg Address, next Address) {
	binary.LittleEndian.PutUint64(h.region[seg+nextOffset:], uint64(next+1))
}

func (h *Heap) writeHeader(seg Address, size int, next Address) {
	h.setSize(seg, size)
	h.setNext(seg, next)
}

func (h *Heap) eraseHeader(seg Address) {
	h.writeHeader(seg, 0, noSegment)
}

// payload returns the full payload of a segment without any validation
func (h *Heap) payload(seg Address) []byte {
	start := payloadOf(seg)
	return h.region[start : start+Address(h.segmentSize(seg))]
}
