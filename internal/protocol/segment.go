package protocol

import (
	"errors"
	"fmt"
)

// segmentNumberMask strips the reserved high bit from the segment
// number byte. The legacy peer sets it on the final segment of a
// response but the number itself is only the low seven bits.
const segmentNumberMask = 0x7F

var (
	ErrSegmentHeader   = errors.New("invalid segment header")
	ErrSegmentOverflow = errors.New("segment exceeds declared total size")
	ErrIncomplete      = errors.New("response incomplete, missing segments")
)

// Segment is one decoded fragment of a segmented server response.
type Segment struct {
	Number    int
	Total     int
	Offset    int
	Size      int
	TotalSize int
	Payload   []byte
}

// ParseSegment decodes a segment header and payload from r. The header
// layout is [number:1][total:1][offset:2][size:2][totalSize:2] followed
// by size payload bytes.
func ParseSegment(r *Reader) (Segment, error) {
	var (
		segment Segment
		err     error
	)

	number, err := r.Byte()
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}
	segment.Number = int(number & segmentNumberMask)

	total, err := r.Byte()
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}
	segment.Total = int(total)

	offset, err := r.Short()
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}
	segment.Offset = int(offset)

	size, err := r.Short()
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}
	segment.Size = int(size)

	totalSize, err := r.Short()
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}
	segment.TotalSize = int(totalSize)

	segment.Payload, err = r.Bytes(segment.Size)
	if err != nil {
		return segment, errors.Join(err, ErrSegmentHeader)
	}

	return segment, nil
}

// Reassembly collects the segments of one in-flight segmented response.
// It is private to a single query and never shared between goroutines.
type Reassembly struct {
	buf      []byte
	received map[int]bool
	total    int
}

func NewReassembly() *Reassembly {
	return &Reassembly{received: map[int]bool{}}
}

// Add copies one segment into the output buffer at its declared offset.
// Duplicate segments are ignored. Arrival order does not matter, the
// assembled buffer depends only on the set of segments received.
func (r *Reassembly) Add(segment Segment) error {
	if segment.Total <= 0 || segment.Number >= segment.Total {
		return fmt.Errorf("%w: segment %d of %d", ErrSegmentHeader, segment.Number, segment.Total)
	}

	if r.buf == nil {
		r.buf = make([]byte, segment.TotalSize)
		r.total = segment.Total
	}

	if segment.Total != r.total || segment.TotalSize != len(r.buf) {
		return fmt.Errorf("%w: conflicting totals", ErrSegmentHeader)
	}

	if r.received[segment.Number] {
		return nil
	}

	if segment.Offset+segment.Size > len(r.buf) {
		return ErrSegmentOverflow
	}

	copy(r.buf[segment.Offset:], segment.Payload)
	r.received[segment.Number] = true

	return nil
}

// Complete reports whether every expected segment has arrived.
func (r *Reassembly) Complete() bool {
	return r.total > 0 && len(r.received) == r.total
}

// Assembled returns the reassembled payload, or ErrIncomplete if any
// segment is still missing. A partially filled buffer is never handed
// to the payload parser.
func (r *Reassembly) Assembled() ([]byte, error) {
	if !r.Complete() {
		return nil, fmt.Errorf("%w: %d of %d", ErrIncomplete, len(r.received), r.total)
	}

	return r.buf, nil
}
