package protocol_test

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zanlist/zanlist/internal/protocol"
)

func buildSegments(t *testing.T, payload []byte, sizes []int) []protocol.Segment {
	t.Helper()

	segments := make([]protocol.Segment, 0, len(sizes))
	offset := 0
	for i, size := range sizes {
		segments = append(segments, protocol.Segment{
			Number:    i,
			Total:     len(sizes),
			Offset:    offset,
			Size:      size,
			TotalSize: len(payload),
			Payload:   payload[offset : offset+size],
		})
		offset += size
	}
	require.Equal(t, len(payload), offset)

	return segments
}

func TestReassemblyOrderIndependence(t *testing.T) {
	rng := rand.New(rand.NewSource(740)) //nolint:gosec
	payload := make([]byte, 740)
	for i := range payload {
		payload[i] = byte(rng.Intn(256))
	}

	segments := buildSegments(t, payload, []int{200, 200, 200, 140})

	for _, order := range [][]int{{0, 1, 2, 3}, {3, 2, 1, 0}, {2, 0, 3, 1}, {1, 3, 0, 2}} {
		reassembly := protocol.NewReassembly()
		for _, index := range order {
			require.NoError(t, reassembly.Add(segments[index]))
		}
		require.True(t, reassembly.Complete())

		assembled, errAssembled := reassembly.Assembled()
		require.NoError(t, errAssembled)
		require.Equal(t, payload, assembled)
	}
}

func TestReassemblyDuplicateSegments(t *testing.T) {
	payload := []byte("duplicate segments are harmless")
	segments := buildSegments(t, payload, []int{10, 10, 11})

	reassembly := protocol.NewReassembly()
	for _, segment := range segments {
		require.NoError(t, reassembly.Add(segment))
		require.NoError(t, reassembly.Add(segment))
	}

	assembled, errAssembled := reassembly.Assembled()
	require.NoError(t, errAssembled)
	require.Equal(t, payload, assembled)
}

func TestReassemblyIncomplete(t *testing.T) {
	payload := make([]byte, 740)
	segments := buildSegments(t, payload, []int{200, 200, 200, 140})

	reassembly := protocol.NewReassembly()
	require.NoError(t, reassembly.Add(segments[0]))
	require.NoError(t, reassembly.Add(segments[2]))
	require.False(t, reassembly.Complete())

	_, errAssembled := reassembly.Assembled()
	require.ErrorIs(t, errAssembled, protocol.ErrIncomplete)
}

func TestReassemblyRejectsOverflow(t *testing.T) {
	reassembly := protocol.NewReassembly()
	err := reassembly.Add(protocol.Segment{
		Number:    0,
		Total:     2,
		Offset:    90,
		Size:      20,
		TotalSize: 100,
		Payload:   make([]byte, 20),
	})
	require.ErrorIs(t, err, protocol.ErrSegmentOverflow)
}

func TestSegmentHeaderRoundTrip(t *testing.T) {
	// The high bit of the segment number is reserved and must be
	// masked off.
	wire := protocol.NewWriter().
		Byte(0x82).
		Byte(4).
		Short(400).
		Short(5).
		Short(740).
		Raw([]byte("hello")).
		Bytes()

	segment, errParse := protocol.ParseSegment(protocol.NewReader(wire))
	require.NoError(t, errParse)
	require.Equal(t, 2, segment.Number)
	require.Equal(t, 4, segment.Total)
	require.Equal(t, 400, segment.Offset)
	require.Equal(t, 5, segment.Size)
	require.Equal(t, 740, segment.TotalSize)
	require.Equal(t, []byte("hello"), segment.Payload)
}

func TestReaderMalformed(t *testing.T) {
	reader := protocol.NewReader([]byte{0x01, 0x02})
	_, errLong := reader.Long()
	require.ErrorIs(t, errLong, protocol.ErrMalformed)

	reader = protocol.NewReader([]byte("unterminated"))
	_, errString := reader.String()
	require.ErrorIs(t, errString, protocol.ErrMalformed)
}
