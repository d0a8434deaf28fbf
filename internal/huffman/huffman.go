// Package huffman implements the bit-level frame codec used by the
// launcher protocol. The tree shape, the bit-reversal convention and the
// raw marker byte are all inherited from the legacy peer implementation
// and must interoperate with it byte for byte.
package huffman

import (
	"container/heap"
	"errors"
)

// rawMarker prefixes a frame whose payload did not shrink under
// compression and is carried verbatim instead. It can never collide with
// a compressed frame because the leading padding byte is always 0-7.
const rawMarker = 0xFF

var (
	ErrTruncated = errors.New("truncated huffman stream")
	ErrPadding   = errors.New("invalid padding byte")
)

type node struct {
	weight   float64
	value    int // byte value for leaves, -1 otherwise
	order    int // insertion order, breaks weight ties deterministically
	children [2]*node
}

type nodeHeap []*node

func (h nodeHeap) Len() int { return len(h) }

func (h nodeHeap) Less(i, j int) bool {
	if h[i].weight != h[j].weight {
		return h[i].weight < h[j].weight
	}

	return h[i].order < h[j].order
}

func (h nodeHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *nodeHeap) Push(x any) { *h = append(*h, x.(*node)) } //nolint:forcetypeassert

func (h *nodeHeap) Pop() any {
	old := *h
	last := old[len(old)-1]
	*h = old[:len(old)-1]

	return last
}

type code struct {
	bits   uint32
	length int
}

// Codec encodes and decodes launcher frames against the fixed tree. It
// is stateless after construction and safe for concurrent use.
type Codec struct {
	root    *node
	codes   [256]code
	reverse [256]byte
}

// New builds the codec from the fixed weight table. The same table on
// both peers yields the same tree, which is the entire compatibility
// story of this codec.
func New() *Codec {
	codec := &Codec{}

	nodes := make(nodeHeap, 0, 256)
	for value, weight := range weights {
		nodes = append(nodes, &node{weight: weight, value: value, order: value})
	}
	heap.Init(&nodes)

	order := 256
	for nodes.Len() > 1 {
		left := heap.Pop(&nodes).(*node)  //nolint:forcetypeassert
		right := heap.Pop(&nodes).(*node) //nolint:forcetypeassert
		heap.Push(&nodes, &node{
			weight:   left.weight + right.weight,
			value:    -1,
			order:    order,
			children: [2]*node{left, right},
		})
		order++
	}

	codec.root = nodes[0]
	codec.walk(codec.root, 0, 0)

	// Legacy endianness convention: every payload byte on the wire has
	// its bits reversed. Do not clean this up.
	for i := range 256 {
		var flipped byte
		for bit := range 8 {
			if i&(1<<bit) != 0 {
				flipped |= 1 << (7 - bit)
			}
		}
		codec.reverse[i] = flipped
	}

	return codec
}

func (c *Codec) walk(current *node, bits uint32, depth int) {
	if current.value >= 0 {
		c.codes[current.value] = code{bits: bits, length: depth}

		return
	}

	c.walk(current.children[0], bits<<1, depth+1)
	c.walk(current.children[1], bits<<1|1, depth+1)
}

// Encode produces the wire frame for payload. When the bit-packed form
// would be as large as or larger than the input, the frame is the raw
// marker followed by the payload unmodified; otherwise it is a padding
// count byte (unused trailing bits in the final byte, 0-7) followed by
// the packed codes.
func (c *Codec) Encode(payload []byte) []byte {
	totalBits := 0
	for _, value := range payload {
		totalBits += c.codes[value].length
	}

	packedLen := (totalBits + 7) / 8
	if packedLen >= len(payload) {
		out := make([]byte, 0, len(payload)+1)
		out = append(out, rawMarker)

		return append(out, payload...)
	}

	out := make([]byte, 1+packedLen)
	bitPos := 0
	for _, value := range payload {
		sym := c.codes[value]
		for i := sym.length - 1; i >= 0; i-- {
			if sym.bits&(1<<i) != 0 {
				out[1+bitPos/8] |= 1 << (7 - bitPos%8)
			}
			bitPos++
		}
	}

	out[0] = byte(packedLen*8 - totalBits)
	for i := 1; i < len(out); i++ {
		out[i] = c.reverse[out[i]]
	}

	return out
}

// Decode recovers the payload from a wire frame. A raw marker frame
// returns the remainder untouched. A compressed frame is walked bit by
// bit through the fixed tree; falling off the end of the input before a
// leaf resolves, or a padding byte outside 0-7, is a malformed stream.
func (c *Codec) Decode(frame []byte) ([]byte, error) {
	if len(frame) == 0 {
		return nil, ErrTruncated
	}

	if frame[0] == rawMarker {
		return frame[1:], nil
	}

	padding := int(frame[0])
	if padding > 7 {
		return nil, ErrPadding
	}

	body := frame[1:]
	totalBits := len(body)*8 - padding
	if totalBits < 0 {
		return nil, ErrTruncated
	}

	var out []byte
	current := c.root
	for bitPos := 0; bitPos < totalBits; bitPos++ {
		value := c.reverse[body[bitPos/8]]
		bit := (value >> (7 - bitPos%8)) & 1
		current = current.children[bit]
		if current == nil {
			return nil, ErrTruncated
		}
		if current.value >= 0 {
			out = append(out, byte(current.value))
			current = c.root
		}
	}

	if current != c.root {
		return nil, ErrTruncated
	}

	return out, nil
}
