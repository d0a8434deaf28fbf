package master

import (
	"fmt"
	"net/netip"
	"sort"

	"github.com/zanlist/zanlist/internal/protocol"
)

// page is one decoded master response packet. Legacy single-packet
// responses parse as page zero with final set.
type page struct {
	sequence  int
	final     bool
	endpoints []netip.AddrPort
}

// parsePage decodes a single Huffman-decoded master packet.
func parsePage(payload []byte) (page, error) {
	reader := protocol.NewReader(payload)

	code, errCode := reader.Long()
	if errCode != nil {
		return page{}, errCode
	}

	switch code {
	case protocol.MasterBanned:
		return page{}, protocol.ErrBanned
	case protocol.MasterRequestIgnored:
		return page{}, protocol.ErrIgnored
	case protocol.MasterWrongVersion:
		return page{}, protocol.ErrWrongVersion
	case protocol.MasterBeginServerList:
		return parseLegacyList(reader)
	case protocol.MasterBeginServerListPart:
		return parsePart(reader)
	default:
		return page{}, fmt.Errorf("%w: unknown master response %d", protocol.ErrMalformed, code)
	}
}

// parseLegacyList handles the unpaginated format: a Server marker, four
// address bytes and a port per entry, closed by an EndServerList marker.
func parseLegacyList(reader *protocol.Reader) (page, error) {
	result := page{final: true}
	for {
		marker, errMarker := reader.Byte()
		if errMarker != nil {
			return page{}, errMarker
		}

		switch marker {
		case protocol.MasterEndServerList:
			return result, nil
		case protocol.MasterServer:
			endpoint, errEndpoint := readEndpoint(reader)
			if errEndpoint != nil {
				return page{}, errEndpoint
			}
			result.endpoints = append(result.endpoints, endpoint)
		default:
			return page{}, fmt.Errorf("%w: unexpected list marker %d", protocol.ErrMalformed, marker)
		}
	}
}

// parsePart handles one packet of a paginated response. The packet
// carries its sequence number, zero or more server blocks, and a
// trailing marker saying whether more parts follow.
func parsePart(reader *protocol.Reader) (page, error) {
	sequence, errSeq := reader.Byte()
	if errSeq != nil {
		return page{}, errSeq
	}

	result := page{sequence: int(sequence)}
	for {
		marker, errMarker := reader.Byte()
		if errMarker != nil {
			return page{}, errMarker
		}

		switch marker {
		case protocol.MasterServerBlock:
			endpoints, errBlock := readServerBlock(reader)
			if errBlock != nil {
				return page{}, errBlock
			}
			result.endpoints = append(result.endpoints, endpoints...)
		case protocol.MasterEndServerListPart:
			return result, nil
		case protocol.MasterEndServerList:
			result.final = true

			return result, nil
		default:
			return page{}, fmt.Errorf("%w: unexpected part marker %d", protocol.ErrMalformed, marker)
		}
	}
}

// readServerBlock decodes the packed groups of a server block. Each
// group is a port count, four address bytes and that many ports; a zero
// count closes the block.
func readServerBlock(reader *protocol.Reader) ([]netip.AddrPort, error) {
	var endpoints []netip.AddrPort
	for {
		count, errCount := reader.Byte()
		if errCount != nil {
			return nil, errCount
		}
		if count == 0 {
			return endpoints, nil
		}

		rawIP, errIP := reader.Bytes(4)
		if errIP != nil {
			return nil, errIP
		}
		addr := netip.AddrFrom4([4]byte(rawIP))

		for range count {
			port, errPort := reader.Short()
			if errPort != nil {
				return nil, errPort
			}
			endpoints = append(endpoints, netip.AddrPortFrom(addr, port))
		}
	}
}

func readEndpoint(reader *protocol.Reader) (netip.AddrPort, error) {
	rawIP, errIP := reader.Bytes(4)
	if errIP != nil {
		return netip.AddrPort{}, errIP
	}

	port, errPort := reader.Short()
	if errPort != nil {
		return netip.AddrPort{}, errPort
	}

	return netip.AddrPortFrom(netip.AddrFrom4([4]byte(rawIP)), port), nil
}

// pageSet buffers out-of-order parts until the terminal marker and every
// preceding sequence number have been observed.
type pageSet struct {
	pages    map[int]page
	finalSeq int
}

func newPageSet() *pageSet {
	return &pageSet{pages: map[int]page{}, finalSeq: -1}
}

func (s *pageSet) add(p page) {
	if _, seen := s.pages[p.sequence]; seen {
		return
	}

	s.pages[p.sequence] = p
	if p.final {
		s.finalSeq = p.sequence
	}
}

func (s *pageSet) complete() bool {
	if s.finalSeq < 0 {
		return false
	}

	for seq := 0; seq <= s.finalSeq; seq++ {
		if _, found := s.pages[seq]; !found {
			return false
		}
	}

	return true
}

// endpoints flattens the buffered pages in sequence order, dropping
// duplicates. Delivery order of the underlying packets does not affect
// the result.
func (s *pageSet) endpoints() []netip.AddrPort {
	sequences := make([]int, 0, len(s.pages))
	for seq := range s.pages {
		sequences = append(sequences, seq)
	}
	sort.Ints(sequences)

	var (
		out  []netip.AddrPort
		seen = map[netip.AddrPort]bool{}
	)
	for _, seq := range sequences {
		for _, endpoint := range s.pages[seq].endpoints {
			if seen[endpoint] {
				continue
			}
			seen[endpoint] = true
			out = append(out, endpoint)
		}
	}

	return out
}
