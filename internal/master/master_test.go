package master

import (
	"context"
	"net"
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zanlist/zanlist/internal/huffman"
	"github.com/zanlist/zanlist/internal/protocol"
)

func legacyListPacket(endpoints ...netip.AddrPort) []byte {
	writer := protocol.NewWriter().Long(protocol.MasterBeginServerList)
	for _, endpoint := range endpoints {
		addr := endpoint.Addr().As4()
		writer.Byte(protocol.MasterServer).Raw(addr[:]).Short(endpoint.Port())
	}

	return writer.Byte(protocol.MasterEndServerList).Bytes()
}

func partPacket(sequence byte, final bool, endpoints ...netip.AddrPort) []byte {
	writer := protocol.NewWriter().
		Long(protocol.MasterBeginServerListPart).
		Byte(sequence)

	for _, endpoint := range endpoints {
		addr := endpoint.Addr().As4()
		writer.Byte(protocol.MasterServerBlock).
			Byte(1).
			Raw(addr[:]).
			Short(endpoint.Port()).
			Byte(0)
	}

	if final {
		return writer.Byte(protocol.MasterEndServerList).Bytes()
	}

	return writer.Byte(protocol.MasterEndServerListPart).Bytes()
}

func mustEndpoint(t *testing.T, raw string) netip.AddrPort {
	t.Helper()

	endpoint, errParse := netip.ParseAddrPort(raw)
	require.NoError(t, errParse)

	return endpoint
}

func TestParseLegacyList(t *testing.T) {
	first := mustEndpoint(t, "192.0.2.1:10666")
	second := mustEndpoint(t, "198.51.100.7:10668")

	parsed, errParse := parsePage(legacyListPacket(first, second))
	require.NoError(t, errParse)
	require.True(t, parsed.final)
	require.Equal(t, []netip.AddrPort{first, second}, parsed.endpoints)
}

func TestParseErrorResponses(t *testing.T) {
	_, errBanned := parsePage(protocol.NewWriter().Long(protocol.MasterBanned).Bytes())
	require.ErrorIs(t, errBanned, protocol.ErrBanned)

	_, errVersion := parsePage(protocol.NewWriter().Long(protocol.MasterWrongVersion).Bytes())
	require.ErrorIs(t, errVersion, protocol.ErrWrongVersion)

	_, errIgnored := parsePage(protocol.NewWriter().Long(protocol.MasterRequestIgnored).Bytes())
	require.ErrorIs(t, errIgnored, protocol.ErrIgnored)

	_, errUnknown := parsePage(protocol.NewWriter().Long(999).Bytes())
	require.ErrorIs(t, errUnknown, protocol.ErrMalformed)
}

func TestPageSetOrderIndependence(t *testing.T) {
	endpoints := []netip.AddrPort{
		mustEndpoint(t, "192.0.2.1:10666"),
		mustEndpoint(t, "192.0.2.2:10666"),
		mustEndpoint(t, "192.0.2.3:10666"),
	}

	packets := [][]byte{
		partPacket(0, false, endpoints[0]),
		partPacket(1, false, endpoints[1]),
		partPacket(2, true, endpoints[2]),
	}

	for _, order := range [][]int{{0, 1, 2}, {2, 0, 1}, {1, 2, 0}} {
		pages := newPageSet()
		for _, index := range order {
			parsed, errParse := parsePage(packets[index])
			require.NoError(t, errParse)
			pages.add(parsed)
		}

		require.True(t, pages.complete())
		require.Equal(t, endpoints, pages.endpoints())
	}
}

func TestServerBlockLayout(t *testing.T) {
	// A block is repeating [portCount][4-byte IP][ports...] groups and
	// ends at a zero port count; the byte after the sentinel belongs to
	// the enclosing part again.
	block := protocol.NewWriter().
		Byte(2).
		Raw([]byte{192, 0, 2, 1}).
		Short(10666).
		Short(10667).
		Byte(1).
		Raw([]byte{198, 51, 100, 7}).
		Short(10668).
		Byte(0).
		Byte(protocol.MasterEndServerList).
		Bytes()

	reader := protocol.NewReader(block)
	endpoints, errBlock := readServerBlock(reader)
	require.NoError(t, errBlock)
	require.Equal(t, []netip.AddrPort{
		mustEndpoint(t, "192.0.2.1:10666"),
		mustEndpoint(t, "192.0.2.1:10667"),
		mustEndpoint(t, "198.51.100.7:10668"),
	}, endpoints)

	marker, errMarker := reader.Byte()
	require.NoError(t, errMarker)
	require.Equal(t, byte(protocol.MasterEndServerList), marker)
}

func TestPageSetIncompleteWithoutFinal(t *testing.T) {
	pages := newPageSet()
	parsed, errParse := parsePage(partPacket(0, false, mustEndpoint(t, "192.0.2.1:10666")))
	require.NoError(t, errParse)
	pages.add(parsed)
	require.False(t, pages.complete())
}

func TestPageSetDeduplicates(t *testing.T) {
	shared := mustEndpoint(t, "192.0.2.1:10666")

	pages := newPageSet()
	for index, packet := range [][]byte{partPacket(0, false, shared), partPacket(1, true, shared)} {
		parsed, errParse := parsePage(packet)
		require.NoError(t, errParse)
		require.Equal(t, index, parsed.sequence)
		pages.add(parsed)
	}

	require.Equal(t, []netip.AddrPort{shared}, pages.endpoints())
}

// fakeMaster answers one discovery request with the given encoded
// response packets and then exits.
func fakeMaster(t *testing.T, codec *huffman.Codec, packets ...[]byte) string {
	t.Helper()

	conn, errListen := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, errListen)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buffer := make([]byte, protocol.MaxDatagram)
		readLen, remote, errRead := conn.ReadFromUDP(buffer)
		if errRead != nil {
			return
		}

		request, errDecode := codec.Decode(buffer[:readLen])
		if errDecode != nil {
			return
		}

		reader := protocol.NewReader(request)
		challenge, _ := reader.Long()
		version, _ := reader.Short()
		if challenge != protocol.MasterChallenge || version != protocol.MasterVersion {
			return
		}

		for _, packet := range packets {
			_, _ = conn.WriteToUDP(codec.Encode(packet), remote)
		}
	}()

	return conn.LocalAddr().String()
}

func TestDiscoverLoopback(t *testing.T) {
	codec := huffman.New()
	want := []netip.AddrPort{
		mustEndpoint(t, "192.0.2.1:10666"),
		mustEndpoint(t, "192.0.2.2:10667"),
	}

	address := fakeMaster(t, codec, legacyListPacket(want...))
	client := NewClient(codec, Opts{Address: address, Timeout: 2 * time.Second, Attempts: 1})

	endpoints, errDiscover := client.Discover(context.Background())
	require.NoError(t, errDiscover)
	require.Equal(t, want, endpoints)
}

func TestDiscoverPaginatedOutOfOrder(t *testing.T) {
	codec := huffman.New()
	endpoints := []netip.AddrPort{
		mustEndpoint(t, "192.0.2.1:10666"),
		mustEndpoint(t, "192.0.2.2:10666"),
	}

	// Final part delivered first.
	address := fakeMaster(t, codec,
		partPacket(1, true, endpoints[1]),
		partPacket(0, false, endpoints[0]))
	client := NewClient(codec, Opts{Address: address, Timeout: 2 * time.Second, Attempts: 1})

	got, errDiscover := client.Discover(context.Background())
	require.NoError(t, errDiscover)
	require.Equal(t, endpoints, got)
}

func TestDiscoverBannedNotRetried(t *testing.T) {
	codec := huffman.New()
	address := fakeMaster(t, codec, protocol.NewWriter().Long(protocol.MasterBanned).Bytes())

	// Generous retry settings, a banned response must still fail fast.
	client := NewClient(codec, Opts{
		Address:    address,
		Timeout:    2 * time.Second,
		Attempts:   5,
		RetryDelay: time.Minute,
	})

	started := time.Now()
	_, errDiscover := client.Discover(context.Background())
	require.ErrorIs(t, errDiscover, protocol.ErrBanned)
	require.Less(t, time.Since(started), 10*time.Second)
}

func TestDiscoverTimeout(t *testing.T) {
	codec := huffman.New()
	address := fakeMaster(t, codec) // never answers

	client := NewClient(codec, Opts{
		Address:    address,
		Timeout:    100 * time.Millisecond,
		Attempts:   2,
		RetryDelay: 10 * time.Millisecond,
	})

	_, errDiscover := client.Discover(context.Background())
	require.ErrorIs(t, errDiscover, ErrDiscovery)
}
