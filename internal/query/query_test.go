package query

import (
	"context"
	"net"
	"net/netip"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zanlist/zanlist/internal/huffman"
	"github.com/zanlist/zanlist/internal/protocol"
)

func testPayload(name string) []byte {
	return protocol.NewWriter().
		Long(42).
		String("3.2").
		Long(FlagName | FlagMapName | FlagMaxClients).
		String(name).
		String("map01").
		Byte(16).
		Bytes()
}

// fakeServer answers every incoming query with the given pre-encoded
// response packets until the test finishes.
func fakeServer(t *testing.T, codec *huffman.Codec, respond func(request []byte) [][]byte) netip.AddrPort {
	t.Helper()

	conn, errListen := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	require.NoError(t, errListen)
	t.Cleanup(func() { _ = conn.Close() })

	go func() {
		buffer := make([]byte, protocol.MaxDatagram)
		for {
			readLen, remote, errRead := conn.ReadFromUDP(buffer)
			if errRead != nil {
				return
			}

			request, errDecode := codec.Decode(buffer[:readLen])
			if errDecode != nil {
				continue
			}

			for _, packet := range respond(request) {
				_, _ = conn.WriteToUDP(codec.Encode(packet), remote)
			}
		}
	}()

	return netip.MustParseAddrPort(conn.LocalAddr().String())
}

func goodResponse(payload []byte) []byte {
	return protocol.NewWriter().Long(protocol.ServerGood).Raw(payload).Bytes()
}

func segmentedResponse(payload []byte, sizes []int) [][]byte {
	packets := make([][]byte, 0, len(sizes))
	offset := 0
	for i, size := range sizes {
		packets = append(packets, protocol.NewWriter().
			Long(protocol.ServerSegmented).
			Byte(byte(i)).
			Byte(byte(len(sizes))).
			Short(uint16(offset)).
			Short(uint16(size)).
			Short(uint16(len(payload))).
			Raw(payload[offset:offset+size]).
			Bytes())
		offset += size
	}

	return packets
}

func TestBuildRequestFixedLength(t *testing.T) {
	client := NewClient(huffman.New(), Opts{})
	request := client.buildRequest()

	// challenge + flags + timestamp + extended flags + segmentation
	// preference. The extended flags field is always present.
	require.Len(t, request, 17)

	reader := protocol.NewReader(request)
	challenge, errChallenge := reader.Long()
	require.NoError(t, errChallenge)
	require.Equal(t, uint32(protocol.LauncherChallenge), challenge)

	flags, errFlags := reader.Long()
	require.NoError(t, errFlags)
	require.Equal(t, uint32(DefaultFlags), flags)
}

func TestQueryLoopback(t *testing.T) {
	codec := huffman.New()
	endpoint := fakeServer(t, codec, func(request []byte) [][]byte {
		reader := protocol.NewReader(request)
		challenge, _ := reader.Long()
		if challenge != protocol.LauncherChallenge {
			return nil
		}

		return [][]byte{goodResponse(testPayload("Loopback FFA"))}
	})

	client := NewClient(codec, Opts{Timeout: 2 * time.Second})
	info, errQuery := client.Query(context.Background(), endpoint)
	require.NoError(t, errQuery)
	require.Equal(t, "Loopback FFA", info.Name)
	require.Equal(t, "map01", info.MapName)
	require.Equal(t, 16, info.MaxClients)
	require.Positive(t, info.Ping)
}

func TestQuerySegmentedOutOfOrder(t *testing.T) {
	codec := huffman.New()
	payload := testPayload("Segmented Server")

	half := len(payload) / 2
	packets := segmentedResponse(payload, []int{half, len(payload) - half})
	// Deliver the trailing segment first.
	packets[0], packets[1] = packets[1], packets[0]

	endpoint := fakeServer(t, codec, func([]byte) [][]byte { return packets })

	client := NewClient(codec, Opts{Timeout: 2 * time.Second})
	info, errQuery := client.Query(context.Background(), endpoint)
	require.NoError(t, errQuery)
	require.Equal(t, "Segmented Server", info.Name)
}

func TestQueryIncompleteSegments(t *testing.T) {
	codec := huffman.New()
	payload := testPayload("Half Delivered")
	packets := segmentedResponse(payload, []int{10, len(payload) - 10})

	// Only the first of two segments ever arrives.
	endpoint := fakeServer(t, codec, func([]byte) [][]byte { return packets[:1] })

	client := NewClient(codec, Opts{Timeout: 200 * time.Millisecond})
	_, errQuery := client.Query(context.Background(), endpoint)
	require.ErrorIs(t, errQuery, protocol.ErrIncomplete)
	require.ErrorIs(t, errQuery, protocol.ErrTimeout)
}

func TestQueryBanned(t *testing.T) {
	codec := huffman.New()
	endpoint := fakeServer(t, codec, func([]byte) [][]byte {
		return [][]byte{protocol.NewWriter().Long(protocol.ServerBanned).Bytes()}
	})

	client := NewClient(codec, Opts{Timeout: 2 * time.Second})
	_, errQuery := client.Query(context.Background(), endpoint)
	require.ErrorIs(t, errQuery, protocol.ErrBanned)
}

func TestQueryFloodProtected(t *testing.T) {
	codec := huffman.New()
	endpoint := fakeServer(t, codec, func([]byte) [][]byte {
		return [][]byte{protocol.NewWriter().Long(protocol.ServerWait).Bytes()}
	})

	client := NewClient(codec, Opts{Timeout: 2 * time.Second})
	_, errQuery := client.Query(context.Background(), endpoint)
	require.ErrorIs(t, errQuery, protocol.ErrIgnored)
}

func TestQueryManyOneResultPerEndpoint(t *testing.T) {
	const (
		serverCount   = 20
		maxConcurrent = 5
	)

	var (
		codec   = huffman.New()
		active  atomic.Int64
		peak    atomic.Int64
		targets []netip.AddrPort
	)

	for range serverCount {
		endpoint := fakeServer(t, codec, func([]byte) [][]byte {
			current := active.Add(1)
			for {
				seen := peak.Load()
				if current <= seen || peak.CompareAndSwap(seen, current) {
					break
				}
			}
			time.Sleep(30 * time.Millisecond)
			active.Add(-1)

			return [][]byte{goodResponse(testPayload("pooled"))}
		})
		targets = append(targets, endpoint)
	}

	// One dead endpoint mixed in; its timeout must not block the rest.
	dead := netip.MustParseAddrPort("127.0.0.1:1")
	targets = append(targets, dead)

	client := NewClient(codec, Opts{Timeout: 500 * time.Millisecond})
	seen := map[netip.AddrPort]int{}
	for result := range client.QueryMany(context.Background(), targets, maxConcurrent) {
		seen[result.Endpoint]++
		if result.Endpoint == dead {
			require.Error(t, result.Err)
		} else {
			require.NoError(t, result.Err)
			require.Equal(t, "pooled", result.Info.Name)
		}
	}

	require.Len(t, seen, serverCount+1)
	for endpoint, count := range seen {
		require.Equal(t, 1, count, endpoint.String())
	}
	require.LessOrEqual(t, peak.Load(), int64(maxConcurrent))
}

func TestQueryManyCancellation(t *testing.T) {
	codec := huffman.New()
	client := NewClient(codec, Opts{Timeout: 5 * time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := client.QueryMany(ctx, []netip.AddrPort{netip.MustParseAddrPort("127.0.0.1:1")}, 2)
	for range results { //nolint:revive
	}
}
