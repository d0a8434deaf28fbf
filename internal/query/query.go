// Package query implements the UDP client that fetches rich state from a
// single game server, including segmented response reassembly and the
// flag-gated payload parser.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/zanlist/zanlist/internal/huffman"
	"github.com/zanlist/zanlist/internal/protocol"
)

var ErrQuery = errors.New("server query failed")

const DefaultTimeout = 3 * time.Second

// Opts configures a server query client.
type Opts struct {
	Timeout  time.Duration
	Flags    uint32
	ExtFlags uint32
	// Segmentation is the preference byte of the request, one of the
	// protocol.Segment* values.
	Segmentation byte
}

// Client queries individual game servers. Safe for concurrent use, each
// Query runs on its own socket.
type Client struct {
	codec        *huffman.Codec
	timeout      time.Duration
	flags        uint32
	extFlags     uint32
	segmentation byte
}

func NewClient(codec *huffman.Codec, opts Opts) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Flags == 0 {
		opts.Flags = DefaultFlags
	}
	if opts.ExtFlags == 0 {
		opts.ExtFlags = DefaultExtFlags
	}

	return &Client{
		codec:        codec,
		timeout:      opts.Timeout,
		flags:        opts.Flags,
		extFlags:     opts.ExtFlags,
		segmentation: opts.Segmentation,
	}
}

// buildRequest assembles the query payload before Huffman framing.
func (c *Client) buildRequest() []byte {
	writer := protocol.NewWriter().
		Long(protocol.LauncherChallenge).
		Long(c.flags).
		Long(uint32(time.Now().UnixMilli())) //nolint:gosec

	// The legacy launcher always writes the extended flags field, even
	// when the extended-info bit is clear. Peers depend on the fixed
	// request length, so this stays unconditional.
	writer.Long(c.extFlags)
	writer.Byte(c.segmentation)

	return writer.Bytes()
}

// Query fetches the state of one server. It performs a single exchange;
// retry policy lives with the caller.
func (c *Client) Query(ctx context.Context, endpoint netip.AddrPort) (ServerInfo, error) {
	conn, errDial := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(endpoint))
	if errDial != nil {
		return ServerInfo{}, errors.Join(errDial, ErrQuery)
	}
	defer conn.Close()

	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	started := time.Now()
	if _, errWrite := conn.Write(c.codec.Encode(c.buildRequest())); errWrite != nil {
		return ServerInfo{}, errors.Join(errWrite, ErrQuery)
	}

	if errDeadline := conn.SetReadDeadline(time.Now().Add(c.timeout)); errDeadline != nil {
		return ServerInfo{}, errors.Join(errDeadline, ErrQuery)
	}

	var (
		reassembly *protocol.Reassembly
		buffer     = make([]byte, protocol.MaxDatagram)
	)
	for {
		readLen, errRead := conn.Read(buffer)
		if errRead != nil {
			if ctx.Err() != nil {
				return ServerInfo{}, ctx.Err()
			}

			var netErr net.Error
			if errors.As(errRead, &netErr) && netErr.Timeout() {
				if reassembly != nil {
					// Some segments arrived but the response never
					// completed. Report it rather than parsing a short
					// buffer.
					return ServerInfo{}, errors.Join(protocol.ErrIncomplete, protocol.ErrTimeout)
				}

				return ServerInfo{}, protocol.ErrTimeout
			}

			return ServerInfo{}, errors.Join(errRead, ErrQuery)
		}

		payload, errDecode := c.codec.Decode(buffer[:readLen])
		if errDecode != nil {
			return ServerInfo{}, errors.Join(errDecode, protocol.ErrMalformed)
		}

		reader := protocol.NewReader(payload)
		code, errCode := reader.Long()
		if errCode != nil {
			return ServerInfo{}, errCode
		}

		switch code {
		case protocol.ServerBanned:
			return ServerInfo{}, protocol.ErrBanned
		case protocol.ServerWait:
			return ServerInfo{}, protocol.ErrIgnored
		case protocol.ServerGood:
			rest, errRest := reader.Bytes(reader.Remaining())
			if errRest != nil {
				return ServerInfo{}, errRest
			}

			return c.finish(rest, started)
		case protocol.ServerSegmented:
			segment, errSegment := protocol.ParseSegment(reader)
			if errSegment != nil {
				return ServerInfo{}, errSegment
			}
			if reassembly == nil {
				reassembly = protocol.NewReassembly()
			}
			if errAdd := reassembly.Add(segment); errAdd != nil {
				return ServerInfo{}, errAdd
			}
			if !reassembly.Complete() {
				continue
			}

			assembled, errAssembled := reassembly.Assembled()
			if errAssembled != nil {
				return ServerInfo{}, errAssembled
			}

			return c.finish(assembled, started)
		default:
			return ServerInfo{}, fmt.Errorf("%w: unknown response code %d", protocol.ErrMalformed, code)
		}
	}
}

func (c *Client) finish(payload []byte, started time.Time) (ServerInfo, error) {
	info, errParse := parseInfo(payload)
	if errParse != nil {
		return ServerInfo{}, errParse
	}

	info.Ping = time.Since(started)

	return info, nil
}

// Result is the terminal outcome of one endpoint's query.
type Result struct {
	Endpoint netip.AddrPort
	Info     ServerInfo
	Err      error
}

// QueryMany fans queries out over a bounded worker pool and streams each
// result as it completes. One endpoint's failure never blocks or cancels
// the others; exactly one result is emitted per endpoint. maxConcurrent
// of zero or less means unbounded.
func (c *Client) QueryMany(ctx context.Context, endpoints []netip.AddrPort, maxConcurrent int) <-chan Result {
	results := make(chan Result)

	go func() {
		defer close(results)

		group, groupCtx := errgroup.WithContext(ctx)
		if maxConcurrent > 0 {
			group.SetLimit(maxConcurrent)
		}

		for _, endpoint := range endpoints {
			group.Go(func() error {
				info, errInfo := c.Query(groupCtx, endpoint)
				select {
				case results <- Result{Endpoint: endpoint, Info: info, Err: errInfo}:
				case <-groupCtx.Done():
				}

				// Failures are per-endpoint results, never group errors.
				return nil
			})
		}

		if errWait := group.Wait(); errWait != nil {
			slog.Error("query pool wait failed", slog.String("error", errWait.Error()))
		}
	}()

	return results
}
