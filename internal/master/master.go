// Package master implements the UDP client that resolves the candidate
// server set from the master directory, including the paginated
// multi-packet response format.
package master

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/netip"
	"time"

	"github.com/zanlist/zanlist/internal/huffman"
	"github.com/zanlist/zanlist/internal/protocol"
)

var ErrDiscovery = errors.New("master discovery failed")

const (
	DefaultAttempts   = 3
	DefaultRetryDelay = time.Second
	DefaultTimeout    = 5 * time.Second
)

// Opts configures a master client. Zero values fall back to the
// package defaults.
type Opts struct {
	Address    string
	Timeout    time.Duration
	Attempts   int
	RetryDelay time.Duration
}

// Client queries the master directory. Safe for concurrent use, every
// Discover call runs on its own socket.
type Client struct {
	codec      *huffman.Codec
	address    string
	timeout    time.Duration
	attempts   int
	retryDelay time.Duration
}

func NewClient(codec *huffman.Codec, opts Opts) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}
	if opts.RetryDelay <= 0 {
		opts.RetryDelay = DefaultRetryDelay
	}

	return &Client{
		codec:      codec,
		address:    opts.Address,
		timeout:    opts.Timeout,
		attempts:   opts.Attempts,
		retryDelay: opts.RetryDelay,
	}
}

// Discover returns the full endpoint set known to the master. A lost or
// partially delivered response retries the whole exchange rather than
// accepting an incomplete set. Banned and wrong-version responses are
// surfaced immediately without further attempts.
func (c *Client) Discover(ctx context.Context) ([]netip.AddrPort, error) {
	var lastErr error
	for attempt := range c.attempts {
		if attempt > 0 {
			select {
			case <-time.After(c.retryDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		endpoints, errAttempt := c.discoverOnce(ctx)
		if errAttempt == nil {
			return endpoints, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if errors.Is(errAttempt, protocol.ErrBanned) ||
			errors.Is(errAttempt, protocol.ErrWrongVersion) ||
			errors.Is(errAttempt, protocol.ErrIgnored) {
			return nil, errAttempt
		}

		slog.Warn("Master discovery attempt failed", slog.Int("attempt", attempt+1),
			slog.String("error", errAttempt.Error()))
		lastErr = errAttempt
	}

	return nil, errors.Join(lastErr, ErrDiscovery)
}

func (c *Client) discoverOnce(ctx context.Context) ([]netip.AddrPort, error) {
	udpAddr, errResolve := net.ResolveUDPAddr("udp4", c.address)
	if errResolve != nil {
		return nil, errors.Join(errResolve, ErrDiscovery)
	}

	conn, errDial := net.DialUDP("udp4", nil, udpAddr)
	if errDial != nil {
		return nil, errors.Join(errDial, ErrDiscovery)
	}
	defer conn.Close()

	// Unblock the read loop if the caller gives up first.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	request := protocol.NewWriter().
		Long(protocol.MasterChallenge).
		Short(protocol.MasterVersion).
		Bytes()

	if _, errWrite := conn.Write(c.codec.Encode(request)); errWrite != nil {
		return nil, errors.Join(errWrite, ErrDiscovery)
	}

	if errDeadline := conn.SetReadDeadline(time.Now().Add(c.timeout)); errDeadline != nil {
		return nil, errors.Join(errDeadline, ErrDiscovery)
	}

	pages := newPageSet()
	buffer := make([]byte, protocol.MaxDatagram)
	for !pages.complete() {
		readLen, errRead := conn.Read(buffer)
		if errRead != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}

			var netErr net.Error
			if errors.As(errRead, &netErr) && netErr.Timeout() {
				return nil, protocol.ErrTimeout
			}

			return nil, errors.Join(errRead, ErrDiscovery)
		}

		payload, errDecode := c.codec.Decode(buffer[:readLen])
		if errDecode != nil {
			return nil, errors.Join(errDecode, protocol.ErrMalformed)
		}

		page, errPage := parsePage(payload)
		if errPage != nil {
			return nil, errPage
		}

		pages.add(page)
	}

	return pages.endpoints(), nil
}
