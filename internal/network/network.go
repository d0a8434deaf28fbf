// Package network holds the HTTP side channels of the browser,
// currently the web-based country lookup used when no local geoip
// database is configured.
package network

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"time"

	"github.com/zanlist/zanlist/internal/network/encoding"
)

var ErrCountryQuery = errors.New("failed to query country api")

const (
	DefaultCountryURL = "http://ip-api.com/batch?fields=countryCode,query"
	// The batch endpoint caps one request at 100 entries.
	batchSize = 100
)

// httpClientV4 creates a http client only capable of speaking ipv4.
// Game servers on this protocol are v4 only, so the lookup side matches.
func httpClientV4() *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			DialContext: func(ctx context.Context, _ string, addr string) (net.Conn, error) {
				return (&net.Dialer{}).DialContext(ctx, "tcp4", addr)
			},
			TLSHandshakeTimeout:   10 * time.Second,
			ResponseHeaderTimeout: 10 * time.Second,
			ExpectContinueTimeout: 6 * time.Second,
		},
	}
}

type countryEntry struct {
	CountryCode string `json:"countryCode"`
	Query       string `json:"query"`
}

// WebResolver resolves countries through a public batch lookup API. It
// satisfies the browser's CountryResolver and is the fallback collaborator
// when no mmdb file is configured.
type WebResolver struct {
	client *http.Client
	url    string
}

func NewWebResolver(url string) *WebResolver {
	if url == "" {
		url = DefaultCountryURL
	}

	return &WebResolver{client: httpClientV4(), url: url}
}

// Resolve maps addresses to country codes, best effort. Failed batches
// are logged and skipped, never surfaced.
func (w *WebResolver) Resolve(ctx context.Context, addrs []netip.Addr) map[netip.Addr]string {
	resolved := map[netip.Addr]string{}
	for start := 0; start < len(addrs); start += batchSize {
		end := min(start+batchSize, len(addrs))
		if err := w.resolveBatch(ctx, addrs[start:end], resolved); err != nil {
			slog.Warn("Country batch lookup failed", slog.String("error", err.Error()))

			return resolved
		}
	}

	return resolved
}

func (w *WebResolver) resolveBatch(ctx context.Context, addrs []netip.Addr, resolved map[netip.Addr]string) error {
	queries := make([]string, 0, len(addrs))
	for _, addr := range addrs {
		queries = append(queries, addr.String())
	}

	body, errBody := json.Marshal(queries)
	if errBody != nil {
		return errors.Join(errBody, ErrCountryQuery)
	}

	req, errReq := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
	if errReq != nil {
		return errors.Join(errReq, ErrCountryQuery)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, errResp := w.client.Do(req)
	if errResp != nil {
		return errors.Join(errResp, ErrCountryQuery)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			slog.Error("failed to close response body", slog.String("error", err.Error()))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return ErrCountryQuery
	}

	entries, errEntries := encoding.UnmarshalJSON[[]countryEntry](resp.Body)
	if errEntries != nil {
		return errors.Join(errEntries, ErrCountryQuery)
	}

	for _, entry := range entries {
		addr, errAddr := netip.ParseAddr(entry.Query)
		if errAddr != nil || entry.CountryCode == "" {
			continue
		}
		resolved[addr] = entry.CountryCode
	}

	return nil
}
