// Package browser coordinates refresh cycles: endpoint sourcing from the
// master plus manual and favorite entries, bounded-concurrency fan-out
// of per-server queries, retry and offline accounting, and the event
// stream consumed by whatever front end sits on top.
package browser

import (
	"context"
	"errors"
	"log/slog"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/zanlist/zanlist/internal/master"
	"github.com/zanlist/zanlist/internal/protocol"
	"github.com/zanlist/zanlist/internal/query"
)

var ErrCycleRunning = errors.New("a refresh cycle is already running")

// CountryResolver is the external collaborator that maps addresses to
// country codes. Lookups are batched, best effort and must never block a
// refresh cycle.
type CountryResolver interface {
	Resolve(ctx context.Context, addrs []netip.Addr) map[netip.Addr]string
}

// Opts carries the refresh policy supplied by the configuration layer.
type Opts struct {
	// MaxConcurrent bounds in-flight per-server queries, zero means
	// unbounded.
	MaxConcurrent int
	// QueryInterval is the minimum delay between dispatching new
	// queries, guarding against anti-flood defenses.
	QueryInterval time.Duration
	// Attempts and RetryDelay drive per-server retry before a query
	// counts as one cycle failure.
	Attempts   int
	RetryDelay time.Duration
	// OfflineThreshold is the consecutive-failure count at which a
	// record flips offline.
	OfflineThreshold int
	Manual           []netip.AddrPort
	Favorites        []netip.AddrPort
}

const (
	DefaultOfflineThreshold = 3
	DefaultAttempts         = 2
)

// Browser owns the server table and runs refresh cycles against it. The
// cycle methods are mutually exclusive; commands and snapshots may be
// used concurrently.
type Browser struct {
	masterClient *master.Client
	queryClient  *query.Client
	table        *Table
	events       *Broadcaster
	countries    CountryResolver
	opts         Opts

	mu        sync.Mutex
	state     CycleState
	cancel    context.CancelFunc
	countryWG sync.WaitGroup
}

func New(masterClient *master.Client, queryClient *query.Client, countries CountryResolver, opts Opts) *Browser {
	if opts.OfflineThreshold <= 0 {
		opts.OfflineThreshold = DefaultOfflineThreshold
	}
	if opts.Attempts <= 0 {
		opts.Attempts = DefaultAttempts
	}

	browser := &Browser{
		masterClient: masterClient,
		queryClient:  queryClient,
		table:        NewTable(),
		events:       NewBroadcaster(),
		countries:    countries,
		opts:         opts,
	}

	for _, endpoint := range opts.Manual {
		browser.table.SetFlags(endpoint, true, false)
	}
	for _, endpoint := range opts.Favorites {
		browser.table.SetFlags(endpoint, false, true)
	}

	return browser
}

// Events exposes the lifecycle/change stream.
func (b *Browser) Events() *Broadcaster {
	return b.events
}

// Table exposes the live server table for readers.
func (b *Browser) Table() *Table {
	return b.table
}

// State reports the current cycle state.
func (b *Browser) State() CycleState {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.state
}

// AddManual registers a hand-entered endpoint. It participates in every
// future cycle until explicitly removed.
func (b *Browser) AddManual(endpoint netip.AddrPort) ServerRecord {
	return b.table.SetFlags(endpoint, true, false)
}

// AddFavorite registers a favorite endpoint.
func (b *Browser) AddFavorite(endpoint netip.AddrPort) ServerRecord {
	return b.table.SetFlags(endpoint, false, true)
}

// RemoveServer drops a record. Explicit removal is the only deletion
// path in the system.
func (b *Browser) RemoveServer(endpoint netip.AddrPort) {
	b.table.Remove(endpoint)
}

// Cancel aborts the running cycle, if any. In-flight queries are
// abandoned; results that already resolved stay in the table.
func (b *Browser) Cancel() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
	}
}

// RefreshAll runs a full cycle: master discovery, then queries against
// the union of discovered, manual and favorite endpoints.
func (b *Browser) RefreshAll(ctx context.Context) (Summary, error) {
	return b.refresh(ctx, false)
}

// RefreshFavorites skips master discovery and queries only the pinned
// endpoints.
func (b *Browser) RefreshFavorites(ctx context.Context) (Summary, error) {
	return b.refresh(ctx, true)
}

// RefreshSingle re-queries one endpoint outside a full cycle, with the
// same retry and offline accounting.
func (b *Browser) RefreshSingle(ctx context.Context, endpoint netip.AddrPort) (ServerRecord, error) {
	b.table.MarkRefreshing([]netip.AddrPort{endpoint})
	record := b.queryOne(ctx, endpoint)
	b.resolveCountries(ctx)

	if !record.Online && ctx.Err() != nil {
		return record, ctx.Err()
	}

	return record, nil
}

func (b *Browser) begin(ctx context.Context, initial CycleState) (context.Context, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		return nil, ErrCycleRunning
	}

	cycleCtx, cancel := context.WithCancel(ctx)
	b.cancel = cancel
	b.state = initial

	return cycleCtx, nil
}

func (b *Browser) setState(state CycleState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = state
}

func (b *Browser) finish(state CycleState) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.cancel != nil {
		b.cancel()
		b.cancel = nil
	}
	b.state = state
}

func (b *Browser) refresh(ctx context.Context, favoritesOnly bool) (Summary, error) {
	initial := FetchingMaster
	if favoritesOnly {
		// A favorites-only cycle never talks to the master.
		initial = QueryingServers
	}

	cycleCtx, errBegin := b.begin(ctx, initial)
	if errBegin != nil {
		return Summary{}, errBegin
	}

	b.events.Send(Event{Type: CycleStarted})

	worklist, errWorklist := b.buildWorklist(cycleCtx, favoritesOnly)
	if errWorklist != nil {
		summary := Summary{State: Failed, Err: errWorklist}
		if errors.Is(errWorklist, context.Canceled) {
			summary.State = Cancelled
			summary.Err = nil
		}
		b.finish(summary.State)
		b.events.Send(Event{Type: CycleFinished, Summary: summary})

		return summary, errWorklist
	}

	b.setState(QueryingServers)
	b.table.MarkRefreshing(worklist)

	summary := b.queryWorklist(cycleCtx, worklist)

	b.finish(summary.State)
	b.events.Send(Event{Type: CycleFinished, Summary: summary})

	// The lookup pass runs against the parent context on purpose: it
	// belongs to no cycle and must never block one.
	b.resolveCountries(ctx)

	return summary, nil
}

// buildWorklist assembles the endpoint list for one cycle. Favorites and
// manual entries come first so they resolve before the long tail of the
// master list; master-discovered endpoints follow, deduplicated. Manual
// entries are kept even when the master no longer lists them.
func (b *Browser) buildWorklist(ctx context.Context, favoritesOnly bool) ([]netip.AddrPort, error) {
	worklist := b.table.Priority()
	if favoritesOnly {
		return worklist, nil
	}

	discovered, errDiscover := b.masterClient.Discover(ctx)
	if errDiscover != nil {
		return nil, errDiscover
	}

	slog.Debug("Master discovery finished", slog.Int("servers", len(discovered)))

	seen := make(map[netip.AddrPort]bool, len(worklist))
	for _, endpoint := range worklist {
		seen[endpoint] = true
	}
	for _, endpoint := range discovered {
		if seen[endpoint] {
			continue
		}
		seen[endpoint] = true
		worklist = append(worklist, endpoint)
	}

	return worklist, nil
}

func (b *Browser) queryWorklist(ctx context.Context, worklist []netip.AddrPort) Summary {
	var (
		succeeded atomic.Int64
		done      atomic.Int64
		total     = len(worklist)
	)

	var limiter *rate.Limiter
	if b.opts.QueryInterval > 0 {
		limiter = rate.NewLimiter(rate.Every(b.opts.QueryInterval), 1)
	}

	group, groupCtx := errgroup.WithContext(ctx)
	if b.opts.MaxConcurrent > 0 {
		group.SetLimit(b.opts.MaxConcurrent)
	}

	for _, endpoint := range worklist {
		if limiter != nil {
			if errWait := limiter.Wait(ctx); errWait != nil {
				break
			}
		}
		if ctx.Err() != nil {
			break
		}

		group.Go(func() error {
			record := b.queryOne(groupCtx, endpoint)
			if record.Online {
				succeeded.Add(1)
			}
			current := int(done.Add(1))
			b.events.Send(Event{
				Type:     ProgressChanged,
				Progress: Progress{Done: current, Total: total},
			})

			return nil
		})
	}

	_ = group.Wait()

	summary := Summary{
		State:     Completed,
		Queried:   int(done.Load()),
		Succeeded: int(succeeded.Load()),
	}
	summary.Failures = summary.Queried - summary.Succeeded
	if ctx.Err() != nil {
		summary.State = Cancelled
	}

	return summary
}

// queryOne runs the per-server retry loop and folds the terminal outcome
// into the table. Exhausting retries counts as a single cycle failure.
func (b *Browser) queryOne(ctx context.Context, endpoint netip.AddrPort) ServerRecord {
	var lastErr error
	for attempt := range b.opts.Attempts {
		if attempt > 0 {
			select {
			case <-time.After(b.opts.RetryDelay):
			case <-ctx.Done():
			}
		}
		if ctx.Err() != nil {
			break
		}

		info, errQuery := b.queryClient.Query(ctx, endpoint)
		if errQuery == nil {
			record := b.table.ApplySuccess(endpoint, info)
			b.events.Send(Event{Type: ServerUpdated, Record: record})

			return record
		}

		lastErr = errQuery
		if errors.Is(errQuery, protocol.ErrBanned) {
			break
		}
	}

	if ctx.Err() != nil {
		// Abandoned, not failed: the record keeps its previous state and
		// the failure counter is untouched.
		record, errRecord := b.table.Get(endpoint)
		if errRecord != nil {
			record = b.table.Ensure(endpoint)
		}

		return record
	}

	if lastErr != nil {
		slog.Debug("Server query failed", slog.String("endpoint", endpoint.String()),
			slog.String("error", lastErr.Error()))
	}

	record := b.table.ApplyFailure(endpoint, b.opts.OfflineThreshold)
	b.events.Send(Event{Type: ServerUpdated, Record: record})

	return record
}

// resolveCountries launches the best-effort batched country lookup for
// records that still miss one. Results merge back asynchronously; the
// pass can neither block nor fail a refresh.
func (b *Browser) resolveCountries(ctx context.Context) {
	if b.countries == nil {
		return
	}

	var pending []netip.Addr
	seen := map[netip.Addr]bool{}
	for _, record := range b.table.Snapshot() {
		if record.Country != "" || !record.Online {
			continue
		}
		addr := record.Endpoint.Addr()
		if !seen[addr] {
			seen[addr] = true
			pending = append(pending, addr)
		}
	}
	if len(pending) == 0 {
		return
	}

	b.countryWG.Add(1)
	go func() {
		defer b.countryWG.Done()

		resolved := b.countries.Resolve(ctx, pending)
		for _, record := range b.table.Snapshot() {
			country, found := resolved[record.Endpoint.Addr()]
			if !found {
				continue
			}
			if updated, changed := b.table.SetCountry(record.Endpoint, country); changed {
				b.events.Send(Event{Type: ServerUpdated, Record: updated})
			}
		}
	}()
}

// WaitCountries blocks until pending country merges land. Intended for
// shutdown and tests.
func (b *Browser) WaitCountries() {
	b.countryWG.Wait()
}
