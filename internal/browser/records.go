package browser

import (
	"errors"
	"net/netip"
	"sort"
	"sync"
	"time"

	"github.com/zanlist/zanlist/internal/query"
)

var ErrRecordNotFound = errors.New("server record not found")

// ServerRecord is the live row of the server table for one endpoint.
// Records are created on first discovery, updated in place on every
// later query and removed only by explicit action. A failed query marks
// the record offline, it is never silently dropped.
type ServerRecord struct {
	Endpoint netip.AddrPort
	Info     query.ServerInfo
	Country  string
	Online   bool
	// Manual marks endpoints added by hand; they survive master
	// refreshes even when the master no longer lists them.
	Manual   bool
	Favorite bool
	// ConsecutiveFailures counts failed refresh cycles since the last
	// success. It only ever grows until a success resets it.
	ConsecutiveFailures int
	Refreshing          bool
	LastQueried         time.Time
}

// Table is the shared server table. The orchestrator is its single
// writer; readers receive value snapshots so a concurrent cycle can
// never expose a half-updated record.
type Table struct {
	mu      sync.RWMutex
	records map[netip.AddrPort]*ServerRecord
}

func NewTable() *Table {
	return &Table{records: map[netip.AddrPort]*ServerRecord{}}
}

// Ensure creates the record for endpoint if it does not exist yet and
// returns a snapshot of it. There is at most one record per endpoint.
func (t *Table) Ensure(endpoint netip.AddrPort) ServerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found := t.records[endpoint]
	if !found {
		record = &ServerRecord{Endpoint: endpoint}
		t.records[endpoint] = record
	}

	return *record
}

// Get returns a snapshot of one record.
func (t *Table) Get(endpoint netip.AddrPort) (ServerRecord, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	record, found := t.records[endpoint]
	if !found {
		return ServerRecord{}, ErrRecordNotFound
	}

	return *record, nil
}

// MarkRefreshing flags every given endpoint as pending, creating records
// for endpoints seen for the first time.
func (t *Table) MarkRefreshing(endpoints []netip.AddrPort) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, endpoint := range endpoints {
		record, found := t.records[endpoint]
		if !found {
			record = &ServerRecord{Endpoint: endpoint}
			t.records[endpoint] = record
		}
		record.Refreshing = true
	}
}

// ApplySuccess folds a fresh query result into the record. Any success
// resets the failure counter and puts the record back online.
func (t *Table) ApplySuccess(endpoint netip.AddrPort, info query.ServerInfo) ServerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found := t.records[endpoint]
	if !found {
		record = &ServerRecord{Endpoint: endpoint}
		t.records[endpoint] = record
	}

	if info.Country == "" {
		info.Country = record.Info.Country
	}
	record.Info = info
	if record.Country == "" {
		record.Country = info.Country
	}
	record.Online = true
	record.ConsecutiveFailures = 0
	record.Refreshing = false
	record.LastQueried = time.Now()

	return *record
}

// ApplyFailure increments the failure counter and flips the record
// offline once the counter passes threshold. The record itself stays.
func (t *Table) ApplyFailure(endpoint netip.AddrPort, threshold int) ServerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found := t.records[endpoint]
	if !found {
		record = &ServerRecord{Endpoint: endpoint}
		t.records[endpoint] = record
	}

	record.ConsecutiveFailures++
	record.Refreshing = false
	record.LastQueried = time.Now()
	if record.ConsecutiveFailures >= threshold {
		record.Online = false
	}

	return *record
}

// SetFlags adjusts the manual/favorite markers of a record, creating it
// when needed.
func (t *Table) SetFlags(endpoint netip.AddrPort, manual bool, favorite bool) ServerRecord {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found := t.records[endpoint]
	if !found {
		record = &ServerRecord{Endpoint: endpoint}
		t.records[endpoint] = record
	}
	record.Manual = record.Manual || manual
	record.Favorite = record.Favorite || favorite

	return *record
}

// SetCountry merges an asynchronously resolved country into a record.
// Missing records are ignored, the lookup pass is best effort.
func (t *Table) SetCountry(endpoint netip.AddrPort, country string) (ServerRecord, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	record, found := t.records[endpoint]
	if !found || country == "" {
		return ServerRecord{}, false
	}
	record.Country = country

	return *record, true
}

// Remove deletes a record. This is the only way a record ever leaves the
// table.
func (t *Table) Remove(endpoint netip.AddrPort) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.records, endpoint)
}

// Snapshot returns value copies of every record, ordered by endpoint for
// stable rendering.
func (t *Table) Snapshot() []ServerRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()

	records := make([]ServerRecord, 0, len(t.records))
	for _, record := range t.records {
		records = append(records, *record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].Endpoint.String() < records[j].Endpoint.String()
	})

	return records
}

// Priority returns the endpoints that are queried ahead of the master
// list: favorites and manual entries.
func (t *Table) Priority() []netip.AddrPort {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var endpoints []netip.AddrPort
	for endpoint, record := range t.records {
		if record.Manual || record.Favorite {
			endpoints = append(endpoints, endpoint)
		}
	}
	sort.Slice(endpoints, func(i, j int) bool {
		return endpoints[i].String() < endpoints[j].String()
	})

	return endpoints
}
