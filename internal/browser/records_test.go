package browser

import (
	"net/netip"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zanlist/zanlist/internal/query"
)

func TestFailureCounterAndOfflineThreshold(t *testing.T) {
	const threshold = 3

	table := NewTable()
	endpoint := netip.MustParseAddrPort("192.0.2.1:10666")

	record := table.ApplySuccess(endpoint, query.ServerInfo{Name: "up"})
	require.True(t, record.Online)
	require.Zero(t, record.ConsecutiveFailures)

	// Two failures leave the record online, the third flips it.
	record = table.ApplyFailure(endpoint, threshold)
	require.True(t, record.Online)
	require.Equal(t, 1, record.ConsecutiveFailures)

	record = table.ApplyFailure(endpoint, threshold)
	require.True(t, record.Online)

	record = table.ApplyFailure(endpoint, threshold)
	require.False(t, record.Online)
	require.Equal(t, 3, record.ConsecutiveFailures)

	// The record is still present; failure never deletes.
	kept, errGet := table.Get(endpoint)
	require.NoError(t, errGet)
	require.False(t, kept.Online)

	// Any success resets the counter and restores online state.
	record = table.ApplySuccess(endpoint, query.ServerInfo{Name: "back"})
	require.True(t, record.Online)
	require.Zero(t, record.ConsecutiveFailures)
}

func TestRemoveIsTheOnlyDeletionPath(t *testing.T) {
	table := NewTable()
	endpoint := netip.MustParseAddrPort("192.0.2.1:10666")

	table.SetFlags(endpoint, true, false)
	for range 10 {
		table.ApplyFailure(endpoint, 3)
	}
	_, errGet := table.Get(endpoint)
	require.NoError(t, errGet)

	table.Remove(endpoint)
	_, errGone := table.Get(endpoint)
	require.ErrorIs(t, errGone, ErrRecordNotFound)
}

func TestEnsureIsIdempotent(t *testing.T) {
	table := NewTable()
	endpoint := netip.MustParseAddrPort("192.0.2.1:10666")

	table.ApplySuccess(endpoint, query.ServerInfo{Name: "original"})
	record := table.Ensure(endpoint)
	require.Equal(t, "original", record.Info.Name)
	require.Len(t, table.Snapshot(), 1)
}

func TestPriorityListsManualAndFavorites(t *testing.T) {
	table := NewTable()
	manual := netip.MustParseAddrPort("192.0.2.1:10666")
	favorite := netip.MustParseAddrPort("192.0.2.2:10666")
	discovered := netip.MustParseAddrPort("192.0.2.3:10666")

	table.SetFlags(manual, true, false)
	table.SetFlags(favorite, false, true)
	table.Ensure(discovered)

	priority := table.Priority()
	require.Equal(t, []netip.AddrPort{manual, favorite}, priority)
}

func TestSetCountryMergesBestEffort(t *testing.T) {
	table := NewTable()
	endpoint := netip.MustParseAddrPort("192.0.2.1:10666")

	_, changed := table.SetCountry(endpoint, "DE")
	require.False(t, changed)

	table.ApplySuccess(endpoint, query.ServerInfo{})
	record, changed := table.SetCountry(endpoint, "DE")
	require.True(t, changed)
	require.Equal(t, "DE", record.Country)
}

func TestBroadcasterFiltersByType(t *testing.T) {
	broadcaster := NewBroadcaster()

	progress := make(chan Event, 4)
	everything := make(chan Event, 4)
	broadcaster.ListenFor(ProgressChanged, progress)
	broadcaster.ListenFor(Any, everything)

	broadcaster.Send(Event{Type: CycleStarted})
	broadcaster.Send(Event{Type: ProgressChanged, Progress: Progress{Done: 1, Total: 2}})

	require.Len(t, progress, 1)
	require.Len(t, everything, 2)
}

func TestProgressPercent(t *testing.T) {
	require.Equal(t, 100, Progress{}.Percent())
	require.Equal(t, 50, Progress{Done: 1, Total: 2}.Percent())
	require.Equal(t, 100, Progress{Done: 5, Total: 2}.Percent())
}
