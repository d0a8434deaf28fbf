package store_test

import (
	"net/netip"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/zanlist/zanlist/internal/store"
	_ "modernc.org/sqlite"
)

func TestServersRoundTrip(t *testing.T) {
	db, errOpen := store.Open(t.Context(), "", true)
	require.NoError(t, errOpen)
	t.Cleanup(func() { _ = db.Close() })

	servers := store.NewServers(db)

	endpoint := netip.MustParseAddrPort("192.0.2.10:10666")
	saved := store.SavedServer{
		Endpoint: endpoint,
		Name:     "FFA 24/7",
		Country:  "DE",
		Favorite: true,
		LastSeen: time.Unix(1700000000, 0),
	}
	require.NoError(t, servers.Upsert(t.Context(), saved))

	// Upsert on the same endpoint replaces, never duplicates.
	saved.Name = "FFA 24/7 - new maps"
	saved.Manual = true
	require.NoError(t, servers.Upsert(t.Context(), saved))

	listed, errList := servers.List(t.Context())
	require.NoError(t, errList)
	require.Len(t, listed, 1)
	require.Equal(t, saved, listed[0])

	require.NoError(t, servers.Delete(t.Context(), endpoint))
	listed, errList = servers.List(t.Context())
	require.NoError(t, errList)
	require.Empty(t, listed)
}

func TestServersPrune(t *testing.T) {
	db, errOpen := store.Open(t.Context(), "", true)
	require.NoError(t, errOpen)
	t.Cleanup(func() { _ = db.Close() })

	servers := store.NewServers(db)

	kept := netip.MustParseAddrPort("192.0.2.1:10666")
	removed := netip.MustParseAddrPort("192.0.2.2:10666")
	require.NoError(t, servers.Upsert(t.Context(), store.SavedServer{Endpoint: kept, Manual: true}))
	require.NoError(t, servers.Upsert(t.Context(), store.SavedServer{Endpoint: removed, Favorite: true}))

	// A server dropped from the live table must not come back on the
	// next start.
	require.NoError(t, servers.Prune(t.Context(), []netip.AddrPort{kept}))

	listed, errList := servers.List(t.Context())
	require.NoError(t, errList)
	require.Len(t, listed, 1)
	require.Equal(t, kept, listed[0].Endpoint)
}
