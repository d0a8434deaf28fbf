package store

import (
	"context"
	"database/sql"
	"errors"
	"net/netip"
	"time"
)

// SavedServer is one persisted row of the known-server table.
type SavedServer struct {
	Endpoint netip.AddrPort
	Name     string
	Country  string
	Manual   bool
	Favorite bool
	LastSeen time.Time
}

// Servers reads and writes the persisted server table.
type Servers struct {
	db *sql.DB
}

func NewServers(db *sql.DB) Servers {
	return Servers{db: db}
}

// Upsert saves one server, replacing a previous row for the same
// endpoint. The endpoint is the identity key, exactly as in the live
// table.
func (s Servers) Upsert(ctx context.Context, server SavedServer) error {
	const stmt = `
		INSERT INTO server (address, name, country, manual, favorite, last_seen)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (address) DO UPDATE SET
			name = excluded.name,
			country = excluded.country,
			manual = excluded.manual,
			favorite = excluded.favorite,
			last_seen = excluded.last_seen`

	_, errExec := s.db.ExecContext(ctx, stmt, server.Endpoint.String(), server.Name,
		server.Country, server.Manual, server.Favorite, server.LastSeen.Unix())
	if errExec != nil {
		return errors.Join(errExec, ErrQuery)
	}

	return nil
}

// List returns every persisted server. Rows whose address no longer
// parses are skipped rather than failing the whole load.
func (s Servers) List(ctx context.Context) ([]SavedServer, error) {
	const stmt = `SELECT address, name, country, manual, favorite, last_seen FROM server ORDER BY address`

	rows, errQuery := s.db.QueryContext(ctx, stmt)
	if errQuery != nil {
		return nil, errors.Join(errQuery, ErrQuery)
	}
	defer rows.Close()

	var servers []SavedServer
	for rows.Next() {
		var (
			server   SavedServer
			address  string
			lastSeen int64
		)
		if errScan := rows.Scan(&address, &server.Name, &server.Country,
			&server.Manual, &server.Favorite, &lastSeen); errScan != nil {
			return nil, errors.Join(errScan, ErrQuery)
		}

		endpoint, errParse := netip.ParseAddrPort(address)
		if errParse != nil {
			continue
		}
		server.Endpoint = endpoint
		server.LastSeen = time.Unix(lastSeen, 0)
		servers = append(servers, server)
	}

	if errRows := rows.Err(); errRows != nil {
		return nil, errors.Join(errRows, ErrQuery)
	}

	return servers, nil
}

// Delete removes one persisted server.
func (s Servers) Delete(ctx context.Context, endpoint netip.AddrPort) error {
	if _, errExec := s.db.ExecContext(ctx, `DELETE FROM server WHERE address = ?`, endpoint.String()); errExec != nil {
		return errors.Join(errExec, ErrQuery)
	}

	return nil
}

// Prune drops every persisted server not present in keep. Removing a
// server from the live table must also forget the stored row, otherwise
// it comes back on the next start.
func (s Servers) Prune(ctx context.Context, keep []netip.AddrPort) error {
	kept := make(map[netip.AddrPort]bool, len(keep))
	for _, endpoint := range keep {
		kept[endpoint] = true
	}

	saved, errList := s.List(ctx)
	if errList != nil {
		return errList
	}

	for _, server := range saved {
		if kept[server.Endpoint] {
			continue
		}
		if errDelete := s.Delete(ctx, server.Endpoint); errDelete != nil {
			return errDelete
		}
	}

	return nil
}
