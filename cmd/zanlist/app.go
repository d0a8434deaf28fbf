package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/netip"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"

	"github.com/zanlist/zanlist/internal/browser"
	"github.com/zanlist/zanlist/internal/config"
	"github.com/zanlist/zanlist/internal/geoip"
	"github.com/zanlist/zanlist/internal/huffman"
	"github.com/zanlist/zanlist/internal/master"
	"github.com/zanlist/zanlist/internal/network"
	"github.com/zanlist/zanlist/internal/query"
	"github.com/zanlist/zanlist/internal/store"
)

// App wires the protocol clients, the orchestrator and the persistence
// layer together for one CLI invocation.
type App struct {
	conf     config.Config
	browser  *browser.Browser
	servers  store.Servers
	database *sql.DB
	geo      *geoip.Resolver
}

func NewApp(ctx context.Context, conf config.Config) (*App, error) {
	codec := huffman.New()

	masterClient := master.NewClient(codec, master.Opts{
		Address:    conf.MasterAddress,
		Timeout:    conf.MasterTimeout(),
		Attempts:   conf.MasterAttempts,
		RetryDelay: conf.MasterRetryDelay(),
	})
	queryClient := query.NewClient(codec, query.Opts{Timeout: conf.QueryTimeout()})

	var countries browser.CountryResolver

	geo, errGeo := geoip.New(conf.GeoIPPath)
	if errGeo != nil {
		return nil, errGeo
	}
	if conf.GeoIPPath != "" {
		countries = geo
	} else {
		countries = network.NewWebResolver(conf.CountryAPIURL)
	}

	browse := browser.New(masterClient, queryClient, countries, browser.Opts{
		MaxConcurrent:    conf.MaxConcurrent,
		QueryInterval:    conf.QueryInterval(),
		Attempts:         conf.QueryAttempts,
		RetryDelay:       conf.QueryRetryDelay(),
		OfflineThreshold: conf.OfflineThreshold,
		Manual:           conf.ManualEndpoints(),
		Favorites:        conf.FavoriteEndpoints(),
	})

	database, errDB := store.Open(ctx, conf.DBPath, true)
	if errDB != nil {
		return nil, errDB
	}

	app := &App{
		conf:     conf,
		browser:  browse,
		servers:  store.NewServers(database),
		database: database,
		geo:      geo,
	}
	app.restoreSaved(ctx)

	return app, nil
}

func (app *App) Close() {
	if err := app.geo.Close(); err != nil {
		slog.Error("Error closing geoip database", slog.String("error", err.Error()))
	}
	if err := app.database.Close(); err != nil {
		slog.Error("Error closing database", slog.String("error", err.Error()))
	}
}

// restoreSaved seeds the live table with servers remembered from
// previous sessions so manual entries and favorites survive restarts.
func (app *App) restoreSaved(ctx context.Context) {
	saved, errList := app.servers.List(ctx)
	if errList != nil {
		slog.Warn("Failed to load saved servers", slog.String("error", errList.Error()))

		return
	}

	for _, server := range saved {
		if server.Manual {
			app.browser.AddManual(server.Endpoint)
		}
		if server.Favorite {
			app.browser.AddFavorite(server.Endpoint)
		}
	}
}

// Run performs one refresh cycle and renders the resulting table.
func (app *App) Run(ctx context.Context, favoritesOnly bool) error {
	events := make(chan browser.Event, 64)
	app.browser.Events().ListenFor(browser.ProgressChanged, events)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for event := range events {
			slog.Debug("Refresh progress",
				slog.Int("done", event.Progress.Done),
				slog.Int("total", event.Progress.Total),
				slog.Int("percent", event.Progress.Percent()))
		}
	}()

	var (
		summary browser.Summary
		errRun  error
	)
	if favoritesOnly {
		summary, errRun = app.browser.RefreshFavorites(ctx)
	} else {
		summary, errRun = app.browser.RefreshAll(ctx)
	}
	if errRun != nil {
		return errRun
	}

	app.browser.WaitCountries()
	close(events)
	<-done

	app.persist(ctx)
	app.render(summary)

	return nil
}

// persist writes the rows worth remembering back to the store and
// prunes rows for servers that were removed from the live table.
func (app *App) persist(ctx context.Context) {
	var kept []netip.AddrPort
	for _, record := range app.browser.Table().Snapshot() {
		if !record.Manual && !record.Favorite {
			continue
		}

		saved := store.SavedServer{
			Endpoint: record.Endpoint,
			Name:     record.Info.Name,
			Country:  record.Country,
			Manual:   record.Manual,
			Favorite: record.Favorite,
			LastSeen: record.LastQueried,
		}
		if errUpsert := app.servers.Upsert(ctx, saved); errUpsert != nil {
			slog.Warn("Failed to persist server", slog.String("endpoint", record.Endpoint.String()),
				slog.String("error", errUpsert.Error()))

			continue
		}
		kept = append(kept, record.Endpoint)
	}

	if errPrune := app.servers.Prune(ctx, kept); errPrune != nil {
		slog.Warn("Failed to prune removed servers", slog.String("error", errPrune.Error()))
	}
}

func (app *App) render(summary browser.Summary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Name", "Address", "Map", "Players", "Ping", "Country", "Status"})
	table.SetBorder(false)

	for _, record := range app.browser.Table().Snapshot() {
		status := "online"
		if !record.Online {
			status = "offline"
			if !record.LastQueried.IsZero() {
				status = "offline " + humanize.Time(record.LastQueried)
			}
		}

		players := fmt.Sprintf("%d/%d", record.Info.PlayerCount(), record.Info.MaxClients)
		if bots := record.Info.BotCount(); bots > 0 {
			players += fmt.Sprintf(" (%d bots)", bots)
		}
		if spectators := record.Info.SpectatorCount(); spectators > 0 {
			players += fmt.Sprintf(" (%d spec)", spectators)
		}

		ping := ""
		if record.Online {
			ping = strconv.FormatInt(record.Info.Ping.Milliseconds(), 10) + "ms"
		}

		table.Append([]string{
			record.Info.Name,
			record.Endpoint.String(),
			record.Info.MapName,
			players,
			ping,
			record.Country,
			status,
		})
	}

	table.Render()

	fmt.Printf("\n%d servers queried, %d online, %d failed in state %q\n", //nolint:forbidigo
		summary.Queried, summary.Succeeded, summary.Failures, summary.State.String())
}
