package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	_ "github.com/mattn/go-sqlite3"

	"github.com/lifeos-tools/attache/calendar"
	"github.com/lifeos-tools/attache/calendar/caldav"
	"github.com/lifeos-tools/attache/calendar/google"
	"github.com/lifeos-tools/attache/internal"
	"github.com/lifeos-tools/attache/internal/aggregator"
	"github.com/lifeos-tools/attache/internal/avail"
	"github.com/lifeos-tools/attache/internal/briefing"
	"github.com/lifeos-tools/attache/internal/civil"
	"github.com/lifeos-tools/attache/internal/config"
	"github.com/lifeos-tools/attache/internal/dispatch"
	"github.com/lifeos-tools/attache/internal/resolver"
	"github.com/lifeos-tools/attache/internal/sqlite"
)

// app is the wired pipeline behind every command that talks to the
// calendars. Commands that only need the local database (configure,
// history) call openStorage directly instead.
type app struct {
	cfg     *config.Config
	zone    *civil.Zone
	storage *sqlite.Storage
	handler *dispatch.Handler

	db *sql.DB
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if dbPath != "" {
		cfg.Database = dbPath
	}

	zone, err := civil.LoadZone(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(sqlite.DriverName, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", cfg.Database, err)
	}
	storage := sqlite.NewStorage(db)

	sources, err := cfg.SourceList(func(accountID string) (*internal.Account, error) {
		return storage.Account(ctx, accountID)
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	mux := calendar.NewMux()
	mux.Register(internal.PlatformCalDAV, caldav.NewClient(zone.Location(), logger))
	if hasPlatform(sources, internal.PlatformGoogle) {
		credJSON, err := os.ReadFile(googleCred)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("reading google credentials: %w", err)
		}
		gcli, err := google.NewClient(credJSON, zone.Location(), logger)
		if err != nil {
			db.Close()
			return nil, err
		}
		mux.Register(internal.PlatformGoogle, gcli)
	}

	agg := aggregator.New(mux, sources, zone, aggregator.DefaultSourceTimeout, logger)
	res := resolver.New(agg, mux, sources, zone, storage, logger)

	composer := briefing.NewComposer(zone)
	composer.Budget = cfg.Briefing.Budget

	hours := avail.Bounds{StartHour: cfg.Hours.Start, EndHour: cfg.Hours.End}

	return &app{
		cfg:     cfg,
		zone:    zone,
		storage: storage,
		handler: dispatch.New(agg, res, composer, zone, hours, sources, logger),
		db:      db,
	}, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

func hasPlatform(sources []*internal.Source, platform string) bool {
	for _, src := range sources {
		if src.Platform == platform {
			return true
		}
	}
	return false
}

// openStorage opens the local database without requiring a config
// file, so configure can run before one exists. Resolution order for
// the path: --db flag, then the config file if readable, then the
// default.
func openStorage() (*sqlite.Storage, func() error, error) {
	path := dbPath
	if path == "" {
		if cfg, err := config.Load(configPath); err == nil {
			path = cfg.Database
		} else {
			path = config.DefaultDatabase
		}
	}
	db, err := sql.Open(sqlite.DriverName, path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return sqlite.NewStorage(db), db.Close, nil
}
