package main

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	corecfg "github.com/aevon-lab/tally/internal/core/config"
	"github.com/aevon-lab/tally/internal/core/storage"
	"github.com/aevon-lab/tally/internal/core/storage/database"
	"github.com/aevon-lab/tally/internal/core/storage/sheets"
	"github.com/aevon-lab/tally/internal/migrations"
)

// requestTimeout bounds one on-demand report run over the configured source.
const requestTimeout = 30 * time.Second

// newSource builds the configured record source. The returned func releases it.
func newSource(ctx context.Context, cfg corecfg.SourceConfig) (storage.RecordSource, func(), error) {
	noop := func() {}

	switch cfg.Type {
	case corecfg.SourceNone:
		return nil, noop, nil

	case corecfg.SourceFile:
		return storage.NewFileSource(cfg.File.Path, cfg.File.LedgerOptions()), noop, nil

	case corecfg.SourceDatabase:
		db := cfg.Database
		adapter, err := database.NewAdapter(database.Options{
			Driver:       db.Driver,
			DSN:          db.DSN,
			Table:        db.Table,
			MaxOpenConns: db.MaxOpenConns,
			MaxIdleConns: db.MaxIdleConns,
			Migrate: func(conn *sql.DB) error {
				return migrations.RunMigrations(conn, db.Driver, db.AutoMigrate)
			},
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize database source: %w", err)
		}
		return adapter, func() { adapter.Close() }, nil

	case corecfg.SourceSheets:
		sh := cfg.Sheets
		client, err := sheets.New(ctx, sheets.Options{
			SpreadsheetID:   sh.SpreadsheetID,
			Range:           sh.Range,
			CredentialsFile: sh.CredentialsFile,
			CredentialsJSON: sh.CredentialsJSON,
		})
		if err != nil {
			return nil, nil, fmt.Errorf("initialize sheets source: %w", err)
		}
		return client, noop, nil

	default:
		return nil, nil, fmt.Errorf("unsupported source type %q", cfg.Type)
	}
}
