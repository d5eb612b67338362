package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	corecfg "github.com/aevon-lab/tally/internal/core/config"
	"github.com/aevon-lab/tally/internal/report"
)

func TestFanOut(t *testing.T) {
	var calls []string
	ok := func(name string) report.Sink {
		return func(context.Context, *report.Result) error {
			calls = append(calls, name)
			return nil
		}
	}
	failing := func(context.Context, *report.Result) error {
		calls = append(calls, "failing")
		return errors.New("disk full")
	}

	err := fanOut(ok("first"), failing, ok("last"))(context.Background(), &report.Result{})
	require.EqualError(t, err, "disk full")
	require.Equal(t, []string{"first", "failing", "last"}, calls)
}

func TestNewSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sales.txt")
	require.NoError(t, os.WriteFile(path, []byte("Date,SKU,Unit Price,Quantity,Total Price\n2024-01-15,SKU1,10,2,20\n"), 0o644))

	source, closeSource, err := newSource(context.Background(), corecfg.SourceConfig{
		Type: corecfg.SourceFile,
		File: corecfg.FileConfig{Path: path, Delimiter: ","},
	})
	require.NoError(t, err)
	defer closeSource()

	records, err := source.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, "file", source.Name())

	none, closeNone, err := newSource(context.Background(), corecfg.SourceConfig{Type: corecfg.SourceNone})
	require.NoError(t, err)
	closeNone()
	require.Nil(t, none)

	_, _, err = newSource(context.Background(), corecfg.SourceConfig{Type: "ftp"})
	require.Error(t, err)
}

func TestRunReport_Once(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "sales.txt")
	outPath := filepath.Join(dir, "report.json")
	require.NoError(t, os.WriteFile(ledgerPath, []byte("Date,SKU,Unit Price,Quantity,Total Price\n2024-01-15,SKU1,10,2,20\n2024-01-20,SKU2,5,10,50\n"), 0o644))

	cfg := &corecfg.Config{
		Source:      corecfg.SourceConfig{Type: corecfg.SourceFile, File: corecfg.FileConfig{Path: ledgerPath}},
		Aggregation: corecfg.AggregationConfig{Reports: []string{"total_sales"}},
		Output:      corecfg.OutputConfig{Format: corecfg.OutputJSON, Path: outPath},
	}
	require.NoError(t, runReport(context.Background(), cfg))

	b, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Contains(t, string(b), `"totalSales": 70`)
}

func TestNewScheduler(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "sales.txt")
	require.NoError(t, os.WriteFile(ledgerPath, []byte("Date,SKU,Unit Price,Quantity,Total Price\n2024-01-15,SKU1,10,2,20\n"), 0o644))
	fileSource := corecfg.SourceConfig{Type: corecfg.SourceFile, File: corecfg.FileConfig{Path: ledgerPath}}
	publish := func(context.Context, *report.Result) error { return nil }

	tests := []struct {
		name    string
		source  corecfg.SourceConfig
		output  corecfg.OutputConfig
		enabled bool
		wantErr bool
	}{
		{name: "no interval", source: fileSource, output: corecfg.OutputConfig{Format: corecfg.OutputJSON}},
		{name: "no source", source: corecfg.SourceConfig{Type: corecfg.SourceNone}, output: corecfg.OutputConfig{Interval: "1m"}},
		{name: "publish only", source: fileSource, output: corecfg.OutputConfig{Interval: "1m"}, enabled: true},
		{name: "file sink", source: fileSource, output: corecfg.OutputConfig{Interval: "1m", Format: corecfg.OutputJSON, Path: filepath.Join(dir, "out.json")}, enabled: true},
		{name: "bad format", source: fileSource, output: corecfg.OutputConfig{Interval: "1m", Format: "pdf", Path: filepath.Join(dir, "out.pdf")}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &corecfg.Config{Source: tt.source, Output: tt.output}
			svc, closeSource, err := newReportService(context.Background(), cfg, nil)
			require.NoError(t, err)
			defer closeSource()

			scheduler, err := newScheduler(cfg, svc, publish)
			if tt.wantErr {
				require.Error(t, err)
				require.Nil(t, scheduler)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.enabled, scheduler != nil)
		})
	}
}

func TestServe_BadOutputFailsBeforeStarting(t *testing.T) {
	dir := t.TempDir()
	ledgerPath := filepath.Join(dir, "sales.txt")
	require.NoError(t, os.WriteFile(ledgerPath, []byte("Date,SKU,Unit Price,Quantity,Total Price\n2024-01-15,SKU1,10,2,20\n"), 0o644))

	cfg := &corecfg.Config{
		Source: corecfg.SourceConfig{Type: corecfg.SourceFile, File: corecfg.FileConfig{Path: ledgerPath}},
		Output: corecfg.OutputConfig{Interval: "1m", Format: "pdf", Path: filepath.Join(dir, "out.pdf")},
		Server: corecfg.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: "release"},
	}

	done := make(chan error, 1)
	go func() { done <- serve(context.Background(), cfg) }()

	select {
	case err := <-done:
		require.ErrorContains(t, err, "output sink")
	case <-time.After(5 * time.Second):
		t.Fatal("serve kept running with an unusable output sink")
	}
}

func TestNewLogger(t *testing.T) {
	logger := newLogger(corecfg.LogConfig{Level: "warn", Format: "json"})
	require.True(t, logger.Enabled(context.Background(), slog.LevelWarn))
	require.False(t, logger.Enabled(context.Background(), slog.LevelInfo))
}
