package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/aevon-lab/tally/internal/core/aggregation"
	corecfg "github.com/aevon-lab/tally/internal/core/config"
	"github.com/aevon-lab/tally/internal/ingestion"
	"github.com/aevon-lab/tally/internal/metrics"
	"github.com/aevon-lab/tally/internal/projection"
	"github.com/aevon-lab/tally/internal/report"
	"github.com/aevon-lab/tally/internal/server"
	"github.com/aevon-lab/tally/internal/worker"
)

const defaultConfigPath = "tally.yaml"

const usage = `Usage: tally [flags] [command]

Commands:
  run      generate the report once, or on output.interval until interrupted (default)
  serve    serve the HTTP API
  worker   consume ledgers from AMQP and publish reports

Flags:
`

func main() {
	configPath := flag.String("config", "", "Path to configuration file (default tally.yaml when present)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	command := "run"
	if flag.NArg() > 0 {
		command = flag.Arg(0)
	}

	// 0. Initialize Logger (replaced once the config is known)
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	// 1. Load Configuration
	cfg, err := corecfg.Load(resolveConfigPath(*configPath))
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	slog.SetDefault(newLogger(cfg.Log))
	slog.Debug("Loaded config", "config", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		err = runReport(ctx, cfg)
	case "serve":
		err = serve(ctx, cfg)
	case "worker":
		err = runWorker(ctx, cfg)
	default:
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		slog.Error("Stopped with error", "command", command, "error", err)
		os.Exit(1)
	}
	slog.Info("Shutdown complete", "command", command)
}

// runReport renders the report to output.path or stdout, once or on a schedule.
func runReport(ctx context.Context, cfg *corecfg.Config) error {
	svc, closeSource, err := newReportService(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer closeSource()

	sink, err := report.NewFileSink(cfg.Output.Path, cfg.Output.Format)
	if err != nil {
		return err
	}

	interval := cfg.Output.EffectiveInterval()
	if interval == 0 {
		res, err := svc.Generate(ctx)
		if err != nil {
			return err
		}
		return sink.Deliver(ctx, res)
	}

	return report.NewScheduler(interval, svc, sink.Deliver).Start(ctx)
}

// serve runs the HTTP API, plus the scheduler feeding /v1/snapshot when output.interval is set.
func serve(ctx context.Context, cfg *corecfg.Config) error {
	m := metrics.New()
	svc, closeSource, err := newReportService(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer closeSource()

	ingestionSvc := ingestion.NewService(svc, cfg.Server.MaxBodySizeMB)
	projectionSvc := projection.NewService(svc, requestTimeout)

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), svc, m, cfg.Server.Mode)
	ingestionSvc.RegisterRoutes(srv.Engine)
	projectionSvc.RegisterRoutes(srv.Engine)

	scheduler, err := newScheduler(cfg, svc, projectionSvc.Publish)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	if scheduler != nil {
		g.Go(func() error { return scheduler.Start(gctx) })
	}
	return g.Wait()
}

// newScheduler returns nil when periodic regeneration is off or there is no source to read.
// Every sink is built up front so a bad output setting fails before anything starts.
func newScheduler(cfg *corecfg.Config, svc *report.Service, publish report.Sink) (*report.Scheduler, error) {
	interval := cfg.Output.EffectiveInterval()
	if interval <= 0 || svc.SourceName() == "" {
		slog.Info("Report scheduler disabled", "interval", cfg.Output.Interval, "source", cfg.Source.Type)
		return nil, nil
	}

	sinks := []report.Sink{publish}
	if cfg.Output.Path != "" {
		fileSink, err := report.NewFileSink(cfg.Output.Path, cfg.Output.Format)
		if err != nil {
			return nil, fmt.Errorf("output sink: %w", err)
		}
		sinks = append(sinks, fileSink.Deliver)
	}
	return report.NewScheduler(interval, svc, fanOut(sinks...)), nil
}

// runWorker consumes ledgers from AMQP. /health and /metrics stay available on the server port.
func runWorker(ctx context.Context, cfg *corecfg.Config) error {
	if cfg.AMQP.URL == "" {
		return errors.New("amqp.url is required for the worker")
	}

	m := metrics.New()
	svc, closeSource, err := newReportService(ctx, cfg, m)
	if err != nil {
		return err
	}
	defer closeSource()

	srv := server.New(fmtAddr(cfg.Server.Host, cfg.Server.Port), svc, m, cfg.Server.Mode)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx) })
	g.Go(func() error {
		return worker.Run(gctx, cfg.AMQP.URL, worker.Config{
			Exchange:         cfg.AMQP.Exchange,
			Queue:            cfg.AMQP.Queue,
			RoutingKey:       cfg.AMQP.RoutingKey,
			ResultRoutingKey: cfg.AMQP.ResultRoutingKey,
			Prefetch:         cfg.AMQP.Prefetch,
		}, svc, m)
	})
	return g.Wait()
}

func newReportService(ctx context.Context, cfg *corecfg.Config, m *metrics.Metrics) (*report.Service, func(), error) {
	source, closeSource, err := newSource(ctx, cfg.Source)
	if err != nil {
		return nil, nil, err
	}

	engine, err := aggregation.NewEngine(cfg.Aggregation.Options(), cfg.Aggregation.Reports...)
	if err != nil {
		closeSource()
		return nil, nil, err
	}

	slog.Info("Report service initialized",
		"source", cfg.Source.Type,
		"reports", engine.Reports(),
		"strict_months", cfg.Aggregation.StrictMonths,
		"min_seed", engine.Options().MinSeed,
	)
	return report.NewService(source, engine, m), closeSource, nil
}

// fanOut delivers to every sink, returning the first error after trying them all.
func fanOut(sinks ...report.Sink) report.Sink {
	return func(ctx context.Context, res *report.Result) error {
		var errs []error
		for _, sink := range sinks {
			if err := sink(ctx, res); err != nil {
				errs = append(errs, err)
			}
		}
		return errors.Join(errs...)
	}
}

func newLogger(cfg corecfg.LogConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	// Logs go to stderr so a report on stdout stays machine readable.
	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func resolveConfigPath(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

func fmtAddr(host string, port int) string {
	return fmt.Sprintf("%s:%d", host, port)
}
