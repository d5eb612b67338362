// Package report drives report runs: load a ledger, run the aggregation engine, render the result.
package report

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
	"github.com/aevon-lab/tally/internal/core/aggregation"
	"github.com/aevon-lab/tally/internal/core/storage"
	"github.com/aevon-lab/tally/internal/metrics"
)

// ErrLoadFailed marks a run that could not read its ledger from the record source.
var ErrLoadFailed = errors.New("load ledger")

// Result is one completed report run.
type Result struct {
	RunID       string               `json:"run_id" yaml:"run_id"`
	GeneratedAt time.Time            `json:"generated_at" yaml:"generated_at"`
	Source      string               `json:"source" yaml:"source"`
	Records     int                  `json:"records" yaml:"records"`
	Reports     []string             `json:"reports" yaml:"reports"`
	Summary     *aggregation.Summary `json:"summary" yaml:"summary"`
}

// Service runs the configured reports over a record source or over records handed to it.
// It keeps no state between runs and is safe for concurrent use.
type Service struct {
	source  storage.RecordSource
	engine  *aggregation.Engine
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewService wires a report service. source may be nil when only ad hoc ledgers are reported on.
// m may be nil to disable metrics.
func NewService(source storage.RecordSource, engine *aggregation.Engine, m *metrics.Metrics) *Service {
	return &Service{source: source, engine: engine, metrics: m, now: time.Now}
}

// Engine returns the default engine of the service.
func (s *Service) Engine() *aggregation.Engine {
	return s.engine
}

// Generate loads the ledger from the configured source and runs every configured report.
func (s *Service) Generate(ctx context.Context) (*Result, error) {
	return s.GenerateSelected(ctx, nil)
}

// GenerateSelected is Generate restricted to the named reports. No names means the configured set.
func (s *Service) GenerateSelected(ctx context.Context, reports []string) (*Result, error) {
	if s.source == nil {
		return nil, storage.ErrNoSource
	}

	engine, err := s.engineFor(reports)
	if err != nil {
		return nil, err
	}

	start := s.now()
	records, err := s.source.Load(ctx)
	if err != nil {
		s.observe(s.source.Name(), start, 0, err)
		return nil, fmt.Errorf("%w from %s: %w", ErrLoadFailed, s.source.Name(), err)
	}
	return s.run(engine, s.source.Name(), records, start)
}

// Compute runs the named reports (or the configured set) over records supplied by the caller.
// source labels the result, e.g. "http" or "amqp".
func (s *Service) Compute(source string, records []v1.Record, reports []string) (*Result, error) {
	engine, err := s.engineFor(reports)
	if err != nil {
		return nil, err
	}
	return s.run(engine, source, records, s.now())
}

// Ping checks the record source when it is backed by a remote service.
func (s *Service) Ping(ctx context.Context) error {
	if hc, ok := s.source.(storage.HealthChecker); ok {
		return hc.Ping(ctx)
	}
	return nil
}

// SourceName returns the configured source name, or "" without a source.
func (s *Service) SourceName() string {
	if s.source == nil {
		return ""
	}
	return s.source.Name()
}

func (s *Service) engineFor(reports []string) (*aggregation.Engine, error) {
	if len(reports) == 0 {
		return s.engine, nil
	}
	return aggregation.NewEngine(s.engine.Options(), reports...)
}

func (s *Service) run(engine *aggregation.Engine, source string, records []v1.Record, start time.Time) (*Result, error) {
	summary, err := engine.Run(records)
	s.observe(source, start, len(records), err)
	if err != nil {
		return nil, err
	}

	res := &Result{
		RunID:       uuid.NewString(),
		GeneratedAt: s.now().UTC(),
		Source:      source,
		Records:     len(records),
		Reports:     engine.Reports(),
		Summary:     summary,
	}

	slog.Info("[Report] Run completed",
		"run_id", res.RunID,
		"source", source,
		"records", res.Records,
		"reports", res.Reports,
		"duration", s.now().Sub(start),
	)
	return res, nil
}

func (s *Service) observe(source string, start time.Time, records int, err error) {
	if s.metrics == nil {
		return
	}
	status := metrics.StatusOK
	if err != nil {
		status = metrics.StatusError
	}
	s.metrics.ReportRuns.WithLabelValues(source, status).Inc()
	s.metrics.ReportDuration.WithLabelValues(source).Observe(s.now().Sub(start).Seconds())
	if err == nil {
		s.metrics.RecordsProcessed.WithLabelValues(source).Add(float64(records))
		s.metrics.LastSuccess.WithLabelValues(source).SetToCurrentTime()
	}
}

// IsClientError reports whether err was caused by the input or the request rather than the system.
func IsClientError(err error) bool {
	return errors.Is(err, aggregation.ErrUnknownReport) ||
		errors.Is(err, aggregation.ErrInvalidMonthCode)
}
