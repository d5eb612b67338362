package report

import (
	"context"
	"log/slog"
	"time"
)

// shutdownTimeout bounds the final run after the scheduler context is cancelled.
const shutdownTimeout = 30 * time.Second

// Sink receives every successful scheduled result.
type Sink func(ctx context.Context, res *Result) error

// Scheduler regenerates the report on a fixed interval.
// Each tick reloads the whole ledger; nothing is carried over between runs.
type Scheduler struct {
	interval time.Duration
	service  *Service
	sink     Sink
}

// NewScheduler creates a scheduler that hands each result to sink.
func NewScheduler(interval time.Duration, service *Service, sink Sink) *Scheduler {
	return &Scheduler{interval: interval, service: service, sink: sink}
}

// Start runs once immediately, then on every tick until ctx is cancelled.
// A last run is made on shutdown so the published report reflects the final ledger.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting report scheduler",
		"interval", s.interval,
		"source", s.service.SourceName(),
		"reports", s.service.Engine().Reports(),
	)

	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			slog.Info("[Scheduler] Running final report before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Scheduler] Final report complete")
			return nil
		}
	}
}

// runOnce logs failures instead of returning them; the next tick retries.
func (s *Scheduler) runOnce(ctx context.Context) {
	res, err := s.service.Generate(ctx)
	if err != nil {
		slog.Error("[Scheduler] Report run failed", "error", err)
		return
	}
	if err := s.sink(ctx, res); err != nil {
		slog.Error("[Scheduler] Report delivery failed", "run_id", res.RunID, "error", err)
	}
}
