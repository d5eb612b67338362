package projection

import (
	"context"
	"sync"
	"time"

	"github.com/aevon-lab/tally/internal/report"
)

// Service implements the read side of the API: on-demand reports over the configured
// record source, plus the latest result published by the scheduler.
type Service struct {
	reports *report.Service
	timeout time.Duration
	nowFn   func() time.Time

	mu     sync.RWMutex
	latest *report.Result
}

// NewService creates the projection service. timeout bounds each on-demand run; 0 means none.
func NewService(reports *report.Service, timeout time.Duration) *Service {
	if reports == nil {
		panic("projection: report service must not be nil")
	}
	return &Service{reports: reports, timeout: timeout, nowFn: time.Now}
}

// Publish stores res as the latest snapshot. It satisfies report.Sink.
func (s *Service) Publish(_ context.Context, res *report.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.latest = res
	return nil
}

// Latest returns the most recently published snapshot and its age.
func (s *Service) Latest() (*report.Result, time.Duration, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return nil, 0, false
	}
	return s.latest, s.nowFn().Sub(s.latest.GeneratedAt), true
}

// Generate runs the named reports (all configured reports when empty) over the record source.
func (s *Service) Generate(ctx context.Context, reports []string) (*report.Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	return s.reports.GenerateSelected(ctx, reports)
}
