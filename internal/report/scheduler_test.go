package report

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	storagemocks "github.com/aevon-lab/tally/internal/mocks/storage"
)

func TestScheduler_RunsImmediatelyAndOnShutdown(t *testing.T) {
	source := storagemocks.NewRecordSource(t)
	source.EXPECT().Load(mock.Anything).Return(sampleRecords(), nil)
	source.EXPECT().Name().Return("file")

	var (
		mu      sync.Mutex
		results []*Result
	)
	first := make(chan struct{})
	sink := func(_ context.Context, res *Result) error {
		mu.Lock()
		defer mu.Unlock()
		results = append(results, res)
		if len(results) == 1 {
			close(first)
		}
		return nil
	}

	sched := NewScheduler(time.Hour, newTestService(t, source, nil), sink)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sched.Start(ctx) }()

	select {
	case <-first:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not run on start")
	}
	cancel()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, results, 2, "initial run plus final run on shutdown")
	require.Equal(t, 70.0, *results[1].Summary.TotalSales)
}

func TestScheduler_KeepsRunningAfterFailure(t *testing.T) {
	source := storagemocks.NewRecordSource(t)
	source.EXPECT().Load(mock.Anything).Return(nil, errors.New("file not found"))
	source.EXPECT().Name().Return("file")

	calls := 0
	sink := func(context.Context, *Result) error {
		calls++
		return nil
	}

	sched := NewScheduler(10*time.Millisecond, newTestService(t, source, nil), sink)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.NoError(t, sched.Start(ctx))
	require.Zero(t, calls)
}
