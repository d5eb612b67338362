package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"github.com/aevon-lab/tally/internal/metrics"
	"github.com/aevon-lab/tally/internal/report"
)

const maxBackoff = 30 * time.Second

// brokerChannel is a Channel the connection hands out and the caller closes.
type brokerChannel interface {
	Channel
	Close() error
}

// connection is the part of an AMQP connection the reconnect loop needs.
type connection interface {
	Channel() (brokerChannel, error)
	Close() error
}

type amqpConnection struct {
	*amqp091.Connection
}

func (c amqpConnection) Channel() (brokerChannel, error) {
	ch, err := c.Connection.Channel()
	if err != nil {
		return nil, err
	}
	return ch, nil
}

func dialAMQP(url string) (connection, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnection{conn}, nil
}

// connector owns the reconnect loop. attempt counts failures since the last good connection.
type connector struct {
	dial    func(url string) (connection, error)
	backoff func(attempt int) time.Duration
}

// Run connects to the broker and consumes until ctx is cancelled,
// reconnecting with exponential backoff whenever the connection drops.
func Run(ctx context.Context, url string, cfg Config, reports *report.Service, m *metrics.Metrics) error {
	c := connector{dial: dialAMQP, backoff: exponentialBackoff}
	return c.run(ctx, url, cfg, reports, m)
}

func (c connector) run(ctx context.Context, url string, cfg Config, reports *report.Service, m *metrics.Metrics) error {
	attempt := 0
	for {
		err := c.runOnce(ctx, url, cfg, reports, m, func() { attempt = 0 })
		if ctx.Err() != nil {
			return nil
		}

		wait := c.backoff(attempt)
		attempt++
		slog.Warn("[Worker] Connection lost, reconnecting", "error", err, "attempt", attempt, "backoff", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (c connector) runOnce(ctx context.Context, url string, cfg Config, reports *report.Service, m *metrics.Metrics, connected func()) error {
	conn, err := c.dial(url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	w := New(ch, cfg, reports, m)
	if err := w.Setup(); err != nil {
		return fmt.Errorf("setup exchange and queue: %w", err)
	}
	connected()

	slog.Info("[Worker] Connected to broker", "exchange", cfg.Exchange, "queue", cfg.Queue, "prefetch", cfg.Prefetch)
	return w.Consume(ctx)
}

// exponentialBackoff doubles from one second and caps at maxBackoff.
func exponentialBackoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if attempt > 5 {
		return maxBackoff
	}
	d := time.Second << attempt
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}
