// Package worker computes reports for ledgers delivered over AMQP and publishes the results.
package worker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rabbitmq/amqp091-go"

	v1 "github.com/aevon-lab/tally/internal/api/v1"
	"github.com/aevon-lab/tally/internal/ledger"
	"github.com/aevon-lab/tally/internal/metrics"
	"github.com/aevon-lab/tally/internal/report"
)

// SourceAMQP labels results computed from a delivered ledger.
const SourceAMQP = "amqp"

// Message headers read from a ledger delivery.
const (
	// HeaderReports is a comma separated list of report names. Absent means the configured set.
	HeaderReports = "reports"
	// HeaderDelimiter is the single character field delimiter of a CSV ledger.
	HeaderDelimiter = "delimiter"
	// HeaderSheet names the worksheet of an xlsx ledger.
	HeaderSheet = "sheet"
	// HeaderError carries the failure reason on an error reply.
	HeaderError = "error"
)

const (
	mimeCSV  = "text/csv"
	mimeText = "text/plain"
	mimeJSON = "application/json"
	mimeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

const publishTimeout = 5 * time.Second

// errMalformed marks deliveries that can never succeed and must not be requeued.
var errMalformed = errors.New("malformed ledger message")

// Channel is the part of *amqp091.Channel the worker uses.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp091.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp091.Table) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp091.Table) (<-chan amqp091.Delivery, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// Config names the topology the worker declares and consumes from.
type Config struct {
	Exchange         string
	Queue            string
	RoutingKey       string
	ResultRoutingKey string
	Prefetch         int
}

// Worker consumes ledger messages one at a time and publishes one result per message.
type Worker struct {
	ch      Channel
	cfg     Config
	reports *report.Service
	metrics *metrics.Metrics
}

// New creates a worker on an open channel. m may be nil.
func New(ch Channel, cfg Config, reports *report.Service, m *metrics.Metrics) *Worker {
	return &Worker{ch: ch, cfg: cfg, reports: reports, metrics: m}
}

// Setup declares the exchange and ledger queue, binds them and applies the prefetch limit.
func (w *Worker) Setup() error {
	err := w.ch.ExchangeDeclare(
		w.cfg.Exchange, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	_, err = w.ch.QueueDeclare(
		w.cfg.Queue, // name
		true,        // durable
		false,       // delete when unused
		false,       // exclusive
		false,       // no-wait
		nil,         // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	if err := w.ch.QueueBind(w.cfg.Queue, w.cfg.RoutingKey, w.cfg.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	if err := w.ch.Qos(w.cfg.Prefetch, 0, false); err != nil {
		return fmt.Errorf("set prefetch: %w", err)
	}
	return nil
}

// Consume processes deliveries until ctx is cancelled or the delivery channel closes.
func (w *Worker) Consume(ctx context.Context) error {
	msgs, err := w.ch.Consume(
		w.cfg.Queue, // queue
		"",          // consumer
		false,       // auto-ack (we want manual ack)
		false,       // exclusive
		false,       // no-local
		false,       // no-wait
		nil,         // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "[Worker] Started consuming ledger messages", "queue", w.cfg.Queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "[Worker] Stopping message consumption", "reason", ctx.Err())
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("delivery channel closed")
			}
			w.handle(ctx, delivery)
		}
	}
}

// handle settles exactly one delivery: ack on success, reject on bad input, requeue otherwise.
func (w *Worker) handle(ctx context.Context, d amqp091.Delivery) {
	log := slog.With("message_id", d.MessageId, "correlation_id", d.CorrelationId)

	res, err := w.process(d)
	if err != nil {
		if errors.Is(err, errMalformed) || report.IsClientError(err) {
			log.WarnContext(ctx, "[Worker] Rejecting ledger message", "error", err)
			w.replyError(ctx, d, err)
			w.settle(ctx, d, metrics.DeliveryRejected, d.Nack(false, false))
			return
		}
		log.ErrorContext(ctx, "[Worker] Failed to process ledger message", "error", err)
		w.settle(ctx, d, metrics.DeliveryRequeued, d.Nack(false, true))
		return
	}

	if err := w.publish(ctx, d, res); err != nil {
		log.ErrorContext(ctx, "[Worker] Failed to publish result", "run_id", res.RunID, "error", err)
		w.settle(ctx, d, metrics.DeliveryRequeued, d.Nack(false, true))
		return
	}

	log.InfoContext(ctx, "[Worker] Processed ledger message", "run_id", res.RunID, "records", res.Records)
	w.settle(ctx, d, metrics.DeliveryAcked, d.Ack(false))
}

func (w *Worker) process(d amqp091.Delivery) (*report.Result, error) {
	records, err := decodeLedger(d)
	if err != nil {
		return nil, err
	}
	return w.reports.Compute(SourceAMQP, records, reportNames(d.Headers))
}

// publish sends res to the reply queue when the sender set one, otherwise to the result routing key.
func (w *Worker) publish(ctx context.Context, d amqp091.Delivery, res *report.Result) error {
	body, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("marshal result: %w", err)
	}
	return w.send(ctx, d, amqp091.Publishing{
		ContentType:   mimeJSON,
		DeliveryMode:  amqp091.Persistent,
		CorrelationId: correlationID(d),
		MessageId:     res.RunID,
		Timestamp:     res.GeneratedAt,
		Body:          body,
	})
}

// replyError tells an RPC style sender why its ledger was rejected. Best effort.
func (w *Worker) replyError(ctx context.Context, d amqp091.Delivery, cause error) {
	if d.ReplyTo == "" {
		return
	}
	body, _ := json.Marshal(map[string]string{"error": cause.Error()})
	err := w.send(ctx, d, amqp091.Publishing{
		ContentType:   mimeJSON,
		CorrelationId: correlationID(d),
		Headers:       amqp091.Table{HeaderError: cause.Error()},
		Timestamp:     time.Now(),
		Body:          body,
	})
	if err != nil {
		slog.WarnContext(ctx, "[Worker] Failed to send error reply", "reply_to", d.ReplyTo, "error", err)
	}
}

func (w *Worker) send(ctx context.Context, d amqp091.Delivery, msg amqp091.Publishing) error {
	exchange, key := w.cfg.Exchange, w.cfg.ResultRoutingKey
	if d.ReplyTo != "" {
		exchange, key = "", d.ReplyTo
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := w.ch.PublishWithContext(ctx, exchange, key, false, false, msg); err != nil {
		return fmt.Errorf("publish message: %w", err)
	}
	return nil
}

func (w *Worker) settle(ctx context.Context, d amqp091.Delivery, outcome string, err error) {
	if err != nil {
		slog.ErrorContext(ctx, "[Worker] Failed to settle delivery", "outcome", outcome, "delivery_tag", d.DeliveryTag, "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.Deliveries.WithLabelValues(outcome).Inc()
	}
}

// decodeLedger picks the parser by content type. An empty content type is read as CSV.
func decodeLedger(d amqp091.Delivery) ([]v1.Record, error) {
	switch strings.TrimSpace(strings.SplitN(d.ContentType, ";", 2)[0]) {
	case mimeCSV, mimeText, "":
		delimiter := ledger.DefaultDelimiter
		if raw, ok := d.Headers[HeaderDelimiter].(string); ok && raw != "" {
			r := []rune(raw)
			if len(r) != 1 {
				return nil, fmt.Errorf("%w: delimiter %q must be a single character", errMalformed, raw)
			}
			delimiter = r[0]
		}
		records, err := ledger.ParseCSV(bytes.NewReader(d.Body), delimiter)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformed, err)
		}
		return records, nil

	case mimeXLSX:
		sheet, _ := d.Headers[HeaderSheet].(string)
		records, err := ledger.ParseXLSX(bytes.NewReader(d.Body), sheet)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformed, err)
		}
		return records, nil

	case mimeJSON:
		var records []v1.Record
		if err := json.Unmarshal(d.Body, &records); err != nil {
			return nil, fmt.Errorf("%w: %w", errMalformed, err)
		}
		for i := range records {
			if err := records[i].Validate(); err != nil {
				return nil, fmt.Errorf("%w: record %d: %w", errMalformed, i, err)
			}
		}
		return records, nil

	default:
		return nil, fmt.Errorf("%w: unsupported content type %q", errMalformed, d.ContentType)
	}
}

func reportNames(headers amqp091.Table) []string {
	raw, ok := headers[HeaderReports].(string)
	if !ok {
		return nil
	}
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if name = strings.TrimSpace(name); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func correlationID(d amqp091.Delivery) string {
	if d.CorrelationId != "" {
		return d.CorrelationId
	}
	return d.MessageId
}
