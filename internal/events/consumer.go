package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"
	"github.com/valyala/fastjson"

	"github.com/roach88/bibsearch/internal/index"
	"github.com/roach88/bibsearch/internal/library"
	"github.com/roach88/bibsearch/internal/metrics"
	"github.com/roach88/bibsearch/internal/resilience"
)

// Event statuses used as metric labels.
const (
	statusApplied = "applied"
	statusSkipped = "skipped"
	statusInvalid = "invalid"
	statusFailed  = "failed"
)

// Target receives decoded events. *indexing.Manager satisfies it.
type Target interface {
	Name() string
	Upsert(ctx context.Context, entries ...*library.Entry) error
	RemoveEntries(ctx context.Context, ids ...string) error
	Rebuild(ctx context.Context, progress index.Progress) error
}

// MessageReader is the part of *kafka.Reader the consumer uses.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config selects the topic to consume.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer applies events from a topic to a Target.
type Consumer struct {
	reader  MessageReader
	target  Target
	parsers fastjson.ParserPool
	retry   resilience.RetryConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Option configures a Consumer.
type Option func(*Consumer)

// WithMetrics counts consumed events by type and status.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Consumer) { c.metrics = m }
}

// WithRetry sets how often a failing event is retried before Run gives up,
// and the backoff between failed fetches.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *Consumer) { c.retry = cfg }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Consumer) { c.logger = l }
}

// NewConsumer creates a consumer reading cfg.Topic as part of cfg.GroupID.
func NewConsumer(cfg Config, target Target, opts ...Option) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("events: no brokers configured")
	}
	if cfg.Topic == "" {
		return nil, errors.New("events: no topic configured")
	}
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
	})
	return NewConsumerWithReader(r, target, opts...), nil
}

// NewConsumerWithReader creates a consumer over an existing reader.
func NewConsumerWithReader(r MessageReader, target Target, opts ...Option) *Consumer {
	c := &Consumer{
		reader: r,
		target: target,
		retry:  resilience.DefaultRetryConfig(),
		logger: slog.Default().With("component", "events", "library", target.Name()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run fetches and applies messages until ctx is cancelled.
//
// Messages that cannot be decoded are committed and dropped. A message
// whose application still fails after retrying stops Run with an error
// before anything past it is committed, since group offsets are
// cumulative. The group sees it again after a restart.
func (c *Consumer) Run(ctx context.Context) error {
	c.logger.Info("consumer started")
	fetchFailures := 0
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			fetchFailures++
			delay := c.retry.Backoff(fetchFailures)
			c.logger.Error("fetch message failed", "error", err, "next_delay", delay)
			if resilience.Sleep(ctx, delay) != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			continue
		}
		fetchFailures = 0
		c.logger.Debug("message received",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"value_size", len(msg.Value),
		)

		if err := c.Handle(ctx, msg.Value); err != nil {
			if ctx.Err() != nil {
				c.logger.Info("consumer stopping", "reason", ctx.Err())
				return nil
			}
			if !errors.Is(err, ErrInvalidEvent) {
				return fmt.Errorf("events: partition %d offset %d: %w", msg.Partition, msg.Offset, err)
			}
			c.logger.Warn("dropping invalid event",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.logger.Error("commit message failed",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}
	}
}

// Handle decodes and applies one payload, retrying the application with
// backoff.
func (c *Consumer) Handle(ctx context.Context, payload []byte) error {
	p := c.parsers.Get()
	ev, err := Decode(p, payload)
	c.parsers.Put(p)
	if err != nil {
		c.metrics.EventConsumed("unknown", statusInvalid)
		return err
	}

	if ev.Library != "" && ev.Library != c.target.Name() {
		c.metrics.EventConsumed(ev.Type, statusSkipped)
		return nil
	}

	err = resilience.Retry(ctx, ev.Type, c.retry, func() error { return c.apply(ctx, ev) })
	if err != nil {
		c.metrics.EventConsumed(ev.Type, statusFailed)
		return fmt.Errorf("%s: %w", ev.Type, err)
	}
	c.metrics.EventConsumed(ev.Type, statusApplied)
	c.logger.Info("event applied", "type", ev.Type, "entries", len(ev.Entries)+len(ev.IDs))
	return nil
}

func (c *Consumer) apply(ctx context.Context, ev Event) error {
	switch ev.Type {
	case TypeEntryUpserted:
		return c.target.Upsert(ctx, ev.Entries...)
	case TypeEntryRemoved:
		return c.target.RemoveEntries(ctx, ev.IDs...)
	case TypeLibraryRebuild:
		return c.target.Rebuild(ctx, index.LogProgress{Logger: c.logger})
	}
	return nil
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
