package analytics

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/cvangysel/gondri/pkg/kafka"
	"github.com/cvangysel/gondri/pkg/logger"
	"github.com/cvangysel/gondri/pkg/metrics"
	"github.com/cvangysel/gondri/pkg/resilience"
)

// Publisher is the Kafka side of a Collector.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
}

// Recorder receives every tracked event synchronously.
type Recorder interface {
	Record(event QueryEvent)
}

type CollectorOptions struct {
	BufferSize    int
	Workers       int
	BatchSize     int
	FlushInterval time.Duration

	// Retry governs repeated PublishBatch attempts for one batch.
	Retry   resilience.RetryConfig
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Collector buffers events and publishes them in batches. Track never
// blocks; events that do not fit the buffer are dropped and counted.
type Collector struct {
	publisher Publisher
	recorder  Recorder
	opts      CollectorOptions
	eventCh   chan QueryEvent
	wg        sync.WaitGroup
	closeOnce sync.Once
	logger    *slog.Logger
}

// NewCollector returns a collector publishing to pub and recording to rec.
// Either may be nil.
func NewCollector(pub Publisher, rec Recorder, opts CollectorOptions) *Collector {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 1024
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = time.Second
	}
	return &Collector{
		publisher: pub,
		recorder:  rec,
		opts:      opts,
		eventCh:   make(chan QueryEvent, opts.BufferSize),
		logger:    logger.Component(opts.Logger, "analytics-collector"),
	}
}

// Start launches the publishing workers. They exit once Close drains the
// buffer.
func (c *Collector) Start(ctx context.Context) {
	if c.publisher == nil {
		return
	}
	for range c.opts.Workers {
		c.wg.Add(1)
		go c.run(ctx)
	}
	c.logger.Info("analytics collector started",
		"buffer_size", c.opts.BufferSize,
		"workers", c.opts.Workers,
		"batch_size", c.opts.BatchSize,
	)
}

// Track records event and queues it for publishing.
func (c *Collector) Track(event QueryEvent) {
	if c.recorder != nil {
		c.recorder.Record(event)
	}
	if c.publisher == nil {
		return
	}
	select {
	case c.eventCh <- event:
	default:
		if c.opts.Metrics != nil {
			c.opts.Metrics.EventsDropped.Inc()
		}
		c.logger.Warn("analytics event dropped (buffer full)", "query", event.Query)
	}
}

// Close stops accepting events and waits for queued ones to be published.
// Track must not be called after Close.
func (c *Collector) Close() {
	c.closeOnce.Do(func() {
		close(c.eventCh)
		c.wg.Wait()
	})
}

func (c *Collector) run(ctx context.Context) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.FlushInterval)
	defer ticker.Stop()

	batch := make([]kafka.Event, 0, c.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		// Publishing outlives ctx so the final drain still reaches Kafka.
		flushCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		err := resilience.Retry(flushCtx, "publish analytics", c.opts.Retry, c.opts.Logger, func(ctx context.Context) error {
			return c.publisher.PublishBatch(ctx, batch)
		})
		if err != nil {
			c.logger.Error("failed to publish analytics events", "count", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case event, ok := <-c.eventCh:
			if !ok {
				flush()
				return
			}
			batch = append(batch, kafka.Event{Key: event.Query, Value: event})
			if len(batch) >= c.opts.BatchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
