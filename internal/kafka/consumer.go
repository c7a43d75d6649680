package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/twmb/franz-go/pkg/kgo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.uber.org/zap"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

// Handler processes one record value. A returned error makes the consumer
// retry the record; return nil for records that can never succeed.
type Handler interface {
	Handle(ctx context.Context, value []byte) error
}

type ConsumerOptions struct {
	Brokers []string
	Topics  []string
	Group   string
	// MaxRetries bounds redelivery of a failing record before it is skipped.
	MaxRetries uint64
	// RetryBackoff is the first retry delay; it doubles up to 30s.
	RetryBackoff time.Duration
}

// Consumer reads a consumer group and commits a record only after its
// handler has returned, so a crash mid-record redelivers it.
type Consumer struct {
	client  *kgo.Client
	handler Handler
	opts    ConsumerOptions
	done    chan struct{}
}

func NewConsumer(opts ConsumerOptions, handler Handler) (*Consumer, error) {
	if opts.MaxRetries == 0 {
		opts.MaxRetries = 5
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 200 * time.Millisecond
	}

	cl, err := kgo.NewClient(
		kgo.SeedBrokers(opts.Brokers...),
		kgo.ConsumerGroup(opts.Group),
		kgo.ConsumeTopics(opts.Topics...),
		kgo.AutoCommitMarks(),
		kgo.BlockRebalanceOnPoll(),
		kgo.OnPartitionsAssigned(func(ctx context.Context, _ *kgo.Client, assigned map[string][]int32) {
			observability.GetLogger(ctx).Info("kafka partitions assigned", zap.Any("partitions", assigned))
		}),
		kgo.OnPartitionsRevoked(func(ctx context.Context, cl *kgo.Client, _ map[string][]int32) {
			if err := cl.CommitMarkedOffsets(ctx); err != nil {
				observability.GetLogger(ctx).Warn("commit on revoke failed", zap.Error(err))
			}
		}),
	)
	if err != nil {
		return nil, err
	}
	return &Consumer{client: cl, handler: handler, opts: opts, done: make(chan struct{})}, nil
}

// recordContext continues the trace the producer injected into the headers.
func recordContext(ctx context.Context, r *kgo.Record) context.Context {
	carrier := make(propagation.MapCarrier, len(r.Headers))
	for _, h := range r.Headers {
		carrier[h.Key] = string(h.Value)
	}
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}

func (c *Consumer) Start(ctx context.Context) {
	go func() {
		defer close(c.done)
		log := observability.GetLogger(ctx)
		log.Info("kafka consumer started", zap.Strings("topics", c.opts.Topics), zap.String("group", c.opts.Group))

		for ctx.Err() == nil {
			fetches := c.client.PollFetches(ctx)
			if fetches.IsClientClosed() {
				return
			}
			fetches.EachError(func(topic string, p int32, err error) {
				if !errors.Is(err, context.Canceled) {
					log.Error("kafka fetch error", zap.String("topic", topic), zap.Int32("partition", p), zap.Error(err))
				}
			})

			fetches.EachRecord(func(r *kgo.Record) {
				c.process(ctx, r)
			})
			c.client.AllowRebalance()
		}
		log.Info("kafka consumer loop stopping", zap.Error(ctx.Err()))
	}()
}

func (c *Consumer) process(ctx context.Context, r *kgo.Record) {
	rctx := recordContext(ctx, r)

	policy := backoff.WithContext(
		backoff.WithMaxRetries(c.backoff(), c.opts.MaxRetries),
		ctx,
	)
	err := backoff.RetryNotify(
		func() error { return c.handler.Handle(rctx, r.Value) },
		policy,
		func(err error, wait time.Duration) {
			observability.RetriesTotal.WithLabelValues("consume_" + r.Topic).Inc()
			observability.GetLogger(rctx).Warn("record handling failed, retrying",
				zap.String("topic", r.Topic),
				zap.Int64("offset", r.Offset),
				zap.Duration("wait", wait),
				zap.Error(err),
			)
		},
	)
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: leave the record unmarked so it is redelivered.
			return
		}
		observability.GetLogger(rctx).Error("record skipped after retries",
			zap.String("topic", r.Topic),
			zap.Int32("partition", r.Partition),
			zap.Int64("offset", r.Offset),
			zap.Error(err),
		)
	}
	c.client.MarkCommitRecords(r)
}

func (c *Consumer) backoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.opts.RetryBackoff
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

// Close commits what has been handled and leaves the group.
func (c *Consumer) Close() {
	if c.client == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := c.client.CommitMarkedOffsets(ctx); err != nil {
		observability.GetLogger(ctx).Warn("final offset commit failed", zap.Error(err))
	}
	c.client.Close()
}

// Done is closed when the poll loop started by Start has returned.
func (c *Consumer) Done() <-chan struct{} { return c.done }
