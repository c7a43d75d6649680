package partition

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/SARVESHVARADKAR123/RealChat/services/messenger/internal/observability"
)

// Instrumented wraps a Store with a default per-call deadline, a span per
// call and the store metrics. Calls whose context already carries a deadline
// keep it.
type Instrumented struct {
	next    Store
	timeout time.Duration
	tracer  trace.Tracer
}

func NewInstrumented(next Store, timeout time.Duration) *Instrumented {
	return &Instrumented{
		next:    next,
		timeout: timeout,
		tracer:  otel.Tracer("messenger/partition"),
	}
}

func (s *Instrumented) begin(ctx context.Context, op, table, partitionKey string) (context.Context, func(error)) {
	cancel := func() {}
	if _, ok := ctx.Deadline(); !ok && s.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
	}
	ctx, span := s.tracer.Start(ctx, "store."+op, trace.WithAttributes(
		attribute.String("store.table", table),
		attribute.String("store.partition", partitionKey),
	))
	start := time.Now()

	return ctx, func(err error) {
		observability.StoreOpDuration.WithLabelValues(op, table).Observe(time.Since(start).Seconds())
		if err != nil && !errors.Is(err, ErrNotFound) {
			observability.StoreOpErrorsTotal.WithLabelValues(op, table, errorKind(err)).Inc()
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		cancel()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnavailable):
		return "unavailable"
	case errors.Is(err, ErrInvalidKey):
		return "invalid_key"
	default:
		return "other"
	}
}

func (s *Instrumented) Put(ctx context.Context, table, partitionKey string, clustering, value []byte, c Consistency) (err error) {
	ctx, done := s.begin(ctx, "put", table, partitionKey)
	defer func() { done(err) }()
	return s.next.Put(ctx, table, partitionKey, clustering, value, c)
}

func (s *Instrumented) Delete(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) (err error) {
	ctx, done := s.begin(ctx, "delete", table, partitionKey)
	defer func() { done(err) }()
	return s.next.Delete(ctx, table, partitionKey, clustering, c)
}

func (s *Instrumented) Get(ctx context.Context, table, partitionKey string, clustering []byte, c Consistency) (v []byte, err error) {
	ctx, done := s.begin(ctx, "get", table, partitionKey)
	defer func() { done(err) }()
	return s.next.Get(ctx, table, partitionKey, clustering, c)
}

func (s *Instrumented) GetRange(ctx context.Context, table, partitionKey string, q RangeQuery) (rows []Row, err error) {
	ctx, done := s.begin(ctx, "get_range", table, partitionKey)
	defer func() { done(err) }()
	return s.next.GetRange(ctx, table, partitionKey, q)
}

func (s *Instrumented) Ping(ctx context.Context) (err error) {
	ctx, done := s.begin(ctx, "ping", "", "")
	defer func() { done(err) }()
	return s.next.Ping(ctx)
}

func (s *Instrumented) Close() error {
	return s.next.Close()
}
