// Package instrument decorates a store.Repository with logging, Prometheus
// metrics and OpenTelemetry spans.
//
// Every operation runs inside a span named "docbase.<operation>" and is
// observed in two collectors:
//
//	docbase_operation_duration_seconds{collection, operation, outcome}
//	docbase_operations_total{collection, operation, outcome}
//
// Outcome is "ok", "not_found" or "error". Failures are logged at warn;
// not-found results are logged at debug.
package instrument

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jacentio/docbase/store"
)

// Outcomes recorded on every observation.
const (
	OutcomeOK       = "ok"
	OutcomeNotFound = "not_found"
	OutcomeError    = "error"
)

// Metrics holds the collectors shared by every wrapped repository.
type Metrics struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
}

// NewMetrics creates the operation collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docbase_operation_duration_seconds",
			Help:    "Duration of repository operations in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"collection", "operation", "outcome"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "docbase_operations_total",
			Help: "Total number of repository operations.",
		}, []string{"collection", "operation", "outcome"}),
	}
	if reg != nil {
		for _, c := range []prometheus.Collector{m.duration, m.total} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}
	return m, nil
}

// Total returns the operation counter.
func (m *Metrics) Total() *prometheus.CounterVec { return m.total }

// Duration returns the operation latency histogram.
func (m *Metrics) Duration() *prometheus.HistogramVec { return m.duration }

// Options configures Wrap. Zero values disable the corresponding signal,
// except Tracer, which defaults to the global otel tracer.
type Options struct {
	Logger  *zap.Logger
	Metrics *Metrics
	Tracer  trace.Tracer
}

// Repository is an instrumented store.Repository.
type Repository struct {
	next    store.Repository
	logger  *zap.Logger
	metrics *Metrics
	tracer  trace.Tracer
}

var _ store.Repository = (*Repository)(nil)

// Wrap returns next decorated with the signals configured in opts.
func Wrap(next store.Repository, opts Options) *Repository {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Tracer == nil {
		opts.Tracer = otel.Tracer("github.com/jacentio/docbase")
	}
	return &Repository{
		next:    next,
		logger:  opts.Logger.With(zap.String("collection", next.Collection())),
		metrics: opts.Metrics,
		tracer:  opts.Tracer,
	}
}

// Unwrap returns the decorated repository.
func (r *Repository) Unwrap() store.Repository { return r.next }

// Collection implements store.Repository.
func (r *Repository) Collection() string { return r.next.Collection() }

// IsPartitioned implements store.Repository.
func (r *Repository) IsPartitioned() bool { return r.next.IsPartitioned() }

// PartitionPath implements store.Repository.
func (r *Repository) PartitionPath() string { return r.next.PartitionPath() }

// Create implements store.Repository.
func (r *Repository) Create(ctx context.Context, doc any) (id string, err error) {
	ctx, done := r.start(ctx, "create")
	defer func() { done(err, attribute.String("docbase.id", id)) }()
	return r.next.Create(ctx, doc)
}

// Get implements store.Repository.
func (r *Repository) Get(ctx context.Context, key store.Key, out any) (err error) {
	ctx, done := r.start(ctx, "get")
	defer func() { done(err, attribute.String("docbase.id", key.ID)) }()
	return r.next.Get(ctx, key, out)
}

// Where implements store.Repository.
func (r *Repository) Where(ctx context.Context, f store.Filter, out any) (err error) {
	ctx, done := r.start(ctx, "where")
	defer func() { done(err) }()
	return r.next.Where(ctx, f, out)
}

// Take implements store.Repository.
func (r *Repository) Take(ctx context.Context, f store.Filter, n int, out any) (err error) {
	ctx, done := r.start(ctx, "take")
	defer func() { done(err, attribute.Int("docbase.limit", n)) }()
	return r.next.Take(ctx, f, n, out)
}

// First implements store.Repository.
func (r *Repository) First(ctx context.Context, f store.Filter, out any) (err error) {
	ctx, done := r.start(ctx, "first")
	defer func() { done(err) }()
	return r.next.First(ctx, f, out)
}

// FirstOrDefault implements store.Repository.
func (r *Repository) FirstOrDefault(ctx context.Context, f store.Filter, out any) (found bool, err error) {
	ctx, done := r.start(ctx, "first_or_default")
	defer func() { done(err, attribute.Bool("docbase.found", found)) }()
	return r.next.FirstOrDefault(ctx, f, out)
}

// Upsert implements store.Repository.
func (r *Repository) Upsert(ctx context.Context, key store.Key, doc any) (id string, err error) {
	ctx, done := r.start(ctx, "upsert")
	defer func() { done(err, attribute.String("docbase.id", id)) }()
	return r.next.Upsert(ctx, key, doc)
}

// Remove implements store.Repository.
func (r *Repository) Remove(ctx context.Context, key store.Key, guard store.Filter) (err error) {
	ctx, done := r.start(ctx, "remove")
	defer func() { done(err, attribute.String("docbase.id", key.ID)) }()
	return r.next.Remove(ctx, key, guard)
}

// Query implements store.Repository.
func (r *Repository) Query(ctx context.Context, statement string, params store.Params, out any) (err error) {
	ctx, done := r.start(ctx, "query")
	defer func() { done(err, attribute.String("db.statement", statement)) }()
	return r.next.Query(ctx, statement, params, out)
}

// QueryRows implements store.Repository.
func (r *Repository) QueryRows(ctx context.Context, statement string, params store.Params) (rows []store.Row, err error) {
	ctx, done := r.start(ctx, "query_rows")
	defer func() { done(err, attribute.String("db.statement", statement), attribute.Int("docbase.rows", len(rows))) }()
	return r.next.QueryRows(ctx, statement, params)
}

// start opens a span for op and returns the function that ends it and
// records the outcome.
func (r *Repository) start(ctx context.Context, op string) (context.Context, func(error, ...attribute.KeyValue)) {
	began := time.Now()
	collection := r.next.Collection()
	ctx, span := r.tracer.Start(ctx, "docbase."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("db.collection.name", collection),
			attribute.String("db.operation.name", op),
		),
	)

	return ctx, func(err error, attrs ...attribute.KeyValue) {
		elapsed := time.Since(began)
		outcome := outcomeOf(err)

		span.SetAttributes(attrs...)
		span.SetAttributes(attribute.String("docbase.outcome", outcome))
		switch outcome {
		case OutcomeError:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Warn("repository operation failed",
				zap.String("operation", op),
				zap.Duration("duration", elapsed),
				zap.Error(err),
			)
		case OutcomeNotFound:
			r.logger.Debug("document not found",
				zap.String("operation", op),
				zap.Duration("duration", elapsed),
			)
		default:
			span.SetStatus(codes.Ok, "")
		}
		span.End()

		if r.metrics != nil {
			r.metrics.duration.WithLabelValues(collection, op, outcome).Observe(elapsed.Seconds())
			r.metrics.total.WithLabelValues(collection, op, outcome).Inc()
		}
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, store.ErrNotFound):
		return OutcomeNotFound
	}
	return OutcomeError
}
