package instrument_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jacentio/docbase/store"
	"github.com/jacentio/docbase/store/instrument"
	"github.com/jacentio/docbase/store/memory"
)

type note struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

func setup(t *testing.T) (*instrument.Repository, *prometheus.Registry, *observer.ObservedLogs) {
	t.Helper()
	mem, err := memory.New(memory.Config{Collection: "Notes"}, nil)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	metrics, err := instrument.NewMetrics(reg)
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	repo := instrument.Wrap(mem, instrument.Options{
		Logger:  zap.New(core),
		Metrics: metrics,
		Tracer:  noop.NewTracerProvider().Tracer("test"),
	})
	return repo, reg, logs
}

func TestWrap_PassesThrough(t *testing.T) {
	ctx := context.Background()
	repo, _, _ := setup(t)

	assert.Equal(t, "Notes", repo.Collection())
	assert.False(t, repo.IsPartitioned())
	assert.Empty(t, repo.PartitionPath())

	id, err := repo.Create(ctx, &note{Body: "hello"})
	require.NoError(t, err)

	var got note
	require.NoError(t, repo.Get(ctx, store.ID(id), &got))
	assert.Equal(t, "hello", got.Body)

	var all []note
	require.NoError(t, repo.Where(ctx, store.Eq("body", "hello"), &all))
	assert.Len(t, all, 1)

	_, isMemory := repo.Unwrap().(*memory.Adapter)
	assert.True(t, isMemory)
}

func TestWrap_RecordsOutcomes(t *testing.T) {
	ctx := context.Background()
	repo, reg, logs := setup(t)

	_, err := repo.Create(ctx, &note{ID: "n1"})
	require.NoError(t, err)

	var got note
	err = repo.Get(ctx, store.ID("missing"), &got)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = repo.Create(ctx, &note{ID: "n1"})
	assert.ErrorIs(t, err, store.ErrAlreadyExists)

	_, err = repo.QueryRows(ctx, "SELECT 1", nil)
	assert.ErrorIs(t, err, store.ErrUnsupported)

	// create/ok, get/not_found, create/error, query_rows/error
	assert.Equal(t, 4, testutil.CollectAndCount(reg, "docbase_operations_total"))
	assert.Equal(t, 4, testutil.CollectAndCount(reg, "docbase_operation_duration_seconds"))

	warns := logs.FilterMessage("repository operation failed").All()
	require.Len(t, warns, 2)
	assert.Equal(t, "create", warns[0].ContextMap()["operation"])
	assert.Equal(t, "query_rows", warns[1].ContextMap()["operation"])
	assert.Len(t, logs.FilterMessage("document not found").All(), 1)
}

func TestWrap_CountsByLabel(t *testing.T) {
	ctx := context.Background()
	mem, err := memory.New(memory.Config{Collection: "Notes"}, nil)
	require.NoError(t, err)
	metrics, err := instrument.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)
	repo := instrument.Wrap(mem, instrument.Options{Metrics: metrics})

	for range 3 {
		_, err := repo.Create(ctx, &note{})
		require.NoError(t, err)
	}
	var got note
	_ = repo.Get(ctx, store.ID("missing"), &got)

	counter := metrics.Total()
	assert.Equal(t, float64(3), testutil.ToFloat64(counter.WithLabelValues("Notes", "create", instrument.OutcomeOK)))
	assert.Equal(t, float64(1), testutil.ToFloat64(counter.WithLabelValues("Notes", "get", instrument.OutcomeNotFound)))
	assert.Equal(t, float64(0), testutil.ToFloat64(counter.WithLabelValues("Notes", "get", instrument.OutcomeError)))
}

func TestNewMetrics_DuplicateRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := instrument.NewMetrics(reg)
	require.NoError(t, err)
	_, err = instrument.NewMetrics(reg)
	assert.Error(t, err)
}
