package instrumented_test

import (
	"context"
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	settings "github.com/goliatone/go-settings"
	"github.com/goliatone/go-settings/pkg/backend/backendtest"
	"github.com/goliatone/go-settings/pkg/backend/instrumented"
	"github.com/goliatone/go-settings/pkg/backend/memory"
)

func TestBackendContract(t *testing.T) {
	backendtest.Run(t, func(t *testing.T) settings.Backend {
		metrics := instrumented.NewMetrics(prometheus.NewRegistry())
		return instrumented.Wrap(memory.New(), "memory", metrics)
	})
}

func TestMetricsCountOperationsAndErrors(t *testing.T) {
	ctx := context.Background()
	metrics := instrumented.NewMetrics(prometheus.NewRegistry())
	b := instrumented.Wrap(memory.New(), "memory", metrics, instrumented.WithTracer(noop.NewTracerProvider().Tracer("test")))

	h, err := b.Open(ctx)
	require.NoError(t, err)
	require.NoError(t, b.SetValue(ctx, h, "Theme", settings.MinVersion, "Dark"))
	_, _, err = b.GetValue(ctx, h, "Theme", settings.MinVersion)
	require.NoError(t, err)
	require.NoError(t, b.Close(ctx, h))

	_, _, err = b.GetValue(ctx, h, "Theme", settings.MinVersion)
	require.True(t, errors.Is(err, settings.ErrClosedHandle))

	require.Equal(t, 2.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("memory", "get")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Operations.WithLabelValues("memory", "set")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("memory", "get")))
	require.Equal(t, 0.0, testutil.ToFloat64(metrics.Errors.WithLabelValues("memory", "set")))
}

type unversioned struct {
	settings.Unversioned
	*memory.Backend
}

func (u unversioned) Close(ctx context.Context, h settings.Handle) error {
	return u.Backend.Close(ctx, h)
}

func (u unversioned) ListVersions(ctx context.Context, h settings.Handle) ([]settings.Version, error) {
	return u.Unversioned.ListVersions(ctx, h)
}

func (u unversioned) DeleteForVersion(ctx context.Context, h settings.Handle, v settings.Version) error {
	return u.Unversioned.DeleteForVersion(ctx, h, v)
}

func (u unversioned) Capabilities() settings.Capabilities {
	return u.Unversioned.Capabilities()
}

func TestCapabilitiesForwarded(t *testing.T) {
	full := instrumented.Wrap(memory.New(), "memory", nil)
	require.Equal(t, settings.Capabilities{Versioning: true, Cleanup: true}, full.Capabilities())

	limited := instrumented.Wrap(unversioned{Backend: memory.New()}, "limited", nil)
	require.Equal(t, settings.Capabilities{}, limited.Capabilities())
}
