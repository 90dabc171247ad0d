package observability

import (
	"context"
	"errors"
	"log/slog"

	"github.com/workbridge/workbridge-auth/internal/config"

	sdklog "go.opentelemetry.io/otel/sdk/log"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Runtime holds the telemetry providers that need a flush on exit. The
// logger provider is attached later by the entrypoint, since the logger has
// to exist before the rest of the runtime.
type Runtime struct {
	MeterProvider  *sdkmetric.MeterProvider
	TracerProvider *sdktrace.TracerProvider
	LoggerProvider *sdklog.LoggerProvider
}

func InitRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Runtime, error) {
	mp, err := InitMetrics(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	tp, err := InitTracing(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &Runtime{MeterProvider: mp, TracerProvider: tp}, nil
}

// Shutdown flushes every provider, collecting failures instead of stopping
// at the first one.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var shutdowns []func(context.Context) error
	if r.MeterProvider != nil {
		shutdowns = append(shutdowns, r.MeterProvider.Shutdown)
	}
	if r.TracerProvider != nil {
		shutdowns = append(shutdowns, r.TracerProvider.Shutdown)
	}
	if r.LoggerProvider != nil {
		shutdowns = append(shutdowns, r.LoggerProvider.Shutdown)
	}
	var errs []error
	for _, stop := range shutdowns {
		if err := stop(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
