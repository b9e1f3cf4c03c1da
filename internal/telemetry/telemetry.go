// telemetry настраивает экспорт трейсов по OTLP/gRPC.
package telemetry

import (
	"context"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"

	"github.com/pribylovaa/signal-dashboard/internal/config"
)

// Shutdown сбрасывает накопленные спаны и останавливает экспортёр.
type Shutdown func(context.Context) error

func noop(context.Context) error { return nil }

// Setup регистрирует глобальный TracerProvider и W3C-пропагатор.
// Пустой endpoint — экспорт выключен, возвращается no-op Shutdown.
func Setup(ctx context.Context, cfg config.TelemetryConfig, log *slog.Logger) (Shutdown, error) {
	const op = "telemetry.Setup"

	if cfg.OTLPEndpoint == "" {
		log.Debug("telemetry_disabled")
		return noop, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint)}
	if cfg.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return noop, fmt.Errorf("%s: exporter: %w", op, err)
	}

	res, err := resource.New(ctx, resource.WithAttributes(semconv.ServiceName(cfg.ServiceName)))
	if err != nil {
		// Без ресурса трейсы всё равно полезны.
		log.Warn("telemetry_resource_failed", slog.String("err", err.Error()))
		res = resource.Default()
	}

	provider := trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	)
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	log.Info("telemetry_enabled",
		slog.String("endpoint", cfg.OTLPEndpoint),
		slog.String("service", cfg.ServiceName),
	)

	return provider.Shutdown, nil
}
