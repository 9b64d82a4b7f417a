// Package telemetry wires the OpenTelemetry metric pipeline. Tracing lives
// in pkg/tracing; this package owns the meter provider and OTLP metric
// export.
package telemetry

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/opsbed/fibsvc/pkg/config"
	"github.com/opsbed/fibsvc/pkg/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/opsbed/fibsvc"

// InitMeter sets up the OTLP metric exporter and registers the global meter
// provider. Returns a shutdown func that flushes pending metrics.
func InitMeter(ctx context.Context, serviceName string, cfg config.TelemetryConfig) (func(context.Context) error, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		endpoint = cfg.Endpoint
	}

	exporter, err := otlpmetricgrpc.New(
		ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP metric exporter: %w", err)
	}

	interval := cfg.MetricInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}

	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(
			sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval)),
		),
		sdkmetric.WithResource(tracing.NewResource(serviceName)),
	)

	otel.SetMeterProvider(mp)

	return mp.Shutdown, nil
}

// Meter returns the service meter from the globally registered provider.
func Meter() metric.Meter {
	return otel.GetMeterProvider().Meter(meterName)
}
