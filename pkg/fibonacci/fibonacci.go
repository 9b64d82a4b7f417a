package fibonacci

import (
	"context"
	"fmt"

	"github.com/opsbed/fibsvc/pkg/logger"
	"github.com/opsbed/fibsvc/pkg/telemetry"
	"github.com/opsbed/fibsvc/pkg/tracing"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Input bounds for Compute. n <= 90 keeps every intermediate value inside
// int64, so the accumulator cannot overflow for accepted input.
const (
	MinN int64 = 1
	MaxN int64 = 90
)

const (
	attrN      = attribute.Key("fibonacci.n")
	attrResult = attribute.Key("fibonacci.result")
	attrValidN = attribute.Key("fibonacci.valid.n")
)

// InvalidInputError reports an n outside [MinN, MaxN].
type InvalidInputError struct {
	N int64
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("n must be %d <= n <= %d.", MinN, MaxN)
}

// Computer computes Fibonacci numbers and emits a span, a counter increment
// and a log line per invocation. Safe for concurrent use; the tracer and
// counter are shared, all other state is per-call.
type Computer struct {
	tracer      trace.Tracer
	invocations metric.Int64Counter
}

// New builds a Computer on an explicit tracer and meter. Used directly by
// tests; production code goes through NewComputer.
func New(tracer trace.Tracer, meter metric.Meter) (*Computer, error) {
	invocations, err := meter.Int64Counter(
		"fibonacci.invocations",
		metric.WithDescription("Measures the number of times the fibonacci method is invoked."),
		metric.WithUnit("{invocation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating fibonacci.invocations counter: %w", err)
	}

	return &Computer{
		tracer:      tracer,
		invocations: invocations,
	}, nil
}

// NewComputer builds a Computer on the globally registered tracer and meter
// providers. Call after telemetry initialization.
func NewComputer() (*Computer, error) {
	return New(tracing.GetTracer("fibonacci"), telemetry.Meter())
}

// Compute returns the nth Fibonacci number for 1 <= n <= 90, seeded
// fib(1) = fib(2) = 1. The whole call runs under a span named "fibonacci"
// which is current for the duration and ended on every path. Each call
// increments the invocations counter once, labeled by input validity.
func (c *Computer) Compute(ctx context.Context, n int64) (int64, error) {
	ctx, span := c.tracer.Start(ctx, "fibonacci",
		trace.WithAttributes(attrN.Int64(n)),
	)
	defer span.End()

	log := logger.Ctx(ctx)

	if n < MinN || n > MaxN {
		err := &InvalidInputError{N: n}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		c.invocations.Add(ctx, 1, metric.WithAttributes(attrValidN.Bool(false)))
		log.Warn().Int64("n", n).Msg("Failed to compute fibonacci")
		return 0, err
	}

	var result int64 = 1
	if n > 2 {
		var a, b int64 = 0, 1
		for i := int64(1); i < n; i++ {
			result = a + b
			a = b
			b = result
		}
	}

	span.SetAttributes(attrResult.Int64(result))
	c.invocations.Add(ctx, 1, metric.WithAttributes(attrValidN.Bool(true)))
	log.Info().Int64("n", n).Int64("result", result).Msg("Computed fibonacci")

	return result, nil
}
