package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opsbed/fibsvc/pkg/fibonacci"
	"go.opentelemetry.io/otel/codes"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type telemetryHarness struct {
	tracerProvider *sdktrace.TracerProvider
	spans          *tracetest.SpanRecorder
	reader         *sdkmetric.ManualReader
}

func setupHandler(t *testing.T) *telemetryHarness {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	c, err := fibonacci.New(tp.Tracer("test"), mp.Meter("test"))
	if err != nil {
		t.Fatalf("creating computer: %v", err)
	}
	SetComputer(c)

	return &telemetryHarness{tracerProvider: tp, spans: sr, reader: reader}
}

func (h *telemetryHarness) fibonacciInvocations(t *testing.T) int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	if err := h.reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("collecting metrics: %v", err)
	}

	var total int64
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "fibonacci.invocations" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				t.Fatalf("unexpected metric data type %T", m.Data)
			}
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
		}
	}
	return total
}

func doRequest(method, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	Fibonacci(w, req)
	return w
}

func TestFibonacci_Success(t *testing.T) {
	setupHandler(t)

	cases := []struct {
		target string
		n      int64
		want   int64
	}{
		{"/fibonacci?n=1", 1, 1},
		{"/fibonacci?n=2", 2, 1},
		{"/fibonacci?n=10", 10, 55},
		{"/fibonacci?n=90", 90, 2880067194370816120},
	}

	for _, tc := range cases {
		w := doRequest(http.MethodGet, tc.target)
		if w.Code != http.StatusOK {
			t.Errorf("GET %s: expected 200, got %d", tc.target, w.Code)
			continue
		}

		var body FibonacciResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Errorf("GET %s: decoding body: %v", tc.target, err)
			continue
		}
		if body.N != tc.n || body.Result != tc.want {
			t.Errorf("GET %s: got {n:%d result:%d}, want {n:%d result:%d}",
				tc.target, body.N, body.Result, tc.n, tc.want)
		}
	}
}

func TestFibonacci_OutOfRange(t *testing.T) {
	h := setupHandler(t)

	w := doRequest(http.MethodGet, "/fibonacci?n=0")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Message != "n must be 1 <= n <= 90." {
		t.Errorf("Unexpected message: %q", body.Message)
	}

	if got := h.fibonacciInvocations(t); got != 1 {
		t.Errorf("Expected 1 counter increment for out-of-range input, got %d", got)
	}
}

func TestFibonacci_MissingParam(t *testing.T) {
	h := setupHandler(t)

	w := doRequest(http.MethodGet, "/fibonacci")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	var body ErrorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if !strings.Contains(body.Message, "'n'") {
		t.Errorf("Expected message naming parameter 'n', got %q", body.Message)
	}

	// No computation ran, so the fibonacci counter stays untouched.
	if got := h.fibonacciInvocations(t); got != 0 {
		t.Errorf("Expected no counter increments, got %d", got)
	}
}

func TestFibonacci_MalformedParam(t *testing.T) {
	setupHandler(t)

	for _, target := range []string{"/fibonacci?n=abc", "/fibonacci?n=1.5", "/fibonacci?n="} {
		w := doRequest(http.MethodGet, target)
		if w.Code != http.StatusBadRequest {
			t.Errorf("GET %s: expected 400, got %d", target, w.Code)
		}
	}
}

func TestFibonacci_MethodNotAllowed(t *testing.T) {
	setupHandler(t)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete} {
		w := doRequest(method, "/fibonacci?n=10")
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s /fibonacci: expected 400, got %d", method, w.Code)
			continue
		}

		var body ErrorResponse
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Errorf("%s /fibonacci: decoding body: %v", method, err)
			continue
		}
		if !strings.Contains(body.Message, method) {
			t.Errorf("%s /fibonacci: expected message naming the method, got %q", method, body.Message)
		}
	}
}

func TestFibonacci_MarksActiveSpanOnParamFailure(t *testing.T) {
	h := setupHandler(t)

	// Simulate the server span the router middleware would have opened.
	ctx, span := h.tracerProvider.Tracer("test").Start(context.Background(), "HTTP GET /fibonacci")
	req := httptest.NewRequest(http.MethodGet, "/fibonacci", nil).WithContext(ctx)
	w := httptest.NewRecorder()

	Fibonacci(w, req)
	span.End()

	if w.Code != http.StatusBadRequest {
		t.Fatalf("Expected 400, got %d", w.Code)
	}

	spans := h.spans.Ended()
	if len(spans) != 1 {
		t.Fatalf("Expected 1 ended span, got %d", len(spans))
	}
	if spans[0].Status().Code != codes.Error {
		t.Errorf("Expected the active span to carry error status, got %v", spans[0].Status().Code)
	}
	if spans[0].Status().Description == "" {
		t.Errorf("Expected the error status to carry a description")
	}
}

func TestTranslateError_Unrecognized(t *testing.T) {
	w := httptest.NewRecorder()

	handled := TranslateError(context.Background(), w, errors.New("boom"))
	if handled {
		t.Errorf("Expected unrecognized error to be left unhandled")
	}
	if w.Body.Len() != 0 {
		t.Errorf("Expected no body for unhandled error, got %q", w.Body.String())
	}
}

func TestTranslateError_NoActiveSpan(t *testing.T) {
	setupHandler(t)

	w := httptest.NewRecorder()
	err := &requestError{kind: errMissingParam, msg: "required query parameter 'n' is not present"}

	// Marking must be a no-op, not a panic, without an active span.
	if handled := TranslateError(context.Background(), w, err); !handled {
		t.Fatalf("Expected requestError to be handled")
	}
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}
