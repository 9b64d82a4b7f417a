package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/opsbed/fibsvc/pkg/fibonacci"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// requestError covers the request-level failures detected before any
// computation runs: a missing or malformed parameter, or a disallowed method.
type requestErrorKind int

const (
	errMissingParam requestErrorKind = iota
	errMalformedParam
	errMethodNotAllowed
)

type requestError struct {
	kind requestErrorKind
	msg  string
}

func (e *requestError) Error() string { return e.msg }

// TranslateError maps the closed set of recognized failures — invalid input
// range, missing/malformed parameter, unsupported method — to a 400 response
// with the error message as body, marking the active span as failed first.
// Returns false for anything else so the caller can fall through to the
// generic fault path.
func TranslateError(ctx context.Context, w http.ResponseWriter, err error) bool {
	var invalidInput *fibonacci.InvalidInputError
	var reqErr *requestError
	switch {
	case errors.As(err, &invalidInput):
	case errors.As(err, &reqErr):
	default:
		return false
	}

	// SpanFromContext returns a no-op span when none is active, so the
	// marking is safe on uninstrumented paths.
	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, err.Error())

	writeJSON(w, http.StatusBadRequest, ErrorResponse{Message: err.Error()})
	return true
}
