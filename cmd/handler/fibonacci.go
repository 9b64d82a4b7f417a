package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/opsbed/fibsvc/pkg/fibonacci"
	"github.com/opsbed/fibsvc/pkg/logger"
)

var computer *fibonacci.Computer

// SetComputer injects the shared computation instance. Called once at
// startup before the router is served.
func SetComputer(c *fibonacci.Computer) {
	computer = c
}

// Fibonacci handles GET /fibonacci?n=<int>. The route is registered without
// a method restriction so that a disallowed verb goes through the same error
// translation as a bad parameter.
func Fibonacci(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.Ctx(ctx)

	if r.Method != http.MethodGet {
		err := &requestError{
			kind: errMethodNotAllowed,
			msg:  fmt.Sprintf("request method '%s' is not supported on /fibonacci", r.Method),
		}
		log.Warn().Str("method", r.Method).Msg("Unsupported method on /fibonacci")
		TranslateError(ctx, w, err)
		return
	}

	raw := r.URL.Query().Get("n")
	if raw == "" {
		err := &requestError{
			kind: errMissingParam,
			msg:  "required query parameter 'n' is not present",
		}
		log.Warn().Msg("Missing query parameter 'n'")
		TranslateError(ctx, w, err)
		return
	}

	n, parseErr := strconv.ParseInt(raw, 10, 64)
	if parseErr != nil {
		err := &requestError{
			kind: errMalformedParam,
			msg:  fmt.Sprintf("query parameter 'n' must be an integer, got '%s'", raw),
		}
		log.Warn().Str("n", raw).Msg("Malformed query parameter 'n'")
		TranslateError(ctx, w, err)
		return
	}

	result, err := computer.Compute(ctx, n)
	if err != nil {
		if !TranslateError(ctx, w, err) {
			// Not one of ours; generic fault boundary.
			http.Error(w, "internal server error", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, FibonacciResponse{N: n, Result: result})
}
