package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractEndpoint(t *testing.T) {
	cases := []struct {
		path string
		want string
	}{
		{"/fibonacci", "/fibonacci"},
		{"/health", "/health"},
		{"/metrics", "/metrics"},
		{"/config", "/config"},
		{"/config/feature/tracing", "/config/feature/{feature}"},
		{"/nope", "unknown"},
	}

	for _, tc := range cases {
		if got := extractEndpoint(tc.path); got != tc.want {
			t.Errorf("extractEndpoint(%q) = %q, want %q", tc.path, got, tc.want)
		}
	}
}

func TestHTTPMetricsMiddleware_PreservesStatus(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/fibonacci", nil)

	HTTPMetricsMiddleware(inner).ServeHTTP(w, req)

	if w.Code != http.StatusTeapot {
		t.Errorf("Expected middleware to pass through status 418, got %d", w.Code)
	}
}
