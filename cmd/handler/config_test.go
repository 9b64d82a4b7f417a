package handler

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gorilla/mux"
	"github.com/opsbed/fibsvc/pkg/config"
)

func setupConfig(t *testing.T) {
	t.Helper()
	cm, err := config.NewConfigManager(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("NewConfigManager returned error: %v", err)
	}
	SetConfigManager(cm)
}

func TestCheckFeature(t *testing.T) {
	setupConfig(t)

	r := mux.NewRouter()
	r.HandleFunc("/config/feature/{feature}", CheckFeature)

	cases := []struct {
		feature string
		want    bool
	}{
		{"tracing", true},
		{"metrics", true},
		{"profiling", false},
		{"unknownFlag", false},
	}

	for _, tc := range cases {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/config/feature/"+tc.feature, nil)
		r.ServeHTTP(w, req)

		if w.Code != http.StatusOK {
			t.Errorf("feature %s: expected 200, got %d", tc.feature, w.Code)
			continue
		}

		var body map[string]interface{}
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Errorf("feature %s: decoding body: %v", tc.feature, err)
			continue
		}
		if got, ok := body["enabled"].(bool); !ok || got != tc.want {
			t.Errorf("feature %s: enabled = %v, want %v", tc.feature, body["enabled"], tc.want)
		}
	}
}

func TestGetConfig(t *testing.T) {
	setupConfig(t)

	w := httptest.NewRecorder()
	GetConfig(w, httptest.NewRequest(http.MethodGet, "/config", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}
}
