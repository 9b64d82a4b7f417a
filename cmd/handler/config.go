package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/opsbed/fibsvc/pkg/config"
	"github.com/opsbed/fibsvc/pkg/logger"
)

var configManager *config.ConfigManager

func SetConfigManager(cm *config.ConfigManager) {
	configManager = cm
}

func GetConfig(w http.ResponseWriter, r *http.Request) {
	if configManager == nil {
		http.Error(w, "Configuration manager not initialized", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, configManager.Get())
}

func CheckFeature(w http.ResponseWriter, r *http.Request) {
	log := logger.Get()
	feature := mux.Vars(r)["feature"]

	if configManager == nil {
		http.Error(w, "Configuration manager not initialized", http.StatusInternalServerError)
		return
	}

	var enabled bool
	cfg := configManager.GetFeatures()

	switch feature {
	case "profiling":
		enabled = cfg.EnableProfiling
	case "tracing":
		enabled = cfg.EnableTracing
	case "metrics":
		enabled = cfg.EnableMetrics
	case "debug":
		enabled = cfg.EnableDebugLogging
	default:
		enabled = configManager.IsFeatureEnabled(feature)
	}

	log.Info().
		Str("feature", feature).
		Bool("enabled", enabled).
		Msg("Feature flag checked")

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"feature": feature,
		"enabled": enabled,
	})
}
