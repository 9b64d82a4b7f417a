package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/opsbed/fibsvc/pkg/metrics"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Features  FeatureFlags    `mapstructure:"features"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"readTimeout"`
	WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	IdleTimeout  time.Duration `mapstructure:"idleTimeout"`
}

type FeatureFlags struct {
	EnableProfiling    bool            `mapstructure:"enableProfiling"`
	EnableTracing      bool            `mapstructure:"enableTracing"`
	EnableMetrics      bool            `mapstructure:"enableMetrics"`
	EnableDebugLogging bool            `mapstructure:"enableDebugLogging"`
	ExperimentalFlags  map[string]bool `mapstructure:"experimental"`
}

type TelemetryConfig struct {
	Endpoint       string        `mapstructure:"endpoint"`
	SamplingRate   string        `mapstructure:"samplingRate"`
	MetricInterval time.Duration `mapstructure:"metricInterval"`
}

type LoggingConfig struct {
	Level string     `mapstructure:"level"`
	Loki  LokiConfig `mapstructure:"loki"`
}

type LokiConfig struct {
	Enabled bool              `mapstructure:"enabled"`
	URL     string            `mapstructure:"url"`
	Labels  map[string]string `mapstructure:"labels"`
}

// ConfigManager loads the YAML config, watches it for changes and hands out
// snapshots under a read lock.
type ConfigManager struct {
	mu              sync.RWMutex
	config          *Config
	v               *viper.Viper
	changeCallbacks []func(*Config)
}

func NewConfigManager(configPath string) (*ConfigManager, error) {
	cm := &ConfigManager{
		config: &Config{},
		v:      viper.New(),
	}

	cm.v.SetConfigFile(configPath)
	cm.v.SetConfigType("yaml")

	setDefaults(cm.v)

	if err := cm.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			if _, statErr := os.Stat(configPath); !os.IsNotExist(statErr) {
				return nil, fmt.Errorf("error reading config file: %w", err)
			}
		}
		log.Warn().Str("path", configPath).Msg("Config file not found, using defaults")
	}

	if err := cm.v.Unmarshal(cm.config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	go cm.watchConfigFile(configPath)

	return cm, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", "30s")
	v.SetDefault("server.writeTimeout", "30s")
	v.SetDefault("server.idleTimeout", "120s")

	v.SetDefault("features.enableProfiling", false)
	v.SetDefault("features.enableTracing", true)
	v.SetDefault("features.enableMetrics", true)
	v.SetDefault("features.enableDebugLogging", false)
	v.SetDefault("features.experimental", map[string]bool{})

	v.SetDefault("telemetry.endpoint", "localhost:4317")
	v.SetDefault("telemetry.samplingRate", "1")
	v.SetDefault("telemetry.metricInterval", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.loki.enabled", false)
	v.SetDefault("logging.loki.url", "")
	v.SetDefault("logging.loki.labels", map[string]string{})
}

// watchConfigFile watches both the file and its directory; Kubernetes
// ConfigMap updates arrive as symlink swaps in the directory.
func (cm *ConfigManager) watchConfigFile(configPath string) {
	dir := filepath.Dir(configPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.Error().Err(err).Msg("Failed to create file watcher")
		return
	}
	defer func() {
		if err := watcher.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close file watcher")
		}
	}()

	if err := watcher.Add(dir); err != nil {
		log.Error().Err(err).Str("dir", dir).Msg("Failed to watch config directory")
		return
	}
	if err := watcher.Add(configPath); err != nil {
		log.Debug().Err(err).Str("file", configPath).Msg("Could not watch file directly, watching directory only")
	}

	log.Info().Str("path", configPath).Msg("Watching config file for changes")

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if event.Name != configPath && filepath.Base(event.Name) != "..data" {
				continue
			}

			log.Info().Str("event", event.String()).Msg("Config file change detected")

			// Give the writer a moment to finish.
			time.Sleep(100 * time.Millisecond)

			if err := cm.reloadFromFile(configPath); err != nil {
				log.Error().Err(err).Msg("Failed to reload config")
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Msg("File watcher error")
		}
	}
}

func (cm *ConfigManager) reloadFromFile(configPath string) error {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	newViper := viper.New()
	newViper.SetConfigFile(configPath)
	newViper.SetConfigType("yaml")
	setDefaults(newViper)

	if err := newViper.ReadInConfig(); err != nil {
		if _, statErr := os.Stat(configPath); os.IsNotExist(statErr) {
			log.Debug().Msg("Config file temporarily missing, likely being updated")
			return nil
		}
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("error reading updated config: %w", err)
	}

	newConfig := &Config{}
	if err := newViper.Unmarshal(newConfig); err != nil {
		metrics.ConfigReloads.WithLabelValues("error").Inc()
		return fmt.Errorf("error unmarshaling updated config: %w", err)
	}

	cm.config = newConfig
	cm.v = newViper

	metrics.ConfigReloads.WithLabelValues("success").Inc()
	log.Info().Msg("Configuration reloaded")

	for _, callback := range cm.changeCallbacks {
		go func(cb func(*Config)) {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("Panic in config change callback")
				}
			}()
			cb(newConfig)
		}(callback)
	}

	return nil
}

func (cm *ConfigManager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

func (cm *ConfigManager) OnChange(callback func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.changeCallbacks = append(cm.changeCallbacks, callback)
}

func (cm *ConfigManager) GetServer() ServerConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Server
}

func (cm *ConfigManager) GetFeatures() FeatureFlags {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Features
}

func (cm *ConfigManager) GetTelemetry() TelemetryConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Telemetry
}

func (cm *ConfigManager) GetLogging() LoggingConfig {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config.Logging
}

func (cm *ConfigManager) IsFeatureEnabled(feature string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if val, ok := cm.config.Features.ExperimentalFlags[feature]; ok {
		return val
	}
	return false
}
