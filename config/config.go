package config

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/nyaysetu/nyaysetu/monitoring"
	"github.com/nyaysetu/nyaysetu/utils/env"
)

// Config represents the full application configuration
type Config struct {
	// Base URL of the Ollama server. E.g., http://localhost:11434
	LocalBaseUrl string `yaml:"local_base_url"`

	// Ollama model used for generation. E.g., llama3.2
	LocalModel string `yaml:"local_model"`

	// API key to access the HuggingFace Inference API. The remote backend is
	// skipped when empty.
	RemoteApiKey string

	// HuggingFace model id. E.g., microsoft/DialoGPT-medium
	RemoteModel string `yaml:"remote_model"`

	// Base URL of the HuggingFace Inference API.
	RemoteBaseUrl string `yaml:"remote_base_url"`

	// Timeout of the availability probe. E.g., 5s
	ProbeTimeout string `yaml:"probe_timeout"`

	// Timeout of a generation or inference call. E.g., 30s
	GenerateTimeout string `yaml:"generate_timeout"`

	// Interval to refresh the recorded backend availability. "0" disables it. E.g., 5m
	PingInterval string `yaml:"ping_interval"`

	// Valkey (open-source version of Redis) endpoint to share availability between
	// replicas. Availability is kept in memory when empty. E.g., localhost:6379
	ValkeyEndpoint string `yaml:"valkey_endpoint"`

	// API key to access the NyaySetu service. When set, the user should provide this
	// key in the Authorization header with the Bearer scheme.
	ApiKey string

	// Port to listen for incoming requests.
	Port int `yaml:"port"`

	Monitoring monitoring.MonitoringConfig `yaml:"monitoring"`
}

// Durations holds the parsed forms of the textual durations in Config.
type Durations struct {
	Probe    time.Duration
	Generate time.Duration
	Ping     time.Duration
}

// LoadConfig loads the configuration from the specified path. An empty path with no
// CONFIG_SOURCE set skips the YAML layer and uses defaults and environment only.
func LoadConfig(path string, logger *zap.SugaredLogger) (*Config, error) {
	// Setting default values
	config := Config{
		LocalBaseUrl:    "http://localhost:11434",
		LocalModel:      "llama3.2",
		RemoteModel:     "microsoft/DialoGPT-medium",
		RemoteBaseUrl:   "https://api-inference.huggingface.co",
		ProbeTimeout:    "5s",
		GenerateTimeout: "30s",
		PingInterval:    "5m",
		Port:            8082,
		Monitoring: monitoring.MonitoringConfig{
			Enabled: true,
			Prometheus: &monitoring.PrometheusConfig{
				Enabled:   true,
				Path:      "/metrics",
				Namespace: "nyaysetu",
			},
			OpenTelemetry: &monitoring.OpenTelemetryConfig{
				Enabled:        false,
				ServiceName:    "nyaysetu",
				ServiceVersion: "1.0.0",
				Environment:    "production",
				SampleRate:     1.0,
			},
		},
	}

	// Checks if config is specified via environment variable.
	configSource := env.OptionalStringVariable("CONFIG_SOURCE", path)
	configToken := env.OptionalStringVariable("CONFIG_TOKEN", "")
	if configSource != "" {
		configData, err := func(configSource string, configToken string) ([]byte, error) {
			// Handle URL or local path
			if strings.HasPrefix(configSource, "http://") || strings.HasPrefix(configSource, "https://") {
				logger.Infow("Fetching remote config", "url", configSource)
				return fetchRemoteConfig(configSource, configToken)
			}
			logger.Infow("Loading local config", "path", configSource)
			return os.ReadFile(configSource)
		}(configSource, configToken)

		if err != nil {
			return nil, fmt.Errorf("failed to get config data: %w", err)
		}

		// Overrides config with the YAML data.
		if err := yaml.Unmarshal(configData, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	// Overrides config with environment variables.
	// Therefore, the values from the environment variables precede the values from the YAML file.
	var errs []error
	config.LocalBaseUrl = env.OptionalStringVariable("OLLAMA_BASE_URL", config.LocalBaseUrl)
	config.LocalModel = env.OptionalStringVariable("OLLAMA_MODEL", config.LocalModel)
	config.RemoteApiKey = env.OptionalStringVariable("HUGGINGFACE_API_KEY", config.RemoteApiKey)
	config.RemoteModel = env.OptionalStringVariable("HF_MODEL", config.RemoteModel)
	config.RemoteBaseUrl = env.OptionalStringVariable("HF_BASE_URL", config.RemoteBaseUrl)
	config.ValkeyEndpoint = env.OptionalStringVariable("VALKEY_ENDPOINT", config.ValkeyEndpoint)
	config.ApiKey = env.OptionalStringVariable("NYAYSETU_API_KEY", config.ApiKey)

	var err error
	if config.ProbeTimeout, err = env.OptionalDurationVariable("PROBE_TIMEOUT", config.ProbeTimeout); err != nil {
		errs = append(errs, err)
	}
	if config.GenerateTimeout, err = env.OptionalDurationVariable("GENERATE_TIMEOUT", config.GenerateTimeout); err != nil {
		errs = append(errs, err)
	}
	if config.PingInterval, err = env.OptionalDurationVariable("PING_INTERVAL", config.PingInterval); err != nil {
		errs = append(errs, err)
	}
	if config.Port, err = env.OptionalIntVariable("PORT", config.Port); err != nil {
		errs = append(errs, err)
	}
	if config.Monitoring.Prometheus != nil {
		if config.Monitoring.Prometheus.Enabled, err = env.OptionalBoolVariable("PROMETHEUS_ENABLED", config.Monitoring.Prometheus.Enabled); err != nil {
			errs = append(errs, err)
		}
	}
	if endpoint := env.OptionalStringVariable("OTEL_EXPORTER_OTLP_ENDPOINT", ""); endpoint != "" {
		if config.Monitoring.OpenTelemetry == nil {
			config.Monitoring.OpenTelemetry = &monitoring.OpenTelemetryConfig{ServiceName: "nyaysetu", SampleRate: 1.0}
		}
		config.Monitoring.OpenTelemetry.Enabled = true
		config.Monitoring.OpenTelemetry.Endpoint = endpoint
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	// YAML values bypass the environment checks, so every duration is validated here.
	if _, err := config.Durations(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Durations parses the textual durations of the config.
func (c *Config) Durations() (Durations, error) {
	var durations Durations
	var err error
	if durations.Probe, err = parsePositiveDuration("probe_timeout", c.ProbeTimeout); err != nil {
		return Durations{}, err
	}
	if durations.Generate, err = parsePositiveDuration("generate_timeout", c.GenerateTimeout); err != nil {
		return Durations{}, err
	}
	if durations.Ping, err = time.ParseDuration(c.PingInterval); err != nil || durations.Ping < 0 {
		return Durations{}, fmt.Errorf("invalid ping_interval %q", c.PingInterval)
	}
	return durations, nil
}

func parsePositiveDuration(name string, value string) (time.Duration, error) {
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", name, value, err)
	}
	if duration <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", name, value)
	}
	return duration, nil
}

func fetchRemoteConfig(url string, token string) ([]byte, error) {
	client := &http.Client{
		Timeout: 10 * time.Second,
	}

	req, err := http.NewRequest("GET", url, nil)
	if err != nil {
		return nil, err
	}

	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch config: HTTP %d", resp.StatusCode)
	}

	return io.ReadAll(resp.Body)
}
