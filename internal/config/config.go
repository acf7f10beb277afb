package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// SourcesFile is the registry path; empty means the embedded default.
	SourcesFile string

	RefreshInterval time.Duration
	CycleTimeout    time.Duration

	// Fetcher settings.
	RequestTimeout  time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	RetryMaxBackoff time.Duration
	CacheTTL        time.Duration
	CacheSize       int

	MaxEntriesPerSource int
	MaxEvents           int

	// Deduplication settings.
	DedupHorizon    time.Duration
	DedupTimeBucket time.Duration
	DedupThreshold  float64

	// Optional Kafka sink. Enabled defaults to true when brokers are set.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
		SourcesFile:     os.Getenv("SOURCES_FILE"),
		KafkaBrokers:    sharedcfg.ParseBrokers(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "crisis-events"),
	}

	durations := []struct {
		key      string
		fallback string
		dst      *time.Duration
	}{
		{"REFRESH_INTERVAL", "60s", &cfg.RefreshInterval},
		{"CYCLE_TIMEOUT", "45s", &cfg.CycleTimeout},
		{"REQUEST_TIMEOUT", "15s", &cfg.RequestTimeout},
		{"CACHE_TTL", "55s", &cfg.CacheTTL},
		{"DEDUP_HORIZON", "30m", &cfg.DedupHorizon},
		{"DEDUP_TIME_BUCKET", "15m", &cfg.DedupTimeBucket},
	}
	for _, d := range durations {
		if *d.dst, err = parsePositiveDuration(d.key, d.fallback); err != nil {
			return nil, err
		}
	}

	if cfg.RetryBackoff, err = parseDuration("RETRY_BACKOFF", "500ms"); err != nil {
		return nil, err
	}
	if cfg.RetryMaxBackoff, err = parsePositiveDuration("RETRY_MAX_BACKOFF", "5s"); err != nil {
		return nil, err
	}

	ints := []struct {
		key      string
		fallback int
		min      int
		dst      *int
	}{
		{"MAX_RETRIES", 2, 0, &cfg.MaxRetries},
		{"CACHE_SIZE", 256, 1, &cfg.CacheSize},
		{"MAX_ENTRIES_PER_SOURCE", 50, 1, &cfg.MaxEntriesPerSource},
		{"MAX_EVENTS", 500, 1, &cfg.MaxEvents},
	}
	for _, n := range ints {
		if *n.dst, err = parseInt(n.key, n.fallback, n.min); err != nil {
			return nil, err
		}
	}

	if cfg.DedupThreshold, err = parseThreshold(); err != nil {
		return nil, err
	}

	switch v := sharedcfg.EnvOrDefault("KAFKA_ENABLED", "auto"); v {
	case "auto":
		cfg.KafkaEnabled = len(cfg.KafkaBrokers) > 0
	case "true":
		cfg.KafkaEnabled = true
	case "false":
		cfg.KafkaEnabled = false
	default:
		return nil, errors.New("invalid KAFKA_ENABLED: must be auto, true or false")
	}

	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required")
	}
	if cfg.CycleTimeout > cfg.RefreshInterval {
		return nil, errors.New("invalid CYCLE_TIMEOUT: must not exceed REFRESH_INTERVAL")
	}

	return cfg, nil
}

func parseDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d < 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveDuration(key, fallback string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, fallback))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseInt(key string, fallback, minimum int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < minimum {
		return 0, fmt.Errorf("invalid %s: must be an integer >= %d", key, minimum)
	}
	return n, nil
}

func parseThreshold() (float64, error) {
	s := sharedcfg.EnvOrDefault("DEDUP_THRESHOLD", "0.5")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f > 1 {
		return 0, errors.New("invalid DEDUP_THRESHOLD: must be in (0, 1]")
	}
	return f, nil
}
