package config

import (
	"fmt"
	"time"
)

// Config holds all application configuration settings, read once at startup.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	// Network settings for the download engine. Names match the
	// documented external environment variables verbatim.
	NetworkTimeout      time.Duration `envconfig:"NETWORK_TIMEOUT" default:"900s"`
	NetworkReadTimeout  time.Duration `envconfig:"NETWORK_READ_TIMEOUT" default:"60s"`
	NetworkMaxRetries   int           `envconfig:"NETWORK_MAX_RETRIES" default:"5"`
	NetworkRetryBackoff float64       `envconfig:"NETWORK_RETRY_BACKOFF" default:"2.0"`

	MaxWorkers    int `envconfig:"MAX_WORKERS" default:"8"`
	ChunkSizeKiB  int `envconfig:"CHUNK_SIZE_KIB" default:"64"`
	ParseBatch    int `envconfig:"PARSE_BATCH_SIZE" default:"10000"`
	WriterBatch   int `envconfig:"WRITER_BATCH_SIZE" default:"50000"`
	ExtractBatch  int `envconfig:"EXTRACT_BATCH_SIZE" default:"50000"`
	FastZipLimit  int `envconfig:"FAST_ZIP_CONCURRENCY" default:"10"`
	SlowZipLimit  int `envconfig:"SLOW_ZIP_CONCURRENCY" default:"2"`

	DownloadDir string `envconfig:"DOWNLOAD_DIR" default:"./data/downloads"`
	OutputDir   string `envconfig:"OUTPUT_DIR" default:"./data/parquet"`

	// ResourceLimits thresholds, see internal/resource.Limits.
	MemWarningPct      float64       `envconfig:"MEM_WARNING_PCT" default:"70"`
	MemCriticalPct     float64       `envconfig:"MEM_CRITICAL_PCT" default:"85"`
	MemExhaustedPct    float64       `envconfig:"MEM_EXHAUSTED_PCT" default:"95"`
	CPUWarningPct      float64       `envconfig:"CPU_WARNING_PCT" default:"80"`
	CPUCriticalPct     float64       `envconfig:"CPU_CRITICAL_PCT" default:"90"`
	MinFreeMemoryMB    int64         `envconfig:"MIN_FREE_MEMORY_MB" default:"100"`
	AutoGCOnWarning    bool          `envconfig:"AUTO_GC_ON_WARNING" default:"true"`
	BreakerCooldown    time.Duration `envconfig:"CIRCUIT_BREAKER_COOLDOWN" default:"10s"`
	BreakerEnabled     bool          `envconfig:"CIRCUIT_BREAKER_ENABLED" default:"true"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"json"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive: %d", c.MaxWorkers)
	}
	if c.NetworkMaxRetries < 0 {
		return fmt.Errorf("network max retries must be non-negative: %d", c.NetworkMaxRetries)
	}
	if c.NetworkRetryBackoff <= 1.0 {
		return fmt.Errorf("network retry backoff multiplier must be > 1.0: %f", c.NetworkRetryBackoff)
	}
	if c.DownloadDir == "" {
		return fmt.Errorf("download directory cannot be empty")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.MemWarningPct >= c.MemCriticalPct || c.MemCriticalPct >= c.MemExhaustedPct {
		return fmt.Errorf("memory thresholds must be strictly increasing: %.1f < %.1f < %.1f",
			c.MemWarningPct, c.MemCriticalPct, c.MemExhaustedPct)
	}
	if c.CPUWarningPct >= c.CPUCriticalPct {
		return fmt.Errorf("cpu thresholds must be strictly increasing: %.1f < %.1f", c.CPUWarningPct, c.CPUCriticalPct)
	}
	return nil
}
