package config

import (
	"fmt"
	"net/url"
	"time"
)

// DateLayout is the ISO date layout used for selection dates and the default start.
const DateLayout = "2006-01-02"

const minTempHorizon = time.Minute

// Config holds all application configuration settings.
type Config struct {
	Environment string `envconfig:"ENV" default:"development"`

	HTTPPort    int           `envconfig:"HTTP_PORT" default:"8080"`
	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`

	BaseURL      string `envconfig:"BASE_URL" default:"https://data.binance.vision/"`
	OutputDir    string `envconfig:"OUTPUT_DIR" default:"./data"`
	StateFile    string `envconfig:"STATE_FILE" default:"./state/runs.json"`
	ListingsFile string `envconfig:"LISTINGS_FILE" default:""`
	DefaultStart string `envconfig:"DEFAULT_START" default:"2020-01-01"`

	MaxWorkers     int           `envconfig:"MAX_WORKERS" default:"10"`
	MaxRetries     int           `envconfig:"MAX_RETRIES" default:"3"`
	BackoffBase    time.Duration `envconfig:"BACKOFF_BASE" default:"1s"`
	MaxBackoff     time.Duration `envconfig:"MAX_BACKOFF" default:"30s"`
	ConnectTimeout time.Duration `envconfig:"CONNECT_TIMEOUT" default:"10s"`
	AttemptTimeout time.Duration `envconfig:"ATTEMPT_TIMEOUT" default:"5m"`
	MaxFileSize    int64         `envconfig:"MAX_FILE_SIZE" default:"4294967296"`
	RateLimit      float64       `envconfig:"RATE_LIMIT" default:"0"`
	RateBurst      int           `envconfig:"RATE_BURST" default:"10"`
	ProgressEvery  int           `envconfig:"PROGRESS_EVERY" default:"100"`

	DownloadChecksum bool `envconfig:"DOWNLOAD_CHECKSUM" default:"false"`
	VerifyChecksum   bool `envconfig:"VERIFY_CHECKSUM" default:"false"`

	SpotAPIURL     string `envconfig:"SPOT_API_URL" default:""`
	FuturesAPIURL  string `envconfig:"FUTURES_API_URL" default:""`
	DeliveryAPIURL string `envconfig:"DELIVERY_API_URL" default:""`

	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"30s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
}

// Validate checks the configuration for invalid or missing values.
// Returns an error describing the first invalid setting found.
func (c *Config) Validate() error {
	if c.HTTPPort <= 0 || c.HTTPPort > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTPPort)
	}

	if c.MaxWorkers <= 0 {
		return fmt.Errorf("max workers must be positive: %d", c.MaxWorkers)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries cannot be negative: %d", c.MaxRetries)
	}
	if c.BackoffBase <= 0 {
		return fmt.Errorf("backoff base must be positive: %s", c.BackoffBase)
	}
	if c.MaxBackoff < c.BackoffBase {
		return fmt.Errorf("max backoff %s is below backoff base %s", c.MaxBackoff, c.BackoffBase)
	}
	if c.AttemptTimeout <= 0 {
		return fmt.Errorf("attempt timeout must be positive: %s", c.AttemptTimeout)
	}

	if c.MaxFileSize <= 0 {
		return fmt.Errorf("max file size must be positive: %d", c.MaxFileSize)
	}
	if c.RateLimit < 0 {
		return fmt.Errorf("rate limit cannot be negative: %v", c.RateLimit)
	}
	if c.RateLimit > 0 && c.RateBurst < 1 {
		return fmt.Errorf("rate burst must be at least 1 when rate limit is set: %d", c.RateBurst)
	}

	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("invalid base URL: %q", c.BaseURL)
	}
	if _, err := time.Parse(DateLayout, c.DefaultStart); err != nil {
		return fmt.Errorf("invalid default start %q: %w", c.DefaultStart, err)
	}

	if c.OutputDir == "" {
		return fmt.Errorf("output directory cannot be empty")
	}
	if c.StateFile == "" {
		return fmt.Errorf("state file cannot be empty")
	}

	return nil
}

// TempHorizon is how long a temp file may go unmodified before it is treated as
// abandoned. It covers every attempt and backoff a live fetch can spend on one file.
func (c *Config) TempHorizon() time.Duration {
	attempts := time.Duration(c.MaxRetries + 1)
	return max(attempts*(c.AttemptTimeout+c.MaxBackoff), minTempHorizon)
}

// DefaultStartDate returns the parsed default start. Call after Validate.
func (c *Config) DefaultStartDate() time.Time {
	t, _ := time.Parse(DateLayout, c.DefaultStart)
	return t
}
