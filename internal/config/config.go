package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/sirupsen/logrus"
)

// EnvPrefix is prepended to every client setting, e.g. DELEGATION_API_BASE_URL.
const EnvPrefix = "DELEGATION"

// Config holds the client settings.
type Config struct {
	APIBaseURL string `envconfig:"API_BASE_URL" default:"http://localhost:8000/api"`
	PushURL    string `envconfig:"PUSH_URL" default:"ws://localhost:8000/ws/updates/"`

	AuthScheme string `envconfig:"AUTH_SCHEME" default:"Token"`
	Token      string `envconfig:"TOKEN"`
	Username   string `envconfig:"USERNAME"`
	Password   string `envconfig:"PASSWORD"`

	RequestTimeout       time.Duration `envconfig:"REQUEST_TIMEOUT" default:"10s"`
	ReconnectDelay       time.Duration `envconfig:"RECONNECT_DELAY" default:"3s"`
	ReconnectMaxAttempts int           `envconfig:"RECONNECT_MAX_ATTEMPTS" default:"5"`
	DebounceWindow       time.Duration `envconfig:"DEBOUNCE_WINDOW" default:"300ms"`

	LogFile     string `envconfig:"LOG_FILE"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// LoadDotEnv loads .env if present.
func LoadDotEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found, relying on env vars")
	}
}

// Load reads .env (if present) and the environment into a Config.
func Load() (*Config, error) {
	LoadDotEnv()
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if u, err := url.Parse(c.APIBaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("invalid API base URL %q", c.APIBaseURL))
	}
	if u, err := url.Parse(c.PushURL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, fmt.Errorf("invalid push URL %q", c.PushURL))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, errors.New("request timeout must be positive"))
	}
	if c.ReconnectDelay <= 0 {
		errs = append(errs, errors.New("reconnect delay must be positive"))
	}
	if c.ReconnectMaxAttempts < 1 {
		errs = append(errs, errors.New("reconnect attempts must be at least 1"))
	}
	if c.DebounceWindow < 0 {
		errs = append(errs, errors.New("debounce window must not be negative"))
	}
	return errors.Join(errs...)
}
