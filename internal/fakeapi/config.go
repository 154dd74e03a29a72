package fakeapi

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"

	"delegation_sync/internal/config"
)

// EnvPrefix is prepended to every backend setting, e.g. FAKEAPI_ADDR.
const EnvPrefix = "FAKEAPI"

type Config struct {
	Addr          string        `envconfig:"ADDR" default:":8000"`
	JWTSecret     string        `envconfig:"JWT_SECRET" default:"supersecret"`
	TokenTTL      time.Duration `envconfig:"TOKEN_TTL" default:"72h"`
	AdminUser     string        `envconfig:"ADMIN_USER" default:"admin"`
	AdminPassword string        `envconfig:"ADMIN_PASSWORD" default:"admin"`
	AdminRole     string        `envconfig:"ADMIN_ROLE" default:"super_admin"`
	// PageSize applies when a list is requested with ?page=.
	PageSize int `envconfig:"PAGE_SIZE" default:"50"`

	LogFile  string `envconfig:"LOG_FILE"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`

	// Database settings read as FAKEAPI_DB_*.
	config.Database
}

// LoadConfig reads .env (if present) and the FAKEAPI_ environment.
func LoadConfig() (*Config, error) {
	config.LoadDotEnv()
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return &cfg, nil
}
