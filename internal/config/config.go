// Package config loads server configuration from the environment.
// An optional .env file is read first; real environment variables win.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Prefix is prepended to every variable name.
const Prefix = "AJO_"

// Config holds the server settings.
type Config struct {
	Port            int           `env:"PORT" envDefault:"8080" validate:"min=1,max=65535"`
	Storage         string        `env:"STORAGE" envDefault:"sqlite" validate:"oneof=sqlite memory"`
	DBPath          string        `env:"DB_PATH" envDefault:"./data/ajo.db" validate:"required_if=Storage sqlite"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat       string        `env:"LOG_FORMAT" envDefault:"text" validate:"oneof=text json"`
	JWTSecret       string        `env:"JWT_SECRET" validate:"required,min=16"`
	TokenTTL        time.Duration `env:"TOKEN_TTL" envDefault:"24h" validate:"gt=0"`
	PublicReads     bool          `env:"PUBLIC_READS" envDefault:"true"`
	PayoutPolicy    string        `env:"PAYOUT_POLICY" envDefault:"collected" validate:"oneof=collected full-or-expired"`
	RefundVoting    time.Duration `env:"REFUND_VOTING_PERIOD" envDefault:"168h" validate:"gte=1s"`
	OTelEndpoint    string        `env:"OTEL_ENDPOINT" validate:"omitempty,url"`
	OTelSampleRatio float64       `env:"OTEL_SAMPLE_RATIO" envDefault:"1" validate:"gte=0,lte=1"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s" validate:"gt=0"`
}

var validate = validator.New()

// Load reads dotenvFiles (missing files are skipped), parses the AJO_
// environment and validates the result.
func Load(dotenvFiles ...string) (*Config, error) {
	if len(dotenvFiles) == 0 {
		dotenvFiles = []string{".env"}
	}
	for _, f := range dotenvFiles {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", f, err)
		}
	}

	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: Prefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Addr returns the listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf(":%d", c.Port)
}
