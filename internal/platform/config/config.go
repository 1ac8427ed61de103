// Package config loads connector configuration from environment variables so
// main stays lean.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config captures process-level configuration. Optional backends (postgres,
// redis, kafka) are enabled by presence of their settings; stores fall back
// to in-memory implementations when absent.
type Config struct {
	Addr string `env:"OBCONNECT_ADDR" envDefault:":8080"`

	PostgresDSN string        `env:"OBCONNECT_POSTGRES_DSN"`
	RedisURL    string        `env:"OBCONNECT_REDIS_URL"`
	KafkaSeeds  []string      `env:"OBCONNECT_KAFKA_SEEDS" envSeparator:","`
	AuditTopic  string        `env:"OBCONNECT_AUDIT_TOPIC" envDefault:"obconnect.consent.audit"`
	HTTPTimeout time.Duration `env:"OBCONNECT_HTTP_TIMEOUT" envDefault:"30s"`

	// Software statement identity used in JOSE headers and registrations.
	OrganisationID      string   `env:"OBCONNECT_ORGANISATION_ID"`
	SoftwareID          string   `env:"OBCONNECT_SOFTWARE_ID"`
	CertificateIDs      []string `env:"OBCONNECT_CERTIFICATE_IDS" envSeparator:","`
	QueryRedirectURL    string   `env:"OBCONNECT_QUERY_REDIRECT_URL"`
	FragmentRedirectURL string   `env:"OBCONNECT_FRAGMENT_REDIRECT_URL"`

	SigningKeyID   string `env:"OBCONNECT_SIGNING_KEY_ID"`
	SigningKeyFile string `env:"OBCONNECT_SIGNING_KEY_FILE"`
	SigningCert    string `env:"OBCONNECT_SIGNING_CERT_FILE"`
}

// Load parses configuration from the environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
