package config

import (
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/Black-And-White-Club/beauty-contest/app/clock"
	consensusdomain "github.com/Black-And-White-Club/beauty-contest/app/modules/consensus/domain"
)

// Config struct to hold the configuration settings
type Config struct {
	Game          GameConfig          `yaml:"game"`
	Ledger        LedgerConfig        `yaml:"ledger"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	NATS          NATSConfig          `yaml:"nats"`
	HTTP          HTTPConfig          `yaml:"http"`
	JWT           JWTConfig           `yaml:"jwt"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// GameConfig holds the contest parameters and phase windows. Window times are
// kept as written and resolved with Windows.
type GameConfig struct {
	KFactor        string `yaml:"k_factor"`
	AllowedMin     int    `yaml:"allowed_min"`
	AllowedMax     int    `yaml:"allowed_max"`
	CommitDeadline string `yaml:"commit_deadline"`
	RevealOpen     string `yaml:"reveal_open"`
	RevealClose    string `yaml:"reveal_close"`
	Timezone       string `yaml:"timezone"`
}

// LedgerConfig points at the ledger the consensus service reads.
type LedgerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// PostgresConfig holds Postgres configuration.
type PostgresConfig struct {
	DSN string `yaml:"dsn"`
}

// NATSConfig holds NATS configuration. An empty URL selects the in-process bus.
type NATSConfig struct {
	URL string `yaml:"url"`
}

// HTTPConfig holds the API listener settings.
type HTTPConfig struct {
	Addr           string   `yaml:"addr"`
	AllowedOrigins []string `yaml:"allowed_origins"`
	// RatePerMinute limits ledger submissions per client IP.
	RatePerMinute int `yaml:"rate_per_minute"`
}

// JWTConfig holds JWT configuration.
type JWTConfig struct {
	Secret     string        `yaml:"secret"`
	DefaultTTL time.Duration `yaml:"default_ttl"`
}

// ObservabilityConfig holds configuration for observability components
type ObservabilityConfig struct {
	MetricsAddress string `yaml:"metrics_address"`
	LogLevel       string `yaml:"log_level"`
	LogFormat      string `yaml:"log_format"` // json|text
	Environment    string `yaml:"environment"`
}

// Windows are the resolved phase boundaries. Zero means unbounded.
type Windows struct {
	CommitDeadline time.Time
	RevealOpen     time.Time
	RevealClose    time.Time
}

// Defaults fills every unset field.
func (c *Config) Defaults() {
	if c.Game.KFactor == "" {
		c.Game.KFactor = "2/3"
	}
	if c.Game.AllowedMin == 0 && c.Game.AllowedMax == 0 {
		c.Game.AllowedMax = 100
	}
	if c.Game.Timezone == "" {
		c.Game.Timezone = "UTC"
	}
	if c.Ledger.Timeout == 0 {
		c.Ledger.Timeout = 20 * time.Second
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.RatePerMinute == 0 {
		c.HTTP.RatePerMinute = 30
	}
	if c.JWT.DefaultTTL == 0 {
		c.JWT.DefaultTTL = 24 * time.Hour
	}
	if c.Observability.LogLevel == "" {
		c.Observability.LogLevel = "info"
	}
	if c.Observability.LogFormat == "" {
		c.Observability.LogFormat = "json"
	}
}

// LoadConfig loads the configuration from a YAML file.
func LoadConfig(filename string) (*Config, error) {
	// Try reading configuration from the file first
	data, err := os.ReadFile(filename)
	if err != nil {
		// If the file is not found, try loading from environment variables
		return loadConfigFromEnv()
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return &cfg, nil
}

// loadConfigFromEnv loads the configuration from environment variables.
func loadConfigFromEnv() (*Config, error) {
	var cfg Config
	if err := applyEnv(&cfg); err != nil {
		return nil, err
	}
	cfg.Defaults()
	return &cfg, nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Postgres.DSN = v
	}
	if v := os.Getenv("NATS_URL"); v != "" {
		cfg.NATS.URL = v
	}
	if v := os.Getenv("LEDGER_URL"); v != "" {
		cfg.Ledger.URL = v
	}
	if v := os.Getenv("LEDGER_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid LEDGER_TIMEOUT value: %v", err)
		}
		cfg.Ledger.Timeout = d
	}
	if v := os.Getenv("HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("ALLOWED_ORIGINS"); v != "" {
		cfg.HTTP.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("JWT_SECRET"); v != "" {
		cfg.JWT.Secret = v
	}
	if v := os.Getenv("JWT_DEFAULT_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid JWT_DEFAULT_TTL value: %v", err)
		}
		cfg.JWT.DefaultTTL = d
	}
	if v := os.Getenv("K_FACTOR"); v != "" {
		cfg.Game.KFactor = v
	}
	if v := os.Getenv("ALLOWED_MIN"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOWED_MIN value: %v", err)
		}
		cfg.Game.AllowedMin = n
	}
	if v := os.Getenv("ALLOWED_MAX"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid ALLOWED_MAX value: %v", err)
		}
		cfg.Game.AllowedMax = n
	}
	if v := os.Getenv("COMMIT_DEADLINE"); v != "" {
		cfg.Game.CommitDeadline = v
	}
	if v := os.Getenv("REVEAL_OPEN"); v != "" {
		cfg.Game.RevealOpen = v
	}
	if v := os.Getenv("REVEAL_CLOSE"); v != "" {
		cfg.Game.RevealClose = v
	}
	if v := os.Getenv("GAME_TIMEZONE"); v != "" {
		cfg.Game.Timezone = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Observability.LogLevel = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Observability.LogFormat = v
	}
	if v := os.Getenv("METRICS_ADDRESS"); v != "" {
		cfg.Observability.MetricsAddress = v
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Observability.Environment = v
	}
	return nil
}

// ParseKFactor accepts a fraction ("2/3") or a decimal ("0.6667").
func ParseKFactor(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("k_factor is empty")
	}
	r, ok := new(big.Rat).SetString(s)
	if !ok {
		return 0, fmt.Errorf("invalid k_factor %q", s)
	}
	if r.Sign() <= 0 {
		return 0, fmt.Errorf("k_factor must be positive, got %q", s)
	}
	f, _ := r.Float64()
	return f, nil
}

// Windows resolves the configured phase times. Relative phrases are read
// against c in the game timezone.
func (g GameConfig) Windows(c clock.Clock) (Windows, error) {
	loc := time.UTC
	if g.Timezone != "" {
		l, err := time.LoadLocation(g.Timezone)
		if err != nil {
			return Windows{}, fmt.Errorf("failed to load timezone %q: %w", g.Timezone, err)
		}
		loc = l
	}

	var (
		w   Windows
		err error
	)
	if w.CommitDeadline, err = clock.ParseInstant(g.CommitDeadline, c, loc); err != nil {
		return Windows{}, fmt.Errorf("commit_deadline: %w", err)
	}
	if w.RevealOpen, err = clock.ParseInstant(g.RevealOpen, c, loc); err != nil {
		return Windows{}, fmt.Errorf("reveal_open: %w", err)
	}
	if w.RevealClose, err = clock.ParseInstant(g.RevealClose, c, loc); err != nil {
		return Windows{}, fmt.Errorf("reveal_close: %w", err)
	}
	if !w.RevealOpen.IsZero() && !w.RevealClose.IsZero() && w.RevealClose.Before(w.RevealOpen) {
		return Windows{}, fmt.Errorf("reveal_close %s is before reveal_open %s", w.RevealClose, w.RevealOpen)
	}
	return w, nil
}

// Params converts the game section into consensus parameters.
func (g GameConfig) Params() (consensusdomain.Params, error) {
	k, err := ParseKFactor(g.KFactor)
	if err != nil {
		return consensusdomain.Params{}, err
	}
	p := consensusdomain.Params{
		KFactor: k,
		Range:   consensusdomain.Range{Min: g.AllowedMin, Max: g.AllowedMax},
	}
	if err := p.Validate(); err != nil {
		return consensusdomain.Params{}, err
	}
	return p, nil
}
