package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/witw-events/server/internal/validation"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"

	// MinProductionSecretLength is the shortest JWT_SECRET accepted in production.
	MinProductionSecretLength = 32
)

type Config struct {
	Server      ServerConfig    `yaml:"server"`
	Database    DatabaseConfig  `yaml:"database"`
	Auth        AuthConfig      `yaml:"auth"`
	Geocoding   GeocodingConfig `yaml:"geocoding"`
	Events      EventsConfig    `yaml:"events"`
	RateLimit   RateLimitConfig `yaml:"rate_limit"`
	CORS        CORSConfig      `yaml:"cors"`
	Logging     LoggingConfig   `yaml:"logging"`
	Tracing     TracingConfig   `yaml:"tracing"`
	Environment string          `yaml:"environment"`
}

type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	MaxConnections int    `yaml:"max_connections"`
	// MigrationsPath overrides the migrations embedded in the binary.
	MigrationsPath string `yaml:"migrations_path"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret"`
	JWTExpiry   time.Duration `yaml:"jwt_expiry"`
	JWTIssuer   string        `yaml:"jwt_issuer"`
	BcryptCost  int           `yaml:"bcrypt_cost"`
	ExemptPaths []string      `yaml:"exempt_paths"`
}

type GeocodingConfig struct {
	Enabled        bool          `yaml:"enabled"`
	BaseURL        string        `yaml:"base_url"`
	Email          string        `yaml:"email"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	// RateLimit is requests per second sent to the geocoding API.
	RateLimit float64 `yaml:"rate_limit"`
}

type EventsConfig struct {
	// Timezone names the IANA zone applied to schedules sent without an offset.
	Timezone string `yaml:"timezone"`
}

// Location loads the configured zone. An empty name is UTC.
func (c EventsConfig) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("EVENTS_TIMEZONE: %w", err)
	}
	return loc, nil
}

type RateLimitConfig struct {
	// AuthPerMinute applies per client to login and registration. 0 disables.
	AuthPerMinute int `yaml:"auth_per_minute"`
	// APIPerMinute applies per client to /api routes. 0 disables.
	APIPerMinute      int      `yaml:"api_per_minute"`
	TrustedProxyCIDRs []string `yaml:"trusted_proxy_cidrs"`
}

type CORSConfig struct {
	// AllowAllOrigins reflects any Origin back. Development only.
	AllowAllOrigins bool     `yaml:"allow_all_origins"`
	AllowedOrigins  []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Exporter     string  `yaml:"exporter"`
	ServiceName  string  `yaml:"service_name"`
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Database: DatabaseConfig{
			MaxConnections: 25,
		},
		Auth: AuthConfig{
			JWTExpiry:   24 * time.Hour,
			JWTIssuer:   "witw-events",
			BcryptCost:  12,
			ExemptPaths: []string{"/auth/"},
		},
		Geocoding: GeocodingConfig{
			Enabled:        true,
			BaseURL:        "https://nominatim.openstreetmap.org",
			ConnectTimeout: 2 * time.Second,
			ReadTimeout:    2 * time.Second,
			RateLimit:      1,
		},
		Events: EventsConfig{
			Timezone: "UTC",
		},
		RateLimit: RateLimitConfig{
			AuthPerMinute: 10,
			APIPerMinute:  120,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Exporter:    "none",
			ServiceName: "witw-events",
			SampleRate:  1,
		},
		Environment: EnvDevelopment,
	}
}

// Load builds the configuration from defaults, then the YAML file at path (if
// path is not empty), then environment variables.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	dec := yaml.NewDecoder(f)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	var errs []error
	collect := func(err error) {
		if err != nil {
			errs = append(errs, err)
		}
	}

	setString(&cfg.Environment, "ENVIRONMENT")

	setString(&cfg.Server.Host, "SERVER_HOST")
	collect(setInt(&cfg.Server.Port, "SERVER_PORT"))
	collect(setDuration(&cfg.Server.ShutdownTimeout, "SERVER_SHUTDOWN_TIMEOUT"))

	setString(&cfg.Database.URL, "DATABASE_URL")
	collect(setInt(&cfg.Database.MaxConnections, "DATABASE_MAX_CONNECTIONS"))
	setString(&cfg.Database.MigrationsPath, "MIGRATIONS_PATH")

	setString(&cfg.Auth.JWTSecret, "JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "JWT_ISSUER")
	collect(setInt(&cfg.Auth.BcryptCost, "BCRYPT_COST"))
	if value := os.Getenv("JWT_EXPIRY_HOURS"); value != "" {
		hours, err := strconv.Atoi(value)
		if err != nil {
			collect(fmt.Errorf("JWT_EXPIRY_HOURS: %w", err))
		} else {
			cfg.Auth.JWTExpiry = time.Duration(hours) * time.Hour
		}
	}
	setList(&cfg.Auth.ExemptPaths, "AUTH_EXEMPT_PATHS")

	collect(setBool(&cfg.Geocoding.Enabled, "GEOCODING_ENABLED"))
	setString(&cfg.Geocoding.BaseURL, "GEOCODING_BASE_URL")
	setString(&cfg.Geocoding.Email, "GEOCODING_EMAIL")
	collect(setDuration(&cfg.Geocoding.ConnectTimeout, "GEOCODING_CONNECT_TIMEOUT"))
	collect(setDuration(&cfg.Geocoding.ReadTimeout, "GEOCODING_READ_TIMEOUT"))
	collect(setFloat(&cfg.Geocoding.RateLimit, "GEOCODING_RATE_LIMIT"))

	setString(&cfg.Events.Timezone, "EVENTS_TIMEZONE")

	collect(setInt(&cfg.RateLimit.AuthPerMinute, "RATE_LIMIT_AUTH"))
	collect(setInt(&cfg.RateLimit.APIPerMinute, "RATE_LIMIT_API"))
	setList(&cfg.RateLimit.TrustedProxyCIDRs, "RATE_LIMIT_TRUSTED_PROXIES")

	setList(&cfg.CORS.AllowedOrigins, "CORS_ALLOWED_ORIGINS")
	collect(setBool(&cfg.CORS.AllowAllOrigins, "CORS_ALLOW_ALL_ORIGINS"))

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")

	collect(setBool(&cfg.Tracing.Enabled, "TRACING_ENABLED"))
	setString(&cfg.Tracing.Exporter, "TRACING_EXPORTER")
	setString(&cfg.Tracing.ServiceName, "TRACING_SERVICE_NAME")
	setString(&cfg.Tracing.OTLPEndpoint, "TRACING_OTLP_ENDPOINT")
	collect(setFloat(&cfg.Tracing.SampleRate, "TRACING_SAMPLE_RATE"))

	return errors.Join(errs...)
}

// Validate checks the settings every command needs. DATABASE_URL is checked
// by the commands that open a database.
func (c Config) Validate() error {
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	if c.IsProduction() && len(c.Auth.JWTSecret) < MinProductionSecretLength {
		return fmt.Errorf("JWT_SECRET must be at least %d bytes in production", MinProductionSecretLength)
	}
	if c.Auth.JWTExpiry <= 0 {
		return fmt.Errorf("JWT_EXPIRY_HOURS must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("SERVER_PORT %d is out of range", c.Server.Port)
	}
	if c.IsProduction() && c.CORS.AllowAllOrigins {
		return fmt.Errorf("CORS_ALLOW_ALL_ORIGINS must not be set in production")
	}
	if c.Geocoding.Enabled {
		if err := validation.BaseURL("GEOCODING_BASE_URL", c.Geocoding.BaseURL, c.IsProduction()); err != nil {
			return err
		}
	}
	if _, err := c.Events.Location(); err != nil {
		return err
	}
	return nil
}

func (c Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, EnvProduction)
}

// Addr is the listen address of the HTTP server.
func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func setString(dst *string, key string) {
	if value := os.Getenv(key); value != "" {
		*dst = value
	}
}

func setList(dst *[]string, key string) {
	value := os.Getenv(key)
	if value == "" {
		return
	}
	var items []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	*dst = items
}

func setInt(dst *int, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setFloat(dst *float64, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setBool(dst *bool, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = parsed
	return nil
}
