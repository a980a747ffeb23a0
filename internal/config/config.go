// Package config manages environment variables.
//
// It reads variables from the process environment (and a `.env` file
// when present), loads them into structured Go types, and validates
// that required values are present so they can be reused across the
// application runtime.
//
// Responsibilities:
//   - Load environment variables (optionally from a `.env` file).
//   - Map both the legacy flat names (DB_HOST, SECRET_KEY, ...) and the
//     prefixed nested names (RECORDSTORE_DATABASE__SSL_MODE) into Config.
//   - Validate required values so the app fails fast on bad/missing config.
//   - Resolve the database connection string; the record store never sees
//     raw settings.
package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	// Side-effect import: if a `.env` file exists in the working directory it
	// is loaded into the process env before any variable is read.
	_ "github.com/joho/godotenv/autoload"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix is the prefix for every nested setting read from the environment.
//
// Nesting uses a double underscore so that single underscores can remain part
// of a key name:
//
//	RECORDSTORE_DATABASE__SSL_MODE -> database.ssl_mode
const EnvPrefix = "RECORDSTORE_"

// legacyKeys maps the flat variable names used by older deployments
// onto their koanf key paths.
var legacyKeys = map[string]string{
	"DB_HOST":     "database.host",
	"DB_PORT":     "database.port",
	"DB_NAME":     "database.name",
	"DB_USER":     "database.user",
	"DB_PASSWORD": "database.password",
	"SECRET_KEY":  "auth.secret_key",
	"ALGORITHM":   "auth.algorithm",
}

// Config is the root configuration object for the application.
//
// The `koanf:"..."` tags specify where koanf maps values from.
// The `validate:"..."` tags are enforced by go-playground/validator.
type Config struct {
	Primary       Primary             `koanf:"primary" validate:"required"`
	Database      DatabaseConfig      `koanf:"database" validate:"required"`
	Auth          AuthConfig          `koanf:"auth"`
	Observability ObservabilityConfig `koanf:"observability" validate:"required"`
}

// Primary holds top-level information about the runtime environment.
type Primary struct {
	Env string `koanf:"env" validate:"required"`
}

// DatabaseConfig contains PostgreSQL connection parameters and pool tuning.
//
// Pool durations are seconds.
type DatabaseConfig struct {
	Host            string `koanf:"host" validate:"required"`
	Port            int    `koanf:"port" validate:"required,min=1,max=65535"`
	User            string `koanf:"user" validate:"required"`
	Password        string `koanf:"password"`
	Name            string `koanf:"name" validate:"required"`
	SSLMode         string `koanf:"ssl_mode" validate:"required,oneof=disable allow prefer require verify-ca verify-full"`
	MaxConns        int    `koanf:"max_conns" validate:"min=1"`
	MinConns        int    `koanf:"min_conns" validate:"min=0"`
	ConnMaxLifetime int    `koanf:"conn_max_lifetime" validate:"min=0"`
	ConnMaxIdleTime int    `koanf:"conn_max_idle_time" validate:"min=0"`
}

// DSN builds the postgres URL for this configuration.
//
// Host and port are joined with net.JoinHostPort so IPv6 hosts get brackets,
// and the password is escaped so characters like ':' or '@' do not break
// the URL structure.
func (c DatabaseConfig) DSN() string {
	hostPort := net.JoinHostPort(c.Host, strconv.Itoa(c.Port))

	userInfo := url.User(c.User)
	if c.Password != "" {
		userInfo = url.UserPassword(c.User, c.Password)
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     userInfo,
		Host:     hostPort,
		Path:     "/" + c.Name,
		RawQuery: "sslmode=" + url.QueryEscape(c.SSLMode),
	}
	return u.String()
}

// AuthConfig stores authentication-related secrets.
//
// Both values are opaque and optional here: nothing in this module issues or
// verifies tokens, they are only handed through to whoever does.
type AuthConfig struct {
	SecretKey string `koanf:"secret_key"`
	Algorithm string `koanf:"algorithm"`
}

// AuthData returns the secret/algorithm pair unmodified.
func (c *Config) AuthData() AuthConfig {
	return c.Auth
}

// DefaultConfig returns the values used for every setting the environment
// does not provide.
func DefaultConfig() Config {
	return Config{
		Primary: Primary{Env: "development"},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			SSLMode:         "disable",
			MaxConns:        10,
			MinConns:        0,
			ConnMaxLifetime: 3600,
			ConnMaxIdleTime: 300,
		},
		Auth:          AuthConfig{Algorithm: "HS256"},
		Observability: DefaultObservabilityConfig(),
	}
}

// envKey converts an environment variable name into a koanf key path.
// Variables that belong to neither naming scheme return "" and are skipped.
func envKey(name string) string {
	if key, ok := legacyKeys[name]; ok {
		return key
	}
	if !strings.HasPrefix(name, EnvPrefix) {
		return ""
	}
	trimmed := strings.TrimPrefix(name, EnvPrefix)
	return strings.ToLower(strings.ReplaceAll(trimmed, "__", "."))
}

// LoadConfig loads configuration from defaults and environment variables,
// unmarshals it into Config, validates it and returns the result.
//
// Layering order (later wins):
//  1. DefaultConfig()
//  2. environment variables (legacy names and RECORDSTORE_ prefixed names)
func LoadConfig() (*Config, error) {
	// "." is the key-path delimiter koanf uses to represent nesting.
	k := koanf.New(".")

	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading config defaults: %w", err)
	}

	// An empty prefix lets the callback see every variable; it keeps only
	// the names envKey recognizes.
	if err := k.Load(env.Provider("", ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env variables: %w", err)
	}

	mainConfig := &Config{}
	if err := k.Unmarshal("", mainConfig); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	validate := validator.New()
	if err := validate.Struct(mainConfig); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	// Service name and environment always follow the primary config so that
	// logs and traces carry consistent labels.
	mainConfig.Observability.ServiceName = "recordstore"
	mainConfig.Observability.Environment = mainConfig.Primary.Env

	if err := mainConfig.Observability.Validate(); err != nil {
		return nil, fmt.Errorf("invalid observability config: %w", err)
	}

	return mainConfig, nil
}
