// Package config assembles runtime configuration from defaults, an optional
// YAML file, the environment, and command-line flags, in that order of
// precedence.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"
	"golang.org/x/crypto/bcrypt"
)

// Supported storage drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Config holds runtime configuration.
type Config struct {
	Port           string        `koanf:"port"`
	DatabaseDriver string        `koanf:"database_driver"`
	DatabaseURL    string        `koanf:"database_url"`
	SessionSecret  string        `koanf:"session_secret"`
	SessionIssuer  string        `koanf:"session_issuer"`
	SessionTTL     time.Duration `koanf:"session_ttl"`
	SessionCookie  string        `koanf:"session_cookie"`
	SecureCookies  bool          `koanf:"secure_cookies"`
	BcryptCost     int           `koanf:"bcrypt_cost"`
	CORSOrigins    []string      `koanf:"cors_origins"`
	LogFormat      string        `koanf:"log_format"`
	LoginPath      string        `koanf:"login_path"`
	HomePath       string        `koanf:"home_path"`
	AutoMigrate    bool          `koanf:"auto_migrate"`
}

var defaults = map[string]any{
	"port":            "8080",
	"database_driver": DriverPostgres,
	"database_url":    "",
	"session_secret":  "",
	"session_issuer":  "userauth",
	"session_ttl":     60 * time.Minute,
	"session_cookie":  "userauth_session",
	"secure_cookies":  false,
	"bcrypt_cost":     bcrypt.DefaultCost,
	"cors_origins":    []string{"*"},
	"log_format":      "json",
	"login_path":      "/login",
	"home_path":       "/",
	"auto_migrate":    false,
}

// RegisterFlags declares the command-line overrides on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("port", "8080", "HTTP listen port")
	fs.String("database_driver", DriverPostgres, "storage driver: postgres or sqlite")
	fs.String("database_url", "", "database URL, or file path for sqlite")
	fs.Duration("session_ttl", 60*time.Minute, "session lifetime")
	fs.Bool("secure_cookies", false, "mark the session cookie Secure")
	fs.Int("bcrypt_cost", bcrypt.DefaultCost, "bcrypt work factor")
	fs.String("log_format", "json", "log format: json or text")
	fs.Bool("auto_migrate", false, "apply pending migrations on startup")
}

// Load reads configuration. path names an optional YAML file; flags may be nil.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	for key, value := range defaults {
		if err := setKey(k, key, value); err != nil {
			return Config{}, err
		}
	}

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.Code("CONFIG_READ_FAILED").With("path", path).Wrap(err)
		}
	}

	if err := loadEnv(k); err != nil {
		return Config{}, err
	}

	if flags != nil {
		if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
			return Config{}, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return Config{}, oops.Code("CONFIG_INVALID").Wrap(err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// setter is the part of *koanf.Koanf used to overlay values.
type setter interface {
	Set(key string, value any) error
}

func setKey(k setter, key string, value any) error {
	if err := k.Set(key, value); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
	}
	return nil
}

// loadEnv overlays environment variables. Legacy JWT_* names are honoured
// when the SESSION_* equivalents are unset.
func loadEnv(k setter) error {
	strs := map[string]string{
		"port":            os.Getenv("PORT"),
		"database_driver": os.Getenv("DATABASE_DRIVER"),
		"database_url":    os.Getenv("DATABASE_URL"),
		"session_secret":  fallback(os.Getenv("SESSION_SECRET"), os.Getenv("JWT_SECRET")),
		"session_issuer":  fallback(os.Getenv("SESSION_ISSUER"), os.Getenv("JWT_ISSUER")),
		"session_cookie":  os.Getenv("SESSION_COOKIE_NAME"),
		"log_format":      os.Getenv("LOG_FORMAT"),
	}
	for key, value := range strs {
		if value = strings.TrimSpace(value); value == "" {
			continue
		}
		if err := setKey(k, key, value); err != nil {
			return err
		}
	}

	if raw := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS")); raw != "" {
		if err := setKey(k, "cors_origins", parseCSV(raw)); err != nil {
			return err
		}
	}

	minutes := fallback(os.Getenv("SESSION_TTL_MINUTES"), os.Getenv("JWT_TTL_MINUTES"))
	if minutes != "" {
		n, err := strconv.Atoi(minutes)
		if err != nil || n <= 0 {
			return oops.Code("CONFIG_INVALID").With("SESSION_TTL_MINUTES", minutes).Errorf("session TTL must be a positive number of minutes")
		}
		if err := setKey(k, "session_ttl", time.Duration(n)*time.Minute); err != nil {
			return err
		}
	}

	if raw := strings.TrimSpace(os.Getenv("BCRYPT_COST")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			return oops.Code("CONFIG_INVALID").With("BCRYPT_COST", raw).Wrap(err)
		}
		if err := setKey(k, "bcrypt_cost", n); err != nil {
			return err
		}
	}

	for key, name := range map[string]string{"secure_cookies": "SECURE_COOKIES", "auto_migrate": "AUTO_MIGRATE"} {
		raw := strings.TrimSpace(os.Getenv(name))
		if raw == "" {
			continue
		}
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return oops.Code("CONFIG_INVALID").With(name, raw).Wrap(err)
		}
		if err := setKey(k, key, b); err != nil {
			return err
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.DatabaseDriver = strings.ToLower(strings.TrimSpace(c.DatabaseDriver))
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.SessionSecret = strings.TrimSpace(c.SessionSecret)
	if len(c.CORSOrigins) == 0 {
		c.CORSOrigins = []string{"*"}
	}
}

// Validate reports the first configuration problem.
func (c Config) Validate() error {
	switch {
	case c.DatabaseDriver != DriverPostgres && c.DatabaseDriver != DriverSQLite:
		return oops.Code("CONFIG_INVALID").With("database_driver", c.DatabaseDriver).Errorf("unknown database driver %q", c.DatabaseDriver)
	case c.DatabaseURL == "":
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL is required")
	case c.SessionSecret == "":
		return oops.Code("CONFIG_INVALID").Errorf("SESSION_SECRET is required")
	case c.SessionTTL <= 0:
		return oops.Code("CONFIG_INVALID").With("session_ttl", c.SessionTTL).Errorf("session TTL must be positive")
	}
	return nil
}

// HTTPAddress returns the host:port pair for the HTTP server to bind to.
func (c Config) HTTPAddress() string {
	return fmt.Sprintf(":%s", c.Port)
}

func fallback(value, def string) string {
	if strings.TrimSpace(value) == "" {
		return strings.TrimSpace(def)
	}
	return strings.TrimSpace(value)
}

func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	var out []string
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	if len(out) == 0 {
		return []string{"*"}
	}
	return out
}
