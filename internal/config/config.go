// Package config loads the server's settings once at startup.
//
// Priority (highest to lowest):
//  1. Environment variables with the JOBTRACKER_ prefix (JOBTRACKER_JWT_SECRET, ...)
//  2. An optional config file (--config flag or JOBTRACKER_CONFIG; yaml, json or toml)
//  3. Built-in defaults
//
// The result is a plain Config value. Nothing reads the environment after
// Load returns, so every component sees the same settings for the life of
// the process.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "JOBTRACKER"

// Config holds all server settings.
type Config struct {
	Port   int
	DBPath string

	// JWTSecret signs session tokens. Required, at least 16 characters.
	JWTSecret string

	// AllowedOrigins is the CORS allow-list. Browsers on any other origin
	// are refused.
	AllowedOrigins []string

	// GoogleClientID enables POST /users/auth/google-login.
	// GoogleClientSecret additionally enables the redirect/callback flow.
	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	RateLimit RateLimitConfig

	LogLevel  string // debug, info, warn, error
	LogFormat string // text, json
}

// RateLimitConfig is a token bucket per client IP.
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// keys maps each viper key to the environment variable that overrides it.
// Config-file keys are the camelCase names on the left.
var keys = map[string]string{
	"port":                        "PORT",
	"dbPath":                      "DB_PATH",
	"jwtSecret":                   "JWT_SECRET",
	"allowedOrigins":              "ALLOWED_ORIGINS",
	"googleClientId":              "GOOGLE_CLIENT_ID",
	"googleClientSecret":          "GOOGLE_CLIENT_SECRET",
	"googleCallbackUrl":           "GOOGLE_CALLBACK_URL",
	"rateLimit.requestsPerSecond": "RATE_LIMIT_REQUESTS_PER_SECOND",
	"rateLimit.burst":             "RATE_LIMIT_BURST",
	"logLevel":                    "LOG_LEVEL",
	"logFormat":                   "LOG_FORMAT",
}

// Load reads defaults, then configFile (if non-empty, else $JOBTRACKER_CONFIG),
// then the environment, and validates the result.
func Load(configFile string) (Config, error) {
	v := viper.New()

	v.SetDefault("port", 8080)
	v.SetDefault("dbPath", "data/jobtracker.db")
	v.SetDefault("allowedOrigins", []string{"http://localhost:3000"})
	v.SetDefault("rateLimit.requestsPerSecond", 10.0)
	v.SetDefault("rateLimit.burst", 20)
	v.SetDefault("logLevel", "info")
	v.SetDefault("logFormat", "text")

	if configFile == "" {
		configFile = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configFile, err)
		}
	}

	// AutomaticEnv would derive JOBTRACKER_JWTSECRET from "jwtSecret";
	// binding each key explicitly gives the underscored names instead.
	for key, env := range keys {
		if err := v.BindEnv(key, EnvPrefix+"_"+env); err != nil {
			return Config{}, fmt.Errorf("config: binding %s: %w", key, err)
		}
	}

	cfg := Config{
		Port:               v.GetInt("port"),
		DBPath:             v.GetString("dbPath"),
		JWTSecret:          v.GetString("jwtSecret"),
		AllowedOrigins:     stringList(v, "allowedOrigins"),
		GoogleClientID:     v.GetString("googleClientId"),
		GoogleClientSecret: v.GetString("googleClientSecret"),
		GoogleCallbackURL:  v.GetString("googleCallbackUrl"),
		RateLimit: RateLimitConfig{
			RequestsPerSecond: v.GetFloat64("rateLimit.requestsPerSecond"),
			Burst:             v.GetInt("rateLimit.burst"),
		},
		LogLevel:  strings.ToLower(v.GetString("logLevel")),
		LogFormat: strings.ToLower(v.GetString("logFormat")),
	}

	if cfg.GoogleCallbackURL == "" {
		cfg.GoogleCallbackURL = fmt.Sprintf("http://localhost:%d/users/auth/google/callback", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// stringList accepts both a real list (config file, defaults) and a
// comma-separated string (environment).
func stringList(v *viper.Viper, key string) []string {
	raw, ok := v.Get(key).(string)
	if !ok {
		return slices.Clone(v.GetStringSlice(key))
	}

	var out []string
	for _, s := range strings.Split(raw, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Validate reports every setting the server cannot start with.
func (c Config) Validate() error {
	var errs []error

	if c.JWTSecret == "" {
		errs = append(errs, errors.New("jwtSecret is required"))
	} else if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwtSecret must be at least 16 characters"))
	}
	if c.Port < 1 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port %d is out of range", c.Port))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("dbPath is required"))
	}
	if c.RateLimit.RequestsPerSecond <= 0 || c.RateLimit.Burst < 1 {
		errs = append(errs, errors.New("rateLimit needs requestsPerSecond > 0 and burst >= 1"))
	}
	if c.GoogleClientSecret != "" && c.GoogleClientID == "" {
		errs = append(errs, errors.New("googleClientSecret is set without googleClientId"))
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Errorf("logFormat %q must be text or json", c.LogFormat))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// GoogleLoginEnabled reports whether Google ID tokens can be verified.
func (c Config) GoogleLoginEnabled() bool {
	return c.GoogleClientID != ""
}

// GoogleRedirectEnabled reports whether the authorization-code flow is configured.
func (c Config) GoogleRedirectEnabled() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

// SlogLevel converts LogLevel for slog.HandlerOptions. Invalid levels were
// rejected by Validate, so the fallback is never reached for a loaded Config.
func (c Config) SlogLevel() slog.Level {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		return slog.LevelInfo
	}
	return level
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("logLevel %q: %w", s, err)
	}
	return level, nil
}
