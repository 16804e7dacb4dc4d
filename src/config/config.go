// Package config reads process settings from the environment, optionally
// seeded from a dotenv file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/time/rate"

	"commvault-ops/src/cvapi"
	"commvault-ops/src/endpoint"
)

// DefaultEnvFile is loaded when present and no other file is named.
const DefaultEnvFile = ".env"

const (
	EnvHostname      = "CV_WEBCONSOLE_HOSTNAME"
	EnvUsername      = "CV_USERNAME"
	EnvPassword      = "CV_PASSWORD"
	EnvAuthToken     = "CV_AUTHTOKEN"
	EnvLogLevel      = "CV_LOG_LEVEL"
	EnvLogFormat     = "CV_LOG_FORMAT"
	EnvHTTPTimeout   = "CV_HTTP_TIMEOUT"
	EnvInsecure      = "CV_INSECURE_SKIP_VERIFY"
	EnvScheme        = "CV_SCHEME"
	EnvAPIPath       = "CV_API_PATH"
	EnvRateLimit     = "CV_RATE_LIMIT"
	defaultTimeout   = 60 * time.Second
	defaultRateLimit = 5
	defaultLogLevel  = "info"
	defaultLogFormat = "text"
)

// Config holds every environment-driven setting.
type Config struct {
	// Credentials fill login fields the input record leaves empty.
	Credentials        cvapi.Credentials
	LogLevel           string
	LogFormat          string
	HTTPTimeout        time.Duration
	InsecureSkipVerify bool
	Endpoint           endpoint.Defaults
	RateLimit          rate.Limit
}

// Load reads envFile into the environment without overriding variables that
// are already set, then builds a Config. An empty envFile means
// DefaultEnvFile, which may be absent; a named file must exist.
func Load(envFile string) (Config, error) {
	path := envFile
	if path == "" {
		path = DefaultEnvFile
	}
	if err := godotenv.Load(path); err != nil {
		if envFile != "" || !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment.
func FromEnv() (Config, error) {
	cfg := Config{
		Credentials: cvapi.Credentials{
			Hostname:  os.Getenv(EnvHostname),
			Username:  os.Getenv(EnvUsername),
			Password:  os.Getenv(EnvPassword),
			AuthToken: os.Getenv(EnvAuthToken),
		},
		LogLevel:    envOr(EnvLogLevel, defaultLogLevel),
		LogFormat:   envOr(EnvLogFormat, defaultLogFormat),
		HTTPTimeout: defaultTimeout,
		Endpoint: endpoint.Defaults{
			Scheme:  envOr(EnvScheme, endpoint.DefaultScheme),
			APIPath: envOr(EnvAPIPath, endpoint.DefaultAPIPath),
		},
		RateLimit: defaultRateLimit,
	}
	if !endpoint.IsSupported(cfg.Endpoint.Scheme) {
		return Config{}, fmt.Errorf("%s: unsupported scheme %q", EnvScheme, cfg.Endpoint.Scheme)
	}
	if v := os.Getenv(EnvHTTPTimeout); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("%s: invalid duration %q", EnvHTTPTimeout, v)
		}
		cfg.HTTPTimeout = d
	}
	if v := os.Getenv(EnvInsecure); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("%s: invalid boolean %q", EnvInsecure, v)
		}
		cfg.InsecureSkipVerify = b
	}
	if v := os.Getenv(EnvRateLimit); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return Config{}, fmt.Errorf("%s: must be a positive number, got %q", EnvRateLimit, v)
		}
		cfg.RateLimit = rate.Limit(f)
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}
