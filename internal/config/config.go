// Package config loads runtime settings from the environment, with an
// optional .env file underneath it.
//
// Precedence, highest first:
//  1. process environment
//  2. the .env file (if present)
//  3. defaults from LoadDefaults
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config holds runtime settings for the recipe API.
//
// Fields:
//   - Port / DBPath: listen port and SQLite file (":memory:" for throwaway runs).
//   - JWTSecret / TokenTTL: HS256 signing key (>= 16 chars) and token lifetime.
//   - StorageBackend: "local" (MediaRoot served at MediaURL) or "s3".
//   - S3*: bucket settings; S3Endpoint is for MinIO and other non-AWS services.
//   - GitHub*: OAuth app credentials. GitHub login is off unless both ID and secret are set.
type Config struct {
	Port           int
	DBPath         string
	JWTSecret      string
	TokenTTL       time.Duration
	LogLevel       slog.Level
	StorageBackend string
	MediaRoot      string
	MediaURL       string
	MaxUploadBytes int64

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string
	S3PublicURL string

	GitHubClientID     string
	GitHubClientSecret string
	GitHubCallbackURL  string
}

// LoadDefaults populates Config with development defaults. JWTSecret has
// no default: the server refuses to start without one.
func (c *Config) LoadDefaults() {
	c.Port = 8080
	c.DBPath = "data/recipes.db"
	c.TokenTTL = 24 * time.Hour
	c.LogLevel = slog.LevelInfo
	c.StorageBackend = StorageLocal
	c.MediaRoot = "data/media"
	c.MediaURL = "/media/"
	c.MaxUploadBytes = 10 << 20
	c.S3Region = "us-east-1"
}

// GitHubEnabled reports whether GitHub login routes should be registered.
func (c *Config) GitHubEnabled() bool {
	return c.GitHubClientID != "" && c.GitHubClientSecret != ""
}

// Load reads envFile (skipped if it does not exist) and the process
// environment on top of the defaults, then validates the result.
func Load(envFile string) (*Config, error) {
	fileVars := map[string]string{}
	if envFile != "" {
		vars, err := godotenv.Read(envFile)
		switch {
		case err == nil:
			fileVars = vars
		case errors.Is(err, fs.ErrNotExist):
		default:
			return nil, fmt.Errorf("config: reading %s: %w", envFile, err)
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := fileVars[key]
		return v, ok
	}
	return fromLookup(lookup)
}

// fromLookup builds a Config from a key lookup function.
func fromLookup(lookup func(string) (string, bool)) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	var errs []error
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	if v, ok := lookup("PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil || port <= 0 || port > 65535 {
			errs = append(errs, fmt.Errorf("PORT: invalid port %q", v))
		} else {
			cfg.Port = port
		}
	}
	str("DB_PATH", &cfg.DBPath)
	str("JWT_SECRET", &cfg.JWTSecret)
	if v, ok := lookup("TOKEN_TTL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("TOKEN_TTL: invalid duration %q", v))
		} else {
			cfg.TokenTTL = d
		}
	}
	if v, ok := lookup("LOG_LEVEL"); ok && v != "" {
		if err := cfg.LogLevel.UnmarshalText([]byte(v)); err != nil {
			errs = append(errs, fmt.Errorf("LOG_LEVEL: %w", err))
		}
	}
	if v, ok := lookup("STORAGE_BACKEND"); ok && v != "" {
		cfg.StorageBackend = strings.ToLower(v)
	}
	str("MEDIA_ROOT", &cfg.MediaRoot)
	str("MEDIA_URL", &cfg.MediaURL)
	if v, ok := lookup("MAX_UPLOAD_BYTES"); ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			errs = append(errs, fmt.Errorf("MAX_UPLOAD_BYTES: invalid size %q", v))
		} else {
			cfg.MaxUploadBytes = n
		}
	}

	str("S3_BUCKET", &cfg.S3Bucket)
	str("S3_REGION", &cfg.S3Region)
	str("S3_ENDPOINT", &cfg.S3Endpoint)
	str("S3_ACCESS_KEY", &cfg.S3AccessKey)
	str("S3_SECRET_KEY", &cfg.S3SecretKey)
	str("S3_PUBLIC_URL", &cfg.S3PublicURL)

	str("GITHUB_CLIENT_ID", &cfg.GitHubClientID)
	str("GITHUB_CLIENT_SECRET", &cfg.GitHubClientSecret)
	str("GITHUB_CALLBACK_URL", &cfg.GitHubCallbackURL)
	if cfg.GitHubCallbackURL == "" {
		cfg.GitHubCallbackURL = fmt.Sprintf("http://localhost:%d/api/user/github/callback", cfg.Port)
	}

	switch cfg.StorageBackend {
	case StorageLocal:
	case StorageS3:
		if cfg.S3Bucket == "" {
			errs = append(errs, errors.New("S3_BUCKET: required when STORAGE_BACKEND=s3"))
		}
	default:
		errs = append(errs, fmt.Errorf("STORAGE_BACKEND: unknown backend %q", cfg.StorageBackend))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
