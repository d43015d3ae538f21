// Package config loads the ambient environment configuration (§6's
// "Environment inputs" / SPEC_FULL.md §10.3) through the same two-library
// pipeline the teacher uses in runtime/config.go: creasty/defaults for
// struct-tag defaults, then go-playground/validator/v10 for declarative
// validation, including a url_format validator reused verbatim for HA_URL.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterValidation("url_format", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		u, err := url.Parse(s)
		return err == nil && u.Scheme != "" && u.Host != ""
	})
	return v
}

// Config is the process-wide environment configuration. Field names mirror
// §6's "Environment inputs" table exactly.
type Config struct {
	HAURL         string        `default:"" validate:"omitempty,url_format" env:"HA_URL"`
	HAToken       string        `env:"HA_TOKEN"`
	HATimeoutMs   int           `default:"8000" validate:"gt=0" env:"HA_TIMEOUT_MS"`
	AuthentikURL  string        `env:"AUTHENTIK_URL"`
	AuthentikID   string        `env:"AUTHENTIK_CLIENT_ID"`
	AuthentikKey  string        `env:"AUTHENTIK_CLIENT_SECRET"`
	SessionSecret string        `env:"SESSION_SECRET"`
	JWTSecret     string        `env:"JWT_SECRET"`
	Mock          bool          `default:"true" env:"MOCK"`
	Port          string        `default:"8080" validate:"required" env:"PORT"`
	HATimeout     time.Duration `default:"-"`
}

// Load reads the recognized environment variables into a validated Config.
// Absent variables fall back to their struct-tag defaults; HA_URL, when
// set, must parse as an absolute URL.
func Load() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("config: apply defaults: %w", err)
	}

	if v, ok := os.LookupEnv("HA_URL"); ok {
		cfg.HAURL = v
	}
	cfg.HAToken = os.Getenv("HA_TOKEN")
	if v, ok := os.LookupEnv("HA_TIMEOUT_MS"); ok {
		ms, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("config: HA_TIMEOUT_MS must be an integer: %w", err)
		}
		cfg.HATimeoutMs = ms
	}
	cfg.AuthentikURL = os.Getenv("AUTHENTIK_URL")
	cfg.AuthentikID = os.Getenv("AUTHENTIK_CLIENT_ID")
	cfg.AuthentikKey = os.Getenv("AUTHENTIK_CLIENT_SECRET")
	cfg.SessionSecret = os.Getenv("SESSION_SECRET")
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	if v, ok := os.LookupEnv("MOCK"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return nil, fmt.Errorf("config: MOCK must be a boolean: %w", err)
		}
		cfg.Mock = b
	}
	if v, ok := os.LookupEnv("PORT"); ok {
		cfg.Port = v
	}
	cfg.HATimeout = time.Duration(cfg.HATimeoutMs) * time.Millisecond

	if err := validate.Struct(cfg); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s", fe.Field(), fe.Tag()))
			}
			return nil, fmt.Errorf("config: validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return nil, fmt.Errorf("config: validation failed: %w", err)
	}
	return cfg, nil
}

// Live reports whether a live Home Assistant endpoint is configured.
func (c *Config) Live() bool { return !c.Mock && c.HAURL != "" }
