// Package config loads checkoutctl settings from an optional YAML file,
// then environment variables, then validates the result.
package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment variables that override the file.
const (
	EnvEnv             = "NEWNEW_ENV"
	EnvAPIBaseURL      = "NEWNEW_API_BASE_URL"
	EnvAPITimeoutMs    = "NEWNEW_API_TIMEOUT_MS"
	EnvAuthToken       = "NEWNEW_AUTH_TOKEN"
	EnvMinSuccessScore = "NEWNEW_MIN_SUCCESS_SCORE"
	EnvPushURL         = "NEWNEW_PUSH_URL"
	EnvReturnURL       = "NEWNEW_RETURN_URL"
	EnvLogLevel        = "NEWNEW_LOG_LEVEL"
	EnvStripeSecretKey = "STRIPE_SECRET_KEY"
)

type API struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutMs int    `yaml:"timeout_ms"`
	AuthToken string `yaml:"auth_token"`
}

// Timeout converts TimeoutMs.
func (a API) Timeout() time.Duration { return time.Duration(a.TimeoutMs) * time.Millisecond }

type Challenge struct {
	Action             string   `yaml:"action"`
	MinSuccessScore    float64  `yaml:"min_success_score"`
	BypassEnvironments []string `yaml:"bypass_environments"`
	InvisiblePath      string   `yaml:"invisible_path"`
	VisiblePath        string   `yaml:"visible_path"`
}

type Config struct {
	Env             string    `yaml:"env"`
	LogLevel        string    `yaml:"log_level"`
	API             API       `yaml:"api"`
	Challenge       Challenge `yaml:"challenge"`
	PushURL         string    `yaml:"push_url"`
	ReturnURL       string    `yaml:"return_url"`
	StripeSecretKey string    `yaml:"stripe_secret_key"`
}

// Default is used for anything neither the file nor the environment sets.
func Default() Config {
	return Config{
		Env:      "local",
		LogLevel: "info",
		API: API{
			TimeoutMs: 10_000,
		},
		Challenge: Challenge{
			Action:             "checkout",
			MinSuccessScore:    0.5,
			BypassEnvironments: []string{"test", "staging"},
		},
		ReturnURL: "https://newnew.co/checkout/return",
	}
}

// Load reads path (skipped when empty), applies environment overrides and
// validates.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return Config{}, errors.Join(errors.New("config: parse "+strconv.Quote(path)), err)
		}
	}
	cfg = applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// LoadFromEnv is Load without a file.
func LoadFromEnv() (Config, error) { return Load("") }

// Validate reports every problem at once.
func (c Config) Validate() error {
	var errs []error
	if c.API.BaseURL == "" {
		errs = append(errs, errors.New(EnvAPIBaseURL+" must be set"))
	}
	if c.API.TimeoutMs <= 0 {
		errs = append(errs, errors.New(EnvAPITimeoutMs+" must be > 0"))
	}
	// the gate reads a zero threshold as unset
	if c.Challenge.MinSuccessScore <= 0 || c.Challenge.MinSuccessScore > 1 {
		errs = append(errs, errors.New(EnvMinSuccessScore+" must be within (0,1]"))
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, errors.New(EnvLogLevel+" must be one of debug, info, warn, error"))
	}
	return errors.Join(errs...)
}

// Production reports whether Env names a production deployment.
func (c Config) Production() bool {
	return c.Env == "production" || c.Env == "prod"
}

func applyEnv(cfg Config) Config {
	cfg.Env = getenv(EnvEnv, cfg.Env)
	cfg.LogLevel = getenv(EnvLogLevel, cfg.LogLevel)
	cfg.API.BaseURL = getenv(EnvAPIBaseURL, cfg.API.BaseURL)
	cfg.API.TimeoutMs = getenvInt(EnvAPITimeoutMs, cfg.API.TimeoutMs)
	cfg.API.AuthToken = getenv(EnvAuthToken, cfg.API.AuthToken)
	cfg.Challenge.MinSuccessScore = getenvFloat(EnvMinSuccessScore, cfg.Challenge.MinSuccessScore)
	cfg.PushURL = getenv(EnvPushURL, cfg.PushURL)
	cfg.ReturnURL = getenv(EnvReturnURL, cfg.ReturnURL)
	cfg.StripeSecretKey = getenv(EnvStripeSecretKey, cfg.StripeSecretKey)
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getenvFloat(k string, def float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}
