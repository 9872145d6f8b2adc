package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"

	StrategyStuff     = "stuff"
	StrategyMapReduce = "map-reduce"

	DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 13_5_1) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) Chrome/116.0.0.0 Safari/537.36"
)

type Config struct {
	Provider          string        `env:"LINKSUMMARY_PROVIDER"           envDefault:"openai"`
	Model             string        `env:"LINKSUMMARY_MODEL"              envDefault:"llama-3.1-8b-instant"`
	APIKey            string        `env:"LINKSUMMARY_API_KEY"`
	BaseURL           string        `env:"LINKSUMMARY_BASE_URL"`
	LanguagePrimary   string        `env:"LINKSUMMARY_LANGUAGE_PRIMARY"   envDefault:"en"`
	LanguageSecondary string        `env:"LINKSUMMARY_LANGUAGE_SECONDARY" envDefault:"hi"`
	ChainStrategy     string        `env:"LINKSUMMARY_CHAIN_STRATEGY"     envDefault:"map-reduce"`
	TLSVerify         bool          `env:"LINKSUMMARY_TLS_VERIFY"         envDefault:"false"`
	UserAgent         string        `env:"LINKSUMMARY_USER_AGENT"`
	SummaryWords      int           `env:"LINKSUMMARY_SUMMARY_WORDS"      envDefault:"300"`
	Prompt            string        `env:"LINKSUMMARY_PROMPT"`
	FetchTimeout      time.Duration `env:"LINKSUMMARY_FETCH_TIMEOUT"      envDefault:"30s"`
	InferenceTimeout  time.Duration `env:"LINKSUMMARY_INFERENCE_TIMEOUT"  envDefault:"120s"`
	RequestTimeout    time.Duration `env:"LINKSUMMARY_REQUEST_TIMEOUT"    envDefault:"5m"`
	MapConcurrency    int           `env:"LINKSUMMARY_MAP_CONCURRENCY"    envDefault:"4"`
	ModelRPS          float64       `env:"LINKSUMMARY_MODEL_RPS"          envDefault:"0"`
	MaxPageBytes      int64         `env:"LINKSUMMARY_MAX_PAGE_BYTES"     envDefault:"5242880"`
	HTTPAddr          string        `env:"LINKSUMMARY_HTTP_ADDR"          envDefault:":8080"`
	TelegramToken     string        `env:"TELEGRAM_TOKEN"`
	AllowedUsers      []int64       `env:"ALLOWED_USERS"`
	LogLevel          string        `env:"LOG_LEVEL"                      envDefault:"info"`
}

// Load reads an optional .env file and then the process environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env file: %w", err)
	}

	return Parse()
}

// Parse reads the process environment only.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg.Normalize()

	return cfg, nil
}

// Normalize trims string fields and fills derived defaults.
func (c *Config) Normalize() {
	c.Provider = strings.ToLower(strings.TrimSpace(c.Provider))
	c.Model = strings.TrimSpace(c.Model)
	c.APIKey = strings.TrimSpace(c.APIKey)
	c.BaseURL = strings.TrimSpace(c.BaseURL)
	c.LanguagePrimary = strings.TrimSpace(c.LanguagePrimary)
	c.LanguageSecondary = strings.TrimSpace(c.LanguageSecondary)
	c.ChainStrategy = NormalizeStrategy(c.ChainStrategy)
	c.TelegramToken = strings.TrimSpace(c.TelegramToken)

	c.UserAgent = strings.TrimSpace(c.UserAgent)
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
}

// NormalizeStrategy accepts the spellings users tend to type.
func NormalizeStrategy(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "mapreduce", "map_reduce", "map-reduce":
		return StrategyMapReduce
	default:
		return s
	}
}

func (c *Config) Validate() error {
	var errs []error

	switch c.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		errs = append(errs, &Error{Field: "LINKSUMMARY_PROVIDER", Message: fmt.Sprintf("unknown provider %q", c.Provider)})
	}

	switch c.ChainStrategy {
	case StrategyStuff, StrategyMapReduce:
	default:
		errs = append(errs, &Error{
			Field:   "LINKSUMMARY_CHAIN_STRATEGY",
			Message: fmt.Sprintf("unknown strategy %q", c.ChainStrategy),
		})
	}

	if c.Model == "" {
		errs = append(errs, &Error{Field: "LINKSUMMARY_MODEL", Message: "model is required"})
	}

	if c.BaseURL != "" {
		if u, err := url.Parse(c.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, &Error{Field: "LINKSUMMARY_BASE_URL", Message: "must be an absolute URL"})
		}
	}

	if c.LanguagePrimary == "" {
		errs = append(errs, &Error{Field: "LINKSUMMARY_LANGUAGE_PRIMARY", Message: "language is required"})
	}

	if c.FetchTimeout <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_FETCH_TIMEOUT", Message: "must be positive"})
	}
	if c.InferenceTimeout <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_INFERENCE_TIMEOUT", Message: "must be positive"})
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_REQUEST_TIMEOUT", Message: "must be positive"})
	}
	if c.MapConcurrency <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_MAP_CONCURRENCY", Message: "must be positive"})
	}
	if c.ModelRPS < 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_MODEL_RPS", Message: "must not be negative"})
	}
	if c.SummaryWords <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_SUMMARY_WORDS", Message: "must be positive"})
	}
	if c.MaxPageBytes <= 0 {
		errs = append(errs, &Error{Field: "LINKSUMMARY_MAX_PAGE_BYTES", Message: "must be positive"})
	}

	return errors.Join(errs...)
}

func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(c.LogLevel))); err != nil {
		return slog.LevelInfo
	}

	return level
}

// Error reports an invalid configuration field.
type Error struct {
	Field   string
	Message string
}

func (e *Error) Error() string {
	return e.Field + ": " + e.Message
}
