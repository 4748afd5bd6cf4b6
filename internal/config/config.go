package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/octobees/turmeric-buyers/internal/service"
	"github.com/octobees/turmeric-buyers/internal/service/dedup"
	"github.com/octobees/turmeric-buyers/internal/service/scoring"
	"github.com/octobees/turmeric-buyers/internal/worker"
)

// RateLimitConfig indicates how many requests are allowed within a given interval.
type RateLimitConfig struct {
	Requests int
	Interval time.Duration
}

// PerSecond converts the limit into a requests-per-second rate.
func (r RateLimitConfig) PerSecond() float64 {
	if r.Requests <= 0 || r.Interval <= 0 {
		return 0
	}
	return float64(r.Requests) / r.Interval.Seconds()
}

// Config aggregates application-wide configuration values.
type Config struct {
	Server           ServerConfig     `yaml:"server" mapstructure:"server"`
	Store            StoreConfig      `yaml:"store" mapstructure:"store"`
	Validation       ValidationConfig `yaml:"validation" mapstructure:"validation"`
	Pipeline         PipelineConfig   `yaml:"pipeline" mapstructure:"pipeline"`
	Collect          CollectConfig    `yaml:"collect" mapstructure:"collect"`
	Auth             AuthConfig       `yaml:"auth" mapstructure:"auth"`
	RateLimitCollect string           `yaml:"rate_limit_collect" mapstructure:"rate_limit_collect"`
	Log              LogConfig        `yaml:"log" mapstructure:"log"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
}

// ValidationConfig holds the field rules and the acceptance threshold.
// Threshold is a tier name (lenient, moderate, strict) or an integer 0-100.
type ValidationConfig struct {
	Threshold             string        `yaml:"threshold" mapstructure:"threshold"`
	SkipWebsiteCheck      bool          `yaml:"skip_website_check" mapstructure:"skip_website_check"`
	SkipMXCheck           bool          `yaml:"skip_mx_check" mapstructure:"skip_mx_check"`
	DisposableDomains     []string      `yaml:"disposable_domains" mapstructure:"disposable_domains"`
	SpamPatterns          []string      `yaml:"spam_patterns" mapstructure:"spam_patterns"`
	DomesticRegion        string        `yaml:"domestic_region" mapstructure:"domestic_region"`
	EnforceDomesticPrefix bool          `yaml:"enforce_domestic_prefix" mapstructure:"enforce_domestic_prefix"`
	MobilePrefixes        []string      `yaml:"mobile_prefixes" mapstructure:"mobile_prefixes"`
	RegionHints           []string      `yaml:"region_hints" mapstructure:"region_hints"`
	MXTimeout             time.Duration `yaml:"mx_timeout" mapstructure:"mx_timeout"`
	HTTPTimeout           time.Duration `yaml:"http_timeout" mapstructure:"http_timeout"`
	SimilarityThreshold   float64       `yaml:"similarity_threshold" mapstructure:"similarity_threshold"`
}

// PipelineConfig configures batch concurrency. RateLimit uses the
// <requests>/<interval> form and is disabled when empty.
type PipelineConfig struct {
	Workers        int           `yaml:"workers" mapstructure:"workers"`
	BatchTimeout   time.Duration `yaml:"batch_timeout" mapstructure:"batch_timeout"`
	RateLimit      string        `yaml:"rate_limit" mapstructure:"rate_limit"`
	PerWorkerDelay time.Duration `yaml:"per_worker_delay" mapstructure:"per_worker_delay"`
}

// CollectConfig configures the source collectors. An empty DirectoryURLs
// list searches the built-in directories unless DisableDirectories is set.
type CollectConfig struct {
	WorkerBaseURL      string        `yaml:"worker_base_url" mapstructure:"worker_base_url"`
	DirectoryURLs      []string      `yaml:"directory_urls" mapstructure:"directory_urls"`
	DisableDirectories bool          `yaml:"disable_directories" mapstructure:"disable_directories"`
	CSVPath            string        `yaml:"csv_path" mapstructure:"csv_path"`
	XLSXPath           string        `yaml:"xlsx_path" mapstructure:"xlsx_path"`
	Terms              []string      `yaml:"terms" mapstructure:"terms"`
	MaxPerTerm         int           `yaml:"max_per_term" mapstructure:"max_per_term"`
	Target             int           `yaml:"target" mapstructure:"target"`
	Timeout            time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// AuthConfig configures operator tokens. Operators log in with a bcrypt
// password hash; tokens can also be minted offline by the CLI.
type AuthConfig struct {
	JWTSecret string           `yaml:"jwt_secret" mapstructure:"jwt_secret"`
	TokenTTL  time.Duration    `yaml:"token_ttl" mapstructure:"token_ttl"`
	Operators []OperatorConfig `yaml:"operators" mapstructure:"operators"`
}

// OperatorConfig is a single API account.
type OperatorConfig struct {
	Email        string `yaml:"email" mapstructure:"email"`
	PasswordHash string `yaml:"password_hash" mapstructure:"password_hash"`
	Role         string `yaml:"role" mapstructure:"role"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from an optional config.yaml and BUYERS_* environment variables.
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	v.SetEnvPrefix("BUYERS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rules := service.DefaultRules()
	v.SetDefault("server.port", 8080)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "buyers.db")
	v.SetDefault("validation.threshold", "moderate")
	v.SetDefault("validation.skip_website_check", false)
	v.SetDefault("validation.skip_mx_check", false)
	v.SetDefault("validation.disposable_domains", rules.DisposableDomains)
	v.SetDefault("validation.spam_patterns", rules.SpamPatterns)
	v.SetDefault("validation.domestic_region", rules.DomesticRegion)
	v.SetDefault("validation.enforce_domestic_prefix", rules.EnforceDomesticPrefix)
	v.SetDefault("validation.mobile_prefixes", rules.MobilePrefixes)
	v.SetDefault("validation.region_hints", rules.RegionHints)
	v.SetDefault("validation.mx_timeout", rules.MXTimeout)
	v.SetDefault("validation.http_timeout", rules.HTTPTimeout)
	v.SetDefault("validation.similarity_threshold", dedup.DefaultSimilarity)
	v.SetDefault("pipeline.workers", worker.DefaultWorkers)
	v.SetDefault("pipeline.batch_timeout", 5*time.Minute)
	v.SetDefault("pipeline.rate_limit", "")
	v.SetDefault("pipeline.per_worker_delay", time.Duration(0))
	v.SetDefault("collect.worker_base_url", "")
	v.SetDefault("collect.directory_urls", []string{})
	v.SetDefault("collect.disable_directories", false)
	v.SetDefault("collect.csv_path", "")
	v.SetDefault("collect.xlsx_path", "")
	v.SetDefault("collect.terms", []string{})
	v.SetDefault("collect.max_per_term", 50)
	v.SetDefault("collect.target", 200)
	v.SetDefault("collect.timeout", 2*time.Minute)
	v.SetDefault("auth.jwt_secret", "dev-secret")
	v.SetDefault("auth.token_ttl", 24*time.Hour)
	v.SetDefault("rate_limit_collect", "5/min")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects values the pipeline cannot run with.
func (c *Config) Validate() error {
	if _, err := scoring.ParseThreshold(c.Validation.Threshold); err != nil {
		return eris.Wrap(err, "config: validation.threshold")
	}
	if c.Pipeline.Workers <= 0 {
		return eris.Errorf("config: pipeline.workers must be positive, got %d", c.Pipeline.Workers)
	}
	if s := c.Validation.SimilarityThreshold; s <= 0 || s > 1 {
		return eris.Errorf("config: validation.similarity_threshold %v outside (0,1]", s)
	}
	switch c.Store.Driver {
	case "postgres", "sqlite":
	default:
		return eris.Errorf("config: unknown store.driver %q", c.Store.Driver)
	}
	if c.Pipeline.RateLimit != "" {
		if _, err := parseRateLimit(c.Pipeline.RateLimit); err != nil {
			return eris.Wrap(err, "config: pipeline.rate_limit")
		}
	}
	if _, err := parseRateLimit(c.RateLimitCollect); err != nil {
		return eris.Wrap(err, "config: rate_limit_collect")
	}
	return nil
}

// Rules maps the validation section onto the validator rule set.
func (c *Config) Rules() service.Rules {
	return service.Rules{
		SpamPatterns:          c.Validation.SpamPatterns,
		DisposableDomains:     c.Validation.DisposableDomains,
		DomesticRegion:        c.Validation.DomesticRegion,
		EnforceDomesticPrefix: c.Validation.EnforceDomesticPrefix,
		MobilePrefixes:        c.Validation.MobilePrefixes,
		RegionHints:           c.Validation.RegionHints,
		MXTimeout:             c.Validation.MXTimeout,
		HTTPTimeout:           c.Validation.HTTPTimeout,
		SkipMXCheck:           c.Validation.SkipMXCheck,
		SkipWebsiteCheck:      c.Validation.SkipWebsiteCheck,
	}
}

// PipelineConfig builds the pipeline settings from the loaded values.
func (c *Config) PipelineConfig() (service.PipelineConfig, error) {
	threshold, err := scoring.ParseThreshold(c.Validation.Threshold)
	if err != nil {
		return service.PipelineConfig{}, eris.Wrap(err, "config: validation.threshold")
	}
	var rps float64
	if c.Pipeline.RateLimit != "" {
		rl, err := parseRateLimit(c.Pipeline.RateLimit)
		if err != nil {
			return service.PipelineConfig{}, eris.Wrap(err, "config: pipeline.rate_limit")
		}
		rps = rl.PerSecond()
	}
	return service.PipelineConfig{
		Rules:               c.Rules(),
		Weights:             scoring.DefaultWeights(),
		Threshold:           threshold,
		SimilarityThreshold: c.Validation.SimilarityThreshold,
		Workers:             c.Pipeline.Workers,
		BatchTimeout:        c.Pipeline.BatchTimeout,
		RateLimitRPS:        rps,
		PerWorkerDelay:      c.Pipeline.PerWorkerDelay,
	}, nil
}

// CollectRateLimit returns the limit applied to the collect endpoint.
func (c *Config) CollectRateLimit() (RateLimitConfig, error) {
	return parseRateLimit(c.RateLimitCollect)
}

// Addr returns the listen address for the HTTP server.
func (c *Config) Addr() string {
	return ":" + strconv.Itoa(c.Server.Port)
}

func parseRateLimit(value string) (RateLimitConfig, error) {
	parts := strings.Split(value, "/")
	if len(parts) != 2 {
		return RateLimitConfig{}, fmt.Errorf("expected format <requests>/<interval>, got %q", value)
	}

	requests, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil || requests <= 0 {
		return RateLimitConfig{}, fmt.Errorf("invalid request count: %v", parts[0])
	}

	unit := strings.ToLower(strings.TrimSpace(parts[1]))
	var interval time.Duration
	switch unit {
	case "s", "sec", "second", "seconds":
		interval = time.Second
	case "m", "min", "minute", "minutes":
		interval = time.Minute
	case "h", "hr", "hour", "hours":
		interval = time.Hour
	default:
		return RateLimitConfig{}, fmt.Errorf("unsupported interval unit: %s", unit)
	}

	return RateLimitConfig{Requests: requests, Interval: interval}, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
