package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`
}

// PricingConfig points at the external pricing service
type PricingConfig struct {
	BaseURL        string        `yaml:"base_url"`
	RequestTimeout time.Duration `yaml:"-"`
	TimeoutSeconds int           `yaml:"request_timeout_seconds"`
	MaxConcurrency int           `yaml:"max_concurrency"` // 1 = sequential, row-major
}

type StockConfig struct {
	BaseURL string `yaml:"base_url"`
}

// SECConfig points at EDGAR. An empty TickersURL disables the SEC routes.
type SECConfig struct {
	TickersURL     string `yaml:"tickers_url"`
	SubmissionsURL string `yaml:"submissions_url"`
	UserAgent      string `yaml:"user_agent"` // EDGAR rejects requests without one
}

// HeatMapConfig controls grid build behaviour
type HeatMapConfig struct {
	FailureWarnRatio float64 `yaml:"failure_warn_ratio"` // warn when failed/total >= ratio
}

type SessionConfig struct {
	TTL        time.Duration `yaml:"-"`
	TTLMinutes int           `yaml:"ttl_minutes"`
}

// AuditConfig controls the per-build JSON lines log
type AuditConfig struct {
	Enabled bool   `yaml:"enabled"`
	File    string `yaml:"file"`
}

type Config struct {
	// Server settings
	Port string

	Pricing PricingConfig
	Stock   StockConfig
	SEC     SECConfig
	HeatMap HeatMapConfig
	Session SessionConfig
	Audit   AuditConfig
	Logging LoggingConfig
}

type YAMLConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Pricing PricingConfig `yaml:"pricing"`
	Stock   StockConfig   `yaml:"stock"`
	SEC     SECConfig     `yaml:"sec"`
	HeatMap HeatMapConfig `yaml:"heatmap"`
	Session SessionConfig `yaml:"session"`
	Audit   *AuditConfig  `yaml:"audit"`
	Logging LoggingConfig `yaml:"logging"`
}

// Load reads config.yaml from the working directory.
func Load() *Config {
	return LoadFrom("config.yaml")
}

// LoadFrom builds the config from environment defaults, then overlays the
// YAML file at path when it exists and parses.
func LoadFrom(path string) *Config {
	cfg := &Config{
		Port: getEnv("PORT", "8080"),
		Pricing: PricingConfig{
			BaseURL:        getEnv("PRICING_BASE_URL", "http://localhost:5001"),
			TimeoutSeconds: getEnvInt("PRICING_TIMEOUT_SECONDS", 5),
			MaxConcurrency: getEnvInt("PRICING_MAX_CONCURRENCY", 8),
		},
		Stock: StockConfig{
			BaseURL: getEnv("STOCK_BASE_URL", "http://localhost:5001"),
		},
		SEC: SECConfig{
			TickersURL:     getEnv("SEC_TICKERS_URL", "https://www.sec.gov/files/company_tickers.json"),
			SubmissionsURL: getEnv("SEC_SUBMISSIONS_URL", "https://data.sec.gov/submissions"),
			UserAgent:      getEnv("SEC_USER_AGENT", "Strikemap 1.0"),
		},
		HeatMap: HeatMapConfig{
			FailureWarnRatio: getEnvFloat("HEATMAP_FAILURE_WARN_RATIO", 0.5),
		},
		Session: SessionConfig{
			TTLMinutes: getEnvInt("SESSION_TTL_MINUTES", 30),
		},
		Audit: AuditConfig{
			Enabled: getEnvBool("AUDIT_ENABLED", false),
			File:    getEnv("AUDIT_FILE", "builds.jsonl"),
		},
		Logging: LoggingConfig{
			LogLevel: getEnv("LOG_LEVEL", "info"),
			LogFile:  getEnv("LOG_FILE", "strikemap.log"),
		},
	}

	if yamlCfg := loadYAMLConfig(path); yamlCfg != nil {
		if yamlCfg.Server.Port != "" {
			cfg.Port = yamlCfg.Server.Port
		}

		if yamlCfg.Pricing.BaseURL != "" {
			cfg.Pricing.BaseURL = yamlCfg.Pricing.BaseURL
		}
		if yamlCfg.Pricing.TimeoutSeconds > 0 {
			cfg.Pricing.TimeoutSeconds = yamlCfg.Pricing.TimeoutSeconds
		}
		if yamlCfg.Pricing.MaxConcurrency > 0 {
			cfg.Pricing.MaxConcurrency = yamlCfg.Pricing.MaxConcurrency
		}

		if yamlCfg.Stock.BaseURL != "" {
			cfg.Stock.BaseURL = yamlCfg.Stock.BaseURL
		}

		if yamlCfg.SEC.TickersURL != "" {
			cfg.SEC.TickersURL = yamlCfg.SEC.TickersURL
		}
		if yamlCfg.SEC.SubmissionsURL != "" {
			cfg.SEC.SubmissionsURL = yamlCfg.SEC.SubmissionsURL
		}
		if yamlCfg.SEC.UserAgent != "" {
			cfg.SEC.UserAgent = yamlCfg.SEC.UserAgent
		}

		if yamlCfg.HeatMap.FailureWarnRatio > 0 {
			cfg.HeatMap.FailureWarnRatio = yamlCfg.HeatMap.FailureWarnRatio
		}

		if yamlCfg.Session.TTLMinutes > 0 {
			cfg.Session.TTLMinutes = yamlCfg.Session.TTLMinutes
		}

		// Audit section replaces env values wholesale when present
		if yamlCfg.Audit != nil {
			cfg.Audit.Enabled = yamlCfg.Audit.Enabled
			if yamlCfg.Audit.File != "" {
				cfg.Audit.File = yamlCfg.Audit.File
			}
		}

		if yamlCfg.Logging.LogLevel != "" {
			cfg.Logging.LogLevel = yamlCfg.Logging.LogLevel
		}
		if yamlCfg.Logging.LogFile != "" {
			cfg.Logging.LogFile = yamlCfg.Logging.LogFile
		}
	}

	if cfg.Pricing.MaxConcurrency < 1 {
		cfg.Pricing.MaxConcurrency = 1
	}
	cfg.Pricing.RequestTimeout = time.Duration(cfg.Pricing.TimeoutSeconds) * time.Second
	cfg.Session.TTL = time.Duration(cfg.Session.TTLMinutes) * time.Minute

	return cfg
}

// LoadDotEnv seeds the environment from a .env file. A missing file is not
// an error; variables already set win over the file.
func LoadDotEnv(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	return godotenv.Load(path)
}

func loadYAMLConfig(path string) *YAMLConfig {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}

	var yamlCfg YAMLConfig
	if err := yaml.Unmarshal(data, &yamlCfg); err != nil {
		return nil
	}

	return &yamlCfg
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return defaultValue
}
