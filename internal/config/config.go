package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Sources  SourcesConfig  `yaml:"sources" envconfig:"SOURCES"`
	Analysis AnalysisConfig `yaml:"analysis" envconfig:"ANALYSIS"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
}

// SourcesConfig identifies the three input datasets. Each source may be a
// remote URL or a local file path; the fetch step resolves both into the
// cache directory.
type SourcesConfig struct {
	FirmFinancials string `yaml:"firm_financials" envconfig:"FIRM_FINANCIALS" default:"data/sources/firm_financials.csv" validate:"required"`
	WEOMacro       string `yaml:"weo_macro" envconfig:"WEO_MACRO" default:"data/sources/weo_macro.csv" validate:"required"`
	Inequality     string `yaml:"inequality" envconfig:"INEQUALITY" default:"data/sources/gini_gdp.csv" validate:"required"`

	// WEOSubject selects the WEO subject code to pivot into the analysis
	// dataset (e.g. NGDP_RPCH for real GDP growth).
	WEOSubject string `yaml:"weo_subject" envconfig:"WEO_SUBJECT" default:"NGDP_RPCH"`

	FetchTimeout time.Duration `yaml:"fetch_timeout" envconfig:"FETCH_TIMEOUT" default:"60s"`
	MaxFetchRPS  float64       `yaml:"max_fetch_rps" envconfig:"MAX_FETCH_RPS" default:"2"`
	CacheMaxAge  time.Duration `yaml:"cache_max_age" envconfig:"CACHE_MAX_AGE" default:"24h"`
}

// AnalysisConfig carries the statistical parameters for metric construction,
// aggregation, decomposition, and ARMA model selection.
type AnalysisConfig struct {
	// Winsorization percentile bounds applied per metric per year.
	WinsorLower float64 `yaml:"winsor_lower" envconfig:"WINSOR_LOWER" default:"0.05" validate:"gte=0,lt=1"`
	WinsorUpper float64 `yaml:"winsor_upper" envconfig:"WINSOR_UPPER" default:"0.95" validate:"gt=0,lte=1"`

	// MinFirmsPerCell drops country-year aggregates built from fewer firms.
	MinFirmsPerCell int `yaml:"min_firms_per_cell" envconfig:"MIN_FIRMS_PER_CELL" default:"3" validate:"gte=1"`

	// TrendDegree is the polynomial trend degree in the decomposition.
	TrendDegree int `yaml:"trend_degree" envconfig:"TREND_DEGREE" default:"1" validate:"gte=0,lte=3"`
	// SeasonalPeriod of 1 disables the seasonal component (annual data).
	SeasonalPeriod int `yaml:"seasonal_period" envconfig:"SEASONAL_PERIOD" default:"1" validate:"gte=1"`

	// ModelMetric is the collapsed metric whose country series feed the
	// decomposition and ARMA steps.
	ModelMetric string `yaml:"model_metric" envconfig:"MODEL_METRIC" default:"roic" validate:"oneof=roic ebitda_margin revenue_growth asset_turnover"`

	// ARMA order grid and selection criterion.
	MaxAR     int    `yaml:"max_ar" envconfig:"MAX_AR" default:"3" validate:"gte=0,lte=6"`
	MaxMA     int    `yaml:"max_ma" envconfig:"MAX_MA" default:"2" validate:"gte=0,lte=6"`
	Criterion string `yaml:"criterion" envconfig:"CRITERION" default:"aic" validate:"oneof=aic bic"`
	Horizon   int    `yaml:"horizon" envconfig:"HORIZON" default:"5" validate:"gte=1,lte=40"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir    string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	CacheDir   string `yaml:"cache_dir" envconfig:"CACHE_DIR" default:"data/cache"`
	ReportsDir string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"data/reports"`
	ChartsDir  string `yaml:"charts_dir" envconfig:"CHARTS_DIR" default:"data/reports/charts"`
	LogsDir    string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"console" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/firmpulse.log"`
}

// ServerConfig contains HTTP server configuration for the web command
type ServerConfig struct {
	Port            int           `yaml:"port" envconfig:"PORT" default:"8080" validate:"gte=1,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" default:"15s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" default:"30s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT" default:"60s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT" default:"10s"`
	EnableTracing   bool          `yaml:"enable_tracing" envconfig:"ENABLE_TRACING" default:"false"`

	// RateLimitRPS of 0 disables API rate limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" default:"50"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" default:"100"`
}

// Load loads configuration from environment variables and an optional
// config file. Environment variables win over file values.
func Load() (*Config, error) {
	return LoadFrom(configFilePath())
}

// LoadFrom loads configuration using the given YAML file path. A missing
// file is not an error; defaults plus environment apply.
func LoadFrom(configFile string) (*Config, error) {
	var cfg Config

	if configFile != "" {
		if _, err := os.Stat(configFile); err == nil {
			fileCfg, err := loadFromFile(configFile)
			if err != nil {
				return nil, fmt.Errorf("load config file: %w", err)
			}
			cfg = *fileCfg
		}
	}

	// Environment variables override file values; envconfig also fills
	// defaults for anything still zero.
	if err := envconfig.Process("FIRMPULSE", &cfg); err != nil {
		return nil, fmt.Errorf("load config from env: %w", err)
	}

	cfg.resolvePaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile parses a YAML configuration file
func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// Validate checks structural constraints plus the cross-field rules the
// struct tags cannot express.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return err
	}

	if c.Analysis.WinsorLower >= c.Analysis.WinsorUpper {
		return fmt.Errorf("winsor_lower (%.3f) must be below winsor_upper (%.3f)",
			c.Analysis.WinsorLower, c.Analysis.WinsorUpper)
	}

	return nil
}

// resolvePaths makes all configured paths absolute relative to the working
// directory so commands behave the same regardless of invocation dir.
func (c *Config) resolvePaths() {
	c.Paths.DataDir = absPath(c.Paths.DataDir)
	c.Paths.CacheDir = absPath(c.Paths.CacheDir)
	c.Paths.ReportsDir = absPath(c.Paths.ReportsDir)
	c.Paths.ChartsDir = absPath(c.Paths.ChartsDir)
	c.Paths.LogsDir = absPath(c.Paths.LogsDir)
	c.Logging.FilePath = absPath(c.Logging.FilePath)
}

func absPath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return p
	}
	return abs
}

// EnsureDirs creates the configured data directories if missing.
func (c *Config) EnsureDirs() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.CacheDir, c.Paths.ReportsDir, c.Paths.ChartsDir, c.Paths.LogsDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// configFilePath returns the config file location, overridable via env.
func configFilePath() string {
	if path := os.Getenv("FIRMPULSE_CONFIG"); path != "" {
		return path
	}
	return "firmpulse.yaml"
}
