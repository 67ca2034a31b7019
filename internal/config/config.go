package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// EnvPrefix namespaces every environment variable, e.g. IDSCHOOL_SERVER_PORT.
const EnvPrefix = "IDSCHOOL"

// ConfigFileEnv names a YAML file to load instead of the default locations.
const ConfigFileEnv = "IDSCHOOL_CONFIG"

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" envconfig:"SERVER"`
	Logging   LoggingConfig   `yaml:"logging" envconfig:"LOGGING"`
	Paths     PathsConfig     `yaml:"paths" envconfig:"PATHS"`
	Cache     CacheConfig     `yaml:"cache" envconfig:"CACHE"`
	Source    SourceConfig    `yaml:"source" envconfig:"SOURCE"`
	Years     YearsConfig     `yaml:"years" envconfig:"YEARS"`
	Telemetry TelemetryConfig `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host" envconfig:"HOST"`
	Port            int           `yaml:"port" envconfig:"PORT" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" envconfig:"READ_TIMEOUT" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write_timeout" envconfig:"WRITE_TIMEOUT" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" envconfig:"IDLE_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" envconfig:"MAX_HEADER_BYTES" validate:"min=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
	// RequestTimeout bounds a single API request, including any upstream fetch.
	RequestTimeout time.Duration `yaml:"request_timeout" envconfig:"REQUEST_TIMEOUT" validate:"gt=0"`
	// RateLimitRPS of zero disables API rate limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps" envconfig:"RATE_LIMIT_RPS" validate:"min=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" envconfig:"RATE_LIMIT_BURST" validate:"min=0"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// PathsConfig contains file system paths. Relative entries resolve against
// BaseDir, or the working directory when BaseDir is empty.
type PathsConfig struct {
	BaseDir      string `yaml:"base_dir" envconfig:"BASE_DIR"`
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" validate:"required"`
	CacheDir     string `yaml:"cache_dir" envconfig:"CACHE_DIR" validate:"required"`
	DownloadsDir string `yaml:"downloads_dir" envconfig:"DOWNLOADS_DIR" validate:"required"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" validate:"required"`
}

// Cache backends
const (
	CacheBackendFile   = "file"
	CacheBackendMemory = "memory"
	CacheBackendBolt   = "bolt"
	CacheBackendMinIO  = "minio"
)

// CacheConfig selects and configures the cache backend
type CacheConfig struct {
	Backend  string      `yaml:"backend" envconfig:"BACKEND" validate:"oneof=file memory bolt minio"`
	BoltFile string      `yaml:"bolt_file" envconfig:"BOLT_FILE"`
	MinIO    MinIOConfig `yaml:"minio" envconfig:"MINIO"`
}

// MinIOConfig configures the S3-compatible object store backend
type MinIOConfig struct {
	Endpoint        string `yaml:"endpoint" envconfig:"ENDPOINT"`
	Bucket          string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix          string `yaml:"prefix" envconfig:"PREFIX"`
	Region          string `yaml:"region" envconfig:"REGION"`
	AccessKeyID     string `yaml:"access_key_id" envconfig:"ACCESS_KEY_ID"`
	SecretAccessKey string `yaml:"secret_access_key" envconfig:"SECRET_ACCESS_KEY"`
	UseSSL          bool   `yaml:"use_ssl" envconfig:"USE_SSL"`
}

// SourceConfig configures the workbook download client.
//
// URLs may contain {year} (end year) and {label} (e.g. 2023-24)
// placeholders; a URL without them names a single multi-year workbook.
type SourceConfig struct {
	DistrictURL       string        `yaml:"district_url" envconfig:"DISTRICT_URL" validate:"required,url"`
	BuildingURL       string        `yaml:"building_url" envconfig:"BUILDING_URL" validate:"omitempty,url"`
	Mirrors           []string      `yaml:"mirrors" envconfig:"MIRRORS" validate:"dive,url"`
	Timeout           time.Duration `yaml:"timeout" envconfig:"TIMEOUT" validate:"gt=0"`
	MaxRetries        int           `yaml:"max_retries" envconfig:"MAX_RETRIES" validate:"min=0,max=10"`
	RequestsPerSecond float64       `yaml:"requests_per_second" envconfig:"REQUESTS_PER_SECOND" validate:"gt=0"`
	Burst             int           `yaml:"burst" envconfig:"BURST" validate:"min=1"`
	BuildingMinYear   int           `yaml:"building_min_year" envconfig:"BUILDING_MIN_YEAR"`
	UserAgent         string        `yaml:"user_agent" envconfig:"USER_AGENT"`
}

// YearsConfig is the inclusive range of end years the source publishes
type YearsConfig struct {
	Min int `yaml:"min" envconfig:"MIN" validate:"min=1900"`
	Max int `yaml:"max" envconfig:"MAX" validate:"gtefield=Min"`
}

// TelemetryConfig controls tracing and metrics export
type TelemetryConfig struct {
	ServiceName    string  `yaml:"service_name" envconfig:"SERVICE_NAME"`
	Environment    string  `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceExporter  string  `yaml:"trace_exporter" envconfig:"TRACE_EXPORTER" validate:"oneof=stdout none"`
	MetricExporter string  `yaml:"metric_exporter" envconfig:"METRIC_EXPORTER" validate:"oneof=prometheus none"`
	SampleRatio    float64 `yaml:"sample_ratio" envconfig:"SAMPLE_RATIO" validate:"min=0,max=1"`
}

var validate = validator.New()

// Load builds the configuration from defaults, then the YAML file (if any),
// then IDSCHOOL_* environment variables. Later sources win.
func Load() (*Config, error) {
	return LoadFile(getConfigFilePath())
}

// LoadFile is Load with an explicit YAML path. An empty path skips the file.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// fields without a matching variable are left untouched
	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// loadFromFile overlays the YAML file onto cfg
func loadFromFile(filePath string, cfg *Config) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("%s: %w", filePath, err)
	}
	return nil
}

// Validate checks struct tags and cross-field rules
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}

	if c.Cache.Backend == CacheBackendMinIO {
		if c.Cache.MinIO.Endpoint == "" || c.Cache.MinIO.Bucket == "" {
			return errors.New("minio cache backend requires endpoint and bucket")
		}
	}
	if c.Source.BuildingMinYear != 0 && c.Source.BuildingMinYear < c.Years.Min {
		return fmt.Errorf("building_min_year %d precedes years.min %d", c.Source.BuildingMinYear, c.Years.Min)
	}
	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	if p := os.Getenv(ConfigFileEnv); p != "" {
		return p
	}

	locations := []string{
		"idschooldata.yaml",
		"config.yaml",
		"configs/config.yaml",
	}
	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}
	return ""
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    DefaultRequestTimeout + 15*time.Second,
			IdleTimeout:     60 * time.Second,
			MaxHeaderBytes:  1 << 20,
			ShutdownTimeout: 30 * time.Second,
			RequestTimeout:  DefaultRequestTimeout,
			RateLimitRPS:    10,
			RateLimitBurst:  20,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "console",
			FilePath: "logs/idschooldata.log",
		},
		Paths: PathsConfig{
			DataDir:      DefaultDataDir,
			CacheDir:     DefaultCacheDir,
			DownloadsDir: DefaultDownloadsDir,
			LogsDir:      DefaultLogsDir,
		},
		Cache: CacheConfig{
			Backend:  CacheBackendFile,
			BoltFile: DefaultBoltFile,
			MinIO: MinIOConfig{
				Prefix: "idschooldata",
				UseSSL: true,
			},
		},
		Source: SourceConfig{
			DistrictURL:       DefaultDistrictURL,
			BuildingURL:       DefaultBuildingURL,
			Timeout:           DefaultHTTPTimeout,
			MaxRetries:        3,
			RequestsPerSecond: 2,
			Burst:             1,
			BuildingMinYear:   DefaultBuildingMinYear,
			UserAgent:         AppName + "/" + AppVersion,
		},
		Years: YearsConfig{
			Min: DefaultMinYear,
			Max: DefaultMaxYear,
		},
		Telemetry: TelemetryConfig{
			ServiceName:    AppName,
			Environment:    "development",
			TraceExporter:  "none",
			MetricExporter: "prometheus",
			SampleRatio:    1.0,
		},
	}
}
