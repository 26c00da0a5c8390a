package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"

	"sczmerge/pkg/contracts/domain"
)

// Config represents the complete job configuration
type Config struct {
	Paths     PathsConfig        `yaml:"paths" envconfig:"PATHS"`
	Load      LoadConfig         `yaml:"load" envconfig:"LOAD"`
	Rules     domain.ColumnRules `yaml:"rules" envconfig:"RULES"`
	Output    OutputConfig       `yaml:"output" envconfig:"OUTPUT"`
	Publish   PublishConfig      `yaml:"publish" envconfig:"PUBLISH"`
	Logging   LoggingConfig      `yaml:"logging" envconfig:"LOGGING"`
	Telemetry TelemetryConfig    `yaml:"telemetry" envconfig:"TELEMETRY"`
}

// PathsConfig contains input and output locations
type PathsConfig struct {
	InputDir    string `yaml:"input_dir" envconfig:"INPUT_DIR" validate:"required"`
	OutputDir   string `yaml:"output_dir" envconfig:"OUTPUT_DIR"` // empty means InputDir
	CSVName     string `yaml:"csv_name" envconfig:"CSV_NAME" validate:"required,excludesall=/\\"`
	ParquetName string `yaml:"parquet_name" envconfig:"PARQUET_NAME" validate:"required,excludesall=/\\"`
	XLSXName    string `yaml:"xlsx_name" envconfig:"XLSX_NAME" validate:"required,excludesall=/\\"`
}

// LoadConfig controls discovery and per-file reading
type LoadConfig struct {
	Extension        string   `yaml:"extension" envconfig:"EXTENSION" validate:"required,startswith=."`
	PrimaryEncoding  string   `yaml:"primary_encoding" envconfig:"PRIMARY_ENCODING" validate:"required"`
	FallbackEncoding string   `yaml:"fallback_encoding" envconfig:"FALLBACK_ENCODING"`
	MissingTokens    []string `yaml:"missing_tokens" envconfig:"MISSING_TOKENS"`
	OnError          string   `yaml:"on_error" envconfig:"ON_ERROR" validate:"oneof=abort skip"`
	Workers          int      `yaml:"workers" envconfig:"WORKERS" validate:"min=1,max=64"`
	ExcludePatterns  []string `yaml:"exclude_patterns" envconfig:"EXCLUDE_PATTERNS"`
	ExcludeOutputDir bool     `yaml:"exclude_output_dir" envconfig:"EXCLUDE_OUTPUT_DIR"`
}

// OutputConfig toggles the optional artifacts. The CSV is always written.
type OutputConfig struct {
	Parquet bool `yaml:"parquet" envconfig:"PARQUET"`
	XLSX    bool `yaml:"xlsx" envconfig:"XLSX"`
}

// PublishConfig configures the optional upload of artifacts to object storage
type PublishConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"ENABLED"`
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT" validate:"required_if=Enabled true"`
	Bucket    string `yaml:"bucket" envconfig:"BUCKET" validate:"required_if=Enabled true"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"USE_SSL"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"oneof=debug info warn warning error"`
	Format   string `yaml:"format" envconfig:"FORMAT" validate:"oneof=json text"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// TelemetryConfig contains OpenTelemetry configuration
type TelemetryConfig struct {
	Enabled     bool   `yaml:"enabled" envconfig:"ENABLED"`
	Environment string `yaml:"environment" envconfig:"ENVIRONMENT"`
	TraceFile   string `yaml:"trace_file" envconfig:"TRACE_FILE"`     // spans as JSON lines, empty disables tracing
	MetricsFile string `yaml:"metrics_file" envconfig:"METRICS_FILE"` // Prometheus textfile, empty disables the dump
}

// Load builds the configuration from defaults, the YAML file and SCZ_* environment
// variables, in increasing order of precedence. An empty configFile triggers the
// lookup of sczmerge.yaml in the usual locations.
func Load(configFile string) (*Config, error) {
	cfg := Default()

	if configFile == "" {
		configFile = getConfigFilePath()
	}
	if configFile != "" {
		if err := loadFromFile(configFile, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// Fields without a matching variable are left untouched, so file values survive
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
		return fmt.Errorf("failed to parse %s: %w", filePath, err)
	}

	return nil
}

// Validate normalizes derived fields and checks the configuration
func (c *Config) Validate() error {
	if !strings.HasPrefix(c.Load.Extension, ".") && c.Load.Extension != "" {
		c.Load.Extension = "." + c.Load.Extension
	}
	if c.Logging.Level == "warning" {
		c.Logging.Level = "warn"
	}
	if c.Logging.Output != "console" && c.Logging.FilePath == "" {
		c.Logging.FilePath = DefaultLogFile
	}

	if err := validator.New().Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	return nil
}

// formatValidationErrors flattens validator errors into one readable error
func formatValidationErrors(err error) error {
	validationErrors, ok := err.(validator.ValidationErrors)
	if !ok {
		return err
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s: failed on '%s' (value %q)", fe.Namespace(), fe.Tag(), fmt.Sprint(fe.Value())))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(messages, "; "))
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		DefaultConfigFileName,
		"configs/" + DefaultConfigFileName,
	}

	for _, location := range locations {
		if _, err := os.Stat(location); err == nil {
			return location
		}
	}

	return "" // No config file found, use env vars only
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Paths: PathsConfig{
			InputDir:    DefaultInputDir,
			CSVName:     DefaultCSVName,
			ParquetName: DefaultParquetName,
			XLSXName:    DefaultXLSXName,
		},
		Load: LoadConfig{
			Extension:        DefaultExtension,
			PrimaryEncoding:  DefaultPrimaryEncoding,
			FallbackEncoding: DefaultFallbackEncoding,
			MissingTokens:    append([]string(nil), DefaultMissingTokens...),
			OnError:          OnErrorAbort,
			Workers:          DefaultLoadWorkers,
			ExcludeOutputDir: true,
		},
		Rules: domain.DefaultColumnRules(),
		Output: OutputConfig{
			Parquet: true,
			XLSX:    false,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "console",
		},
		Telemetry: TelemetryConfig{
			Environment: "production",
		},
	}
}
