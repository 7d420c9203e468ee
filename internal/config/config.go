package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"sales-pipeline/internal/model"
)

// EnvPrefix is the prefix of every environment override, e.g. SALES_INGEST_WORKERS.
const EnvPrefix = "SALES"

// Config represents the complete application configuration
type Config struct {
	Logging     LoggingConfig     `yaml:"logging" envconfig:"LOGGING"`
	Ingest      IngestConfig      `yaml:"ingest" envconfig:"INGEST"`
	Transform   TransformConfig   `yaml:"transform" envconfig:"TRANSFORM"`
	Output      OutputConfig      `yaml:"output" envconfig:"OUTPUT"`
	Forecast    ForecastConfig    `yaml:"forecast" envconfig:"FORECAST"`
	ObjectStore ObjectStoreConfig `yaml:"objectstore" envconfig:"OBJECTSTORE"`
	Server      ServerConfig      `yaml:"server" envconfig:"SERVER"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" validate:"omitempty,oneof=debug info warn warning error"`
	Output   string `yaml:"output" envconfig:"OUTPUT" validate:"omitempty,oneof=console file both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH"`
}

// IngestConfig locates the raw, processed and quarantined files.
type IngestConfig struct {
	SourceDir    string            `yaml:"source_dir" envconfig:"SOURCE_DIR" validate:"required"`
	ProcessedDir string            `yaml:"processed_dir" envconfig:"PROCESSED_DIR" validate:"required"`
	ErrorDir     string            `yaml:"error_dir" envconfig:"ERROR_DIR" validate:"required"`
	Patterns     []string          `yaml:"patterns" envconfig:"PATTERNS" validate:"min=1"`
	Workers      int               `yaml:"workers" envconfig:"WORKERS" validate:"min=1"`
	FileTimeout  time.Duration     `yaml:"file_timeout" envconfig:"FILE_TIMEOUT"`
	Retry        model.RetryPolicy `yaml:"retry" ignored:"true"`
}

// TransformConfig lists the ordered transformation steps.
type TransformConfig struct {
	Steps      []StepConfig `yaml:"steps" ignored:"true" validate:"dive"`
	SampleSize int          `yaml:"sample_size" envconfig:"SAMPLE_SIZE" validate:"min=1"`
}

// StepConfig configures one transformation step. Which fields are read
// depends on Kind.
type StepConfig struct {
	Kind      string            `yaml:"kind" validate:"required"`
	Column    string            `yaml:"column,omitempty"`
	Layout    string            `yaml:"layout,omitempty"`
	Delimiter string            `yaml:"delimiter,omitempty"`
	Targets   []string          `yaml:"targets,omitempty"`
	Mapping   map[string]string `yaml:"mapping,omitempty"`
	Left      string            `yaml:"left,omitempty"`
	Right     string            `yaml:"right,omitempty"`
	Output    string            `yaml:"output,omitempty"`
}

// OutputConfig describes where the consolidated table is persisted.
type OutputConfig struct {
	CSVPath    string `yaml:"csv_path" envconfig:"CSV_PATH"`
	Driver     string `yaml:"driver" envconfig:"DRIVER" validate:"omitempty,oneof=sqlite3 pgx"`
	DSN        string `yaml:"dsn" envconfig:"DSN"`
	Year       int    `yaml:"year" envconfig:"YEAR" validate:"min=1"`
	TimeLayout string `yaml:"time_layout" envconfig:"TIME_LAYOUT" validate:"required"`
}

// ForecastConfig drives the training, tuning and inference jobs.
type ForecastConfig struct {
	DataPath     string         `yaml:"data_path" envconfig:"DATA_PATH"`
	OutputPath   string         `yaml:"output_path" envconfig:"OUTPUT_PATH"`
	TimeColumn   string         `yaml:"time_column" envconfig:"TIME_COLUMN" validate:"required"`
	ValueColumn  string         `yaml:"value_column" envconfig:"VALUE_COLUMN" validate:"required"`
	TestFraction float64        `yaml:"test_fraction" envconfig:"TEST_FRACTION" validate:"gt=0,lt=1"`
	Horizon      int            `yaml:"horizon" envconfig:"HORIZON" validate:"min=0"`
	ModelID      string         `yaml:"model_id" envconfig:"MODEL_ID" validate:"required"`
	Model        ModelConfig    `yaml:"model" envconfig:"MODEL"`
	Tuning       TuningConfig   `yaml:"tuning" envconfig:"TUNING"`
	Registry     RegistryConfig `yaml:"registry" envconfig:"REGISTRY"`
}

// ModelConfig selects the forecaster kind and its hyperparameters.
type ModelConfig struct {
	Kind   string             `yaml:"kind" envconfig:"KIND" validate:"required"`
	Params map[string]float64 `yaml:"params" ignored:"true"`
}

// TuningConfig configures the hyperparameter search.
type TuningConfig struct {
	Mode  string     `yaml:"mode" envconfig:"MODE"`
	Grid  []GridAxis `yaml:"grid" ignored:"true"`
	NIter int        `yaml:"n_iter" envconfig:"N_ITER" validate:"min=0"`
	Seed  int64      `yaml:"seed" envconfig:"SEED"`
	CV    CVConfig   `yaml:"cv" envconfig:"CV"`
}

// GridAxis is one hyperparameter and its ordered candidate values.
type GridAxis struct {
	Name   string    `yaml:"name" validate:"required"`
	Values []float64 `yaml:"values" validate:"min=1"`
}

// CVConfig configures the time-ordered cross-validation windows.
type CVConfig struct {
	Kind    string `yaml:"kind" envconfig:"KIND" validate:"omitempty,oneof=expanding sliding"`
	Window  int    `yaml:"window" envconfig:"WINDOW" validate:"min=0"`
	Step    int    `yaml:"step" envconfig:"STEP" validate:"min=0"`
	Horizon int    `yaml:"horizon" envconfig:"HORIZON" validate:"min=0"`
}

// RegistryConfig selects where fitted models are stored.
type RegistryConfig struct {
	Backend string `yaml:"backend" envconfig:"BACKEND" validate:"omitempty,oneof=file object"`
	Dir     string `yaml:"dir" envconfig:"DIR"`
}

// ObjectStoreConfig holds the MinIO/S3 connection used by the object registry.
type ObjectStoreConfig struct {
	Endpoint  string `yaml:"endpoint" envconfig:"ENDPOINT"`
	AccessKey string `yaml:"access_key" envconfig:"ACCESS_KEY"`
	SecretKey string `yaml:"secret_key" envconfig:"SECRET_KEY"`
	Bucket    string `yaml:"bucket" envconfig:"BUCKET"`
	Prefix    string `yaml:"prefix" envconfig:"PREFIX"`
	Region    string `yaml:"region" envconfig:"REGION"`
	UseSSL    bool   `yaml:"use_ssl" envconfig:"USE_SSL"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Addr            string        `yaml:"addr" envconfig:"ADDR"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" envconfig:"SHUTDOWN_TIMEOUT"`
}

// Load builds the configuration from defaults, the YAML file at path (if
// path is non-empty) and SALES_* environment variables, in that order.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := loadFromFile(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile decodes the YAML file at path over cfg.
func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}

// Validate checks struct constraints and cross-field rules. Every failure is
// a *model.ConfigurationError.
func (c *Config) Validate() error {
	v := validator.New()
	if err := v.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return &model.ConfigurationError{Key: fe.Namespace(), Reason: fmt.Sprintf("failed %q rule (value %v)", fe.Tag(), fe.Value())}
		}
		return &model.ConfigurationError{Key: "config", Reason: err.Error()}
	}

	if c.Output.DSN != "" && c.Output.Driver == "" {
		return &model.ConfigurationError{Key: "Config.Output.Driver", Reason: "driver is required when dsn is set"}
	}
	if c.Forecast.Registry.Backend == "object" && c.ObjectStore.Bucket == "" {
		return &model.ConfigurationError{Key: "Config.ObjectStore.Bucket", Reason: "bucket is required for the object registry"}
	}
	if c.Forecast.Registry.Backend != "object" && c.Forecast.Registry.Dir == "" {
		return &model.ConfigurationError{Key: "Config.Forecast.Registry.Dir", Reason: "directory is required for the file registry"}
	}
	return nil
}
