package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v2"
)

// Config represents the complete application configuration
type Config struct {
	Forecast ForecastConfig `yaml:"forecast" envconfig:"FORECAST"`
	Training TrainingConfig `yaml:"training" envconfig:"TRAINING"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Paths    PathsConfig    `yaml:"paths" envconfig:"PATHS"`
}

// ForecastConfig contains forecasting pipeline configuration
type ForecastConfig struct {
	LookbackDays      int           `yaml:"lookback_days" envconfig:"LOOKBACK_DAYS" default:"30"`
	DefaultHorizon    int           `yaml:"default_horizon" envconfig:"DEFAULT_HORIZON" default:"7"`
	MaxHorizon        int           `yaml:"max_horizon" envconfig:"MAX_HORIZON" default:"90"`
	PredictionTimeout time.Duration `yaml:"prediction_timeout" envconfig:"PREDICTION_TIMEOUT" default:"30s"`
}

// TrainingConfig contains incremental training configuration
type TrainingConfig struct {
	Epochs       int           `yaml:"epochs" envconfig:"EPOCHS" default:"5"`
	BatchSize    int           `yaml:"batch_size" envconfig:"BATCH_SIZE" default:"32"`
	LearningRate float64       `yaml:"learning_rate" envconfig:"LEARNING_RATE" default:"0.001"`
	MinInterval  time.Duration `yaml:"min_interval" envconfig:"MIN_INTERVAL" default:"1m"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level    string `yaml:"level" envconfig:"LEVEL" default:"info"`
	Format   string `yaml:"format" envconfig:"FORMAT" default:"json"`
	Output   string `yaml:"output" envconfig:"OUTPUT" default:"both"`
	FilePath string `yaml:"file_path" envconfig:"FILE_PATH" default:"logs/app.log"`
}

// PathsConfig contains file system paths configuration
type PathsConfig struct {
	DataDir      string `yaml:"data_dir" envconfig:"DATA_DIR" default:"data"`
	ModelsDir    string `yaml:"models_dir" envconfig:"MODELS_DIR" default:"models"`
	ReportsDir   string `yaml:"reports_dir" envconfig:"REPORTS_DIR" default:"reports"`
	LogsDir      string `yaml:"logs_dir" envconfig:"LOGS_DIR" default:"logs"`
	ScalerFile   string `yaml:"scaler_file" envconfig:"SCALER_FILE" default:"scaler.json"`
	MetadataFile string `yaml:"metadata_file" envconfig:"METADATA_FILE" default:"series_metadata.json"`
	ModelFile    string `yaml:"model_file" envconfig:"MODEL_FILE" default:"baseline.json"`
}

// Load loads configuration from environment variables and config file
func Load() (*Config, error) {
	var cfg Config

	// Load from environment variables first
	if err := envconfig.Process("FORECAST", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// Load from config file if exists
	configFile := getConfigFilePath()
	if configFile != "" {
		fileConfig, err := loadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
		cfg = mergeConfigs(*fileConfig, cfg)
	}

	// Validate configuration
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// mergeConfigs merges file config with env config (env takes precedence)
func mergeConfigs(fileConfig, envConfig Config) Config {
	if envConfig.Forecast.LookbackDays == 0 {
		envConfig.Forecast.LookbackDays = fileConfig.Forecast.LookbackDays
	}
	if envConfig.Forecast.DefaultHorizon == 0 {
		envConfig.Forecast.DefaultHorizon = fileConfig.Forecast.DefaultHorizon
	}
	if envConfig.Forecast.MaxHorizon == 0 {
		envConfig.Forecast.MaxHorizon = fileConfig.Forecast.MaxHorizon
	}
	if envConfig.Forecast.PredictionTimeout == 0 {
		envConfig.Forecast.PredictionTimeout = fileConfig.Forecast.PredictionTimeout
	}
	if envConfig.Training.Epochs == 0 {
		envConfig.Training.Epochs = fileConfig.Training.Epochs
	}
	if envConfig.Training.BatchSize == 0 {
		envConfig.Training.BatchSize = fileConfig.Training.BatchSize
	}
	if envConfig.Training.LearningRate == 0 {
		envConfig.Training.LearningRate = fileConfig.Training.LearningRate
	}
	if envConfig.Paths.DataDir == "" {
		envConfig.Paths.DataDir = fileConfig.Paths.DataDir
	}
	if envConfig.Paths.ModelsDir == "" {
		envConfig.Paths.ModelsDir = fileConfig.Paths.ModelsDir
	}
	if envConfig.Paths.ReportsDir == "" {
		envConfig.Paths.ReportsDir = fileConfig.Paths.ReportsDir
	}

	return envConfig
}

// GetScalerPath returns the resolved scaling artifact path for a pipeline
// variant ("demand", "finance")
func (c *Config) GetScalerPath(variant string) string {
	if filepath.IsAbs(c.Paths.ScalerFile) {
		return c.Paths.ScalerFile
	}
	return filepath.Join(c.Paths.ModelsDir, variant, c.Paths.ScalerFile)
}

// GetMetadataPath returns the resolved series metadata sidecar path for a
// pipeline variant
func (c *Config) GetMetadataPath(variant string) string {
	if filepath.IsAbs(c.Paths.MetadataFile) {
		return c.Paths.MetadataFile
	}
	return filepath.Join(c.Paths.ModelsDir, variant, c.Paths.MetadataFile)
}

// GetModelPath returns the resolved model artifact path for a pipeline
// variant
func (c *Config) GetModelPath(variant string) string {
	if filepath.IsAbs(c.Paths.ModelFile) {
		return c.Paths.ModelFile
	}
	return filepath.Join(c.Paths.ModelsDir, variant, c.Paths.ModelFile)
}

// EnsureDirectories creates the configured directories if missing
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.ModelsDir, c.Paths.ReportsDir, c.Paths.LogsDir}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}
	return nil
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Forecast.LookbackDays <= 0 {
		return fmt.Errorf("lookback days must be positive: %d", c.Forecast.LookbackDays)
	}

	if c.Forecast.DefaultHorizon <= 0 {
		return fmt.Errorf("forecast horizon must be positive: %d", c.Forecast.DefaultHorizon)
	}

	if c.Forecast.MaxHorizon < c.Forecast.DefaultHorizon {
		return fmt.Errorf("max horizon %d is smaller than default horizon %d",
			c.Forecast.MaxHorizon, c.Forecast.DefaultHorizon)
	}

	if c.Training.LearningRate < 0 {
		return fmt.Errorf("learning rate must be non-negative")
	}

	// Always JSON format, always dual output
	if c.Logging.Format != "json" {
		c.Logging.Format = "json"
	}

	if c.Logging.Output != "both" && c.Logging.Output != "file" && c.Logging.Output != "stdout" {
		c.Logging.Output = "both"
	}

	if c.Logging.FilePath == "" {
		c.Logging.FilePath = "logs/app.log"
	}

	return nil
}

// getConfigFilePath returns the path to the config file
func getConfigFilePath() string {
	locations := []string{
		"config.yaml",
		"configs/config.yaml",
		"../configs/config.yaml",
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
		Forecast: ForecastConfig{
			LookbackDays:      30,
			DefaultHorizon:    7,
			MaxHorizon:        90,
			PredictionTimeout: 30 * time.Second,
		},
		Training: TrainingConfig{
			Epochs:       5,
			BatchSize:    32,
			LearningRate: 0.001,
			MinInterval:  time.Minute,
		},
		Logging: LoggingConfig{
			Level:    "info",
			Format:   "json",
			Output:   "both",
			FilePath: "logs/app.log",
		},
		Paths: PathsConfig{
			DataDir:      "data",
			ModelsDir:    "models",
			ReportsDir:   "reports",
			LogsDir:      "logs",
			ScalerFile:   "scaler.json",
			MetadataFile: "series_metadata.json",
			ModelFile:    "baseline.json",
		},
	}
}
