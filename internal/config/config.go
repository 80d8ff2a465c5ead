package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/dataset"
	"github.com/newthinker/navsim/internal/performance"
	"github.com/newthinker/navsim/internal/storage/archive"
)

type Config struct {
	Name        string            `mapstructure:"name"`
	Backtest    BacktestConfig    `mapstructure:"backtest"`
	Performance PerformanceConfig `mapstructure:"performance"`
	Inputs      InputsConfig      `mapstructure:"inputs"`
	Output      OutputConfig      `mapstructure:"output"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
	Log         LogConfig         `mapstructure:"log"`
}

type BacktestConfig struct {
	InitialCapital float64 `mapstructure:"initial_capital"`
}

type PerformanceConfig struct {
	RiskFreeRate         float64 `mapstructure:"risk_free_rate"`
	AnnualizationFactor  float64 `mapstructure:"annualization_factor"`
	TurnoverPerRebalance float64 `mapstructure:"turnover_per_rebalance"`
}

// InputsConfig names the input tables, relative to the storage root.
type InputsConfig struct {
	Prices    string `mapstructure:"prices"`
	Schedule  string `mapstructure:"schedule"`
	Signals   string `mapstructure:"signals"`   // optional, absent rows are long
	Benchmark string `mapstructure:"benchmark"` // optional
}

type OutputConfig struct {
	Prefix string `mapstructure:"prefix"`
	Format string `mapstructure:"format"` // "csv" or "parquet"
	Report bool   `mapstructure:"report"` // also write report.md
}

type StorageConfig struct {
	Type string   `mapstructure:"type"` // "localfs" or "s3"
	Path string   `mapstructure:"path"` // For localfs
	S3   S3Config `mapstructure:"s3"`   // For S3
}

type S3Config struct {
	Bucket    string `mapstructure:"bucket"`
	Endpoint  string `mapstructure:"endpoint"`
	Region    string `mapstructure:"region"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Prefix    string `mapstructure:"prefix"`
}

// RegistryConfig holds run registry settings. Without a DSN runs are kept
// in memory for the life of the process.
type RegistryConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	DSN     string `mapstructure:"dsn"`
	MaxRuns int    `mapstructure:"max_runs"`
}

// MetricsConfig holds metrics configuration.
type MetricsConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Textfile string `mapstructure:"textfile"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

// Load reads configuration from file. Keys missing from the file keep
// their defaults, and every key can be overridden from the environment
// (backtest.initial_capital -> BACKTEST_INITIAL_CAPITAL).
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	setDefaults(v, Defaults())

	// Support environment variable overrides
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// Expand environment variables in string values
	for _, key := range v.AllKeys() {
		val := v.GetString(key)
		if strings.HasPrefix(val, "${") && strings.HasSuffix(val, "}") {
			envKey := strings.TrimSuffix(strings.TrimPrefix(val, "${"), "}")
			v.Set(key, os.Getenv(envKey))
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("name", d.Name)
	v.SetDefault("backtest.initial_capital", d.Backtest.InitialCapital)
	v.SetDefault("performance.risk_free_rate", d.Performance.RiskFreeRate)
	v.SetDefault("performance.annualization_factor", d.Performance.AnnualizationFactor)
	v.SetDefault("performance.turnover_per_rebalance", d.Performance.TurnoverPerRebalance)
	v.SetDefault("inputs.prices", d.Inputs.Prices)
	v.SetDefault("inputs.schedule", d.Inputs.Schedule)
	v.SetDefault("inputs.signals", d.Inputs.Signals)
	v.SetDefault("inputs.benchmark", d.Inputs.Benchmark)
	v.SetDefault("output.prefix", d.Output.Prefix)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.report", d.Output.Report)
	v.SetDefault("storage.type", d.Storage.Type)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.s3.bucket", d.Storage.S3.Bucket)
	v.SetDefault("storage.s3.endpoint", d.Storage.S3.Endpoint)
	v.SetDefault("storage.s3.region", d.Storage.S3.Region)
	v.SetDefault("storage.s3.access_key", d.Storage.S3.AccessKey)
	v.SetDefault("storage.s3.secret_key", d.Storage.S3.SecretKey)
	v.SetDefault("storage.s3.prefix", d.Storage.S3.Prefix)
	v.SetDefault("registry.enabled", d.Registry.Enabled)
	v.SetDefault("registry.dsn", d.Registry.DSN)
	v.SetDefault("registry.max_runs", d.Registry.MaxRuns)
	v.SetDefault("metrics.enabled", d.Metrics.Enabled)
	v.SetDefault("metrics.textfile", d.Metrics.Textfile)
	v.SetDefault("log.level", d.Log.Level)
}

// Defaults returns a config with sensible defaults
func Defaults() *Config {
	sim := backtest.DefaultConfig()
	perf := performance.DefaultConfig()
	return &Config{
		Backtest: BacktestConfig{
			InitialCapital: sim.InitialCapital,
		},
		Performance: PerformanceConfig{
			RiskFreeRate:         perf.RiskFreeRate,
			AnnualizationFactor:  perf.AnnualizationFactor,
			TurnoverPerRebalance: perf.TurnoverPerRebalance,
		},
		Output: OutputConfig{
			Prefix: "output",
			Format: string(dataset.FormatCSV),
			Report: true,
		},
		Storage: StorageConfig{
			Type: archive.TypeLocalFS,
			Path: ".",
		},
		Registry: RegistryConfig{
			Enabled: true,
			MaxRuns: 100,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.Simulation().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}
	if err := c.Analysis().Validate(); err != nil {
		return core.WrapError(core.ErrConfigInvalid, err)
	}

	if _, err := dataset.ParseFormat(c.Output.Format); err != nil {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("output.format must be csv or parquet, got %q", c.Output.Format))
	}

	switch c.Storage.Type {
	case "", archive.TypeLocalFS:
	case archive.TypeS3:
		if c.Storage.S3.Bucket == "" {
			return core.WrapError(core.ErrConfigMissing,
				fmt.Errorf("storage.s3.bucket required when storage type is s3"))
		}
	default:
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("storage.type must be localfs or s3, got %q", c.Storage.Type))
	}

	if c.Registry.MaxRuns < 0 {
		return core.WrapError(core.ErrConfigInvalid,
			fmt.Errorf("registry.max_runs cannot be negative, got %d", c.Registry.MaxRuns))
	}

	if c.Metrics.Enabled && c.Metrics.Textfile == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("metrics.textfile required when metrics are enabled"))
	}

	if c.Log.Level != "" {
		if _, err := zap.ParseAtomicLevel(c.Log.Level); err != nil {
			return core.WrapError(core.ErrConfigInvalid, fmt.Errorf("log.level: %w", err))
		}
	}

	return nil
}

// Simulation returns the simulator parameters.
func (c *Config) Simulation() backtest.Config {
	return backtest.Config{InitialCapital: c.Backtest.InitialCapital}
}

// Analysis returns the performance analyzer parameters.
func (c *Config) Analysis() performance.Config {
	return performance.Config{
		RiskFreeRate:         c.Performance.RiskFreeRate,
		AnnualizationFactor:  c.Performance.AnnualizationFactor,
		TurnoverPerRebalance: c.Performance.TurnoverPerRebalance,
	}
}

// Archive returns the storage backend settings.
func (c *Config) Archive() archive.Config {
	return archive.Config{
		Type: c.Storage.Type,
		Path: c.Storage.Path,
		S3: archive.S3Config{
			Bucket:    c.Storage.S3.Bucket,
			Endpoint:  c.Storage.S3.Endpoint,
			Region:    c.Storage.S3.Region,
			AccessKey: c.Storage.S3.AccessKey,
			SecretKey: c.Storage.S3.SecretKey,
			Prefix:    c.Storage.S3.Prefix,
		},
	}
}

// OutputFormat returns the validated output table format.
func (c *Config) OutputFormat() dataset.Format {
	f, err := dataset.ParseFormat(c.Output.Format)
	if err != nil {
		return dataset.FormatCSV
	}
	return f
}
