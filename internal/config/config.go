package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"github.com/joho/godotenv"
)

// Environment variables read by New and Load.
const (
	// EnvCacheConnection is the document store connection string.
	EnvCacheConnection = "CACHR_DB_CONNECTION"

	// EnvCacheDatabase overrides the document store database name.
	EnvCacheDatabase = "DA_CACHR_DATABASE"

	// EnvNumWorkers overrides process.num_workers.
	EnvNumWorkers = "DA_NUM_WORKERS"

	// EnvNumBatches overrides process.num_batches.
	EnvNumBatches = "DA_NUM_BATCHES"

	// EnvLogLevel overrides logging.level.
	EnvLogLevel = "DA_LOG_LEVEL"

	// EnvLogFormat overrides logging.format.
	EnvLogFormat = "DA_LOG_FORMAT"

	// EnvLogName names the log file written under the temp dir's logs/ folder.
	EnvLogName = "LOG_NAME"

	// EnvConfigFile points at the YAML config file.
	EnvConfigFile = "DA_CONFIG"
)

const (
	// DefaultCacheDatabase is the database holding one collection per cache.
	DefaultCacheDatabase = "bed_cachr"

	// DefaultConnectTimeout bounds backend connection and ping at startup.
	DefaultConnectTimeout = 10 * time.Second

	configDirName  = ".da"
	configFileName = "config.yaml"
)

// ErrMissingConnection is returned when no cache connection string is configured.
var ErrMissingConnection = errors.New("cache connection string is not set (" + EnvCacheConnection + ")")

// Config is the complete da configuration.
//
// YAML Location: ~/.da/config.yaml
//
// Example:
//
//	process:
//	  num_workers: 4
//	  num_batches: 8
//	cache:
//	  uri: mongodb://localhost:27017
//	  database: bed_cachr
//	logging:
//	  level: debug
type Config struct {
	Process ProcessSettings `yaml:"process" json:"process"`
	Cache   CacheConfig     `yaml:"cache"   json:"cache"`
	Logging LoggingConfig   `yaml:"logging" json:"logging"`
}

// CacheConfig configures the document store behind the cache.
type CacheConfig struct {
	// URI selects the backend by scheme: mongodb://, mongodb+srv://, redis://,
	// rediss://, sqlite://<path>, file://<dir> or memory://.
	URI string `yaml:"uri,omitempty" json:"uri,omitempty"`

	// Database is the database (or key namespace) holding cache collections.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// ConnectTimeout bounds connecting and pinging the backend.
	ConnectTimeout time.Duration `yaml:"connect_timeout,omitempty" json:"connect_timeout,omitempty"`
}

// Validate reports a missing connection string.
func (c CacheConfig) Validate() error {
	if c.URI == "" {
		return ErrMissingConnection
	}
	return nil
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Cache: CacheConfig{
			Database:       DefaultCacheDatabase,
			ConnectTimeout: DefaultConnectTimeout,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// New builds the configuration from defaults, the config file (DefaultConfigPath),
// a .env file in the working directory, and environment overrides, in that order.
func New() (*Config, error) {
	return Load(DefaultConfigPath())
}

// Load is New with an explicit config file path. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := ShallowMergeYAML(cfg, path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the sections that can be validated without a backend.
func (c *Config) Validate() error {
	if err := c.Process.Validate(); err != nil {
		return fmt.Errorf("process: %w", err)
	}
	if c.Cache.ConnectTimeout < 0 {
		return fmt.Errorf("cache: connect_timeout must be >= 0, got %s", c.Cache.ConnectTimeout)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv(EnvCacheConnection); v != "" {
		c.Cache.URI = v
	}
	if v := os.Getenv(EnvCacheDatabase); v != "" {
		c.Cache.Database = v
	}
	if v := os.Getenv(EnvNumWorkers); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvNumWorkers, err)
		}
		c.Process.NumWorkers = n
	}
	if v := os.Getenv(EnvNumBatches); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing %s: %w", EnvNumBatches, err)
		}
		c.Process.NumBatches = n
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv(EnvLogName); v != "" && c.Logging.File == "" {
		c.Logging.File = filepath.Join(os.TempDir(), "logs", v+".log")
	}
	return nil
}

// DefaultConfigPath returns $DA_CONFIG or config.yaml in the configuration
// directory. It returns "" if the home directory cannot be determined.
func DefaultConfigPath() string {
	if p := os.Getenv(EnvConfigFile); p != "" {
		return p
	}
	dir, err := GetConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, configFileName)
}

//nolint:gochecknoglobals // set once at CLI startup, read by commands
var (
	globalConfig   *Config
	globalConfigMu sync.RWMutex
)

// SetGlobalConfig stores cfg for GetGlobalConfig.
func SetGlobalConfig(cfg *Config) {
	globalConfigMu.Lock()
	defer globalConfigMu.Unlock()
	globalConfig = cfg
}

// GetGlobalConfig returns the configuration set at startup, or defaults.
func GetGlobalConfig() *Config {
	globalConfigMu.RLock()
	defer globalConfigMu.RUnlock()
	if globalConfig == nil {
		return Default()
	}
	return globalConfig
}
