package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"

	LogFormatText = "text"
	LogFormatJSON = "json"

	CounterBackendMemory = "memory"
	CounterBackendRedis  = "redis"

	envPrefix = "QUICKDROP_"

	defaultListen        = "0.0.0.0:3001"
	defaultEnvFile       = ".env"
	defaultStorageDir    = "./uploads"
	defaultMaxFileSize   = 500 << 20
	defaultMaxFiles      = 20
	defaultPreviewLimit  = 100 << 10
	defaultMaxTextSize   = 1 << 20
	defaultStaleTempAge  = time.Hour
	defaultIdleTimeout   = 10 * time.Minute
	defaultCheckInterval = time.Minute
	defaultShutdownGrace = 500 * time.Millisecond
)

type StorageConfig struct {
	Dir          string        `yaml:"dir"`
	MaxFileSize  int64         `yaml:"max_file_size"`
	MaxFiles     int           `yaml:"max_files"`
	PreviewLimit int64         `yaml:"preview_limit"`
	MaxTextSize  int64         `yaml:"max_text_size"`
	StaleTempAge time.Duration `yaml:"stale_temp_age"`
}

type LivenessConfig struct {
	// IdleTimeout of zero disables idle shutdown.
	IdleTimeout   time.Duration `yaml:"idle_timeout"`
	CheckInterval time.Duration `yaml:"check_interval"`
	ShutdownGrace time.Duration `yaml:"shutdown_grace"`
}

type HandlerConfig struct {
	StaticDir string `yaml:"static_dir"`
	CORS      bool   `yaml:"cors"`
}

type CounterConfig struct {
	Backend  string `yaml:"backend"`
	RedisURL string `yaml:"redis_url"`
}

type Config struct {
	Listen         string         `yaml:"listen"`
	LogLevel       string         `yaml:"log_level"`
	LogFormat      string         `yaml:"log_format"`
	LogFile        string         `yaml:"log_file"`
	EnvFile        string         `yaml:"env_file"`
	ShowQR         bool           `yaml:"show_qr"`
	StorageConfig  StorageConfig  `yaml:"storage"`
	LivenessConfig LivenessConfig `yaml:"liveness"`
	HandlerConfig  HandlerConfig  `yaml:"handler"`
	CounterConfig  CounterConfig  `yaml:"counters"`
}

// Overrides are command line values. Empty strings and a nil IdleTimeout are ignored.
type Overrides struct {
	Listen    string
	Dir       string
	StaticDir string
	// IdleTimeout of zero disables idle shutdown.
	IdleTimeout *time.Duration
}

func (c *Config) SetDefaults() {
	c.Listen = defaultListen
	c.LogLevel = LogLevelInfo
	c.LogFormat = LogFormatText
	c.EnvFile = defaultEnvFile
	c.ShowQR = true

	c.StorageConfig = StorageConfig{
		Dir:          defaultStorageDir,
		MaxFileSize:  defaultMaxFileSize,
		MaxFiles:     defaultMaxFiles,
		PreviewLimit: defaultPreviewLimit,
		MaxTextSize:  defaultMaxTextSize,
		StaleTempAge: defaultStaleTempAge,
	}

	c.LivenessConfig = LivenessConfig{
		IdleTimeout:   defaultIdleTimeout,
		CheckInterval: defaultCheckInterval,
		ShutdownGrace: defaultShutdownGrace,
	}

	c.HandlerConfig = HandlerConfig{CORS: true}
	c.CounterConfig = CounterConfig{Backend: CounterBackendMemory}
}

// Port returns the numeric port of the listen address.
func (c *Config) Port() int {
	_, p, err := net.SplitHostPort(c.Listen)
	if err != nil {
		return 0
	}

	port, err := strconv.Atoi(p)
	if err != nil {
		return 0
	}

	return port
}

func (c *Config) Apply(o Overrides) {
	if o.Listen != "" {
		c.Listen = o.Listen
	}

	if o.Dir != "" {
		c.StorageConfig.Dir = o.Dir
	}

	if o.StaticDir != "" {
		c.HandlerConfig.StaticDir = o.StaticDir
	}

	if o.IdleTimeout != nil {
		c.LivenessConfig.IdleTimeout = *o.IdleTimeout
	}
}

func (c *Config) Validate() error {
	switch c.LogLevel {
	case LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError:
	default:
		return fmt.Errorf("unknown log level: %q", c.LogLevel)
	}

	switch c.LogFormat {
	case LogFormatText, LogFormatJSON:
	default:
		return fmt.Errorf("unknown log format: %q", c.LogFormat)
	}

	if port := c.Port(); port < 1 || port > 65535 {
		return fmt.Errorf("invalid listen address: %q", c.Listen)
	}

	s := c.StorageConfig
	if s.Dir == "" {
		return errors.New("storage dir must be set")
	}

	if s.MaxFileSize <= 0 || s.MaxFiles <= 0 || s.PreviewLimit <= 0 || s.MaxTextSize <= 0 {
		return errors.New("storage limits must be positive")
	}

	l := c.LivenessConfig
	if l.IdleTimeout < 0 || l.CheckInterval <= 0 || l.ShutdownGrace < 0 {
		return errors.New("invalid liveness intervals")
	}

	switch c.CounterConfig.Backend {
	case CounterBackendMemory:
	case CounterBackendRedis:
		if c.CounterConfig.RedisURL == "" {
			return errors.New("redis counters backend requires redis_url")
		}
	default:
		return fmt.Errorf("unknown counters backend: %q", c.CounterConfig.Backend)
	}

	return nil
}

/*
Load builds the config in this order:
 1. defaults
 2. yaml file at path (a missing file is not an error)
 3. the .env file, which never overrides variables already set in the environment
 4. QUICKDROP_* environment variables
*/
func Load(path string) (*Config, error) {
	cfg := &Config{}
	cfg.SetDefaults()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("cannot parse config %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("cannot read config %s: %w", path, err)
		}
	}

	if cfg.EnvFile != "" {
		if err := godotenv.Load(cfg.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("cannot load env file %s: %w", cfg.EnvFile, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func MustLoad(path string, o Overrides) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}

	cfg.Apply(o)

	if err := cfg.Validate(); err != nil {
		panic(err)
	}

	return cfg
}

func (c *Config) applyEnv() error {
	strVars := map[string]*string{
		"LISTEN":           &c.Listen,
		"LOG_LEVEL":        &c.LogLevel,
		"LOG_FORMAT":       &c.LogFormat,
		"LOG_FILE":         &c.LogFile,
		"DIR":              &c.StorageConfig.Dir,
		"STATIC_DIR":       &c.HandlerConfig.StaticDir,
		"COUNTERS_BACKEND": &c.CounterConfig.Backend,
		"REDIS_URL":        &c.CounterConfig.RedisURL,
	}

	for name, dst := range strVars {
		if v, ok := os.LookupEnv(envPrefix + name); ok {
			*dst = v
		}
	}

	durVars := map[string]*time.Duration{
		"IDLE_TIMEOUT":   &c.LivenessConfig.IdleTimeout,
		"CHECK_INTERVAL": &c.LivenessConfig.CheckInterval,
		"SHUTDOWN_GRACE": &c.LivenessConfig.ShutdownGrace,
	}

	for name, dst := range durVars {
		v, ok := os.LookupEnv(envPrefix + name)
		if !ok {
			continue
		}

		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("cannot parse %s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	if v, ok := os.LookupEnv(envPrefix + "MAX_FILE_SIZE"); ok {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("cannot parse %sMAX_FILE_SIZE: %w", envPrefix, err)
		}
		c.StorageConfig.MaxFileSize = n
	}

	if v, ok := os.LookupEnv(envPrefix + "SHOW_QR"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("cannot parse %sSHOW_QR: %w", envPrefix, err)
		}
		c.ShowQR = b
	}

	return nil
}
