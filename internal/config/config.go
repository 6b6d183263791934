package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/denisbrodbeck/machineid"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/openmined/fimsync/internal/integrity"
	"github.com/openmined/fimsync/internal/utils"
)

const (
	EnvPrefix   = "FIMSYNC"
	appIDSecret = "fimsync"

	DefaultControlAddr  = "127.0.0.1:7939"
	DefaultScanInterval = 12 * time.Hour
	DefaultLogLevel     = "info"
)

var (
	home, _          = os.UserHomeDir()
	DefaultConfigDir = filepath.Join(home, ".fimsync")
	// DefaultConfigPath is looked up when no --config is given
	DefaultConfigPath = filepath.Join(DefaultConfigDir, "config.json")
	DefaultStorePath  = filepath.Join(DefaultConfigDir, "fim.db")
	DefaultLogFile    = filepath.Join(DefaultConfigDir, "logs", "fimsync.log")
)

var (
	ErrNoStorePath      = errors.New("store_path is required")
	ErrNoDirectories    = errors.New("at least one monitored directory is required")
	ErrInvalidServerURL = errors.New("server_url must be an http(s) or ws(s) url")
	ErrInvalidDuration  = errors.New("interval must be positive")
	ErrInvalidQueueSize = errors.New("sync_queue_size must be positive")
	ErrInvalidMaxEPS    = errors.New("sync_max_eps must not be negative")
)

type Config struct {
	Path string `json:"-" mapstructure:"-"`

	StorePath   string   `json:"store_path" mapstructure:"store_path"`
	ServerURL   string   `json:"server_url" mapstructure:"server_url"`
	Token       string   `json:"token,omitempty" mapstructure:"token"`
	AgentID     string   `json:"agent_id" mapstructure:"agent_id"`
	Directories []string `json:"directories" mapstructure:"directories"`
	Ignore      []string `json:"ignore,omitempty" mapstructure:"ignore"`
	Restrict    []string `json:"restrict,omitempty" mapstructure:"restrict"`
	Realtime    bool     `json:"realtime" mapstructure:"realtime"`

	ScanInterval        time.Duration `json:"scan_interval" mapstructure:"scan_interval"`
	SyncInterval        time.Duration `json:"sync_interval" mapstructure:"sync_interval"`
	SyncResponseTimeout time.Duration `json:"sync_response_timeout" mapstructure:"sync_response_timeout"`
	SyncQueueSize       int           `json:"sync_queue_size" mapstructure:"sync_queue_size"`
	SyncMaxEPS          int           `json:"sync_max_eps" mapstructure:"sync_max_eps"`

	ControlAddr  string `json:"control_addr" mapstructure:"control_addr"`
	ControlToken string `json:"control_token,omitempty" mapstructure:"control_token"`

	LogFile  string `json:"log_file" mapstructure:"log_file"`
	LogLevel string `json:"log_level" mapstructure:"log_level"`
}

// SetDefaults registers the default value of every key on v
func SetDefaults(v *viper.Viper) {
	sync := integrity.DefaultConfig()

	v.SetDefault("store_path", DefaultStorePath)
	v.SetDefault("realtime", true)
	v.SetDefault("scan_interval", DefaultScanInterval)
	v.SetDefault("sync_interval", sync.SyncInterval)
	v.SetDefault("sync_response_timeout", sync.ResponseTimeout)
	v.SetDefault("sync_queue_size", sync.QueueSize)
	v.SetDefault("sync_max_eps", sync.MaxEPS)
	v.SetDefault("control_addr", DefaultControlAddr)
	v.SetDefault("log_file", DefaultLogFile)
	v.SetDefault("log_level", DefaultLogLevel)
}

// FromViper reads every key from v. Durations accept Go duration strings
// or plain seconds.
func FromViper(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Path:                v.ConfigFileUsed(),
		StorePath:           v.GetString("store_path"),
		ServerURL:           v.GetString("server_url"),
		Token:               v.GetString("token"),
		AgentID:             v.GetString("agent_id"),
		Directories:         v.GetStringSlice("directories"),
		Ignore:              v.GetStringSlice("ignore"),
		Restrict:            v.GetStringSlice("restrict"),
		Realtime:            v.GetBool("realtime"),
		ScanInterval:        seconds(v, "scan_interval"),
		SyncInterval:        seconds(v, "sync_interval"),
		SyncResponseTimeout: seconds(v, "sync_response_timeout"),
		SyncQueueSize:       v.GetInt("sync_queue_size"),
		SyncMaxEPS:          v.GetInt("sync_max_eps"),
		ControlAddr:         v.GetString("control_addr"),
		ControlToken:        v.GetString("control_token"),
		LogFile:             v.GetString("log_file"),
		LogLevel:            v.GetString("log_level"),
	}

	if cfg.AgentID == "" {
		cfg.AgentID = DefaultAgentID()
	}

	if err := cfg.resolvePaths(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// seconds treats bare numbers as seconds, which is how the interval keys
// are usually written in config files
func seconds(v *viper.Viper, key string) time.Duration {
	switch raw := v.Get(key).(type) {
	case int:
		return time.Duration(raw) * time.Second
	case int64:
		return time.Duration(raw) * time.Second
	case float64:
		return time.Duration(raw * float64(time.Second))
	case string:
		if n, err := strconv.ParseFloat(raw, 64); err == nil {
			return time.Duration(n * float64(time.Second))
		}
	}
	return v.GetDuration(key)
}

func (c *Config) resolvePaths() error {
	var err error
	if c.StorePath != "" {
		if c.StorePath, err = utils.ResolvePath(c.StorePath); err != nil {
			return fmt.Errorf("store_path: %w", err)
		}
	}
	if c.LogFile != "" {
		if c.LogFile, err = utils.ResolvePath(c.LogFile); err != nil {
			return fmt.Errorf("log_file: %w", err)
		}
	}
	for i, dir := range c.Directories {
		if c.Directories[i], err = utils.ResolvePath(dir); err != nil {
			return fmt.Errorf("directories: %w", err)
		}
	}
	return nil
}

// Validate checks the settings the daemon cannot run without
func (c *Config) Validate() error {
	if c.StorePath == "" {
		return ErrNoStorePath
	}
	if len(c.Directories) == 0 {
		return ErrNoDirectories
	}
	if c.ServerURL != "" {
		u, err := url.Parse(c.ServerURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidServerURL, err)
		}
		switch u.Scheme {
		case "http", "https", "ws", "wss":
		default:
			return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
		}
		if u.Host == "" {
			return fmt.Errorf("%w: %q", ErrInvalidServerURL, c.ServerURL)
		}
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync_interval: %w", ErrInvalidDuration)
	}
	if c.SyncResponseTimeout <= 0 {
		return fmt.Errorf("sync_response_timeout: %w", ErrInvalidDuration)
	}
	if c.ScanInterval <= 0 {
		return fmt.Errorf("scan_interval: %w", ErrInvalidDuration)
	}
	if c.SyncQueueSize < 1 {
		return ErrInvalidQueueSize
	}
	if c.SyncMaxEPS < 0 {
		return ErrInvalidMaxEPS
	}
	return nil
}

// Sync returns the engine settings
func (c *Config) Sync() integrity.Config {
	return integrity.Config{
		SyncInterval:    c.SyncInterval,
		ResponseTimeout: c.SyncResponseTimeout,
		QueueSize:       c.SyncQueueSize,
		MaxEPS:          c.SyncMaxEPS,
	}
}

// DefaultAgentID derives a stable id from the machine id, or a random one
// when the machine id is unavailable
func DefaultAgentID() string {
	id, err := machineid.ProtectedID(appIDSecret)
	if err == nil && id != "" {
		return id
	}
	slog.Debug("machine id unavailable, using random agent id", "error", err)
	return uuid.NewString()
}

// LoadDotEnv loads FIMSYNC_* variables from a .env file when it exists
func LoadDotEnv(path string) error {
	if !utils.FileExists(path) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
