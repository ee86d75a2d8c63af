package cliconfig

import (
	"fmt"
	"os"
	"path/filepath"

	toml "github.com/pelletier/go-toml/v2"
)

// FileConfig mirrors Config but uses strings for durations to make TOML friendly.
// Peers may be a TOML array or a single comma/space separated string.
type FileConfig struct {
	Identity        string `toml:"identity"`
	Endpoint        string `toml:"endpoint"`
	Peers           any    `toml:"peers"`
	Interval        string `toml:"interval"`
	ServerTimeout   string `toml:"server_timeout"`
	ShutdownTimeout string `toml:"shutdown_timeout"`
	QueueCapacity   int    `toml:"queue_capacity"`
	LogLevel        string `toml:"log_level"`
	AsyncLog        *bool  `toml:"async_log"`
	MetricsAddr     string `toml:"metrics_addr"`
	WatchConfig     *bool  `toml:"watch_config"`
}

// LoadFileConfig reads and parses a TOML config file from the given path.
func LoadFileConfig(path string) (FileConfig, error) {
	var fc FileConfig
	b, err := os.ReadFile(path)
	if err != nil {
		return fc, err
	}
	if err := toml.Unmarshal(b, &fc); err != nil {
		return fc, fmt.Errorf("%w: %s: %v", ErrInvalid, path, err)
	}
	return fc, nil
}

// DefaultConfigPath returns the default configuration file path.
// Returns ~/.heartlink/config.toml if user home directory is accessible.
func DefaultConfigPath() string {
	if h, err := os.UserHomeDir(); err == nil {
		return filepath.Join(h, ".heartlink", "config.toml")
	}
	return ""
}

// ApplyFileConfig applies configuration from a file to the Config struct.
// It respects flags that have been explicitly set (changed map).
func ApplyFileConfig(cfg *Config, fc FileConfig, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("id", fc.Identity, &cfg.Identity)
	s.setString("endpoint", fc.Endpoint, &cfg.Endpoint)
	s.setString("log-level", fc.LogLevel, &cfg.LogLevel)
	s.setString("metrics-addr", fc.MetricsAddr, &cfg.MetricsAddr)

	peers, err := filePeers(fc.Peers)
	if err != nil {
		return err
	}
	s.setStrings("peers", peers, &cfg.Peers)

	if err := s.setDuration("interval", fc.Interval, &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("server-timeout", fc.ServerTimeout, &cfg.ServerTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", fc.ShutdownTimeout, &cfg.ShutdownTimeout); err != nil {
		return err
	}

	s.setInt("queue-capacity", fc.QueueCapacity, &cfg.QueueCapacity)

	s.setBool("async-log", fc.AsyncLog, &cfg.AsyncLog)
	s.setBool("watch-config", fc.WatchConfig, &cfg.WatchConfig)

	return nil
}

// filePeers accepts either an array of strings or a separated string.
func filePeers(v any) ([]string, error) {
	switch p := v.(type) {
	case nil:
		return nil, nil
	case string:
		return ParsePeers(p), nil
	case []any:
		out := make([]string, 0, len(p))
		for _, item := range p {
			id, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("%w: peers: %v is not a string", ErrInvalid, item)
			}
			out = append(out, id)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: peers must be an array or a string, got %T", ErrInvalid, v)
	}
}

// FileExists checks if a file exists at the given path.
func FileExists(p string) bool {
	_, err := os.Stat(p)
	return err == nil
}
