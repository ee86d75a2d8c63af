package cliconfig

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/bft-labs/heartlink/pkg/heartlink"
)

// DefaultEndpoint is the address the server binds and clients dial.
const DefaultEndpoint = heartlink.DefaultEndpoint

// ErrInvalid marks configuration errors. The CLI maps it to exit code 78.
var ErrInvalid = errors.New("invalid configuration")

// Config holds CLI configuration for heartlink.
type Config struct {
	Role     string
	Identity string
	Endpoint string
	Peers    []string

	Interval        time.Duration
	ServerTimeout   time.Duration
	ShutdownTimeout time.Duration
	QueueCapacity   int

	LogLevel    string
	AsyncLog    bool
	MetricsAddr string
	WatchConfig bool
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		Endpoint:        DefaultEndpoint,
		Interval:        heartlink.DefaultInterval,
		ShutdownTimeout: heartlink.DefaultShutdownTimeout,
		LogLevel:        "info",
	}
}

// Validate checks the configuration for errors.
// Every returned error wraps ErrInvalid.
func (c *Config) Validate() error {
	if c.Endpoint == "" {
		return invalid("endpoint is required")
	}
	if c.Interval <= 0 {
		return invalid("interval must be positive")
	}
	if c.ServerTimeout < 0 {
		return invalid("server timeout must not be negative")
	}
	if c.ShutdownTimeout <= 0 {
		return invalid("shutdown timeout must be positive")
	}
	if c.QueueCapacity < 0 {
		return invalid("queue capacity must not be negative")
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return invalid("unknown log level %q", c.LogLevel)
	}

	if err := c.Service().Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return nil
}

// Service converts the CLI configuration into a heartlink.Config.
func (c Config) Service() heartlink.Config {
	return heartlink.Config{
		Role:            heartlink.Role(c.Role),
		Identity:        c.Identity,
		Endpoint:        c.Endpoint,
		Peers:           c.Peers,
		Interval:        c.Interval,
		ServerTimeout:   c.ServerTimeout,
		QueueCapacity:   c.QueueCapacity,
		ShutdownTimeout: c.ShutdownTimeout,
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// ParsePeers splits a peer list separated by commas or whitespace.
func ParsePeers(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == '\r'
	})
}

// configSetter helps apply configuration values while respecting flag precedence.
// It only applies values if the corresponding flag hasn't been explicitly set.
type configSetter struct {
	changed map[string]bool
}

// newConfigSetter creates a new setter with the given changed flags map.
func newConfigSetter(changed map[string]bool) *configSetter {
	return &configSetter{changed: changed}
}

// setString sets a string value if not empty and flag not changed.
func (s *configSetter) setString(flag, value string, dst *string) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value
}

// setStrings sets a list if not empty and flag not changed.
func (s *configSetter) setStrings(flag string, value []string, dst *[]string) {
	if len(value) == 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setInt sets an int value if positive and flag not changed.
func (s *configSetter) setInt(flag string, value int, dst *int) {
	if value <= 0 || s.changed[flag] {
		return
	}
	*dst = value
}

// setDuration parses and sets a duration from string if valid and flag not changed.
func (s *configSetter) setDuration(flag, value string, dst *time.Duration) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, flag, err)
	}
	*dst = d
	return nil
}

// setBool sets a bool value from a pointer if not nil and flag not changed.
func (s *configSetter) setBool(flag string, value *bool, dst *bool) {
	if value == nil || s.changed[flag] {
		return
	}
	*dst = *value
}

// setIntFromString parses a string to int and sets the destination if valid.
// Used for environment variables that come as strings.
func (s *configSetter) setIntFromString(flag, value string, dst *int) error {
	if value == "" || s.changed[flag] {
		return nil
	}
	i, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("%w: parse %s: %v", ErrInvalid, flag, err)
	}
	if i <= 0 {
		return nil
	}
	*dst = i
	return nil
}

// setBoolFromString parses a string to bool and sets the destination.
// Accepts "true", "1" as true, anything else as false.
// Used for environment variables that come as strings.
func (s *configSetter) setBoolFromString(flag, value string, dst *bool) {
	if value == "" || s.changed[flag] {
		return
	}
	*dst = value == "true" || value == "1"
}
