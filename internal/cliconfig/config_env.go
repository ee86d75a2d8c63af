package cliconfig

import "os"

// ApplyEnvConfig applies configuration from environment variables (HEARTLINK_*).
// It respects flags that have been explicitly set (changed map).
// Returns error if any environment variable has an invalid format.
func ApplyEnvConfig(cfg *Config, changed map[string]bool) error {
	s := newConfigSetter(changed)

	s.setString("id", os.Getenv("HEARTLINK_IDENTITY"), &cfg.Identity)
	s.setString("endpoint", os.Getenv("HEARTLINK_ENDPOINT"), &cfg.Endpoint)
	s.setString("log-level", os.Getenv("HEARTLINK_LOG_LEVEL"), &cfg.LogLevel)
	s.setString("metrics-addr", os.Getenv("HEARTLINK_METRICS_ADDR"), &cfg.MetricsAddr)
	s.setStrings("peers", ParsePeers(os.Getenv("HEARTLINK_PEERS")), &cfg.Peers)

	if err := s.setDuration("interval", os.Getenv("HEARTLINK_INTERVAL"), &cfg.Interval); err != nil {
		return err
	}
	if err := s.setDuration("server-timeout", os.Getenv("HEARTLINK_SERVER_TIMEOUT"), &cfg.ServerTimeout); err != nil {
		return err
	}
	if err := s.setDuration("shutdown-timeout", os.Getenv("HEARTLINK_SHUTDOWN_TIMEOUT"), &cfg.ShutdownTimeout); err != nil {
		return err
	}

	if err := s.setIntFromString("queue-capacity", os.Getenv("HEARTLINK_QUEUE_CAPACITY"), &cfg.QueueCapacity); err != nil {
		return err
	}

	s.setBoolFromString("async-log", os.Getenv("HEARTLINK_ASYNC_LOG"), &cfg.AsyncLog)
	s.setBoolFromString("watch-config", os.Getenv("HEARTLINK_WATCH_CONFIG"), &cfg.WatchConfig)

	return nil
}
