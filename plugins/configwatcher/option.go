package configwatcher

import "github.com/bft-labs/heartlink/pkg/heartlink"

// WithConfigWatcher returns a heartlink Option that enables config file watching.
//
// Usage:
//
//	svc, err := heartlink.New(cfg,
//	    configwatcher.WithConfigWatcher(configwatcher.Config{
//	        Path:          "/etc/heartlink/config.toml",
//	        DebounceDelay: 100 * time.Millisecond,
//	    }),
//	)
func WithConfigWatcher(cfg Config) heartlink.Option {
	return heartlink.WithPlugin(New(cfg))
}

// WithDefaultConfigWatcher returns a heartlink Option that watches path
// with default settings (debounce 100ms).
//
// Usage:
//
//	svc, err := heartlink.New(cfg, configwatcher.WithDefaultConfigWatcher(path))
func WithDefaultConfigWatcher(path string) heartlink.Option {
	return WithConfigWatcher(DefaultConfig(path))
}
