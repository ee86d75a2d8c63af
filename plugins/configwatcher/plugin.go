// Package configwatcher provides config file monitoring for heartlink.
// When enabled, it watches the configuration file and posts a
// ConfigChanged event to the state loop whenever the file is written.
package configwatcher

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/heartlink"
	"github.com/bft-labs/heartlink/pkg/log"
)

// Plugin implements config watching functionality.
// It watches the directory holding the file so that editors replacing the
// file through a rename are still noticed.
type Plugin struct {
	mu sync.Mutex

	// Configuration
	path          string
	debounceDelay time.Duration

	// Runtime state
	events   event.Poster
	logger   log.Logger
	watcher  *fsnotify.Watcher
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	debounce *time.Timer
}

// Config holds configuration options for the config watcher plugin.
type Config struct {
	// Path is the file to watch.
	Path string

	// DebounceDelay collapses bursts of writes into one event.
	// Default: 100 milliseconds
	DebounceDelay time.Duration
}

// DefaultConfig returns a Config with sensible defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:          path,
		DebounceDelay: 100 * time.Millisecond,
	}
}

// New creates a new config watcher plugin with the given configuration.
func New(cfg Config) *Plugin {
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = 100 * time.Millisecond
	}
	return &Plugin{
		path:          cfg.Path,
		debounceDelay: cfg.DebounceDelay,
	}
}

// Name returns the plugin identifier.
func (p *Plugin) Name() string {
	return "configwatcher"
}

// Initialize starts watching the configured file.
func (p *Plugin) Initialize(ctx context.Context, pc heartlink.PluginContext) error {
	p.mu.Lock()
	p.events = pc.Events
	p.logger = log.Named(pc.Logger, "configwatcher")
	p.mu.Unlock()

	if p.path == "" {
		p.logger.Warn("config watcher disabled: no config file")
		return nil
	}
	if p.events == nil {
		return errors.New("configwatcher: no event poster")
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return err
	}
	p.watcher = watcher

	watchCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.logger.Info("watching config file", log.String("path", p.path))

	p.wg.Add(1)
	go p.watchLoop(watchCtx)
	return nil
}

// Shutdown stops the config watcher.
func (p *Plugin) Shutdown(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()

	p.mu.Lock()
	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.mu.Unlock()

	if p.watcher != nil {
		return p.watcher.Close()
	}
	return nil
}

// watchLoop forwards writes to the watched file.
func (p *Plugin) watchLoop(ctx context.Context) {
	defer p.wg.Done()

	target := filepath.Clean(p.path)
	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-p.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			p.debouncePost(ctx)

		case err, ok := <-p.watcher.Errors:
			if !ok {
				return
			}
			p.logger.Error("config watcher error", log.Err(err))
		}
	}
}

func (p *Plugin) debouncePost(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.debounce != nil {
		p.debounce.Stop()
	}
	p.debounce = time.AfterFunc(p.debounceDelay, func() {
		if ctx.Err() != nil {
			return
		}
		if err := p.events.Enqueue(event.ConfigChanged(p.path)); err != nil {
			p.logger.Warn("config change not posted", log.Err(err))
			return
		}
		p.logger.Debug("config change posted", log.String("path", p.path))
	})
}

// Ensure Plugin implements heartlink.Plugin.
var _ heartlink.Plugin = (*Plugin)(nil)
