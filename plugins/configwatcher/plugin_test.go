package configwatcher

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/heartlink/pkg/event"
	"github.com/bft-labs/heartlink/pkg/heartlink"
	"github.com/bft-labs/heartlink/pkg/log"
)

// eventCollector implements event.Poster.
type eventCollector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *eventCollector) Enqueue(ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *eventCollector) Events() []event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]event.Event{}, c.events...)
}

func waitForEvents(t *testing.T, c *eventCollector, n int) []event.Event {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for {
		if evs := c.Events(); len(evs) >= n {
			return evs
		}
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %d events, have %v", n, c.Events())
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestPlugin_PostsConfigChanged(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, []byte(`interval = "2s"`), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	collector := &eventCollector{}
	plugin := New(Config{Path: path, DebounceDelay: 50 * time.Millisecond})
	err := plugin.Initialize(context.Background(), heartlink.PluginContext{
		Logger: log.NewNoopLogger(),
		Events: collector,
	})
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	defer plugin.Shutdown(context.Background())

	// unrelated files in the same directory are ignored
	if err := os.WriteFile(filepath.Join(tmpDir, "other.toml"), []byte("x = 1"), 0644); err != nil {
		t.Fatal(err)
	}

	// a burst of writes collapses into one event
	for i := 0; i < 3; i++ {
		if err := os.WriteFile(path, []byte(`interval = "1s"`), 0644); err != nil {
			t.Fatal(err)
		}
	}

	waitForEvents(t, collector, 1)
	time.Sleep(150 * time.Millisecond)
	evs := collector.Events()
	if len(evs) != 1 {
		t.Fatalf("events = %v, want exactly one", evs)
	}
	if evs[0] != event.ConfigChanged(path) {
		t.Errorf("event = %v, want ConfigChanged(%s)", evs[0], path)
	}
}

func TestPlugin_DisabledWithoutPath(t *testing.T) {
	plugin := New(Config{})
	if plugin.Name() != "configwatcher" {
		t.Errorf("Name() = %s", plugin.Name())
	}
	err := plugin.Initialize(context.Background(), heartlink.PluginContext{
		Logger: log.NewNoopLogger(),
		Events: &eventCollector{},
	})
	if err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if err := plugin.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestPlugin_MissingDirectory(t *testing.T) {
	plugin := New(DefaultConfig("/nonexistent/dir/config.toml"))
	err := plugin.Initialize(context.Background(), heartlink.PluginContext{
		Logger: log.NewNoopLogger(),
		Events: &eventCollector{},
	})
	if err == nil {
		_ = plugin.Shutdown(context.Background())
		t.Fatal("Initialize() succeeded for a missing directory")
	}
}

func TestPlugin_NoEventsAfterShutdown(t *testing.T) {
	tmpDir := t.TempDir()
	path := filepath.Join(tmpDir, "config.toml")
	if err := os.WriteFile(path, nil, 0644); err != nil {
		t.Fatal(err)
	}

	collector := &eventCollector{}
	plugin := New(Config{Path: path, DebounceDelay: 10 * time.Millisecond})
	if err := plugin.Initialize(context.Background(), heartlink.PluginContext{
		Logger: log.NewNoopLogger(),
		Events: collector,
	}); err != nil {
		t.Fatal(err)
	}
	if err := plugin.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}

	_ = os.WriteFile(path, []byte("x = 1"), 0644)
	time.Sleep(50 * time.Millisecond)
	if evs := collector.Events(); len(evs) != 0 {
		t.Errorf("events after shutdown = %v, want none", evs)
	}
}
