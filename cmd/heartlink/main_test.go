package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bft-labs/heartlink/internal/cliconfig"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// isolate keeps the user's home config and HEARTLINK_* variables out of the test.
func isolate(t *testing.T) {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	for _, kv := range os.Environ() {
		if name, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(name, "HEARTLINK_") {
			t.Setenv(name, "")
		}
	}
}

func execute(t *testing.T, args ...string) (int, string) {
	t.Helper()
	var out syncBuffer
	root := newRootCmd(&out)
	root.SetArgs(args)
	err := root.Execute()
	return exitCode(err), out.String()
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"usage", usageError{errors.New("bad flag")}, exitUsage},
		{"config", configError{errors.New("load")}, exitConfig},
		{"invalid", fmt.Errorf("wrapped: %w", cliconfig.ErrInvalid), exitConfig},
		{"runtime", errors.New("boom"), exitSoftware},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}

func TestRootCmd_UsageErrors(t *testing.T) {
	isolate(t)
	tests := []struct {
		name string
		args []string
	}{
		{"no role", nil},
		{"unknown role", []string{"relay"}},
		{"unknown flag", []string{"server", "--bogus"}},
		{"bad duration", []string{"server", "--interval", "soon"}},
		{"extra args", []string{"client", "extra"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := execute(t, tt.args...); code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
		})
	}
}

func TestRootCmd_ConfigErrors(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	broken := filepath.Join(dir, "broken.toml")
	if err := os.WriteFile(broken, []byte("peers = [\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		args []string
	}{
		{"client without identity", []string{"client"}},
		{"server without peers", []string{"server"}},
		{"duplicate peers", []string{"server", "--peers", "a,a"}},
		{"bad log level", []string{"server", "--peers", "a", "--log-level", "loud"}},
		{"missing config file", []string{"server", "--config", filepath.Join(dir, "absent.toml")}},
		{"unparsable config file", []string{"server", "--config", broken}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := execute(t, tt.args...); code != exitConfig {
				t.Errorf("exit code = %d, want %d", code, exitConfig)
			}
		})
	}
}

func TestRootCmd_EnvFeedsConfig(t *testing.T) {
	isolate(t)
	t.Setenv("HEARTLINK_INTERVAL", "never")

	if code, _ := execute(t, "server", "--peers", "a"); code != exitConfig {
		t.Errorf("exit code = %d, want %d", code, exitConfig)
	}
}

func TestRootCmd_ServerRunsUntilCancelled(t *testing.T) {
	isolate(t)
	dir := t.TempDir()
	cfgFile := filepath.Join(dir, "config.toml")
	content := `
peers = "alpha, beta"
endpoint = "127.0.0.1:0"
interval = "50ms"
async_log = true
metrics_addr = "127.0.0.1:0"
watch_config = true
`
	if err := os.WriteFile(cfgFile, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	var out syncBuffer
	root := newRootCmd(&out)
	root.SetArgs([]string{"server", "--config", cfgFile, "--log-level", "debug"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- root.ExecuteContext(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for !strings.Contains(out.String(), "service started") {
		if time.Now().After(deadline) {
			cancel()
			t.Fatalf("service did not start; output:\n%s", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if code := exitCode(err); code != exitOK {
			t.Fatalf("exit code = %d (%v), want 0", code, err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("command did not return after cancel")
	}

	logs := out.String()
	for _, want := range []string{"configuration", "alpha", "stopped"} {
		if !strings.Contains(logs, want) {
			t.Errorf("output missing %q:\n%s", want, logs)
		}
	}
}
