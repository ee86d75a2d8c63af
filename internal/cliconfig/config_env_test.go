package cliconfig

import (
	"reflect"
	"testing"
	"time"
)

func TestApplyEnvConfig(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		changed  map[string]bool
		initial  Config
		expected Config
		wantErr  bool
	}{
		{
			name: "applies all valid env vars",
			envVars: map[string]string{
				"HEARTLINK_IDENTITY":         "env-node",
				"HEARTLINK_ENDPOINT":         "10.0.0.2:6801",
				"HEARTLINK_PEERS":            "A,B C",
				"HEARTLINK_INTERVAL":         "1s",
				"HEARTLINK_SERVER_TIMEOUT":   "8s",
				"HEARTLINK_SHUTDOWN_TIMEOUT": "3s",
				"HEARTLINK_QUEUE_CAPACITY":   "16",
				"HEARTLINK_LOG_LEVEL":        "trace",
				"HEARTLINK_METRICS_ADDR":     ":9100",
				"HEARTLINK_ASYNC_LOG":        "1",
				"HEARTLINK_WATCH_CONFIG":     "true",
			},
			changed: map[string]bool{},
			initial: Config{},
			expected: Config{
				Identity:        "env-node",
				Endpoint:        "10.0.0.2:6801",
				Peers:           []string{"A", "B", "C"},
				Interval:        time.Second,
				ServerTimeout:   8 * time.Second,
				ShutdownTimeout: 3 * time.Second,
				QueueCapacity:   16,
				LogLevel:        "trace",
				MetricsAddr:     ":9100",
				AsyncLog:        true,
				WatchConfig:     true,
			},
		},
		{
			name: "respects changed flags",
			envVars: map[string]string{
				"HEARTLINK_IDENTITY": "env-node",
				"HEARTLINK_PEERS":    "X,Y",
			},
			changed: map[string]bool{"id": true},
			initial: Config{Identity: "flag-node"},
			expected: Config{
				Identity: "flag-node",
				Peers:    []string{"X", "Y"},
			},
		},
		{
			name:    "returns error for invalid duration",
			envVars: map[string]string{"HEARTLINK_INTERVAL": "not-a-duration"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:    "returns error for invalid int",
			envVars: map[string]string{"HEARTLINK_QUEUE_CAPACITY": "lots"},
			changed: map[string]bool{},
			wantErr: true,
		},
		{
			name:     "handles bool 'false' as false",
			envVars:  map[string]string{"HEARTLINK_ASYNC_LOG": "false"},
			changed:  map[string]bool{},
			initial:  Config{AsyncLog: true},
			expected: Config{AsyncLog: false},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.envVars {
				t.Setenv(k, v)
			}

			cfg := tt.initial
			err := ApplyEnvConfig(&cfg, tt.changed)

			if tt.wantErr {
				if err == nil {
					t.Error("ApplyEnvConfig() expected error but got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("ApplyEnvConfig() unexpected error: %v", err)
			}
			if !reflect.DeepEqual(cfg, tt.expected) {
				t.Errorf("config = %+v, want %+v", cfg, tt.expected)
			}
		})
	}
}
