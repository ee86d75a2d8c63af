package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/heartlink/internal/cliconfig"
	"github.com/bft-labs/heartlink/internal/telemetry"
	"github.com/bft-labs/heartlink/pkg/heartlink"
	"github.com/bft-labs/heartlink/pkg/log"
	"github.com/bft-labs/heartlink/plugins/configwatcher"
)

// Exit codes follow sysexits.h.
const (
	exitOK       = 0
	exitUsage    = 64
	exitSoftware = 70
	exitConfig   = 78
)

const longHelp = `
Keep a fixed set of peers under watch with a PING/PONG heartbeat.

A server binds the endpoint, pings every configured peer on each interval and
goes Online once all of them have answered. A client connects with its
identity, answers each PING with a PONG and goes Online on the first one.
`

var exampleUsage = strings.TrimSpace(`
  heartlink server --peers alpha,beta,gamma --endpoint 0.0.0.0:6801
  heartlink client --id alpha --endpoint 10.0.0.5:6801
  heartlink server --config $HOME/.heartlink/config.toml --metrics-addr :9101
`)

// usageError marks failures in how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// configError marks failures loading or validating configuration.
type configError struct{ err error }

func (e configError) Error() string { return e.err.Error() }
func (e configError) Unwrap() error { return e.err }

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return heartlink.Version
}

func main() {
	root := newRootCmd(os.Stderr)
	err := root.Execute()
	code := exitCode(err)
	if err != nil {
		logger := log.NewZerologAdapter(zerolog.InfoLevel).Logger()
		logger.Error().Err(err).Int("code", code).Msg("heartlink")
	}
	os.Exit(code)
}

// exitCode maps an Execute error onto a process exit status.
func exitCode(err error) int {
	var ue usageError
	var ce configError
	switch {
	case err == nil:
		return exitOK
	case errors.As(err, &ue):
		return exitUsage
	case errors.As(err, &ce), errors.Is(err, cliconfig.ErrInvalid):
		return exitConfig
	default:
		return exitSoftware
	}
}

// newRootCmd builds the command tree. Log output goes to out.
func newRootCmd(out io.Writer) *cobra.Command {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "heartlink",
		Short:         "Fixed-identity heartbeat liveness between a server and its peers",
		Long:          strings.TrimSpace(longHelp),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				return usageError{fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())}
			}
			_ = cmd.Usage()
			return usageError{errors.New("a role is required: server or client")}
		},
	}
	root.SetErr(out)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.heartlink/config.toml)")
	flags.StringVar(&cfg.Identity, "id", cfg.Identity, "client identity announced to the server")
	flags.StringVar(&cfg.Endpoint, "endpoint", cfg.Endpoint, "address the server binds and clients dial")
	flags.StringSliceVar(&cfg.Peers, "peers", cfg.Peers, "peer identities the server watches (comma separated)")
	flags.DurationVar(&cfg.Interval, "interval", cfg.Interval, "heartbeat interval")
	flags.DurationVar(&cfg.ServerTimeout, "server-timeout", cfg.ServerTimeout, "client: report the server down after this much silence (0 disables)")
	flags.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "how long to wait for tasks on shutdown")
	flags.IntVar(&cfg.QueueCapacity, "queue-capacity", cfg.QueueCapacity, "event queue capacity (0 for unbounded)")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (trace, debug, info, warn, error)")
	flags.BoolVar(&cfg.AsyncLog, "async-log", cfg.AsyncLog, "write logs through a non-blocking ring buffer")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address")
	flags.BoolVar(&cfg.WatchConfig, "watch-config", cfg.WatchConfig, "report edits of the config file")

	for _, role := range []heartlink.Role{heartlink.RoleServer, heartlink.RoleClient} {
		role := role
		root.AddCommand(&cobra.Command{
			Use:   string(role),
			Short: fmt.Sprintf("Run as the heartbeat %s", role),
			Args: func(cmd *cobra.Command, args []string) error {
				if err := cobra.NoArgs(cmd, args); err != nil {
					return usageError{err}
				}
				return nil
			},
			RunE: func(cmd *cobra.Command, _ []string) error {
				cfg.Role = string(role)
				path, err := resolveConfig(cmd, &cfg, cfgPath)
				if err != nil {
					return err
				}
				return run(cmd.Context(), cfg, path, out)
			},
		})
	}

	return root
}

// resolveConfig layers the config file, then HEARTLINK_* variables, under
// the flags given on the command line. It returns the config file path in
// use, or "" when there is none.
func resolveConfig(cmd *cobra.Command, cfg *cliconfig.Config, cfgPath string) (string, error) {
	cfgFile := cfgPath
	if cfgFile == "" {
		cfgFile = cliconfig.DefaultConfigPath()
	}

	changed := map[string]bool{}
	cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

	loaded := ""
	if cfgFile != "" && cliconfig.FileExists(cfgFile) {
		fc, err := cliconfig.LoadFileConfig(cfgFile)
		if err != nil {
			return "", configError{fmt.Errorf("load config: %w", err)}
		}
		if err := cliconfig.ApplyFileConfig(cfg, fc, changed); err != nil {
			return "", configError{err}
		}
		loaded = cfgFile
	} else if cfgPath != "" {
		return "", configError{fmt.Errorf("config file %s not found", cfgPath)}
	}

	if err := cliconfig.ApplyEnvConfig(cfg, changed); err != nil {
		return "", configError{err}
	}
	if err := cfg.Validate(); err != nil {
		return "", err
	}
	return loaded, nil
}

// run wires logging, metrics and the config watcher around a Service and
// runs it until a signal arrives or ctx is cancelled.
func run(ctx context.Context, cfg cliconfig.Config, cfgFile string, out io.Writer) error {
	level := log.ParseLevel(cfg.LogLevel)

	var logger log.Logger
	var async *log.AsyncAdapter
	var opts []heartlink.Option
	if cfg.AsyncLog {
		async = log.NewAsyncAdapter(out, level)
		logger = async
		// Swap to synchronous output before the tasks are joined so their
		// last lines are not lost in the ring buffer.
		opts = append(opts, heartlink.WithBeforeJoin(func() { _ = async.Detach() }))
		defer func() { _ = async.Detach() }()
	} else {
		logger = log.NewConsoleAdapter(out, level)
	}
	opts = append(opts, heartlink.WithLogger(logger))

	logger.Info("configuration",
		log.String("role", cfg.Role),
		log.String("identity", cfg.Identity),
		log.String("endpoint", cfg.Endpoint),
		log.Any("peers", cfg.Peers),
		log.Duration("interval", cfg.Interval),
		log.Duration("server_timeout", cfg.ServerTimeout),
		log.Int("queue_capacity", cfg.QueueCapacity),
		log.String("config_file", cfgFile),
	)

	var metrics *telemetry.Metrics
	if cfg.MetricsAddr != "" {
		metrics = telemetry.New()
		metrics.SetBuildInfo(getVersion())
		if async != nil {
			metrics.WatchLogDrops(async.Missed)
		}
		opts = append(opts,
			heartlink.WithRecorder(metrics),
			heartlink.WithPlugin(telemetry.NewPlugin(cfg.MetricsAddr, metrics)),
		)
	}

	if cfg.WatchConfig {
		if cfgFile == "" {
			logger.Warn("watch-config set but no config file is in use")
		} else {
			opts = append(opts, configwatcher.WithDefaultConfigWatcher(cfgFile))
		}
	}

	svc, err := heartlink.New(cfg.Service(), opts...)
	if err != nil {
		return configError{fmt.Errorf("create service: %w", err)}
	}
	if metrics != nil {
		metrics.WatchQueue(svc.Queue().Len)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	go func() {
		select {
		case sig := <-sigCh:
			logger.Info("received signal, stopping...", log.String("signal", sig.String()))
			svc.Terminate()
		case <-ctx.Done():
		}
	}()

	if err := svc.Run(ctx); err != nil {
		return fmt.Errorf("run %s: %w", cfg.Role, err)
	}
	logger.Info("stopped", log.String("state", svc.State()))
	return nil
}
