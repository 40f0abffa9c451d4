package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"runtime/debug"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	pflag "github.com/spf13/pflag"

	"github.com/bft-labs/clockbridge/internal/adapters/devwatch"
	logadapter "github.com/bft-labs/clockbridge/internal/adapters/log"
	"github.com/bft-labs/clockbridge/internal/adapters/metrics"
	"github.com/bft-labs/clockbridge/internal/adapters/serialport"
	"github.com/bft-labs/clockbridge/internal/adapters/stream"
	"github.com/bft-labs/clockbridge/internal/cliconfig"
	"github.com/bft-labs/clockbridge/internal/ports"
	"github.com/bft-labs/clockbridge/pkg/clockbridge"
)

const helpDescription = `
Bridge remote garage-door events to the serial clock controller.

Events arrive as JSON lines ({"name":..., "data":...}) on stdin or a file.
Each event becomes one command; commands are sent one at a time at 9600 8N1
and resent until the controller answers "100 0".

The process exits with status 1 if a command cannot be written.
`

var exampleUsage = strings.TrimSpace(`
  clockbridge --vendor-id 0403 < events.jsonl
  clockbridge --port /dev/ttyUSB0 --events /run/clockbridge/events --metrics-addr :9100
  clockbridge --config $HOME/.clockbridge/config.toml --max-retries 5 --response-timeout 3s
`)

func getVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func main() {
	cfg := cliconfig.DefaultConfig()
	var cfgPath string

	root := &cobra.Command{
		Use:           "clockbridge",
		Short:         "Bridge remote events to a serial clock controller",
		Long:          strings.TrimSpace(helpDescription),
		Example:       exampleUsage,
		Version:       fmt.Sprintf("%s %s/%s", getVersion(), runtime.GOOS, runtime.GOARCH),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfgFile := cfgPath
			if cfgFile == "" {
				cfgFile = cliconfig.DefaultConfigPath()
			}

			changed := map[string]bool{}
			cmd.Flags().Visit(func(f *pflag.Flag) { changed[f.Name] = true })

			if cfgFile != "" && cliconfig.FileExists(cfgFile) {
				fc, err := cliconfig.LoadFileConfig(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				if err := cliconfig.ApplyFileConfig(&cfg, fc, changed); err != nil {
					return err
				}
			}
			if err := cliconfig.ApplyEnvConfig(&cfg, changed); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger, err := cfg.Logger(os.Stderr)
			if err != nil {
				return err
			}
			logger.Info("configuration", ports.Any("config", cfg))

			return run(cmd.Context(), cfg, logger)
		},
	}

	f := root.Flags()
	f.StringVar(&cfgPath, "config", "", "path to config file (default: $HOME/.clockbridge/config.toml)")
	f.StringVar(&cfg.Port, "port", cfg.Port, "serial device path; skips USB discovery")
	f.StringVar(&cfg.Manufacturer, "manufacturer", cfg.Manufacturer, "match USB devices whose product string (not manufacturer) contains this")
	f.StringVar(&cfg.VendorID, "vendor-id", cfg.VendorID, "match USB devices with this vendor id")
	f.StringVar(&cfg.SerialBackend, "serial-backend", cfg.SerialBackend, "serial library: tarm or native")
	f.StringVar(&cfg.DeviceDir, "device-dir", cfg.DeviceDir, "directory watched for new serial device nodes")
	f.DurationVar(&cfg.RescanInterval, "rescan-interval", cfg.RescanInterval, "initial delay between device scans")
	f.DurationVar(&cfg.MaxRescanInterval, "max-rescan-interval", cfg.MaxRescanInterval, "maximum delay between device scans")

	f.StringVar(&cfg.Events, "events", cfg.Events, `remote event JSON lines ("-" for stdin)`)
	f.StringVar(&cfg.Calls, "calls", cfg.Calls, `where remote function calls are written ("-" for stdout, empty to discard)`)
	f.StringVar(&cfg.DeviceID, "device-id", cfg.DeviceID, "remote device to configure")
	f.StringVar(&cfg.ConfigureFunction, "configure-function", cfg.ConfigureFunction, "remote function called once the serial port is open")
	f.StringVar(&cfg.ConfigureArg, "configure-arg", cfg.ConfigureArg, "argument for the configure function")

	f.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "discard a command after this many resends (0 = never)")
	f.DurationVar(&cfg.ResponseTimeout, "response-timeout", cfg.ResponseTimeout, "resend a command with no answer after this long (0 = never)")
	f.StringVar(&cfg.Terminator, "terminator", cfg.Terminator, `appended to every command, e.g. "\n"`)

	f.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "serve Prometheus metrics on this address (empty = off)")
	f.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	f.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "console or json")

	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "clockbridge:", err)
		os.Exit(1)
	}
}

func run(parent context.Context, cfg cliconfig.Config, logger *logadapter.Zerolog) error {
	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	events, closeEvents, err := openEvents(cfg.Events)
	if err != nil {
		return err
	}
	defer closeEvents()

	calls, closeCalls, err := openCalls(cfg.Calls)
	if err != nil {
		return err
	}
	defer closeCalls()

	opener, err := serialport.NewOpener(cfg.SerialBackend)
	if err != nil {
		return err
	}

	opts := []clockbridge.Option{
		clockbridge.WithLogger(logger),
		clockbridge.WithCloud(stream.New(events, calls, logger)),
		clockbridge.WithPortOpener(opener),
		clockbridge.WithDiscoverer(serialport.Enumerator{}),
	}

	if cfg.Port == "" {
		watcher := devwatch.New(devwatch.Config{Dir: cfg.DeviceDir}, logger)
		if err := watcher.Start(ctx); err != nil {
			logger.Warn("device hot-plug watch disabled", ports.Err(err))
		} else {
			defer watcher.Close()
			opts = append(opts, clockbridge.WithHotplug(watcher.C()))
		}
	}

	if cfg.MetricsAddr != "" {
		prom := metrics.NewPrometheus()
		opts = append(opts, clockbridge.WithMetrics(prom))
		srv := serveMetrics(cfg.MetricsAddr, prom, logger)
		defer func() {
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	b, err := clockbridge.New(clockbridge.Config{
		Port:              cfg.Port,
		Manufacturer:      cfg.Manufacturer,
		VendorID:          cfg.VendorID,
		RescanInterval:    cfg.RescanInterval,
		MaxRescanInterval: cfg.MaxRescanInterval,
		Terminator:        cfg.Terminator,
		MaxRetries:        cfg.MaxRetries,
		ResponseTimeout:   cfg.ResponseTimeout,
		DeviceID:          cfg.DeviceID,
		ConfigureFunction: cfg.ConfigureFunction,
		ConfigureArg:      cfg.ConfigureArg,
	}, opts...)
	if err != nil {
		return fmt.Errorf("create bridge: %w", err)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	if err := b.Start(ctx); err != nil {
		return fmt.Errorf("start bridge: %w", err)
	}

	select {
	case sig := <-sigCh:
		logger.Info("received signal, stopping", ports.String("signal", sig.String()))
	case <-b.Done():
		if err := b.Err(); err != nil {
			return err
		}
	}

	if err := b.Stop(); err != nil && !errors.Is(err, clockbridge.ErrNotRunning) {
		return fmt.Errorf("stop bridge: %w", err)
	}
	return b.Err()
}

func openEvents(path string) (io.Reader, func(), error) {
	if path == "-" {
		return os.Stdin, func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func openCalls(path string) (io.Writer, func(), error) {
	switch path {
	case "":
		return nil, func() {}, nil
	case "-":
		return os.Stdout, func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("open calls: %w", err)
	}
	return f, func() { f.Close() }, nil
}

func serveMetrics(addr string, prom *metrics.Prometheus, logger ports.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", prom.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info("serving metrics", ports.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", ports.Err(err))
		}
	}()
	return srv
}
