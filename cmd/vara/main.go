// =============================================================================
// main.go - vara CLI Entry Point
// =============================================================================
//
// vara is a thin interactive client for a VARA HF/FM/SAT modem. It opens
// the modem's command port and data port (port+1), then runs a REPL that
// sends modem commands as typed and prints every notification the modem
// produces. Optionally it serves the live state over HTTP (--monitor) and
// mirrors all traffic onto NATS (--nats).
//
// Usage:
//
//	vara                                  Connect to 127.0.0.1:8300 (VARA HF)
//	vara --variant FM --port 8400         Connect to a VARA FM instance
//	vara --mycall N0CALL,N0CALL-1         Register callsigns on start
//	vara --monitor 127.0.0.1:8080         Serve /state, /ws and /metrics
//	vara --nats nats://localhost:4222     Publish notifications to NATS
//
// Settings are layered: ~/.vara.yaml, then VARA_* environment variables,
// then the flags above.
//
// =============================================================================

// GO CONCEPT: Packages
// --------------------
// The special package name "main" makes this directory an executable. It
// must contain func main(); everything else lives in importable packages
// (varaprotocol, internal/config, internal/monitor, internal/bridge) so
// the CLI stays a thin layer of wiring.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/taylorsreid/govara/internal/bridge"
	"github.com/taylorsreid/govara/internal/config"
	"github.com/taylorsreid/govara/internal/monitor"
	"github.com/taylorsreid/govara/varaprotocol"
)

const (
	version = "0.3.0"

	appName = "vara"
)

// openTimeout bounds dialing both ports plus the settle interval.
const openTimeout = 15 * time.Second

func fullTitle() string {
	return fmt.Sprintf("%s v%s", appName, version)
}

func welcomeBanner(variant varaprotocol.Variant, host string, port int) string {
	return fmt.Sprintf(`%s - VARA %s modem client
Connected to %s (data %s)

Type '.help' for available commands.
Type '.quit' to exit.
`, fullTitle(), variant, varaprotocol.CommandAddress(host, port), varaprotocol.DataAddress(host, port))
}

// GO CONCEPT: Zero Values as "Not Set"
// ------------------------------------
// Every field starts at its zero value: "" for strings, 0 for ints, nil for
// slices. The CLI uses that to tell which flags were given, so only those
// override the config file and environment.
type arguments struct {
	configPath  string
	host        string
	port        int
	variant     string
	callsigns   []string
	monitorAddr string
	natsURL     string
	natsSubject string
	logLevel    string
	logFormat   string
	showHelp    bool
	showVersion bool
}

// parseArguments parses argv (without the program name). Flags take their
// value as the next argument or after '=' (--port 8300, --port=8300).
func parseArguments(argv []string) (arguments, error) {
	var args arguments
	remaining := argv

	for len(remaining) > 0 {
		arg := remaining[0]
		remaining = remaining[1:]

		name, value, hasValue := strings.Cut(arg, "=")
		next := func() (string, error) {
			if hasValue {
				return value, nil
			}
			if len(remaining) == 0 {
				return "", fmt.Errorf("%s requires a value", name)
			}
			v := remaining[0]
			remaining = remaining[1:]
			return v, nil
		}

		var err error
		switch name {
		case "--config", "-c":
			args.configPath, err = next()

		case "--host":
			args.host, err = next()

		case "--port", "-p":
			var v string
			if v, err = next(); err == nil {
				args.port, err = strconv.Atoi(v)
				if err != nil {
					err = fmt.Errorf("invalid port %q", v)
				}
			}

		case "--variant":
			args.variant, err = next()

		case "--mycall":
			var v string
			if v, err = next(); err == nil {
				args.callsigns = config.SplitCallsigns(v)
			}

		case "--monitor":
			args.monitorAddr, err = next()

		case "--nats":
			args.natsURL, err = next()

		case "--nats-subject":
			args.natsSubject, err = next()

		case "--log-level":
			args.logLevel, err = next()

		case "--log-format":
			args.logFormat, err = next()

		case "--help", "-h":
			args.showHelp = true

		case "--version", "-v":
			args.showVersion = true

		default:
			err = fmt.Errorf("unknown argument: %s", arg)
		}
		if err != nil {
			return arguments{}, err
		}
	}

	return args, nil
}

// loadConfig layers the flags in args over the config file and environment.
func loadConfig(args arguments) (config.Config, error) {
	cfg, err := config.Load(args.configPath)
	if err != nil {
		return config.Config{}, err
	}

	if args.host != "" {
		cfg.Host = args.host
	}
	if args.port != 0 {
		cfg.Port = args.port
	}
	if args.variant != "" {
		cfg.Variant = args.variant
	}
	if args.callsigns != nil {
		cfg.Callsigns = args.callsigns
	}
	if args.monitorAddr != "" {
		cfg.MonitorAddr = args.monitorAddr
	}
	if args.natsURL != "" {
		cfg.NATSURL = args.natsURL
	}
	if args.natsSubject != "" {
		cfg.NATSSubject = args.natsSubject
	}
	if args.logLevel != "" {
		cfg.LogLevel = args.logLevel
	}
	if args.logFormat != "" {
		cfg.LogFormat = args.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func printUsage() {
	fmt.Print(`USAGE: vara [options]

OPTIONS:
  --config, -c <path>     Config file (default: ~/.vara.yaml)
  --host <host>           Modem host (default: 127.0.0.1)
  --port, -p <port>       Modem command port; data uses port+1 (default: 8300)
  --variant HF|FM|SAT     Modem variant (default: HF)
  --mycall <a,b,...>      Register callsigns after connecting
  --monitor <addr>        Serve /state, /ws, /metrics and /health on addr
  --nats <url>            Mirror notifications to NATS
  --nats-subject <s>      NATS subject prefix (default: vara)
  --log-level <level>     debug, info, warn or error (default: warn)
  --log-format text|json  Log format (default: text)
  --help, -h              Show this help
  --version, -v           Show version

ENVIRONMENT:
  VARA_HOST, VARA_PORT, VARA_VARIANT, VARA_MYCALL, VARA_SETTLE_INTERVAL,
  VARA_MONITOR_ADDR, VARA_NATS_URL, VARA_NATS_SUBJECT, VARA_LOG_LEVEL,
  VARA_LOG_FORMAT override the config file; flags override both.

EXAMPLES:
  vara --mycall N0CALL                 Connect and register N0CALL
  vara --variant FM --port 8400        Talk to VARA FM on port 8400
  vara --monitor :8080 --log-level info
`)
}

func printVersion() {
	fmt.Println(fullTitle())
}

func printError(message string) {
	fmt.Fprintf(os.Stderr, "Error: %s\n", message)
}

// GO CONCEPT: Signal Handling with Channels
// -----------------------------------------
// signal.Notify delivers OS signals on a channel instead of killing the
// process, so a goroutine can close the modem connection before exiting.
// The channel is buffered because the runtime never blocks to deliver.
func setupSignalHandler(cleanup func()) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println()
		cleanup()
		os.Exit(0)
	}()
}

// openClient connects to the modem and registers the configured callsigns.
func openClient(cfg config.Config, logger *slog.Logger, metrics *varaprotocol.Metrics) (*varaprotocol.Client, error) {
	variant, err := cfg.ParsedVariant()
	if err != nil {
		return nil, err
	}

	client := varaprotocol.NewClient(variant,
		varaprotocol.WithLogger(logger),
		varaprotocol.WithMetrics(metrics),
		varaprotocol.WithSettleInterval(cfg.SettleInterval),
	)

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	if err := client.Open(ctx, cfg.Host, cfg.Port); err != nil {
		return nil, fmt.Errorf("connect to modem at %s: %w", varaprotocol.CommandAddress(cfg.Host, cfg.Port), err)
	}

	if len(cfg.Callsigns) > 0 {
		calls, err := client.RegisterCallsigns(ctx, cfg.Callsigns...)
		if err != nil {
			client.Close()
			return nil, fmt.Errorf("register %s: %w", strings.Join(cfg.Callsigns, " "), err)
		}
		logger.Info("callsigns registered", "callsigns", calls)
	}
	return client, nil
}

func run(argv []string) int {
	args, err := parseArguments(argv)
	if err != nil {
		printError(err.Error())
		printUsage()
		return 2
	}
	if args.showHelp {
		printUsage()
		return 0
	}
	if args.showVersion {
		printVersion()
		return 0
	}

	cfg, err := loadConfig(args)
	if err != nil {
		printError(err.Error())
		return 1
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat, os.Stderr)
	slog.SetDefault(logger)

	registry := prometheus.NewRegistry()
	metrics := varaprotocol.NewMetrics()
	if err := metrics.Register(registry); err != nil {
		printError(err.Error())
		return 1
	}

	client, err := openClient(cfg, logger, metrics)
	if err != nil {
		printError(err.Error())
		return 1
	}

	// Cleanup runs from the signal goroutine or at the end of run, and
	// must only tear things down once.
	var closers []func() error
	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			for i := len(closers) - 1; i >= 0; i-- {
				if err := closers[i](); err != nil && !errors.Is(err, varaprotocol.ErrClosed) {
					logger.Warn("shutdown", "error", err)
				}
			}
		})
	}
	closers = append(closers, client.Close)

	client.SetDisconnectHandler(func(err error) {
		fmt.Fprintf(os.Stderr, "\nDisconnected from modem: %v\n", err)
	})

	if cfg.MonitorAddr != "" {
		mon := monitor.New(client, registry, logger)
		addr, err := mon.Start(cfg.MonitorAddr)
		if err != nil {
			cleanup()
			printError(fmt.Sprintf("monitor: %v", err))
			return 1
		}
		closers = append(closers, mon.Close)
		fmt.Printf("Monitor on http://%s\n", addr)
	}

	if cfg.NATSURL != "" {
		nc, err := bridge.Connect(cfg.NATSURL, logger)
		if err != nil {
			cleanup()
			printError(fmt.Sprintf("nats: %v", err))
			return 1
		}
		closers = append(closers, func() error { nc.Close(); return nil })

		br := bridge.New(nc, client, cfg.NATSSubject, logger)
		if err := br.Start(); err != nil {
			cleanup()
			printError(fmt.Sprintf("nats bridge: %v", err))
			return 1
		}
		closers = append(closers, br.Close)
		fmt.Printf("Publishing to NATS under %s.>\n", cfg.NATSSubject)
	}

	setupSignalHandler(cleanup)

	fmt.Print(welcomeBanner(client.Variant(), cfg.Host, cfg.Port))
	fmt.Println()

	editor := NewLineEditor()
	defer editor.Close()

	err = newREPL(client, editor, os.Stdout, os.Stderr).run(context.Background())
	cleanup()
	if err != nil {
		printError(err.Error())
		return 1
	}
	return 0
}

func main() {
	os.Exit(run(os.Args[1:]))
}
