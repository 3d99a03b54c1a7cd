// Package cmd wires up the CLI flags and runs the stdio bridge: a
// link endpoint whose inbound bytes go to stdout and whose stdin goes
// to the peer.
package cmd

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	flag "github.com/spf13/pflag"
	"golang.org/x/term"

	"telemlink/config"
	"telemlink/internal/link"
	"telemlink/log"
	"telemlink/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X telemlink/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the bridge.
func Execute(ctx context.Context, args []string) error {
	cfg := config.Default()

	// File and env are overlaid before flag parsing so explicit
	// flags always win.
	if path := configPathArg(args); path != "" {
		if err := config.LoadFile(cfg, path); err != nil {
			return err
		}
	}
	config.LoadFromEnv(cfg)

	fs := flag.NewFlagSet("telemlink", flag.ContinueOnError)

	// ── connection ───────────────────────────────────────────────
	fs.BoolVarP(&cfg.Server, "listen", "l", false, "Server mode: wait for one inbound peer")
	fs.IntVarP(&cfg.Port, "port", "p", 0, "Port number (listen mode)")

	var timeoutSec int
	fs.IntVarP(&timeoutSec, "timeout", "w", 0, "Connect timeout in seconds")

	// Value consumed by configPathArg before parsing; registered so
	// pflag accepts the flag.
	fs.String("config", "", "YAML configuration file")

	// ── output ───────────────────────────────────────────────────
	fs.BoolVarP(&cfg.HexDump, "hex", "x", false, "Hex-dump inbound data")
	fs.BoolVar(&cfg.Raw, "raw", false, "Write inbound data verbatim even on a terminal")
	fs.CountVarP(&cfg.Verbose, "verbose", "v", "Increase verbosity (repeatable)")

	var showVersion, showHelp bool
	fs.BoolVar(&showVersion, "version", false, "Print version and exit")
	fs.BoolVarP(&showHelp, "help", "h", false, "Show this help")

	fs.Usage = func() { printUsage(fs) }

	// ── parse ────────────────────────────────────────────────────
	if err := fs.Parse(args); err != nil {
		return err
	}

	if showHelp || len(args) == 0 {
		printUsage(fs)
		return nil
	}
	if showVersion {
		fmt.Printf("telemlink %s\n", version)
		return nil
	}

	if timeoutSec > 0 {
		cfg.ConnectTimeout = time.Duration(timeoutSec) * time.Second
	}
	if cfg.Verbose > 0 {
		cfg.Logging.Level = "debug"
	}

	if err := parsePositional(cfg, fs.Args()); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := log.Init(cfg.Logging); err != nil {
		return err
	}

	return runBridge(ctx, cfg)
}

// runBridge opens the link and shuffles bytes between it and stdio
// until the peer disconnects or the context is cancelled.
func runBridge(ctx context.Context, cfg *config.Config) error {
	lk := link.NewFromConfig(cfg)

	hex := hexOutput(cfg)
	done := make(chan struct{})

	lk.OnBytesReceived(func(_ *link.Link, data []byte) {
		if hex {
			fmt.Print(util.Dump(data))
		} else {
			os.Stdout.Write(data) //nolint:errcheck
		}
	})
	lk.OnDisconnected(func(*link.Link) {
		select {
		case <-done:
		default:
			close(done)
		}
	})
	lk.OnCommunicationError(func(name, msg string) {
		fmt.Fprintf(os.Stderr, "%s: %s\n", name, msg)
	})

	if err := lk.Connect(); err != nil {
		return fmt.Errorf("%s: %w", lk.Name(), err)
	}
	defer lk.Disconnect()

	// stdin → link.  EOF just stops the outbound side; inbound keeps
	// flowing until the peer hangs up.
	go func() {
		bufp := util.GetBuf()
		defer util.PutBuf(bufp)
		buf := *bufp
		for {
			n, err := os.Stdin.Read(buf)
			if n > 0 {
				if _, werr := lk.WriteBytes(buf[:n]); werr != nil {
					return
				}
			}
			if err != nil {
				return
			}
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	return nil
}

// hexOutput decides whether inbound data is hex-dumped.  Binary
// telemetry is unreadable (and unsafe) on a terminal, so a TTY gets
// the dump unless --raw asks otherwise.
func hexOutput(cfg *config.Config) bool {
	if cfg.HexDump {
		return true
	}
	if cfg.Raw {
		return false
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// ── helpers ──────────────────────────────────────────────────────────

// configPathArg pre-scans args for --config so the file can be loaded
// before the real flag parse.
func configPathArg(args []string) string {
	for i, a := range args {
		if a == "--config" && i+1 < len(args) {
			return args[i+1]
		}
		if len(a) > len("--config=") && a[:len("--config=")] == "--config=" {
			return a[len("--config="):]
		}
	}
	return ""
}

func parsePositional(cfg *config.Config, remaining []string) error {
	if cfg.Server {
		if len(remaining) > 0 {
			return fmt.Errorf("too many arguments for listen mode")
		}
		if cfg.Port == 0 {
			return fmt.Errorf("listen mode requires -p <port>")
		}
		return nil
	}

	// Connect mode: host port.
	if len(remaining) >= 1 {
		cfg.Host = remaining[0]
	}
	if len(remaining) >= 2 {
		port, err := parsePort(remaining[1])
		if err != nil {
			return err
		}
		cfg.Port = port
	}
	if len(remaining) > 2 {
		return fmt.Errorf("too many arguments")
	}
	if cfg.Host == "" {
		return fmt.Errorf("hostname required (use --help for usage)")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port required")
	}
	return nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid port %q", s)
	}
	if port < 1 || port > 65535 {
		return 0, fmt.Errorf("port %d out of range 1-65535", port)
	}
	return port, nil
}

func printUsage(fs *flag.FlagSet) {
	fmt.Fprintf(os.Stderr, `telemlink – TCP telemetry link bridge v%s

Bridges a telemetry link endpoint to stdin/stdout.

Usage:
  telemlink [options] <host> <port>           Connect to a peer
  telemlink -l -p <port> [options]            Wait for one inbound peer

Options:
`, version)
	fs.PrintDefaults()
	fmt.Fprintf(os.Stderr, `
Examples:
  telemlink 127.0.0.1 5760                    Connect to local SITL
  telemlink -l -p 5760                        Accept one vehicle link
  telemlink -x 10.1.1.1 14550                 Hex-dump inbound frames
  echo "PING" | telemlink 127.0.0.1 9000      Pipe data to the peer
`)
}
