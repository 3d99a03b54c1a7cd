package config

import "time"

// ── Default values ───────────────────────────────────────────────────
//
// All tuneable defaults live here so they are easy to audit and reuse
// across CLI flags, config file parsing, and environment variable
// loading.

const (
	// DefaultConnectTimeout bounds both the client-mode dial and the
	// server-mode wait for an inbound peer.
	DefaultConnectTimeout = 5 * time.Second

	// DefaultConnectionSpeed is the nominal capacity reported for the
	// TCP link class, in bits per second (54 Mbit).  It is a static
	// figure, not a measurement.
	DefaultConnectionSpeed int64 = 54_000_000

	// DefaultRateWindowSlots is the per-direction capacity of the
	// rate-sample ring buffers.
	DefaultRateWindowSlots = 64

	// DefaultLogLevel is the log level used when none is configured.
	DefaultLogLevel = "info"

	// DefaultLogFormat selects the text formatter by default.
	DefaultLogFormat = "text"

	// DefaultLogOutput sends logs to the console by default.
	DefaultLogOutput = "console"

	// DefaultLogMaxSizeMB is the rotation threshold for file logging.
	DefaultLogMaxSizeMB = 50

	// DefaultLogMaxAge is how many days rotated log files are kept.
	DefaultLogMaxAge = 7
)

// Default returns a Config populated with every default value.
func Default() *Config {
	return &Config{
		ConnectTimeout: DefaultConnectTimeout,
		Logging: LoggingConfig{
			Level:     DefaultLogLevel,
			Format:    DefaultLogFormat,
			Output:    DefaultLogOutput,
			MaxSizeMB: DefaultLogMaxSizeMB,
			MaxAge:    DefaultLogMaxAge,
		},
	}
}
