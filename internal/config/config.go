// Package config handles the parsing and validation of the dashboard configuration
// from command-line arguments and environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/srvdash/internal/logger"
	"github.com/woozymasta/srvdash/internal/vars"
)

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"SRVDASH"`
	Sheet     Sheet         `group:"Record Store Options" namespace:"sheet" env-namespace:"SRVDASH_SHEET"`
	Monitor   Monitor       `group:"Monitor Options" namespace:"monitor" env-namespace:"SRVDASH_MONITOR"`
	Journal   Journal       `group:"Journal Options" namespace:"db" env-namespace:"SRVDASH_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"SRVDASH_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"SRVDASH_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"SRVDASH_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address       string `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken     string `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"API and dashboard authentication token"`
	MaxBodySize   int64  `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"65536"`
	TrustProxy    bool   `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	GenerateCount int    `long:"gen-fake-servers" hidden:"true"`
}

// Sheet holds the spreadsheet record store configuration.
type Sheet struct {
	// betteralign:ignore

	Path     string `short:"f" long:"path" env:"PATH" description:"Path to the server spreadsheet" default:"servers.xlsx"`
	Name     string `long:"name" env:"NAME" description:"Worksheet holding the server table" default:"Servers"`
	NoBackup bool   `long:"no-backup" env:"NO_BACKUP" description:"Do not keep the previous file as <path>.backup on save"`
	Check    bool   `long:"check" description:"Report data problems in the spreadsheet and exit"`
	Reset    bool   `long:"reset" description:"Back up the spreadsheet, recreate it with the default fleet and exit"`
}

// Monitor holds the polling loop configuration.
type Monitor struct {
	// betteralign:ignore

	Interval     time.Duration `long:"interval" env:"INTERVAL" description:"Polling interval" default:"15s"`
	ErrorBackoff time.Duration `long:"error-backoff" env:"ERROR_BACKOFF" description:"Pause after a failed polling pass" default:"30s"`
	RestartMin   time.Duration `long:"restart-min" env:"RESTART_MIN" description:"Shortest simulated restart" default:"3s"`
	RestartMax   time.Duration `long:"restart-max" env:"RESTART_MAX" description:"Longest simulated restart" default:"8s"`
	Disable      bool          `long:"disable" env:"DISABLE" description:"Do not run the polling loop"`
}

// Journal holds the SQLite history configuration.
type Journal struct {
	// betteralign:ignore

	Path      string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite journal, empty disables history" default:"srvdash.db"`
	Retention time.Duration `long:"retention" env:"RETENTION" description:"Drop journal rows older than this, 0 keeps everything" default:"720h"`
	Prune     time.Duration `long:"prune" description:"Delete journal rows older than the given duration and exit"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file, empty disables country lookup"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
}

// RateLimit holds API rate limiting configuration for mutating routes.
type RateLimit struct {
	// betteralign:ignore

	HardLimitCount int           `long:"hard-count" env:"HARD_COUNT" description:"Hard IP limit: requests count" default:"30"`
	HardLimitWin   time.Duration `long:"hard-window" env:"HARD_WINDOW" description:"Hard IP limit: window duration" default:"1m"`
}

// ErrNoAuthToken is returned when no authentication token was configured.
var ErrNoAuthToken = errors.New("required flag `-t, --auth-token' or environment variable `SRVDASH_AUTH_TOKEN` was not specified")

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	cfg, err := ParseArgs(os.Args[1:])
	if err != nil {
		var flagsErr *flags.Error
		if errors.As(err, &flagsErr) {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print()
		os.Exit(0)
	}

	return cfg
}

// ParseArgs parses args and the environment into a validated Config.
func ParseArgs(args []string) (*Config, error) {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	if _, err := parser.ParseArgs(args); err != nil {
		return nil, err
	}

	if cfg.Version {
		return &cfg, nil
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks values flags cannot express.
func (c *Config) Validate() error {
	if c.maintenance() {
		return nil
	}

	if c.Server.AuthToken == "" {
		return ErrNoAuthToken
	}
	if c.Monitor.Interval <= 0 {
		return fmt.Errorf("monitor interval must be positive, got %s", c.Monitor.Interval)
	}
	if c.Monitor.RestartMax < c.Monitor.RestartMin {
		return fmt.Errorf("restart max %s is below restart min %s", c.Monitor.RestartMax, c.Monitor.RestartMin)
	}
	if c.RateLimit.HardLimitCount <= 0 || c.RateLimit.HardLimitWin <= 0 {
		return fmt.Errorf("rate limit needs a positive count and window")
	}

	return nil
}

// maintenance reports whether a one-shot maintenance action was requested.
func (c *Config) maintenance() bool {
	return c.Sheet.Check || c.Sheet.Reset || c.Journal.Prune > 0 || c.Server.GenerateCount > 0
}
