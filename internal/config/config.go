// Package config handles the parsing and validation of the craftping service configuration
// from command-line arguments and environment variables.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/woozymasta/craftping/internal/logger"
	"github.com/woozymasta/craftping/internal/models"
	"github.com/woozymasta/craftping/internal/vars"
)

// AnyEdition marks servers of every edition for maintenance.
const AnyEdition = "any"

// Config represents the complete application flags configuration.
type Config struct {
	// betteralign:ignore

	Server    Server        `group:"Server Options" env-namespace:"CRAFTPING"`
	Query     Query         `group:"Query Options" namespace:"query" env-namespace:"CRAFTPING_QUERY"`
	Storage   Storage       `group:"Storage Options" namespace:"db" env-namespace:"CRAFTPING_DB"`
	GeoIP     GeoIP         `group:"GeoIP Options" namespace:"geoip" env-namespace:"CRAFTPING_GEOIP"`
	RateLimit RateLimit     `group:"Rate Limit Options" namespace:"rate-limit" env-namespace:"CRAFTPING_RATE_LIMIT"`
	Logger    logger.Config `group:"Logger Options" namespace:"log" env-namespace:"CRAFTPING_LOG"`

	Version bool `short:"v" long:"version" description:"Print version and build info"`
}

// Server holds web server configuration.
type Server struct {
	// betteralign:ignore

	Address     string   `short:"l" long:"address" env:"LISTEN_ADDRESS" description:"Server listen address" default:":8080"`
	AuthToken   string   `short:"t" long:"auth-token" env:"AUTH_TOKEN" description:"Admin authentication token, history endpoints are disabled when empty"`
	DenyHosts   []string `long:"deny-host" env:"DENY_HOSTS" description:"Hosts or IPs that must never be queried" env-delim:","`
	MaxBodySize int64    `long:"max-body-size" env:"MAX_BODY_SIZE" description:"Max body size for incoming requests" default:"1024"`
	TrustProxy  bool     `long:"trust-proxy" env:"TRUST_PROXY" description:"Trust X-Forwarded-For headers"`
	Workers     int      `long:"history-workers" env:"HISTORY_WORKERS" description:"Number of history writer workers" default:"4"`
	QueueSize   int      `long:"history-queue" env:"HISTORY_QUEUE" description:"History queue capacity" default:"1024"`
}

// Query holds status query configuration.
type Query struct {
	// betteralign:ignore

	Timeout         time.Duration `long:"timeout" env:"TIMEOUT" description:"Default query timeout" default:"5s"`
	MaxTimeout      time.Duration `long:"max-timeout" env:"MAX_TIMEOUT" description:"Upper bound for client supplied timeouts" default:"15s"`
	NoSRV           bool          `long:"no-srv" env:"NO_SRV" description:"Disable _minecraft._tcp SRV lookups for Java servers"`
	Nameservers     []string      `long:"nameserver" env:"NAMESERVERS" description:"DNS servers for SRV lookups (default from resolv.conf)" env-delim:","`
	ProtocolVersion int32         `long:"protocol-version" env:"PROTOCOL_VERSION" description:"Protocol version announced in the Java handshake" default:"-1"`
}

// Storage holds database configuration.
type Storage struct {
	// betteralign:ignore

	Path          string        `short:"d" long:"path" env:"PATH" description:"Path to SQLite database" default:"craftping.db"`
	Disable       bool          `long:"disable" env:"DISABLE" description:"Do not record query history"`
	PruneOffline  string        `long:"prune-offline" description:"Delete servers not online within --retention. Optional arg: edition." optional:"true" optional-value:"any"`
	RecheckAll    string        `long:"recheck-all" description:"Re-query ALL stored servers and update them. Optional arg: edition." optional:"true" optional-value:"any"`
	Retention     time.Duration `long:"retention" env:"RETENTION" description:"Offline retention used by --prune-offline" default:"720h"`
	GenerateCount int           `long:"gen-fake-data" hidden:"true"`
}

// GeoIP holds MaxMind GeoIP configuration.
type GeoIP struct {
	// betteralign:ignore

	Path     string        `short:"g" long:"path" env:"PATH" description:"Path to MMDB file" default:"craftping.mmdb"`
	URL      string        `long:"url" env:"URL" description:"URL to download MMDB" default:"https://git.io/GeoLite2-Country.mmdb"`
	Interval time.Duration `long:"interval" env:"INTERVAL" description:"Update interval check" default:"24h"`
	Disable  bool          `long:"disable" env:"DISABLE" description:"Disable country tagging"`
}

// RateLimit holds API rate limiting configuration.
type RateLimit struct {
	// betteralign:ignore

	Count  int           `long:"count" env:"COUNT" description:"Queries allowed per client IP within the window" default:"30"`
	Window time.Duration `long:"window" env:"WINDOW" description:"Rate limit window duration" default:"1m"`
}

// Parse reads the configuration from flags and environment variables.
// It terminates the application if the configuration is invalid or if the help flag is invoked.
func Parse() *Config {
	var cfg Config
	parser := flags.NewParser(&cfg, flags.Default)
	parser.NamespaceDelimiter = "-"

	_, err := parser.Parse()
	if err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				os.Exit(0)
			}
		}
		os.Exit(1)
	}

	if cfg.Version {
		vars.Print(os.Stdout)
		os.Exit(0)
	}

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	return &cfg
}

// Validate checks values that flag parsing cannot express.
func (c *Config) Validate() error {
	if c.Query.Timeout <= 0 {
		return fmt.Errorf("query timeout must be positive, got %s", c.Query.Timeout)
	}
	if c.Query.MaxTimeout < c.Query.Timeout {
		return fmt.Errorf("query max timeout %s is lower than the default timeout %s", c.Query.MaxTimeout, c.Query.Timeout)
	}
	if c.RateLimit.Count <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate limit count and window must be positive")
	}
	if c.Server.Workers <= 0 || c.Server.QueueSize <= 0 {
		return fmt.Errorf("history workers and queue size must be positive")
	}

	for _, opt := range []string{c.Storage.PruneOffline, c.Storage.RecheckAll} {
		if opt == "" || opt == AnyEdition {
			continue
		}
		if _, ok := models.ParseEdition(opt); !ok {
			return fmt.Errorf("unknown edition %q for maintenance, expected java, bedrock or %s", opt, AnyEdition)
		}
	}

	return nil
}

// Maintenance reports whether a one-shot maintenance task was requested instead of serving.
func (c *Config) Maintenance() bool {
	return c.Storage.PruneOffline != "" || c.Storage.RecheckAll != "" || c.Storage.GenerateCount > 0
}
