// Package config provides functionality for managing configuration options
// for the server using command-line flags, a JSON file and environment
// variables.
package config

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
)

// Options holds the configuration values for the server.
type Options struct {
	// Address defines the server's listening address (ip:port).
	Address string `json:"server_address" env:"SERVER_ADDRESS"`

	// DataDir is the directory holding the JSON stores.
	DataDir string `json:"data_dir" env:"DATA_DIR"`

	// DataFile is the leaderboard file name inside DataDir.
	DataFile string `json:"data_file" env:"DATA_FILE"`

	// AccountsFile is the accounts file name inside DataDir.
	AccountsFile string `json:"accounts_file" env:"ACCOUNTS_FILE"`

	// DatabaseDSN selects the Postgres store when non-empty.
	DatabaseDSN string `json:"database_dsn" env:"DATABASE_DSN"`

	// LogLevel is a zap level name.
	LogLevel string `json:"log_level" env:"LOG_LEVEL"`

	// LeaderboardSize caps the number of leaderboard rows.
	LeaderboardSize int `json:"leaderboard_size" env:"LEADERBOARD_SIZE"`

	// SessionTTL is how long an untouched session token stays valid.
	SessionTTL Duration `json:"session_ttl" env:"SESSION_TTL"`

	// AuthRatePerMin limits /auth requests per client IP.
	AuthRatePerMin int `json:"auth_rate_per_min" env:"AUTH_RATE_PER_MIN"`

	// TLSCert and TLSKey enable HTTPS when both are set.
	TLSCert string `json:"tls_cert" env:"TLS_CERT"`
	TLSKey  string `json:"tls_key" env:"TLS_KEY"`

	// Config is the path to the config file.
	Config string `json:"-" env:"CONFIG"`
}

// Duration is a time.Duration that reads "720h"-style strings from JSON and
// the environment.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Defaults returns the options used when nothing overrides them.
func Defaults() Options {
	return Options{
		Address:         "localhost:8080",
		DataDir:         "data",
		DataFile:        "leaderboard.json",
		AccountsFile:    "accounts.json",
		LogLevel:        "info",
		LeaderboardSize: 12,
		SessionTTL:      Duration(30 * 24 * time.Hour),
		AuthRatePerMin:  20,
		Config:          "config.json",
	}
}

// Parse reads the process flags, the config file and the environment.
func Parse() (*Options, error) {
	return Load(flag.CommandLine, os.Args[1:], os.Environ())
}

// Load builds the options from args on fs, then the JSON config file named
// by -c or CONFIG, then environ. Later sources win. A missing config file is
// ignored; an unreadable or malformed one is an error.
func Load(fs *flag.FlagSet, args []string, environ []string) (*Options, error) {
	opts := Defaults()

	fs.StringVar(&opts.Address, "a", opts.Address, "run on ip:port server")
	fs.StringVar(&opts.DataDir, "data", opts.DataDir, "data directory for JSON stores")
	fs.StringVar(&opts.DatabaseDSN, "d", opts.DatabaseDSN, "db address")
	fs.StringVar(&opts.LogLevel, "l", opts.LogLevel, "log level")
	fs.StringVar(&opts.Config, "config", opts.Config, "path to config file")
	fs.StringVar(&opts.Config, "c", opts.Config, "path to config file (shorthand)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	envOpts := env.Options{Environment: env.ToMap(environ)}

	// CONFIG may point somewhere else before the file is read.
	var pre struct {
		Config string `env:"CONFIG"`
	}
	if err := env.ParseWithOptions(&pre, envOpts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if pre.Config != "" {
		opts.Config = pre.Config
	}

	if opts.Config != "" {
		data, err := os.ReadFile(opts.Config)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read config file: %w", err)
		default:
			if err := json.Unmarshal(data, &opts); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	if err := env.ParseWithOptions(&opts, envOpts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if opts.LeaderboardSize <= 0 {
		return nil, fmt.Errorf("leaderboard size must be positive, got %d", opts.LeaderboardSize)
	}
	if opts.AuthRatePerMin <= 0 {
		return nil, fmt.Errorf("auth rate must be positive, got %d", opts.AuthRatePerMin)
	}
	return &opts, nil
}
