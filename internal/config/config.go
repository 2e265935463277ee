// Package config holds the game server's settings.
package config

import (
	"errors"
	"flag"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Config holds the server configuration.
type Config struct {
	// HTTP
	Addr           string
	AllowedOrigins []string

	// Game record store
	DataDir  string
	InMemory bool

	// Matchmaking
	MatchmakingInterval time.Duration

	// WebSocket
	ReadBufferSize  int
	WriteBufferSize int
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Addr:                ":3000",
		AllowedOrigins:      []string{"http://localhost:5173"},
		DataDir:             "data",
		MatchmakingInterval: time.Second,
		ReadBufferSize:      1024,
		WriteBufferSize:     1024,
	}
}

// Environment variables read by Load. Flags take precedence over them.
const (
	EnvAddr                = "CHESS_ADDR"
	EnvAllowedOrigins      = "CHESS_ALLOWED_ORIGINS"
	EnvDataDir             = "CHESS_DATA_DIR"
	EnvInMemory            = "CHESS_IN_MEMORY"
	EnvMatchmakingInterval = "CHESS_MATCHMAKING_INTERVAL"
)

// Load builds a Config from the defaults, then getenv, then the
// command-line args, and validates the result.
func Load(args []string, getenv func(string) string) (*Config, error) {
	cfg := Default()
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("server", flag.ContinueOnError)
	origins := strings.Join(cfg.AllowedOrigins, ",")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "Listen address")
	fs.StringVar(&origins, "origins", origins, "Comma-separated allowed origins for CORS and WebSocket")
	fs.StringVar(&cfg.DataDir, "data", cfg.DataDir, "Directory of the game record store")
	fs.BoolVar(&cfg.InMemory, "memory", cfg.InMemory, "Keep game records in memory only")
	fs.DurationVar(&cfg.MatchmakingInterval, "match-interval", cfg.MatchmakingInterval, "How often the matchmaking queue is drained")
	fs.IntVar(&cfg.ReadBufferSize, "ws-read-buffer", cfg.ReadBufferSize, "WebSocket read buffer size")
	fs.IntVar(&cfg.WriteBufferSize, "ws-write-buffer", cfg.WriteBufferSize, "WebSocket write buffer size")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cfg.AllowedOrigins = splitList(origins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv(EnvAddr); v != "" {
		c.Addr = v
	}
	if v := getenv(EnvAllowedOrigins); v != "" {
		c.AllowedOrigins = splitList(v)
	}
	if v := getenv(EnvDataDir); v != "" {
		c.DataDir = v
	}
	if v := getenv(EnvInMemory); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvInMemory, err)
		}
		c.InMemory = b
	}
	if v := getenv(EnvMatchmakingInterval); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvMatchmakingInterval, err)
		}
		c.MatchmakingInterval = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate reports the first setting that cannot be used.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return errors.New("listen address is required")
	case !c.InMemory && c.DataDir == "":
		return errors.New("data directory is required unless running in memory")
	case c.MatchmakingInterval <= 0:
		return fmt.Errorf("matchmaking interval must be positive, got %v", c.MatchmakingInterval)
	case c.ReadBufferSize <= 0 || c.WriteBufferSize <= 0:
		return fmt.Errorf("websocket buffer sizes must be positive, got %d/%d", c.ReadBufferSize, c.WriteBufferSize)
	}
	return nil
}
