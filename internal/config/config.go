// Package config loads najdeno's TOML configuration with environment
// overrides.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Database  DatabaseConfig  `toml:"database"`
	Auth      AuthConfig      `toml:"auth"`
	Disposal  DisposalConfig  `toml:"disposal"`
	Documents DocumentsConfig `toml:"documents"`
}

// ServerConfig holds HTTP listener and logging settings. Metrics are served
// on their own listener, kept off the API address; an empty MetricsAddr
// disables them.
type ServerConfig struct {
	Addr        string `toml:"addr"`
	MetricsAddr string `toml:"metrics_addr"`
	LogPath     string `toml:"log_path"`
}

// DatabaseConfig points at the SQLite file.
type DatabaseConfig struct {
	Path string `toml:"path"`
}

// AuthConfig holds token and bootstrap settings. An empty JWTSecret means the
// secret persisted in the database is used.
type AuthConfig struct {
	JWTSecret string `toml:"jwt_secret"`
	AdminUser string `toml:"admin_user"`
}

// DisposalConfig drives the retention scanner.
type DisposalConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
	RetentionDays   int  `toml:"retention_days"`
	BatchSize       int  `toml:"batch_size"`
}

// DocumentsConfig toggles the deposit report rendered at intake.
type DocumentsConfig struct {
	Enabled bool `toml:"enabled"`
}

// Bounds enforced by Validate.
const (
	MinIntervalMinutes = 5
	MinRetentionDays   = 1
	MaxBatchSize       = 5000
)

// Default returns the configuration used for missing keys.
func Default() *Config {
	return &Config{
		Server:   ServerConfig{Addr: ":8080", MetricsAddr: "127.0.0.1:9091"},
		Database: DatabaseConfig{Path: "najdeno.sqlite3"},
		Auth:     AuthConfig{AdminUser: "Admin"},
		Disposal: DisposalConfig{
			Enabled:         true,
			IntervalMinutes: 60,
			RetentionDays:   90,
			BatchSize:       500,
		},
		Documents: DocumentsConfig{Enabled: true},
	}
}

// Read decodes a Config from r on top of the defaults.
func Read(r io.Reader) (*Config, error) {
	cfg := Default()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return cfg, nil
}

// Write encodes cfg as TOML.
func Write(w io.Writer, cfg *Config) error {
	if err := toml.NewEncoder(w).Encode(cfg); err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	return nil
}

// Load reads the config file at path, if it exists, then applies a .env
// file from the working directory and NAJDENO_* environment overrides, and
// finally validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		f, err := os.Open(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			slog.Info("no config file, using defaults", "path", path)
		case err != nil:
			return nil, fmt.Errorf("opening config file: %w", err)
		default:
			defer f.Close()
			if cfg, err = Read(f); err != nil {
				return nil, fmt.Errorf("reading config from %s: %w", path, err)
			}
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	cfg.Validate()
	return cfg, nil
}

func (c *Config) applyEnv() error {
	strs := map[string]*string{
		"NAJDENO_ADDR":         &c.Server.Addr,
		"NAJDENO_METRICS_ADDR": &c.Server.MetricsAddr,
		"NAJDENO_LOG":          &c.Server.LogPath,
		"NAJDENO_DB":           &c.Database.Path,
		"NAJDENO_JWT_SECRET":   &c.Auth.JWTSecret,
	}
	for key, dst := range strs {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	ints := map[string]*int{
		"NAJDENO_RETENTION_DAYS":            &c.Disposal.RetentionDays,
		"NAJDENO_DISPOSAL_INTERVAL_MINUTES": &c.Disposal.IntervalMinutes,
		"NAJDENO_DISPOSAL_BATCH_SIZE":       &c.Disposal.BatchSize,
	}
	for key, dst := range ints {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
	}
	return nil
}

// Validate clamps out-of-range disposal settings and fills empty required
// values with defaults, logging every adjustment.
func (c *Config) Validate() {
	def := Default()

	if c.Server.Addr == "" {
		c.Server.Addr = def.Server.Addr
	}
	if c.Database.Path == "" {
		c.Database.Path = def.Database.Path
	}
	if c.Auth.AdminUser == "" {
		c.Auth.AdminUser = def.Auth.AdminUser
	}

	if c.Disposal.IntervalMinutes < MinIntervalMinutes {
		slog.Warn("disposal interval below floor, clamping",
			"interval_minutes", c.Disposal.IntervalMinutes, "floor", MinIntervalMinutes)
		c.Disposal.IntervalMinutes = MinIntervalMinutes
	}
	if c.Disposal.RetentionDays < MinRetentionDays {
		slog.Warn("retention below minimum, clamping", "retention_days", c.Disposal.RetentionDays)
		c.Disposal.RetentionDays = MinRetentionDays
	}
	switch {
	case c.Disposal.BatchSize < 1:
		c.Disposal.BatchSize = def.Disposal.BatchSize
	case c.Disposal.BatchSize > MaxBatchSize:
		slog.Warn("disposal batch size too large, clamping", "batch_size", c.Disposal.BatchSize)
		c.Disposal.BatchSize = MaxBatchSize
	}
}

// Init writes the default configuration to path. It refuses to overwrite an
// existing file.
func Init(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	if err := Write(f, Default()); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}
