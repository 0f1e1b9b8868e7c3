package config

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/mandelsoft/vfs/pkg/vfs"
	"gopkg.in/yaml.v3"

	"go.hackfix.me/strata/xtime"
)

// Config represents the application configuration, backed by a filesystem for
// persistence. Files with a .yaml or .yml extension are read and written as
// YAML, and any other file as JSON.
type Config struct {
	// DatabaseURL is the URL of the database migrations are applied to.
	DatabaseURL sql.Null[string]
	// ConfigurationDirectory contains the base "migrations" directory.
	ConfigurationDirectory sql.Null[string]
	// ExtraMigrationDirectories are applied before the base directory, in
	// reverse order.
	ExtraMigrationDirectories []string
	Server                    Server
	Migrations                Migrations

	fs   vfs.FileSystem
	path string
}

// NewConfig creates a new Config instance with the specified filesystem
// and configuration file path.
func NewConfig(fs vfs.FileSystem, path string) *Config {
	return &Config{fs: fs, path: path}
}

// Load reads and parses the configuration file from the filesystem.
// If the file doesn't exist, it initializes with an empty configuration.
func (c *Config) Load() error {
	data, err := vfs.ReadFile(c.fs, c.path)
	if err != nil && !vfs.IsErrNotExist(err) {
		return fmt.Errorf("failed reading configuration file: %w", err)
	}

	if c.isYAML() {
		err = yaml.Unmarshal(data, c)
	} else {
		// Ensure that unmarshalling JSON doesn't fail if the file doesn't exist or is empty.
		if len(data) == 0 {
			data = []byte("{}")
		}
		err = json.Unmarshal(data, c)
	}
	if err != nil {
		return fmt.Errorf("failed parsing configuration file: %w", err)
	}

	return nil
}

// Path returns the filesystem path where the configuration is stored.
func (c *Config) Path() string {
	return c.path
}

// Save writes the current configuration to the filesystem.
func (c *Config) Save() error {
	if err := c.fs.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed creating configuration directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if c.isYAML() {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed serializing configuration data: %w", err)
	}
	if err = vfs.WriteFile(c.fs, c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed writing configuration file: %w", err)
	}

	return nil
}

func (c *Config) isYAML() bool {
	ext := strings.ToLower(filepath.Ext(c.path))
	return ext == ".yaml" || ext == ".yml"
}

// MigrationLayers returns the base migrations directory, and the extra
// directories in declaration order.
func (c *Config) MigrationLayers() (base string, extras []string) {
	return filepath.Join(c.ConfigurationDirectory.V, "migrations"), c.ExtraMigrationDirectories
}

// Server defines configuration options specific to the HTTP server.
type Server struct {
	// Address is the network address in [host]:port format the server will listen on.
	Address sql.Null[string]
	// ShutdownTimeout is how long the server waits for in-flight requests
	// when stopping. It serializes from/to xtime.Duration string values.
	ShutdownTimeout sql.Null[time.Duration]
}

// Migrations defines configuration options of the migrations ledger.
type Migrations struct {
	// Table is the name of the ledger table.
	Table sql.Null[string]
	// LockTimeout is how long an apply pass waits for another process holding
	// the migrations lock. It serializes from/to xtime.Duration string values.
	LockTimeout sql.Null[time.Duration]
}

type cfgWrapper struct {
	DatabaseURL               string               `json:"database_url,omitempty" yaml:"database_url,omitempty"`
	ConfigurationDirectory    string               `json:"configuration_directory,omitempty" yaml:"configuration_directory,omitempty"`
	ExtraMigrationDirectories []string             `json:"extra_migration_directories,omitempty" yaml:"extra_migration_directories,omitempty"`
	Server                    srvCfgWrapper        `json:"server" yaml:"server,omitempty"`
	Migrations                migrationsCfgWrapper `json:"migrations" yaml:"migrations,omitempty"`
}
type srvCfgWrapper struct {
	Address         string `json:"address,omitempty" yaml:"address,omitempty"`
	ShutdownTimeout string `json:"shutdown_timeout,omitempty" yaml:"shutdown_timeout,omitempty"`
}
type migrationsCfgWrapper struct {
	Table       string `json:"table,omitempty" yaml:"table,omitempty"`
	LockTimeout string `json:"lock_timeout,omitempty" yaml:"lock_timeout,omitempty"`
}

func (c Config) wrap() cfgWrapper {
	w := cfgWrapper{ExtraMigrationDirectories: c.ExtraMigrationDirectories}

	if c.DatabaseURL.Valid {
		w.DatabaseURL = c.DatabaseURL.V
	}
	if c.ConfigurationDirectory.Valid {
		w.ConfigurationDirectory = c.ConfigurationDirectory.V
	}

	if c.Server.Address.Valid {
		w.Server.Address = c.Server.Address.V
	}
	if c.Server.ShutdownTimeout.Valid {
		w.Server.ShutdownTimeout = xtime.FormatDuration(c.Server.ShutdownTimeout.V, time.Second)
	}

	if c.Migrations.Table.Valid {
		w.Migrations.Table = c.Migrations.Table.V
	}
	if c.Migrations.LockTimeout.Valid {
		w.Migrations.LockTimeout = xtime.FormatDuration(c.Migrations.LockTimeout.V, time.Second)
	}

	return w
}

func (c *Config) unwrap(w cfgWrapper) error {
	if w.DatabaseURL != "" {
		c.DatabaseURL = sql.Null[string]{V: w.DatabaseURL, Valid: true}
	}
	if w.ConfigurationDirectory != "" {
		c.ConfigurationDirectory = sql.Null[string]{V: w.ConfigurationDirectory, Valid: true}
	}
	if len(w.ExtraMigrationDirectories) > 0 {
		c.ExtraMigrationDirectories = w.ExtraMigrationDirectories
	}

	if w.Server.Address != "" {
		c.Server.Address = sql.Null[string]{V: w.Server.Address, Valid: true}
	}
	if w.Server.ShutdownTimeout != "" {
		dur, err := xtime.ParseDuration(w.Server.ShutdownTimeout)
		if err != nil {
			return fmt.Errorf("failed parsing server shutdown timeout: %w", err)
		}
		c.Server.ShutdownTimeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	if w.Migrations.Table != "" {
		if !tableNameRx.MatchString(w.Migrations.Table) {
			return fmt.Errorf("invalid migrations table name '%s': must start with a letter or underscore, "+
				"followed by letters, digits or underscores", w.Migrations.Table)
		}
		c.Migrations.Table = sql.Null[string]{V: w.Migrations.Table, Valid: true}
	}
	if w.Migrations.LockTimeout != "" {
		dur, err := xtime.ParseDuration(w.Migrations.LockTimeout)
		if err != nil {
			return fmt.Errorf("failed parsing migrations lock timeout: %w", err)
		}
		c.Migrations.LockTimeout = sql.Null[time.Duration]{V: dur, Valid: true}
	}

	return nil
}

// MarshalJSON implements custom JSON marshaling to convert sql.Null values
// to their underlying types, omitting invalid/null fields from the output.
func (c Config) MarshalJSON() ([]byte, error) {
	//nolint:wrapcheck // This is fine.
	return json.Marshal(c.wrap())
}

// UnmarshalJSON implements custom JSON unmarshaling to convert plain values
// into sql.Null types and parse duration strings into time.Duration values.
func (c *Config) UnmarshalJSON(data []byte) error {
	var w cfgWrapper
	if err := json.Unmarshal(data, &w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	return c.unwrap(w)
}

// MarshalYAML implements yaml.Marshaler.
func (c Config) MarshalYAML() (any, error) {
	return c.wrap(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Config) UnmarshalYAML(value *yaml.Node) error {
	var w cfgWrapper
	if err := value.Decode(&w); err != nil {
		//nolint:wrapcheck // This is fine.
		return err
	}

	return c.unwrap(w)
}

// Default values.
const (
	DefaultConfigurationDirectory = "./strata"
	DefaultServerAddress          = ":8080"
	DefaultServerShutdownTimeout  = 10 * time.Second
	DefaultLockTimeout            = time.Minute
	DefaultMigrationsTable        = "_migrations"
)

var tableNameRx = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SetDefaults sets default configuration values if they weren't set already.
// The default database is an SQLite file in dataDir.
func (c *Config) SetDefaults(dataDir string) {
	if !c.DatabaseURL.Valid {
		c.DatabaseURL = sql.Null[string]{
			V: "sqlite://" + filepath.Join(dataDir, "strata.db"), Valid: true,
		}
	}
	if !c.ConfigurationDirectory.Valid {
		c.ConfigurationDirectory = sql.Null[string]{V: DefaultConfigurationDirectory, Valid: true}
	}
	if !c.Server.Address.Valid {
		c.Server.Address = sql.Null[string]{V: DefaultServerAddress, Valid: true}
	}
	if !c.Server.ShutdownTimeout.Valid {
		c.Server.ShutdownTimeout = sql.Null[time.Duration]{V: DefaultServerShutdownTimeout, Valid: true}
	}
	if !c.Migrations.Table.Valid {
		c.Migrations.Table = sql.Null[string]{V: DefaultMigrationsTable, Valid: true}
	}
	if !c.Migrations.LockTimeout.Valid {
		c.Migrations.LockTimeout = sql.Null[time.Duration]{V: DefaultLockTimeout, Valid: true}
	}
}
