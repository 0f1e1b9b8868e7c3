package config

import (
	"database/sql"
	"testing"
	"time"

	"github.com/mandelsoft/vfs/pkg/memoryfs"
	"github.com/mandelsoft/vfs/pkg/vfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigLoad(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		path    string
		content string
		exp     Config
		expErr  string
	}{
		{
			name: "ok/missing_file",
			path: "/config.json",
		},
		{
			name:    "ok/empty_json",
			path:    "/config.json",
			content: "",
		},
		{
			name: "ok/json",
			path: "/config.json",
			content: `{
  "database_url": "postgres://db/app",
  "configuration_directory": "/etc/app",
  "extra_migration_directories": ["/a", "/b"],
  "server": {"address": ":9000", "shutdown_timeout": "30s"},
  "migrations": {"table": "history", "lock_timeout": "2m"}
}`,
			exp: Config{
				DatabaseURL:               sql.Null[string]{V: "postgres://db/app", Valid: true},
				ConfigurationDirectory:    sql.Null[string]{V: "/etc/app", Valid: true},
				ExtraMigrationDirectories: []string{"/a", "/b"},
				Server: Server{
					Address:         sql.Null[string]{V: ":9000", Valid: true},
					ShutdownTimeout: sql.Null[time.Duration]{V: 30 * time.Second, Valid: true},
				},
				Migrations: Migrations{
					Table:       sql.Null[string]{V: "history", Valid: true},
					LockTimeout: sql.Null[time.Duration]{V: 2 * time.Minute, Valid: true},
				},
			},
		},
		{
			name: "ok/yaml",
			path: "/config.yml",
			content: `database_url: sqlite:///var/lib/app.db
extra_migration_directories: [/a]
migrations:
  lock_timeout: 1d
`,
			exp: Config{
				DatabaseURL:               sql.Null[string]{V: "sqlite:///var/lib/app.db", Valid: true},
				ExtraMigrationDirectories: []string{"/a"},
				Migrations: Migrations{
					LockTimeout: sql.Null[time.Duration]{V: 24 * time.Hour, Valid: true},
				},
			},
		},
		{
			name:    "err/invalid_json",
			path:    "/config.json",
			content: `{"database_url": `,
			expErr:  "failed parsing configuration file: unexpected end of JSON input",
		},
		{
			name:    "ok/empty_table",
			path:    "/config.json",
			content: `{"migrations": {"table": ""}}`,
		},
		{
			name:    "err/invalid_table",
			path:    "/config.yaml",
			content: "migrations:\n  table: 'x\" (id INT); DROP TABLE users; --'\n",
			expErr: "failed parsing configuration file: invalid migrations table name " +
				`'x" (id INT); DROP TABLE users; --': must start with a letter or underscore, ` +
				"followed by letters, digits or underscores",
		},
		{
			name:    "err/invalid_table_leading_digit",
			path:    "/config.json",
			content: `{"migrations": {"table": "1history"}}`,
			expErr: "failed parsing configuration file: invalid migrations table name " +
				"'1history': must start with a letter or underscore, followed by letters, digits or underscores",
		},
		{
			name:    "err/invalid_shutdown_timeout",
			path:    "/config.yaml",
			content: "server:\n  shutdown_timeout: never\n",
			expErr:  "failed parsing configuration file: failed parsing server shutdown timeout: invalid duration 'never'",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			fs := memoryfs.New()
			if tt.content != "" {
				require.NoError(t, vfs.WriteFile(fs, tt.path, []byte(tt.content), 0o644))
			}

			cfg := NewConfig(fs, tt.path)
			err := cfg.Load()
			if tt.expErr != "" {
				assert.EqualError(t, err, tt.expErr)
				return
			}
			require.NoError(t, err)

			assert.Equal(t, tt.exp.DatabaseURL, cfg.DatabaseURL)
			assert.Equal(t, tt.exp.ConfigurationDirectory, cfg.ConfigurationDirectory)
			assert.Equal(t, tt.exp.ExtraMigrationDirectories, cfg.ExtraMigrationDirectories)
			assert.Equal(t, tt.exp.Server, cfg.Server)
			assert.Equal(t, tt.exp.Migrations, cfg.Migrations)
		})
	}
}

func TestConfigSave(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"/etc/strata/config.json", "/etc/strata/config.yaml"} {
		t.Run(path, func(t *testing.T) {
			t.Parallel()

			fs := memoryfs.New()
			cfg := NewConfig(fs, path)
			cfg.ExtraMigrationDirectories = []string{"/seed"}
			cfg.SetDefaults("/data")
			require.NoError(t, cfg.Save())

			loaded := NewConfig(fs, path)
			require.NoError(t, loaded.Load())

			assert.Equal(t, "sqlite:///data/strata.db", loaded.DatabaseURL.V)
			assert.Equal(t, DefaultConfigurationDirectory, loaded.ConfigurationDirectory.V)
			assert.Equal(t, []string{"/seed"}, loaded.ExtraMigrationDirectories)
			assert.Equal(t, DefaultServerAddress, loaded.Server.Address.V)
			assert.Equal(t, DefaultServerShutdownTimeout, loaded.Server.ShutdownTimeout.V)
			assert.Equal(t, DefaultMigrationsTable, loaded.Migrations.Table.V)
			assert.Equal(t, DefaultLockTimeout, loaded.Migrations.LockTimeout.V)
		})
	}
}

func TestConfigMigrationLayers(t *testing.T) {
	t.Parallel()

	cfg := NewConfig(memoryfs.New(), "/config.json")
	cfg.ConfigurationDirectory = sql.Null[string]{V: "/etc/strata", Valid: true}
	cfg.ExtraMigrationDirectories = []string{"/a", "/b"}

	base, extras := cfg.MigrationLayers()
	assert.Equal(t, "/etc/strata/migrations", base)
	assert.Equal(t, []string{"/a", "/b"}, extras)
}

func TestConfigEmptyTableDefaults(t *testing.T) {
	t.Parallel()

	fs := memoryfs.New()
	require.NoError(t, vfs.WriteFile(fs, "/config.json", []byte(`{"migrations": {"table": ""}}`), 0o644))

	cfg := NewConfig(fs, "/config.json")
	require.NoError(t, cfg.Load())
	cfg.SetDefaults("/data")
	assert.Equal(t, DefaultMigrationsTable, cfg.Migrations.Table.V)
}
