package cli

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/alecthomas/kong"

	"go.hackfix.me/strata/app/config"
	actx "go.hackfix.me/strata/app/context"
	"go.hackfix.me/strata/xtime"
)

// CLI is the command line interface of strata.
type CLI struct {
	Migrate Migrate `kong:"cmd,help='Apply outstanding database migrations.'"`
	Status  Status  `kong:"cmd,help='Show the state of database migrations.'"`
	Serve   Serve   `kong:"cmd,help='Apply outstanding database migrations, and start the web server.'"`

	Log struct {
		Level slog.Level `enum:"DEBUG,INFO,WARN,ERROR" default:"INFO" help:"Set the app logging level."`
	} `embed:"" prefix:"log-"`
	// NOTE: I'm deliberately not using kong.ConfigFlag or its support for reading
	// values from configuration files, since I want to manage configuration
	// independently from the CLI.
	ConfigFile string `kong:"default='${configFile}',help='Path to the configuration file. Files with a .yaml or .yml extension are read as YAML, others as JSON.'"`
	//nolint:lll // Long struct tags are unavoidable.
	ConfigurationDir   string         `kong:"name='configuration-dir',help='Directory containing the base \"migrations\" directory. Default: ${defaultConfigDir}'"`
	ExtraMigrationsDir []string       `kong:"name='extra-migrations-dir',sep='none',help='Additional migrations directory, applied before the base directory. Can be repeated, and the directories are applied in reverse order.'"`
	DatabaseURL        string         `kong:"name='database-url',help='URL of the target database: sqlite://<path>, sqlite::memory: or postgres://...'"`
	LockTimeout        xtime.Duration `kong:"name='lock-timeout',help='How long to wait for another process applying migrations to the same database, e.g. 30s, 5m.'"`
	Version            kong.VersionFlag `kong:"help='Output version and exit.'"`

	kong *kong.Kong
	kctx *kong.Context
}

// New initializes the command-line interface.
func New(name, configFilePath, version string) (*CLI, error) {
	c := &CLI{}
	kparser, err := kong.New(c,
		kong.Name(name),
		kong.UsageOnError(),
		kong.DefaultEnvars(strings.ToUpper(name)),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			Summary:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"configFile":       configFilePath,
			"defaultConfigDir": config.DefaultConfigurationDirectory,
			"defaultAddress":   config.DefaultServerAddress,
			"version":          version,
		},
	)
	if err != nil {
		return nil, fmt.Errorf("failed creating the Kong parser: %w", err)
	}

	c.kong = kparser

	return c, nil
}

// Execute starts the command execution. Parse must be called before this method.
func (c *CLI) Execute(appCtx *actx.Context) error {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	c.kong.Stdout = appCtx.Stdout
	c.kong.Stderr = appCtx.Stderr

	//nolint:wrapcheck // This is fine.
	return c.kctx.Run(appCtx)
}

// Parse the given command line arguments. This method must be called before
// Execute.
func (c *CLI) Parse(args []string) error {
	kctx, err := c.kong.Parse(args)
	if err != nil {
		return fmt.Errorf("failed parsing CLI arguments: %w", err)
	}
	c.kctx = kctx

	return nil
}

// Command returns the full path of the executed command.
func (c *CLI) Command() string {
	if c.kctx == nil {
		panic("the CLI wasn't initialized properly")
	}
	cmdPath := []string{}
	for _, p := range c.kctx.Path {
		if p.Command != nil {
			cmdPath = append(cmdPath, p.Command.Name)
		}
	}

	return strings.Join(cmdPath, " ")
}

// ApplyConfig merges the CLI flags with the configuration. Flags that were set
// take precedence and are written to cfg, and flags that weren't set are
// populated from cfg.
func (c *CLI) ApplyConfig(cfg *config.Config) {
	mergeString(&c.DatabaseURL, &cfg.DatabaseURL)
	mergeString(&c.ConfigurationDir, &cfg.ConfigurationDirectory)
	mergeString(&c.Serve.Address, &cfg.Server.Address)

	if len(c.ExtraMigrationsDir) > 0 {
		cfg.ExtraMigrationDirectories = c.ExtraMigrationsDir
	} else {
		c.ExtraMigrationsDir = cfg.ExtraMigrationDirectories
	}

	if c.LockTimeout != 0 {
		cfg.Migrations.LockTimeout = sql.Null[time.Duration]{V: time.Duration(c.LockTimeout), Valid: true}
	} else if cfg.Migrations.LockTimeout.Valid {
		c.LockTimeout = xtime.Duration(cfg.Migrations.LockTimeout.V)
	}
}

func mergeString(flag *string, cfgVal *sql.Null[string]) {
	if *flag != "" {
		*cfgVal = sql.Null[string]{V: *flag, Valid: true}
	} else if cfgVal.Valid {
		*flag = cfgVal.V
	}
}
