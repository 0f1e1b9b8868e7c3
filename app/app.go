package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mandelsoft/vfs/pkg/memoryfs"

	"go.hackfix.me/strata/app/config"
	actx "go.hackfix.me/strata/app/context"
	"go.hackfix.me/strata/cli"
)

// App is the application.
type App struct {
	name    string
	dataDir string
	ctx     *actx.Context
	cli     *cli.CLI
	// the logging level is set via the CLI, if the app was initialized with the
	// WithLogger option.
	logLevel *slog.LevelVar
}

// New initializes a new application. configFilePath is the default path of
// the configuration file, and dataDir is the directory the default SQLite
// database is created in.
func New(name, configFilePath, dataDir string, opts ...Option) (*App, error) {
	version, err := actx.GetVersion()
	if err != nil {
		return nil, err
	}

	defaultCtx := &actx.Context{
		Ctx:        context.Background(),
		FS:         memoryfs.New(),
		Logger:     slog.Default(),
		TimeSource: timeSourceFunc(nil),
		Version:    version,
	}
	app := &App{name: name, dataDir: dataDir, ctx: defaultCtx}

	for _, opt := range opts {
		opt(app)
	}

	ver := fmt.Sprintf("%s %s", app.name, app.ctx.Version.String())
	app.cli, err = cli.New(app.name, configFilePath, ver)
	if err != nil {
		return nil, err
	}

	return app, nil
}

// Run initializes the application environment and starts execution of the
// application.
func (app *App) Run(args []string) error {
	if err := app.cli.Parse(args); err != nil {
		return err
	}

	if app.logLevel != nil {
		app.logLevel.Set(app.cli.Log.Level)
		slog.SetLogLoggerLevel(app.cli.Log.Level)
	}

	if app.ctx.Config == nil {
		cfg := config.NewConfig(app.ctx.FS, app.cli.ConfigFile)
		if err := cfg.Load(); err != nil {
			return err
		}
		app.ctx.Config = cfg
	}
	app.cli.ApplyConfig(app.ctx.Config)
	app.ctx.Config.SetDefaults(app.dataDir)

	if err := app.cli.Execute(app.ctx); err != nil {
		return err
	}

	return nil
}
