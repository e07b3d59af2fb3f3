// Package cli implements the pienkuu command line.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/pienkuu/pienkuu/internal/action"
	"github.com/pienkuu/pienkuu/internal/archive"
	"github.com/pienkuu/pienkuu/internal/compose"
	"github.com/pienkuu/pienkuu/internal/fetch"
	"github.com/pienkuu/pienkuu/internal/minify"
	"github.com/pienkuu/pienkuu/internal/settings"
	"github.com/pienkuu/pienkuu/internal/target"
)

// Version is the tool version (set via -ldflags).
var Version = "dev"

// SettingsEnv names the environment variable consulted when --settings is
// not given.
const SettingsEnv = "PIENKUU_SETTINGS"

// errUsage is returned when the folder argument is missing.
var errUsage = errors.New("please provide a folder name as the first argument\nusage: pienkuu <folder> [flags]")

type (
	// Dependencies are the injection points of an App. Nil fields are
	// replaced with production defaults by NewApp.
	Dependencies struct {
		Fs        afero.Fs
		Stdout    io.Writer
		Stderr    io.Writer
		Getenv    func(string) string
		Now       func() time.Time
		Fetcher   action.Fetcher
		NewTarget func(context.Context, target.Config) (target.Target, error)
	}

	// App wires the CLI to the packaging services.
	App struct {
		deps Dependencies
	}

	options struct {
		settingsPath string
		publish      bool
		dryRun       bool
		verbose      bool
	}
)

// NewApp returns an App with defaults filled in for nil dependencies.
func NewApp(deps Dependencies) *App {
	if deps.Fs == nil {
		deps.Fs = afero.NewOsFs()
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	if deps.Getenv == nil {
		deps.Getenv = os.Getenv
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.NewTarget == nil {
		deps.NewTarget = target.NewTarget
	}
	return &App{deps: deps}
}

// Command builds the root cobra command.
func (a *App) Command() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "pienkuu <folder>",
		Short: "Package a folder and its dependencies into a zip archive",
		Long: `pienkuu packages <folder> into <folder>.zip in the current directory.

Each folder may contain a pienkuu.json describing folders it depends on,
files to ignore or minify, and actions (print, download) to run after its
files are added. Dependencies are packaged first, depth-first, and later
writes to the same archive path replace earlier ones.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args: func(_ *cobra.Command, args []string) error {
			switch {
			case len(args) == 0:
				return errUsage
			case len(args) > 1:
				return fmt.Errorf("expected one folder, got %d arguments\nusage: pienkuu <folder> [flags]", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context(), args[0], opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.settingsPath, "settings", "", "tool settings YAML file (default $"+SettingsEnv+")")
	flags.BoolVar(&opts.publish, "publish", false, "upload the archive to the configured publish targets")
	flags.BoolVar(&opts.dryRun, "dry-run", false, "compose and list the archive without writing it")
	flags.BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

// Execute runs the command line with args and returns the process exit
// code. Errors are printed to the Stderr dependency.
func Execute(ctx context.Context, args []string, deps Dependencies) int {
	app := NewApp(deps)

	cmd := app.Command()
	cmd.SetArgs(args)
	cmd.SetOut(app.deps.Stdout)
	cmd.SetErr(app.deps.Stderr)

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(app.deps.Stderr, "pienkuu: %v\n", err)
		return 1
	}
	return 0
}

func (a *App) run(ctx context.Context, folderArg string, opts options) error {
	level := hclog.Warn
	if opts.verbose {
		level = hclog.Debug
	}
	logger := hclog.New(&hclog.LoggerOptions{
		Name:   "pienkuu",
		Level:  level,
		Output: a.deps.Stderr,
	})
	ctx = hclog.WithContext(ctx, logger)

	cfg, err := a.loadSettings(opts.settingsPath)
	if err != nil {
		return err
	}

	folder, err := compose.CleanFolder(folderArg)
	if err != nil {
		return err
	}
	outPath := folder + archive.Extension

	if !opts.dryRun {
		if err := a.deps.Fs.Remove(outPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Debug("could not remove previous archive", "path", outPath, "error", err)
		}
	}

	fetcher := a.deps.Fetcher
	if fetcher == nil {
		fetcher = fetch.NewClient(cfg.FetchConfig())
	}
	composer := compose.New(a.deps.Fs, action.Builtin(a.deps.Stdout, fetcher), minify.Default())

	sink := archive.New()
	if err := composer.Compose(ctx, folder, sink); err != nil {
		return err
	}

	data, err := sink.Serialize(*cfg.Archive.CompressionLevel)
	if err != nil {
		return err
	}

	if opts.dryRun {
		return a.dryRun(ctx, cfg, folder, sink, opts.publish)
	}

	if err := afero.WriteFile(a.deps.Fs, outPath, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", outPath, err)
	}
	logger.Info("wrote archive", "path", outPath, "entries", sink.Len(), "bytes", len(data))

	if opts.publish {
		return a.publish(ctx, cfg, folder, sink, data)
	}
	return nil
}

func (a *App) loadSettings(flagPath string) (*settings.Settings, error) {
	p := flagPath
	if p == "" {
		p = a.deps.Getenv(SettingsEnv)
	}
	if p == "" {
		return settings.Default(), nil
	}
	return settings.Load(a.deps.Fs, p)
}

// openTargets constructs every configured publish target.
func (a *App) openTargets(ctx context.Context, cfg *settings.Settings) ([]target.Target, error) {
	configs := cfg.TargetConfigs()
	if len(configs) == 0 {
		return nil, errors.New("publish: no targets configured in settings")
	}

	targets := make([]target.Target, 0, len(configs))
	for _, tc := range configs {
		t, err := a.deps.NewTarget(ctx, tc)
		if err != nil {
			return nil, fmt.Errorf("publish: %w", err)
		}
		targets = append(targets, t)
	}
	return targets, nil
}
