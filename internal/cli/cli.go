// Package cli provides the command-line interface for wikisync.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/ui"
)

var (
	// Version is the current version of the application.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the date and time of the build.
	BuildDate = "unknown"
)

// Run executes the CLI application with the given context and arguments.
func Run(ctx context.Context, args []string) error {
	return newApp(os.Stdout).Run(ctx, args)
}

// RunIO is Run with page bodies read from in and command output written to
// out. Progress and log output still go to stderr.
func RunIO(ctx context.Context, args []string, in io.Reader, out io.Writer) error {
	app := newApp(out)
	app.Reader = in
	return app.Run(ctx, args)
}

// newApp builds the root command writing its output to w.
func newApp(w io.Writer) *cli.Command {
	return &cli.Command{
		Name:    "wikisync",
		Usage:   "Synchronize pages between wikis",
		Version: Version,
		Writer:  w,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the config file (default: ~/.wikisync/config.yaml)",
				Sources: cli.EnvVars("WIKISYNC_CONFIG"),
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output (info level logging)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Enable debug output (debug level logging, implies verbose)",
			},
			&cli.BoolFlag{
				Name:    "log-json",
				Usage:   "Write log records as JSON",
				Sources: cli.EnvVars("WIKISYNC_LOG_JSON"),
			},
			&cli.BoolFlag{
				Name:  "no-color",
				Usage: "Disable colored output",
			},
		},
		Before: func(ctx context.Context, cmd *cli.Command) (context.Context, error) {
			configureColors(cmd)
			return ctx, configureLogging(cmd)
		},
		Commands: []*cli.Command{
			versionCommand(),
			initCommand(),
			configCommand(),
			syncCommand(),
			serveCommand(),
			pagesCommand(),
			pageCommand(),
			tagsCommand(),
		},
	}
}

// configureColors sets up color output based on CLI flags and NO_COLOR.
func configureColors(cmd *cli.Command) {
	if cmd.Bool("no-color") || os.Getenv("NO_COLOR") != "" {
		ui.DisableColors()
	}
}

// configureLogging installs the process logger chosen by the CLI flags.
func configureLogging(cmd *cli.Command) error {
	opts := logging.DefaultOptions()
	opts.Level = logging.LevelFor(cmd.Bool("verbose"), cmd.Bool("debug"))
	opts.AddSource = cmd.Bool("debug")
	opts.JSON = cmd.Bool("log-json")
	logging.SetDefault(logging.New(opts))

	logging.Debug("logging configured", slog.String("level", opts.Level.String()))
	return nil
}

// out returns the writer commands print to.
func out(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// verbose reports whether verbose output was requested by flag or config.
func verbose(cmd *cli.Command, configured bool) bool {
	return configured || cmd.Bool("verbose") || cmd.Bool("debug")
}
