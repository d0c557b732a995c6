package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/wikisync/internal/interwiki"
	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/progress"
	"github.com/klauern/wikisync/internal/sync"
	"github.com/klauern/wikisync/internal/ui"
)

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:      "sync",
		Usage:     "Synchronize pages with a remote wiki",
		UsageText: "wikisync sync [options] [remote-wiki]",
		Description: `Reconcile the local wiki with a remote wiki named in the interwiki map.

   Settings default to the sync section of the config file; flags override them.

   Examples:
     wikisync sync OtherWiki
     wikisync sync --direction down --match 'Help/' OtherWiki
     wikisync sync --dry-run --page FrontPage --page Help OtherWiki`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "direction",
				Usage: "Direction of the run: up, down or both",
			},
			&cli.StringFlag{
				Name:  "local-prefix",
				Usage: "Prefix of the synchronized pages in the local wiki",
			},
			&cli.StringFlag{
				Name:  "remote-prefix",
				Usage: "Prefix of the synchronized pages in the remote wiki",
			},
			&cli.StringFlag{
				Name:  "match",
				Usage: "Regular expression selecting canonical page names",
			},
			&cli.StringSliceFlag{
				Name:  "page",
				Usage: "Canonical page to synchronize (repeatable)",
			},
			&cli.StringSliceFlag{
				Name:  "group",
				Usage: "Group page whose members are synchronized (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "exclude-non-writable",
				Usage: "Skip remote pages the local wiki may not write",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Number of pages reconciled at once",
			},
			&cli.BoolFlag{
				Name:    "dry-run",
				Aliases: []string{"d"},
				Usage:   "Preview changes without modifying either wiki",
			},
			&cli.BoolFlag{
				Name:  "no-progress",
				Usage: "Do not show a progress bar",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.Args().Len() > 1 {
				return fmt.Errorf("sync takes at most one remote wiki, got %d", cmd.Args().Len())
			}

			wiki, err := openWiki(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = wiki.Close() }()

			opts, err := wiki.cfg.SyncOptions()
			if err != nil {
				return err
			}
			if err := applySyncFlags(cmd, &opts); err != nil {
				return err
			}

			iwmap, err := interwiki.Build(wiki.cfg.InterwikiSource())
			if err != nil {
				return err
			}

			isVerbose := verbose(cmd, wiki.cfg.Output.Verbose)
			if !cmd.Bool("no-progress") && !isVerbose {
				opts.Progress = progress.SyncTracker(os.Stderr)
			}

			engine := sync.New(wiki.store, wiki.home, iwmap, wiki.cfg.TagRoot(), logging.Default())
			res, runErr := engine.Run(ctx, opts)

			w := out(cmd)
			if res != nil && (runErr == nil || len(res.Pages) > 0) {
				if err := ui.RenderResult(w, res, isVerbose); err != nil {
					return err
				}
			}
			if runErr != nil {
				return runErr
			}
			if res.HasConflicts() {
				fmt.Fprintln(w, ui.StatusWarning("resolve the conflict markers in the local pages, then sync again"))
			}
			if n := len(res.Failed()); n > 0 {
				return fmt.Errorf("%d page(s) failed to synchronize", n)
			}
			return nil
		},
	}
}

// applySyncFlags overrides configured run settings with the flags that
// were set.
func applySyncFlags(cmd *cli.Command, opts *sync.Options) error {
	if cmd.Args().Len() == 1 {
		opts.RemoteWiki = cmd.Args().First()
	}
	if cmd.IsSet("direction") {
		d, err := model.ParseDirection(cmd.String("direction"))
		if err != nil {
			return &model.ConfigurationError{Field: "sync.direction", Message: err.Error()}
		}
		opts.Direction = d
	}
	if cmd.IsSet("local-prefix") {
		opts.LocalPrefix = cmd.String("local-prefix")
	}
	if cmd.IsSet("remote-prefix") {
		opts.RemotePrefix = cmd.String("remote-prefix")
	}
	if cmd.IsSet("match") {
		opts.PageMatch = cmd.String("match")
	}
	if cmd.IsSet("page") {
		opts.PageList = cmd.StringSlice("page")
	}
	if cmd.IsSet("group") {
		opts.GroupList = cmd.StringSlice("group")
	}
	if cmd.IsSet("exclude-non-writable") {
		opts.ExcludeNonWritable = cmd.Bool("exclude-non-writable")
	}
	if cmd.IsSet("workers") {
		opts.Workers = cmd.Int("workers")
	}
	opts.DryRun = cmd.Bool("dry-run")
	return nil
}
