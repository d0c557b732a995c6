package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/urfave/cli/v3"

	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/tagstore"
	"github.com/klauern/wikisync/internal/ui"
)

func tagsCommand() *cli.Command {
	return &cli.Command{
		Name:  "tags",
		Usage: "Inspect or reset the synchronization history of local pages",
		Commands: []*cli.Command{
			{
				Name:      "list",
				Usage:     "List the tags of pages (default: every page with tags)",
				ArgsUsage: "[page...]",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "remote",
						Usage: "Only list tags recorded against this remote wiki",
					},
				},
				Action: tagsList,
			},
			{
				Name:      "clear",
				Usage:     "Remove every tag of a page so the next sync starts over",
				ArgsUsage: "<page>",
				Action:    tagsClear,
			},
		},
	}
}

func tagsList(ctx context.Context, cmd *cli.Command) error {
	wiki, err := openWiki(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = wiki.Close() }()

	pages := cmd.Args().Slice()
	if len(pages) == 0 {
		infos, err := wiki.store.List(ctx, pagestore.ListFilter{IncludeDeleted: true})
		if err != nil {
			return err
		}
		for _, info := range infos {
			pages = append(pages, info.Name)
		}
	}

	remote := cmd.String("remote")
	w := out(cmd)
	shown := 0
	for _, page := range pages {
		store, err := tagstore.Open(wiki.cfg.TagRoot(), page,
			tagstore.WithReadTimeout(wiki.cfg.Tags.ReadLockTimeout))
		if err != nil {
			return err
		}
		tags, err := store.All(ctx)
		if err != nil {
			return fmt.Errorf("tags of %q: %w", page, err)
		}
		if remote != "" {
			tags = tagsFor(tags, remote)
		}
		// Pages without history are only reported when named explicitly.
		if len(tags) == 0 && cmd.Args().Len() == 0 {
			continue
		}
		fmt.Fprint(w, ui.RenderTags(page, tags))
		shown++
	}
	if shown == 0 {
		fmt.Fprintln(w, ui.Dim("no tags"))
	}
	return nil
}

// tagsFor keeps the tags recorded against the wiki named remote.
func tagsFor(tags []model.Tag, remote string) []model.Tag {
	var kept []model.Tag
	for _, t := range tags {
		id := model.ParseIdentity(t.RemoteWiki)
		if id.InterwikiName == remote || id.IWID == remote {
			kept = append(kept, t)
		}
	}
	return kept
}

func tagsClear(ctx context.Context, cmd *cli.Command) error {
	page, err := readPageArg(cmd)
	if err != nil {
		return err
	}
	wiki, err := openWiki(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = wiki.Close() }()

	store, err := tagstore.Open(wiki.cfg.TagRoot(), page,
		tagstore.WithWriteTimeout(wiki.cfg.Tags.WriteLockTimeout))
	if err != nil {
		return err
	}
	if err := store.Clear(ctx); err != nil {
		var lockErr *model.LockTimeoutError
		if errors.As(err, &lockErr) {
			return fmt.Errorf("tag log of %q is busy, try again: %w", page, err)
		}
		return err
	}
	fmt.Fprintln(out(cmd), ui.StatusSuccess("Cleared tags of "+page))
	return nil
}
