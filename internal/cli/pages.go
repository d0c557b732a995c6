package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/klauern/wikisync/internal/pagestore"
	"github.com/klauern/wikisync/internal/ui"
)

func pagesCommand() *cli.Command {
	return &cli.Command{
		Name:  "pages",
		Usage: "List the pages of the local wiki",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "prefix",
				Usage: "Only list pages starting with this prefix",
			},
			&cli.BoolFlag{
				Name:  "deleted",
				Usage: "Include deleted pages",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wiki, err := openWiki(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = wiki.Close() }()

			pages, err := wiki.store.List(ctx, pagestore.ListFilter{
				Prefix:         cmd.String("prefix"),
				IncludeDeleted: cmd.Bool("deleted"),
			})
			if err != nil {
				return err
			}

			w := out(cmd)
			for _, p := range pages {
				line := fmt.Sprintf("%-40s %s", p.Name, ui.Dim(fmt.Sprintf("rev %d", p.Revision)))
				if p.Deleted {
					line += " " + ui.Warning("(deleted)")
				}
				fmt.Fprintln(w, line)
			}
			if len(pages) == 0 {
				fmt.Fprintln(w, ui.Dim("no pages"))
			}
			return nil
		},
	}
}

func pageCommand() *cli.Command {
	return &cli.Command{
		Name:  "page",
		Usage: "Read or edit a page of the local wiki",
		Commands: []*cli.Command{
			{
				Name:      "get",
				Usage:     "Print a page",
				ArgsUsage: "<page>",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "rev",
						Usage: "Revision to print (default: current)",
					},
				},
				Action: pageGet,
			},
			{
				Name:      "put",
				Usage:     "Store a new revision of a page read from a file or stdin",
				ArgsUsage: "<page>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "file",
						Aliases: []string{"f"},
						Usage:   "Read the body from this file instead of stdin",
					},
					&cli.StringFlag{
						Name:  "comment",
						Usage: "Edit comment",
					},
				},
				Action: pagePut,
			},
			{
				Name:      "delete",
				Usage:     "Delete a page",
				ArgsUsage: "<page>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "comment",
						Usage: "Edit comment",
					},
				},
				Action: pageDelete,
			},
		},
	}
}

func pageGet(ctx context.Context, cmd *cli.Command) error {
	name, err := readPageArg(cmd)
	if err != nil {
		return err
	}
	wiki, err := openWiki(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = wiki.Close() }()

	rev := cmd.Int("rev")
	if rev == 0 {
		exists, err := wiki.store.Exists(ctx, name)
		if err != nil {
			return err
		}
		if !exists {
			return fmt.Errorf("page %q: %w", name, pagestore.ErrNotFound)
		}
	}
	body, err := wiki.store.RawBody(ctx, name, rev)
	if err != nil {
		return fmt.Errorf("page %q: %w", name, err)
	}
	_, err = out(cmd).Write(body)
	return err
}

func pagePut(ctx context.Context, cmd *cli.Command) error {
	name, err := readPageArg(cmd)
	if err != nil {
		return err
	}

	var body []byte
	if path := cmd.String("file"); path != "" {
		// #nosec G304 - path is provided by the user
		body, err = os.ReadFile(path)
	} else {
		r := cmd.Root().Reader
		if r == nil {
			r = os.Stdin
		}
		body, err = io.ReadAll(r)
	}
	if err != nil {
		return fmt.Errorf("read page body: %w", err)
	}

	wiki, err := openWiki(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = wiki.Close() }()

	current, err := wiki.store.RealRevision(ctx, name)
	if err != nil && !errors.Is(err, pagestore.ErrNotFound) {
		return err
	}
	rev, err := wiki.store.Save(ctx, name, body, current, cmd.String("comment"))
	switch {
	case errors.Is(err, pagestore.ErrUnchanged):
		fmt.Fprintln(out(cmd), ui.StatusSkipped(fmt.Sprintf("%s unchanged at revision %d", name, rev)))
		return nil
	case err != nil:
		return fmt.Errorf("save %q: %w", name, err)
	}
	fmt.Fprintln(out(cmd), ui.StatusSuccess(fmt.Sprintf("%s saved as revision %d", name, rev)))
	return nil
}

func pageDelete(ctx context.Context, cmd *cli.Command) error {
	name, err := readPageArg(cmd)
	if err != nil {
		return err
	}
	wiki, err := openWiki(ctx, cmd)
	if err != nil {
		return err
	}
	defer func() { _ = wiki.Close() }()

	current, err := wiki.store.RealRevision(ctx, name)
	if err != nil {
		return fmt.Errorf("page %q: %w", name, err)
	}
	rev, err := wiki.store.Delete(ctx, name, current, strings.TrimSpace(cmd.String("comment")))
	if err != nil {
		return fmt.Errorf("delete %q: %w", name, err)
	}
	fmt.Fprintln(out(cmd), ui.StatusSuccess(fmt.Sprintf("%s deleted at revision %d", name, rev)))
	return nil
}
