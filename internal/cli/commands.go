package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/klauern/wikisync/internal/config"
	"github.com/klauern/wikisync/internal/interwiki"
	"github.com/klauern/wikisync/internal/ui"
)

func initCommand() *cli.Command {
	return &cli.Command{
		Name:  "init",
		Usage: "Create the configuration of the local wiki",
		Description: `Write a config file naming the local wiki and generate its IWID.

   Examples:
     wikisync init --name HomeWiki --url http://localhost:8765/
     wikisync init --name HomeWiki --remote OtherWiki=http://other.example/`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "name",
				Usage:    "Interwiki name of the local wiki",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "url",
				Usage: "Base URL the local wiki is served at",
			},
			&cli.StringFlag{
				Name:  "data-dir",
				Usage: "Directory for the page database and tag logs",
			},
			&cli.StringSliceFlag{
				Name:  "remote",
				Usage: "Interwiki entry as Name=URL (repeatable)",
			},
			&cli.BoolFlag{
				Name:  "force",
				Usage: "Overwrite an existing config file",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			path := configPath(cmd)
			if _, err := os.Stat(path); err == nil && !cmd.Bool("force") {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}

			cfg := config.Default()
			cfg.Wiki.InterwikiName = cmd.String("name")
			cfg.Wiki.URL = cmd.String("url")
			if dir := cmd.String("data-dir"); dir != "" {
				cfg.Wiki.DataDir = dir
			}
			entries, err := parseEntries(cmd.StringSlice("remote"))
			if err != nil {
				return err
			}
			cfg.Interwiki.Entries = entries

			iwid, err := cfg.EnsureIWID()
			if err != nil {
				return err
			}
			if err := cfg.SaveToPath(path); err != nil {
				return fmt.Errorf("save config: %w", err)
			}

			w := out(cmd)
			fmt.Fprintln(w, ui.StatusSuccess("Initialized "+ui.Bold(cfg.Wiki.InterwikiName)))
			fmt.Fprintf(w, "  config: %s\n", path)
			fmt.Fprintf(w, "  iwid:   %s\n", iwid)
			return nil
		},
	}
}

// parseEntries parses Name=URL pairs.
func parseEntries(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	entries := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, url, ok := strings.Cut(pair, "=")
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid interwiki entry %q (want Name=URL)", pair)
		}
		entries[name] = url
	}
	return entries, nil
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Display the effective configuration",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "interwiki",
				Usage: "List the resolved interwiki map instead",
			},
		},
		Action: func(_ context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			w := out(cmd)

			if cmd.Bool("interwiki") {
				m, err := interwiki.Build(cfg.InterwikiSource())
				if err != nil {
					return err
				}
				if m.Len() == 0 {
					return errors.New("the interwiki map is empty")
				}
				for _, name := range m.Names() {
					_, url, _ := m.Resolve(name)
					fmt.Fprintf(w, "%-20s %s\n", name, url)
				}
				return nil
			}

			fmt.Fprintln(w, ui.Header("# "+configPath(cmd)))
			data, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			_, err = w.Write(data)
			return err
		},
	}
}
