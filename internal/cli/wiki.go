package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/klauern/wikisync/internal/config"
	"github.com/klauern/wikisync/internal/model"
	"github.com/klauern/wikisync/internal/pagestore"
)

// loadConfig loads the config file named by --config, or the default one.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	if path := cmd.String("config"); path != "" {
		cfg, err := config.LoadFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
		return cfg, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// configPath returns the config file named by --config, or the default one.
func configPath(cmd *cli.Command) string {
	if path := cmd.String("config"); path != "" {
		return path
	}
	return config.FilePath()
}

// localWiki is the opened local wiki: its configuration, identity and pages.
type localWiki struct {
	cfg   *config.Config
	home  model.Identity
	store pagestore.Store
}

// openWiki loads the configuration and opens the page database.
func openWiki(ctx context.Context, cmd *cli.Command) (*localWiki, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if _, err := cfg.EnsureIWID(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.DataDir(), 0o750); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	store, err := pagestore.OpenSQLite(ctx, cfg.DatabasePath(), 0)
	if err != nil {
		return nil, err
	}
	return &localWiki{cfg: cfg, home: cfg.HomeIdentity(), store: store}, nil
}

func (w *localWiki) Close() error {
	return w.store.Close()
}

// readPageArg returns the single page name argument of cmd.
func readPageArg(cmd *cli.Command) (string, error) {
	if cmd.Args().Len() != 1 {
		return "", errors.New("exactly one page name is required")
	}
	return cmd.Args().First(), nil
}
