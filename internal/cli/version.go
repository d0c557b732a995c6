package cli

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"
)

func versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Display version and build information",
		Action: func(_ context.Context, cmd *cli.Command) error {
			w := out(cmd)
			fmt.Fprintf(w, "wikisync version %s\n", Version)
			fmt.Fprintf(w, "  commit: %s\n", Commit)
			fmt.Fprintf(w, "  built: %s\n", BuildDate)
			fmt.Fprintf(w, "  go: %s\n", runtime.Version())
			return nil
		},
	}
}
