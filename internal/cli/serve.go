package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/klauern/wikisync/internal/logging"
	"github.com/klauern/wikisync/internal/rpc"
	"github.com/klauern/wikisync/internal/ui"
)

const shutdownTimeout = 10 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the local wiki to remote synchronization clients",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "Address to listen on (default from config)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			wiki, err := openWiki(ctx, cmd)
			if err != nil {
				return err
			}
			defer func() { _ = wiki.Close() }()

			srv, err := rpc.NewServer(rpc.ServerOptions{
				Identity:        wiki.home,
				Store:           wiki.store,
				TagRoot:         wiki.cfg.TagRoot(),
				ReadOnly:        wiki.cfg.ReadOnly,
				TagWriteTimeout: wiki.cfg.Tags.WriteLockTimeout,
				Logger:          logging.Default(),
			})
			if err != nil {
				return err
			}

			addr := wiki.cfg.Server.Listen
			if cmd.IsSet("listen") {
				addr = cmd.String("listen")
			}
			ln, err := net.Listen("tcp", addr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", addr, err)
			}
			fmt.Fprintln(out(cmd), ui.StatusSuccess(fmt.Sprintf("Serving %s on http://%s/%s",
				ui.Bold(wiki.home.DisplayName()), ln.Addr(), rpc.Path)))

			return serve(ctx, ln, srv)
		},
	}
}

// serve runs handler on ln until ctx is canceled, then shuts down gracefully.
func serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	httpSrv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	eg, gctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		if err := httpSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	eg.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()
		logging.Info("shutting down server")
		return httpSrv.Shutdown(shutdownCtx)
	})
	return eg.Wait()
}
