package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/unkn0wn-root/reststudio/internal/api"
)

const shutdownGrace = 10 * time.Second

func newServeCmd(opts *options) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the JSON API for the browser front end",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from settings)")

	cmd.RunE = withApp(opts, func(a *app, _ []string) error {
		exec, err := a.Executor()
		if err != nil {
			return err
		}
		vs, _ := a.Vars()
		hist, _ := a.History()

		deps := api.Deps{
			Executor:           exec,
			Vars:               vs,
			History:            hist,
			Notifier:           a.notifier,
			Logger:             a.log,
			Locale:             a.settings.Locale,
			DefaultEnvironment: a.env(),
		}
		if a.settings.Server.Metrics {
			deps.Gatherer = a.Registry()
		}

		if addr == "" {
			addr = a.settings.Server.Addr
		}
		ln, err := net.Listen("tcp", addr)
		if err != nil {
			return err
		}
		srv := &http.Server{
			Handler:           api.NewRouter(deps),
			ReadHeaderTimeout: 10 * time.Second,
		}
		a.log.WithField("addr", ln.Addr().String()).Info("serving")
		return serve(a.ctx(), srv, ln)
	})
	return cmd
}

// serve runs srv until ctx is done, then drains in-flight requests.
func serve(ctx context.Context, srv *http.Server, ln net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
