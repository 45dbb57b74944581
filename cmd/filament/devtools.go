package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/filament-dev/filament/pkg/devtools"
	"github.com/filament-dev/filament/pkg/filament"
)

func devtoolsCmd() *cobra.Command {
	var (
		addr string
		demo bool
	)

	cmd := &cobra.Command{
		Use:   "devtools",
		Short: "Serve the live engine inspector",
		Long: `Serves the engine inspector over HTTP:

  GET /healthz  liveness probe
  GET /stats    JSON snapshot of engine counters
  GET /events   WebSocket stream of track/trigger/flush/run events

The inspector observes whatever engine activity happens in this process;
--demo drives a small synthetic graph so there is something to watch.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devtools.NewServer()
			srv.Attach()
			defer srv.Close()

			httpSrv := &http.Server{
				Addr:    addr,
				Handler: srv.Handler(),
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			if demo {
				stopDemo := startDemo(ctx)
				defer stopDemo()
			}

			errCh := make(chan error, 1)
			go func() {
				errCh <- httpSrv.ListenAndServe()
			}()
			info("inspector listening on %s", addr)

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "localhost:6080", "listen address")
	cmd.Flags().BoolVar(&demo, "demo", false, "drive a synthetic graph for demonstration")
	return cmd
}

// startDemo writes a counter signal through a small memo chain a few
// times per second until ctx is done.
func startDemo(ctx context.Context) func() {
	counter := filament.NewSignal(0)
	doubled := filament.NewMemo(func() int { return counter.Get() * 2 })
	stop := filament.MustRunEffect(func() {
		doubled.Get()
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				counter.Update(func(v int) int { return v + 1 })
			}
		}
	}()

	return func() {
		<-done
		stop()
		doubled.Dispose()
	}
}
