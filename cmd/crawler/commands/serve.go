package commands

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/user/odds-crawler/internal/delivery/http/handler"
	"github.com/user/odds-crawler/internal/delivery/http/router"
	"github.com/user/odds-crawler/internal/repository"
)

var (
	serveWork         bool
	serveWorkInterval time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve [--work]",
	Short: "Serves the status API and metrics, optionally draining the date queue in the background.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, serveWork)
		if err != nil {
			return err
		}
		defer a.Close()

		h := handler.NewHandler(a.dates, a.log)
		server := &http.Server{
			Addr:         ":" + a.cfg.ServerPort,
			Handler:      router.New(h, a.registry, a.metrics, a.log),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 70 * time.Second,
			IdleTimeout:  120 * time.Second,
		}

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			a.log.Info("Starting server", "port", a.cfg.ServerPort)
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
		if serveWork {
			g.Go(func() error { return a.work(ctx) })
		}
		return exitErr(g.Wait())
	},
}

// work drains the queue, then polls it every serveWorkInterval. A fatal
// run condition stops the worker and with it the server.
func (a *app) work(ctx context.Context) error {
	ticker := time.NewTicker(serveWorkInterval)
	defer ticker.Stop()
	for {
		if _, err := a.orchestrator.RunQueue(ctx); err != nil {
			if errors.Is(err, repository.ErrRunFatal) {
				a.log.Error("Queue worker stopped", "error", err)
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("Queue worker pass failed", "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func init() {
	serveCmd.Flags().BoolVar(&serveWork, "work", false, "Also crawl queued dates in the background.")
	serveCmd.Flags().DurationVar(&serveWorkInterval, "work-interval", 30*time.Second, "How often the worker checks an empty queue.")
	rootCmd.AddCommand(serveCmd)
}
