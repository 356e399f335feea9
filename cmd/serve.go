package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/roadcheck/internal/api"
	"github.com/sells-group/roadcheck/internal/config"
	"github.com/sells-group/roadcheck/internal/jobs"
)

const shutdownTimeout = 15 * time.Second

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the GPX analysis HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		c := *cfg
		if servePort != 0 {
			c.Server.Port = servePort
		}
		if err := c.Validate("serve"); err != nil {
			return err
		}

		return runServer(ctx, &c)
	},
}

// runServer serves the API until ctx is cancelled, then stops accepting
// requests, cancels running analyses, and waits for them to finish.
func runServer(ctx context.Context, c *config.Config) error {
	jobCtx, cancelJobs := context.WithCancel(context.Background())
	defer cancelJobs()

	tracker := jobs.NewTracker(jobCtx, jobs.NewStore())
	handler := api.NewServer(tracker, initAnalyzer(c), api.Options{
		AllowedOrigins: c.Server.AllowedOrigins,
		MaxUploadBytes: c.Server.MaxUploadBytes(),
	}).Router()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", c.Server.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		zap.L().Info("starting server", zap.Int("port", c.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	})

	// Graceful shutdown
	g.Go(func() error {
		<-gctx.Done()
		zap.L().Info("shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		err := srv.Shutdown(shutdownCtx)
		cancelJobs()
		tracker.Wait()
		if err != nil {
			return eris.Wrap(err, "server shutdown")
		}
		return nil
	})

	return g.Wait()
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
