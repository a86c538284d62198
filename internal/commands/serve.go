package commands

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/billbox/internal/api"
	"github.com/cleared-dev/billbox/internal/logger"
)

const shutdownTimeout = 10 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the billbox HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := openProject(cmd.Context(), opts, ocrIfConfigured)
			if err != nil {
				return err
			}
			defer p.Close()

			if addr == "" {
				addr = p.Config().Server.Addr
			}
			gin.SetMode(gin.ReleaseMode)
			srv := &http.Server{
				Addr:              addr,
				Handler:           api.NewRouter(p.App, logger.WithComponent("api")),
				ReadHeaderTimeout: 10 * time.Second,
			}
			return runServer(cmd.Context(), srv, p)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")

	return cmd
}

// runServer serves until ctx is cancelled, then shuts down gracefully.
func runServer(ctx context.Context, srv *http.Server, p *project) error {
	errCh := make(chan error, 1)
	go func() {
		p.log.Info().Str("addr", srv.Addr).Msg("starting billbox API server")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serving: %w", err)
	case <-ctx.Done():
	}

	p.log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutting down: %w", err)
	}
	return nil
}
