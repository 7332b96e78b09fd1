package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/conduit-lang/grt/internal/api"
)

// NewServeCommand creates the serve command
func NewServeCommand() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve classes and documents over HTTP",
		Long: `Start a read-only JSON API over the class registry and the stored documents.

Endpoints:
  GET /classes                   list classes
  GET /classes/{name}            members of a class
  GET /documents                 list stored documents
  GET /documents/{name}          serialized document
  GET /documents/{name}/tree     tree rows (?node=1.0&depth=2)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := loadEnvironment(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s, err := env.openStore(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = env.cfg.Server.Addr
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           api.New(env.registry, s, env.logger.Named("api")).Routes(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			return serve(ctx, srv, env.cfg.Server.ShutdownTimeout, env.logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default server.addr)")
	return cmd
}

// serve runs srv until ctx is done, then shuts it down gracefully
func serve(ctx context.Context, srv *http.Server, timeout time.Duration, logger *zap.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	logger.Info("shutting down")
	return srv.Shutdown(shutdownCtx)
}
