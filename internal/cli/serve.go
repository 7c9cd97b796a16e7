package cli

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/raysh454/rankdesk/internal/logging"
)

const shutdownTimeout = 15 * time.Second

func newServeCommand(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := root.open(cmd)
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Config.ValidateServe(); err != nil {
				return err
			}

			srv, err := a.NewServer(cmd.Context())
			if err != nil {
				return err
			}
			httpSrv := srv.HTTPServer()

			errCh := make(chan error, 1)
			go func() {
				a.Logger.Info("listening", logging.F("addr", httpSrv.Addr))
				errCh <- httpSrv.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-cmd.Context().Done():
			}

			a.Logger.Info("shutting down")
			ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), shutdownTimeout)
			defer cancel()
			return httpSrv.Shutdown(ctx)
		},
	}
}
