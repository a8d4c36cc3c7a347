package main

import (
	"context"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/propval/estimo/pkg/errors"
	"github.com/propval/estimo/pkg/log"
	"github.com/propval/estimo/server"
	"github.com/propval/estimo/session"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		models string
		addr   string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := a.config()
			if err != nil {
				return err
			}
			s, err := session.New(cfg)
			if err != nil {
				return err
			}
			if err := s.Load(models); err != nil {
				return err
			}

			srv := &http.Server{
				Addr:              addr,
				Handler:           server.NewRouter(s),
				ReadHeaderTimeout: 5 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()
			log.GetLoggerWithName("server").Info("Listening",
				"http.addr", addr,
				"model.version", s.Version(),
			)

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdown)
		},
	}
	cmd.Flags().StringVarP(&models, "models", "m", "models_saved", "directory holding rf_model.pb and knn_model.pb")
	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	return cmd
}
