package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	crlog "sigs.k8s.io/controller-runtime/pkg/log"

	"github.com/yuriy-kovalchuk/yk-pdns-record/internal/api"
)

func newCmdServe() *cobra.Command {
	var cfg api.ServerConfig

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ensure operation over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := crlog.Log.WithName("serve")
			log.Info("starting yk-pdns-record", "version", Version)

			provider, err := buildProvider(cmd, log)
			if err != nil {
				return err
			}
			if cfg.AuthToken == "" {
				cfg.AuthToken = os.Getenv("YK_PDNS_RECORD_TOKEN")
			}

			srv := api.NewServer(cfg, crlog.Log.WithName("api"), provider)

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start() }()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				log.Info("shutting down", "signal", sig.String())
				srv.Shutdown()
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Listen, "listen", ":8080", "Address to listen on")
	cmd.Flags().StringVar(&cfg.AuthToken, "token", "", "Bearer token required on /v1 (env YK_PDNS_RECORD_TOKEN)")
	return cmd
}
