package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/nando-os/ghostpbm/eth"
	"github.com/nando-os/ghostpbm/httpapi"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var listenAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the gateway operations over HTTP",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		client, cfg, err := loadClient()
		if err != nil {
			return err
		}
		defer client.Close()

		// Reads still work without a key; only the writes need a sender.
		if sender, err := eth.SenderAccount(cfg); err != nil {
			logrus.WithError(err).Warn("No signing account; pay and fund requests will fail")
		} else {
			logrus.WithFields(logrus.Fields{
				"sender":   sender.Address.Hex(),
				"chain_id": sender.ChainId,
			}).Info("Signing account loaded")
		}

		agg, err := newAggregator(cfg)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		server := httpapi.NewServer(client, agg, cfg.ChainID(), logrus.StandardLogger())
		return server.ListenAndServe(ctx, listenAddr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "listen address")
}
