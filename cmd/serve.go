package cmd

import (
	"os"
	"os/signal"
	"syscall"

	logginghelpers "github.com/Pjt727/autosign/data/logging-helpers"
	"github.com/Pjt727/autosign/server"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// serveCmd represents the serve command
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Runs the web front-end",
	Long:  `Runs the web front-end on listen_addr streaming the logs to every open page`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		broadcaster := logginghelpers.NewBroadcaster(log.GetLevel())
		log.AddHook(broadcaster)
		logger := log.WithField("app", "web")

		orchestrator, err := newOrchestrator(logger)
		if err != nil {
			return err
		}
		store, err := newStore(logger)
		if err != nil {
			return err
		}
		return server.Serve(ctx, server.Options{
			Addr:         cfg.ListenAddr,
			Orchestrator: orchestrator,
			Store:        store,
			Broadcaster:  broadcaster,
			Logger:       logger,
		})
	},
}

func init() {
	appCmd.AddCommand(serveCmd)
}
