package cmd

import (
	"fmt"
	"os"
	"os/signal"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Lists the courses of the current term",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		logger := log.WithField("app", "cli")
		out := cmd.OutOrStdout()

		orchestrator, err := newOrchestrator(logger)
		if err != nil {
			return err
		}
		store, err := newStore(logger)
		if err != nil {
			return err
		}
		p := newPrompter()
		p.out = out

		run, err := startRun(ctx, orchestrator, store, p, logger)
		if err != nil {
			return err
		}
		defer run.Close()

		fmt.Fprintf(out, "%s (%s)\n", run.Term.Name, run.Term.Code)
		for _, course := range run.Courses {
			fmt.Fprintf(out, "%10s  %s\n", course.ID, course.Name)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(coursesCmd)
}
