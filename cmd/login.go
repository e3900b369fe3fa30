package cmd

import (
	"context"
	"fmt"

	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	usernameFlag string
	passwordFlag string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Checks and remembers your login",
	Long:  `defaults to interactive but can take the student id and password with flags`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
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

		creds := services.Credentials{Username: usernameFlag, Password: passwordFlag}
		if creds.Empty() {
			p := newPrompter()
			p.out = out
			creds, err = p.credentials(creds)
			if err != nil {
				return err
			}
		}

		run, err := orchestrator.Start(ctx, creds)
		if err != nil {
			return err
		}
		run.Close()
		if err := store.Save(creds); err != nil {
			return err
		}
		fmt.Fprintf(out, "Logged in as %s, saved to %s\n", run.Profile.DisplayName, store.Path())
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forgets your login",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := newStore(log.WithField("app", "cli"))
		if err != nil {
			return err
		}
		if err := store.Delete(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed", store.Path())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	loginCmd.Flags().StringVarP(&usernameFlag, "username", "u", "", "student id")
	loginCmd.Flags().StringVarP(&passwordFlag, "password", "p", "", "password")
}
