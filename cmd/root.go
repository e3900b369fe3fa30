package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/Pjt727/autosign/config"
	"github.com/Pjt727/autosign/signin/services"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	envFileFlag    string
	configFileFlag string
	logLevelFlag   string

	// loaded before any command runs
	cfg *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "autosign",
	Short: "autosign signs you in to your BUAA iClass classes",
	Long: `autosign logs in to the BUAA SSO, finds the class of a course that is in
progress or about to begin and signs you in. When there is none it offers the
classes you have not signed in to as makeups.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(config.LoadOptions{
			EnvFile:    envFileFlag,
			ConfigFile: configFileFlag,
		})
		if err != nil {
			return err
		}
		if logLevelFlag != "" {
			loaded.LogLevel = logLevelFlag
		}
		log.SetLevel(loaded.Level())
		cfg = loaded
		return nil
	},
}

func Execute() {
	err := rootCmd.Execute()
	if errors.Is(err, errCancelled) {
		return
	}
	if err != nil {
		log.WithError(err).Debug("Command failed")
		fmt.Fprintln(os.Stderr, services.Describe(err))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFileFlag, "env-file", ".env", ".env file to load, skipped when missing")
	rootCmd.PersistentFlags().StringVar(&configFileFlag, "config", "", "config file, defaults to autosign.yaml in the working or user config directory")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "overrides log_level e.i. debug or trace")
}
