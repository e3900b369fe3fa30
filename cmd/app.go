package cmd

import (
	"github.com/spf13/cobra"
)

// appCmd represents the app command
var appCmd = &cobra.Command{
	Use:   "app",
	Short: "used to run the autosign web front-end",
	Long: `The autosign web front-end is a local json server with a single page
to log in, sign in and watch the logs (this command is not ran directly)`,
}

func init() {
	rootCmd.AddCommand(appCmd)
}
