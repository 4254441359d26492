package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gatehouse",
	Short: "Gatehouse is the session service behind the platform's login endpoints",
	Long: `Gatehouse owns the session lifecycle of the content-management platform:
login (create), keepalive (refresh), logout (delete), and the CSRF gate on
every mutating call. Configuration comes from GATEHOUSE_* environment
variables and an optional .env file.`,
}

// Execute runs the CLI and exits non-zero on error.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
