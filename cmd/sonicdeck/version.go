// ABOUTME: version subcommand
// ABOUTME: Prints build and runtime version information
package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/sonicdeck/sonicdeck-go/internal/version"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	// Skip config loading so version works with a broken config
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "%s (%s, %s/%s)\n",
			version.String(), runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
