// ABOUTME: discover subcommand
// ABOUTME: Browses mDNS for control servers and prints their URLs
package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/sonicdeck/sonicdeck-go/internal/discovery"
)

var discoverOpts struct {
	timeout time.Duration
}

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Find control servers on the local network",
	RunE:  runDiscover,
}

func init() {
	rootCmd.AddCommand(discoverCmd)

	discoverCmd.Flags().DurationVarP(&discoverOpts.timeout, "timeout", "t", 5*time.Second, "How long to browse")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	mgr := discovery.NewManager(discovery.Config{Logger: logger})
	mgr.Browse()
	defer mgr.Stop()

	out := cmd.OutOrStdout()
	seen := make(map[string]bool)
	deadline := time.After(discoverOpts.timeout)

	for {
		select {
		case s := <-mgr.Servers():
			url := s.URL()
			if seen[url] {
				continue
			}
			seen[url] = true
			fmt.Fprintf(out, "%s\t%s\n", s.Name, url)
		case <-deadline:
			if len(seen) == 0 {
				fmt.Fprintln(out, "No servers found")
			}
			return nil
		}
	}
}
