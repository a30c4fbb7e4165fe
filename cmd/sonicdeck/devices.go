// ABOUTME: devices subcommand
// ABOUTME: Lists output devices of the configured backend as a table or JSON
package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
)

var devicesOpts struct {
	json bool
}

var devicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List audio output devices",
	Long: `List the output devices of the configured backend.

The ID column is what --device-a and --device-b expect. IDs are positions
in the backend's enumeration and may change when devices are plugged in or
removed.`,
	RunE: runDevices,
}

func init() {
	rootCmd.AddCommand(devicesCmd)

	devicesCmd.Flags().BoolVar(&devicesOpts.json, "json", false, "Output as JSON")
}

type deviceRow struct {
	output.DeviceInfo
	Config string `json:"config,omitempty"`
}

func runDevices(cmd *cobra.Command, args []string) error {
	host, err := openHost()
	if err != nil {
		return err
	}
	defer host.Close()

	devices, err := host.Devices()
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}
	infos, err := output.List(host)
	if err != nil {
		return fmt.Errorf("failed to enumerate devices: %w", err)
	}

	rows := make([]deviceRow, len(infos))
	for i, info := range infos {
		rows[i] = deviceRow{DeviceInfo: info}
		if i < len(devices) {
			if dc, err := devices[i].DefaultConfig(); err == nil {
				rows[i].Config = fmt.Sprintf("%dHz/%dch/%s", dc.SampleRate, dc.Channels, dc.Format)
			} else {
				logger.Debug("failed to query device config", "device", info.Name, "error", err)
			}
		}
	}

	out := cmd.OutOrStdout()
	if devicesOpts.json {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintf(out, "No output devices found (backend: %s)\n", host.Name())
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDEFAULT\tCONFIG\tNAME")
	for _, r := range rows {
		def := ""
		if r.IsDefault {
			def = "*"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.ID, def, r.Config, r.Name)
	}
	return w.Flush()
}
