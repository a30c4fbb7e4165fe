// ABOUTME: play subcommand
// ABOUTME: Plays one file on two devices with a progress view or JSON events
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sonicdeck/sonicdeck-go/internal/ui"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/decode"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

var playOpts struct {
	deviceA   string
	deviceB   string
	volume    float32
	trimStart uint64
	trimEnd   uint64
	noTUI     bool
}

var playCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Play a file on two output devices",
	Long: `Decode FILE and play it on device A and device B at the same time.

Devices are given by the IDs printed by "sonicdeck devices"; either one
defaults to the system default output. --trim-start and --trim-end select
a window in milliseconds.

When stdout is a terminal a progress view is shown (up/down change the
volume, q stops). Otherwise, or with --no-tui, events are printed as JSON
lines.`,
	Args: cobra.ExactArgs(1),
	RunE: runPlay,
}

func init() {
	rootCmd.AddCommand(playCmd)

	playCmd.Flags().StringVarP(&playOpts.deviceA, "device-a", "a", "", "Device ID for output A (default: system default)")
	playCmd.Flags().StringVarP(&playOpts.deviceB, "device-b", "b", "", "Device ID for output B (default: system default)")
	playCmd.Flags().Float32Var(&playOpts.volume, "volume", 1, "Volume from 0 to 1 (default: audio.default_volume)")
	playCmd.Flags().Uint64Var(&playOpts.trimStart, "trim-start", 0, "Start offset in milliseconds")
	playCmd.Flags().Uint64Var(&playOpts.trimEnd, "trim-end", 0, "End offset in milliseconds")
	playCmd.Flags().BoolVar(&playOpts.noTUI, "no-tui", false, "Print JSON events instead of the progress view")
}

func runPlay(cmd *cobra.Command, args []string) error {
	path := args[0]
	if !decode.Supported(path) {
		return fmt.Errorf("%w: %s (supported: %v)", decode.ErrUnsupportedFormat, path, decode.Extensions())
	}

	host, err := openHost()
	if err != nil {
		return err
	}
	defer host.Close()

	deviceA, deviceB, err := resolveDeviceFlags(host)
	if err != nil {
		return err
	}

	volume := cfg.Audio.DefaultVolume
	if cmd.Flags().Changed("volume") {
		volume = playOpts.volume
	}

	req := playback.Request{
		Path:    path,
		DeviceA: deviceA,
		DeviceB: deviceB,
		Volume:  playback.ClampVolume(volume),
	}
	if cmd.Flags().Changed("trim-start") {
		req.TrimStartMs = &playOpts.trimStart
	}
	if cmd.Flags().Changed("trim-end") {
		req.TrimEndMs = &playOpts.trimEnd
	}

	useTUI := !playOpts.noTUI && term.IsTerminal(int(os.Stdout.Fd()))

	var events ui.Events
	var notifier playback.Notifier
	done := make(chan playback.Event, 1)
	if useTUI {
		events = ui.NewEvents()
		notifier = events
	} else {
		notifier = jsonLines(cmd, done)
	}

	engine, err := playback.NewEngine(playback.Config{
		Host:         host,
		Provider:     newCache(),
		Notifier:     notifier,
		Builder:      newStreamBuilder(nil),
		TickInterval: cfg.Audio.TickInterval(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	id, err := engine.StartDualPlayback(req)
	if err != nil {
		return fmt.Errorf("failed to start playback: %w", err)
	}

	if useTUI {
		final, err := ui.Run(ui.NewModel(ui.Info{
			PlaybackID: id,
			Path:       path,
			DeviceA:    deviceA,
			DeviceB:    deviceB,
			Volume:     req.Volume,
		}, engine, events))
		if err != nil {
			return err
		}
		if final.Err() != "" {
			return errors.New(final.Err())
		}
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case e := <-done:
		return terminalError(e)
	case <-ctx.Done():
		logger.Info("interrupted, stopping playback", "playback_id", string(id))
		engine.Stop(id)
		return terminalError(<-done)
	}
}

// resolveDeviceFlags fills unset device flags with the default output
func resolveDeviceFlags(host output.Host) (string, string, error) {
	a, b := playOpts.deviceA, playOpts.deviceB
	if a != "" && b != "" {
		return a, b, nil
	}

	infos, err := output.List(host)
	if err != nil {
		return "", "", fmt.Errorf("failed to enumerate devices: %w", err)
	}

	def := ""
	for _, info := range infos {
		if info.IsDefault {
			def = info.ID
			break
		}
	}
	if def == "" {
		return "", "", errors.New("no default output device; pass --device-a and --device-b")
	}

	if a == "" {
		a = def
	}
	if b == "" {
		b = def
	}
	return a, b, nil
}

// jsonLines prints every event and forwards the terminal one to done
func jsonLines(cmd *cobra.Command, done chan<- playback.Event) playback.Notifier {
	enc := json.NewEncoder(cmd.OutOrStdout())
	return playback.NotifierFunc(func(e playback.Event) {
		if err := enc.Encode(e); err != nil {
			logger.Warn("failed to write event", "error", err)
		}
		if e.IsTerminal() {
			done <- e
		}
	})
}

// terminalError converts a failure event into a command error
func terminalError(e playback.Event) error {
	switch e.Type {
	case playback.EventDecodeError:
		return fmt.Errorf("decode failed: %s", e.Reason)
	case playback.EventPlaybackError:
		return fmt.Errorf("playback failed (%s): %s", e.Kind, e.Reason)
	}
	return nil
}
