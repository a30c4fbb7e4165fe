// ABOUTME: remote subcommands
// ABOUTME: Drive a running server over the control protocol
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/sonicdeck/sonicdeck-go/internal/client"
	"github.com/sonicdeck/sonicdeck-go/internal/protocol"
	"github.com/sonicdeck/sonicdeck-go/internal/ui"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

const remoteCallTimeout = 30 * time.Second

var remoteOpts struct {
	server string

	deviceA   string
	deviceB   string
	volume    float32
	trimStart uint64
	trimEnd   uint64
	noTUI     bool
	detach    bool

	buckets int
}

var remoteCmd = &cobra.Command{
	Use:   "remote",
	Short: "Control a running sonicdeck server",
	Long: `Send commands to a server started with "sonicdeck serve".

--server takes host:port and defaults to this machine on the configured
server port. Use "sonicdeck discover" to find servers on the network.`,
}

var remoteDevicesCmd = &cobra.Command{
	Use:   "devices",
	Short: "List the server's output devices",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(cmd, protocol.CommandDevicesList, nil)
	},
}

var remotePlayCmd = &cobra.Command{
	Use:   "play FILE",
	Short: "Start a dual playback on the server",
	Long: `Start playing FILE, a path on the server, on two of its devices.

Unset devices default to the server's default output. The command follows
the playback until it ends unless --detach is given.`,
	Args: cobra.ExactArgs(1),
	RunE: runRemotePlay,
}

var remoteStopCmd = &cobra.Command{
	Use:   "stop PLAYBACK_ID",
	Short: "Stop one playback",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(cmd, protocol.CommandPlaybackStop, protocol.PlaybackTarget{PlaybackID: playback.PlaybackID(args[0])})
	},
}

var remoteStopAllCmd = &cobra.Command{
	Use:   "stop-all",
	Short: "Stop every playback",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(cmd, protocol.CommandPlaybackStopAll, nil)
	},
}

var remoteVolumeCmd = &cobra.Command{
	Use:   "volume PLAYBACK_ID LEVEL",
	Short: "Set a playback's volume (0 to 1)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		level, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return fmt.Errorf("invalid volume %q: %w", args[1], err)
		}
		return remoteCall(cmd, protocol.CommandPlaybackVolume, protocol.SetVolume{
			PlaybackID: playback.PlaybackID(args[0]),
			Volume:     float32(level),
		})
	},
}

var remoteCacheCmd = &cobra.Command{
	Use:       "cache [stats|clear]",
	Short:     "Show or clear the server's decoded audio cache",
	Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"stats", "clear"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 && args[0] == "clear" {
			return remoteCall(cmd, protocol.CommandCacheClear, nil)
		}
		return remoteCall(cmd, protocol.CommandCacheStats, nil)
	},
}

var remoteWaveformCmd = &cobra.Command{
	Use:   "waveform FILE",
	Short: "Print peak levels for a file on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return remoteCall(cmd, protocol.CommandAudioWaveform, protocol.WaveformRequest{
			Path:    args[0],
			Buckets: remoteOpts.buckets,
		})
	},
}

func init() {
	rootCmd.AddCommand(remoteCmd)
	remoteCmd.AddCommand(remoteDevicesCmd, remotePlayCmd, remoteStopCmd, remoteStopAllCmd,
		remoteVolumeCmd, remoteCacheCmd, remoteWaveformCmd)

	remoteCmd.PersistentFlags().StringVarP(&remoteOpts.server, "server", "s", "", "Server host:port (default: localhost and server.port)")

	f := remotePlayCmd.Flags()
	f.StringVarP(&remoteOpts.deviceA, "device-a", "a", "", "Device ID for output A (default: server default)")
	f.StringVarP(&remoteOpts.deviceB, "device-b", "b", "", "Device ID for output B (default: server default)")
	f.Float32Var(&remoteOpts.volume, "volume", 1, "Volume from 0 to 1 (default: the server's default volume)")
	f.Uint64Var(&remoteOpts.trimStart, "trim-start", 0, "Start offset in milliseconds")
	f.Uint64Var(&remoteOpts.trimEnd, "trim-end", 0, "End offset in milliseconds")
	f.BoolVar(&remoteOpts.noTUI, "no-tui", false, "Print JSON events instead of the progress view")
	f.BoolVar(&remoteOpts.detach, "detach", false, "Return once the playback has started")

	remoteWaveformCmd.Flags().IntVar(&remoteOpts.buckets, "buckets", 0, "Number of peaks (default: server default)")
}

// serverAddr returns the --server value or the local configured port
func serverAddr() string {
	if remoteOpts.server != "" {
		return remoteOpts.server
	}
	return net.JoinHostPort("localhost", strconv.Itoa(cfg.Server.Port))
}

func connect(ctx context.Context) (*client.Client, error) {
	c := client.NewClient(client.Config{ServerAddr: serverAddr(), Logger: logger})
	if err := c.Connect(ctx); err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", serverAddr(), err)
	}
	return c, nil
}

// remoteCall runs one command and prints its result as JSON
func remoteCall(cmd *cobra.Command, command string, payload any) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), remoteCallTimeout)
	defer cancel()

	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	var result json.RawMessage
	if err := c.Call(ctx, command, payload, &result); err != nil {
		return err
	}
	return printJSON(cmd, result)
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runRemotePlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := connect(ctx)
	if err != nil {
		return err
	}
	defer c.Close()

	callCtx, cancel := context.WithTimeout(ctx, remoteCallTimeout)
	defer cancel()

	deviceA, deviceB, err := remoteDevices(callCtx, c)
	if err != nil {
		return err
	}

	req := protocol.StartPlayback{Path: args[0], DeviceA: deviceA, DeviceB: deviceB}
	if cmd.Flags().Changed("volume") {
		req.Volume = &remoteOpts.volume
	}
	if cmd.Flags().Changed("trim-start") {
		req.TrimStartMs = &remoteOpts.trimStart
	}
	if cmd.Flags().Changed("trim-end") {
		req.TrimEndMs = &remoteOpts.trimEnd
	}

	var started protocol.StartPlaybackResult
	if err := c.Call(callCtx, protocol.CommandPlaybackStart, req, &started); err != nil {
		return err
	}
	id := started.PlaybackID

	if remoteOpts.detach {
		return printJSON(cmd, started)
	}

	if !remoteOpts.noTUI && term.IsTerminal(int(os.Stdout.Fd())) {
		// Without --volume the server applies its own default; show ours.
		volume := cfg.Audio.DefaultVolume
		if req.Volume != nil {
			volume = *req.Volume
		}
		final, err := ui.Run(ui.NewModel(ui.Info{
			PlaybackID: id,
			Path:       req.Path,
			DeviceA:    deviceA,
			DeviceB:    deviceB,
			Volume:     volume,
		}, &remoteControl{c: c, ctx: ctx}, c.Events()))
		if err != nil {
			return err
		}
		if final.Err() != "" {
			return errors.New(final.Err())
		}
		return nil
	}

	return followRemote(ctx, cmd, c, id)
}

// remoteDevices fills unset device flags with the server's default output
func remoteDevices(ctx context.Context, c *client.Client) (string, string, error) {
	a, b := remoteOpts.deviceA, remoteOpts.deviceB
	if a != "" && b != "" {
		return a, b, nil
	}

	var list struct {
		Devices []output.DeviceInfo `json:"devices"`
	}
	if err := c.Call(ctx, protocol.CommandDevicesList, nil, &list); err != nil {
		return "", "", err
	}

	def := defaultDeviceID(list.Devices)
	if def == "" {
		return "", "", errors.New("server has no default output device; pass --device-a and --device-b")
	}
	if a == "" {
		a = def
	}
	if b == "" {
		b = def
	}
	return a, b, nil
}

func defaultDeviceID(infos []output.DeviceInfo) string {
	for _, info := range infos {
		if info.IsDefault {
			return info.ID
		}
	}
	return ""
}

// followRemote prints the playback's events as JSON lines until it ends.
// An interrupt stops the playback on the server.
func followRemote(ctx context.Context, cmd *cobra.Command, c *client.Client, id playback.PlaybackID) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	events := c.Events()
	interrupted := ctx.Done()

	for {
		select {
		case e, ok := <-events:
			if !ok {
				return client.ErrClosed
			}
			if e.PlaybackID != id {
				continue
			}
			if err := enc.Encode(e); err != nil {
				logger.Warn("failed to write event", "error", err)
			}
			if e.IsTerminal() {
				return terminalError(e)
			}
		case <-interrupted:
			interrupted = nil
			logger.Info("interrupted, stopping playback", "playback_id", string(id))
			stopCtx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
			err := c.Call(stopCtx, protocol.CommandPlaybackStop, protocol.PlaybackTarget{PlaybackID: id}, nil)
			cancel()
			if err != nil {
				return err
			}
		}
	}
}

// remoteControl drives a server playback from the progress view
type remoteControl struct {
	c   *client.Client
	ctx context.Context
}

func (r *remoteControl) SetVolume(id playback.PlaybackID, v float32) bool {
	ctx, cancel := context.WithTimeout(r.ctx, remoteCallTimeout)
	defer cancel()
	return r.c.Call(ctx, protocol.CommandPlaybackVolume, protocol.SetVolume{PlaybackID: id, Volume: v}, nil) == nil
}

func (r *remoteControl) Stop(id playback.PlaybackID) bool {
	ctx, cancel := context.WithTimeout(context.Background(), remoteCallTimeout)
	defer cancel()
	return r.c.Call(ctx, protocol.CommandPlaybackStop, protocol.PlaybackTarget{PlaybackID: id}, nil) == nil
}
