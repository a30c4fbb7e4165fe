// ABOUTME: Root command and shared CLI setup
// ABOUTME: Loads config, builds the logger and constructs audio collaborators
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/sonicdeck/sonicdeck-go/internal/cache"
	"github.com/sonicdeck/sonicdeck-go/internal/config"
	"github.com/sonicdeck/sonicdeck-go/internal/version"
	"github.com/sonicdeck/sonicdeck-go/pkg/audio/output"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
		backend    string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sonicdeck",
	Short: "Play one audio file on two output devices at once",
	Long: `sonicdeck plays a decoded audio file simultaneously on two output
devices, each stream rendered at the device's own sample rate, channel
count and sample format.

Use "sonicdeck play" for a single playback with a progress view, or
"sonicdeck serve" to control playbacks over a WebSocket connection.`,
	Version:       version.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if globalOpts.backend != "" {
			cfg.Audio.Backend = globalOpts.backend
			if err := cfg.Audio.Validate(); err != nil {
				return fmt.Errorf("invalid --backend: %w", err)
			}
		}

		logger = cfg.Logging.NewLogger(globalOpts.verbose)
		slog.SetDefault(logger)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file, YAML or .toml (default: ~/.config/sonicdeck/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&globalOpts.backend, "backend", "",
		"Audio backend: malgo, oto or portaudio (overrides config)")
}

// openHost creates the configured audio backend
func openHost() (output.Host, error) {
	host, err := output.NewHost(cfg.Audio.Backend, output.Options{
		OtoSampleRate: cfg.Audio.OtoSampleRate,
		OtoChannels:   cfg.Audio.OtoChannels,
		Logger:        logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open %s backend: %w", cfg.Audio.Backend, err)
	}
	return host, nil
}

// newCache creates the decoded audio cache from config
func newCache() *cache.Cache {
	return cache.New(cache.Options{
		MaxBytes: cfg.Cache.MaxBytes(),
		Logger:   logger,
	})
}

// newStreamBuilder applies the configured buffer ladder
func newStreamBuilder(observer playback.StreamObserver) *playback.StreamBuilder {
	b := playback.NewStreamBuilder(logger)
	b.PreferredBufferFrames = cfg.Audio.PreferredBufferFrames
	b.FallbackBufferFrames = append([]int(nil), cfg.Audio.FallbackBufferFrames...)
	b.Observer = observer
	return b
}
