// ABOUTME: serve subcommand
// ABOUTME: Runs the playback engine behind the WebSocket control server
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sonicdeck/sonicdeck-go/internal/metrics"
	"github.com/sonicdeck/sonicdeck-go/internal/server"
	"github.com/sonicdeck/sonicdeck-go/pkg/playback"
)

var serveOpts struct {
	address string
	port    int
	name    string
	noMDNS  bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the WebSocket control server",
	Long: `Run a control server that accepts playback commands over WebSocket at
/control, serves Prometheus metrics at /metrics and a health check at
/healthz. The server is advertised over mDNS as _sonicdeck._tcp unless
disabled.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveOpts.address, "address", "", "Listen address (default: server.address)")
	serveCmd.Flags().IntVarP(&serveOpts.port, "port", "p", 0, "Listen port (default: server.port)")
	serveCmd.Flags().StringVar(&serveOpts.name, "name", "", "Advertised server name (default: server.name)")
	serveCmd.Flags().BoolVar(&serveOpts.noMDNS, "no-mdns", false, "Disable mDNS advertisement")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveOpts.address != "" {
		cfg.Server.Address = serveOpts.address
	}
	if serveOpts.port != 0 {
		cfg.Server.Port = serveOpts.port
	}
	if serveOpts.name != "" {
		cfg.Server.Name = serveOpts.name
	}
	if serveOpts.noMDNS {
		cfg.Server.MDNS = false
	}
	if err := cfg.Server.Validate(); err != nil {
		return err
	}

	host, err := openHost()
	if err != nil {
		return err
	}
	defer host.Close()

	audioCache := newCache()
	if cfg.Cache.Watch {
		if err := audioCache.Watch(); err != nil {
			logger.Warn("cache file watching disabled", "error", err)
		}
	}
	defer audioCache.Close()

	m := metrics.New()
	m.RegisterCache(audioCache)

	srv := server.New(server.Config{
		Address:       cfg.Server.Address,
		Port:          cfg.Server.Port,
		Name:          cfg.Server.Name,
		EnableMDNS:    cfg.Server.MDNS,
		DefaultVolume: cfg.Audio.DefaultVolume,
		Cache:         audioCache,
		Metrics:       m,
		Logger:        logger,
	})

	engine, err := playback.NewEngine(playback.Config{
		Host:         host,
		Provider:     audioCache,
		Notifier:     playback.MultiNotifier{srv, m},
		Builder:      newStreamBuilder(m),
		TickInterval: cfg.Audio.TickInterval(),
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	defer engine.Close()
	srv.SetEngine(engine)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		srv.Stop()
	}()

	return srv.Start()
}
