package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/errors"
	"github.com/teranos/opsgate/logger"
	"github.com/teranos/opsgate/server"
	"github.com/teranos/opsgate/version"
)

// ServeCmd starts the HTTP server
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"server"},
	Short:   "Start the opsgate HTTP server",
	Long: `Start the HTTP server. Every registered operation is served at /{id};
system routes live under /_/ (health, operations, client.js, metrics).

The config file is watched: mail profile domains, disabled operations,
CORS origins and the client base URL apply without a restart.`,
	RunE: runServe,
}

var (
	servePort    int
	serveDevMode bool
	serveNoWatch bool
)

func init() {
	ServeCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to listen on (overrides server.port)")
	ServeCmd.Flags().BoolVar(&serveDevMode, "dev", false, "Enable development mode (permissive CORS)")
	ServeCmd.Flags().BoolVar(&serveNoWatch, "no-watch", false, "Do not reload when the config file changes")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}
	if serveDevMode {
		cfg.Server.DevMode = true
	}
	port := cfg.Server.Port
	if port <= 0 {
		port = am.DefaultServerPort
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, cfg, server.WithLogger(logger.ComponentLogger("server")))
	if err != nil {
		return errors.Wrap(err, "failed to create server")
	}
	if !serveNoWatch {
		srv.WatchConfig()
	}

	printBanner(cfg, srv, port)
	return srv.ListenAndServe(ctx, fmt.Sprintf(":%d", port))
}

func printBanner(cfg *am.Config, srv *server.Server, port int) {
	if logger.JSONOutput {
		return
	}
	pterm.DefaultHeader.WithFullWidth().Printf("opsgate %s", version.Get().Version)
	pterm.Info.Printf("Listening on :%d (%s)\n", port, cfg.GetBaseURL())
	pterm.Info.Printf("Operations: %d\n", srv.Registry().Len())

	caps := srv.Capabilities().List()
	if len(caps) == 0 {
		pterm.Warning.Println("No capabilities available: configure mail.profiles, streams.redis_url or workspace")
	} else {
		pterm.Info.Printf("Capabilities: %v\n", caps)
	}
	if cfg.Server.DevMode {
		pterm.Warning.Println("Development mode: CORS allows all methods and headers")
	}
	pterm.Println()
}
