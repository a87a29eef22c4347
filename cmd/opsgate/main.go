package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/cmd/opsgate/commands"
	"github.com/teranos/opsgate/logger"
)

var rootCmd = &cobra.Command{
	Use:   "opsgate",
	Short: "opsgate - schema-validated operations over HTTP",
	Long: `opsgate - schema-validated operations over HTTP.

opsgate serves a registry of named operations. Queries are GET requests,
commands are POST requests, and every request is authenticated, gated on
the capabilities it needs and validated against the operation schema.

Available commands:
  serve      - Start the HTTP server
  operations - List registered operations
  client     - Generate the JavaScript client
  token      - Mint a bearer token
  am         - Show and validate configuration ("I am")
  version    - Show version information

Examples:
  opsgate serve                                 # Start on server.port
  opsgate token --email ada@example.com         # Mint a token
  opsgate client --token $TOKEN --out ops.js    # Write the client`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// 'am' output must stay clean, and a broken config is its to report
		if cmd.Parent() != nil && cmd.Parent().Name() == "am" {
			return nil
		}
		jsonOutput, level := false, "info"
		if cfg, err := am.Load(); err == nil {
			jsonOutput, level = cfg.Log.JSON, cfg.Log.Level
		}
		if verbose, _ := cmd.Flags().GetCount("verbose"); verbose > 0 {
			level = "debug"
		}
		if err := logger.Initialize(jsonOutput, level); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Cleanup()
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity")

	rootCmd.AddCommand(commands.ServeCmd)
	rootCmd.AddCommand(commands.OperationsCmd)
	rootCmd.AddCommand(commands.ClientCmd)
	rootCmd.AddCommand(commands.TokenCmd)
	rootCmd.AddCommand(commands.AmCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
