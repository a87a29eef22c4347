package commands

import (
	"fmt"
	"io"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/codegen"
	"github.com/teranos/opsgate/errors"
)

// ClientCmd writes the generated JavaScript client
var ClientCmd = &cobra.Command{
	Use:   "client",
	Short: "Generate the JavaScript client",
	Long: `Generate the JavaScript client for the enabled operations. The token is
baked into the output, so treat the file as a secret.

Examples:
  opsgate client --token $TOKEN --out ops.js
  opsgate client --token $TOKEN --base-url https://ops.example.com > ops.js`,
	RunE: runClient,
}

var (
	clientToken   string
	clientOut     string
	clientBaseURL string
	clientGlobal  string
)

func init() {
	ClientCmd.Flags().StringVar(&clientToken, "token", "", "Bearer token to embed")
	ClientCmd.Flags().StringVarP(&clientOut, "out", "o", "", "Output file (default: stdout)")
	ClientCmd.Flags().StringVar(&clientBaseURL, "base-url", "", "Server URL (default: server.base_url)")
	ClientCmd.Flags().StringVar(&clientGlobal, "global", codegen.DefaultGlobalName, "Global the client is installed under")
}

func runClient(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	if clientToken == "" {
		pterm.Warning.Println("No --token given, the client will only reach public operations")
	}

	baseURL := clientBaseURL
	if baseURL == "" {
		baseURL = cfg.GetBaseURL()
	}

	if clientOut == "" {
		return writeClient(cmd.OutOrStdout(), cfg, codegen.Options{BaseURL: baseURL, Token: clientToken, GlobalName: clientGlobal})
	}

	f, err := os.OpenFile(clientOut, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return errors.Wrapf(err, "failed to create %s", clientOut)
	}
	if err := writeClient(f, cfg, codegen.Options{BaseURL: baseURL, Token: clientToken, GlobalName: clientGlobal}); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to write %s", clientOut)
	}
	pterm.Success.Printf("Client written to %s\n", clientOut)
	return nil
}

func writeClient(w io.Writer, cfg *am.Config, opts codegen.Options) error {
	descs, err := enabledOperations(cfg)
	if err != nil {
		return err
	}
	src, err := codegen.Generate(descs, opts)
	if err != nil {
		return errors.Wrap(err, "failed to generate client")
	}
	if _, err := w.Write(src); err != nil {
		return fmt.Errorf("failed to write client: %w", err)
	}
	return nil
}
