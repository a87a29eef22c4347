package commands

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/teranos/opsgate/am"
	"github.com/teranos/opsgate/auth"
	"github.com/teranos/opsgate/errors"
)

// TokenCmd mints a bearer token
var TokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token",
	Long: `Mint a bearer token signed with auth.jwt_secret. The server must run with
the same secret (OPSGATE_JWT_SECRET) for the token to verify.`,
	RunE: runToken,
}

var (
	tokenEmail  string
	tokenUserID string
)

func init() {
	TokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim (the identity operations see)")
	TokenCmd.Flags().StringVar(&tokenUserID, "uid", "", "User id claim")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := am.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load config")
	}
	manager, err := auth.NewJWTManager(&cfg.Auth)
	if err != nil {
		return err
	}
	if manager.GeneratedSecret() {
		return errors.WithHint(
			errors.New("auth.jwt_secret is not configured"),
			"set OPSGATE_JWT_SECRET so the server can verify the token")
	}

	token, err := manager.GenerateToken(&auth.Claims{UserID: tokenUserID, Email: tokenEmail})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	pterm.Info.Printf("Expires in %s\n", manager.TokenExpiry())
	return nil
}
