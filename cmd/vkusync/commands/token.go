package commands

import (
	"fmt"
	"os"
	"time"
	"vkusync-backend/internal/service"
	"vkusync-backend/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	tokenLabel *string
	tokenTtl   *time.Duration
)

func init() {
	tokenLabel = tokenIssueCmd.Flags().String("label", "", "A note on what the token is used for.")
	tokenTtl = tokenIssueCmd.Flags().Duration("ttl", 0, "How long the token stays valid, 0 never expires.")
	tokenCmd.AddCommand(tokenIssueCmd, tokenRevokeCmd)
	rootCmd.AddCommand(tokenCmd)
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manages the api tokens of the http server.",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue --owner <owner> [--label <label>] [--ttl <duration>]",
	Short: "Issues a new api token for an owner and prints it, it cannot be shown again.",
	Run: func(cmd *cobra.Command, args []string) {
		if *owner == "" {
			fmt.Fprintln(os.Stderr, "--owner is required to issue a token")
			os.Exit(1)
		}

		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		plain, token, err := service.IssueToken(cmd.Context(), vkusync.Records, vkusync.Time, *owner, *tokenLabel, *tokenTtl)
		if err != nil {
			serviceutil.Fatal("failed to issue token", err)
		}
		fmt.Println(plain)
		if token.ExpiresAt != nil {
			fmt.Fprintf(os.Stderr, "expires at %s\n", token.ExpiresAt.Format(time.RFC3339))
		}
	},
}

var tokenRevokeCmd = &cobra.Command{
	Use:   "revoke <token>",
	Short: "Revokes an api token.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		revoked, err := vkusync.Verifier.Revoke(cmd.Context(), args[0])
		if err != nil {
			serviceutil.Fatal("failed to revoke token", err)
		}
		if !revoked {
			fmt.Fprintln(os.Stderr, "no such token")
			os.Exit(1)
		}
		fmt.Println("token revoked")
	},
}
