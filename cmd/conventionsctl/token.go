package main

import (
	"fmt"
	"strings"

	"github.com/diewo77/conventions/auth"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token <actor>",
	Short: "Mint a signed operator session",
	Long: `Print a session value for actor, signed with SESSION_SECRET. Send it as
"Authorization: Session <value>" or as the "session" cookie.`,
	Example: `  curl -H "Authorization: Session $(conventionsctl token ops@example.com)" localhost:8080/session`,
	Args:    cobra.ExactArgs(1),
	RunE:    runToken,
}

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().Duration("ttl", 0, "Session lifetime (default: SESSION_TTL)")
}

func runToken(cmd *cobra.Command, args []string) error {
	actor := strings.TrimSpace(args[0])
	if actor == "" {
		return fmt.Errorf("actor must not be blank")
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")
	if ttl <= 0 {
		ttl = cfg.Auth.SessionTTL
	}
	fmt.Fprintln(cmd.OutOrStdout(), auth.NewSigner(cfg.Auth.SessionSecret, ttl).Sign(actor))
	return nil
}
