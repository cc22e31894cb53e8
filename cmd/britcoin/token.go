package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmerrifield20/britcoin/internal/auth"
)

var (
	tokenSubject string
	tokenIssuer  string
	tokenTTL     time.Duration
	tokenScopes  []string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bridge token from the daemon's shared secret",
	Long: `token signs a bridge token locally with auth.secret ($BRITCOIN_AUTH_SECRET).
The issuer must match the daemon's auth.issuer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		secret := viper.GetString("auth.secret")
		if secret == "" {
			return fmt.Errorf("auth.secret is not set")
		}
		issuer, err := auth.NewTokenIssuer(secret, tokenIssuer, tokenTTL)
		if err != nil {
			return err
		}
		tok, err := issuer.Issue(tokenSubject, tokenScopes...)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "chat-bridge", "token subject, usually the bridge name")
	tokenCmd.Flags().StringVar(&tokenIssuer, "issuer", "britcoind", "issuer; must match the daemon's auth.issuer")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	tokenCmd.Flags().StringSliceVar(&tokenScopes, "scope", nil, "scopes to embed (repeatable)")
}
