package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/josh-kwaku/opsledger/internal/auth"
	"github.com/josh-kwaku/opsledger/internal/config"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("actor", "", "Actor reference placed in the sub claim")
	tokenCmd.Flags().String("name", "", "Display name")
	tokenCmd.Flags().Duration("ttl", 24*time.Hour, "Token lifetime")
	_ = tokenCmd.MarkFlagRequired("actor")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for local testing",
	Long: `Mint a bearer token signed with JWT_SECRET. The API trusts the sub
claim as the acting employee; issue tokens from your identity provider in
production.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		actor, _ := cmd.Flags().GetString("actor")
		name, _ := cmd.Flags().GetString("name")
		ttl, _ := cmd.Flags().GetDuration("ttl")

		token, err := auth.GenerateToken(actor, name, cfg.JWTSecret, ttl)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}
