package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/octobees/turmeric-buyers/internal/auth"
)

var (
	tokenSubject string
	tokenRole    string
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint an API token signed with the configured secret",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tokenRole != auth.RoleOperator && tokenRole != auth.RoleViewer {
			return fmt.Errorf("unknown role %q", tokenRole)
		}
		manager := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
		token, err := manager.GenerateToken(tokenSubject, tokenRole)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password <password>",
	Short: "Print a bcrypt hash for auth.operators[].password_hash",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := auth.HashPassword(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "", "operator email or service name")
	tokenCmd.Flags().StringVar(&tokenRole, "role", auth.RoleOperator, "operator or viewer")
	_ = tokenCmd.MarkFlagRequired("subject")
	rootCmd.AddCommand(tokenCmd, hashPasswordCmd)
}
