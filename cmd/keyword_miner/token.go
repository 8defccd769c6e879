package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/server"
)

var tokenAccount string

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a bearer token for an account (development)",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVarP(&tokenAccount, "account", "a", "", "Account ID (required)")
	if err := tokenCmd.MarkFlagRequired("account"); err != nil {
		panic(fmt.Sprintf("failed to mark account flag as required: %v", err))
	}
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(tokenAccount)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	jwtConfig, err := config.NewJWTConfig(cfg.JWT)
	if err != nil {
		return err
	}
	token, err := server.NewJWTService(jwtConfig).GenerateToken(accountID)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
