package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/keyword-miner/internal/config"
	"github.com/jonathan/keyword-miner/internal/db"
)

const maxPrefixAttempts = 3

var (
	apikeyAccount string
	apikeyName    string
	apikeyPrefix  string
)

var apikeyCmd = &cobra.Command{
	Use:   "apikey",
	Short: "Manage API keys",
}

var apikeyCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Issue a new API key; the full key is printed once",
	RunE:  runAPIKeyCreate,
}

var apikeyRevokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke an API key by prefix",
	RunE:  runAPIKeyRevoke,
}

func init() {
	apikeyCmd.PersistentFlags().StringVarP(&apikeyAccount, "account", "a", "", "Account ID (required)")
	if err := apikeyCmd.MarkPersistentFlagRequired("account"); err != nil {
		panic(fmt.Sprintf("failed to mark account flag as required: %v", err))
	}
	apikeyCreateCmd.Flags().StringVar(&apikeyName, "name", "default", "Label for the key")
	apikeyRevokeCmd.Flags().StringVar(&apikeyPrefix, "prefix", "", "Key prefix (required)")
	if err := apikeyRevokeCmd.MarkFlagRequired("prefix"); err != nil {
		panic(fmt.Sprintf("failed to mark prefix flag as required: %v", err))
	}

	apikeyCmd.AddCommand(apikeyCreateCmd, apikeyRevokeCmd)
	rootCmd.AddCommand(apikeyCmd)
}

func runAPIKeyCreate(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(apikeyAccount)
	if err != nil {
		return err
	}

	cfg, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	keyConfig, err := config.NewAPIKeyConfig(cfg.APIKey)
	if err != nil {
		return err
	}

	for attempt := 0; attempt < maxPrefixAttempts; attempt++ {
		key, prefix, secret, err := config.GenerateAPIKey()
		if err != nil {
			return err
		}
		hash, err := keyConfig.HashSecret(secret)
		if err != nil {
			return err
		}
		_, err = database.CreateAPIKey(cmd.Context(), accountID, prefix, hash, apikeyName)
		if errors.Is(err, db.ErrDuplicatePrefix) {
			continue
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), key)
		return nil
	}
	return fmt.Errorf("could not allocate a unique key prefix after %d attempts", maxPrefixAttempts)
}

func runAPIKeyRevoke(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(apikeyAccount)
	if err != nil {
		return err
	}
	_, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.RevokeAPIKey(cmd.Context(), accountID, apikeyPrefix); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "revoked %s\n", apikeyPrefix)
	return nil
}
