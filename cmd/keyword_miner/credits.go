package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/keyword-miner/internal/ledger"
	"github.com/jonathan/keyword-miner/internal/observability"
)

var (
	creditsAccount     string
	creditsAmount      int
	creditsDescription string
	creditsLimit       int
)

var creditsCmd = &cobra.Command{
	Use:   "credits",
	Short: "Provision and inspect credit accounts",
}

var creditsGrantCmd = &cobra.Command{
	Use:   "grant",
	Short: "Add credits to an account, creating it if needed",
	RunE:  runCreditsGrant,
}

var creditsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print an account balance and recent transactions",
	RunE:  runCreditsShow,
}

func init() {
	creditsCmd.PersistentFlags().StringVarP(&creditsAccount, "account", "a", "", "Account ID (required)")
	if err := creditsCmd.MarkPersistentFlagRequired("account"); err != nil {
		panic(fmt.Sprintf("failed to mark account flag as required: %v", err))
	}

	creditsGrantCmd.Flags().IntVar(&creditsAmount, "amount", 0, "Credits to add (required)")
	creditsGrantCmd.Flags().StringVar(&creditsDescription, "description", "Manual grant", "Transaction description")
	if err := creditsGrantCmd.MarkFlagRequired("amount"); err != nil {
		panic(fmt.Sprintf("failed to mark amount flag as required: %v", err))
	}

	creditsShowCmd.Flags().IntVar(&creditsLimit, "limit", 10, "Transactions to list")

	creditsCmd.AddCommand(creditsGrantCmd, creditsShowCmd)
	rootCmd.AddCommand(creditsCmd)
}

func runCreditsGrant(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(creditsAccount)
	if err != nil {
		return err
	}
	if creditsAmount <= 0 {
		return fmt.Errorf("amount must be greater than 0, got %d", creditsAmount)
	}

	_, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	b, err := database.GrantCredits(cmd.Context(), accountID, creditsAmount, creditsDescription)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "account %s: total %d, used %d, remaining %d\n",
		accountID, b.TotalCredits, b.UsedCredits, b.Remaining())
	return nil
}

func runCreditsShow(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(creditsAccount)
	if err != nil {
		return err
	}

	_, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	b, err := ledger.New(database).CheckBalance(cmd.Context(), accountID)
	if err != nil {
		return err
	}
	txns, err := database.ListTransactions(cmd.Context(), accountID, creditsLimit)
	if err != nil {
		return err
	}

	printer := observability.NewPrinter(cmd.OutOrStdout())
	printer.PrintBalance(accountID, b)
	printer.PrintTransactions(txns)
	return nil
}
