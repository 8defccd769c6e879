package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/jonathan/keyword-miner/internal/db"
	"github.com/jonathan/keyword-miner/internal/prompts"
	"github.com/jonathan/keyword-miner/internal/types"
)

var (
	workflowAccount string
	workflowFile    string
	workflowShared  bool
	workflowMode    string
)

var workflowCmd = &cobra.Command{
	Use:   "workflow",
	Short: "Manage saved workflow configs",
}

var workflowSaveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a workflow config from a JSON file and print its id",
	RunE:  runWorkflowSave,
}

var workflowListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the configs an account can use for a mode",
	RunE:  runWorkflowList,
}

var workflowStagesCmd = &cobra.Command{
	Use:   "stages",
	Short: "List the stage ids a config node can override",
	RunE:  runWorkflowStages,
}

func init() {
	workflowSaveCmd.Flags().StringVarP(&workflowAccount, "account", "a", "", "Owning account ID")
	workflowSaveCmd.Flags().StringVarP(&workflowFile, "file", "f", "", "Path to workflow config JSON (required)")
	workflowSaveCmd.Flags().BoolVar(&workflowShared, "shared", false, "Make the config available to every account")
	if err := workflowSaveCmd.MarkFlagRequired("file"); err != nil {
		panic(fmt.Sprintf("failed to mark file flag as required: %v", err))
	}

	workflowListCmd.Flags().StringVarP(&workflowAccount, "account", "a", "", "Account ID (required)")
	workflowListCmd.Flags().StringVarP(&workflowMode, "mode", "m", "", "keyword_mining, batch_translation or deep_dive (required)")
	for _, name := range []string{"account", "mode"} {
		if err := workflowListCmd.MarkFlagRequired(name); err != nil {
			panic(fmt.Sprintf("failed to mark %s flag as required: %v", name, err))
		}
	}

	workflowCmd.AddCommand(workflowSaveCmd, workflowListCmd, workflowStagesCmd)
	rootCmd.AddCommand(workflowCmd)
}

// workflowRow decodes and validates a config file. Shared configs have no owner.
func workflowRow(data []byte, account string, shared bool) (*db.WorkflowConfigRow, error) {
	var cfg types.WorkflowConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "decode workflow config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, eris.Wrap(err, "invalid workflow config")
	}
	if strings.TrimSpace(cfg.Name) == "" {
		return nil, eris.New("invalid workflow config: name is required")
	}

	row := &db.WorkflowConfigRow{
		WorkflowID: string(cfg.WorkflowID),
		Name:       cfg.Name,
		Nodes:      make([]db.WorkflowNode, 0, len(cfg.Nodes)),
	}
	if cfg.ID != "" {
		id, err := uuid.Parse(cfg.ID)
		if err != nil {
			return nil, eris.Wrapf(err, "invalid workflow config id %q", cfg.ID)
		}
		row.ID = id
	}
	for _, n := range cfg.Nodes {
		row.Nodes = append(row.Nodes, db.WorkflowNode{ID: n.ID, Prompt: n.Prompt})
	}

	switch {
	case shared && account != "":
		return nil, eris.New("--shared and --account are mutually exclusive")
	case shared:
	case account == "":
		return nil, eris.New("--account is required unless --shared is set")
	default:
		owner, err := parseAccount(account)
		if err != nil {
			return nil, err
		}
		row.UserID = &owner
	}
	return row, nil
}

func runWorkflowSave(cmd *cobra.Command, _ []string) error {
	data, err := os.ReadFile(workflowFile)
	if err != nil {
		return eris.Wrapf(err, "read %s", workflowFile)
	}
	row, err := workflowRow(data, workflowAccount, workflowShared)
	if err != nil {
		return err
	}

	_, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	if err := database.SaveWorkflowConfig(cmd.Context(), row); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), row.ID)
	return nil
}

func runWorkflowList(cmd *cobra.Command, _ []string) error {
	accountID, err := parseAccount(workflowAccount)
	if err != nil {
		return err
	}
	if !types.Mode(workflowMode).Valid() {
		return eris.Errorf("unknown mode %q", workflowMode)
	}

	_, database, err := openDB(cmd.Context())
	if err != nil {
		return err
	}
	defer database.Close()

	configs, err := database.ListWorkflowConfigs(cmd.Context(), accountID, workflowMode)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	for _, c := range configs {
		owner := "shared"
		if c.UserID != nil {
			owner = "own"
		}
		fmt.Fprintf(out, "%s  %-6s  %2d nodes  %s\n", c.ID, owner, len(c.Nodes), c.Name)
	}
	return nil
}

func runWorkflowStages(cmd *cobra.Command, _ []string) error {
	stages, err := prompts.List(prompts.DefaultsFile)
	if err != nil {
		return err
	}
	for _, s := range stages {
		fmt.Fprintln(cmd.OutOrStdout(), s)
	}
	return nil
}
