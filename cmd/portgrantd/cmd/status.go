package cmd

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/portgrant/portgrantd/internal/broker"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	Long:  "Connect to the local daemon via Unix socket and display rule counts.",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	resp, err := socketGet(statusSocketPath(), "/v1/status")
	if err != nil {
		return fmt.Errorf("portgrantd status: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("portgrantd status: read response: %w", err)
	}

	var summary broker.StatusSummary
	if err := json.Unmarshal(body, &summary); err != nil {
		return fmt.Errorf("portgrantd status: parse response: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Active rules: %d\n", summary.ActiveRules)
	return nil
}
