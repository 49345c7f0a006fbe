package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/portgrant/portgrantd/internal/broker"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List active port rules",
	Long:  "Connect to the local daemon via Unix socket and list active rules.",
	RunE:  runRules,
}

func init() {
	rootCmd.AddCommand(rulesCmd)
}

func runRules(cmd *cobra.Command, _ []string) error {
	resp, err := socketGet(statusSocketPath(), "/v1/rules")
	if err != nil {
		return fmt.Errorf("portgrantd rules: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("portgrantd rules: read response: %w", err)
	}

	var live []broker.RuleSummary
	if err := json.Unmarshal(body, &live); err != nil {
		return fmt.Errorf("portgrantd rules: parse response: %w", err)
	}

	if len(live) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no active rules")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TYPE\tPROTO\tPORT\tIFACE\tDESTINATION")
	for _, r := range live {
		dst := "-"
		if r.DstIP != "" {
			dst = fmt.Sprintf("%s:%d", r.DstIP, r.DstPort)
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", r.Type, r.Proto, r.Port, r.Iface, dst)
	}
	return w.Flush()
}
