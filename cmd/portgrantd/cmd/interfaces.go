package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/portgrant/portgrantd/internal/ifaces"
)

var interfacesCmd = &cobra.Command{
	Use:   "interfaces",
	Short: "List forwarding candidate interfaces",
	Long:  "List host network interfaces whose names are eligible for forwarding rules.",
	RunE:  runInterfaces,
}

func init() {
	rootCmd.AddCommand(interfacesCmd)
}

func runInterfaces(cmd *cobra.Command, _ []string) error {
	links, err := ifaces.Candidates()
	if err != nil {
		return fmt.Errorf("portgrantd interfaces: %w", err)
	}

	if len(links) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no candidate interfaces")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tINDEX\tMTU\tSTATE")
	for _, l := range links {
		state := "down"
		if l.Up {
			state = "up"
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", l.Name, l.Index, l.MTU, state)
	}
	return w.Flush()
}
