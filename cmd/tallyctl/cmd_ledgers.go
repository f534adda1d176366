package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var ledgersCmd = &cobra.Command{
	Use:   "ledgers",
	Short: "List ledgers and their sizes",
	RunE:  runLedgers,
}

func runLedgers(cmd *cobra.Command, _ []string) error {
	ledgers, err := client().Ledgers(cmd.Context())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tREADY\tCATEGORIES\tEVENTS\tMEMBERS")
	for _, l := range ledgers {
		fmt.Fprintf(w, "%d\t%s\t%t\t%d\t%d\t%d\n", l.ID, l.Name, l.Ready, l.Categories, l.Events, l.Members)
	}
	return w.Flush()
}
