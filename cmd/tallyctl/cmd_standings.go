package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var standingsFlags struct {
	ledger int
	limit  int
}

var standingsCmd = &cobra.Command{
	Use:   "standings",
	Short: "Show members ordered by total points",
	RunE:  runStandings,
}

func init() {
	f := standingsCmd.Flags()
	f.IntVar(&standingsFlags.ledger, "ledger", 0, "Ledger ID (required)")
	f.IntVar(&standingsFlags.limit, "limit", 0, "Show at most this many members")

	_ = standingsCmd.MarkFlagRequired("ledger")
}

func runStandings(cmd *cobra.Command, _ []string) error {
	rows, err := client().Standings(cmd.Context(), standingsFlags.ledger, standingsFlags.limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "RANK\tNAME\tFALL\tSPRING\tTOTAL")
	for _, s := range rows {
		fmt.Fprintf(w, "%d\t%s\t%d\t%d\t%d\n", s.Rank, s.Name, s.Fall, s.Spring, s.Total)
	}
	return w.Flush()
}
