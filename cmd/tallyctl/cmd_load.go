package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okian/tally/internal/domain/mutation"
)

var loadFlags struct {
	ledger int
	target int
}

var loadCmd = &cobra.Command{
	Use:   "load <upsertCategory|upsertEvent>",
	Short: "Copy a category or event into its command region for editing",
	Args:  cobra.ExactArgs(1),
	RunE:  runLoad,
}

func init() {
	f := loadCmd.Flags()
	f.IntVar(&loadFlags.ledger, "ledger", 0, "Ledger ID (required)")
	f.IntVar(&loadFlags.target, "id", 0, "Category or event ID (required)")

	_ = loadCmd.MarkFlagRequired("ledger")
	_ = loadCmd.MarkFlagRequired("id")
}

func runLoad(cmd *cobra.Command, args []string) error {
	op, err := mutation.ParseOp(args[0])
	if err != nil {
		return err
	}
	if _, err := client().LoadCommand(cmd.Context(), loadFlags.ledger, op, loadFlags.target); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger %d: #%d loaded into the %s region\n", loadFlags.ledger, loadFlags.target, op)
	return nil
}
