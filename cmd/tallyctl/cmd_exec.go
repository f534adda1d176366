package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/okian/tally/internal/domain/mutation"
)

var execFlags struct {
	ledger    int
	values    []string
	pairs     []string
	fromSheet bool
}

var execCmd = &cobra.Command{
	Use:   "exec <op>",
	Short: "Run a ledger command",
	Long: "Run one of upsertCategory, deleteCategory, upsertEvent, deleteEvent\n" +
		"or updateQuestionMap. Field values are given as --set name=value and\n" +
		"question map pairs as --pair questionId=attribute.",
	Args: cobra.ExactArgs(1),
	RunE: runExec,
}

func init() {
	f := execCmd.Flags()
	f.IntVar(&execFlags.ledger, "ledger", 0, "Ledger ID (required)")
	f.StringArrayVar(&execFlags.values, "set", nil, "Field value as name=value")
	f.StringArrayVar(&execFlags.pairs, "pair", nil, "Question map pair as questionId=attribute")
	f.BoolVar(&execFlags.fromSheet, "from-sheet", false, "Run the command authored in the spreadsheet")

	_ = execCmd.MarkFlagRequired("ledger")
}

func runExec(cmd *cobra.Command, args []string) error {
	fields, err := parseFields(execFlags.values, execFlags.pairs)
	if err != nil {
		return err
	}
	res, err := client().Exec(cmd.Context(), execFlags.ledger, mutation.Op(args[0]), fields, execFlags.fromSheet)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger %d: %s ok\n", res.LedgerID, args[0])
	return nil
}

func parseFields(values, pairs []string) (mutation.Fields, error) {
	f := mutation.Fields{Values: make(map[string]string, len(values))}
	for _, v := range values {
		name, val, ok := strings.Cut(v, "=")
		if !ok || name == "" {
			return f, fmt.Errorf("--set %q: want name=value", v)
		}
		f.Values[name] = val
	}
	for _, p := range pairs {
		q, attr, ok := strings.Cut(p, "=")
		if !ok || q == "" {
			return f, fmt.Errorf("--pair %q: want questionId=attribute", p)
		}
		f.Pairs = append(f.Pairs, mutation.Pair{QuestionID: q, Attribute: attr})
	}
	return f, nil
}
