package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var questionsFlags struct {
	ledger int
	event  int
}

var questionsCmd = &cobra.Command{
	Use:   "questions",
	Short: "Write an event's form questions into the question map region",
	RunE:  runQuestions,
}

func init() {
	f := questionsCmd.Flags()
	f.IntVar(&questionsFlags.ledger, "ledger", 0, "Ledger ID (required)")
	f.IntVar(&questionsFlags.event, "event", 0, "Event ID (required)")

	_ = questionsCmd.MarkFlagRequired("ledger")
	_ = questionsCmd.MarkFlagRequired("event")
}

func runQuestions(cmd *cobra.Command, _ []string) error {
	if _, err := client().LoadQuestions(cmd.Context(), questionsFlags.ledger, questionsFlags.event); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ledger %d: questions of event %d loaded\n", questionsFlags.ledger, questionsFlags.event)
	return nil
}
