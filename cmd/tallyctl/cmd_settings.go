package main

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/okian/tally/internal/ctl"
	"github.com/okian/tally/internal/domain/model"
)

var settingsFlags struct {
	file     string
	settings model.Settings
	push     bool
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage ledger settings",
}

var settingsInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Add or replace a ledger in a settings file",
	Long:  "Writes the ledger to the local settings file, generating a mapping IV\nwhen none exists. With --push the stored settings are also sent to the service.",
	RunE:  runSettingsInit,
}

func init() {
	f := settingsInitCmd.Flags()
	s := &settingsFlags.settings
	f.StringVar(&settingsFlags.file, "file", "settings.json", "Settings file")
	f.IntVar(&s.ID, "id", 0, "Ledger ID (required)")
	f.StringVar(&s.Name, "name", "", "Display name")
	f.StringVar(&s.SpreadsheetLocator, "locator", "", "Spreadsheet locator (required)")
	f.StringVar(&s.Version, "version", "", "Sheet layout version")
	f.IntVar(&s.OutputCapacity, "output-capacity", 0, "Audit entries kept; 0 keeps all")
	f.IntVar(&s.OutputRetentionDays, "output-retention-days", 0, "Days audit entries are kept; 0 keeps all")
	f.BoolVar(&settingsFlags.push, "push", false, "Also replace the settings on the running service")

	_ = settingsInitCmd.MarkFlagRequired("id")
	_ = settingsInitCmd.MarkFlagRequired("locator")

	settingsCmd.AddCommand(settingsInitCmd)
}

func runSettingsInit(cmd *cobra.Command, _ []string) error {
	stored, err := ctl.InitSettings(cmd.Context(), settingsFlags.file, settingsFlags.settings)
	if err != nil {
		return err
	}
	if settingsFlags.push {
		if stored, err = client().Replace(cmd.Context(), stored); err != nil {
			return err
		}
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(stored)
}
