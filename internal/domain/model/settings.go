package model

// Settings are the persisted per-ledger settings.
type Settings struct {
	ID                  int    `json:"id"`
	Name                string `json:"name"`
	SpreadsheetLocator  string `json:"spreadsheetLocator"`
	Version             string `json:"version"`
	MappingIV           string `json:"mappingIv"`
	OutputCapacity      int    `json:"outputCapacity"`
	OutputRetentionDays int    `json:"outputRetentionPeriodDays"`
}
