// Package types contains the response shapes shared by the service, the
// HTTP API and the CLI.
package types

import "github.com/okian/tally/internal/domain/model"

// Standing is one row of a ledger's points table.
type Standing struct {
	Rank   int    `json:"rank"`
	Key    string `json:"key"`
	Name   string `json:"name"`
	Fall   int    `json:"fall"`
	Spring int    `json:"spring"`
	Total  int    `json:"total"`
}

// Standings ranks members in the order given, starting at 1.
func Standings(members []model.Member) []Standing {
	out := make([]Standing, len(members))
	for i, m := range members {
		out[i] = Standing{
			Rank:   i + 1,
			Key:    m.Key,
			Name:   m.FullName(),
			Fall:   m.Fall,
			Spring: m.Spring,
			Total:  m.Total,
		}
	}
	return out
}

// LedgerSummary describes one registered ledger.
type LedgerSummary struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Ready      bool   `json:"ready"`
	Categories int    `json:"categories"`
	Events     int    `json:"events"`
	Members    int    `json:"members"`
	// Held explains why publishing is suspended, if it is.
	Held       string `json:"held,omitempty"`
}

// Summarize builds a summary from settings and a snapshot.
func Summarize(s model.Settings, ready bool, snap model.Snapshot) LedgerSummary {
	return LedgerSummary{
		ID:         s.ID,
		Name:       s.Name,
		Ready:      ready,
		Categories: len(snap.Categories),
		Events:     len(snap.Events),
		Members:    len(snap.Members),
	}
}

// Result is the outcome of a refresh or command.
type Result struct {
	LedgerID int    `json:"ledgerId"`
	OK       bool   `json:"ok"`
	Error    string `json:"error,omitempty"`
}

// ResultOf turns err into a Result. OK is true only for a nil error.
func ResultOf(ledgerID int, err error) Result {
	r := Result{LedgerID: ledgerID, OK: err == nil}
	if err != nil {
		r.Error = err.Error()
	}
	return r
}
