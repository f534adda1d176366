package queue

import (
	"strconv"

	"github.com/google/uuid"
)

// Kind names what a job does to its ledger.
type Kind string

const (
	// KindRefresh fully reloads a ledger and publishes it.
	KindRefresh Kind = "refresh"
	// KindPoll executes commands waiting in a ledger's spreadsheet.
	KindPoll Kind = "poll"
)

// Job is one unit of background work for a ledger.
type Job struct {
	ID       uuid.UUID
	LedgerID int
	Kind     Kind
}

// NewJob returns a job with a fresh ID.
func NewJob(ledgerID int, kind Kind) Job {
	return Job{ID: uuid.New(), LedgerID: ledgerID, Kind: kind}
}

// Key identifies jobs that do the same work.
func (j Job) Key() string {
	return strconv.Itoa(j.LedgerID) + "/" + string(j.Kind)
}
