// Package model contains the ledger's data shape shared between the
// aggregate, the mutation commands and the sheet publisher.
package model

import (
	"fmt"
	"strings"
	"time"
)

// SourceKind identifies where an event's sign-in data lives.
type SourceKind string

// Known source kinds.
const (
	SourceTabular SourceKind = "tabular"
	SourceForm    SourceKind = "form"
)

// ParseSourceKind maps a raw kind string to a SourceKind. The spreadsheet
// has historically stored "GoogleSheets"/"GoogleForms", so both spellings
// are accepted.
func ParseSourceKind(raw string) (SourceKind, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "tabular", "googlesheets", "sheets":
		return SourceTabular, nil
	case "form", "googleforms", "forms":
		return SourceForm, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownSourceKind, raw)
	}
}

// Source locates an event's sign-in artifact.
type Source struct {
	Locator string
	Kind    SourceKind
}

// Category is a named, point-valued classification for events.
// ID always equals the category's index in the ledger.
type Category struct {
	ID     int    `json:"id"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Event is a single attended occasion.
type Event struct {
	Name       string
	Date       time.Time
	CategoryID int
	Source     Source
	Questions  QuestionMap
	Token      string
	Attendees  map[string]struct{}
}

// NewEvent returns an event with an empty attendee set.
func NewEvent(name string, date time.Time, categoryID int, src Source) Event {
	return Event{
		Name:       name,
		Date:       date,
		CategoryID: categoryID,
		Source:     src,
		Attendees:  make(map[string]struct{}),
	}
}

// Semester returns the derived semester label for the event date.
func (e *Event) Semester() Semester {
	return SemesterOf(e.Date)
}

// HasAttendee reports whether key attended the event.
func (e *Event) HasAttendee(key string) bool {
	_, ok := e.Attendees[key]
	return ok
}

// AttendeeKeys returns attendee keys sorted ascending.
func (e *Event) AttendeeKeys() []string {
	return sortedKeys(e.Attendees)
}

// Clone returns a deep copy of the event.
func (e *Event) Clone() Event {
	c := *e
	c.Questions = e.Questions.Clone()
	c.Attendees = make(map[string]struct{}, len(e.Attendees))
	for k := range e.Attendees {
		c.Attendees[k] = struct{}{}
	}
	return c
}

// Snapshot is an immutable copy of a ledger's state.
// Members are in the ledger's stable insertion order.
type Snapshot struct {
	LedgerID   int
	Categories []Category
	Events     []Event
	Members    []Member
}

// Member returns the member with key from the snapshot.
func (s Snapshot) Member(key string) (Member, bool) {
	for _, m := range s.Members {
		if m.Key == key {
			return m, true
		}
	}
	return Member{}, false
}
