package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
)

// Tx is exclusive access to a ledger for the duration of Exec. It must
// not be retained after the Exec callback returns.
type Tx struct {
	l *Ledger
}

// CategoryCount returns the number of categories.
func (tx *Tx) CategoryCount() int { return len(tx.l.st.categories) }

// EventCount returns the number of events.
func (tx *Tx) EventCount() int { return len(tx.l.st.events) }

// Event returns a copy of event id.
func (tx *Tx) Event(id int) (model.Event, bool) {
	if id < 0 || id >= len(tx.l.st.events) {
		return model.Event{}, false
	}
	return tx.l.st.events[id].Clone(), true
}

// Category returns category id.
func (tx *Tx) Category(id int) (model.Category, bool) {
	if id < 0 || id >= len(tx.l.st.categories) {
		return model.Category{}, false
	}
	return tx.l.st.categories[id], true
}

// Snapshot returns a deep copy of the current state.
func (tx *Tx) Snapshot() model.Snapshot { return tx.l.snapshot() }

// Audit returns the ledger's audit log.
func (tx *Tx) Audit() *audit.Log { return tx.l.audit }

// Publisher returns the ledger's spreadsheet publisher.
func (tx *Tx) Publisher() *sheetsync.Publisher { return tx.l.publisher }

// Held reports ErrPublishHeld while publishing would erase unreadable
// event rows.
func (tx *Tx) Held() error { return tx.l.heldErr() }

// Locator returns the ledger spreadsheet locator.
func (tx *Tx) Locator() string { return tx.l.settings.SpreadsheetLocator }

// MappingToken encodes q with the ledger's key material.
func (tx *Tx) MappingToken(q model.QuestionMap) (string, error) { return tx.l.MappingToken(q) }

// AddCategory appends a category and returns its id.
func (tx *Tx) AddCategory(name string, points int) int {
	id := len(tx.l.st.categories)
	tx.l.st.categories = append(tx.l.st.categories, model.Category{ID: id, Name: name, Points: points})
	return id
}

// SetCategory replaces category id in place. Attendees of its events are
// adjusted by the change in points.
func (tx *Tx) SetCategory(id int, name string, points int) error {
	old, ok := tx.Category(id)
	if !ok {
		return fmt.Errorf("%w: %d", ErrCategoryNotFound, id)
	}
	tx.l.st.categories[id] = model.Category{ID: id, Name: name, Points: points}
	if delta := points - old.Points; delta != 0 {
		for i := range tx.l.st.events {
			if tx.l.st.events[i].CategoryID == id {
				tx.shift(i, delta)
			}
		}
	}
	return nil
}

// RemoveCategory moves every event of category remove into replace,
// adjusting attendees by the difference in points, then deletes remove and
// renumbers the categories after it.
func (tx *Tx) RemoveCategory(remove, replace int) error {
	if _, ok := tx.Category(remove); !ok {
		return fmt.Errorf("%w: %d", ErrCategoryNotFound, remove)
	}
	if _, ok := tx.Category(replace); !ok || replace == remove {
		return fmt.Errorf("%w: replacement %d", ErrCategoryNotFound, replace)
	}
	for i := range tx.l.st.events {
		if tx.l.st.events[i].CategoryID == remove {
			tx.setEventCategory(i, replace)
		}
	}

	cats := tx.l.st.categories
	cats = append(cats[:remove:remove], cats[remove+1:]...)
	for i := range cats {
		cats[i].ID = i
	}
	tx.l.st.categories = cats
	for i := range tx.l.st.events {
		if tx.l.st.events[i].CategoryID > remove {
			tx.l.st.events[i].CategoryID--
		}
	}
	return nil
}

// AddEvent appends an event with no mapping and no attendees.
func (tx *Tx) AddEvent(name string, date time.Time, categoryID int, src model.Source) (int, error) {
	if _, ok := tx.Category(categoryID); !ok {
		return 0, fmt.Errorf("%w: %d", ErrCategoryNotFound, categoryID)
	}
	tx.l.st.events = append(tx.l.st.events, model.NewEvent(name, date, categoryID, src))
	return len(tx.l.st.events) - 1, nil
}

// UpdateEvent edits event id. A changed source drops the question map
// and attendance, revoking the attendees' points. A changed category
// adjusts attendees by the difference in points.
func (tx *Tx) UpdateEvent(id int, name string, date time.Time, categoryID int, src model.Source) error {
	if id < 0 || id >= len(tx.l.st.events) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	if _, ok := tx.Category(categoryID); !ok {
		return fmt.Errorf("%w: %d", ErrCategoryNotFound, categoryID)
	}
	ev := &tx.l.st.events[id]
	if ev.Source != src {
		tx.revokeAll(id)
		ev.Attendees = make(map[string]struct{})
		ev.Questions = model.QuestionMap{}
		ev.Token = ""
		ev.Source = src
	}
	if ev.CategoryID != categoryID {
		tx.setEventCategory(id, categoryID)
	}
	if !ev.Date.Equal(date) {
		// Points move to the bucket of the new date.
		tx.revokeAll(id)
		ev.Date = date
		tx.shift(id, tx.l.st.points(ev.CategoryID))
	}
	ev.Name = name
	return nil
}

// RemoveEvent revokes event id's points from its attendees and deletes it.
func (tx *Tx) RemoveEvent(id int) error {
	if id < 0 || id >= len(tx.l.st.events) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	tx.revokeAll(id)
	evs := tx.l.st.events
	tx.l.st.events = append(evs[:id:id], evs[id+1:]...)
	return nil
}

// SetQuestionMap replaces event id's question map and its token.
func (tx *Tx) SetQuestionMap(id int, q model.QuestionMap) error {
	if id < 0 || id >= len(tx.l.st.events) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	token, err := tx.l.MappingToken(q)
	if err != nil {
		return err
	}
	ev := &tx.l.st.events[id]
	ev.Questions = q.Clone()
	ev.Token = token
	return nil
}

// IngestEvent reads the sign-in data of event id.
func (tx *Tx) IngestEvent(ctx context.Context, id int) error {
	if id < 0 || id >= len(tx.l.st.events) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, id)
	}
	return tx.l.ingest(ctx, id, nil)
}

// SoftReload re-ingests every event.
func (tx *Tx) SoftReload(ctx context.Context) error {
	return tx.l.softReload(ctx)
}

func (tx *Tx) setEventCategory(i, categoryID int) {
	ev := &tx.l.st.events[i]
	delta := tx.l.st.points(categoryID) - tx.l.st.points(ev.CategoryID)
	ev.CategoryID = categoryID
	if delta != 0 {
		tx.shift(i, delta)
	}
}

// shift adds delta points to every attendee of event i.
func (tx *Tx) shift(i, delta int) {
	ev := &tx.l.st.events[i]
	sem := ev.Semester()
	for key := range ev.Attendees {
		if m, ok := tx.l.st.members[key]; ok {
			m.Award(sem, delta)
		}
	}
}

func (tx *Tx) revokeAll(i int) {
	tx.shift(i, -tx.l.st.points(tx.l.st.events[i].CategoryID))
}
