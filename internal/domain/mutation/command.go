// Package mutation implements the ledger's validate-then-apply commands.
//
// A command is decoded from raw fields, validated against a read-only view
// of the ledger, and only then applied inside ledger.Exec.
package mutation

import (
	"fmt"
	"strconv"
	"strings"
)

// Op names a command.
type Op string

// Known commands.
const (
	OpUpsertCategory    Op = "upsertCategory"
	OpDeleteCategory    Op = "deleteCategory"
	OpUpsertEvent       Op = "upsertEvent"
	OpDeleteEvent       Op = "deleteEvent"
	OpUpdateQuestionMap Op = "updateQuestionMap"
)

// Ops lists every command.
var Ops = []Op{OpUpsertCategory, OpDeleteCategory, OpUpsertEvent, OpDeleteEvent, OpUpdateQuestionMap}

// ParseOp resolves a command name.
func ParseOp(raw string) (Op, error) {
	for _, op := range Ops {
		if strings.EqualFold(raw, string(op)) {
			return op, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownOp, raw)
}

// Command is one of the command variants below.
type Command interface {
	Op() Op
}

// UpsertCategory creates (ID -1) or replaces a category.
type UpsertCategory struct {
	ID     int    `validate:"gte=-1"`
	Name   string `validate:"required"`
	Points int    `validate:"gte=0"`
}

// DeleteCategory removes a category, moving its events to another.
type DeleteCategory struct {
	IDToRemove  int `validate:"gte=0"`
	IDToReplace int `validate:"gte=0,nefield=IDToRemove"`
}

// UpsertEvent creates (ID -1) or edits an event.
type UpsertEvent struct {
	ID         int    `validate:"gte=-1"`
	Title      string `validate:"required"`
	RawDate    string `validate:"required"`
	Source     string `validate:"required"`
	SourceKind string `validate:"required,sourcekind"`
	CategoryID int    `validate:"gte=0"`
}

// DeleteEvent removes an event.
type DeleteEvent struct {
	ID int `validate:"gte=0"`
}

// Pair maps one question id to an attribute display name.
type Pair struct {
	QuestionID string `json:"questionId" validate:"required"`
	Attribute  string `json:"attribute" validate:"attribute"`
}

// UpdateQuestionMap replaces an event's question map.
type UpdateQuestionMap struct {
	EventID int    `validate:"gte=0"`
	Pairs   []Pair `validate:"dive"`
}

func (UpsertCategory) Op() Op    { return OpUpsertCategory }
func (DeleteCategory) Op() Op    { return OpDeleteCategory }
func (UpsertEvent) Op() Op       { return OpUpsertEvent }
func (DeleteEvent) Op() Op       { return OpDeleteEvent }
func (UpdateQuestionMap) Op() Op { return OpUpdateQuestionMap }

// Fields is raw, possibly partial command input, as read from an HTTP body
// or a spreadsheet command region. Blank values count as absent.
type Fields struct {
	Values map[string]string `json:"values"`
	Pairs  []Pair            `json:"pairs,omitempty"`
}

// Field names per command.
const (
	FieldID          = "id"
	FieldName        = "name"
	FieldPoints      = "points"
	FieldIDToRemove  = "idToRemove"
	FieldIDToReplace = "idToReplace"
	FieldTitle       = "title"
	FieldDate        = "date"
	FieldSource      = "source"
	FieldSourceKind  = "sourceKind"
	FieldCategoryID  = "categoryId"
	FieldEventID     = "eventId"
)

// Decode builds the command for op from raw fields. It fails with
// ErrMissingField when a required field is absent; a missing id on the
// upserts means create.
func Decode(op Op, f Fields) (Command, error) {
	d := decoder{op: op, f: f}
	var cmd Command
	switch op {
	case OpUpsertCategory:
		cmd = UpsertCategory{
			ID:     d.intOr(FieldID, -1),
			Name:   d.str(FieldName),
			Points: d.int(FieldPoints),
		}
	case OpDeleteCategory:
		cmd = DeleteCategory{
			IDToRemove:  d.int(FieldIDToRemove),
			IDToReplace: d.int(FieldIDToReplace),
		}
	case OpUpsertEvent:
		cmd = UpsertEvent{
			ID:         d.intOr(FieldID, -1),
			Title:      d.str(FieldTitle),
			RawDate:    d.str(FieldDate),
			Source:     d.str(FieldSource),
			SourceKind: d.str(FieldSourceKind),
			CategoryID: d.int(FieldCategoryID),
		}
	case OpDeleteEvent:
		cmd = DeleteEvent{ID: d.int(FieldID)}
	case OpUpdateQuestionMap:
		pairs := make([]Pair, 0, len(f.Pairs))
		for _, p := range f.Pairs {
			p.QuestionID = strings.TrimSpace(p.QuestionID)
			p.Attribute = strings.TrimSpace(p.Attribute)
			// A blank attribute leaves the question unmapped.
			if p.QuestionID == "" || p.Attribute == "" {
				continue
			}
			pairs = append(pairs, p)
		}
		cmd = UpdateQuestionMap{EventID: d.int(FieldEventID), Pairs: pairs}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	if d.err != nil {
		return nil, d.err
	}
	return cmd, nil
}

// decoder records the first failure and keeps going with zero values.
type decoder struct {
	op  Op
	f   Fields
	err error
}

func (d *decoder) raw(name string) (string, bool) {
	v := strings.TrimSpace(d.f.Values[name])
	return v, v != ""
}

func (d *decoder) str(name string) string {
	v, ok := d.raw(name)
	if !ok && d.err == nil {
		d.err = fmt.Errorf("%w: %s.%s", ErrMissingField, d.op, name)
	}
	return v
}

func (d *decoder) int(name string) int {
	v := d.str(name)
	if v == "" {
		return 0
	}
	return d.parse(name, v)
}

func (d *decoder) intOr(name string, def int) int {
	v, ok := d.raw(name)
	if !ok {
		return def
	}
	return d.parse(name, v)
}

func (d *decoder) parse(name, v string) int {
	n, err := strconv.Atoi(v)
	if err != nil && d.err == nil {
		d.err = invalid(d.op, name, "%q is not an integer", v)
	}
	return n
}
