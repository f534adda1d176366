package mutation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
)

// regions lists each command's spreadsheet region and the field read
// from column P of each of its rows.
var regions = map[Op]struct {
	rng    string
	fields []string
}{
	OpUpsertCategory: {sheetsync.RangeUpsertCategoryCmd, []string{FieldID, FieldName, FieldPoints}},
	OpDeleteCategory: {sheetsync.RangeDeleteCategoryCmd, []string{FieldIDToRemove, FieldIDToReplace}},
	OpUpsertEvent: {sheetsync.RangeUpsertEventCmd, []string{
		FieldID, FieldTitle, FieldDate, FieldSource, FieldSourceKind, FieldCategoryID,
	}},
	OpDeleteEvent:       {sheetsync.RangeDeleteEventCmd, []string{FieldID}},
	OpUpdateQuestionMap: {sheetsync.RangeQuestionMapEventID, []string{FieldEventID}},
}

const valueColumn = sheetsync.CommandValueColumn

// ReadCommand reads op's command region into raw fields.
func ReadCommand(ctx context.Context, sheet sheetsync.Spreadsheet, locator string, op Op) (Fields, error) {
	region, ok := regions[op]
	if !ok {
		return Fields{}, fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	ranges := []string{region.rng}
	if op == OpUpdateQuestionMap {
		ranges = append(ranges, sheetsync.RangeQuestionMapRows)
	}
	res, err := sheet.BatchRead(ctx, locator, ranges)
	if err != nil {
		return Fields{}, fmt.Errorf("read %s region: %w", op, err)
	}
	if len(res) != len(ranges) {
		return Fields{}, fmt.Errorf("read %s region: expected %d ranges, got %d", op, len(ranges), len(res))
	}

	f := Fields{Values: make(map[string]string, len(region.fields))}
	for i, name := range region.fields {
		if i < len(res[0]) && valueColumn < len(res[0][i]) {
			if v := strings.TrimSpace(res[0][i][valueColumn]); v != "" {
				f.Values[name] = v
			}
		}
	}
	if op == OpUpdateQuestionMap {
		// Rows are [question, "", questionId, attribute].
		for _, row := range res[1] {
			if len(row) < 3 || strings.TrimSpace(row[2]) == "" {
				continue
			}
			p := Pair{QuestionID: strings.TrimSpace(row[2])}
			if len(row) > 3 {
				p.Attribute = strings.TrimSpace(row[3])
			}
			f.Pairs = append(f.Pairs, p)
		}
	}
	return f, nil
}

// CommandWriter fills the value column of a command region.
type CommandWriter interface {
	WriteCommandValues(ctx context.Context, locator, rng string, values []string) error
}

// Load writes the current fields of category or event id into op's
// command region so they can be edited and resubmitted. Only the upsert
// ops can be loaded.
func Load(ctx context.Context, l *ledger.Ledger, w CommandWriter, op Op, id int) error {
	return l.Exec(ctx, func(tx *ledger.Tx) error {
		values, err := loadValues(tx, op, id)
		if err != nil {
			return err
		}
		if err := w.WriteCommandValues(ctx, tx.Locator(), regions[op].rng, values); err != nil {
			return err
		}
		tx.Audit().Narrate(ctx, fmt.Sprintf("Loaded #%d into the %s region", id, op))
		return nil
	})
}

// loadValues lists the fields in the order of op's region rows.
func loadValues(tx *ledger.Tx, op Op, id int) ([]string, error) {
	switch op {
	case OpUpsertCategory:
		c, ok := tx.Category(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ledger.ErrCategoryNotFound, id)
		}
		return []string{strconv.Itoa(c.ID), c.Name, strconv.Itoa(c.Points)}, nil
	case OpUpsertEvent:
		ev, ok := tx.Event(id)
		if !ok {
			return nil, fmt.Errorf("%w: %d", ledger.ErrEventNotFound, id)
		}
		return []string{
			strconv.Itoa(id),
			ev.Name,
			model.FormatDate(ev.Date),
			ev.Source.Locator,
			string(ev.Source.Kind),
			strconv.Itoa(ev.CategoryID),
		}, nil
	default:
		return nil, invalid(op, "", "only %s and %s can be loaded", OpUpsertCategory, OpUpsertEvent)
	}
}

// ClearCommand empties op's command region.
func ClearCommand(ctx context.Context, sheet sheetsync.Spreadsheet, locator string, op Op) error {
	region, ok := regions[op]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownOp, op)
	}
	ranges := []string{region.rng}
	if op == OpUpdateQuestionMap {
		ranges = append(ranges, sheetsync.RangeQuestionMapRows)
	}
	return sheet.BatchClear(ctx, locator, ranges)
}

// IsEmpty reports whether no field was provided.
func (f Fields) IsEmpty() bool {
	return len(f.Values) == 0 && len(f.Pairs) == 0
}

// Pending reads op's region and decodes it. ok is false when the region
// holds no complete command.
func Pending(ctx context.Context, sheet sheetsync.Spreadsheet, locator string, op Op) (cmd Command, ok bool, err error) {
	f, err := ReadCommand(ctx, sheet, locator, op)
	if err != nil {
		return nil, false, err
	}
	if f.IsEmpty() {
		return nil, false, nil
	}
	cmd, err = Decode(op, f)
	if errors.Is(err, ErrMissingField) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return cmd, true, nil
}
