// Package sheetsync serializes a ledger snapshot into the reserved ranges
// of its spreadsheet and reads those ranges back on a full reload.
//
// Writes always clear a range before writing it. Encoding is pure, so
// publishing an unchanged snapshot twice leaves identical cell contents.
package sheetsync

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/metrics"
)

// Spreadsheet is the external spreadsheet collaborator.
type Spreadsheet interface {
	// BatchRead returns the rows of each range, in the order requested.
	BatchRead(ctx context.Context, locator string, ranges []string) ([][][]string, error)
	// BatchClear empties every range.
	BatchClear(ctx context.Context, locator string, ranges []string) error
	// BatchWrite writes rows into each range.
	BatchWrite(ctx context.Context, locator string, data map[string][][]string) error
}

// Publisher pushes snapshots to and loads rows from a spreadsheet.
type Publisher struct {
	sheet Spreadsheet
}

// NewPublisher returns a Publisher writing through sheet.
func NewPublisher(sheet Spreadsheet) *Publisher {
	return &Publisher{sheet: sheet}
}

// Sheet exposes the underlying spreadsheet collaborator.
func (p *Publisher) Sheet() Spreadsheet { return p.sheet }

// Encode renders snap into range contents. Categories are only included
// when includeCategories is set; events, members and attendance always are.
func Encode(snap model.Snapshot, includeCategories bool) map[string][][]string {
	out := make(map[string][][]string, 4)
	if includeCategories {
		rows := make([][]string, 0, len(snap.Categories))
		for i, c := range snap.Categories {
			rows = append(rows, []string{itoa(i), c.Name, itoa(c.Points)})
		}
		out[RangeCategories] = rows
	}

	events := make([][]string, 0, len(snap.Events))
	names := make([]string, 0, len(snap.Events))
	ids := make([]string, 0, len(snap.Events))
	for i, e := range snap.Events {
		events = append(events, []string{
			itoa(i),
			e.Name,
			model.FormatDate(e.Date),
			e.Source.Locator,
			string(e.Source.Kind),
			itoa(e.CategoryID),
			e.Token,
		})
		names = append(names, e.Name)
		ids = append(ids, itoa(i))
	}
	out[RangeEvents] = events

	members := make([][]string, 0, len(snap.Members))
	attendance := [][]string{names, ids}
	for i, m := range snap.Members {
		members = append(members, memberRow(i, m))
		row := make([]string, len(snap.Events))
		for j := range snap.Events {
			if snap.Events[j].HasAttendee(m.Key) {
				row[j] = attendedMark
			}
		}
		attendance = append(attendance, row)
	}
	out[RangeMembers] = members
	out[RangeAttendance] = attendance
	return out
}

// memberRow renders one member. Column 0 is a display ordinal and is never
// read back; the external id in column 3 identifies the member.
func memberRow(i int, m model.Member) []string {
	grad := ""
	if y, ok := m.GraduationYear.Get(); ok {
		grad = itoa(y)
	}
	return []string{
		itoa(i),
		m.FirstName.Value(),
		m.LastName.Value(),
		m.Key,
		m.Email.Value(),
		m.Phone.Value(),
		model.FormatDate(m.Birthday.Value()),
		m.Major.Value(),
		grad,
		itoa(m.Fall),
		itoa(m.Spring),
		itoa(m.Total),
	}
}

// Publish clears and rewrites the snapshot's ranges.
func (p *Publisher) Publish(ctx context.Context, locator string, snap model.Snapshot, includeCategories bool) error {
	start := time.Now()
	defer func() {
		metrics.RecordPublishLatency(float64(time.Since(start).Milliseconds()))
	}()

	data := Encode(snap, includeCategories)
	ranges := make([]string, 0, len(data))
	if includeCategories {
		ranges = append(ranges, RangeCategories)
	}
	ranges = append(ranges, RangeEvents, RangeMembers, RangeAttendance)

	if err := p.sheet.BatchClear(ctx, locator, ranges); err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("%w: clear: %w", ErrPublish, err)
	}
	if err := p.sheet.BatchWrite(ctx, locator, data); err != nil {
		metrics.RecordPublishError()
		return fmt.Errorf("%w: write: %w", ErrPublish, err)
	}
	return nil
}

// EventRow is one event as stored in the spreadsheet.
type EventRow struct {
	Name       string
	Date       time.Time
	Source     model.Source
	CategoryID int
	Token      string
	// Attendees holds the member keys marked in the event's attendance
	// column.
	Attendees map[string]struct{}
}

// Rows is the raw ledger content read back from the reserved ranges.
type Rows struct {
	Categories []model.Category
	Events     []EventRow
	Members    []model.Member
	// Skipped describes rows that could not be parsed.
	Skipped []string
	// SkippedEvents describes the skipped event rows only. Publishing
	// while it is non-empty would erase those rows.
	SkippedEvents []string
}

// Load reads the category, event, member and attendance ranges.
func (p *Publisher) Load(ctx context.Context, locator string) (Rows, error) {
	res, err := p.sheet.BatchRead(ctx, locator, []string{RangeCategories, RangeEvents, RangeMembers, RangeAttendance})
	if err != nil {
		return Rows{}, fmt.Errorf("%w: %w", ErrLoad, err)
	}
	if len(res) != 4 {
		return Rows{}, fmt.Errorf("%w: expected 4 ranges, got %d", ErrLoad, len(res))
	}
	return Decode(res[0], res[1], res[2], res[3])
}

// Decode parses raw category, event, member and attendance rows. Malformed
// category rows fail the whole decode since every event references
// categories by index; malformed event and member rows are skipped and
// reported.
//
// Attendance column j belongs to event row j and attendance row k+2 to
// member row k, the layout Encode writes.
func Decode(categoryRows, eventRows, memberRows, attendanceRows [][]string) (Rows, error) {
	var out Rows
	for i, row := range categoryRows {
		if blankRow(row) {
			continue
		}
		points, err := strconv.Atoi(cell(row, 2))
		if err != nil || points < 0 {
			return Rows{}, fmt.Errorf("%w: category row %d has invalid points %q", ErrMalformedRange, i, cell(row, 2))
		}
		out.Categories = append(out.Categories, model.Category{
			ID:     len(out.Categories),
			Name:   cell(row, 1),
			Points: points,
		})
	}

	for i, row := range eventRows {
		if blankRow(row) {
			continue
		}
		ev, err := decodeEvent(row)
		if err != nil {
			msg := fmt.Sprintf("event row %d: %v", i, err)
			out.Skipped = append(out.Skipped, msg)
			out.SkippedEvents = append(out.SkippedEvents, msg)
			continue
		}
		ev.Attendees = attendanceColumn(i, memberRows, attendanceRows)
		out.Events = append(out.Events, ev)
	}

	for i, row := range memberRows {
		key := cell(row, 3)
		if key == "" {
			if !blankRow(row) {
				out.Skipped = append(out.Skipped, fmt.Sprintf("member row %d: missing external id", i))
			}
			continue
		}
		out.Members = append(out.Members, decodeMember(key, row))
	}
	return out, nil
}

func decodeEvent(row []string) (EventRow, error) {
	date, err := model.ParseDate(cell(row, 2))
	if err != nil {
		return EventRow{}, err
	}
	kind, err := model.ParseSourceKind(cell(row, 4))
	if err != nil {
		return EventRow{}, err
	}
	catID, err := strconv.Atoi(cell(row, 5))
	if err != nil {
		return EventRow{}, fmt.Errorf("invalid category id %q", cell(row, 5))
	}
	return EventRow{
		Name:       cell(row, 1),
		Date:       date,
		Source:     model.Source{Locator: cell(row, 3), Kind: kind},
		CategoryID: catID,
		Token:      cell(row, 6),
	}, nil
}

func attendanceColumn(col int, memberRows, attendanceRows [][]string) map[string]struct{} {
	out := make(map[string]struct{})
	for k, row := range memberRows {
		key := cell(row, 3)
		if key == "" || k+2 >= len(attendanceRows) {
			continue
		}
		if cell(attendanceRows[k+2], col) != "" {
			out[key] = struct{}{}
		}
	}
	return out
}

func decodeMember(key string, row []string) model.Member {
	m := model.Member{Key: key}
	m.Fill(model.AttrFirstName, cell(row, 1))
	m.Fill(model.AttrLastName, cell(row, 2))
	m.Fill(model.AttrExternalID, key)
	m.Fill(model.AttrEmail, cell(row, 4))
	m.Fill(model.AttrPhone, cell(row, 5))
	m.Fill(model.AttrBirthday, cell(row, 6))
	m.Fill(model.AttrMajor, cell(row, 7))
	m.Fill(model.AttrGraduationYear, cell(row, 8))
	m.Fall = atoiOrZero(cell(row, 9))
	m.Spring = atoiOrZero(cell(row, 10))
	m.Normalize()
	return m
}

// PromptRow is one question offered for mapping in the question map
// command region.
type PromptRow struct {
	Question   string
	QuestionID string
	Attribute  model.Attribute
}

// WriteQuestionPrompt replaces the question map command regions with the
// event id and one row per question.
func (p *Publisher) WriteQuestionPrompt(ctx context.Context, locator string, eventID int, rows []PromptRow) error {
	if err := p.sheet.BatchClear(ctx, locator, []string{RangeQuestionMapEventID, RangeQuestionMapRows}); err != nil {
		return fmt.Errorf("%w: clear prompt: %w", ErrPublish, err)
	}
	values := make([][]string, 0, len(rows))
	for _, r := range rows {
		values = append(values, []string{r.Question, "", r.QuestionID, string(r.Attribute)})
	}
	data := map[string][][]string{
		RangeQuestionMapEventID: {{"", "", itoa(eventID)}},
		RangeQuestionMapRows:    values,
	}
	if err := p.sheet.BatchWrite(ctx, locator, data); err != nil {
		return fmt.Errorf("%w: write prompt: %w", ErrPublish, err)
	}
	return nil
}

// WriteCommandValues fills the value column of a command region with one
// value per row. Whatever the region holds left of the value column, such
// as row labels, is kept.
func (p *Publisher) WriteCommandValues(ctx context.Context, locator, rng string, values []string) error {
	res, err := p.sheet.BatchRead(ctx, locator, []string{rng})
	if err != nil {
		return fmt.Errorf("%w: read %s: %w", ErrPublish, rng, err)
	}
	var current [][]string
	if len(res) > 0 {
		current = res[0]
	}
	rows := make([][]string, len(values))
	for i, v := range values {
		row := make([]string, CommandValueColumn+1)
		if i < len(current) {
			copy(row, current[i])
		}
		row[CommandValueColumn] = v
		rows[i] = row
	}
	if err := p.sheet.BatchWrite(ctx, locator, map[string][][]string{rng: rows}); err != nil {
		return fmt.Errorf("%w: write %s: %w", ErrPublish, rng, err)
	}
	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return strings.TrimSpace(row[i])
	}
	return ""
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func atoiOrZero(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func itoa(n int) string { return strconv.Itoa(n) }
