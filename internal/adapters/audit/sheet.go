package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/okian/tally/internal/domain/sheetsync"
)

// SheetSink stores entries in the spreadsheet's output range as
// [RFC3339 timestamp, message] rows.
type SheetSink struct {
	sheet   sheetsync.Spreadsheet
	locator string
}

// NewSheetSink returns a sink backed by the output range of locator.
func NewSheetSink(sheet sheetsync.Spreadsheet, locator string) *SheetSink {
	return &SheetSink{sheet: sheet, locator: locator}
}

func (s *SheetSink) Append(ctx context.Context, entries ...Entry) error {
	current, err := s.ListAll(ctx)
	if err != nil {
		return err
	}
	return s.rewrite(ctx, append(current, entries...))
}

func (s *SheetSink) ListAll(ctx context.Context) ([]Entry, error) {
	res, err := s.sheet.BatchRead(ctx, s.locator, []string{sheetsync.RangeOutput})
	if err != nil {
		return nil, fmt.Errorf("read output range: %w", err)
	}
	if len(res) == 0 {
		return nil, nil
	}
	entries := make([]Entry, 0, len(res[0]))
	for _, row := range res[0] {
		if len(row) == 0 {
			continue
		}
		var e Entry
		if t, err := time.Parse(time.RFC3339, strings.TrimSpace(row[0])); err == nil {
			e.Time = t
		}
		if len(row) > 1 {
			e.Message = row[1]
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func (s *SheetSink) DeleteFirst(ctx context.Context, n int) error {
	current, err := s.ListAll(ctx)
	if err != nil {
		return err
	}
	n = min(max(n, 0), len(current))
	return s.rewrite(ctx, current[n:])
}

func (s *SheetSink) rewrite(ctx context.Context, entries []Entry) error {
	if err := s.sheet.BatchClear(ctx, s.locator, []string{sheetsync.RangeOutput}); err != nil {
		return fmt.Errorf("clear output range: %w", err)
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Time.UTC().Format(time.RFC3339), e.Message})
	}
	if err := s.sheet.BatchWrite(ctx, s.locator, map[string][][]string{sheetsync.RangeOutput: rows}); err != nil {
		return fmt.Errorf("write output range: %w", err)
	}
	return nil
}
