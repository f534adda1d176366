// Package google adapts the Sheets and Forms APIs to the ledger's
// spreadsheet, tabular source and form source contracts.
package google

import (
	"context"
	"fmt"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"github.com/okian/tally/internal/domain/sheetsync"
)

// valueInput stores cells exactly as written. Typed input would turn
// mapping tokens and leading-zero ids into formulas or numbers.
const valueInput = "RAW"

// Sheets reads and writes spreadsheet value ranges. A locator is a
// spreadsheet id.
type Sheets struct {
	svc *sheets.Service
}

var _ sheetsync.Spreadsheet = (*Sheets)(nil)

// NewSheets creates a Sheets client. Callers pass credentials through opts,
// usually option.WithCredentialsFile.
func NewSheets(ctx context.Context, opts ...option.ClientOption) (*Sheets, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: sheets: %w", ErrClient, err)
	}
	return &Sheets{svc: svc}, nil
}

// BatchRead returns the rows of every range, in request order.
func (s *Sheets) BatchRead(ctx context.Context, locator string, ranges []string) ([][][]string, error) {
	resp, err := s.svc.Spreadsheets.Values.BatchGet(locator).Ranges(ranges...).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("batch get %s: %w", locator, err)
	}
	if len(resp.ValueRanges) != len(ranges) {
		return nil, fmt.Errorf("%w: asked for %d ranges, got %d", ErrResponse, len(ranges), len(resp.ValueRanges))
	}
	out := make([][][]string, len(ranges))
	for i, vr := range resp.ValueRanges {
		out[i] = toRows(vr.Values)
	}
	return out, nil
}

// BatchClear empties every range.
func (s *Sheets) BatchClear(ctx context.Context, locator string, ranges []string) error {
	req := &sheets.BatchClearValuesRequest{Ranges: ranges}
	if _, err := s.svc.Spreadsheets.Values.BatchClear(locator, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch clear %s: %w", locator, err)
	}
	return nil
}

// BatchWrite writes rows into each range in one request.
func (s *Sheets) BatchWrite(ctx context.Context, locator string, data map[string][][]string) error {
	req := &sheets.BatchUpdateValuesRequest{ValueInputOption: valueInput}
	for rng, rows := range data {
		req.Data = append(req.Data, &sheets.ValueRange{Range: rng, Values: fromRows(rows)})
	}
	if _, err := s.svc.Spreadsheets.Values.BatchUpdate(locator, req).Context(ctx).Do(); err != nil {
		return fmt.Errorf("batch update %s: %w", locator, err)
	}
	return nil
}

// ReadRows reads one range. It serves sign-in sheets as a tabular source.
func (s *Sheets) ReadRows(ctx context.Context, locator, rng string) ([][]string, error) {
	vr, err := s.svc.Spreadsheets.Values.Get(locator, rng).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("get %s!%s: %w", locator, rng, err)
	}
	return toRows(vr.Values), nil
}

func toRows(values [][]interface{}) [][]string {
	rows := make([][]string, len(values))
	for i, row := range values {
		rows[i] = make([]string, len(row))
		for j, cell := range row {
			if cell != nil {
				rows[i][j] = fmt.Sprint(cell)
			}
		}
	}
	return rows
}

func fromRows(rows [][]string) [][]interface{} {
	values := make([][]interface{}, len(rows))
	for i, row := range rows {
		values[i] = make([]interface{}, len(row))
		for j, cell := range row {
			values[i][j] = cell
		}
	}
	return values
}
