package ledger

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// answers yields one sign-in record: its answer for a question id.
type answers func(questionID string) string

// ingest reads the sign-in data of event i and records attendance. Members
// in trusted already carry their points and only gain attendee status.
func (l *Ledger) ingest(ctx context.Context, i int, trusted map[string]struct{}) error {
	ev := &l.st.events[i]
	keyQuestion, ok := ev.Questions.QuestionFor(model.AttrExternalID)
	if !ok {
		l.log.Debug(ctx, "event has no external id mapping", logger.String("event", ev.Name))
		return nil
	}

	records, err := l.records(ctx, ev.Source)
	if err != nil {
		metrics.RecordIngestionError()
		wrapped := fmt.Errorf("%w: event %q: %w", ErrSourceIngestion, ev.Name, err)
		l.audit.Error(ctx, "could not read event source", logger.String("event", ev.Name), logger.Error(err))
		l.audit.Narrate(ctx, fmt.Sprintf("Could not read sign-ins for %q; keeping its known attendance", ev.Name))
		return wrapped
	}

	points := l.st.points(ev.CategoryID)
	sem := ev.Semester()
	for _, answer := range records {
		key := strings.TrimSpace(answer(keyQuestion))
		if key == "" {
			continue
		}
		m, ok := l.st.members[key]
		if !ok {
			fresh := model.NewMember(key)
			m = &fresh
			l.st.put(m)
		}
		for _, attr := range model.Attributes {
			if qid, ok := ev.Questions.QuestionFor(attr); ok {
				m.Fill(attr, answer(qid))
			}
		}
		if ev.HasAttendee(key) {
			continue
		}
		ev.Attendees[key] = struct{}{}
		if _, ok := trusted[key]; ok {
			continue
		}
		m.Award(sem, points)
	}
	metrics.RecordEventIngested()
	return nil
}

// records fetches every sign-in record of a source.
func (l *Ledger) records(ctx context.Context, src model.Source) ([]answers, error) {
	switch src.Kind {
	case model.SourceTabular:
		if l.tabular == nil {
			return nil, errors.New("no tabular source configured")
		}
		rows, err := l.tabular.ReadRows(ctx, src.Locator, sheetsync.RangeSignIn)
		if err != nil {
			return nil, err
		}
		out := make([]answers, 0, len(rows))
		for r := 1; r < len(rows); r++ {
			row := rows[r]
			out = append(out, func(qid string) string {
				col, err := strconv.Atoi(qid)
				if err != nil || col < 0 || col >= len(row) {
					return ""
				}
				return row[col]
			})
		}
		return out, nil
	case model.SourceForm:
		if l.forms == nil {
			return nil, errors.New("no form source configured")
		}
		responses, err := l.forms.ListResponses(ctx, src.Locator)
		if err != nil {
			return nil, err
		}
		out := make([]answers, 0, len(responses))
		for _, r := range responses {
			out = append(out, func(qid string) string { return r.Answers[qid] })
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, src.Kind)
	}
}
