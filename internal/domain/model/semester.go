package model

import (
	"fmt"
	"strings"
	"time"
)

// Term is the half of the academic year a date falls in.
type Term string

// Terms.
const (
	Spring Term = "Spring"
	Fall   Term = "Fall"
)

// Semester is a term in a given year.
type Semester struct {
	Term Term
	Year int
}

// SemesterOf classifies a date: January through July is Spring,
// August through December is Fall.
func SemesterOf(t time.Time) Semester {
	if t.Month() >= time.August {
		return Semester{Term: Fall, Year: t.Year()}
	}
	return Semester{Term: Spring, Year: t.Year()}
}

func (s Semester) String() string {
	return fmt.Sprintf("%s %d", s.Term, s.Year)
}

// DateLayout is the layout dates are written to the spreadsheet with.
const DateLayout = "01/02/2006"

var dateLayouts = []string{"1/2/2006", "2006-01-02", time.RFC3339}

// ParseDate accepts M/D/YYYY (zero padding optional), ISO dates and
// RFC 3339 timestamps.
func ParseDate(raw string) (time.Time, error) {
	s := strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, raw)
}

// FormatDate renders t with DateLayout; the zero time renders blank.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(DateLayout)
}
