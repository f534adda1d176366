package model

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field is an optional attribute slot. Once set it is never overwritten.
type Field[T any] struct {
	value T
	set   bool
}

// Some returns a set Field holding v.
func Some[T any](v T) Field[T] {
	return Field[T]{value: v, set: true}
}

// Get returns the value and whether the slot is set.
func (f Field[T]) Get() (T, bool) { return f.value, f.set }

// Value returns the value, or the zero value when unset.
func (f Field[T]) Value() T { return f.value }

// IsSet reports whether the slot holds a value.
func (f Field[T]) IsSet() bool { return f.set }

// Fill stores v only when the slot is unset. It reports whether it wrote.
func (f *Field[T]) Fill(v T) bool {
	if f.set {
		return false
	}
	f.value = v
	f.set = true
	return true
}

// Member is a person accumulating points in a ledger.
type Member struct {
	Key string

	FirstName      Field[string]
	LastName       Field[string]
	ExternalID     Field[string]
	Email          Field[string]
	Phone          Field[string]
	Birthday       Field[time.Time]
	Major          Field[string]
	GraduationYear Field[int]

	Fall   int
	Spring int
	Total  int
}

// NewMember returns a member with only its key (and external id) set.
func NewMember(key string) Member {
	return Member{Key: key, ExternalID: Some(key)}
}

// Award adds points to the bucket for semester and to the total.
func (m *Member) Award(s Semester, points int) {
	switch s.Term {
	case Fall:
		m.Fall += points
	default:
		m.Spring += points
	}
	m.Total = m.Fall + m.Spring
}

// Revoke removes points previously awarded for semester.
func (m *Member) Revoke(s Semester, points int) {
	m.Award(s, -points)
}

// FullName joins the first and last names that are set.
func (m *Member) FullName() string {
	return strings.TrimSpace(m.FirstName.Value() + " " + m.LastName.Value())
}

// Normalize re-establishes Total == Fall + Spring.
func (m *Member) Normalize() {
	m.Total = m.Fall + m.Spring
}

// Fill writes raw into the slot for attr using the attribute's parser.
// Blank or unparseable input leaves the slot untouched.
func (m *Member) Fill(attr Attribute, raw string) bool {
	fill, ok := fillers[attr]
	if !ok {
		return false
	}
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false
	}
	return fill(m, raw)
}

type filler func(m *Member, raw string) bool

// fillWith binds one generic first-writer-wins rule to a slot and parser.
func fillWith[T any](slot func(*Member) *Field[T], parse func(string) (T, bool)) filler {
	return func(m *Member, raw string) bool {
		v, ok := parse(raw)
		if !ok {
			return false
		}
		return slot(m).Fill(v)
	}
}

func parseText(raw string) (string, bool) { return raw, true }

func parseYear(raw string) (int, bool) {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return n, true
}

func parseBirthday(raw string) (time.Time, bool) {
	t, err := ParseDate(raw)
	return t, err == nil
}

var fillers = map[Attribute]filler{
	AttrFirstName:      fillWith(func(m *Member) *Field[string] { return &m.FirstName }, parseText),
	AttrLastName:       fillWith(func(m *Member) *Field[string] { return &m.LastName }, parseText),
	AttrExternalID:     fillWith(func(m *Member) *Field[string] { return &m.ExternalID }, parseText),
	AttrEmail:          fillWith(func(m *Member) *Field[string] { return &m.Email }, parseText),
	AttrPhone:          fillWith(func(m *Member) *Field[string] { return &m.Phone }, parseText),
	AttrBirthday:       fillWith(func(m *Member) *Field[time.Time] { return &m.Birthday }, parseBirthday),
	AttrMajor:          fillWith(func(m *Member) *Field[string] { return &m.Major }, parseText),
	AttrGraduationYear: fillWith(func(m *Member) *Field[int] { return &m.GraduationYear }, parseYear),
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
