package model

import (
	"fmt"
	"strings"
)

// Attribute is a member attribute a sign-in question can feed.
type Attribute string

// The closed attribute set. AttrNone marks an unmapped question.
const (
	AttrNone           Attribute = ""
	AttrFirstName      Attribute = "First Name"
	AttrLastName       Attribute = "Last Name"
	AttrExternalID     Attribute = "External ID"
	AttrEmail          Attribute = "Email"
	AttrPhone          Attribute = "Phone Number"
	AttrBirthday       Attribute = "Birthday"
	AttrMajor          Attribute = "Major"
	AttrGraduationYear Attribute = "Graduation Year"
)

// Attributes lists the closed set in display order.
var Attributes = []Attribute{
	AttrFirstName, AttrLastName, AttrExternalID, AttrEmail,
	AttrPhone, AttrBirthday, AttrMajor, AttrGraduationYear,
}

// ParseAttribute resolves a display name (case-insensitive) to an
// Attribute. Blank input is AttrNone.
func ParseAttribute(raw string) (Attribute, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return AttrNone, nil
	}
	if strings.EqualFold(s, "UT EID") || strings.EqualFold(s, "EID") {
		return AttrExternalID, nil
	}
	for _, a := range Attributes {
		if strings.EqualFold(s, string(a)) {
			return a, nil
		}
	}
	return AttrNone, fmt.Errorf("%w: %q", ErrUnknownAttribute, raw)
}

// Mapping registers one question id against an attribute.
type Mapping struct {
	QuestionID string
	Attribute  Attribute
}

// QuestionMap maps source question ids to member attributes, keeping the
// order of registration. When several questions map to one attribute the
// last registered question wins.
type QuestionMap struct {
	entries []Mapping
}

// NewQuestionMap registers pairs in order.
func NewQuestionMap(pairs ...Mapping) QuestionMap {
	var q QuestionMap
	for _, p := range pairs {
		q.Set(p.QuestionID, p.Attribute)
	}
	return q
}

// Set registers questionID. Re-registering moves it to the end.
// Mapping to AttrNone removes the question.
func (q *QuestionMap) Set(questionID string, attr Attribute) {
	for i, e := range q.entries {
		if e.QuestionID == questionID {
			q.entries = append(q.entries[:i:i], q.entries[i+1:]...)
			break
		}
	}
	if attr == AttrNone {
		return
	}
	q.entries = append(q.entries, Mapping{QuestionID: questionID, Attribute: attr})
}

// Attribute returns the attribute a question is mapped to.
func (q QuestionMap) Attribute(questionID string) Attribute {
	for _, e := range q.entries {
		if e.QuestionID == questionID {
			return e.Attribute
		}
	}
	return AttrNone
}

// QuestionFor returns the winning question id for attr.
func (q QuestionMap) QuestionFor(attr Attribute) (string, bool) {
	for i := len(q.entries) - 1; i >= 0; i-- {
		if q.entries[i].Attribute == attr {
			return q.entries[i].QuestionID, true
		}
	}
	return "", false
}

// Entries returns a copy of the registrations in order.
func (q QuestionMap) Entries() []Mapping {
	return append([]Mapping(nil), q.entries...)
}

// Len returns the number of registered questions.
func (q QuestionMap) Len() int { return len(q.entries) }

// IsEmpty reports whether no question is mapped.
func (q QuestionMap) IsEmpty() bool { return len(q.entries) == 0 }

// Clone returns an independent copy.
func (q QuestionMap) Clone() QuestionMap {
	return QuestionMap{entries: q.Entries()}
}

// Equal reports whether both maps hold the same registrations in order.
func (q QuestionMap) Equal(o QuestionMap) bool {
	if len(q.entries) != len(o.entries) {
		return false
	}
	for i := range q.entries {
		if q.entries[i] != o.entries[i] {
			return false
		}
	}
	return true
}
