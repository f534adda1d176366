// Package memory provides in-process spreadsheet, sign-in sheet and form
// collaborators. The service uses them for the memory backend and tests
// use them as fakes with failure injection.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/okian/tally/internal/domain/model"
)

// Spreadsheet stores range contents per document locator.
type Spreadsheet struct {
	mu   sync.Mutex
	docs map[string]map[string][][]string

	readErr  error
	clearErr error
	writeErr error
	failDoc  map[string]error
	writes   int
}

// NewSpreadsheet returns an empty Spreadsheet.
func NewSpreadsheet() *Spreadsheet {
	return &Spreadsheet{
		docs:    make(map[string]map[string][][]string),
		failDoc: make(map[string]error),
	}
}

// FailDocument makes reads of one locator return err until reset with nil.
func (s *Spreadsheet) FailDocument(locator string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failDoc, locator)
		return
	}
	s.failDoc[locator] = err
}

// FailReads makes every BatchRead return err until reset with nil.
func (s *Spreadsheet) FailReads(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readErr = err
}

// FailClears makes every BatchClear return err until reset with nil.
func (s *Spreadsheet) FailClears(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearErr = err
}

// FailWrites makes every BatchWrite return err until reset with nil.
func (s *Spreadsheet) FailWrites(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.writeErr = err
}

// Writes reports how many BatchWrite calls succeeded.
func (s *Spreadsheet) Writes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writes
}

// Set stores rows in rng.
func (s *Spreadsheet) Set(locator, rng string, rows [][]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.doc(locator)[rng] = copyRows(rows)
}

// Get returns a copy of the rows stored in rng.
func (s *Spreadsheet) Get(locator, rng string) [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyRows(s.doc(locator)[rng])
}

func (s *Spreadsheet) doc(locator string) map[string][][]string {
	d, ok := s.docs[locator]
	if !ok {
		d = make(map[string][][]string)
		s.docs[locator] = d
	}
	return d
}

func (s *Spreadsheet) BatchRead(_ context.Context, locator string, ranges []string) ([][][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	if err := s.failDoc[locator]; err != nil {
		return nil, err
	}
	d := s.doc(locator)
	out := make([][][]string, len(ranges))
	for i, r := range ranges {
		out[i] = copyRows(d[r])
	}
	return out, nil
}

func (s *Spreadsheet) BatchClear(_ context.Context, locator string, ranges []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.clearErr != nil {
		return s.clearErr
	}
	d := s.doc(locator)
	for _, r := range ranges {
		delete(d, r)
	}
	return nil
}

func (s *Spreadsheet) BatchWrite(_ context.Context, locator string, data map[string][][]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	d := s.doc(locator)
	for r, rows := range data {
		d[r] = copyRows(rows)
	}
	s.writes++
	return nil
}

// ReadRows serves sign-in sheets stored in the same documents.
func (s *Spreadsheet) ReadRows(ctx context.Context, locator, rng string) ([][]string, error) {
	res, err := s.BatchRead(ctx, locator, []string{rng})
	if err != nil {
		return nil, err
	}
	return res[0], nil
}

// Forms stores questions and responses per form locator.
type Forms struct {
	mu    sync.Mutex
	forms map[string]*form
	fail  map[string]error
}

type form struct {
	questions []model.Question
	responses []model.Response
}

// NewForms returns an empty Forms.
func NewForms() *Forms {
	return &Forms{forms: make(map[string]*form), fail: make(map[string]error)}
}

// SetQuestions replaces the questions of a form.
func (f *Forms) SetQuestions(locator string, qs ...model.Question) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.form(locator).questions = append([]model.Question(nil), qs...)
}

// AddResponse appends a response to a form.
func (f *Forms) AddResponse(locator string, answers map[string]string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fm := f.form(locator)
	cp := make(map[string]string, len(answers))
	for k, v := range answers {
		cp[k] = v
	}
	fm.responses = append(fm.responses, model.Response{
		ID:      fmt.Sprintf("r%d", len(fm.responses)+1),
		Answers: cp,
	})
}

// Fail makes reads of locator return err until reset with nil.
func (f *Forms) Fail(locator string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.fail, locator)
		return
	}
	f.fail[locator] = err
}

func (f *Forms) form(locator string) *form {
	fm, ok := f.forms[locator]
	if !ok {
		fm = &form{}
		f.forms[locator] = fm
	}
	return fm
}

func (f *Forms) lookup(locator string) (*form, error) {
	if err := f.fail[locator]; err != nil {
		return nil, err
	}
	fm, ok := f.forms[locator]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, locator)
	}
	return fm, nil
}

func (f *Forms) ListResponses(_ context.Context, locator string) ([]model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fm, err := f.lookup(locator)
	if err != nil {
		return nil, err
	}
	return append([]model.Response(nil), fm.responses...), nil
}

func (f *Forms) ListQuestions(_ context.Context, locator string) ([]model.Question, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fm, err := f.lookup(locator)
	if err != nil {
		return nil, err
	}
	return append([]model.Question(nil), fm.questions...), nil
}

func copyRows(rows [][]string) [][]string {
	if rows == nil {
		return nil
	}
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
