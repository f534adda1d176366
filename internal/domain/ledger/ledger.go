// Package ledger implements the membership ledger aggregate: categories,
// events and the members who earn points by attending them.
//
// A Ledger serializes every reload and mutation on its own mutex. Readers
// get deep copies through Snapshot; mutations go through Exec, which is the
// only place a *Tx is handed out.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/domain/codec"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// TabularSource reads sign-in sheets.
type TabularSource interface {
	ReadRows(ctx context.Context, locator, rng string) ([][]string, error)
}

// FormSource reads form questions and responses.
type FormSource interface {
	ListResponses(ctx context.Context, locator string) ([]model.Response, error)
	ListQuestions(ctx context.Context, locator string) ([]model.Question, error)
}

// Ledger is one organization's membership ledger.
type Ledger struct {
	mu sync.Mutex

	settings  model.Settings
	codec     *codec.Codec
	publisher *sheetsync.Publisher
	tabular   TabularSource
	forms     FormSource
	audit     *audit.Log
	log       logger.Logger

	st    state
	ready bool
	// held lists event rows the last full reload could not keep.
	held []string
}

type state struct {
	categories []model.Category
	events     []model.Event
	members    map[string]*model.Member
	order      []string
}

func newState() state {
	return state{members: make(map[string]*model.Member)}
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithPublisher sets the spreadsheet publisher used by reloads.
func WithPublisher(p *sheetsync.Publisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

// WithTabularSource sets the sign-in sheet reader.
func WithTabularSource(src TabularSource) Option {
	return func(l *Ledger) { l.tabular = src }
}

// WithFormSource sets the form reader.
func WithFormSource(src FormSource) Option {
	return func(l *Ledger) { l.forms = src }
}

// WithAuditLog sets the ledger's audit log.
func WithAuditLog(a *audit.Log) Option {
	return func(l *Ledger) { l.audit = a }
}

// WithLogger sets the structured logger.
func WithLogger(log logger.Logger) Option {
	return func(l *Ledger) {
		if log != nil {
			l.log = log
		}
	}
}

// New returns an uninitialized ledger. FullReload makes it ready.
func New(settings model.Settings, c *codec.Codec, opts ...Option) *Ledger {
	l := &Ledger{
		settings: settings,
		codec:    c,
		st:       newState(),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.log == nil {
		l.log = logger.Named("ledger-" + strconv.Itoa(settings.ID))
	}
	if l.audit == nil {
		l.audit = audit.NewLog(l.log, nil)
	}
	return l
}

// ID returns the ledger id.
func (l *Ledger) ID() int { return l.settings.ID }

// Settings returns the ledger settings.
func (l *Ledger) Settings() model.Settings { return l.settings }

// Publisher returns the spreadsheet publisher.
func (l *Ledger) Publisher() *sheetsync.Publisher { return l.publisher }

// Ready reports whether a full reload has succeeded.
func (l *Ledger) Ready() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.ready
}

// FullReload rebuilds the ledger from the spreadsheet and re-ingests every
// event. When the spreadsheet cannot be read the previous state is kept.
func (l *Ledger) FullReload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush(ctx)

	start := time.Now()
	err := l.fullReload(ctx)
	metrics.RecordReload("full", err == nil, float64(time.Since(start).Milliseconds()))
	return err
}

func (l *Ledger) fullReload(ctx context.Context) error {
	if l.publisher == nil {
		return fmt.Errorf("%w: no spreadsheet configured", ErrReload)
	}
	rows, err := l.publisher.Load(ctx, l.settings.SpreadsheetLocator)
	if err != nil {
		l.audit.Error(ctx, "full reload could not read the spreadsheet", logger.Error(err))
		return fmt.Errorf("%w: %w", ErrReload, err)
	}
	for _, msg := range rows.Skipped {
		l.audit.Narrate(ctx, "Skipped "+msg)
	}
	held := append([]string(nil), rows.SkippedEvents...)

	next := newState()
	next.categories = rows.Categories
	var marked []map[string]struct{}
	for _, r := range rows.Events {
		if r.CategoryID < 0 || r.CategoryID >= len(next.categories) {
			msg := fmt.Sprintf("event %q: category %d does not exist", r.Name, r.CategoryID)
			l.audit.Narrate(ctx, "Skipped "+msg)
			held = append(held, msg)
			continue
		}
		ev := model.NewEvent(r.Name, r.Date, r.CategoryID, r.Source)
		ev.Token = r.Token
		q, err := l.MapFromToken(r.Token)
		if err != nil {
			l.audit.Narrate(ctx, fmt.Sprintf("Question map of event %q is unreadable; treating it as unmapped", r.Name))
		}
		ev.Questions = q
		next.events = append(next.events, ev)
		marked = append(marked, r.Attendees)
	}

	trusted := make(map[string]struct{}, len(rows.Members))
	for i := range rows.Members {
		m := rows.Members[i]
		if _, dup := next.members[m.Key]; dup {
			continue
		}
		next.put(&m)
		trusted[m.Key] = struct{}{}
	}

	prev := l.st
	l.st = next
	l.ready = true
	l.held = held
	if len(held) > 0 {
		l.audit.Narrate(ctx, fmt.Sprintf("Publishing is held until %d unreadable event rows are fixed", len(held)))
	}

	var failed []error
	for i := range l.st.events {
		if err := l.ingest(ctx, i, trusted); err != nil {
			failed = append(failed, err)
			l.restoreAttendance(i, l.keptAttendance(i, prev, marked[i]), prev, trusted)
		}
	}
	l.updateGauges()
	if err := ingestionError(failed, len(l.st.events)); err != nil {
		l.log.Warn(ctx, "full reload finished with ingestion errors",
			logger.Int("previousEvents", len(prev.events)), logger.Error(err))
		return err
	}
	l.log.Info(ctx, "full reload finished",
		logger.Int("events", len(l.st.events)), logger.Int("members", len(l.st.order)))
	return nil
}

// keptAttendance picks what a failed event keeps on a full reload: the
// attendees of the same event before the reload, else the spreadsheet's
// attendance column.
func (l *Ledger) keptAttendance(i int, prev state, marked map[string]struct{}) map[string]struct{} {
	ev := l.st.events[i]
	for j := range prev.events {
		if prev.events[j].Name == ev.Name && prev.events[j].Source == ev.Source {
			return prev.events[j].Attendees
		}
	}
	return marked
}

// SoftReload clears members and attendance and re-ingests every event.
// Events whose source fails keep the attendance they had before.
func (l *Ledger) SoftReload(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush(ctx)
	if !l.ready {
		return ErrNotReady
	}
	return l.softReload(ctx)
}

func (l *Ledger) softReload(ctx context.Context) error {
	start := time.Now()
	prev := l.st.clone()

	l.st.members = make(map[string]*model.Member)
	l.st.order = nil
	for i := range l.st.events {
		l.st.events[i].Attendees = make(map[string]struct{})
	}

	var failed []error
	for i := range l.st.events {
		if err := l.ingest(ctx, i, nil); err != nil {
			failed = append(failed, err)
			l.restoreAttendance(i, prev.events[i].Attendees, prev, nil)
		}
	}
	l.updateGauges()

	err := ingestionError(failed, len(l.st.events))
	metrics.RecordReload("soft", err == nil, float64(time.Since(start).Milliseconds()))
	return err
}

// restoreAttendance marks attendees on event i, recreating members from
// prev when needed. Members in trusted already carry their points; the
// rest are awarded the event's points again.
func (l *Ledger) restoreAttendance(i int, attendees map[string]struct{}, prev state, trusted map[string]struct{}) {
	ev := &l.st.events[i]
	points := l.st.points(ev.CategoryID)
	sem := ev.Semester()
	for key := range attendees {
		m, ok := l.st.members[key]
		if !ok {
			old := prev.members[key]
			fresh := model.NewMember(key)
			if old != nil {
				fresh = *old
				fresh.Fall, fresh.Spring, fresh.Total = 0, 0, 0
			}
			m = &fresh
			l.st.put(m)
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
}

// IngestEvent re-reads the sign-in data of one event.
func (l *Ledger) IngestEvent(ctx context.Context, index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush(ctx)
	if !l.ready {
		return ErrNotReady
	}
	if index < 0 || index >= len(l.st.events) {
		return fmt.Errorf("%w: %d", ErrEventNotFound, index)
	}
	err := l.ingest(ctx, index, nil)
	l.updateGauges()
	return err
}

// Exec runs fn with exclusive access to the ledger.
func (l *Ledger) Exec(ctx context.Context, fn func(tx *Tx) error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	defer l.flush(ctx)
	if !l.ready {
		return ErrNotReady
	}
	tx := &Tx{l: l}
	err := fn(tx)
	l.updateGauges()
	return err
}

// Held reports ErrPublishHeld while the last full reload skipped event
// rows that publishing would erase from the spreadsheet.
func (l *Ledger) Held() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.heldErr()
}

func (l *Ledger) heldErr() error {
	if len(l.held) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrPublishHeld, strings.Join(l.held, "; "))
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() model.Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshot()
}

func (l *Ledger) snapshot() model.Snapshot {
	snap := model.Snapshot{
		LedgerID:   l.settings.ID,
		Categories: append([]model.Category(nil), l.st.categories...),
		Events:     make([]model.Event, len(l.st.events)),
		Members:    make([]model.Member, 0, len(l.st.order)),
	}
	for i := range l.st.events {
		snap.Events[i] = l.st.events[i].Clone()
	}
	for _, key := range l.st.order {
		snap.Members = append(snap.Members, *l.st.members[key])
	}
	return snap
}

// Standings returns members ordered by total points descending, then by
// key. A positive limit truncates the result.
func (l *Ledger) Standings(limit int) []model.Member {
	members := l.Snapshot().Members
	sort.SliceStable(members, func(i, j int) bool {
		if members[i].Total != members[j].Total {
			return members[i].Total > members[j].Total
		}
		return members[i].Key < members[j].Key
	})
	if limit > 0 && limit < len(members) {
		members = members[:limit]
	}
	return members
}

// MappingToken encodes a question map with the ledger's key material.
func (l *Ledger) MappingToken(q model.QuestionMap) (string, error) {
	return l.codec.Encode(q)
}

// MapFromToken decodes a token; undecodable tokens yield an empty map and
// an error wrapping codec.ErrDecode.
func (l *Ledger) MapFromToken(token string) (model.QuestionMap, error) {
	q, err := l.codec.Decode(token)
	if err != nil {
		return model.QuestionMap{}, err
	}
	return q, nil
}

// QuestionPrompt lists the questions of an event's source together with
// the attribute each is currently mapped to.
func (l *Ledger) QuestionPrompt(ctx context.Context, eventID int) ([]sheetsync.PromptRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.ready {
		return nil, ErrNotReady
	}
	if eventID < 0 || eventID >= len(l.st.events) {
		return nil, fmt.Errorf("%w: %d", ErrEventNotFound, eventID)
	}
	ev := l.st.events[eventID]
	questions, err := l.questions(ctx, ev.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: event %q: %w", ErrSourceIngestion, ev.Name, err)
	}
	rows := make([]sheetsync.PromptRow, 0, len(questions))
	for _, q := range questions {
		rows = append(rows, sheetsync.PromptRow{
			Question:   q.Title,
			QuestionID: q.ID,
			Attribute:  ev.Questions.Attribute(q.ID),
		})
	}
	return rows, nil
}

func (l *Ledger) questions(ctx context.Context, src model.Source) ([]model.Question, error) {
	switch src.Kind {
	case model.SourceTabular:
		if l.tabular == nil {
			return nil, errors.New("no tabular source configured")
		}
		rows, err := l.tabular.ReadRows(ctx, src.Locator, sheetsync.RangeSignIn)
		if err != nil {
			return nil, err
		}
		var out []model.Question
		if len(rows) > 0 {
			for i, title := range rows[0] {
				out = append(out, model.Question{ID: strconv.Itoa(i), Title: title})
			}
		}
		return out, nil
	case model.SourceForm:
		if l.forms == nil {
			return nil, errors.New("no form source configured")
		}
		return l.forms.ListQuestions(ctx, src.Locator)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSourceKind, src.Kind)
	}
}

func (l *Ledger) flush(ctx context.Context) {
	if err := l.audit.Flush(ctx); err != nil {
		l.log.Warn(ctx, "audit flush failed", logger.Error(err))
	}
}

func (l *Ledger) updateGauges() {
	metrics.UpdateMemberCount(strconv.Itoa(l.settings.ID), len(l.st.order))
}

func (s *state) put(m *model.Member) {
	s.members[m.Key] = m
	s.order = append(s.order, m.Key)
}

func (s *state) points(categoryID int) int {
	if categoryID < 0 || categoryID >= len(s.categories) {
		return 0
	}
	return s.categories[categoryID].Points
}

func (s *state) clone() state {
	c := state{
		categories: append([]model.Category(nil), s.categories...),
		events:     make([]model.Event, len(s.events)),
		members:    make(map[string]*model.Member, len(s.members)),
		order:      append([]string(nil), s.order...),
	}
	for i := range s.events {
		c.events[i] = s.events[i].Clone()
	}
	for k, m := range s.members {
		cp := *m
		c.members[k] = &cp
	}
	return c
}

func ingestionError(failed []error, total int) error {
	if len(failed) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d of %d events failed: %w", ErrSourceIngestion, len(failed), total, errors.Join(failed...))
}
