// Package audit keeps the per-ledger log of user-visible messages and
// writes it to a durable sink with bounded capacity and retention.
package audit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Entry is one persisted message.
type Entry struct {
	Time    time.Time
	Message string
}

// Sink is an append-only message store ordered oldest first.
type Sink interface {
	Append(ctx context.Context, entries ...Entry) error
	ListAll(ctx context.Context) ([]Entry, error)
	DeleteFirst(ctx context.Context, n int) error
}

// Policy bounds a sink. Zero values disable the matching bound.
type Policy struct {
	Capacity  int
	Retention time.Duration
}

// Validate checks the policy bounds.
func (p Policy) Validate() error {
	if p.Capacity < 0 || p.Retention < 0 {
		return fmt.Errorf("%w: capacity=%d retention=%s", ErrInvalidPolicy, p.Capacity, p.Retention)
	}
	return nil
}

// Enforce deletes the oldest entries above capacity and every entry older
// than the retention period. It returns the number of entries removed.
func Enforce(ctx context.Context, sink Sink, p Policy, now time.Time) (int, error) {
	if p.Capacity == 0 && p.Retention == 0 {
		return 0, nil
	}
	entries, err := sink.ListAll(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	if p.Capacity > 0 && len(entries) > p.Capacity {
		n = len(entries) - p.Capacity
	}
	if p.Retention > 0 {
		cutoff := now.Add(-p.Retention)
		expired := 0
		for expired < len(entries) && entries[expired].Time.Before(cutoff) {
			expired++
		}
		n = max(n, expired)
	}
	if n == 0 {
		return 0, nil
	}
	if err := sink.DeleteFirst(ctx, n); err != nil {
		return 0, err
	}
	metrics.RecordAuditPruned(n)
	return n, nil
}

// Log is a ledger's message log. Print and Error only reach the
// structured logger; Narrate messages are also buffered until Flush.
type Log struct {
	mu      sync.Mutex
	log     logger.Logger
	sink    Sink
	policy  Policy
	now     func() time.Time
	pending []Entry
}

// Option configures a Log.
type Option func(*Log)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(l *Log) {
		if now != nil {
			l.now = now
		}
	}
}

// WithPolicy sets the capacity and retention bounds.
func WithPolicy(p Policy) Option {
	return func(l *Log) { l.policy = p }
}

// NewLog returns a Log writing to sink. A nil sink keeps narrated
// messages in the structured log only.
func NewLog(log logger.Logger, sink Sink, opts ...Option) *Log {
	l := &Log{log: log, sink: sink, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Print logs an informational message.
func (l *Log) Print(ctx context.Context, msg string, fields ...logger.Field) {
	l.log.Info(ctx, msg, fields...)
	metrics.RecordAuditRecord("info")
}

// Error logs an error message.
func (l *Log) Error(ctx context.Context, msg string, fields ...logger.Field) {
	l.log.Error(ctx, msg, fields...)
	metrics.RecordAuditRecord("error")
}

// Narrate logs msg and buffers it for the sink.
func (l *Log) Narrate(ctx context.Context, msg string) {
	l.log.Info(ctx, msg, logger.Bool("narrated", true))
	metrics.RecordAuditRecord("narrate")
	l.mu.Lock()
	l.pending = append(l.pending, Entry{Time: l.now(), Message: msg})
	l.mu.Unlock()
}

// Pending returns a copy of the buffered messages.
func (l *Log) Pending() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Entry(nil), l.pending...)
}

// Flush appends buffered messages in order, then enforces the policy.
// Messages stay buffered when the sink rejects them.
func (l *Log) Flush(ctx context.Context) error {
	l.mu.Lock()
	batch := l.pending
	l.pending = nil
	l.mu.Unlock()

	if l.sink == nil {
		return nil
	}
	if len(batch) > 0 {
		if err := l.sink.Append(ctx, batch...); err != nil {
			l.mu.Lock()
			l.pending = append(batch, l.pending...)
			l.mu.Unlock()
			return fmt.Errorf("%w: %w", ErrSinkUnavailable, err)
		}
	}
	if _, err := Enforce(ctx, l.sink, l.policy, l.now()); err != nil {
		return fmt.Errorf("%w: enforce policy: %w", ErrSinkUnavailable, err)
	}
	return nil
}
