// Package service owns the live ledgers and exposes the operations used by
// the HTTP API and the background workers.
package service

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/okian/tally/internal/adapters/audit"
	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/adapters/mq/worker"
	"github.com/okian/tally/internal/adapters/repository"
	"github.com/okian/tally/internal/domain/codec"
	"github.com/okian/tally/internal/domain/dedupe"
	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// SinkFactory returns the audit sink of one ledger. A nil sink keeps
// narrated messages in the structured log only.
type SinkFactory func(s model.Settings) audit.Sink

// Service runs every ledger named in the settings store.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	store   repository.SettingsStore
	sheet   sheetsync.Spreadsheet
	tabular ledger.TabularSource
	forms   ledger.FormSource
	sinks   SinkFactory

	// Configuration
	secret       string
	publish      bool
	timeout      time.Duration
	refreshEvery time.Duration
	pollCommands bool
	workerCount  int
	queueSize    int

	// State
	key      codec.Key
	registry *Registry
	queue    *queue.InMemoryQueue
	pool     *worker.Pool
	cancel   context.CancelFunc
	bg       sync.WaitGroup
	started  bool

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSettingsStore sets where ledger settings are loaded from.
func WithSettingsStore(store repository.SettingsStore) Option {
	return func(s *Service) { s.store = store }
}

// WithSpreadsheet sets the spreadsheet every ledger publishes to.
func WithSpreadsheet(sheet sheetsync.Spreadsheet) Option {
	return func(s *Service) { s.sheet = sheet }
}

// WithTabularSource sets the sign-in sheet reader.
func WithTabularSource(src ledger.TabularSource) Option {
	return func(s *Service) { s.tabular = src }
}

// WithFormSource sets the form reader.
func WithFormSource(src ledger.FormSource) Option {
	return func(s *Service) { s.forms = src }
}

// WithAuditSinks sets how each ledger's audit sink is built. By default
// ledgers narrate to the output range of their own spreadsheet.
func WithAuditSinks(f SinkFactory) Option {
	return func(s *Service) { s.sinks = f }
}

// WithMappingKey sets the secret question map tokens are sealed with.
func WithMappingKey(secret string) Option {
	return func(s *Service) { s.secret = secret }
}

// WithPublishing turns writing results back to the spreadsheet on or off.
func WithPublishing(enabled bool) Option {
	return func(s *Service) { s.publish = enabled }
}

// WithOperationTimeout bounds how long callers wait for an operation.
// The operation itself keeps running to completion.
func WithOperationTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.timeout = d
		}
	}
}

// WithRefreshInterval schedules a background refresh of every ledger.
// Zero disables the scheduler.
func WithRefreshInterval(d time.Duration) Option {
	return func(s *Service) {
		if d >= 0 {
			s.refreshEvery = d
		}
	}
}

// WithCommandPolling makes every scheduler tick also execute commands
// waiting in the spreadsheets.
func WithCommandPolling(enabled bool) Option {
	return func(s *Service) { s.pollCommands = enabled }
}

// WithWorkerCount sets the number of background workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of the background job queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(log logger.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.logger = log
		}
	}
}

// New constructs a Service. Start loads the ledgers.
func New(opts ...Option) *Service {
	s := &Service{
		publish:     true,
		workerCount: runtime.NumCPU(),
		queueSize:   1024,
		registry:    NewRegistry(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	return s
}

// Start builds a ledger per stored settings, fully reloads them
// concurrently and starts the background workers. A ledger whose reload
// fails is still registered; its result is logged.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.store == nil || s.sheet == nil {
		return fmt.Errorf("%w: settings store and spreadsheet are required", ErrNotStarted)
	}
	key, err := codec.DeriveKey(s.secret)
	if err != nil {
		return fmt.Errorf("derive mapping key: %w", err)
	}
	s.key = key

	all, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load settings: %w", err)
	}
	for _, st := range all {
		l, err := s.build(st)
		if err != nil {
			return err
		}
		s.registry.Put(l)
	}
	metrics.UpdateLedgerCount(s.registry.Len())

	for _, r := range s.refreshAll(ctx) {
		if !r.OK {
			s.logger.Warn(ctx, "initial reload failed",
				logger.Int("ledger", r.LedgerID), logger.String("error", r.Error))
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s.cancel = cancel
	s.queue = queue.NewInMemoryQueue(
		queue.WithCapacity(s.queueSize),
		queue.WithDeduper(dedupe.NewInMemoryDeduper()),
	)
	s.pool = worker.NewPool(s.workerCount, s.queue, worker.HandlerFunc(s.handle),
		worker.WithLogger(s.logger.Named("worker")),
		worker.WithJobTimeout(s.refreshEvery),
	)
	s.pool.Start(runCtx)
	if s.refreshEvery > 0 {
		s.bg.Add(1)
		go s.schedule(runCtx)
	}

	s.started = true
	s.logger.Info(ctx, "service started",
		logger.Int("ledgers", s.registry.Len()),
		logger.Int("workers", s.workerCount),
		logger.Duration("refreshEvery", s.refreshEvery),
		logger.Bool("pollCommands", s.pollCommands),
	)
	return nil
}

// Stop halts the scheduler and drains the workers.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return nil
	}
	s.logger.Info(ctx, "stopping service")
	s.cancel()
	s.bg.Wait()
	err := s.pool.Shutdown(ctx)
	s.registry.Clear()
	metrics.UpdateLedgerCount(0)
	s.started = false
	return err
}

// Replace stores st and swaps in a freshly loaded ledger for it.
func (s *Service) Replace(ctx context.Context, st model.Settings) (model.Settings, error) {
	if err := s.ready(); err != nil {
		return model.Settings{}, err
	}
	saved, err := s.store.Upsert(ctx, st)
	if err != nil {
		return model.Settings{}, err
	}
	l, err := s.build(saved)
	if err != nil {
		return saved, err
	}
	err = s.withTimeout(ctx, func(ctx context.Context) error { return s.refresh(ctx, l) })
	s.registry.Put(l)
	metrics.UpdateLedgerCount(s.registry.Len())
	return saved, err
}

func (s *Service) build(st model.Settings) (*ledger.Ledger, error) {
	c, err := codec.New(s.key, st.MappingIV)
	if err != nil {
		return nil, fmt.Errorf("ledger %d: %w", st.ID, err)
	}
	log := logger.Get().Named("ledger-" + strconv.Itoa(st.ID))

	var sink audit.Sink
	if s.sinks != nil {
		sink = s.sinks(st)
	} else {
		sink = audit.NewSheetSink(s.sheet, st.SpreadsheetLocator)
	}
	alog := audit.NewLog(log, sink, audit.WithPolicy(audit.Policy{
		Capacity:  st.OutputCapacity,
		Retention: time.Duration(st.OutputRetentionDays) * 24 * time.Hour,
	}))

	opts := []ledger.Option{
		ledger.WithPublisher(sheetsync.NewPublisher(s.sheet)),
		ledger.WithAuditLog(alog),
		ledger.WithLogger(log),
	}
	if s.tabular != nil {
		opts = append(opts, ledger.WithTabularSource(s.tabular))
	}
	if s.forms != nil {
		opts = append(opts, ledger.WithFormSource(s.forms))
	}
	return ledger.New(st, c, opts...), nil
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

func (s *Service) lookup(id int) (*ledger.Ledger, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	l, ok := s.registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownLedger, id)
	}
	return l, nil
}

// withTimeout runs fn detached from ctx's cancellation. When the timeout
// passes first the caller gets ErrTimeout and fn keeps running.
func (s *Service) withTimeout(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.timeout <= 0 {
		return fn(ctx)
	}
	done := make(chan error, 1)
	go func() { done <- fn(context.WithoutCancel(ctx)) }()

	timer := time.NewTimer(s.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		metrics.RecordOperationTimeout()
		s.logger.Warn(ctx, "operation still running after timeout", logger.Duration("timeout", s.timeout))
		return ErrTimeout
	case <-ctx.Done():
		return ctx.Err()
	}
}

// refresh fully reloads l and publishes the result. Ingestion failures
// still publish; a failed spreadsheet read or held publishing does not.
func (s *Service) refresh(ctx context.Context, l *ledger.Ledger) error {
	err := l.FullReload(ctx)
	if errors.Is(err, ledger.ErrReload) || !s.publish {
		return err
	}
	perr := l.Exec(ctx, func(tx *ledger.Tx) error {
		if err := tx.Held(); err != nil {
			return err
		}
		return tx.Publisher().Publish(ctx, tx.Locator(), tx.Snapshot(), false)
	})
	return errors.Join(err, perr)
}

func (s *Service) refreshAll(ctx context.Context) []types.Result {
	ledgers := s.registry.List()
	results := make([]types.Result, len(ledgers))

	var g errgroup.Group
	g.SetLimit(max(s.workerCount, 1))
	for i, l := range ledgers {
		g.Go(func() error {
			err := s.withTimeout(ctx, func(ctx context.Context) error { return s.refresh(ctx, l) })
			results[i] = types.ResultOf(l.ID(), err)
			return nil
		})
	}
	_ = g.Wait()
	return results
}
