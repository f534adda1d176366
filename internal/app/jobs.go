package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/adapters/mq/queue"
	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/mutation"
	"github.com/okian/tally/pkg/logger"
)

// pollOps are executed by background polling. UpdateQuestionMap is left
// out: its region is written by LoadQuestionMap and must wait for the user
// to fill in attributes.
var pollOps = []mutation.Op{
	mutation.OpUpsertCategory,
	mutation.OpDeleteCategory,
	mutation.OpUpsertEvent,
	mutation.OpDeleteEvent,
}

// handle runs one background job.
func (s *Service) handle(ctx context.Context, j queue.Job) error {
	l, ok := s.registry.Get(j.LedgerID)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownLedger, j.LedgerID)
	}
	var err error
	switch j.Kind {
	case queue.KindRefresh:
		err = s.refresh(ctx, l)
	case queue.KindPoll:
		err = s.poll(ctx, l)
	default:
		err = fmt.Errorf("unknown job kind %q", j.Kind)
	}
	s.logResult(ctx, "background "+string(j.Kind)+" finished", j.LedgerID, err)
	return err
}

// poll executes every complete command waiting in l's spreadsheet.
func (s *Service) poll(ctx context.Context, l *ledger.Ledger) error {
	if !l.Ready() {
		return nil
	}
	locator := l.Settings().SpreadsheetLocator
	var errs []error
	for _, op := range pollOps {
		cmd, ok, err := mutation.Pending(ctx, s.sheet, locator, op)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if !ok {
			continue
		}
		if err := s.runSheetCommand(ctx, l, cmd); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// schedule enqueues refresh, and optionally poll, jobs for every ledger
// on each tick until ctx is done.
func (s *Service) schedule(ctx context.Context) {
	defer s.bg.Done()
	ticker := time.NewTicker(s.refreshEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.enqueueAll(ctx)
		}
	}
}

func (s *Service) enqueueAll(ctx context.Context) {
	kinds := []queue.Kind{queue.KindRefresh}
	if s.pollCommands {
		kinds = append(kinds, queue.KindPoll)
	}
	for _, l := range s.registry.List() {
		for _, kind := range kinds {
			err := s.queue.Enqueue(ctx, queue.NewJob(l.ID(), kind))
			switch {
			case err == nil, errors.Is(err, queue.ErrPending):
			default:
				s.logger.Warn(ctx, "could not schedule job",
					logger.Int("ledger", l.ID()), logger.String("kind", string(kind)), logger.Error(err))
			}
		}
	}
}
