package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/mutation"
	"github.com/okian/tally/internal/domain/types"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Ledgers summarizes every registered ledger.
func (s *Service) Ledgers() ([]types.LedgerSummary, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	ledgers := s.registry.List()
	out := make([]types.LedgerSummary, len(ledgers))
	for i, l := range ledgers {
		out[i] = summarize(l)
	}
	return out, nil
}

// Ledger summarizes one ledger.
func (s *Service) Ledger(id int) (types.LedgerSummary, error) {
	l, err := s.lookup(id)
	if err != nil {
		return types.LedgerSummary{}, err
	}
	return summarize(l), nil
}

func summarize(l *ledger.Ledger) types.LedgerSummary {
	sum := types.Summarize(l.Settings(), l.Ready(), l.Snapshot())
	if err := l.Held(); err != nil {
		sum.Held = err.Error()
	}
	return sum
}

// Snapshot returns a copy of one ledger's state.
func (s *Service) Snapshot(id int) (model.Snapshot, error) {
	l, err := s.lookup(id)
	if err != nil {
		return model.Snapshot{}, err
	}
	return l.Snapshot(), nil
}

// RefreshAll fully reloads and publishes every ledger independently.
func (s *Service) RefreshAll(ctx context.Context) ([]types.Result, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.refreshAll(ctx), nil
}

// Refresh fully reloads and publishes one ledger.
func (s *Service) Refresh(ctx context.Context, id int) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.withTimeout(ctx, func(ctx context.Context) error { return s.refresh(ctx, l) })
}

// Execute decodes raw fields into op's command and runs it.
func (s *Service) Execute(ctx context.Context, id int, op mutation.Op, f mutation.Fields) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	cmd, err := mutation.Decode(op, f)
	if err != nil {
		metrics.RecordValidationFailure(string(op))
		return err
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		return mutation.Run(ctx, l, s.publisher(l), cmd)
	})
}

// ExecuteFromSheet runs the command authored in op's spreadsheet region
// and clears the region once the command was attempted.
func (s *Service) ExecuteFromSheet(ctx context.Context, id int, op mutation.Op) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		locator := l.Settings().SpreadsheetLocator
		f, err := mutation.ReadCommand(ctx, s.sheet, locator, op)
		if err != nil {
			return err
		}
		cmd, err := mutation.Decode(op, f)
		if err != nil {
			metrics.RecordValidationFailure(string(op))
			return err
		}
		return s.runSheetCommand(ctx, l, cmd)
	})
}

func (s *Service) runSheetCommand(ctx context.Context, l *ledger.Ledger, cmd mutation.Command) error {
	runErr := mutation.Run(ctx, l, s.publisher(l), cmd)
	if err := mutation.ClearCommand(ctx, s.sheet, l.Settings().SpreadsheetLocator, cmd.Op()); err != nil {
		return errors.Join(runErr, fmt.Errorf("clear %s region: %w", cmd.Op(), err))
	}
	return runErr
}

// LoadQuestionMap writes event eventID's questions and their mapped
// attributes into the question map region, ready to be edited and
// submitted as an UpdateQuestionMap command.
func (s *Service) LoadQuestionMap(ctx context.Context, id, eventID int) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		rows, err := l.QuestionPrompt(ctx, eventID)
		if err != nil {
			return err
		}
		return l.Publisher().WriteQuestionPrompt(ctx, l.Settings().SpreadsheetLocator, eventID, rows)
	})
}

// LoadCommand writes the current fields of category or event targetID
// into op's command region, ready to be edited and submitted from the
// spreadsheet.
func (s *Service) LoadCommand(ctx context.Context, id int, op mutation.Op, targetID int) error {
	l, err := s.lookup(id)
	if err != nil {
		return err
	}
	return s.withTimeout(ctx, func(ctx context.Context) error {
		return mutation.Load(ctx, l, l.Publisher(), op, targetID)
	})
}

// Standings returns the ledger's top members. limit <= 0 returns all.
func (s *Service) Standings(id, limit int) ([]types.Standing, error) {
	l, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	if !l.Ready() {
		return nil, ledger.ErrNotReady
	}
	return types.Standings(l.Standings(limit)), nil
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":      s.started,
		"workerCount":  s.workerCount,
		"queueSize":    s.queueSize,
		"publish":      s.publish,
		"pollCommands": s.pollCommands,
	}
	if !s.started {
		return stats
	}

	ready := 0
	members := 0
	for _, l := range s.registry.List() {
		if l.Ready() {
			ready++
		}
		members += len(l.Snapshot().Members)
	}
	stats["ledgers"] = s.registry.Len()
	stats["readyLedgers"] = ready
	stats["members"] = members
	stats["queueLength"] = s.queue.Len(context.Background())
	return stats
}

// publisher returns nil when publishing is off so commands skip it.
func (s *Service) publisher(l *ledger.Ledger) mutation.Publisher {
	if !s.publish || l.Publisher() == nil {
		return nil
	}
	return l.Publisher()
}

func (s *Service) logResult(ctx context.Context, msg string, id int, err error) {
	if err != nil {
		s.logger.Warn(ctx, msg, logger.Int("ledger", id), logger.Error(err))
		return
	}
	s.logger.Debug(ctx, msg, logger.Int("ledger", id))
}
