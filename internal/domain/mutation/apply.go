package mutation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/pkg/logger"
	"github.com/okian/tally/pkg/metrics"
)

// Publisher writes a ledger snapshot to its spreadsheet.
type Publisher interface {
	Publish(ctx context.Context, locator string, snap model.Snapshot, includeCategories bool) error
}

// Apply performs a validated command on the ledger. Ingestion failures
// during the trailing soft reload are returned after the change is made.
func Apply(ctx context.Context, v Validated, tx *ledger.Tx) error {
	log := tx.Audit()
	switch c := v.cmd.(type) {
	case UpsertCategory:
		if c.ID == -1 {
			id := tx.AddCategory(c.Name, c.Points)
			log.Narrate(ctx, fmt.Sprintf("Added category %q (%d points) as #%d", c.Name, c.Points, id))
			return nil
		}
		if err := tx.SetCategory(c.ID, c.Name, c.Points); err != nil {
			return err
		}
		log.Narrate(ctx, fmt.Sprintf("Updated category #%d to %q (%d points)", c.ID, c.Name, c.Points))
		return nil

	case DeleteCategory:
		if err := tx.RemoveCategory(c.IDToRemove, c.IDToReplace); err != nil {
			return err
		}
		log.Narrate(ctx, fmt.Sprintf("Deleted category #%d; its events moved to #%d", c.IDToRemove, c.IDToReplace))
		return nil

	case UpsertEvent:
		src := model.Source{Locator: c.Source, Kind: v.kind}
		if c.ID == -1 {
			id, err := tx.AddEvent(c.Title, v.date, c.CategoryID, src)
			if err != nil {
				return err
			}
			log.Narrate(ctx, fmt.Sprintf("Added event %q on %s as #%d", c.Title, model.FormatDate(v.date), id))
			if err := tx.IngestEvent(ctx, id); err != nil {
				return err
			}
		} else {
			if err := tx.UpdateEvent(c.ID, c.Title, v.date, c.CategoryID, src); err != nil {
				return err
			}
			log.Narrate(ctx, fmt.Sprintf("Updated event #%d %q", c.ID, c.Title))
		}
		return tx.SoftReload(ctx)

	case DeleteEvent:
		ev, _ := tx.Event(c.ID)
		if err := tx.RemoveEvent(c.ID); err != nil {
			return err
		}
		log.Narrate(ctx, fmt.Sprintf("Deleted event #%d %q", c.ID, ev.Name))
		return tx.SoftReload(ctx)

	case UpdateQuestionMap:
		if err := tx.SetQuestionMap(c.EventID, v.questions); err != nil {
			return err
		}
		log.Narrate(ctx, fmt.Sprintf("Updated the question map of event #%d (%d questions)", c.EventID, v.questions.Len()))
		return tx.SoftReload(ctx)

	default:
		return fmt.Errorf("%w: %T", ErrUnknownOp, v.cmd)
	}
}

// affectsCategories reports whether a command changes the category range.
func affectsCategories(cmd Command) bool {
	switch cmd.(type) {
	case UpsertCategory, DeleteCategory:
		return true
	}
	return false
}

// Run validates and applies cmd under the ledger lock, then publishes the
// resulting snapshot through pub. A nil pub skips publishing. Validation
// failures and held publishing leave the ledger and the spreadsheet
// untouched.
func Run(ctx context.Context, l *ledger.Ledger, pub Publisher, cmd Command) error {
	start := time.Now()
	op := string(cmd.Op())
	err := l.Exec(ctx, func(tx *ledger.Tx) error {
		if pub != nil {
			if err := tx.Held(); err != nil {
				tx.Audit().Narrate(ctx, "Rejected "+op+": "+err.Error())
				return err
			}
		}
		v, err := Validate(cmd, tx)
		if err != nil {
			metrics.RecordValidationFailure(op)
			tx.Audit().Narrate(ctx, "Rejected "+err.Error())
			return err
		}

		applyErr := Apply(ctx, v, tx)
		if applyErr != nil && !errors.Is(applyErr, ledger.ErrSourceIngestion) {
			return applyErr
		}
		if pub == nil {
			return applyErr
		}
		if err := pub.Publish(ctx, tx.Locator(), tx.Snapshot(), affectsCategories(cmd)); err != nil {
			tx.Audit().Error(ctx, "publish failed", logger.String("op", op), logger.Error(err))
			return errors.Join(applyErr, err)
		}
		return applyErr
	})
	metrics.RecordMutation(op, err == nil)
	logger.Get().Debug(ctx, "command finished",
		logger.String("op", op),
		logger.Int("ledger", l.ID()),
		logger.Duration("took", time.Since(start)),
		logger.Bool("ok", err == nil),
	)
	return err
}
