package mutation

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/okian/tally/internal/domain/model"
)

// View is the read-only ledger state validation depends on.
type View interface {
	CategoryCount() int
	EventCount() int
}

// Validated is a command that passed validation, with its parsed values.
// Only Validate produces one.
type Validated struct {
	cmd       Command
	date      time.Time
	kind      model.SourceKind
	questions model.QuestionMap
}

// Command returns the validated command.
func (v Validated) Command() Command { return v.cmd }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("sourcekind", func(fl validator.FieldLevel) bool {
		_, err := model.ParseSourceKind(fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("attribute", func(fl validator.FieldLevel) bool {
		_, err := model.ParseAttribute(fl.Field().String())
		return err == nil
	})
	return v
}

// Validate checks cmd against its field rules and the ledger view. It never
// modifies anything; failures are *ValidationError.
func Validate(cmd Command, view View) (Validated, error) {
	if err := validate.Struct(cmd); err != nil {
		var ve validator.ValidationErrors
		if errors.As(err, &ve) && len(ve) > 0 {
			return Validated{}, invalid(cmd.Op(), ve[0].Field(), "failed %q rule", ve[0].Tag())
		}
		return Validated{}, invalid(cmd.Op(), "", "%v", err)
	}

	out := Validated{cmd: cmd}
	switch c := cmd.(type) {
	case UpsertCategory:
		if c.ID >= view.CategoryCount() {
			return Validated{}, invalid(c.Op(), "ID", "category %d does not exist", c.ID)
		}
	case DeleteCategory:
		n := view.CategoryCount()
		if c.IDToRemove >= n {
			return Validated{}, invalid(c.Op(), "IDToRemove", "category %d does not exist", c.IDToRemove)
		}
		if c.IDToReplace >= n {
			return Validated{}, invalid(c.Op(), "IDToReplace", "category %d does not exist", c.IDToReplace)
		}
	case UpsertEvent:
		if c.ID >= view.EventCount() {
			return Validated{}, invalid(c.Op(), "ID", "event %d does not exist", c.ID)
		}
		date, err := model.ParseDate(c.RawDate)
		if err != nil {
			return Validated{}, invalid(c.Op(), "RawDate", "%v", err)
		}
		kind, _ := model.ParseSourceKind(c.SourceKind)
		if c.CategoryID >= view.CategoryCount() {
			return Validated{}, invalid(c.Op(), "CategoryID", "category %d does not exist", c.CategoryID)
		}
		out.date, out.kind = date, kind
	case DeleteEvent:
		if c.ID >= view.EventCount() {
			return Validated{}, invalid(c.Op(), "ID", "event %d does not exist", c.ID)
		}
	case UpdateQuestionMap:
		if c.EventID >= view.EventCount() {
			return Validated{}, invalid(c.Op(), "EventID", "event %d does not exist", c.EventID)
		}
		var q model.QuestionMap
		for _, p := range c.Pairs {
			attr, _ := model.ParseAttribute(p.Attribute)
			q.Set(p.QuestionID, attr)
		}
		out.questions = q
	default:
		return Validated{}, fmt.Errorf("%w: %T", ErrUnknownOp, cmd)
	}
	return out, nil
}
