package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/okian/tally/internal/domain/mutation"
)

// CommandDependencies defines the command operations.
type CommandDependencies interface {
	Execute(ctx context.Context, id int, op mutation.Op, f mutation.Fields) error
	ExecuteFromSheet(ctx context.Context, id int, op mutation.Op) error
	LoadQuestionMap(ctx context.Context, id, eventID int) error
	LoadCommand(ctx context.Context, id int, op mutation.Op, targetID int) error
}

// CommandsHandler handles command requests.
type CommandsHandler struct {
	deps CommandDependencies
}

// NewCommandsHandler creates a new commands handler.
func NewCommandsHandler(deps CommandDependencies) *CommandsHandler {
	return &CommandsHandler{deps: deps}
}

// HandleCommand handles POST /ledgers/{id}/commands/{op}. The command's
// fields come from the JSON body, or from the spreadsheet's command
// region when fromSheet=true.
func (h *CommandsHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	const name = "api.command"
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	op, err := mutation.ParseOp(r.PathValue("op"))
	if err != nil {
		writeServiceError(w, name, err)
		return
	}

	fromSheet, _ := strconv.ParseBool(r.URL.Query().Get("fromSheet"))
	if fromSheet {
		writeResult(w, id, h.deps.ExecuteFromSheet(r.Context(), id, op))
		return
	}

	var f mutation.Fields
	if err := json.NewDecoder(r.Body).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		writeServiceError(w, name, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	writeResult(w, id, h.deps.Execute(r.Context(), id, op, f))
}

// HandleLoadQuestions handles POST /ledgers/{id}/questions/{eventId}.
func (h *CommandsHandler) HandleLoadQuestions(w http.ResponseWriter, r *http.Request) {
	const name = "api.load_questions"
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	eventID, err := pathInt(r, "eventId")
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	writeResult(w, id, h.deps.LoadQuestionMap(r.Context(), id, eventID))
}

// HandleLoadCommand handles POST /ledgers/{id}/load/{op}/{targetId}. It
// fills op's command region with the target's current fields.
func (h *CommandsHandler) HandleLoadCommand(w http.ResponseWriter, r *http.Request) {
	const name = "api.load_command"
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	op, err := mutation.ParseOp(r.PathValue("op"))
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	targetID, err := pathInt(r, "targetId")
	if err != nil {
		writeServiceError(w, name, err)
		return
	}
	writeResult(w, id, h.deps.LoadCommand(r.Context(), id, op, targetID))
}
