package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/types"
)

// LedgersDependencies defines the ledger listing and refresh operations.
type LedgersDependencies interface {
	Ledgers() ([]types.LedgerSummary, error)
	Ledger(id int) (types.LedgerSummary, error)
	Replace(ctx context.Context, s model.Settings) (model.Settings, error)
	RefreshAll(ctx context.Context) ([]types.Result, error)
	Refresh(ctx context.Context, id int) error
}

// LedgersHandler handles ledger requests.
type LedgersHandler struct {
	deps LedgersDependencies
}

// NewLedgersHandler creates a new ledgers handler.
func NewLedgersHandler(deps LedgersDependencies) *LedgersHandler {
	return &LedgersHandler{deps: deps}
}

// HandleList handles GET /ledgers.
func (h *LedgersHandler) HandleList(w http.ResponseWriter, _ *http.Request) {
	ledgers, err := h.deps.Ledgers()
	if err != nil {
		writeServiceError(w, "api.list_ledgers", err)
		return
	}
	writeJSON(w, http.StatusOK, ledgers)
}

// HandleRefreshAll handles POST /ledgers. Each ledger reports its own
// result; the request succeeds even when some ledgers fail.
func (h *LedgersHandler) HandleRefreshAll(w http.ResponseWriter, r *http.Request) {
	results, err := h.deps.RefreshAll(r.Context())
	if err != nil {
		writeServiceError(w, "api.refresh_all", err)
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// HandleGet handles GET /ledgers/{id}.
func (h *LedgersHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	const op = "api.get_ledger"
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	sum, err := h.deps.Ledger(id)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, sum)
}

// HandleRefresh handles POST /ledgers/{id}.
func (h *LedgersHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, "api.refresh_ledger", err)
		return
	}
	writeResult(w, id, h.deps.Refresh(r.Context(), id))
}

// HandleReplace handles PUT /ledgers/{id} with a settings body.
func (h *LedgersHandler) HandleReplace(w http.ResponseWriter, r *http.Request) {
	const op = "api.replace_ledger"
	id, err := pathInt(r, "id")
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	var s model.Settings
	if err := json.NewDecoder(r.Body).Decode(&s); err != nil {
		writeServiceError(w, op, fmt.Errorf("%w: %w", ErrBadRequest, err))
		return
	}
	s.ID = id
	saved, err := h.deps.Replace(r.Context(), s)
	if err != nil {
		writeServiceError(w, op, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// writeResult renders {"ok","error"} with the status matching err.
func writeResult(w http.ResponseWriter, id int, err error) {
	status := http.StatusOK
	if err != nil {
		status, _ = statusFor(err)
	}
	writeJSON(w, status, types.ResultOf(id, err))
}
