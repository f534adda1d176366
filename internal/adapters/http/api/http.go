// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	service "github.com/okian/tally/internal/app"
	"github.com/okian/tally/internal/domain/ledger"
	"github.com/okian/tally/internal/domain/model"
	"github.com/okian/tally/internal/domain/mutation"
	"github.com/okian/tally/internal/domain/sheetsync"
	"github.com/okian/tally/internal/domain/types"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to the service.
type Dependencies interface {
	StatsProvider

	Ledgers() ([]types.LedgerSummary, error)
	Ledger(id int) (types.LedgerSummary, error)
	Replace(ctx context.Context, s model.Settings) (model.Settings, error)
	RefreshAll(ctx context.Context) ([]types.Result, error)
	Refresh(ctx context.Context, id int) error
	Standings(id, limit int) ([]types.Standing, error)
	Execute(ctx context.Context, id int, op mutation.Op, f mutation.Fields) error
	ExecuteFromSheet(ctx context.Context, id int, op mutation.Op) error
	LoadQuestionMap(ctx context.Context, id, eventID int) error
	LoadCommand(ctx context.Context, id int, op mutation.Op, targetID int) error
}

// Server wires HTTP routes for the business API.
type Server struct {
	opsHandler       *OpsHandler
	ledgersHandler   *LedgersHandler
	standingsHandler *StandingsHandler
	commandsHandler  *CommandsHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, maxLimit int) *Server {
	return &Server{
		opsHandler:       NewOpsHandler(deps),
		ledgersHandler:   NewLedgersHandler(deps),
		standingsHandler: NewStandingsHandler(deps, maxLimit),
		commandsHandler:  NewCommandsHandler(deps),
	}
}

// Register attaches all HTTP routes to mux. Every route except /metrics
// is instrumented.
func (s *Server) Register(mux *http.ServeMux) {
	routes := []struct {
		pattern string
		handler http.HandlerFunc
	}{
		{"GET /healthz", s.opsHandler.HandleHealth},
		{"GET /stats", s.opsHandler.HandleStats},
		{"GET /ledgers", s.ledgersHandler.HandleList},
		{"POST /ledgers", s.ledgersHandler.HandleRefreshAll},
		{"GET /ledgers/{id}", s.ledgersHandler.HandleGet},
		{"POST /ledgers/{id}", s.ledgersHandler.HandleRefresh},
		{"PUT /ledgers/{id}", s.ledgersHandler.HandleReplace},
		{"GET /ledgers/{id}/standings", s.standingsHandler.HandleGetStandings},
		{"POST /ledgers/{id}/commands/{op}", s.commandsHandler.HandleCommand},
		{"POST /ledgers/{id}/questions/{eventId}", s.commandsHandler.HandleLoadQuestions},
		{"POST /ledgers/{id}/load/{op}/{targetId}", s.commandsHandler.HandleLoadCommand},
	}
	for _, rt := range routes {
		mux.HandleFunc(rt.pattern, instrument(rt.handler))
	}
	mux.HandleFunc("GET /metrics", s.opsHandler.HandleMetrics)
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// statusFor maps service errors to an HTTP status and error code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrBadRequest),
		errors.Is(err, ErrInvalidID),
		errors.Is(err, mutation.ErrValidation),
		errors.Is(err, mutation.ErrMissingField),
		errors.Is(err, mutation.ErrUnknownOp):
		return http.StatusBadRequest, "bad_request"
	case errors.Is(err, service.ErrUnknownLedger),
		errors.Is(err, ledger.ErrEventNotFound),
		errors.Is(err, ledger.ErrCategoryNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, ledger.ErrPublishHeld):
		return http.StatusConflict, "publish_held"
	case errors.Is(err, service.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, ledger.ErrNotReady),
		errors.Is(err, service.ErrNotStarted):
		return http.StatusServiceUnavailable, "not_ready"
	case errors.Is(err, sheetsync.ErrPublish),
		errors.Is(err, sheetsync.ErrLoad),
		errors.Is(err, ledger.ErrReload),
		errors.Is(err, ledger.ErrSourceIngestion):
		return http.StatusBadGateway, "upstream_error"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func writeServiceError(w http.ResponseWriter, op string, err error) {
	status, code := statusFor(err)
	writeError(w, status, code, fmt.Errorf("%s: %w", op, err))
}

// pathInt reads an integer path value.
func pathInt(r *http.Request, name string) (int, error) {
	raw := r.PathValue(name)
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %q", ErrInvalidID, name, raw)
	}
	return n, nil
}
