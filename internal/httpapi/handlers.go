// Package httpapi exposes the workflow coordinator and ledger over HTTP.
// Authorization is the caller's concern; the API trusts the supplied actor
// ID and enforces data invariants only.
package httpapi

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/mux"

	"github.com/internlink/workflow_layer/internal/database"
	domain "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/internal/httputil"
	"github.com/internlink/workflow_layer/internal/ledger"
	"github.com/internlink/workflow_layer/internal/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

// Handler serves the workflow API.
type Handler struct {
	coordinator *workflow.Coordinator
	ledger      *ledger.Service
	log         *logger.Logger
}

// NewHandler creates an API handler.
func NewHandler(coordinator *workflow.Coordinator, ledgerSvc *ledger.Service, log *logger.Logger) *Handler {
	return &Handler{coordinator: coordinator, ledger: ledgerSvc, log: log}
}

// RegisterRoutes registers API routes on the router.
func (h *Handler) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/transitions", h.handleTransition).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/balance", h.handleBalance).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/ledger", h.handleLedger).Methods(http.MethodGet)
	api.HandleFunc("/accounts/{id}/reconcile", h.handleReconcile).Methods(http.MethodPost)
	api.HandleFunc("/accounts/{id}/repair", h.handleRepair).Methods(http.MethodPost)

	r.HandleFunc("/health", h.handleHealth).Methods(http.MethodGet)
}

// TransitionRequest is the body of POST /api/v1/transitions.
type TransitionRequest struct {
	EntityType     string `json:"entity_type"`
	EntityID       string `json:"entity_id"`
	RequestedState string `json:"requested_state"`
	ActorID        string `json:"actor_id"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if !httputil.DecodeJSON(w, r, &req) {
		return
	}

	req.EntityType = strings.TrimSpace(req.EntityType)
	req.EntityID = strings.TrimSpace(req.EntityID)
	req.RequestedState = strings.TrimSpace(req.RequestedState)
	if req.EntityType == "" || req.EntityID == "" || req.RequestedState == "" {
		httputil.BadRequest(w, "entity_type, entity_id and requested_state are required")
		return
	}

	result, err := h.coordinator.Transition(r.Context(),
		domain.EntityType(req.EntityType), req.EntityID, req.RequestedState, req.ActorID)
	if err != nil {
		writeTransitionError(w, err)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, result)
}

// writeTransitionError maps coordinator errors to wire responses. A rejected
// transition left every entity exactly as it was, so callers can safely
// retry with a different request.
func writeTransitionError(w http.ResponseWriter, err error) {
	code := workflow.ErrorCode(err)
	switch code {
	case workflow.CodeNotFound:
		httputil.WriteError(w, http.StatusNotFound, code, err.Error())
	case workflow.CodeSideEffectFailed:
		httputil.WriteError(w, http.StatusBadGateway, code, err.Error())
	case workflow.CodeInternal:
		httputil.InternalError(w, "transition failed")
	default:
		// Deterministic validation failures.
		status := http.StatusConflict
		if errors.Is(err, workflow.ErrUnknownEntityType) {
			status = http.StatusBadRequest
		}
		httputil.WriteError(w, status, code, err.Error())
	}
}

func (h *Handler) handleBalance(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	balance, err := h.ledger.BalanceOf(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, "failed to load balance")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    balance,
	})
}

func (h *Handler) handleLedger(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	entries, err := h.ledger.Entries(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, "failed to load ledger")
		return
	}
	if entries == nil {
		entries = []domain.LedgerEntry{}
	}

	httputil.WriteJSON(w, http.StatusOK, entries)
}

func (h *Handler) handleReconcile(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	// One transactional read for both values; separate reads could see a
	// transition commit in between and report drift that never existed.
	cached, recomputed, err := h.ledger.Audit(r.Context(), accountID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			httputil.NotFound(w, "account not found")
			return
		}
		httputil.InternalError(w, "failed to reconcile")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"cached":     cached,
		"ledger_sum": recomputed,
		"drift":      cached != recomputed,
	})
}

func (h *Handler) handleRepair(w http.ResponseWriter, r *http.Request) {
	accountID := mux.Vars(r)["id"]

	repaired, err := h.ledger.Repair(r.Context(), accountID)
	if err != nil {
		httputil.InternalError(w, "failed to repair balance")
		return
	}

	httputil.WriteJSON(w, http.StatusOK, map[string]any{
		"account_id": accountID,
		"balance":    repaired,
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
