package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internlink/workflow_layer/internal/database"
	domain "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/internal/ledger"
	"github.com/internlink/workflow_layer/internal/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

func newTestServer(t *testing.T) (*mux.Router, *database.MemoryRepository) {
	t.Helper()
	repo := database.NewMemoryRepository()
	log := logger.New("httpapi-test", "error")

	coordinator := workflow.NewCoordinator(
		repo,
		workflow.NewValidator(50),
		workflow.NewExecutor(log),
		workflow.Config{SideEffectAttempts: 1, SideEffectBackoff: time.Millisecond},
		log,
	)
	ledgerSvc := ledger.NewService(repo, log)

	router := mux.NewRouter()
	NewHandler(coordinator, ledgerSvc, log).RegisterRoutes(router)
	return router, repo
}

func doJSON(t *testing.T, router *mux.Router, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func seedAcceptable(t *testing.T, repo *database.MemoryRepository) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, repo.CreateInternship(ctx, &domain.Internship{
		ID: "intern-1", CompanyID: "company-1", Capacity: 1,
		Active: true, Status: domain.InternshipActive, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.CreateApplication(ctx, &domain.Application{
		ID: "app-1", ApplicantID: "user-1", InternshipID: "intern-1",
		Status: domain.ApplicationPending, CreatedAt: time.Now().UTC(),
	}))
}

func TestHandleTransition(t *testing.T) {
	router, repo := newTestServer(t)
	seedAcceptable(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", TransitionRequest{
		EntityType:     "application",
		EntityID:       "app-1",
		RequestedState: "ACCEPTED",
		ActorID:        "company-1",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var result workflow.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ACCEPTED", result.NewState)
	assert.Len(t, result.SideEffectsApplied, 2)
}

func TestHandleTransitionErrors(t *testing.T) {
	router, repo := newTestServer(t)
	seedAcceptable(t, repo)

	// Terminal-state violation surfaces as a conflict.
	rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", TransitionRequest{
		EntityType: "application", EntityID: "app-1", RequestedState: "ACCEPTED", ActorID: "company-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	cases := []struct {
		name       string
		req        TransitionRequest
		wantStatus int
		wantCode   string
	}{
		{
			name:       "terminal application",
			req:        TransitionRequest{EntityType: "application", EntityID: "app-1", RequestedState: "REJECTED", ActorID: "company-1"},
			wantStatus: http.StatusConflict,
			wantCode:   workflow.CodeInvalidTransition,
		},
		{
			name:       "unknown entity type",
			req:        TransitionRequest{EntityType: "company", EntityID: "c-1", RequestedState: "ACTIVE", ActorID: "admin"},
			wantStatus: http.StatusBadRequest,
			wantCode:   workflow.CodeInvalidTransition,
		},
		{
			name:       "missing entity",
			req:        TransitionRequest{EntityType: "task", EntityID: "missing", RequestedState: "IN_PROGRESS", ActorID: "user-1"},
			wantStatus: http.StatusNotFound,
			wantCode:   workflow.CodeNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", tc.req)
			assert.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			var body map[string]any
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tc.wantCode, body["error_code"])
		})
	}
}

func TestHandleTransitionBadRequests(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", TransitionRequest{
		EntityType: "application",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/transitions", bytes.NewBufferString("{not json"))
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleTransitionSideEffectFailure(t *testing.T) {
	router, repo := newTestServer(t)
	seedAcceptable(t, repo)

	repo.ErrorOn["CreateCollaborationSpace"] = fmt.Errorf("store unavailable")

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", TransitionRequest{
		EntityType: "application", EntityID: "app-1", RequestedState: "ACCEPTED", ActorID: "company-1",
	})
	assert.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, workflow.CodeSideEffectFailed, body["error_code"])
}

func TestHandleBalanceAndLedger(t *testing.T) {
	router, repo := newTestServer(t)
	seedAcceptable(t, repo)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/transitions", TransitionRequest{
		EntityType: "application", EntityID: "app-1", RequestedState: "ACCEPTED", ActorID: "company-1",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/accounts/user-1/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var balance map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &balance))
	assert.Equal(t, float64(50), balance["balance"])

	rec = doJSON(t, router, http.MethodGet, "/api/v1/accounts/user-1/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []domain.LedgerEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, domain.EntryBonus, entries[0].Type)

	// An account with no history still serves an empty ledger.
	rec = doJSON(t, router, http.MethodGet, "/api/v1/accounts/nobody/ledger", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestHandleReconcileAndRepair(t *testing.T) {
	router, repo := newTestServer(t)
	ctx := context.Background()

	require.NoError(t, repo.AppendLedgerEntry(ctx, &domain.LedgerEntry{
		ID: "e-1", AccountID: "user-1", Amount: 40, Type: domain.EntryTaskReward, CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, repo.SetBalance(ctx, "user-1", 99))

	rec := doJSON(t, router, http.MethodPost, "/api/v1/accounts/user-1/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var recon map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recon))
	assert.Equal(t, float64(99), recon["cached"])
	assert.Equal(t, float64(40), recon["ledger_sum"])
	assert.Equal(t, true, recon["drift"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/accounts/user-1/repair", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var repaired map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &repaired))
	assert.Equal(t, float64(40), repaired["balance"])

	rec = doJSON(t, router, http.MethodPost, "/api/v1/accounts/user-1/reconcile", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recon))
	assert.Equal(t, false, recon["drift"])
}

func TestHandleHealth(t *testing.T) {
	router, _ := newTestServer(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
