package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internlink/workflow_layer/internal/database"
	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

func newTestService() (*Service, *database.MemoryRepository) {
	repo := database.NewMemoryRepository()
	return NewService(repo, logger.New("ledger-test", "error")), repo
}

func TestAppendMovesBalanceWithEntry(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	entry, err := svc.Append(ctx, "acct-1", 50, workflow.EntryBonus, "acceptance bonus")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.False(t, entry.CreatedAt.IsZero())

	balance, err := svc.BalanceOf(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	entries, err := svc.Entries(ctx, "acct-1")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, entry.ID, entries[0].ID)
}

func TestAppendNegativeAmounts(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	_, err := svc.Append(ctx, "acct-1", 100, workflow.EntryDeposit, "top up")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "acct-1", -30, workflow.EntrySpend, "redeem")
	require.NoError(t, err)

	balance, err := svc.BalanceOf(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(70), balance)

	recomputed, err := svc.Reconcile(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, balance, recomputed)
}

func TestAppendRollsBackOnBalanceWriteFailure(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	repo.ErrorOn["AddToBalance"] = assert.AnError
	_, err := svc.Append(ctx, "acct-1", 50, workflow.EntryBonus, "")
	require.Error(t, err)

	// Neither the entry nor the balance survived.
	entries, err := svc.Entries(ctx, "acct-1")
	require.NoError(t, err)
	assert.Empty(t, entries)

	balance, err := svc.BalanceOf(ctx, "acct-1")
	require.NoError(t, err)
	assert.Zero(t, balance)
}

func TestReconcileNeverWrites(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	_, err := svc.Append(ctx, "acct-1", 40, workflow.EntryTaskReward, "")
	require.NoError(t, err)

	// Corrupt the cache behind the service's back.
	require.NoError(t, repo.SetBalance(ctx, "acct-1", 999))

	recomputed, err := svc.Reconcile(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(40), recomputed)

	cached, err := svc.BalanceOf(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(999), cached, "reconcile must not touch the cache")
}

func TestRepairOverwritesCache(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	_, err := svc.Append(ctx, "acct-1", 40, workflow.EntryTaskReward, "")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "acct-1", 10, workflow.EntryBonus, "")
	require.NoError(t, err)

	require.NoError(t, repo.SetBalance(ctx, "acct-1", -5))

	repaired, err := svc.Repair(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), repaired)

	cached, err := svc.BalanceOf(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(50), cached)
}

func TestAppendAccumulatesFirstCredits(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	// Two grants to a brand-new account must both land in the cache; the
	// balance moves by relative deltas, never by overwriting a stale read.
	_, err := svc.Append(ctx, "acct-new", 50, workflow.EntryBonus, "")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "acct-new", 20, workflow.EntryTaskReward, "")
	require.NoError(t, err)

	cached, ledgerSum, err := svc.Audit(ctx, "acct-new")
	require.NoError(t, err)
	assert.Equal(t, int64(70), cached)
	assert.Equal(t, int64(70), ledgerSum)
}

func TestAuditReportsDrift(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()

	_, err := svc.Append(ctx, "acct-1", 40, workflow.EntryTaskReward, "")
	require.NoError(t, err)

	cached, ledgerSum, err := svc.Audit(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, cached, ledgerSum)

	require.NoError(t, repo.SetBalance(ctx, "acct-1", 999))

	cached, ledgerSum, err = svc.Audit(ctx, "acct-1")
	require.NoError(t, err)
	assert.Equal(t, int64(999), cached)
	assert.Equal(t, int64(40), ledgerSum)
}

func TestBalanceOfUnknownAccountIsZero(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService()

	balance, err := svc.BalanceOf(ctx, "nobody")
	require.NoError(t, err)
	assert.Zero(t, balance)
}
