package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

func TestSweepCountsDriftedAccounts(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService()
	r := NewReconciler(svc, "@every 1h", logger.New("reconciler-test", "error"))

	_, err := svc.Append(ctx, "acct-clean", 10, workflow.EntryBonus, "")
	require.NoError(t, err)
	_, err = svc.Append(ctx, "acct-drifted", 10, workflow.EntryBonus, "")
	require.NoError(t, err)

	assert.Equal(t, 0, r.sweep(ctx))

	require.NoError(t, repo.SetBalance(ctx, "acct-drifted", 999))
	assert.Equal(t, 1, r.sweep(ctx))

	// Repair clears the drift on the next pass.
	_, err = svc.Repair(ctx, "acct-drifted")
	require.NoError(t, err)
	assert.Equal(t, 0, r.sweep(ctx))
}

func TestReconcilerStartStop(t *testing.T) {
	svc, _ := newTestService()
	r := NewReconciler(svc, "@every 1h", logger.New("reconciler-test", "error"))

	require.NoError(t, r.Start())
	r.Stop()
}

func TestReconcilerBadSchedule(t *testing.T) {
	svc, _ := newTestService()
	r := NewReconciler(svc, "not a schedule", logger.New("reconciler-test", "error"))
	assert.Error(t, r.Start())
}
