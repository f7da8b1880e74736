package workflow

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/internlink/workflow_layer/internal/database"
	domain "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/internal/ledger"
	"github.com/internlink/workflow_layer/pkg/logger"
)

// Executor applies side-effect descriptors against the transition's
// repository scope. Effects are idempotent and never run standalone; the
// coordinator invokes them only for an already-validated transition, inside
// the same transaction as the entity-state write.
type Executor struct {
	log *logger.Logger
}

// NewExecutor creates a side-effect executor.
func NewExecutor(log *logger.Logger) *Executor {
	return &Executor{log: log}
}

// Execute applies one effect. The repository passed in is the coordinator's
// transaction scope, so a failure here rolls the whole transition back.
func (e *Executor) Execute(ctx context.Context, repo database.RepositoryInterface, eff domain.Effect) error {
	switch eff.Kind {
	case domain.EffectEnsureCollaborationSpace:
		return e.ensureCollaborationSpace(ctx, repo, eff)
	case domain.EffectGrantCredit:
		return e.grantCredit(ctx, repo, eff)
	case domain.EffectSetTaskStatus:
		return repo.UpdateTaskStatus(ctx, eff.TaskID, eff.TaskStatus)
	default:
		return fmt.Errorf("unknown effect kind: %s", eff.Kind)
	}
}

// ensureCollaborationSpace creates the internship's project room if absent.
// A second acceptance for the same internship re-triggers this, so it must
// be safe to invoke twice.
func (e *Executor) ensureCollaborationSpace(ctx context.Context, repo database.RepositoryInterface, eff domain.Effect) error {
	existing, err := repo.GetCollaborationSpace(ctx, eff.InternshipID)
	if err != nil {
		return fmt.Errorf("get collaboration space: %w", err)
	}
	if existing != nil {
		return nil
	}

	space := &domain.CollaborationSpace{
		ID:           uuid.NewString(),
		InternshipID: eff.InternshipID,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateCollaborationSpace(ctx, space); err != nil {
		return fmt.Errorf("create collaboration space: %w", err)
	}

	e.log.WithField("space_id", space.ID).
		WithField("internship_id", eff.InternshipID).
		Info("collaboration space created")
	return nil
}

// grantCredit appends one ledger entry and moves the cached balance in the
// same transaction. The cached balance is a derived projection; the ledger
// append is what justifies the change.
func (e *Executor) grantCredit(ctx context.Context, repo database.RepositoryInterface, eff domain.Effect) error {
	entry := &domain.LedgerEntry{
		AccountID:   eff.AccountID,
		Amount:      eff.Amount,
		Type:        eff.CreditType,
		Description: eff.Description,
	}
	if err := ledger.Apply(ctx, repo, entry); err != nil {
		return err
	}

	e.log.WithField("account_id", eff.AccountID).
		WithField("amount", eff.Amount).
		WithField("type", string(eff.CreditType)).
		Info("credit granted")
	return nil
}
