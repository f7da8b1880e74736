// Package ledger maintains the append-only record of credit-affecting events
// and the cached per-account balance projection derived from it.
//
// The ledger is the source of truth. The cached balance exists for cheap
// reads and is updated in the same transaction as every append; Reconcile
// recomputes the balance from full history to detect drift, and Repair
// overwrites the cache from that recomputation as an explicit out-of-band
// operation.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/internlink/workflow_layer/internal/app/metrics"
	"github.com/internlink/workflow_layer/internal/database"
	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

// Service exposes ledger operations over the repository.
type Service struct {
	repo database.RepositoryInterface
	log  *logger.Logger
}

// NewService creates a ledger service.
func NewService(repo database.RepositoryInterface, log *logger.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Apply appends one entry and moves the cached balance by the same amount
// against the given repository scope. Callers that need atomicity with other
// writes pass their transaction-scoped repository; the entry ID and timestamp
// are assigned here if unset.
func Apply(ctx context.Context, repo database.RepositoryInterface, entry *workflow.LedgerEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	if err := repo.AppendLedgerEntry(ctx, entry); err != nil {
		return fmt.Errorf("append ledger entry: %w", err)
	}

	// Relative increment: a read-then-overwrite here would lose credits when
	// two transactions grant an account its first credits concurrently, since
	// there is no row yet for the entity reads to lock.
	if err := repo.AddToBalance(ctx, entry.AccountID, entry.Amount); err != nil {
		return fmt.Errorf("add to balance: %w", err)
	}

	metrics.RecordLedgerAppend(string(entry.Type))
	return nil
}

// Append records a credit-affecting event and updates the cached balance in
// one transaction. This is the only write path; corrections are made by
// appending an offsetting entry.
func (s *Service) Append(ctx context.Context, accountID string, amount int64, entryType workflow.EntryType, description string) (workflow.LedgerEntry, error) {
	entry := workflow.LedgerEntry{
		ID:          uuid.NewString(),
		AccountID:   accountID,
		Amount:      amount,
		Type:        entryType,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}

	err := s.repo.WithinTx(ctx, func(tx database.RepositoryInterface) error {
		return Apply(ctx, tx, &entry)
	})
	if err != nil {
		return workflow.LedgerEntry{}, err
	}

	s.log.WithField("account_id", accountID).
		WithField("amount", amount).
		WithField("type", string(entryType)).
		Info("ledger entry appended")

	return entry, nil
}

// BalanceOf returns the cached balance projection for an account.
func (s *Service) BalanceOf(ctx context.Context, accountID string) (int64, error) {
	return s.repo.GetBalance(ctx, accountID)
}

// Entries returns the account's full ledger history in append order.
func (s *Service) Entries(ctx context.Context, accountID string) ([]workflow.LedgerEntry, error) {
	return s.repo.LedgerEntries(ctx, accountID)
}

// Reconcile recomputes the balance from the account's full ledger history.
// It never writes; drift between this value and BalanceOf is a
// data-integrity alarm handled out of band.
func (s *Service) Reconcile(ctx context.Context, accountID string) (int64, error) {
	entries, err := s.repo.LedgerEntries(ctx, accountID)
	if err != nil {
		return 0, fmt.Errorf("load ledger entries: %w", err)
	}

	var sum int64
	for _, e := range entries {
		sum += e.Amount
	}
	return sum, nil
}

// Audit returns the cached balance and the ledger-derived sum read in one
// transaction, so a transition committing mid-read cannot produce a spurious
// drift report.
func (s *Service) Audit(ctx context.Context, accountID string) (cached, ledgerSum int64, err error) {
	err = s.repo.WithinTx(ctx, func(tx database.RepositoryInterface) error {
		cached, err = tx.GetBalance(ctx, accountID)
		if err != nil {
			return fmt.Errorf("get balance: %w", err)
		}
		entries, err := tx.LedgerEntries(ctx, accountID)
		if err != nil {
			return fmt.Errorf("load ledger entries: %w", err)
		}
		for _, e := range entries {
			ledgerSum += e.Amount
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	return cached, ledgerSum, nil
}

// Repair overwrites the cached balance with the ledger-derived value and
// returns it. Explicit repair operation; never invoked mid-request.
func (s *Service) Repair(ctx context.Context, accountID string) (int64, error) {
	var repaired int64
	err := s.repo.WithinTx(ctx, func(tx database.RepositoryInterface) error {
		entries, err := tx.LedgerEntries(ctx, accountID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			repaired += e.Amount
		}
		return tx.SetBalance(ctx, accountID, repaired)
	})
	if err != nil {
		return 0, err
	}

	s.log.WithField("account_id", accountID).
		WithField("balance", repaired).
		Warn("cached balance repaired from ledger")

	return repaired, nil
}
