// Package database provides persistence for the workflow engine: entity
// reads and status writes, the append-only credit ledger, and the cached
// balance projection, all behind one repository interface.
package database

import (
	"context"
	"errors"

	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
)

// ErrNotFound is returned when a requested row does not exist.
var ErrNotFound = errors.New("not found")

// RepositoryInterface is the persistence contract the workflow coordinator
// and ledger depend on. WithinTx runs fn against a transaction-scoped
// repository; if fn returns an error every write made inside it is rolled
// back. The coordinator is the only caller that writes entity status fields.
type RepositoryInterface interface {
	// WithinTx executes fn in a single durable transaction.
	WithinTx(ctx context.Context, fn func(tx RepositoryInterface) error) error

	// WithSavepoint scopes fn so its writes can be discarded without
	// aborting the enclosing transaction. Outside a transaction it runs fn
	// directly.
	WithSavepoint(ctx context.Context, fn func() error) error

	// Applications
	CreateApplication(ctx context.Context, app *workflow.Application) error
	GetApplication(ctx context.Context, id string) (*workflow.Application, error)
	UpdateApplicationStatus(ctx context.Context, id string, status workflow.ApplicationStatus) error
	CountAcceptedApplications(ctx context.Context, internshipID string) (int, error)

	// Internships
	CreateInternship(ctx context.Context, in *workflow.Internship) error
	GetInternship(ctx context.Context, id string) (*workflow.Internship, error)

	// Collaboration spaces. Get returns (nil, nil) when absent.
	GetCollaborationSpace(ctx context.Context, internshipID string) (*workflow.CollaborationSpace, error)
	CreateCollaborationSpace(ctx context.Context, space *workflow.CollaborationSpace) error

	// Tasks
	CreateTask(ctx context.Context, task *workflow.Task) error
	GetTask(ctx context.Context, id string) (*workflow.Task, error)
	UpdateTaskStatus(ctx context.Context, id string, status workflow.TaskStatus) error
	DeleteTask(ctx context.Context, id string) error
	CountSubmissions(ctx context.Context, taskID string) (int, error)

	// Submissions
	CreateSubmission(ctx context.Context, sub *workflow.Submission) error
	GetSubmission(ctx context.Context, id string) (*workflow.Submission, error)
	UpdateSubmissionStatus(ctx context.Context, id string, status workflow.SubmissionStatus) error
	LatestSubmission(ctx context.Context, taskID string) (*workflow.Submission, error)

	// Ledger. Entries are append-only; there is no update or delete.
	// AddToBalance moves the cached balance by a relative delta so
	// concurrent first credits to one account cannot overwrite each other;
	// SetBalance overwrites absolutely and is reserved for repair.
	AppendLedgerEntry(ctx context.Context, entry *workflow.LedgerEntry) error
	LedgerEntries(ctx context.Context, accountID string) ([]workflow.LedgerEntry, error)
	GetBalance(ctx context.Context, accountID string) (int64, error)
	AddToBalance(ctx context.Context, accountID string, delta int64) error
	SetBalance(ctx context.Context, accountID string, balance int64) error
	ListAccountIDs(ctx context.Context) ([]string, error)
}
