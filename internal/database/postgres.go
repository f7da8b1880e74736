package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq" // postgres driver
	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// PostgresRepository implements RepositoryInterface on PostgreSQL.
// Inside WithinTx, entity reads take row locks (SELECT ... FOR UPDATE) so a
// transition holds its rows for the duration of validate-persist-effects.
type PostgresRepository struct {
	db   *sql.DB
	q    queryer
	inTx bool
}

// NewPostgresRepository creates a repository over an open database handle.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, q: db}
}

var _ RepositoryInterface = (*PostgresRepository)(nil)

// Open connects to PostgreSQL and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// WithinTx runs fn against a transaction-scoped repository. Nested calls
// reuse the already-open transaction.
func (r *PostgresRepository) WithinTx(ctx context.Context, fn func(tx RepositoryInterface) error) error {
	if r.inTx {
		return fn(r)
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	scoped := &PostgresRepository{db: r.db, q: tx, inTx: true}
	if err := fn(scoped); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	return tx.Commit()
}

// WithSavepoint scopes fn to a savepoint inside the open transaction, so a
// failed SQL statement can be discarded and retried without poisoning the
// rest of the transaction. Outside a transaction fn runs as-is.
func (r *PostgresRepository) WithSavepoint(ctx context.Context, fn func() error) error {
	if !r.inTx {
		return fn()
	}

	if _, err := r.q.ExecContext(ctx, "SAVEPOINT side_effect"); err != nil {
		return fmt.Errorf("savepoint: %w", err)
	}
	if err := fn(); err != nil {
		if _, rbErr := r.q.ExecContext(ctx, "ROLLBACK TO SAVEPOINT side_effect"); rbErr != nil {
			return fmt.Errorf("%w (rollback to savepoint: %v)", err, rbErr)
		}
		return err
	}
	if _, err := r.q.ExecContext(ctx, "RELEASE SAVEPOINT side_effect"); err != nil {
		return fmt.Errorf("release savepoint: %w", err)
	}
	return nil
}

func (r *PostgresRepository) lockClause() string {
	if r.inTx {
		return " FOR UPDATE"
	}
	return ""
}

// Applications

func (r *PostgresRepository) CreateApplication(ctx context.Context, app *workflow.Application) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO applications (id, applicant_id, internship_id, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, app.ID, app.ApplicantID, app.InternshipID, app.Status, app.CreatedAt)
	return err
}

func (r *PostgresRepository) GetApplication(ctx context.Context, id string) (*workflow.Application, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, applicant_id, internship_id, status, created_at
		FROM applications
		WHERE id = $1`+r.lockClause(), id)

	var app workflow.Application
	if err := row.Scan(&app.ID, &app.ApplicantID, &app.InternshipID, &app.Status, &app.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &app, nil
}

func (r *PostgresRepository) UpdateApplicationStatus(ctx context.Context, id string, status workflow.ApplicationStatus) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE applications SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CountAcceptedApplications(ctx context.Context, internshipID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM applications
		WHERE internship_id = $1 AND status = $2
	`, internshipID, workflow.ApplicationAccepted).Scan(&count)
	return count, err
}

// Internships

func (r *PostgresRepository) CreateInternship(ctx context.Context, in *workflow.Internship) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO internships (id, company_id, title, capacity, active, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, in.ID, in.CompanyID, in.Title, in.Capacity, in.Active, in.Status, in.CreatedAt)
	return err
}

func (r *PostgresRepository) GetInternship(ctx context.Context, id string) (*workflow.Internship, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, company_id, title, capacity, active, status, created_at
		FROM internships
		WHERE id = $1`+r.lockClause(), id)

	var in workflow.Internship
	if err := row.Scan(&in.ID, &in.CompanyID, &in.Title, &in.Capacity, &in.Active, &in.Status, &in.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &in, nil
}

// Collaboration spaces

func (r *PostgresRepository) GetCollaborationSpace(ctx context.Context, internshipID string) (*workflow.CollaborationSpace, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, internship_id, created_at
		FROM collaboration_spaces
		WHERE internship_id = $1
	`, internshipID)

	var space workflow.CollaborationSpace
	if err := row.Scan(&space.ID, &space.InternshipID, &space.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &space, nil
}

func (r *PostgresRepository) CreateCollaborationSpace(ctx context.Context, space *workflow.CollaborationSpace) error {
	// The unique constraint on internship_id makes concurrent creates safe;
	// ON CONFLICT DO NOTHING keeps the operation idempotent.
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO collaboration_spaces (id, internship_id, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (internship_id) DO NOTHING
	`, space.ID, space.InternshipID, space.CreatedAt)
	return err
}

// Tasks

func (r *PostgresRepository) CreateTask(ctx context.Context, task *workflow.Task) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO tasks (id, internship_id, assignee_id, title, status, due_date, credit_value, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, task.ID, task.InternshipID, task.AssigneeID, task.Title, task.Status, task.DueDate, task.CreditValue, task.CreatedAt, task.UpdatedAt)
	return err
}

func (r *PostgresRepository) GetTask(ctx context.Context, id string) (*workflow.Task, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, internship_id, assignee_id, title, status, due_date, credit_value, created_at, updated_at
		FROM tasks
		WHERE id = $1`+r.lockClause(), id)

	var task workflow.Task
	if err := row.Scan(&task.ID, &task.InternshipID, &task.AssigneeID, &task.Title, &task.Status, &task.DueDate, &task.CreditValue, &task.CreatedAt, &task.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &task, nil
}

func (r *PostgresRepository) UpdateTaskStatus(ctx context.Context, id string, status workflow.TaskStatus) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE tasks SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) DeleteTask(ctx context.Context, id string) error {
	result, err := r.q.ExecContext(ctx, `DELETE FROM tasks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) CountSubmissions(ctx context.Context, taskID string) (int, error) {
	var count int
	err := r.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM submissions WHERE task_id = $1
	`, taskID).Scan(&count)
	return count, err
}

// Submissions

func (r *PostgresRepository) CreateSubmission(ctx context.Context, sub *workflow.Submission) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO submissions (id, task_id, submitter_id, status, submitted_at)
		VALUES ($1, $2, $3, $4, $5)
	`, sub.ID, sub.TaskID, sub.SubmitterID, sub.Status, sub.SubmittedAt)
	return err
}

func (r *PostgresRepository) GetSubmission(ctx context.Context, id string) (*workflow.Submission, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, task_id, submitter_id, status, submitted_at
		FROM submissions
		WHERE id = $1`+r.lockClause(), id)

	var sub workflow.Submission
	if err := row.Scan(&sub.ID, &sub.TaskID, &sub.SubmitterID, &sub.Status, &sub.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

func (r *PostgresRepository) UpdateSubmissionStatus(ctx context.Context, id string, status workflow.SubmissionStatus) error {
	result, err := r.q.ExecContext(ctx, `
		UPDATE submissions SET status = $2 WHERE id = $1
	`, id, status)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepository) LatestSubmission(ctx context.Context, taskID string) (*workflow.Submission, error) {
	row := r.q.QueryRowContext(ctx, `
		SELECT id, task_id, submitter_id, status, submitted_at
		FROM submissions
		WHERE task_id = $1
		ORDER BY submitted_at DESC
		LIMIT 1
	`, taskID)

	var sub workflow.Submission
	if err := row.Scan(&sub.ID, &sub.TaskID, &sub.SubmitterID, &sub.Status, &sub.SubmittedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sub, nil
}

// Ledger

func (r *PostgresRepository) AppendLedgerEntry(ctx context.Context, entry *workflow.LedgerEntry) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO ledger_entries (id, account_id, amount, type, description, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, entry.ID, entry.AccountID, entry.Amount, entry.Type, entry.Description, entry.CreatedAt)
	return err
}

func (r *PostgresRepository) LedgerEntries(ctx context.Context, accountID string) ([]workflow.LedgerEntry, error) {
	rows, err := r.q.QueryContext(ctx, `
		SELECT id, account_id, amount, type, description, created_at
		FROM ledger_entries
		WHERE account_id = $1
		ORDER BY created_at, id
	`, accountID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []workflow.LedgerEntry
	for rows.Next() {
		var e workflow.LedgerEntry
		if err := rows.Scan(&e.ID, &e.AccountID, &e.Amount, &e.Type, &e.Description, &e.CreatedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func (r *PostgresRepository) GetBalance(ctx context.Context, accountID string) (int64, error) {
	var balance int64
	err := r.q.QueryRowContext(ctx, `
		SELECT balance FROM account_balances WHERE account_id = $1`+r.lockClause(), accountID).Scan(&balance)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	return balance, err
}

func (r *PostgresRepository) AddToBalance(ctx context.Context, accountID string, delta int64) error {
	// Relative increment in a single statement. Two transactions granting the
	// first credits to one account both insert; the loser's conflicting upsert
	// adds its delta to the winner's committed row instead of overwriting it.
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = account_balances.balance + EXCLUDED.balance
	`, accountID, delta)
	return err
}

func (r *PostgresRepository) SetBalance(ctx context.Context, accountID string, balance int64) error {
	_, err := r.q.ExecContext(ctx, `
		INSERT INTO account_balances (account_id, balance)
		VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = EXCLUDED.balance
	`, accountID, balance)
	return err
}

func (r *PostgresRepository) ListAccountIDs(ctx context.Context) ([]string, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT account_id FROM account_balances ORDER BY account_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
