// Package migrations applies the engine's schema in order.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run in order; each must be idempotent.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS internships (
		id         TEXT PRIMARY KEY,
		company_id TEXT NOT NULL,
		title      TEXT NOT NULL DEFAULT '',
		capacity   INTEGER NOT NULL,
		active     BOOLEAN NOT NULL DEFAULT TRUE,
		status     TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS applications (
		id            TEXT PRIMARY KEY,
		applicant_id  TEXT NOT NULL,
		internship_id TEXT NOT NULL REFERENCES internships(id),
		status        TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_applications_internship_status
		ON applications (internship_id, status)`,

	`CREATE TABLE IF NOT EXISTS collaboration_spaces (
		id            TEXT PRIMARY KEY,
		internship_id TEXT NOT NULL UNIQUE REFERENCES internships(id),
		created_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS tasks (
		id            TEXT PRIMARY KEY,
		internship_id TEXT NOT NULL REFERENCES internships(id),
		assignee_id   TEXT NOT NULL,
		title         TEXT NOT NULL DEFAULT '',
		status        TEXT NOT NULL,
		due_date      TIMESTAMPTZ,
		credit_value  BIGINT NOT NULL DEFAULT 0,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS submissions (
		id           TEXT PRIMARY KEY,
		task_id      TEXT NOT NULL REFERENCES tasks(id),
		submitter_id TEXT NOT NULL,
		status       TEXT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_submissions_task_submitted
		ON submissions (task_id, submitted_at DESC)`,

	`CREATE TABLE IF NOT EXISTS ledger_entries (
		id          TEXT PRIMARY KEY,
		account_id  TEXT NOT NULL,
		amount      BIGINT NOT NULL,
		type        TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		created_at  TIMESTAMPTZ NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_ledger_entries_account
		ON ledger_entries (account_id, created_at)`,

	`CREATE TABLE IF NOT EXISTS account_balances (
		account_id TEXT PRIMARY KEY,
		balance    BIGINT NOT NULL DEFAULT 0
	)`,
}

// Apply executes all migration statements in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

// Count returns the number of migration statements, for tests.
func Count() int {
	return len(statements)
}
