// Package workflow defines the entities moved by the internship workflow
// engine: applications, internships, collaboration spaces, tasks, submissions
// and the credit ledger entries their transitions produce.
package workflow

import "time"

// EntityType identifies which status-bearing entity a transition targets.
type EntityType string

const (
	EntityApplication EntityType = "application"
	EntityTask        EntityType = "task"
	EntitySubmission  EntityType = "submission"
)

// ApplicationStatus represents the lifecycle state of an application.
// ACCEPTED and REJECTED are terminal.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationAccepted ApplicationStatus = "ACCEPTED"
	ApplicationRejected ApplicationStatus = "REJECTED"
)

// Terminal reports whether no further transition is permitted.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationAccepted || s == ApplicationRejected
}

// InternshipStatus represents the lifecycle state of an internship.
type InternshipStatus string

const (
	InternshipActive    InternshipStatus = "ACTIVE"
	InternshipInactive  InternshipStatus = "INACTIVE"
	InternshipCompleted InternshipStatus = "COMPLETED"
)

// TaskStatus represents the stored state of a task. TaskOverdue is derived at
// read time and is never persisted; TaskDeleted is a requested state that
// removes the row once the dependents guard passes.
type TaskStatus string

const (
	TaskPending    TaskStatus = "PENDING"
	TaskInProgress TaskStatus = "IN_PROGRESS"
	TaskCompleted  TaskStatus = "COMPLETED"
	TaskInactive   TaskStatus = "INACTIVE"
	TaskOverdue    TaskStatus = "OVERDUE"
	TaskDeleted    TaskStatus = "DELETED"
)

// SubmissionStatus represents the review state of a submission.
type SubmissionStatus string

const (
	SubmissionSubmitted     SubmissionStatus = "SUBMITTED"
	SubmissionApproved      SubmissionStatus = "APPROVED"
	SubmissionRejected      SubmissionStatus = "REJECTED"
	SubmissionNeedsRevision SubmissionStatus = "NEEDS_REVISION"
)

// EntryType classifies a ledger entry.
type EntryType string

const (
	EntryBonus      EntryType = "BONUS"
	EntryTaskReward EntryType = "TASK_REWARD"
	EntryDeposit    EntryType = "DEPOSIT"
	EntrySpend      EntryType = "SPEND"
	EntryAdjustment EntryType = "ADJUSTMENT"
)

// Application is a candidate's request to join an internship.
type Application struct {
	ID           string            `json:"id"`
	ApplicantID  string            `json:"applicant_id"`
	InternshipID string            `json:"internship_id"`
	Status       ApplicationStatus `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
}

// Internship is the container for applications and tasks, owned by a company.
type Internship struct {
	ID        string           `json:"id"`
	CompanyID string           `json:"company_id"`
	Title     string           `json:"title"`
	Capacity  int              `json:"capacity"` // max accepted interns
	Active    bool             `json:"active"`
	Status    InternshipStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
}

// CollaborationSpace is the shared project room created lazily once an
// internship has at least one accepted applicant. At most one per internship.
type CollaborationSpace struct {
	ID           string    `json:"id"`
	InternshipID string    `json:"internship_id"`
	CreatedAt    time.Time `json:"created_at"`
}

// Task is a unit of work inside an internship, assigned to one account.
type Task struct {
	ID           string     `json:"id"`
	InternshipID string     `json:"internship_id"`
	AssigneeID   string     `json:"assignee_id"`
	Title        string     `json:"title"`
	Status       TaskStatus `json:"status"`
	DueDate      *time.Time `json:"due_date,omitempty"`
	CreditValue  int64      `json:"credit_value"` // credits granted on approved submission
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// EffectiveStatus returns the status to display for the task at the given
// time. OVERDUE is computed here from the due date and the stored status;
// it is never written back, so stored and derived state cannot diverge.
func (t Task) EffectiveStatus(now time.Time) TaskStatus {
	if t.DueDate != nil && t.DueDate.Before(now) &&
		t.Status != TaskCompleted && t.Status != TaskInactive {
		return TaskOverdue
	}
	return t.Status
}

// Submission is an assignee's attempt to complete a task. Only the latest
// submission for a task is reviewable.
type Submission struct {
	ID          string           `json:"id"`
	TaskID      string           `json:"task_id"`
	SubmitterID string           `json:"submitter_id"`
	Status      SubmissionStatus `json:"status"`
	SubmittedAt time.Time        `json:"submitted_at"`
}

// LedgerEntry is an immutable record of a single credit-affecting event.
// Corrections are made by appending an offsetting entry, never by mutation.
type LedgerEntry struct {
	ID          string    `json:"id"`
	AccountID   string    `json:"account_id"`
	Amount      int64     `json:"amount"` // signed
	Type        EntryType `json:"type"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
}
