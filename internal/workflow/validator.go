// Package workflow implements the transition engine: a pure validator that
// decides legality and enumerates side effects, an idempotent side-effect
// executor, and a coordinator that applies transitions atomically under
// per-entity serialization.
package workflow

import (
	"fmt"

	domain "github.com/internlink/workflow_layer/internal/domain/workflow"
)

// Validator computes the legality of a requested transition from an entity
// snapshot. It performs no I/O; side effects are returned as descriptors for
// the executor.
type Validator struct {
	// AcceptanceBonus is the fixed credit granted to an applicant on
	// acceptance.
	AcceptanceBonus int64
}

// NewValidator creates a validator with the configured acceptance bonus.
func NewValidator(acceptanceBonus int64) *Validator {
	return &Validator{AcceptanceBonus: acceptanceBonus}
}

// Snapshot carries the state the validator needs: the entity itself plus the
// aggregates its rules depend on. The coordinator loads it inside the
// transition's transaction.
type Snapshot struct {
	Application   *domain.Application
	Internship    *domain.Internship
	AcceptedCount int

	Task            *domain.Task
	SubmissionCount int

	Submission         *domain.Submission
	LatestSubmissionID string
}

// Decision is the outcome of a successful validation: the state to persist
// and the side effects the transition requires, in execution order.
type Decision struct {
	NewState string
	Effects  []domain.Effect
}

// Validate checks the requested transition and enumerates its side effects.
// Returns ErrInvalidTransition, ErrCapacityExceeded, ErrAlreadyReviewed or
// ErrHasDependents when the request is illegal.
func (v *Validator) Validate(entityType domain.EntityType, requestedState string, snap Snapshot) (Decision, error) {
	switch entityType {
	case domain.EntityApplication:
		return v.validateApplication(requestedState, snap)
	case domain.EntityTask:
		return v.validateTask(requestedState, snap)
	case domain.EntitySubmission:
		return v.validateSubmission(requestedState, snap)
	default:
		return Decision{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
}

// validateApplication permits PENDING->ACCEPTED and PENDING->REJECTED only.
// ACCEPTED and REJECTED are terminal. Acceptance is capacity-checked and
// annotated with the collaboration-space and bonus-credit effects, space
// first so a credit is never recorded against a room that failed to
// materialize.
func (v *Validator) validateApplication(requestedState string, snap Snapshot) (Decision, error) {
	requested := domain.ApplicationStatus(requestedState)
	app := snap.Application

	if app.Status.Terminal() {
		return Decision{}, fmt.Errorf("%w: application %s is %s", ErrInvalidTransition, app.ID, app.Status)
	}
	if requested != domain.ApplicationAccepted && requested != domain.ApplicationRejected {
		return Decision{}, fmt.Errorf("%w: application %s -> %s", ErrInvalidTransition, app.Status, requestedState)
	}

	if requested == domain.ApplicationRejected {
		return Decision{NewState: string(domain.ApplicationRejected)}, nil
	}

	if snap.AcceptedCount >= snap.Internship.Capacity {
		return Decision{}, fmt.Errorf("%w: internship %s has %d of %d accepted",
			ErrCapacityExceeded, snap.Internship.ID, snap.AcceptedCount, snap.Internship.Capacity)
	}

	return Decision{
		NewState: string(domain.ApplicationAccepted),
		Effects: []domain.Effect{
			{
				Kind:         domain.EffectEnsureCollaborationSpace,
				InternshipID: app.InternshipID,
			},
			{
				Kind:        domain.EffectGrantCredit,
				AccountID:   app.ApplicantID,
				Amount:      v.AcceptanceBonus,
				CreditType:  domain.EntryBonus,
				Description: fmt.Sprintf("acceptance bonus for internship %s", app.InternshipID),
			},
		},
	}, nil
}

// validateTask permits PENDING->IN_PROGRESS, IN_PROGRESS->COMPLETED, a reset
// to PENDING from anywhere, and a soft-disable to INACTIVE from any
// non-terminal state. OVERDUE is derived at read time and never a requested
// state. DELETED is blocked while submissions exist.
func (v *Validator) validateTask(requestedState string, snap Snapshot) (Decision, error) {
	requested := domain.TaskStatus(requestedState)
	task := snap.Task

	switch requested {
	case domain.TaskOverdue:
		return Decision{}, fmt.Errorf("%w: OVERDUE is computed from the due date, not settable", ErrInvalidTransition)

	case domain.TaskPending:
		if task.Status == domain.TaskPending {
			return Decision{}, fmt.Errorf("%w: task already PENDING", ErrInvalidTransition)
		}
		return Decision{NewState: string(domain.TaskPending)}, nil

	case domain.TaskInProgress:
		if task.Status != domain.TaskPending {
			return Decision{}, fmt.Errorf("%w: task %s -> IN_PROGRESS", ErrInvalidTransition, task.Status)
		}
		return Decision{NewState: string(domain.TaskInProgress)}, nil

	case domain.TaskCompleted:
		if task.Status != domain.TaskInProgress {
			return Decision{}, fmt.Errorf("%w: task %s -> COMPLETED", ErrInvalidTransition, task.Status)
		}
		return Decision{NewState: string(domain.TaskCompleted)}, nil

	case domain.TaskInactive:
		if task.Status == domain.TaskCompleted || task.Status == domain.TaskInactive {
			return Decision{}, fmt.Errorf("%w: task %s -> INACTIVE", ErrInvalidTransition, task.Status)
		}
		return Decision{NewState: string(domain.TaskInactive)}, nil

	case domain.TaskDeleted:
		if snap.SubmissionCount > 0 {
			return Decision{}, fmt.Errorf("%w: task %s has %d submissions", ErrHasDependents, task.ID, snap.SubmissionCount)
		}
		return Decision{NewState: string(domain.TaskDeleted)}, nil

	default:
		return Decision{}, fmt.Errorf("%w: unknown task state %q", ErrInvalidTransition, requestedState)
	}
}

// validateSubmission permits SUBMITTED->APPROVED/REJECTED/NEEDS_REVISION on
// the task's current (latest) submission only. A submission that has already
// left SUBMITTED fails with ErrAlreadyReviewed, so the loser of a concurrent
// duplicate review can never double-credit. Approval is annotated with the
// task-reward credit and the task-completion write.
func (v *Validator) validateSubmission(requestedState string, snap Snapshot) (Decision, error) {
	requested := domain.SubmissionStatus(requestedState)
	sub := snap.Submission

	switch requested {
	case domain.SubmissionApproved, domain.SubmissionRejected, domain.SubmissionNeedsRevision:
	default:
		return Decision{}, fmt.Errorf("%w: submission %s -> %s", ErrInvalidTransition, sub.Status, requestedState)
	}

	if sub.Status != domain.SubmissionSubmitted {
		return Decision{}, fmt.Errorf("%w: submission %s is %s", ErrAlreadyReviewed, sub.ID, sub.Status)
	}
	if snap.LatestSubmissionID != sub.ID {
		return Decision{}, fmt.Errorf("%w: submission %s superseded by %s", ErrInvalidTransition, sub.ID, snap.LatestSubmissionID)
	}

	if requested != domain.SubmissionApproved {
		return Decision{NewState: string(requested)}, nil
	}

	return Decision{
		NewState: string(domain.SubmissionApproved),
		Effects: []domain.Effect{
			{
				Kind:        domain.EffectGrantCredit,
				AccountID:   sub.SubmitterID,
				Amount:      snap.Task.CreditValue,
				CreditType:  domain.EntryTaskReward,
				Description: fmt.Sprintf("reward for task %s", sub.TaskID),
			},
			{
				Kind:       domain.EffectSetTaskStatus,
				TaskID:     sub.TaskID,
				TaskStatus: domain.TaskCompleted,
			},
		},
	}, nil
}
