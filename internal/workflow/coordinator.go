package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/internlink/workflow_layer/internal/app/metrics"
	"github.com/internlink/workflow_layer/internal/database"
	domain "github.com/internlink/workflow_layer/internal/domain/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

// Config holds the coordinator's retry policy for transient side-effect
// failures. Validation failures are never retried.
type Config struct {
	// SideEffectAttempts is the total number of attempts per side effect
	// before the transition is rolled back.
	SideEffectAttempts int
	// SideEffectBackoff is the pause between attempts.
	SideEffectBackoff time.Duration
}

// DefaultConfig returns the default retry policy.
func DefaultConfig() Config {
	return Config{
		SideEffectAttempts: 3,
		SideEffectBackoff:  50 * time.Millisecond,
	}
}

// Coordinator orchestrates validate -> persist-state -> execute-side-effects
// -> append-ledger-entry as one logical unit per entity instance. It is the
// only component that writes entity status fields. Transitions on the same
// entity are serialized by a per-entity-id lock; transitions on different
// entities proceed fully in parallel.
type Coordinator struct {
	repo      database.RepositoryInterface
	validator *Validator
	executor  *Executor
	locks     *keyedMutex
	cfg       Config
	log       *logger.Logger
}

// NewCoordinator creates a workflow coordinator.
func NewCoordinator(repo database.RepositoryInterface, validator *Validator, executor *Executor, cfg Config, log *logger.Logger) *Coordinator {
	if cfg.SideEffectAttempts <= 0 {
		cfg.SideEffectAttempts = DefaultConfig().SideEffectAttempts
	}
	if cfg.SideEffectBackoff <= 0 {
		cfg.SideEffectBackoff = DefaultConfig().SideEffectBackoff
	}
	return &Coordinator{
		repo:      repo,
		validator: validator,
		executor:  executor,
		locks:     newKeyedMutex(),
		cfg:       cfg,
		log:       log,
	}
}

// Result reports a committed transition.
type Result struct {
	EntityType         domain.EntityType `json:"entity_type"`
	EntityID           string            `json:"entity_id"`
	NewState           string            `json:"new_state"`
	SideEffectsApplied []string          `json:"side_effects_applied"`
}

// Transition validates and applies a status change. On success every side
// effect and ledger append has committed with the state write; on error
// nothing has changed. Once the entity lock is acquired the transition runs
// to completion (commit or full rollback), never half-applied.
func (c *Coordinator) Transition(ctx context.Context, entityType domain.EntityType, entityID, requestedState, actorID string) (Result, error) {
	unlock := c.locks.Lock(string(entityType) + ":" + entityID)
	defer unlock()

	var (
		newState string
		applied  []string
	)

	err := c.repo.WithinTx(ctx, func(tx database.RepositoryInterface) error {
		snap, err := c.loadSnapshot(ctx, tx, entityType, entityID)
		if err != nil {
			return err
		}

		decision, err := c.validator.Validate(entityType, requestedState, snap)
		if err != nil {
			return err
		}

		if err := c.persistState(ctx, tx, entityType, entityID, decision.NewState); err != nil {
			return fmt.Errorf("persist state: %w", err)
		}

		// Fixed order: the validator emits the collaboration space before the
		// credit grant, and the executor honors slice order.
		for _, eff := range decision.Effects {
			if err := c.executeWithRetry(ctx, tx, eff); err != nil {
				return fmt.Errorf("%w: %s: %v", ErrSideEffectFailed, eff.Kind, err)
			}
			applied = append(applied, eff.String())
		}

		newState = decision.NewState
		return nil
	})

	log := c.log.WithField("entity_type", string(entityType)).
		WithField("entity_id", entityID).
		WithField("requested_state", requestedState).
		WithField("actor_id", actorID)

	if err != nil {
		metrics.RecordTransition(string(entityType), transitionOutcome(err))
		if IsValidationError(err) {
			log.WithError(err).Debug("transition rejected")
		} else {
			log.WithError(err).Error("transition failed")
		}
		return Result{}, err
	}

	metrics.RecordTransition(string(entityType), "success")
	log.WithField("new_state", newState).Info("transition applied")

	return Result{
		EntityType:         entityType,
		EntityID:           entityID,
		NewState:           newState,
		SideEffectsApplied: applied,
	}, nil
}

// loadSnapshot reads the entity and the aggregates its validation rules
// depend on, inside the transition's transaction scope.
func (c *Coordinator) loadSnapshot(ctx context.Context, tx database.RepositoryInterface, entityType domain.EntityType, entityID string) (Snapshot, error) {
	switch entityType {
	case domain.EntityApplication:
		app, err := tx.GetApplication(ctx, entityID)
		if err != nil {
			return Snapshot{}, err
		}
		internship, err := tx.GetInternship(ctx, app.InternshipID)
		if err != nil {
			return Snapshot{}, err
		}
		accepted, err := tx.CountAcceptedApplications(ctx, app.InternshipID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Application: app, Internship: internship, AcceptedCount: accepted}, nil

	case domain.EntityTask:
		task, err := tx.GetTask(ctx, entityID)
		if err != nil {
			return Snapshot{}, err
		}
		count, err := tx.CountSubmissions(ctx, entityID)
		if err != nil {
			return Snapshot{}, err
		}
		return Snapshot{Task: task, SubmissionCount: count}, nil

	case domain.EntitySubmission:
		sub, err := tx.GetSubmission(ctx, entityID)
		if err != nil {
			return Snapshot{}, err
		}
		task, err := tx.GetTask(ctx, sub.TaskID)
		if err != nil {
			return Snapshot{}, err
		}
		latest, err := tx.LatestSubmission(ctx, sub.TaskID)
		if err != nil {
			if errors.Is(err, database.ErrNotFound) {
				return Snapshot{Submission: sub, Task: task}, nil
			}
			return Snapshot{}, err
		}
		return Snapshot{Submission: sub, Task: task, LatestSubmissionID: latest.ID}, nil

	default:
		return Snapshot{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
}

// persistState writes the validated new state. A task transition to DELETED
// removes the row; the dependents guard has already passed.
func (c *Coordinator) persistState(ctx context.Context, tx database.RepositoryInterface, entityType domain.EntityType, entityID, newState string) error {
	switch entityType {
	case domain.EntityApplication:
		return tx.UpdateApplicationStatus(ctx, entityID, domain.ApplicationStatus(newState))
	case domain.EntityTask:
		if domain.TaskStatus(newState) == domain.TaskDeleted {
			return tx.DeleteTask(ctx, entityID)
		}
		return tx.UpdateTaskStatus(ctx, entityID, domain.TaskStatus(newState))
	case domain.EntitySubmission:
		return tx.UpdateSubmissionStatus(ctx, entityID, domain.SubmissionStatus(newState))
	default:
		return fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
}

// executeWithRetry retries a single side effect within the transaction scope.
// Each attempt runs under a savepoint: a failed SQL statement aborts the
// enclosing Postgres transaction, so without the savepoint every later
// attempt could only fail again. Exhaustion surfaces the last error; the
// coordinator then rolls back the state write rather than leave a transition
// partially applied.
func (c *Coordinator) executeWithRetry(ctx context.Context, tx database.RepositoryInterface, eff domain.Effect) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.SideEffectAttempts; attempt++ {
		if attempt > 1 {
			metrics.RecordSideEffectRetry()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(c.cfg.SideEffectBackoff):
			}
		}

		lastErr = tx.WithSavepoint(ctx, func() error {
			return c.executor.Execute(ctx, tx, eff)
		})
		if lastErr == nil {
			return nil
		}
		c.log.WithError(lastErr).
			WithField("effect", eff.String()).
			WithField("attempt", attempt).
			Warn("side effect attempt failed")
	}
	return lastErr
}

func transitionOutcome(err error) string {
	if IsValidationError(err) {
		return "rejected"
	}
	return "failed"
}
