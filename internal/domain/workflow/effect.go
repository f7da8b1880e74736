package workflow

import "fmt"

// EffectKind names a side effect a validated transition requires.
type EffectKind string

const (
	EffectEnsureCollaborationSpace EffectKind = "ensure-collaboration-space"
	EffectGrantCredit              EffectKind = "grant-credit"
	EffectSetTaskStatus            EffectKind = "set-task-status"
)

// Effect is a fully specified, idempotent side-effect descriptor. The
// validator attaches effects to an allowed transition; the executor applies
// them without re-running validation.
type Effect struct {
	Kind EffectKind `json:"kind"`

	// ensure-collaboration-space
	InternshipID string `json:"internship_id,omitempty"`

	// grant-credit
	AccountID   string    `json:"account_id,omitempty"`
	Amount      int64     `json:"amount,omitempty"`
	CreditType  EntryType `json:"credit_type,omitempty"`
	Description string    `json:"description,omitempty"`

	// set-task-status
	TaskID     string     `json:"task_id,omitempty"`
	TaskStatus TaskStatus `json:"task_status,omitempty"`
}

// String renders a short form used in logs and transition results.
func (e Effect) String() string {
	switch e.Kind {
	case EffectEnsureCollaborationSpace:
		return fmt.Sprintf("%s(%s)", e.Kind, e.InternshipID)
	case EffectGrantCredit:
		return fmt.Sprintf("%s(%s,%d,%s)", e.Kind, e.AccountID, e.Amount, e.CreditType)
	case EffectSetTaskStatus:
		return fmt.Sprintf("%s(%s,%s)", e.Kind, e.TaskID, e.TaskStatus)
	default:
		return string(e.Kind)
	}
}
