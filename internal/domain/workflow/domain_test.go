package workflow

import (
	"testing"
	"time"
)

func TestTaskEffectiveStatus(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	cases := []struct {
		name    string
		status  TaskStatus
		dueDate *time.Time
		want    TaskStatus
	}{
		{"no due date", TaskPending, nil, TaskPending},
		{"due date in future", TaskInProgress, &future, TaskInProgress},
		{"pending past due", TaskPending, &past, TaskOverdue},
		{"in progress past due", TaskInProgress, &past, TaskOverdue},
		{"completed past due stays completed", TaskCompleted, &past, TaskCompleted},
		{"inactive past due stays inactive", TaskInactive, &past, TaskInactive},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := Task{Status: tc.status, DueDate: tc.dueDate}
			if got := task.EffectiveStatus(now); got != tc.want {
				t.Fatalf("EffectiveStatus() = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestApplicationStatusTerminal(t *testing.T) {
	if ApplicationPending.Terminal() {
		t.Fatal("PENDING must not be terminal")
	}
	if !ApplicationAccepted.Terminal() || !ApplicationRejected.Terminal() {
		t.Fatal("ACCEPTED and REJECTED must be terminal")
	}
}

func TestEffectString(t *testing.T) {
	cases := map[string]struct {
		effect Effect
		want   string
	}{
		"space": {
			Effect{Kind: EffectEnsureCollaborationSpace, InternshipID: "intern-1"},
			"ensure-collaboration-space(intern-1)",
		},
		"credit": {
			Effect{Kind: EffectGrantCredit, AccountID: "acct-1", Amount: 50, CreditType: EntryBonus},
			"grant-credit(acct-1,50,BONUS)",
		},
		"task status": {
			Effect{Kind: EffectSetTaskStatus, TaskID: "task-1", TaskStatus: TaskCompleted},
			"set-task-status(task-1,COMPLETED)",
		},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			if got := tc.effect.String(); got != tc.want {
				t.Fatalf("String() = %q, want %q", got, tc.want)
			}
		})
	}
}
