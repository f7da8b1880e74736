package database

import (
	"context"
	"sort"
	"sync"

	workflow "github.com/internlink/workflow_layer/internal/domain/workflow"
)

// MemoryRepository is an in-memory implementation of RepositoryInterface for
// testing. WithinTx takes a snapshot of all stores and restores it when fn
// fails, giving the same all-or-nothing semantics as the SQL implementation.
type MemoryRepository struct {
	mu   sync.RWMutex
	txMu sync.Mutex

	applications map[string]workflow.Application
	internships  map[string]workflow.Internship
	spaces       map[string]workflow.CollaborationSpace // keyed by internship ID
	tasks        map[string]workflow.Task
	submissions  map[string]workflow.Submission
	ledger       []workflow.LedgerEntry
	balances     map[string]int64

	// ErrorOn injects an error for the named repository method, consumed on
	// first use. Used to exercise side-effect failure and rollback paths.
	ErrorOn map[string]error
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		applications: make(map[string]workflow.Application),
		internships:  make(map[string]workflow.Internship),
		spaces:       make(map[string]workflow.CollaborationSpace),
		tasks:        make(map[string]workflow.Task),
		submissions:  make(map[string]workflow.Submission),
		balances:     make(map[string]int64),
		ErrorOn:      make(map[string]error),
	}
}

var _ RepositoryInterface = (*MemoryRepository)(nil)

// checkError returns and clears any error injected for the named method.
func (m *MemoryRepository) checkError(method string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.ErrorOn[method]; ok {
		delete(m.ErrorOn, method)
		return err
	}
	return nil
}

type memorySnapshot struct {
	applications map[string]workflow.Application
	internships  map[string]workflow.Internship
	spaces       map[string]workflow.CollaborationSpace
	tasks        map[string]workflow.Task
	submissions  map[string]workflow.Submission
	ledger       []workflow.LedgerEntry
	balances     map[string]int64
}

func (m *MemoryRepository) snapshot() memorySnapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return memorySnapshot{
		applications: copyMap(m.applications),
		internships:  copyMap(m.internships),
		spaces:       copyMap(m.spaces),
		tasks:        copyMap(m.tasks),
		submissions:  copyMap(m.submissions),
		ledger:       append([]workflow.LedgerEntry(nil), m.ledger...),
		balances:     copyMap(m.balances),
	}
}

func (m *MemoryRepository) restore(s memorySnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications = s.applications
	m.internships = s.internships
	m.spaces = s.spaces
	m.tasks = s.tasks
	m.submissions = s.submissions
	m.ledger = s.ledger
	m.balances = s.balances
}

func copyMap[V any](src map[string]V) map[string]V {
	dst := make(map[string]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

// WithinTx serializes transactions and rolls every store back to its
// pre-transaction snapshot when fn fails.
func (m *MemoryRepository) WithinTx(ctx context.Context, fn func(tx RepositoryInterface) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.snapshot()
	if err := fn(m); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// WithSavepoint snapshots the stores and restores them when fn fails, giving
// the same discard-and-retry scope as a SQL savepoint.
func (m *MemoryRepository) WithSavepoint(_ context.Context, fn func() error) error {
	snap := m.snapshot()
	if err := fn(); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

// Applications

func (m *MemoryRepository) CreateApplication(_ context.Context, app *workflow.Application) error {
	if err := m.checkError("CreateApplication"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.applications[app.ID] = *app
	return nil
}

func (m *MemoryRepository) GetApplication(_ context.Context, id string) (*workflow.Application, error) {
	if err := m.checkError("GetApplication"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	app, ok := m.applications[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &app, nil
}

func (m *MemoryRepository) UpdateApplicationStatus(_ context.Context, id string, status workflow.ApplicationStatus) error {
	if err := m.checkError("UpdateApplicationStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	app, ok := m.applications[id]
	if !ok {
		return ErrNotFound
	}
	app.Status = status
	m.applications[id] = app
	return nil
}

func (m *MemoryRepository) CountAcceptedApplications(_ context.Context, internshipID string) (int, error) {
	if err := m.checkError("CountAcceptedApplications"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, app := range m.applications {
		if app.InternshipID == internshipID && app.Status == workflow.ApplicationAccepted {
			count++
		}
	}
	return count, nil
}

// Internships

func (m *MemoryRepository) CreateInternship(_ context.Context, in *workflow.Internship) error {
	if err := m.checkError("CreateInternship"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.internships[in.ID] = *in
	return nil
}

func (m *MemoryRepository) GetInternship(_ context.Context, id string) (*workflow.Internship, error) {
	if err := m.checkError("GetInternship"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	in, ok := m.internships[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &in, nil
}

// Collaboration spaces

func (m *MemoryRepository) GetCollaborationSpace(_ context.Context, internshipID string) (*workflow.CollaborationSpace, error) {
	if err := m.checkError("GetCollaborationSpace"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	space, ok := m.spaces[internshipID]
	if !ok {
		return nil, nil
	}
	return &space, nil
}

func (m *MemoryRepository) CreateCollaborationSpace(_ context.Context, space *workflow.CollaborationSpace) error {
	if err := m.checkError("CreateCollaborationSpace"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.spaces[space.InternshipID]; exists {
		return nil // create-if-absent
	}
	m.spaces[space.InternshipID] = *space
	return nil
}

// Tasks

func (m *MemoryRepository) CreateTask(_ context.Context, task *workflow.Task) error {
	if err := m.checkError("CreateTask"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = *task
	return nil
}

func (m *MemoryRepository) GetTask(_ context.Context, id string) (*workflow.Task, error) {
	if err := m.checkError("GetTask"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	task, ok := m.tasks[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &task, nil
}

func (m *MemoryRepository) UpdateTaskStatus(_ context.Context, id string, status workflow.TaskStatus) error {
	if err := m.checkError("UpdateTaskStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[id]
	if !ok {
		return ErrNotFound
	}
	task.Status = status
	m.tasks[id] = task
	return nil
}

func (m *MemoryRepository) DeleteTask(_ context.Context, id string) error {
	if err := m.checkError("DeleteTask"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tasks[id]; !ok {
		return ErrNotFound
	}
	delete(m.tasks, id)
	return nil
}

func (m *MemoryRepository) CountSubmissions(_ context.Context, taskID string) (int, error) {
	if err := m.checkError("CountSubmissions"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	count := 0
	for _, sub := range m.submissions {
		if sub.TaskID == taskID {
			count++
		}
	}
	return count, nil
}

// Submissions

func (m *MemoryRepository) CreateSubmission(_ context.Context, sub *workflow.Submission) error {
	if err := m.checkError("CreateSubmission"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.submissions[sub.ID] = *sub
	return nil
}

func (m *MemoryRepository) GetSubmission(_ context.Context, id string) (*workflow.Submission, error) {
	if err := m.checkError("GetSubmission"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	sub, ok := m.submissions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &sub, nil
}

func (m *MemoryRepository) UpdateSubmissionStatus(_ context.Context, id string, status workflow.SubmissionStatus) error {
	if err := m.checkError("UpdateSubmissionStatus"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	sub, ok := m.submissions[id]
	if !ok {
		return ErrNotFound
	}
	sub.Status = status
	m.submissions[id] = sub
	return nil
}

func (m *MemoryRepository) LatestSubmission(_ context.Context, taskID string) (*workflow.Submission, error) {
	if err := m.checkError("LatestSubmission"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *workflow.Submission
	for _, sub := range m.submissions {
		if sub.TaskID != taskID {
			continue
		}
		s := sub
		if latest == nil || s.SubmittedAt.After(latest.SubmittedAt) {
			latest = &s
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

// Ledger

func (m *MemoryRepository) AppendLedgerEntry(_ context.Context, entry *workflow.LedgerEntry) error {
	if err := m.checkError("AppendLedgerEntry"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ledger = append(m.ledger, *entry)
	return nil
}

func (m *MemoryRepository) LedgerEntries(_ context.Context, accountID string) ([]workflow.LedgerEntry, error) {
	if err := m.checkError("LedgerEntries"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	var entries []workflow.LedgerEntry
	for _, e := range m.ledger {
		if e.AccountID == accountID {
			entries = append(entries, e)
		}
	}
	return entries, nil
}

func (m *MemoryRepository) GetBalance(_ context.Context, accountID string) (int64, error) {
	if err := m.checkError("GetBalance"); err != nil {
		return 0, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.balances[accountID], nil
}

func (m *MemoryRepository) AddToBalance(_ context.Context, accountID string, delta int64) error {
	if err := m.checkError("AddToBalance"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] += delta
	return nil
}

func (m *MemoryRepository) SetBalance(_ context.Context, accountID string, balance int64) error {
	if err := m.checkError("SetBalance"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[accountID] = balance
	return nil
}

func (m *MemoryRepository) ListAccountIDs(_ context.Context) ([]string, error) {
	if err := m.checkError("ListAccountIDs"); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.balances))
	for id := range m.balances {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
