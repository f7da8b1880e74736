package ledger

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/internlink/workflow_layer/internal/app/metrics"
	"github.com/internlink/workflow_layer/pkg/logger"
)

// Reconciler periodically verifies that every account's cached balance equals
// the sum of its ledger entries. Drift is logged and exported as a metric;
// it is never auto-repaired here.
type Reconciler struct {
	svc      *Service
	log      *logger.Logger
	schedule string
	cron     *cron.Cron
	timeout  time.Duration
}

// NewReconciler creates a reconciliation sweep on the given cron schedule
// (for example "@every 5m").
func NewReconciler(svc *Service, schedule string, log *logger.Logger) *Reconciler {
	return &Reconciler{
		svc:      svc,
		log:      log,
		schedule: schedule,
		cron:     cron.New(),
		timeout:  time.Minute,
	}
}

// Start registers the sweep and starts the scheduler.
func (r *Reconciler) Start() error {
	if _, err := r.cron.AddFunc(r.schedule, r.Sweep); err != nil {
		return err
	}
	r.cron.Start()
	r.log.WithField("schedule", r.schedule).Info("ledger reconciliation sweep started")
	return nil
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (r *Reconciler) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// Sweep reconciles every known account once.
func (r *Reconciler) Sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	r.sweep(ctx)
}

func (r *Reconciler) sweep(ctx context.Context) int {
	accounts, err := r.svc.repo.ListAccountIDs(ctx)
	if err != nil {
		r.log.WithError(err).Error("reconciliation sweep: list accounts")
		return 0
	}

	drifted := 0
	for _, accountID := range accounts {
		cached, recomputed, err := r.svc.Audit(ctx, accountID)
		if err != nil {
			r.log.WithError(err).WithField("account_id", accountID).Error("reconciliation sweep: audit")
			continue
		}
		if cached != recomputed {
			drifted++
			r.log.WithField("account_id", accountID).
				WithField("cached", cached).
				WithField("ledger_sum", recomputed).
				Error("balance drift detected")
		}
	}

	metrics.SetReconciliationDrift(drifted)
	if drifted == 0 {
		r.log.WithField("accounts", len(accounts)).Debug("reconciliation sweep clean")
	}
	return drifted
}
