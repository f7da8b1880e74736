// Command engine runs the internship workflow/ledger engine: the transition
// API, the credit ledger, and the scheduled reconciliation sweep.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"

	"github.com/internlink/workflow_layer/internal/app/metrics"
	"github.com/internlink/workflow_layer/internal/config"
	"github.com/internlink/workflow_layer/internal/database"
	"github.com/internlink/workflow_layer/internal/httpapi"
	"github.com/internlink/workflow_layer/internal/ledger"
	"github.com/internlink/workflow_layer/internal/middleware"
	"github.com/internlink/workflow_layer/internal/platform/migrations"
	"github.com/internlink/workflow_layer/internal/workflow"
	"github.com/internlink/workflow_layer/pkg/logger"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	cfg.ApplyPolicyOverrides()

	log := logger.New("engine", cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := migrations.Apply(ctx, db); err != nil {
		return fmt.Errorf("apply migrations: %w", err)
	}

	repo := database.NewPostgresRepository(db)
	ledgerSvc := ledger.NewService(repo, log)

	coordinator := workflow.NewCoordinator(
		repo,
		workflow.NewValidator(cfg.AcceptanceBonus),
		workflow.NewExecutor(log),
		workflow.Config{
			SideEffectAttempts: cfg.SideEffectAttempts,
			SideEffectBackoff:  cfg.SideEffectBackoff,
		},
		log,
	)

	reconciler := ledger.NewReconciler(ledgerSvc, cfg.ReconcileSchedule, log)
	if err := reconciler.Start(); err != nil {
		return fmt.Errorf("start reconciler: %w", err)
	}
	defer reconciler.Stop()

	router := mux.NewRouter()
	httpapi.NewHandler(coordinator, ledgerSvc, log).RegisterRoutes(router)
	router.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	handler := middleware.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst)(
		metrics.InstrumentHandler(router))

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", srv.Addr).Info("workflow engine listening")
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		log.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
