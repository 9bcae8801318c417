package service

import (
	"context"
	"sync"
	"time"

	"vcard-gateway/internal/core/ports"

	"github.com/rs/zerolog"
)

// ReconcilerConfig controls the pending-payment sweep.
type ReconcilerConfig struct {
	Interval  time.Duration
	MinAge    time.Duration
	BatchSize int
}

// Reconciler periodically asks providers about top-ups that are still
// PENDING after MinAge, for payments whose webhook never arrived and whose
// client stopped polling.
type Reconciler struct {
	payments ports.PaymentService
	cfg      ReconcilerConfig
	log      zerolog.Logger

	waitGroup  sync.WaitGroup
	cancelFunc context.CancelFunc
}

// NewReconciler creates a Reconciler.
func NewReconciler(payments ports.PaymentService, cfg ReconcilerConfig, log zerolog.Logger) *Reconciler {
	return &Reconciler{
		payments: payments,
		cfg:      cfg,
		log:      log,
	}
}

const (
	defaultReconcileInterval  = time.Minute
	defaultReconcileBatchSize = 50
)

// Start launches the sweep loop. It returns immediately. Non-positive
// settings fall back to the defaults.
func (r *Reconciler) Start(ctx context.Context) {
	if r.cfg.Interval <= 0 {
		r.log.Warn().Dur("configured", r.cfg.Interval).Msg("Reconciler interval must be positive, using default")
		r.cfg.Interval = defaultReconcileInterval
	}
	if r.cfg.BatchSize <= 0 {
		r.log.Warn().Int("configured", r.cfg.BatchSize).Msg("Reconciler batch size must be positive, using default")
		r.cfg.BatchSize = defaultReconcileBatchSize
	}
	ctx, r.cancelFunc = context.WithCancel(ctx)

	r.waitGroup.Add(1)
	go r.loop(ctx)

	r.log.Info().
		Dur("interval", r.cfg.Interval).
		Dur("min_age", r.cfg.MinAge).
		Int("batch_size", r.cfg.BatchSize).
		Msg("Reconciler started")
}

func (r *Reconciler) loop(ctx context.Context) {
	defer r.waitGroup.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single sweep.
func (r *Reconciler) RunOnce(ctx context.Context) {
	resolved, err := r.payments.ReconcilePending(ctx, r.cfg.MinAge, r.cfg.BatchSize)
	if err != nil {
		r.log.Error().Err(err).Msg("Reconcile sweep failed")
		return
	}
	if resolved > 0 {
		r.log.Info().Int("resolved", resolved).Msg("Reconcile sweep resolved pending payments")
	}
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (r *Reconciler) Stop() {
	if r.cancelFunc != nil {
		r.cancelFunc()
	}
	r.waitGroup.Wait()
	r.log.Info().Msg("Reconciler stopped")
}
