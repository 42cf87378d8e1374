// Package reconcile resolves a payment reference to a terminal status by
// polling the verification endpoint with a bounded backoff schedule, falling
// back to the locally cached registration snapshot when the backend is slow
// or unreachable.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"regpay/internal/payment"
	"regpay/internal/platform/metrics"
	"regpay/internal/reconcile/tracer"
	"regpay/internal/registration"
	"regpay/internal/registration/store"
	dErrors "regpay/pkg/domain-errors"
)

// State classifies how a reconciliation run ended.
type State string

const (
	StatePaid      State = "PAID"
	StateFailed    State = "FAILED"
	StateAbandoned State = "ABANDONED"
	// StateExhausted means the status was still pending after the last attempt.
	StateExhausted State = "EXHAUSTED"
	// StateUnreachable means every attempt raised a transport error.
	StateUnreachable State = "UNREACHABLE"
)

// MaxAttempts bounds one reconciliation run.
const MaxAttempts = 5

// defaultBackoff is the wait before attempt N+1. The ramp is deliberately
// slower than typical polling: the authoritative status update arrives via an
// asynchronous provider webhook which can itself lag.
var defaultBackoff = []time.Duration{
	2 * time.Second,
	3 * time.Second,
	4 * time.Second,
	5 * time.Second,
	6 * time.Second,
}

// Verifier performs one verification attempt. *payment.Service satisfies it.
type Verifier interface {
	Verify(ctx context.Context, reference string) (*payment.VerifiedPayment, error)
}

// Result is the outcome of one reconciliation run.
type Result struct {
	State    State
	Attempts int
	// Receipt is set for PAID runs and for cache-fallback runs. Nil for
	// FAILED, ABANDONED, and runs that exhausted with no snapshot.
	Receipt *Receipt
	// FromCache is true when the receipt was synthesized from the snapshot
	// rather than confirmed by the backend.
	FromCache bool
	// LastErr holds the final transport failure for UNREACHABLE runs.
	LastErr error
}

// Engine drives reconciliation runs. Attempts within a run are strictly
// sequential; attempt N+1 never starts before attempt N's response or error
// has been observed.
type Engine struct {
	verifier    Verifier
	snapshots   store.Store
	logger      *slog.Logger
	tracer      tracer.Tracer
	metrics     *metrics.Metrics
	backoff     []time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	institution string
	eventName   string
}

// Option configures the Engine.
type Option func(*Engine)

// WithTracer wires a tracer. Defaults to the no-op.
func WithTracer(t tracer.Tracer) Option {
	return func(e *Engine) {
		e.tracer = t
	}
}

// WithMetrics wires reconciliation metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithBackoff overrides the wait schedule. Mostly useful in tests.
func WithBackoff(waits []time.Duration) Option {
	return func(e *Engine) {
		e.backoff = waits
	}
}

// WithSleep overrides how the engine waits between attempts.
func WithSleep(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Engine) {
		e.sleep = sleep
	}
}

// WithLabels sets the institution and event names stamped onto receipts.
func WithLabels(institution, eventName string) Option {
	return func(e *Engine) {
		e.institution = institution
		e.eventName = eventName
	}
}

// NewEngine builds a reconciliation engine.
func NewEngine(verifier Verifier, snapshots store.Store, logger *slog.Logger, opts ...Option) *Engine {
	e := &Engine{
		verifier:  verifier,
		snapshots: snapshots,
		logger:    logger.With(slog.String("component", "reconcile")),
		tracer:    tracer.NewNoop(),
		backoff:   defaultBackoff,
		sleep:     sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolve reconciles one payment reference to a terminal state. It is
// idempotent: re-resolving an already confirmed reference yields the same
// receipt again. Cancelling ctx aborts the in-flight attempt and any pending
// backoff wait.
func (e *Engine) Resolve(ctx context.Context, reference string) (result *Result, err error) {
	reference = strings.TrimSpace(reference)
	if reference == "" {
		return nil, dErrors.New(dErrors.CodeNoReference, "no payment reference to verify")
	}

	ctx, span := e.tracer.Start(ctx, "reconcile.resolve",
		tracer.String("reference", reference))
	defer func() { span.End(err) }()

	var lastErr error
	sawResponse := false

	for attempt := 1; attempt <= MaxAttempts; attempt++ {
		if attempt > 1 {
			wait := e.waitBefore(attempt)
			span.AddEvent("backoff", tracer.Int("attempt", attempt), tracer.Duration("wait", wait))
			if sleepErr := e.sleep(ctx, wait); sleepErr != nil {
				return nil, sleepErr
			}
		}

		verified, verifyErr := e.verifier.Verify(ctx, reference)
		if verifyErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, verifyErr
			}
			lastErr = verifyErr
			e.logger.WarnContext(ctx, "verification attempt failed",
				slog.String("reference", reference),
				slog.Int("attempt", attempt),
				slog.Any("error", verifyErr))
			continue
		}

		sawResponse = true
		switch verified.Status {
		case payment.StatusPaid:
			snap := e.lookupSnapshot(ctx, reference)
			receipt := assembleReceipt(verified, snap, e.institution, e.eventName)
			return e.finish(ctx, span, &Result{
				State:    StatePaid,
				Attempts: attempt,
				Receipt:  receipt,
			}), nil
		case payment.StatusFailed:
			return e.finish(ctx, span, &Result{State: StateFailed, Attempts: attempt}), nil
		case payment.StatusAbandoned:
			return e.finish(ctx, span, &Result{State: StateAbandoned, Attempts: attempt}), nil
		default:
			// Still pending; retry unless this was the last attempt.
		}
	}

	state := StateExhausted
	if !sawResponse {
		state = StateUnreachable
	}

	if snap := e.lookupSnapshot(ctx, reference); snap != nil {
		if e.metrics != nil {
			e.metrics.CacheFallbacks.Inc()
		}
		span.AddEvent("cache_fallback")
		e.logger.InfoContext(ctx, "receipt synthesized from snapshot",
			slog.String("reference", reference),
			slog.String("state", string(state)))
		return e.finish(ctx, span, &Result{
			State:     state,
			Attempts:  MaxAttempts,
			Receipt:   synthesizeReceipt(snap, e.institution, e.eventName),
			FromCache: true,
			LastErr:   lastErr,
		}), nil
	}

	return e.finish(ctx, span, &Result{
		State:    state,
		Attempts: MaxAttempts,
		LastErr:  lastErr,
	}), nil
}

// Err maps a terminal result without a receipt to the user-facing error. It
// returns nil when the result carries a receipt.
func (r *Result) Err() error {
	if r.Receipt != nil {
		return nil
	}
	switch r.State {
	case StateFailed:
		return dErrors.New(dErrors.CodePaymentFailed, "payment failed")
	case StateAbandoned:
		return dErrors.New(dErrors.CodePaymentAbandoned, "payment was abandoned before completion")
	case StateExhausted:
		return dErrors.New(dErrors.CodePaymentPending, "payment confirmation is still pending")
	case StateUnreachable:
		if r.LastErr != nil {
			return dErrors.Wrap(r.LastErr, dErrors.CodeNetwork, "payment status could not be verified")
		}
		return dErrors.New(dErrors.CodeNetwork, "payment status could not be verified")
	default:
		return nil
	}
}

func (e *Engine) finish(ctx context.Context, span tracer.Span, result *Result) *Result {
	span.SetAttributes(
		tracer.String("state", string(result.State)),
		tracer.Int("attempts", result.Attempts),
		tracer.Bool("from_cache", result.FromCache))
	if e.metrics != nil {
		e.metrics.ReconcileRuns.WithLabelValues(string(result.State)).Inc()
		e.metrics.ReconcileAttempts.Observe(float64(result.Attempts))
	}
	e.logger.InfoContext(ctx, "reconciliation finished",
		slog.String("state", string(result.State)),
		slog.Int("attempts", result.Attempts))
	return result
}

// waitBefore returns the backoff applied ahead of the given attempt. The
// schedule saturates at its last entry.
func (e *Engine) waitBefore(attempt int) time.Duration {
	idx := attempt - 2
	if idx >= len(e.backoff) {
		idx = len(e.backoff) - 1
	}
	if idx < 0 || len(e.backoff) == 0 {
		return 0
	}
	return e.backoff[idx]
}

// lookupSnapshot reads the registration snapshot, treating every failure as
// absence. A corrupt or missing snapshot must never block a receipt.
func (e *Engine) lookupSnapshot(ctx context.Context, reference string) *registration.Snapshot {
	snap, err := e.snapshots.Get(ctx, reference)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			e.logger.WarnContext(ctx, "snapshot read failed",
				slog.String("reference", reference),
				slog.Any("error", err))
		}
		return nil
	}
	return snap
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
