package orchestrator

import (
	"context"

	"go.uber.org/zap"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
	"nostrdvm.backend/internal/domain/repositories"
	"nostrdvm.backend/pkg/logger"
)

// PollPayments is C7's payment leg: poll every awaiting-payment job's
// invoice and react to a state change (spec.md §4.7). The ledger remains
// the orchestrator's exclusively; the reaper only ever calls this method.
func (o *Orchestrator) PollPayments(ctx context.Context) {
	for _, job := range o.ledger.Iter() {
		if job.IsPaid || job.PaymentHash == "" {
			continue
		}

		state, err := o.wallet.Poll(ctx, job.PaymentHash)
		if err != nil {
			logger.Warn(ctx, "invoice poll failed", zap.String("payment_hash", job.PaymentHash), zap.Error(err))
			continue
		}

		switch state {
		case repositories.InvoicePaid:
			job.IsPaid = true
			o.ledger.MarkPaid(job.Request.ID())
			if err := o.emitter.Feedback(job.Request, entities.StatusProcessing, job.AmountSats, "", "processing"); err != nil {
				logger.Warn(ctx, "failed to publish processing feedback", zap.Error(err))
			}
			req := job.Request
			o.dispatcher.Dispatch(ctx, req, o.scriptPath, o.identifier, func(result []byte, err error) {
				o.handleCompletion(ctx, req, result, err)
			})
		case repositories.InvoiceExpired:
			logger.Debug(ctx, "invoice expired, dropping job", zap.Error(domainerrors.InvoiceExpired(job.PaymentHash)))
			o.ledger.Remove(job.Request.ID())
		case repositories.InvoiceUnpaid:
			// nothing to do yet
		}
	}
}

// ExpireStaleJobs drops awaiting-payment jobs whose invoice has outlived
// its TTL, regardless of what the wallet reports (spec.md §4.7).
func (o *Orchestrator) ExpireStaleJobs() {
	now := o.now()
	for _, job := range o.ledger.Iter() {
		if job.IsPaid || job.ExpiresAt.IsZero() {
			continue
		}
		if now.After(job.ExpiresAt) {
			o.ledger.Remove(job.Request.ID())
		}
	}
}

// RecheckHeldJobs is C7's dependency leg: re-test every HeldJob's
// unresolved `i` tags and either resume or drop it (spec.md §4.7,
// §4.6 chained-job note — 20 minute hold TTL).
func (o *Orchestrator) RecheckHeldJobs(ctx context.Context) {
	for _, held := range o.ledger.IterHeld() {
		if held.Expired(o.now(), heldJobTTL) {
			o.ledger.RemoveHeld(held.Request.ID())
			continue
		}
		if o.checkDependency(ctx, held.Request) {
			continue // still unresolved
		}
		o.ledger.UnholdJob(held.Request.ID())
		if err := o.processRequest(ctx, held.Request); err != nil {
			logger.Warn(ctx, "failed to resume held job", zap.String("event_id", held.Request.ID()), zap.Error(err))
		}
	}
}
