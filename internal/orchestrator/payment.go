package orchestrator

import (
	"context"
	"errors"
	"strconv"

	"go.uber.org/zap"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/infrastructure/codec"
	"nostrdvm.backend/pkg/logger"
)

var errDroppedEncryptedEvent = errors.New("encrypted event could not be decrypted")

// paymentTags is the flattened view of an inbound payment notification
// (a zap receipt, kind 9735, or an equivalent wallet-webhook event
// translated onto the same tag shape by the network client). The full
// NIP-57 zap-request/bolt11 decode is the network client's concern; the
// orchestrator only needs these four values (spec.md §4.6 Entry B).
type paymentTags struct {
	amountSats int64
	zappedID   string // the "e" tag: the feedback or reply event this payment settles
	sender     string // the "P" tag (zap requester), else the event's own signer
	anonymous  bool   // set by an "anon" tag
}

func parsePaymentEvent(ev entities.Event) paymentTags {
	pt := paymentTags{sender: ev.PubKey}
	if amt := ev.FirstTag("amount"); amt != nil {
		if sats, err := strconv.ParseInt(amt.Value(), 10, 64); err == nil {
			pt.amountSats = sats / 1000
		}
	}
	if e := ev.FirstTag("e"); e != nil {
		pt.zappedID = e.Value()
	}
	if p := ev.FirstTag("P"); p != nil {
		pt.sender = p.Value()
	}
	if ev.FirstTag("anon") != nil {
		pt.anonymous = true
	}
	return pt
}

// HandlePayment is Entry B: an inbound payment notification (spec.md
// §4.6 Entry B). It either settles a quoted job (the zapped event is one
// of our feedback events) or credits a direct balance top-up (the zapped
// event is one of our own prior replies, or there is no zapped event at
// all — a profile zap).
func (o *Orchestrator) HandlePayment(ctx context.Context, ev entities.Event) error {
	pt := parsePaymentEvent(ev)
	if pt.sender == "" {
		return nil
	}
	if _, err := o.users.GetOrCreate(ctx, pt.sender); err != nil {
		return err
	}

	if pt.zappedID == "" {
		return o.creditTopUp(ctx, pt)
	}

	zapped, ok, err := o.network.FetchEvent(ctx, pt.zappedID)
	if err != nil {
		return err
	}
	if !ok {
		logger.Debug(ctx, "payment references an event we can't resolve", zap.String("event_id", pt.zappedID))
		return nil
	}

	if zapped.Kind == entities.KindFeedback {
		return o.settleQuotedJob(ctx, zapped, pt)
	}

	// Not a feedback event: treat as a zap on one of our own published
	// replies, crediting straight to balance (spec.md §4.6 Entry B supplement).
	if zapped.PubKey == o.ownPubKey {
		return o.creditTopUp(ctx, pt)
	}
	return nil
}

// settleQuotedJob handles a payment against one of our own `payment-required`
// feedback events.
func (o *Orchestrator) settleQuotedJob(ctx context.Context, feedback entities.Event, pt paymentTags) error {
	requestTag := feedback.FirstTag("e")
	if requestTag == nil {
		return nil
	}
	requestID := requestTag.Value()

	quotedMsat, _ := strconv.ParseInt(feedback.FirstTag("amount").Value(), 10, 64)
	quotedSats := quotedMsat / 1000

	job, found := o.ledger.FindByEvent(requestID)

	var request entities.JobRequest
	switch {
	case found:
		request = job.Request
	default:
		reqEvent, ok, err := o.network.FetchEvent(ctx, requestID)
		if err != nil || !ok {
			return err
		}
		decoded, err2 := o.decodeRequestEvent(reqEvent)
		if err2 != nil {
			return nil
		}
		request = decoded
	}

	if pt.amountSats < quotedSats {
		return o.emitter.Feedback(request, entities.StatusPaymentRejected, quotedSats, "", "underpaid invoice")
	}

	switch {
	case found && job.IsProcessed:
		o.ledger.MarkPaid(requestID)
		if err := o.emitter.Feedback(request, entities.StatusProcessing, quotedSats, "", "processing"); err != nil {
			logger.Warn(ctx, "failed to publish processing feedback", zap.Error(err))
		}
		o.publishResult(ctx, request, quotedSats, job.Result)
		o.ledger.Remove(requestID)
		return nil
	case found:
		o.ledger.MarkPaid(requestID)
		job.IsPaid = true
		if err := o.emitter.Feedback(request, entities.StatusProcessing, quotedSats, "", "processing"); err != nil {
			logger.Warn(ctx, "failed to publish processing feedback", zap.Error(err))
		}
		o.dispatcher.Dispatch(ctx, request, o.scriptPath, o.identifier, func(result []byte, err error) {
			o.handleCompletion(ctx, request, result, err)
		})
		return nil
	default:
		// Ledger state was lost (process restart); re-enter processing
		// fresh now that payment has been confirmed.
		newJob := &entities.PendingJob{Request: request, AmountSats: quotedSats, IsPaid: true, Status: entities.JobStatusProcessing}
		o.dispatchJob(ctx, newJob)
		return nil
	}
}

func (o *Orchestrator) creditTopUp(ctx context.Context, pt paymentTags) error {
	if pt.anonymous || pt.amountSats <= 0 {
		return nil
	}
	_, err := o.users.CreditBalance(ctx, pt.sender, pt.amountSats)
	return err
}

// decodeRequestEvent re-derives a JobRequest from its originating event,
// used when the ledger has lost its entry for a now-paid job (e.g. after
// a restart).
func (o *Orchestrator) decodeRequestEvent(ev entities.Event) (entities.JobRequest, error) {
	decoded, ok := ev, true
	if o.envelope != nil {
		decoded, ok = o.envelope.DecodeEncryptedEvent(ev)
		if !ok {
			return entities.JobRequest{}, errDroppedEncryptedEvent
		}
	}
	wasEncrypted := ev.FirstTag("encrypted") != nil

	req, err := codec.DecodeJobRequest(decoded)
	if err != nil {
		return entities.JobRequest{}, err
	}
	req.Encrypted = wasEncrypted

	if worker, err := o.dispatcher.LookupByKind(req.Event.Kind); err == nil {
		req.Task = worker.Task()
	}
	return req, nil
}
