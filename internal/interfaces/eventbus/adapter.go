// Package eventbus adapts the raw network subscription onto the
// orchestrator's two entry points. It carries no state or policy of its
// own (spec.md §9, "thin adapter that forwards to those methods").
package eventbus

import (
	"context"

	"go.uber.org/zap"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/domain/repositories"
	"nostrdvm.backend/internal/infrastructure/idempotency"
	"nostrdvm.backend/internal/orchestrator"
	"nostrdvm.backend/pkg/logger"
)

// Handler routes inbound events from a NetworkClient subscription to
// Entry A (job requests) or Entry B (payment notifications), by kind.
// Each class is guarded against relay redelivery by its own idempotency
// claim, so a duplicate zap never double-credits a balance and a
// duplicate request never double-dispatches a worker.
type Handler struct {
	orch         *orchestrator.Orchestrator
	requestGuard *idempotency.Guard
	paymentGuard *idempotency.Guard
}

func NewHandler(orch *orchestrator.Orchestrator) *Handler {
	return &Handler{
		orch:         orch,
		requestGuard: idempotency.New("request"),
		paymentGuard: idempotency.New("payment"),
	}
}

// Run drains sub until ctx is cancelled, dispatching each event to the
// orchestrator. A handler error is logged and does not stop the loop —
// one malformed event must never wedge the subscription.
func (h *Handler) Run(ctx context.Context, sub <-chan entities.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-sub:
			if !ok {
				return
			}
			h.route(ctx, ev)
		}
	}
}

func (h *Handler) route(ctx context.Context, ev entities.Event) {
	var guard *idempotency.Guard
	var handle func(context.Context, entities.Event) error

	switch {
	case ev.Kind == entities.KindZap:
		guard, handle = h.paymentGuard, h.orch.HandlePayment
	case ev.Kind >= entities.KindNIP90ExtractTextStart && ev.Kind <= entities.KindNIP90GenericEnd:
		guard, handle = h.requestGuard, h.orch.HandleRequest
	default:
		return
	}

	claimed, err := guard.Claim(ctx, ev.ID)
	if err != nil {
		logger.Warn(ctx, "idempotency claim failed, processing anyway", zap.String("event_id", ev.ID), zap.Error(err))
	} else if !claimed {
		return
	}

	if err := handle(ctx, ev); err != nil {
		logger.Warn(ctx, "event handling failed", zap.Int("kind", ev.Kind), zap.String("event_id", ev.ID), zap.Error(err))
	}
}

// SubscriptionFilter builds the payment Filter this DVM subscribes with:
// zap receipts whose `p` tag addresses it (spec.md §6). Request kinds are
// not part of this filter; they are subscribed separately.
func SubscriptionFilter(ownPubKey string, since int64) repositories.Filter {
	return repositories.Filter{
		Kinds:  []int{entities.KindZap},
		PubKey: ownPubKey,
		Since:  since,
	}
}
