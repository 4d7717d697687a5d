// Package orchestrator implements C6: the state machine that couples
// request, payment, and worker-completion streams (spec.md §4.6).
package orchestrator

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
	"nostrdvm.backend/internal/domain/repositories"
	"nostrdvm.backend/internal/infrastructure/codec"
	"nostrdvm.backend/internal/infrastructure/dispatcher"
	"nostrdvm.backend/internal/infrastructure/ledger"
	"nostrdvm.backend/internal/infrastructure/status"
	"nostrdvm.backend/pkg/logger"
)

const (
	awaitingPaymentTTL = 24 * time.Hour
	heldJobTTL         = 20 * time.Minute
)

// Orchestrator is the sole owner of the job ledger and hold-list (spec.md
// §3, "Ownership"). Every other component receives borrowed views or
// message-passes mutations through it.
type Orchestrator struct {
	ownPubKey  string
	nip89Name  string
	scriptPath string
	identifier string

	users      repositories.UserRepository
	wallet     repositories.WalletClient
	cashu      repositories.CashuRedeemer
	network    repositories.NetworkClient
	dispatcher *dispatcher.Dispatcher
	emitter    *status.Emitter
	envelope   *codec.Envelope
	ledger     *ledger.JobLedger

	showResultBeforePayment bool
	maxFreeJobsPerMinute    int

	now func() time.Time

	mu           sync.Mutex
	freeJobTimes map[string][]time.Time
}

// Config bundles Orchestrator's external collaborators and behavior
// switches (spec.md §6).
type Config struct {
	OwnPubKey               string
	NIP89Name               string
	ScriptPath              string
	Identifier              string
	ShowResultBeforePayment bool
	MaxFreeJobsPerMinute    int

	Users      repositories.UserRepository
	Wallet     repositories.WalletClient
	Cashu      repositories.CashuRedeemer
	Network    repositories.NetworkClient
	Dispatcher *dispatcher.Dispatcher
	Emitter    *status.Emitter
	Envelope   *codec.Envelope
}

// New builds an Orchestrator from its collaborators.
func New(cfg Config) *Orchestrator {
	return &Orchestrator{
		ownPubKey:               cfg.OwnPubKey,
		nip89Name:               cfg.NIP89Name,
		scriptPath:              cfg.ScriptPath,
		identifier:              cfg.Identifier,
		users:                   cfg.Users,
		wallet:                  cfg.Wallet,
		cashu:                   cfg.Cashu,
		network:                 cfg.Network,
		dispatcher:              cfg.Dispatcher,
		emitter:                 cfg.Emitter,
		envelope:                cfg.Envelope,
		ledger:                  ledger.New(),
		showResultBeforePayment: cfg.ShowResultBeforePayment,
		maxFreeJobsPerMinute:    cfg.MaxFreeJobsPerMinute,
		now:                     time.Now,
		freeJobTimes:            make(map[string][]time.Time),
	}
}

// Announce publishes a NIP-89 handler-announcement event (kind 31990)
// whose content is the configured display name (spec.md §4 supplement).
// The event carries no tags, so it does not list the registered task kinds.
func (o *Orchestrator) Announce(ctx context.Context) error {
	ev := entities.Event{
		PubKey:  o.ownPubKey,
		Kind:    entities.KindHandlerAnnouncement,
		Content: o.nip89Name,
	}
	return o.network.Publish(ctx, ev)
}

// HandleRequest is Entry A: an inbound request event from the network
// subscription (spec.md §4.6 Entry A).
func (o *Orchestrator) HandleRequest(ctx context.Context, ev entities.Event) error {
	decoded, ok := ev, true
	if o.envelope != nil {
		decoded, ok = o.envelope.DecodeEncryptedEvent(ev)
		if !ok {
			return nil // decrypt failure: drop, spec.md §4.1
		}
	}
	wasEncrypted := ev.FirstTag("encrypted") != nil

	req, err := codec.DecodeJobRequest(decoded)
	if err != nil {
		logger.Debug(ctx, "dropping malformed request", zap.Error(err))
		return nil
	}
	req.Encrypted = wasEncrypted

	return o.processRequest(ctx, req)
}

// processRequest runs Entry A's steps 1-9 against an already-decoded
// JobRequest, shared by HandleRequest and the reaper's HeldJob re-entry.
func (o *Orchestrator) processRequest(ctx context.Context, req entities.JobRequest) error {
	user, err := o.users.GetOrCreate(ctx, req.RequesterPubKey())
	if err != nil {
		return err
	}

	if user.IsBlacklisted {
		return o.emitter.Feedback(req, entities.StatusError, 0, "", "blacklisted")
	}

	worker, err := o.dispatcher.LookupByKind(req.Event.Kind)
	if err != nil {
		return nil // Unsupported: silent drop, spec.md §7
	}
	req.Task = worker.Task()

	if held := o.checkDependency(ctx, req); held {
		o.ledger.HoldJob(req, o.now())
		return o.emitter.Feedback(req, entities.StatusChainScheduled, 0, "", "waiting on dependency")
	}

	amount := priceJob(worker, req)

	cashuRedeemed := false
	if req.CashuToken != "" {
		result, err := o.cashu.Redeem(ctx, req.CashuToken, amount)
		if err != nil {
			return err
		}
		if !result.OK {
			return o.emitter.Feedback(req, entities.StatusError, 0, "", result.Message)
		}
		cashuRedeemed = true
	}

	taskIsFree := worker.FixCost() == 0 && worker.PerUnitCost() == 0
	freePath := (user.IsWhitelisted || taskIsFree || cashuRedeemed) &&
		(req.PTag == "" || req.PTag == o.ownPubKey)

	switch {
	case freePath:
		if !o.admitFreeJob(req.RequesterPubKey()) {
			return o.emitter.Feedback(req, entities.StatusError, 0, "", "free-tier rate limit exceeded")
		}
		effectiveAmount := amount
		if user.IsWhitelisted || taskIsFree {
			effectiveAmount = 0
		}
		job := &entities.PendingJob{Request: req, AmountSats: effectiveAmount, IsPaid: true, Status: entities.JobStatusProcessing}
		o.dispatchJob(ctx, job)
		return nil

	case req.PTag == o.ownPubKey && user.BalanceSats >= amount:
		if _, err := o.users.DebitBalance(ctx, user.PubKey, amount); err != nil {
			return err
		}
		_ = o.users.SetLastActive(ctx, user.PubKey, o.now())
		job := &entities.PendingJob{Request: req, AmountSats: amount, IsPaid: true, Status: entities.JobStatusProcessing}
		o.dispatchJob(ctx, job)
		return nil

	case req.PTag == "" || req.PTag == o.ownPubKey:
		if req.HasBid && req.BidMillisat < amount*1000 {
			logger.Debug(ctx, "requester underbid the server rate",
				zap.Int64("bid_msat", req.BidMillisat), zap.Int64("server_rate_msat", amount*1000))
		}
		bolt11, paymentHash, err := o.wallet.CreateInvoice(ctx, amount, "DVM job "+req.ID())
		if err != nil && !isAppError(err, domainerrors.ErrWalletUnavailable) {
			return err
		}
		job := &entities.PendingJob{
			Request:     req,
			AmountSats:  amount,
			Status:      entities.JobStatusAwaitingPayment,
			Bolt11:      bolt11,
			PaymentHash: paymentHash,
			ExpiresAt:   time.Unix(req.Event.CreatedAt, 0).Add(awaitingPaymentTTL),
		}
		o.ledger.Upsert(job)
		return o.emitter.Feedback(req, entities.StatusPaymentRequired, amount, bolt11, "payment required")

	default:
		return nil // p-tag addresses a different DVM: silent skip
	}
}

// checkDependency reports whether req references an unresolved
// input-kind=job dependency (spec.md §4.6, "logically part of task-support
// resolution").
func (o *Orchestrator) checkDependency(ctx context.Context, req entities.JobRequest) bool {
	for _, input := range req.Inputs {
		if input.Kind != entities.InputKindJob {
			continue
		}
		if _, ok, err := o.network.FetchEvent(ctx, input.Value); err != nil || !ok {
			return true
		}
	}
	return false
}

// dispatchJob upserts a settled PendingJob, emits `processing`, and hands
// the job to the dispatcher; HandleCompletion receives the result.
func (o *Orchestrator) dispatchJob(ctx context.Context, job *entities.PendingJob) {
	jobsTotal.WithLabelValues("dispatched").Inc()
	o.ledger.Upsert(job)
	if err := o.emitter.Feedback(job.Request, entities.StatusProcessing, job.AmountSats, "", "processing"); err != nil {
		logger.Warn(ctx, "failed to publish processing feedback", zap.Error(err))
	}
	req := job.Request
	o.dispatcher.Dispatch(ctx, req, o.scriptPath, o.identifier, func(result []byte, err error) {
		o.handleCompletion(ctx, req, result, err)
	})
}

// handleCompletion is Entry C: a worker (or subprocess) finished (spec.md
// §4.6 Entry C).
func (o *Orchestrator) handleCompletion(ctx context.Context, req entities.JobRequest, result []byte, runErr error) {
	job, found := o.ledger.FindByEvent(req.ID())

	if runErr != nil {
		jobsTotal.WithLabelValues("error").Inc()
		if err := o.emitter.Feedback(req, entities.StatusError, 0, "", runErr.Error()); err != nil {
			logger.Warn(ctx, "failed to publish error feedback", zap.Error(err))
		}
		if found && job.IsPaid {
			o.refund(ctx, req, job.AmountSats)
		}
		o.ledger.Remove(req.ID())
		return
	}

	jobsTotal.WithLabelValues("succeeded").Inc()
	o.ledger.MarkProcessed(req.ID(), result)

	var amount int64
	if found {
		amount = job.AmountSats
	}
	isPaid := job.Done()

	switch {
	case o.showResultBeforePayment:
		o.publishResult(ctx, req, amount, result)
		if isPaid {
			o.ledger.Remove(req.ID())
		}
	case isPaid:
		o.publishResult(ctx, req, amount, result)
		o.ledger.Remove(req.ID())
	default:
		if err := o.emitter.Feedback(req, entities.StatusSuccess, amount, "", "success, awaiting payment"); err != nil {
			logger.Warn(ctx, "failed to publish success feedback", zap.Error(err))
		}
	}
}

func (o *Orchestrator) publishResult(ctx context.Context, req entities.JobRequest, amountSats int64, result []byte) {
	if err := o.emitter.Reply(req, result); err != nil {
		logger.Warn(ctx, "failed to publish reply event", zap.Error(err))
		return
	}
	if err := o.emitter.Feedback(req, entities.StatusSuccess, amountSats, "", "success"); err != nil {
		logger.Warn(ctx, "failed to publish success feedback", zap.Error(err))
	}
}

// refund attempts a single refund via the wallet adapter; failure is
// logged and swallowed (spec.md §7 WorkerError policy).
func (o *Orchestrator) refund(ctx context.Context, req entities.JobRequest, amountSats int64) {
	user, err := o.users.GetByPubKey(ctx, req.RequesterPubKey())
	if err != nil || !user.HasLightningAddress() {
		return
	}
	if _, err := o.wallet.Refund(ctx, user.LightningAddress, amountSats, "Couldn't finish job, returning sats"); err != nil {
		logger.Warn(ctx, "refund failed", zap.Error(err))
	}
}

// admitFreeJob enforces a per-requester sliding-window rate limit on the
// free path only (spec.md §4 supplement) — paying requesters are never
// throttled.
func (o *Orchestrator) admitFreeJob(pubkey string) bool {
	if o.maxFreeJobsPerMinute <= 0 {
		return true
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	now := o.now()
	cutoff := now.Add(-1 * time.Minute)
	times := o.freeJobTimes[pubkey]
	kept := times[:0]
	for _, t := range times {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= o.maxFreeJobsPerMinute {
		o.freeJobTimes[pubkey] = kept
		return false
	}
	o.freeJobTimes[pubkey] = append(kept, now)
	return true
}

func isAppError(err error, sentinel error) bool {
	appErr, ok := err.(*domainerrors.AppError)
	return ok && appErr.Sentinel == sentinel
}
