package orchestrator

import (
	"context"
	"encoding/base64"
	"sync"
	"time"

	"nostrdvm.backend/internal/domain/entities"
	domainerrors "nostrdvm.backend/internal/domain/errors"
	"nostrdvm.backend/internal/domain/repositories"
)

type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*entities.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[string]*entities.User)}
}

func (r *fakeUserRepo) seed(u *entities.User) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.PubKey] = u
}

func (r *fakeUserRepo) GetOrCreate(_ context.Context, pubkey string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[pubkey]; ok {
		return u, nil
	}
	u := &entities.User{PubKey: pubkey}
	r.users[pubkey] = u
	return u, nil
}

func (r *fakeUserRepo) GetByPubKey(_ context.Context, pubkey string) (*entities.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[pubkey]
	if !ok {
		return nil, domainerrors.NotFound("user")
	}
	return u, nil
}

func (r *fakeUserRepo) DebitBalance(_ context.Context, pubkey string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[pubkey]
	u.BalanceSats -= amount
	if u.BalanceSats < 0 {
		u.BalanceSats = 0
	}
	return u.BalanceSats, nil
}

func (r *fakeUserRepo) CreditBalance(_ context.Context, pubkey string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u := r.users[pubkey]
	u.BalanceSats += amount
	return u.BalanceSats, nil
}

func (r *fakeUserRepo) SetLastActive(_ context.Context, _ string, _ time.Time) error {
	return nil
}

var _ repositories.UserRepository = (*fakeUserRepo)(nil)

type fakeWallet struct {
	mu          sync.Mutex
	invoices    map[string]repositories.InvoiceState
	nextHash    int
	refunds     []int64
	createErr   error
	refundErr   error
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{invoices: make(map[string]repositories.InvoiceState)}
}

func (w *fakeWallet) CreateInvoice(_ context.Context, _ int64, _ string) (string, string, error) {
	if w.createErr != nil {
		return "", "", w.createErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.nextHash++
	hash := base64.RawURLEncoding.EncodeToString([]byte{byte(w.nextHash)})
	w.invoices[hash] = repositories.InvoiceUnpaid
	return "lnbc1fake", hash, nil
}

func (w *fakeWallet) Poll(_ context.Context, paymentHash string) (repositories.InvoiceState, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.invoices[paymentHash], nil
}

func (w *fakeWallet) Refund(_ context.Context, _ string, amountSats int64, _ string) (string, error) {
	if w.refundErr != nil {
		return "", w.refundErr
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.refunds = append(w.refunds, amountSats)
	return "refund-hash", nil
}

var _ repositories.WalletClient = (*fakeWallet)(nil)

type fakeCashu struct {
	result CashuResultStub
	err    error
}

// CashuResultStub mirrors repositories.CashuResult to avoid importing it
// twice under two names in test construction.
type CashuResultStub = repositories.CashuResult

func (c *fakeCashu) Redeem(_ context.Context, _ string, _ int64) (repositories.CashuResult, error) {
	return c.result, c.err
}

var _ repositories.CashuRedeemer = (*fakeCashu)(nil)

type fakeNetwork struct {
	mu        sync.Mutex
	ownPubKey string
	published []entities.Event
	events    map[string]entities.Event
}

func newFakeNetwork(ownPubKey string) *fakeNetwork {
	return &fakeNetwork{ownPubKey: ownPubKey, events: make(map[string]entities.Event)}
}

func (n *fakeNetwork) Publish(_ context.Context, ev entities.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.published = append(n.published, ev)
	return nil
}

func (n *fakeNetwork) Subscribe(_ context.Context, _ repositories.Filter) (<-chan entities.Event, error) {
	return make(chan entities.Event), nil
}

func (n *fakeNetwork) FetchEvent(_ context.Context, eventID string) (entities.Event, bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	ev, ok := n.events[eventID]
	return ev, ok, nil
}

func (n *fakeNetwork) PublicKey() string { return n.ownPubKey }

func (n *fakeNetwork) lastPublished() entities.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.published) == 0 {
		return entities.Event{}
	}
	return n.published[len(n.published)-1]
}

func (n *fakeNetwork) findPublished(kind int) (entities.Event, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ev := range n.published {
		if ev.Kind == kind {
			return ev, true
		}
	}
	return entities.Event{}, false
}

var _ repositories.NetworkClient = (*fakeNetwork)(nil)

type fakeWorker struct {
	task        string
	kind        int
	fixCost     int64
	perUnit     int64
	runResult   []byte
	runErr      error
	postErr     error
}

func (w *fakeWorker) Task() string    { return w.task }
func (w *fakeWorker) Kind() int       { return w.kind }
func (w *fakeWorker) FixCost() int64  { return w.fixCost }
func (w *fakeWorker) PerUnitCost() int64 { return w.perUnit }

func (w *fakeWorker) BuildRequestForm(req entities.JobRequest) (entities.RequestForm, error) {
	return entities.RequestForm{JobID: req.ID()}, nil
}

func (w *fakeWorker) Run(_ context.Context, _ entities.RequestForm) ([]byte, error) {
	return w.runResult, w.runErr
}

func (w *fakeWorker) PostProcess(_ context.Context, result []byte, _ entities.JobRequest) ([]byte, error) {
	if w.postErr != nil {
		return nil, w.postErr
	}
	return result, nil
}

var _ entities.Worker = (*fakeWorker)(nil)
