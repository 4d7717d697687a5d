package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/infrastructure/dispatcher"
	"nostrdvm.backend/internal/infrastructure/status"
)

const dvmPub = "dvmpubkey"

func newTestOrchestrator(t *testing.T, worker entities.Worker) (*Orchestrator, *fakeUserRepo, *fakeWallet, *fakeNetwork) {
	t.Helper()
	users := newFakeUserRepo()
	wallet := newFakeWallet()
	cashu := &fakeCashu{}
	network := newFakeNetwork(dvmPub)
	disp := dispatcher.New(4, false)
	if worker != nil {
		disp.Register(worker)
	}
	emitter := status.New(dvmPub, nil, network.Publish)

	orch := New(Config{
		OwnPubKey:  dvmPub,
		NIP89Name:  "test dvm",
		Users:      users,
		Wallet:     wallet,
		Cashu:      cashu,
		Network:    network,
		Dispatcher: disp,
		Emitter:    emitter,
	})
	return orch, users, wallet, network
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}

func newRequestEvent(id, pubkey string, kind int, ptag string) entities.JobRequest {
	var tags []entities.Tag
	if ptag != "" {
		tags = append(tags, entities.Tag{"p", ptag})
	}
	return entities.JobRequest{
		Event: entities.Event{ID: id, PubKey: pubkey, Kind: kind, CreatedAt: time.Now().Unix(), Tags: tags},
		PTag:  ptag,
	}
}

func TestProcessRequest_FreeTask_DispatchesAndPublishesReply(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000, runResult: []byte("result")}
	orch, _, _, network := newTestOrchestrator(t, worker)

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	waitUntil(t, func() bool { _, ok := network.findPublished(6000); return ok })
	reply, _ := network.findPublished(6000)
	assert.Equal(t, "result", reply.Content)
}

func TestProcessRequest_Blacklisted_EmitsErrorAndSkipsDispatch(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000}
	orch, users, _, network := newTestOrchestrator(t, worker)
	users.seed(&entities.User{PubKey: "alice", IsBlacklisted: true})

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	published := network.lastPublished()
	assert.Equal(t, entities.KindFeedback, published.Kind)
}

func TestProcessRequest_UnsupportedKind_SilentDrop(t *testing.T) {
	orch, _, _, network := newTestOrchestrator(t, nil)

	req := newRequestEvent("req1", "alice", 5999, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, network.published)
}

func TestProcessRequest_SufficientBalance_DebitsAndDispatches(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000, fixCost: 10, runResult: []byte("ok")}
	orch, users, _, network := newTestOrchestrator(t, worker)
	users.seed(&entities.User{PubKey: "alice", BalanceSats: 100})

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	waitUntil(t, func() bool { _, ok := network.findPublished(6000); return ok })

	u, _ := users.GetByPubKey(context.Background(), "alice")
	assert.Equal(t, int64(90), u.BalanceSats)
}

func TestProcessRequest_InsufficientBalance_EmitsPaymentRequired(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000, fixCost: 50}
	orch, users, _, network := newTestOrchestrator(t, worker)
	users.seed(&entities.User{PubKey: "alice", BalanceSats: 0})

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	published := network.lastPublished()
	assert.Equal(t, entities.KindFeedback, published.Kind)
	amountTag := published.FirstTag("amount")
	require.NotNil(t, amountTag)
	assert.Equal(t, "50000", amountTag.Value())

	job, ok := orch.ledger.FindByEvent("req1")
	require.True(t, ok)
	assert.False(t, job.IsPaid)
	assert.Equal(t, entities.JobStatusAwaitingPayment, job.Status)
}

func TestProcessRequest_AddressedToDifferentDVM_SilentSkip(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000, fixCost: 50}
	orch, _, _, network := newTestOrchestrator(t, worker)

	req := newRequestEvent("req1", "alice", 5000, "someone-else")
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, network.published)
}

func TestProcessRequest_WorkerError_RefundsPaidBalance(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000, fixCost: 10, runErr: assertErr("boom")}
	orch, users, wallet, network := newTestOrchestrator(t, worker)
	users.seed(&entities.User{PubKey: "alice", BalanceSats: 100, LightningAddress: "alice@getalby.com"})

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	waitUntil(t, func() bool { return network.lastPublished().Kind == entities.KindFeedback })
	waitUntil(t, func() bool { return len(wallet.refunds) == 1 })
	assert.Equal(t, int64(10), wallet.refunds[0])

	_, ok := orch.ledger.FindByEvent("req1")
	assert.False(t, ok)
}

func TestProcessRequest_DependencyUnresolved_HoldsJob(t *testing.T) {
	worker := &fakeWorker{task: "translate", kind: 5000}
	orch, _, _, network := newTestOrchestrator(t, worker)

	req := newRequestEvent("req1", "alice", 5000, dvmPub)
	req.Inputs = []entities.Input{{Value: "missing-event", Kind: entities.InputKindJob}}

	err := orch.processRequest(context.Background(), req)
	require.NoError(t, err)

	statusTag := network.lastPublished().FirstTag("status")
	require.NotNil(t, statusTag)
	assert.Equal(t, string(entities.StatusChainScheduled), statusTag.Value())

	_, held := orch.ledger.UnholdJob("req1")
	assert.True(t, held)
}

func TestAnnounce_PublishesHandlerAnnouncement(t *testing.T) {
	orch, _, _, network := newTestOrchestrator(t, nil)

	err := orch.Announce(context.Background())
	require.NoError(t, err)

	published := network.lastPublished()
	assert.Equal(t, entities.KindHandlerAnnouncement, published.Kind)
	assert.Equal(t, dvmPub, published.PubKey)
}

func TestHandlePayment_ProfileZapCreditsBalance(t *testing.T) {
	orch, users, _, _ := newTestOrchestrator(t, nil)
	users.seed(&entities.User{PubKey: "alice"})

	payment := entities.Event{
		PubKey: "alice",
		Kind:   entities.KindZap,
		Tags:   []entities.Tag{{"amount", "21000"}},
	}
	err := orch.HandlePayment(context.Background(), payment)
	require.NoError(t, err)

	u, _ := users.GetByPubKey(context.Background(), "alice")
	assert.Equal(t, int64(21), u.BalanceSats)
}

func TestHandlePayment_AnonymousZapDoesNotCredit(t *testing.T) {
	orch, users, _, _ := newTestOrchestrator(t, nil)
	users.seed(&entities.User{PubKey: "alice"})

	payment := entities.Event{
		PubKey: "alice",
		Kind:   entities.KindZap,
		Tags:   []entities.Tag{{"amount", "21000"}, {"anon"}},
	}
	err := orch.HandlePayment(context.Background(), payment)
	require.NoError(t, err)

	u, _ := users.GetByPubKey(context.Background(), "alice")
	assert.Equal(t, int64(0), u.BalanceSats)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertErr(msg string) error { return simpleErr(msg) }
