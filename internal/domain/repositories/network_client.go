package repositories

import (
	"context"

	"nostrdvm.backend/internal/domain/entities"
)

// NetworkClient is the underlying signed-event pub/sub client: subscription,
// signing, and relay transport. Out of scope per spec.md §1 ("the
// underlying signed-event network client") — this is the interface
// boundary the orchestrator and status emitter publish and subscribe
// through; a concrete implementation (relay pool, websocket framing,
// per-relay retry) is an external collaborator.
type NetworkClient interface {
	// Publish signs and sends ev to every configured relay, skipping
	// disconnected ones, honoring a per-send timeout (spec.md §5).
	// Failure is a RelaySendFailure: logged, not surfaced to the caller.
	Publish(ctx context.Context, ev entities.Event) error

	// Subscribe starts a filtered subscription and streams matching
	// events until ctx is cancelled.
	Subscribe(ctx context.Context, filter Filter) (<-chan entities.Event, error)

	// FetchEvent resolves a single event by id, used to check whether a
	// chained job's dependency has appeared on the network yet (spec.md
	// §4.6, HeldJob resolution). ok is false if the event isn't visible.
	FetchEvent(ctx context.Context, eventID string) (ev entities.Event, ok bool, err error)

	// PublicKey is our own signing identity, used for p-tag comparison.
	PublicKey() string
}

// Filter describes a subscription: kind range plus an optional pubkey
// filter (for payment events addressed to us), `since = now` per spec.md §6.
type Filter struct {
	Kinds  []int
	PubKey string
	Since  int64
}
