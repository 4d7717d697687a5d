// Package network provides a process-local stand-in for the real relay
// pool. Nostr transport (signing, websocket framing, per-relay retry) is
// explicitly out of scope (spec.md §1, "the underlying signed-event
// network client") — production deployments wire in a real relay-pool
// client implementing repositories.NetworkClient instead.
package network

import (
	"context"
	"sync"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/domain/repositories"
)

// Loopback is an in-process NetworkClient: Publish stores the event and
// fans it out to every active Subscribe channel whose filter matches.
// Useful for local development and integration tests; not a relay client.
type Loopback struct {
	ownPubKey string

	mu   sync.Mutex
	byID map[string]entities.Event
	subs []loopbackSub
}

type loopbackSub struct {
	filter repositories.Filter
	ch     chan entities.Event
}

func NewLoopback(ownPubKey string) *Loopback {
	return &Loopback{ownPubKey: ownPubKey, byID: make(map[string]entities.Event)}
}

func (l *Loopback) Publish(_ context.Context, ev entities.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.byID[ev.ID] = ev
	for _, sub := range l.subs {
		if matches(sub.filter, ev) {
			select {
			case sub.ch <- ev:
			default:
			}
		}
	}
	return nil
}

func (l *Loopback) Subscribe(ctx context.Context, filter repositories.Filter) (<-chan entities.Event, error) {
	ch := make(chan entities.Event, 64)
	l.mu.Lock()
	l.subs = append(l.subs, loopbackSub{filter: filter, ch: ch})
	l.mu.Unlock()

	go func() {
		<-ctx.Done()
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, sub := range l.subs {
			if sub.ch == ch {
				l.subs = append(l.subs[:i], l.subs[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

func (l *Loopback) FetchEvent(_ context.Context, eventID string) (entities.Event, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ev, ok := l.byID[eventID]
	return ev, ok, nil
}

func (l *Loopback) PublicKey() string { return l.ownPubKey }

func matches(f repositories.Filter, ev entities.Event) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if k == ev.Kind {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.PubKey != "" {
		p := ev.FirstTag("p")
		if p == nil || p.Value() != f.PubKey {
			return false
		}
	}
	if f.Since > 0 && ev.CreatedAt < f.Since {
		return false
	}
	return true
}

var _ repositories.NetworkClient = (*Loopback)(nil)
