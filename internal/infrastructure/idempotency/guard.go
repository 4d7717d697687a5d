// Package idempotency guards against a relay redelivering the same event:
// without it, a redelivered zap receipt could double-credit a balance and
// a redelivered job request could double-dispatch a worker (spec.md §4.2
// DOMAIN STACK supplement).
package idempotency

import (
	"context"
	"time"

	"nostrdvm.backend/pkg/redis"
)

const ttl = 10 * time.Minute

// Guard is a SetNX-backed claim: the first caller to see an event id
// within the TTL window wins, every later caller is told to skip.
type Guard struct {
	prefix string
}

// New builds a Guard for one event class ("request" or "payment"), so the
// two classes never collide on the same key space.
func New(prefix string) *Guard {
	return &Guard{prefix: prefix}
}

// Claim reports whether eventID has not been seen before (true) or was
// already claimed by a prior delivery (false).
func (g *Guard) Claim(ctx context.Context, eventID string) (bool, error) {
	return redis.SetNX(ctx, g.prefix+":"+eventID, 1, ttl)
}
