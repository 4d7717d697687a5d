package idempotency

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"nostrdvm.backend/pkg/redis"
)

func newMiniredisGuard(t *testing.T, prefix string) *Guard {
	t.Helper()
	srv, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	redis.SetClient(goredis.NewClient(&goredis.Options{Addr: srv.Addr()}))
	return New(prefix)
}

func TestClaim_FirstDeliveryWins(t *testing.T) {
	g := newMiniredisGuard(t, "request")

	first, err := g.Claim(context.Background(), "ev1")
	require.NoError(t, err)
	require.True(t, first)

	second, err := g.Claim(context.Background(), "ev1")
	require.NoError(t, err)
	require.False(t, second)
}

func TestClaim_DistinctPrefixesDoNotCollide(t *testing.T) {
	g := newMiniredisGuard(t, "request")
	paymentGuard := New("payment")
	_, _ = g.Claim(context.Background(), "ev1")

	ok, err := paymentGuard.Claim(context.Background(), "ev1")
	require.NoError(t, err)
	require.True(t, ok)
}
