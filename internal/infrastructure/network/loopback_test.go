package network

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nostrdvm.backend/internal/domain/entities"
	"nostrdvm.backend/internal/domain/repositories"
)

func TestPublishAndFetchEvent(t *testing.T) {
	l := NewLoopback("dvm")
	ev := entities.Event{ID: "ev1", Kind: 5000}

	require.NoError(t, l.Publish(context.Background(), ev))

	got, ok, err := l.FetchEvent(context.Background(), "ev1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, ev.ID, got.ID)

	_, ok, _ = l.FetchEvent(context.Background(), "missing")
	assert.False(t, ok)
}

func TestSubscribe_ReceivesMatchingEventsOnly(t *testing.T) {
	l := NewLoopback("dvm")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := l.Subscribe(ctx, repositories.Filter{Kinds: []int{5000}})
	require.NoError(t, err)

	require.NoError(t, l.Publish(ctx, entities.Event{ID: "a", Kind: 5000}))
	require.NoError(t, l.Publish(ctx, entities.Event{ID: "b", Kind: 9735}))

	select {
	case ev := <-sub:
		assert.Equal(t, "a", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected to receive matching event")
	}

	select {
	case ev := <-sub:
		t.Fatalf("unexpected second event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestSubscribe_FiltersByPubKeyTag(t *testing.T) {
	l := NewLoopback("dvm")
	ctx := context.Background()

	sub, err := l.Subscribe(ctx, repositories.Filter{Kinds: []int{9735}, PubKey: "dvm"})
	require.NoError(t, err)

	require.NoError(t, l.Publish(ctx, entities.Event{ID: "x", Kind: 9735, Tags: []entities.Tag{{"p", "someone-else"}}}))
	require.NoError(t, l.Publish(ctx, entities.Event{ID: "y", Kind: 9735, Tags: []entities.Tag{{"p", "dvm"}}}))

	select {
	case ev := <-sub:
		assert.Equal(t, "y", ev.ID)
	case <-time.After(time.Second):
		t.Fatal("expected the dvm-addressed zap")
	}
}

func TestPublicKey(t *testing.T) {
	l := NewLoopback("dvm")
	assert.Equal(t, "dvm", l.PublicKey())
}
