package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testEventuallyTimeout = time.Second
	testPollInterval      = 10 * time.Millisecond
)

func TestHub_RegisterAndBroadcast(t *testing.T) {
	hub := NewHub()

	a, err := hub.Register(1, nil)
	require.NoError(t, err)
	b, err := hub.Register(1, nil)
	require.NoError(t, err)
	other, err := hub.Register(2, nil)
	require.NoError(t, err)

	hub.Broadcast(1, `{"type":"request_received"}`)

	assert.Equal(t, `{"type":"request_received"}`, string(<-a.Send))
	assert.Equal(t, `{"type":"request_received"}`, string(<-b.Send))
	assert.Empty(t, other.Send)
	assert.True(t, hub.IsOnline(1))
	assert.Equal(t, 3, hub.ConnCount())
}

func TestHub_UnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(7, nil)
	require.NoError(t, err)

	hub.UnregisterClient(c)
	hub.UnregisterClient(c)

	assert.False(t, hub.IsOnline(7))
	assert.Zero(t, hub.ConnCount())
	_, ok := <-c.Send
	assert.False(t, ok, "send channel is closed")

	// A closed client silently drops further sends.
	c.TrySend([]byte("late"))
}

func TestHub_PerUserLimit(t *testing.T) {
	hub := NewHub()
	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(3, nil)
		require.NoError(t, err)
	}
	_, err := hub.Register(3, nil)
	assert.ErrorIs(t, err, ErrUserConnLimit)

	_, err = hub.Register(4, nil)
	assert.NoError(t, err, "limit is per user")
}

func TestClient_TrySendDropsWhenFull(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(5, nil)
	require.NoError(t, err)

	for i := 0; i < sendBuffer+10; i++ {
		c.TrySend([]byte("x"))
	}
	assert.Len(t, c.Send, sendBuffer)
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub := NewHub()
	c, err := hub.Register(9, nil)
	require.NoError(t, err)

	require.NoError(t, hub.Shutdown(context.Background()))
	require.NoError(t, hub.Shutdown(context.Background()))

	_, ok := <-c.Send
	assert.False(t, ok)
	assert.False(t, hub.IsOnline(9))

	_, err = hub.Register(9, nil)
	assert.ErrorIs(t, err, ErrHubClosed)
}

func TestHub_StartWiringDeliversPublishedEvents(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer func() { _ = rdb.Close() }()

	hub := NewHub()
	c, err := hub.Register(42, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := NewNotifier(rdb)
	require.NoError(t, hub.StartWiring(ctx, n))

	require.NoError(t, n.PublishUser(context.Background(), 42, `{"type":"unfollowed"}`))
	require.NoError(t, n.PublishUser(context.Background(), 43, `{"type":"ignored"}`))

	assert.Eventually(t, func() bool {
		return len(c.Send) == 1
	}, testEventuallyTimeout, testPollInterval)
	assert.Equal(t, `{"type":"unfollowed"}`, string(<-c.Send))
}
