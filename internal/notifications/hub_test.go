package notifications

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_RegisterUnregister(t *testing.T) {
	hub := NewHub()
	userID := uint(1)

	client, err := hub.Register(userID, &websocket.Conn{})
	require.NoError(t, err)
	assert.True(t, hub.IsOnline(userID))

	hub.mu.RLock()
	assert.Equal(t, 1, hub.totalConns)
	assert.Contains(t, hub.conns[userID], client)
	hub.mu.RUnlock()

	hub.UnregisterClient(client)
	assert.False(t, hub.IsOnline(userID))

	hub.mu.RLock()
	assert.Equal(t, 0, hub.totalConns)
	assert.NotContains(t, hub.conns, userID)
	hub.mu.RUnlock()

	// Unregistering twice must not corrupt the count.
	hub.UnregisterClient(client)
	hub.mu.RLock()
	assert.Equal(t, 0, hub.totalConns)
	hub.mu.RUnlock()
}

func TestHub_PerUserConnectionLimit(t *testing.T) {
	hub := NewHub()
	userID := uint(7)

	for i := 0; i < maxConnsPerUser; i++ {
		_, err := hub.Register(userID, &websocket.Conn{})
		require.NoError(t, err)
	}

	_, err := hub.Register(userID, &websocket.Conn{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "user connection limit")

	// Other users are unaffected.
	_, err = hub.Register(userID+1, &websocket.Conn{})
	assert.NoError(t, err)
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()

	alice1, err := hub.Register(1, &websocket.Conn{})
	require.NoError(t, err)
	alice2, err := hub.Register(1, &websocket.Conn{})
	require.NoError(t, err)
	bob, err := hub.Register(2, &websocket.Conn{})
	require.NoError(t, err)

	hub.Broadcast(1, "hello alice")

	for _, c := range []*Client{alice1, alice2} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "hello alice", string(msg))
		default:
			t.Fatal("expected a buffered message for every alice connection")
		}
	}
	select {
	case <-bob.Send:
		t.Fatal("bob must not receive alice's notification")
	default:
	}

	hub.BroadcastAll("everyone")
	for _, c := range []*Client{alice1, alice2, bob} {
		select {
		case msg := <-c.Send:
			assert.Equal(t, "everyone", string(msg))
		default:
			t.Fatal("expected the broadcast on every connection")
		}
	}
}

func TestHub_StartWiring(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	hub := NewHub()
	notifier := NewNotifier(rdb)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, hub.StartWiring(ctx, notifier))

	client, err := hub.Register(42, &websocket.Conn{})
	require.NoError(t, err)

	// The psubscribe registration races with the publish, retry briefly.
	deadline := time.After(2 * time.Second)
delivery:
	for {
		require.NoError(t, notifier.PublishUser(ctx, 42, `{"type":"answer_posted"}`))
		select {
		case msg := <-client.Send:
			assert.JSONEq(t, `{"type":"answer_posted"}`, string(msg))
			break delivery
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("notification never reached the client")
		}
	}

	// The subscription is live now, so the broadcast channel needs no
	// retry. Duplicate publishes from the loop above may still be
	// buffered, skip past them.
	require.NoError(t, notifier.PublishBroadcast(ctx, `{"type":"announcement","message":"maintenance at noon"}`))
	broadcastDeadline := time.After(2 * time.Second)
	for {
		select {
		case msg := <-client.Send:
			if strings.Contains(string(msg), "announcement") {
				assert.JSONEq(t, `{"type":"announcement","message":"maintenance at noon"}`, string(msg))
				return
			}
		case <-broadcastDeadline:
			t.Fatal("broadcast never reached the client")
		}
	}
}
