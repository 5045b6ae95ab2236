package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"voting-platform/internal/domain"
	"voting-platform/pkg/redis"
)

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

// dial connects a websocket client to a test server that registers it with hub
func dial(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(conn, "u1")
		hub.Register(client)

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		go client.WriteLoop(ctx)

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
		hub.Unregister(client)
	}))
	t.Cleanup(srv.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestHub_BroadcastsPollUpdates(t *testing.T) {
	hub := startHub(t)
	a := dial(t, hub)
	b := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 10*time.Millisecond)

	hub.PollsUpdated(&domain.PollsResponse{Stats: domain.Stats{TotalPolls: 3}})

	for _, conn := range []*websocket.Conn{a, b} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventPollsUpdated, ev.Type)
		data, ok := ev.Data.(map[string]interface{})
		require.True(t, ok)
		stats := data["stats"].(map[string]interface{})
		assert.Equal(t, float64(3), stats["totalPolls"])
	}
}

func TestHub_UnregisterOnDisconnect(t *testing.T) {
	hub := startHub(t)
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// no clients left, must not panic
	hub.PollsUpdated(&domain.PollsResponse{})
}

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, []byte) error { return errors.New("down") }

func TestHub_PublisherFailureFallsBackToLocal(t *testing.T) {
	hub := startHub(t)
	hub.SetPublisher(failingPublisher{})
	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.PollsUpdated(&domain.PollsResponse{})
	assert.Equal(t, EventPollsUpdated, readEvent(t, conn).Type)
}

func TestRedisBridge_RelaysThroughPubSub(t *testing.T) {
	mr := miniredis.RunT(t)
	client, err := redis.NewClient("redis://"+mr.Addr(), "test", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	hub := startHub(t)
	bridge := NewRedisBridge(client, hub)
	hub.SetPublisher(bridge)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go func() { _ = bridge.Run(ctx) }()

	require.Eventually(t, func() bool {
		return len(mr.PubSubChannels("")) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn := dial(t, hub)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.PollsUpdated(&domain.PollsResponse{Stats: domain.Stats{TotalVotes: 9}})
	assert.Equal(t, EventPollsUpdated, readEvent(t, conn).Type)
}
