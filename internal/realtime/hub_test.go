package realtime

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"consult-queue-backend/internal/queue"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// newTestHub starts a hub behind a websocket test server and returns a
// dialer helper.
func newTestHub(t *testing.T) (*Hub, func(query string) *websocket.Conn) {
	t.Helper()

	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	router := gin.New()
	router.GET("/ws", ServeWS(hub))
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	dial := func(query string) *websocket.Conn {
		url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws" + query
		conn, _, err := websocket.DefaultDialer.Dial(url, nil)
		require.NoError(t, err)
		t.Cleanup(func() { conn.Close() })
		return conn
	}
	return hub, dial
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(payload, &ev))
	return ev
}

func TestHubBroadcastReachesGeneralSubscribers(t *testing.T) {
	hub, dial := newTestHub(t)

	conn := dial("")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(TopicQueue) == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(TopicQueue, []byte(`{"type":"queue:update"}`))
	ev := readEvent(t, conn)
	assert.Equal(t, EventQueueUpdate, ev.Type)
}

func TestNumberClientsHearOnlyTheirNumber(t *testing.T) {
	hub, dial := newTestHub(t)

	general := dial("")
	target := dial("?number=7")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(TopicQueue) == 1 && hub.SubscriberCount(NumberTopic(7)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	notifier := NewNotifier(hub)
	notifier.EntryStatusChanged(queue.EntryView{Number: 7, Status: "completed", Position: 3})

	for _, conn := range []*websocket.Conn{general, target} {
		ev := readEvent(t, conn)
		assert.Equal(t, EventQueueStatus, ev.Type)
		require.NotNil(t, ev.Entry)
		assert.Equal(t, 7, ev.Entry.Number)
		assert.Equal(t, "completed", ev.Entry.Status)
	}

	// A list refresh goes to the general channel only.
	notifier.QueueUpdated([]queue.EntryView{{Number: 7, Position: 1}})
	ev := readEvent(t, general)
	assert.Equal(t, EventQueueUpdate, ev.Type)
	require.Len(t, ev.Entries, 1)

	require.NoError(t, target.SetReadDeadline(time.Now().Add(300*time.Millisecond)))
	_, _, err := target.ReadMessage()
	assert.Error(t, err, "the number subscriber must not receive the general refresh")
}

func TestServeWSRejectsBadNumber(t *testing.T) {
	// The handshake must fail with a 400 before any upgrade happens.
	hub := NewHub()
	router := gin.New()
	router.GET("/ws", ServeWS(hub))
	server := httptest.NewServer(router)
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws?number=zero"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, 400, resp.StatusCode)
}

func TestHubDropsDisconnectedClients(t *testing.T) {
	hub, dial := newTestHub(t)

	conn := dial("?number=3")
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(NumberTopic(3)) == 1
	}, 2*time.Second, 10*time.Millisecond)

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.SubscriberCount(NumberTopic(3)) == 0
	}, 2*time.Second, 10*time.Millisecond)
}
