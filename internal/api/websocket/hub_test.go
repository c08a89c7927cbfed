package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/KevinKickass/OpenGCodeCore/internal/auth"
	"github.com/KevinKickass/OpenGCodeCore/internal/events"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startHub(t *testing.T, jwt *auth.JWTHandler) (*Hub, *events.Streamer, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(zap.NewNop(), jwt)
	streamer := events.NewStreamer()
	go hub.Run(ctx)
	go hub.Forward(ctx, streamer)
	require.Eventually(t, func() bool { return streamer.SubscriberCount() == 1 }, time.Second, 5*time.Millisecond)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(hub, w, r)
	}))
	t.Cleanup(srv.Close)

	return hub, streamer, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	return conn
}

func TestHubForwardsEvents(t *testing.T) {
	hub, streamer, url := startHub(t, nil)
	conn := dial(t, url)

	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	streamer.Publish(events.StatusChanged, map[string]any{"status": "ready"})

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MessageTypeEvent, msg.Type)
	assert.Equal(t, events.StatusChanged, msg.Event)
	assert.Equal(t, map[string]any{"status": "ready"}, msg.Data)
}

func TestSubscriptionFilter(t *testing.T) {
	hub, streamer, url := startHub(t, nil)
	conn := dial(t, url)
	require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, conn.WriteJSON(clientMessage{Type: MessageTypeSubscribe, Events: []string{"step.*"}}))
	var ack Message
	require.NoError(t, conn.ReadJSON(&ack))
	assert.Equal(t, MessageTypeSubscribed, ack.Type)

	streamer.Publish(events.StatusChanged, map[string]any{"status": "busy"})
	streamer.Publish(events.StepCompleted, map[string]any{"index": 0})

	var msg Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, events.StepCompleted, msg.Event)
}

func TestHubAuthentication(t *testing.T) {
	jwt := auth.NewJWTHandler("0123456789abcdef0123456789abcdef", time.Minute)
	hub, streamer, url := startHub(t, jwt)

	t.Run("rejects a client without token", func(t *testing.T) {
		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(clientMessage{Type: MessageTypeSubscribe}))

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MessageTypeAuthFailed, msg.Type)
		assert.Equal(t, 0, hub.GetClientCount())
	})

	t.Run("accepts a valid token", func(t *testing.T) {
		token, err := jwt.GenerateAccessToken("dashboard", auth.RoleViewer)
		require.NoError(t, err)

		conn := dial(t, url)
		require.NoError(t, conn.WriteJSON(clientMessage{Type: MessageTypeAuth, Token: token}))

		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, MessageTypeAuthSuccess, msg.Type)

		require.Eventually(t, func() bool { return hub.GetClientCount() == 1 }, time.Second, 5*time.Millisecond)
		streamer.Publish(events.TemperatureSample, nil)

		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, events.TemperatureSample, msg.Event)
	})
}

func TestMatchesFilter(t *testing.T) {
	assert.True(t, matchesFilter(nil, "step.started"))
	assert.True(t, matchesFilter([]string{"*"}, "step.started"))
	assert.True(t, matchesFilter([]string{"function.*"}, "function.failed"))
	assert.False(t, matchesFilter([]string{"function.*"}, "step.failed"))
	assert.True(t, matchesFilter([]string{"state.changed"}, "state.changed"))
}
