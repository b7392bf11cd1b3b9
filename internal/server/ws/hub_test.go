package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/roundkeeper/internal/domain"
	"github.com/alanyoungcy/roundkeeper/internal/logging"
)

func TestHub_BroadcastReachesClient(t *testing.T) {
	hub := NewHub(nil, "solana", logging.Discard())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var hello envelope
	require.NoError(t, conn.ReadJSON(&hello))
	assert.Equal(t, "hello", hello.Channel)

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast([]byte(`{"id":"tick-1"}`))

	var msg envelope
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, domain.ChannelTick, msg.Channel)

	var body map[string]string
	require.NoError(t, json.Unmarshal(msg.Payload, &body))
	assert.Equal(t, "tick-1", body["id"])
}

func TestClient_IsSubscribed(t *testing.T) {
	c := &client{subs: map[string]bool{"keeper:*": true}}
	assert.True(t, c.isSubscribed(domain.ChannelRound))

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{"keeper:*"}})
	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{domain.ChannelTick}})
	assert.True(t, c.isSubscribed(domain.ChannelTick))
	assert.False(t, c.isSubscribed(domain.ChannelRound))
}
