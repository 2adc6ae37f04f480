package realtime

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
)

func startHub(t *testing.T, opts Options) (*Hub, *httptest.Server) {
	t.Helper()
	hub := NewHub(opts)
	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = hub.Run(ctx) }()
	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	hub, srv := startHub(t, Options{})

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), nil)
	require.NoError(t, err)
	defer conn.Close()

	// registration is asynchronous; keep broadcasting until the first frame lands.
	deadline := time.Now().Add(2 * time.Second)
	require.NoError(t, conn.SetReadDeadline(deadline))
	received := make(chan []byte, 1)
	go func() {
		_, body, err := conn.ReadMessage()
		if err == nil {
			received <- body
		}
	}()

	var body []byte
	for body == nil && time.Now().Before(deadline) {
		hub.BroadcastProduct(ActionCreated, map[string]any{"id": 1, "name": "Mug"})
		select {
		case body = <-received:
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.NotNil(t, body)

	var msg Message
	require.NoError(t, json.Unmarshal(body, &msg))
	assert.Equal(t, ActionCreated, msg.Action)
	assert.Equal(t, "Mug", msg.Payload.(map[string]any)["name"])
}

func TestOriginCheck(t *testing.T) {
	_, srv := startHub(t, Options{AllowedOrigins: []string{"https://shop.example.com/"}})

	header := http.Header{"Origin": []string{"https://evil.example.com"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"https://shop.example.com"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv), header)
	require.NoError(t, err)
	_ = conn.Close()
}

func TestBroadcastOnNilHub(t *testing.T) {
	var hub *Hub
	assert.NotPanics(t, func() { hub.BroadcastProduct(ActionDeleted, 1) })
}
