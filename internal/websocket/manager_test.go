package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dial(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.CloseNow() })
	return conn
}

func TestBroadcastReachesClients(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Shutdown(context.Background())

	server := httptest.NewServer(manager)
	defer server.Close()

	first := dial(t, server)
	second := dial(t, server)

	require.Eventually(t, func() bool {
		return manager.ConnectedClients() == 2
	}, 2*time.Second, 10*time.Millisecond)

	stamp := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	manager.BroadcastMessage(UpdateMessage{Type: MessageRebuild, Target: "main", Timestamp: stamp})

	for _, conn := range []*websocket.Conn{first, second} {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		typ, data, err := conn.Read(ctx)
		cancel()
		require.NoError(t, err)
		assert.Equal(t, websocket.MessageText, typ)

		var msg UpdateMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, UpdateMessage{Type: MessageRebuild, Target: "main", Timestamp: stamp}, msg)
	}
}

func TestClientDisconnectUnregisters(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Shutdown(context.Background())

	server := httptest.NewServer(manager)
	defer server.Close()

	conn := dial(t, server)
	require.Eventually(t, func() bool {
		return manager.ConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool {
		return manager.ConnectedClients() == 0
	}, 5*time.Second, 10*time.Millisecond)
}

func TestShutdown(t *testing.T) {
	manager := NewManager(Options{}, nil)
	server := httptest.NewServer(manager)
	defer server.Close()

	dial(t, server)
	require.Eventually(t, func() bool {
		return manager.ConnectedClients() == 1
	}, 2*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, manager.Shutdown(ctx))
	require.NoError(t, manager.Shutdown(ctx))

	assert.True(t, manager.IsShutdown())
	assert.Equal(t, 0, manager.ConnectedClients())

	// new connections are refused
	resp, err := http.Get(server.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	// broadcasting after shutdown is a no-op
	manager.BroadcastMessage(UpdateMessage{Type: MessageError})
}

func TestPlainRequestIsRejected(t *testing.T) {
	manager := NewManager(Options{}, nil)
	defer manager.Shutdown(context.Background())

	rec := httptest.NewRecorder()
	manager.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	assert.Equal(t, http.StatusUpgradeRequired, rec.Code)
}

func TestClientAcceptedAfterShutdownIsClosed(t *testing.T) {
	manager := NewManager(Options{}, nil)
	require.NoError(t, manager.Shutdown(context.Background()))

	// A connection that reaches the client loop after the hub is gone.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		manager.handleClient(&Client{conn: conn, send: make(chan []byte, 1), remoteAddr: r.RemoteAddr})
	}))
	defer server.Close()

	conn := dial(t, server)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	_, _, err := conn.Read(ctx)
	require.Error(t, err)
	assert.NotErrorIs(t, err, context.DeadlineExceeded)
}
