package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
	"github.com/xelth-com/eckvideo/internal/models"
	"github.com/xelth-com/eckvideo/internal/services/assignment"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := assignment.Actor{Name: r.URL.Query().Get("worker"), Role: r.URL.Query().Get("role")}
		ServeWs(hub, actor, w, r)
	}))
	t.Cleanup(func() {
		srv.Close()
		cancel()
	})
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, worker, role string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?worker=" + worker + "&role=" + role
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var msg Message
	require.NoError(t, json.Unmarshal(raw, &msg))
	return msg
}

func TestHub_DeliversToSubjectAndAdmins(t *testing.T) {
	hub, srv := startHub(t)
	alice := dial(t, srv, "alice", models.RoleWorker)
	bob := dial(t, srv, "bob", models.RoleWorker)
	boss := dial(t, srv, "boss", models.RoleAdmin)

	require.Eventually(t, func() bool {
		return hub.Connected("alice") == 1 && hub.Connected("bob") == 1 && hub.Connected("boss") == 1
	}, 2*time.Second, 10*time.Millisecond)

	hub.Notify(assignment.Notification{Type: assignment.ActionReclaim, OrderID: 7, OrderNumber: "VID-7", Worker: "alice"})

	got := readMessage(t, alice)
	require.Equal(t, "reclaim", got.Type)
	require.NotEmpty(t, got.MsgID)
	require.Equal(t, uint(7), got.Payload.OrderID)

	require.Equal(t, "alice", readMessage(t, boss).Payload.Worker)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bob.ReadMessage()
	require.Error(t, err, "bob must not receive alice's notification")
}

func TestHub_UnregistersOnClose(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, srv, "carol", models.RoleWorker)

	require.Eventually(t, func() bool { return hub.Connected("carol") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Connected("carol") == 0 }, 2*time.Second, 10*time.Millisecond)
}
