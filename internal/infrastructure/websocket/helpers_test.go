package websocket_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/lllypuk/taskflow/internal/domain/principal"
	ws "github.com/lllypuk/taskflow/internal/infrastructure/websocket"
)

var (
	garth   = principal.New("garth", []string{"doctor", "activitiTeam"}, false)
	salaboy = principal.New("salaboy", []string{"activitiTeam"}, false)
	admin   = principal.New("admin", nil, true)
)

// createWSConnPair returns the server and client ends of a real websocket connection.
func createWSConnPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{
		CheckOrigin: func(_ *http.Request) bool { return true },
	}

	serverChan := make(chan *websocket.Conn, 1)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		serverChan <- conn
	}))

	wsURL := "ws" + server.URL[len("http"):]
	clientConn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	select {
	case serverConn := <-serverChan:
		t.Cleanup(func() {
			_ = serverConn.Close()
			_ = clientConn.Close()
			server.Close()
		})
		return serverConn, clientConn
	case <-time.After(time.Second):
		_ = clientConn.Close()
		server.Close()
		t.Fatal("timeout waiting for server connection")
		return nil, nil
	}
}

// startHub runs a hub until the test ends.
func startHub(t *testing.T, opts ...ws.HubOption) *ws.Hub {
	t.Helper()

	hub := ws.NewHub(opts...)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(done)
	}()

	require.Eventually(t, hub.IsRunning, time.Second, 5*time.Millisecond)

	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

// connect registers a pumping client for p and returns the remote end.
func connect(t *testing.T, hub *ws.Hub, p principal.Principal) *websocket.Conn {
	t.Helper()

	serverConn, clientConn := createWSConnPair(t)
	client := ws.NewClient(hub, serverConn, p)
	before := hub.UserConnectionCount(p.Username())
	hub.Register(client)
	go client.WritePump()
	go client.ReadPump()

	require.Eventually(t, func() bool {
		return hub.UserConnectionCount(p.Username()) == before+1
	}, time.Second, 5*time.Millisecond)

	return clientConn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]any
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func expectSilence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(100*time.Millisecond)))
	_, data, err := conn.ReadMessage()
	require.Error(t, err, "unexpected message: %s", data)
}
