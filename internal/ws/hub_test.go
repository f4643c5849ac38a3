package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	return log
}

// connPair dials a throwaway websocket server and returns both ends.
func connPair(t *testing.T) (server, client *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	serverConns := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		serverConns <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	server = <-serverConns
	t.Cleanup(func() { _ = server.Close() })
	return server, client
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var e Event
	require.NoError(t, conn.ReadJSON(&e))
	return e
}

func TestHubPush(t *testing.T) {
	hub := NewHub(testLogger())

	serverConn, clientConn := connPair(t)
	hub.Register(1, serverConn)
	require.True(t, hub.IsConnected(1))

	hub.Push(1, Event{Type: EventFriendOnline, Payload: float64(2)})
	e := readEvent(t, clientConn)
	assert.Equal(t, EventFriendOnline, e.Type)

	// pushing to a user without a handle is a silent no-op
	hub.Push(99, Event{Type: EventFriendOnline})
	assert.False(t, hub.IsConnected(99))
}

func TestHubRegisterEvictsPreviousHandle(t *testing.T) {
	hub := NewHub(testLogger())

	oldServer, oldClient := connPair(t)
	oldHandle := hub.Register(1, oldServer)

	newServer, newClient := connPair(t)
	hub.Register(1, newServer)

	// the evicted connection is closed
	require.NoError(t, oldClient.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := oldClient.ReadMessage()
	assert.Error(t, err)

	// the stale handle's unregister must not tear down the new one,
	// and must report that a successor took over
	assert.False(t, hub.Unregister(oldHandle))
	require.True(t, hub.IsConnected(1))

	hub.Push(1, Event{Type: EventFriendOnline})
	e := readEvent(t, newClient)
	assert.Equal(t, EventFriendOnline, e.Type)
}

func TestHubRooms(t *testing.T) {
	hub := NewHub(testLogger())

	aliceServer, _ := connPair(t)
	bobServer, bobClient := connPair(t)
	alice := hub.Register(1, aliceServer)
	bob := hub.Register(2, bobServer)

	hub.JoinRoom(alice, 10)
	hub.JoinRoom(bob, 10)

	// sender excluded from the broadcast
	hub.BroadcastRoom(10, Event{Type: EventTypingResponse, Payload: TypingPayload{Flag: true, CurrentDialogueID: 10}}, alice)
	e := readEvent(t, bobClient)
	assert.Equal(t, EventTypingResponse, e.Type)

	hub.LeaveRoom(bob, 10)
	hub.BroadcastRoom(10, Event{Type: EventTypingResponse}, alice)
	require.NoError(t, bobClient.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := bobClient.ReadMessage()
	assert.Error(t, err, "no event expected after leaving the room")
}

func TestHubUnregisterClearsRooms(t *testing.T) {
	hub := NewHub(testLogger())

	server, _ := connPair(t)
	c := hub.Register(7, server)
	hub.JoinRoom(c, 42)

	assert.True(t, hub.Unregister(c))
	assert.False(t, hub.IsConnected(7))

	// broadcasting to the abandoned room must not panic or deliver
	hub.BroadcastRoom(42, Event{Type: EventTypingResponse}, nil)
}
