package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func TestNewHub(t *testing.T) {
	hub := NewHub()

	assert.NotNil(t, hub)
	assert.NotNil(t, hub.clients)
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestHub_IsOnline_NoConnections(t *testing.T) {
	hub := NewHub()

	online := hub.IsOnline(123)
	assert.False(t, online)
}

func TestHub_SendToUser_UserNotOnline(t *testing.T) {
	hub := NewHub()

	msg := &Message{
		Type: "analysis_progress",
		Data: map[string]string{"key": "value"},
	}

	// Should return nil (not error) for offline user
	err := hub.SendToUser(123, msg)
	assert.NoError(t, err)
}

func TestHub_WithRealWebSocket(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade error: %v", err)
			return
		}

		client := &Client{
			UserID: 100,
			Conn:   conn,
		}
		hub.Register(client)

		time.Sleep(100 * time.Millisecond)

		hub.Unregister(client)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// Wait for registration
	time.Sleep(50 * time.Millisecond)

	assert.True(t, hub.IsOnline(100))
	assert.Equal(t, 1, hub.ConnectionCount())

	// Wait for unregistration
	time.Sleep(150 * time.Millisecond)
	assert.False(t, hub.IsOnline(100))
}

func TestHub_SendToUser_WithConnection(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{
			UserID: 200,
			Conn:   conn,
		}
		hub.Register(client)

		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	time.Sleep(50 * time.Millisecond)

	msg := &Message{
		Type: "analysis_progress",
		Data: map[string]interface{}{"report_id": 1, "percentage": 40},
	}
	err = hub.SendToUser(200, msg)
	assert.NoError(t, err)

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, received, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Contains(t, string(received), "analysis_progress")
	assert.Contains(t, string(received), "percentage")
}

func TestHub_MultipleConnectionsSameUser(t *testing.T) {
	hub := NewHub()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		client := &Client{
			UserID: 300, // Same user ID
			Conn:   conn,
		}
		hub.Register(client)

		time.Sleep(500 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	conn1, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn1.Close()

	conn2, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn2.Close()

	time.Sleep(100 * time.Millisecond)

	// 同一用户保留多个连接
	assert.Equal(t, 2, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(300))

	// 两个连接都应收到消息
	msg := &Message{Type: "analysis_progress", Data: map[string]int{"percentage": 80}}
	err = hub.SendToUser(300, msg)
	require.NoError(t, err)

	for _, conn := range []*websocket.Conn{conn1, conn2} {
		conn.SetReadDeadline(time.Now().Add(time.Second))
		_, received, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Contains(t, string(received), "percentage")
	}
}

func TestHub_MultipleUsers(t *testing.T) {
	hub := NewHub()

	var userID int64 = 0

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		userID++
		client := &Client{
			UserID: userID,
			Conn:   conn,
		}
		hub.Register(client)

		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	var conns []*websocket.Conn
	for i := 0; i < 3; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conns = append(conns, conn)
	}

	defer func() {
		for _, conn := range conns {
			conn.Close()
		}
	}()

	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, 3, hub.ConnectionCount())
	assert.True(t, hub.IsOnline(1))
	assert.True(t, hub.IsOnline(2))
	assert.True(t, hub.IsOnline(3))
	assert.False(t, hub.IsOnline(4))
}
