package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/harmonia/internal/common"
	"github.com/ternarybob/harmonia/internal/interfaces"
	"github.com/ternarybob/harmonia/internal/services/events"
)

func dialHandler(t *testing.T, handler *WebSocketHandler) (*websocket.Conn, func()) {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)

	// First message is the hello carrying the server instance id
	var hello WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, "hello", hello.Type)

	return conn, func() {
		conn.Close()
		server.Close()
	}
}

func TestSessionEventFanOut(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, logger, &common.WebSocketConfig{})
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	defer server.Close()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")

	numSubscribers := 3
	received := make([][]WSMessage, numSubscribers)
	var receivedMutex sync.Mutex
	var wg sync.WaitGroup
	wg.Add(numSubscribers)

	conns := make([]*websocket.Conn, numSubscribers)
	for i := 0; i < numSubscribers; i++ {
		conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.NoError(t, err)
		conns[i] = conn

		idx := i
		go func() {
			defer wg.Done()
			conn.SetReadDeadline(time.Now().Add(3 * time.Second))
			for {
				var msg WSMessage
				if err := conn.ReadJSON(&msg); err != nil {
					return
				}
				if msg.Type == "hello" {
					continue
				}
				receivedMutex.Lock()
				received[idx] = append(received[idx], msg)
				receivedMutex.Unlock()
			}
		}()
	}

	require.Eventually(t, func() bool { return handler.ClientCount() == numSubscribers }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, eventService.PublishSync(context.Background(), interfaces.Event{
		Type:    interfaces.EventHarmonizationReady,
		Payload: map[string]interface{}{"session_id": "s-1", "status": "ready"},
	}))

	require.Eventually(t, func() bool {
		receivedMutex.Lock()
		defer receivedMutex.Unlock()
		for _, msgs := range received {
			if len(msgs) == 0 {
				return false
			}
		}
		return true
	}, 2*time.Second, 10*time.Millisecond)

	for _, conn := range conns {
		conn.Close()
	}
	wg.Wait()

	receivedMutex.Lock()
	defer receivedMutex.Unlock()
	for i, msgs := range received {
		require.Len(t, msgs, 1, "subscriber %d", i)
		assert.Equal(t, "harmonization_ready", msgs[0].Type)
		payload, ok := msgs[0].Payload.(map[string]interface{})
		require.True(t, ok)
		assert.Equal(t, "s-1", payload["session_id"])
	}
}

func TestAllowedEventsFilter(t *testing.T) {
	logger := arbor.NewLogger()
	eventService := events.NewService(logger)
	defer eventService.Close()

	handler := NewWebSocketHandler(eventService, logger, &common.WebSocketConfig{
		AllowedEvents: []string{"harmonization_failed"},
	})
	conn, closeAll := dialHandler(t, handler)
	defer closeAll()

	ctx := context.Background()
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventHarmonizationReady, Payload: "ignored"}))
	require.NoError(t, eventService.PublishSync(ctx, interfaces.Event{Type: interfaces.EventHarmonizationFailed, Payload: "sent"}))

	var msg WSMessage
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "harmonization_failed", msg.Type)
	assert.Equal(t, "sent", msg.Payload)
}

func TestClientDisconnectIsTracked(t *testing.T) {
	handler := NewWebSocketHandler(nil, arbor.NewLogger(), nil)
	_, closeAll := dialHandler(t, handler)

	require.Eventually(t, func() bool { return handler.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
	closeAll()
	require.Eventually(t, func() bool { return handler.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)

	// Broadcasting with no clients is a no-op
	handler.Broadcast(WSMessage{Type: "edits_saved"})
}
