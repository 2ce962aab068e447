package server

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

func dialWebSocket(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()

	httpServer := httptest.NewServer(http.HandlerFunc(s.HandleWebSocket))
	t.Cleanup(httpServer.Close)

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func wsRequest(t *testing.T, ws *websocket.Conn, line string) string {
	t.Helper()

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(line)))
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := ws.ReadMessage()
	require.NoError(t, err)
	return string(data)
}

func TestWebSocketSpeaksTheSameProtocol(t *testing.T) {
	s := NewServer(DefaultConfig(), "")
	ws := dialWebSocket(t, s)

	// Messages arrive without a trailing newline; the adapter supplies it.
	assert.Equal(t, "aaaaaaa\n", wsRequest(t, ws, "aaaaaaa|SIGN_IN|janedoe"))
	assert.Equal(t, "bbbbbbb|janedoe\n", wsRequest(t, ws, "bbbbbbb|WHOAMI"))
	assert.Equal(t, "Error processing message\n", wsRequest(t, ws, "garbage"))
}

func TestWebSocketSharesStateWithTCP(t *testing.T) {
	s := startTestServer(t)
	ws := dialWebSocket(t, s)
	tcp := dialServer(t, s)

	require.Equal(t, "aaaaaaa\n", wsRequest(t, ws, "aaaaaaa|SIGN_IN|janedoe"))
	created := wsRequest(t, ws, "bbbbbbb|CREATE_DISCUSSION|video1.0s|From the browser")
	id := strings.SplitN(strings.TrimSuffix(created, "\n"), "|", 2)[1]

	got := tcp.send("ccccccc|GET_DISCUSSION|" + id)
	assert.Equal(t, "ccccccc|"+id+"|video1.0s|(janedoe|From the browser)\n", got)
}
