package debate

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newWsServer(t *testing.T, reg *Registry) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws/:sessionID", ServeWs(reg, zap.NewNop()))
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func dial(t *testing.T, srv *httptest.Server, sessionID uuid.UUID) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/" + sessionID.String()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })
	return ws
}

func readEvent(t *testing.T, ws *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	require.NoError(t, ws.ReadJSON(&m))
	return m
}

func TestServeWsUnknownSession(t *testing.T) {
	reg, _ := newTestRegistry(t, &fakeModerator{}, quietOpts(), uuid.New())
	srv := newWsServer(t, reg)

	ws := dial(t, srv, uuid.New())
	msg := readEvent(t, ws)
	assert.Equal(t, "error", msg["type"])
	assert.Equal(t, "Session not found", msg["message"])

	// The server closes the connection after the error event.
	require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m map[string]any
	assert.Error(t, ws.ReadJSON(&m))
	assert.Zero(t, reg.Len())
}

func TestServeWsTranscriptRelay(t *testing.T) {
	id := uuid.New()
	reg, rec := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	srv := newWsServer(t, reg)

	ws1 := dial(t, srv, id)
	sync1 := readEvent(t, ws1)
	assert.Equal(t, "sync", sync1["type"])
	assert.Equal(t, "opening_a", sync1["phase"])

	ws2 := dial(t, srv, id)
	sync2 := readEvent(t, ws2)
	assert.Equal(t, "sync", sync2["type"])

	require.NoError(t, ws1.WriteJSON(map[string]any{
		"type":     "transcript_text",
		"speaker":  "Alex",
		"text":     "Free trade increases GDP.",
		"is_final": true,
	}))

	msg := readEvent(t, ws2)
	assert.Equal(t, "transcript", msg["type"])
	assert.Equal(t, "Alex", msg["speaker"])
	assert.Equal(t, true, msg["is_final"])

	// end triggers a final flush.
	require.NoError(t, ws1.WriteJSON(map[string]any{"type": "end"}))
	require.Eventually(t, func() bool { return rec.count() >= 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Len(t, rec.last(), 1)
}

func TestServeWsDisconnectTearsDown(t *testing.T) {
	id := uuid.New()
	reg, rec := newTestRegistry(t, &fakeModerator{}, quietOpts(), id)
	srv := newWsServer(t, reg)

	ws1 := dial(t, srv, id)
	readEvent(t, ws1)
	require.Equal(t, 1, reg.Len())

	ws1.Close()
	require.Eventually(t, func() bool { return reg.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, rec.count())
}
