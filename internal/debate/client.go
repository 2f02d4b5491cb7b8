package debate

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	// pingInterval and pongWait are the heartbeat parameters.
	pingInterval = 25 * time.Second
	pongWait     = 60 * time.Second
	writeWait    = 10 * time.Second

	maxMessageSize = 65536
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // allow all origins in dev; restrict in production
	},
}

// wsConn wraps a gorilla connection with a write mutex so broadcasts
// from different goroutines and heartbeat pings never interleave frames.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex
}

func (c *wsConn) WriteJSON(v any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(v)
}

func (c *wsConn) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}

// ServeWs handles GET /ws/:sessionID: upgrades the connection, joins the
// session (creating it on first connect) and runs the read loop until
// the client disconnects or sends an end event.
func ServeWs(registry *Registry, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sessionID, err := uuid.Parse(c.Param("sessionID"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session id"})
			return
		}

		ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}
		conn := &wsConn{ws: ws}

		session, err := registry.Join(c.Request.Context(), sessionID, conn)
		if err != nil {
			if err == ErrSessionNotFound {
				_ = conn.WriteJSON(errorEvent{Type: "error", Message: "Session not found"})
			} else {
				logger.Error("session join failed", zap.Error(err), zap.String("session_id", sessionID.String()))
			}
			_ = conn.Close()
			return
		}

		stopPing := make(chan struct{})
		go heartbeat(conn, stopPing)

		readLoop(session, conn, ws)

		close(stopPing)
		registry.Leave(session, conn)
		_ = conn.Close()
	}
}

func heartbeat(conn *wsConn, stop <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if err := conn.ping(); err != nil {
				return
			}
		}
	}
}

func readLoop(session *Session, conn *wsConn, ws *websocket.Conn) {
	ws.SetReadLimit(maxMessageSize)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			return
		}
		_ = ws.SetReadDeadline(time.Now().Add(pongWait))

		var msg inboundMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			continue
		}
		if session.HandleMessage(conn, msg) {
			return
		}
	}
}
