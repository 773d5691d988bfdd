package handler

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"genstudio-dashboard/internal/auth"
	"genstudio-dashboard/internal/hub"
	"genstudio-dashboard/internal/middleware"
	"genstudio-dashboard/internal/session"
)

// WebSocketHandler streams task snapshots to the browser. The connection is
// one-way apart from keepalive pings: snapshots originate from the polling
// loop, never from client messages.
type WebSocketHandler struct {
	Hub         *hub.Hub
	Sessions    *session.Store
	TokenConfig auth.TokenConfig
}

type clientMessage struct {
	Type string `json:"type"`
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// wsWriter serializes data frames: the pong reply and the snapshot push run
// on different goroutines, and the connection allows one writer at a time.
// Control frames from the ping ticker go through WriteControl, which the
// connection already serializes internally.
type wsWriter struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (w *wsWriter) Write(message []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return w.conn.WriteMessage(websocket.TextMessage, message)
}

func (w *wsWriter) Close() error {
	return w.conn.Close()
}

func (h *WebSocketHandler) Serve(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		if cookie, err := c.Cookie(middleware.CookieName); err == nil {
			tokenString = cookie
		}
	}
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not signed in"})
		return
	}

	sessionID, err := auth.VerifyToken(tokenString, h.TokenConfig)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid session token"})
		return
	}
	if _, err := h.Sessions.Get(sessionID); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Session expired"})
		return
	}

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		return
	}

	conn := &hub.Connection{SessionID: sessionID, Writer: &wsWriter{conn: ws}}
	h.Hub.Register(conn)
	defer func() {
		h.Hub.Unregister(conn)
		_ = ws.Close()
	}()

	ws.SetReadLimit(4 * 1024)
	const pongWait = 60 * time.Second
	const writeWait = 10 * time.Second
	pingPeriod := (pongWait * 9) / 10

	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	done := make(chan struct{})
	var closeOnce sync.Once
	closeDone := func() {
		closeOnce.Do(func() {
			close(done)
		})
	}
	defer closeDone()

	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer ticker.Stop()

		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(writeWait)
				if err := ws.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					_ = ws.Close()
					return
				}
			}
		}
	}()

	for {
		_, data, err := ws.ReadMessage()
		if err != nil {
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}
		if msg.Type == "ping" {
			out, _ := json.Marshal(map[string]string{"type": "pong"})
			_ = conn.Writer.Write(out)
		}
	}
}
