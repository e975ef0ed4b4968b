package handlers

import (
	"net/http"
	"strings"
	"time"

	"floordash"
	"floordash/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
)

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origins for production
}

// wsConnect upgrades the connection and subscribes it to the fan-out hub.
// Interest keys come from the query string: ?lines=a,b&equipment=x,y, or
// ?all=1 (also the default with no keys) for a wildcard subscription.
func (h *Handler) wsConnect(c *gin.Context) {
	keys := parseSubscriptionKeys(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	clientID := uuid.NewString()
	events := h.services.Hub.Subscribe(clientID, keys)
	defer h.services.Hub.Unsubscribe(clientID)

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	// Confirm the subscription before the event stream starts.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(wsEnvelope{Type: "subscribed", Data: gin.H{"client_id": clientID, "keys": keys}}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	// Writer/select loop.
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case ev, ok := <-events:
			if !ok {
				// Hub dropped the subscription (replaced or shut down).
				return
			}
			if err := h.sendEvent(conn, ev); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "client", clientID)
				}
				return
			}
		}
	}
}

// Helper: parseSubscriptionKeys builds the hub interest set from the query.
func parseSubscriptionKeys(c *gin.Context) []string {
	if c.Query("all") != "" {
		return []string{hub.Wildcard}
	}

	var keys []string
	for _, q := range []string{"lines", "equipment"} {
		for _, k := range strings.Split(c.Query(q), ",") {
			if k = strings.TrimSpace(k); k != "" {
				keys = append(keys, k)
			}
		}
	}
	return keys
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// Helper: sendEvent writes one envelope with a write deadline.
func (h *Handler) sendEvent(conn *websocket.Conn, ev floordash.Event) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(wsEnvelope{Type: string(ev.Type), Data: ev})
}
