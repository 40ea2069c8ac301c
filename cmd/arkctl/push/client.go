package push

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/internal/rand"
)

// logKey identifies one subscribable ark-log-data stream.
type logKey struct {
	serverName  string
	logFileName string
}

// subscribeMessage is the inbound shape of start-ark-logs/stop-ark-logs, the
// only client-originated messages the hub recognizes (§6).
type subscribeMessage struct {
	Type        string `json:"type"`
	ServerName  string `json:"serverName"`
	LogFileName string `json:"logFileName"`
}

// Client is one dashboard's WebSocket connection. id is a short random token
// used only to correlate log lines for a single connection's lifetime; it is
// never exposed to the client itself.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	id   string

	mu   sync.Mutex
	subs map[logKey]struct{}
}

func newClient(hub *Hub, conn *websocket.Conn) *Client {
	id, err := rand.GenerateString(8)
	if err != nil {
		// crypto/rand failures are not actionable at the call site; fall back
		// to an empty id rather than refusing the connection.
		id = ""
	}
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 64),
		subs: make(map[logKey]struct{}),
		id:   id,
	}
}

func (c *Client) isSubscribed(key logKey) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.subs[key]
	return ok
}

func (c *Client) subscribe(key logKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[key] = struct{}{}
}

func (c *Client) unsubscribe(key logKey) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.subs, key)
}

// readPump reads start-ark-logs/stop-ark-logs subscription messages from the
// client until the connection closes, then unregisters it.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var msg subscribeMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.hub.logger.Debug("ignoring malformed client message", zap.Error(err))
			continue
		}

		key := logKey{serverName: msg.ServerName, logFileName: msg.LogFileName}
		switch msg.Type {
		case "start-ark-logs":
			c.subscribe(key)
			c.hub.startTail(msg.ServerName, msg.LogFileName)
		case "stop-ark-logs":
			c.unsubscribe(key)
			c.hub.stopTail(msg.ServerName, msg.LogFileName)
		}
	}
}

// writePump drains the client's send buffer to the socket and keeps the
// connection alive with periodic pings, the canonical gorilla/websocket
// client loop.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
