// Package push implements the WebSocket push channel: a broadcast hub the
// dashboard connects to for job-progress, ark-chat, ark-log-data,
// container-log-data, container-event, and system-log-data events. See
// spec §6.
package push

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/tjper/arkctl/cmd/arkctl/chat"
	"github.com/tjper/arkctl/cmd/arkctl/jobs"
	"github.com/tjper/arkctl/internal/hash"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Channel names, fixed by spec §6.
const (
	ChannelJobProgress    = "job-progress"
	ChannelArkChat        = "ark-chat"
	ChannelArkLogData     = "ark-log-data"
	ChannelContainerLog   = "container-log-data"
	ChannelContainerEvent = "container-event"
	ChannelSystemLog      = "system-log-data"
)

// LogPathResolver resolves the on-disk path backing a server's log stream,
// so the hub can start tailing it without knowing anything about cluster
// layout itself.
type LogPathResolver func(serverName, logFileName string) (path string, ok bool)

// Hub tracks connected dashboard clients and fans out broadcast events to
// them. The zero value is not usable; construct with New.
type Hub struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[*Client]struct{}

	tailer      *Tailer
	resolvePath LogPathResolver
}

// New creates an empty Hub.
func New(logger *zap.Logger) *Hub {
	return &Hub{logger: logger, clients: make(map[*Client]struct{})}
}

// SetLogTailing wires the hub to tailer, resolving a subscribed
// (serverName, logFileName) pair's on-disk path via resolve. Until this is
// called, start-ark-logs/stop-ark-logs messages only gate delivery (§6);
// no file is actually watched.
func (h *Hub) SetLogTailing(tailer *Tailer, resolve LogPathResolver) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tailer = tailer
	h.resolvePath = resolve
}

// startTail begins tailing the log backing a newly subscribed
// (serverName, logFileName) pair, if log tailing has been wired and the
// path resolves.
func (h *Hub) startTail(serverName, logFileName string) {
	h.mu.Lock()
	tailer, resolve := h.tailer, h.resolvePath
	h.mu.Unlock()
	if tailer == nil || resolve == nil {
		return
	}
	path, ok := resolve(serverName, logFileName)
	if !ok {
		return
	}
	tailer.TailServerLog(context.Background(), serverName, logFileName, path)
}

// stopTail stops tailing a (serverName, logFileName) pair. A no-op if
// nothing was tailing it, or if another client is still subscribed to it.
func (h *Hub) stopTail(serverName, logFileName string) {
	h.mu.Lock()
	tailer := h.tailer
	anyLeft := h.anySubscribedLocked(logKey{serverName, logFileName})
	h.mu.Unlock()
	if tailer == nil || anyLeft {
		return
	}
	tailer.StopServerLog(serverName, logFileName)
}

// anySubscribedLocked reports whether any connected client remains
// subscribed to key. Callers must hold h.mu.
func (h *Hub) anySubscribedLocked(key logKey) bool {
	for c := range h.clients {
		if c.isSubscribed(key) {
			return true
		}
	}
	return false
}

// ServeWS upgrades an HTTP request to a WebSocket connection and registers
// the resulting client with the hub. Callers wire this behind an
// authenticated route at the REST boundary.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h, conn)
	h.register(client)

	go client.writePump()
	go client.readPump()
}

func (h *Hub) register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	h.logger.Debug("dashboard client connected", zap.String("clientId", c.id))
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
		h.logger.Debug("dashboard client disconnected", zap.String("clientId", c.id))
	}
}

// envelope is the common shape every published payload carries: a type tag
// and an ISO-8601 timestamp, per §6.
type envelope map[string]interface{}

func newEnvelope(typ string, fields map[string]interface{}) envelope {
	e := envelope{"type": typ, "timestamp": time.Now().UTC().Format(time.RFC3339)}
	for k, v := range fields {
		e[k] = v
	}
	return e
}

// broadcastAll sends msg to every connected client, regardless of channel
// subscription (only ark-log-data is subscription-gated, per §6).
func (h *Hub) broadcastAll(msg envelope) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal broadcast envelope", zap.Error(err))
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- b:
		default:
			h.logger.Warn("dropping slow client, send buffer full")
			go h.unregister(c)
		}
	}
}

// broadcastArkLogData sends msg only to clients subscribed to the given
// (serverName, logFileName) pair.
func (h *Hub) broadcastArkLogData(serverName, logFileName string, msg envelope) {
	b, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("failed to marshal ark-log-data envelope", zap.Error(err))
		return
	}
	key := logKey{serverName, logFileName}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		if !c.isSubscribed(key) {
			continue
		}
		select {
		case c.send <- b:
		default:
			h.logger.Warn("dropping slow client, send buffer full")
			go h.unregister(c)
		}
	}
}

// PublishJobProgress implements jobs.Sink.
func (h *Hub) PublishJobProgress(e jobs.ProgressEvent) {
	fields, err := hash.FromStruct(e)
	if err != nil {
		h.logger.Error("failed to flatten job progress event", zap.Error(err))
		return
	}
	h.broadcastAll(newEnvelope(ChannelJobProgress, fields))
}

// Publish implements chat.Sink.
func (h *Hub) Publish(line chat.Line) {
	h.broadcastAll(envelope{
		"type":      ChannelArkChat,
		"timestamp": line.Timestamp.UTC().Format(time.RFC3339),
		"server":    line.Server,
		"line":      line.Text,
	})
}

// PublishArkLogLine delivers one tailed line of a server's log file to
// subscribed clients only.
func (h *Hub) PublishArkLogLine(serverName, logFileName, line string) {
	h.broadcastArkLogData(serverName, logFileName, newEnvelope(ChannelArkLogData, map[string]interface{}{
		"serverName":  serverName,
		"logFileName": logFileName,
		"line":        line,
	}))
}

// PublishSystemLogLine broadcasts one line of the control-plane's own log
// output to every connected client.
func (h *Hub) PublishSystemLogLine(line string) {
	h.broadcastAll(newEnvelope(ChannelSystemLog, map[string]interface{}{"line": line}))
}

// PublishContainerLogLine and PublishContainerEvent exist so a future
// docker-mode integration (out of scope here, named only as an external
// collaborator in §6) has a channel to publish onto without the hub
// changing shape.
func (h *Hub) PublishContainerLogLine(containerName, line string) {
	h.broadcastAll(newEnvelope(ChannelContainerLog, map[string]interface{}{"containerName": containerName, "line": line}))
}

func (h *Hub) PublishContainerEvent(containerName, event string) {
	h.broadcastAll(newEnvelope(ChannelContainerEvent, map[string]interface{}{"containerName": containerName, "event": event}))
}

// ClientCount reports how many dashboard clients are currently connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}
