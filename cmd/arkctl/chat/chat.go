// Package chat implements the Chat Poller (C8): for every running server, a
// cooperative task polls `getchat` over RCON every two seconds and forwards
// non-empty lines to the broadcast channel. See spec §4.8.
package chat

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// pollInterval is the fixed cadence named in §4.8.
const pollInterval = 2 * time.Second

// emptyLogEvery throttles the "empty response" debug log to every Nth poll,
// per §4.8's flood-prevention note.
const emptyLogEvery = 200

// ChatSource issues the getchat RCON command for a running server.
type ChatSource interface {
	GetChat(ctx context.Context, serverName, addr, password string) (string, error)
}

// Line is one chat line observed from a server, in the shape pushed to
// subscribers as an "ark-chat" event.
type Line struct {
	Server    string
	Timestamp time.Time
	Text      string
}

// Sink receives chat lines for broadcast; implemented by the push hub.
type Sink interface {
	Publish(Line)
}

// Target identifies a running server's RCON endpoint.
type Target struct {
	ServerName   string
	RconAddr     string
	RconPassword string
}

// New creates a Poller.
func New(logger *zap.Logger, source ChatSource, sink Sink) *Poller {
	return &Poller{
		logger:  logger,
		source:  source,
		sink:    sink,
		cancels: make(map[string]context.CancelFunc),
	}
}

// Poller manages one polling goroutine per currently-running server.
type Poller struct {
	logger *zap.Logger
	source ChatSource
	sink   Sink

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

// Start begins polling target. Calling Start again for an already-polled
// server is a no-op; callers invoke this on the running transition.
func (p *Poller) Start(parent context.Context, target Target) {
	p.mu.Lock()
	if _, ok := p.cancels[target.ServerName]; ok {
		p.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancels[target.ServerName] = cancel
	p.mu.Unlock()

	go p.run(ctx, target)
}

// Stop cancels target's polling task, per §4.8's cooperative cancellation on
// the running→* transition. The next scheduled poll aborts before issuing
// RCON.
func (p *Poller) Stop(serverName string) {
	p.mu.Lock()
	cancel, ok := p.cancels[serverName]
	if ok {
		delete(p.cancels, serverName)
	}
	p.mu.Unlock()
	if ok {
		cancel()
	}
}

func (p *Poller) run(ctx context.Context, target Target) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	var consecutiveEmpty int
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		select {
		case <-ctx.Done():
			return
		default:
		}

		resp, err := p.source.GetChat(ctx, target.ServerName, target.RconAddr, target.RconPassword)
		if err != nil {
			p.logger.Warn("getchat poll failed", zap.String("server", target.ServerName), zap.Error(err))
			continue
		}
		if strings.TrimSpace(resp) == "" {
			consecutiveEmpty++
			if consecutiveEmpty%emptyLogEvery == 0 {
				p.logger.Debug("getchat returned empty response", zap.String("server", target.ServerName), zap.Int("consecutiveEmpty", consecutiveEmpty))
			}
			continue
		}
		consecutiveEmpty = 0

		now := time.Now()
		for _, line := range strings.Split(resp, "\n") {
			if line == "" {
				continue
			}
			p.sink.Publish(Line{Server: target.ServerName, Timestamp: now, Text: line})
		}
	}
}
