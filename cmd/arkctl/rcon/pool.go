package rcon

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Pool holds at most one live connection per server, established on first
// use and reused thereafter (§4.7).
type Pool struct {
	logger *zap.Logger

	mu      sync.Mutex
	clients map[string]*Client
}

// NewPool creates an empty Pool.
func NewPool(logger *zap.Logger) *Pool {
	return &Pool{logger: logger, clients: make(map[string]*Client)}
}

// Execute runs command against the server named name, connecting to
// host:rconPort with rconPassword on first use. On transport failure the
// stale connection is dropped so the next call reconnects.
func (p *Pool) Execute(ctx context.Context, name, addr, password, command string) (string, error) {
	client, err := p.getOrDial(ctx, name, addr, password)
	if err != nil {
		return "", err
	}

	out, err := client.Execute(ctx, command)
	if err != nil {
		p.drop(name, client)
		return "", err
	}
	return out, nil
}

func (p *Pool) getOrDial(ctx context.Context, name, addr, password string) (*Client, error) {
	p.mu.Lock()
	if c, ok := p.clients[name]; ok {
		p.mu.Unlock()
		return c, nil
	}
	p.mu.Unlock()

	client, err := Dial(ctx, addr, password)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if existing, ok := p.clients[name]; ok {
		client.Close()
		return existing, nil
	}
	p.clients[name] = client
	return client, nil
}

func (p *Pool) drop(name string, stale *Client) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if current, ok := p.clients[name]; ok && current == stale {
		delete(p.clients, name)
	}
	stale.Close()
}

// Close proactively closes name's connection, per the pool's Supervisor
// stopping/stopped lifecycle hook (§4.7).
func (p *Pool) Close(name string) {
	p.mu.Lock()
	client, ok := p.clients[name]
	if ok {
		delete(p.clients, name)
	}
	p.mu.Unlock()
	if ok {
		client.Close()
	}
}

// CloseAll closes every open connection in parallel, for process shutdown.
func (p *Pool) CloseAll() {
	p.mu.Lock()
	clients := make([]*Client, 0, len(p.clients))
	for name, c := range p.clients {
		clients = append(clients, c)
		delete(p.clients, name)
	}
	p.mu.Unlock()

	var wg sync.WaitGroup
	for _, c := range clients {
		wg.Add(1)
		go func(c *Client) {
			defer wg.Done()
			c.Close()
		}(c)
	}
	wg.Wait()
}

// SaveAndExit implements supervisor.RconCloser's graceful shutdown sequence:
// SaveWorld followed by DoExit.
func (p *Pool) SaveAndExit(ctx context.Context, name, addr, password string) error {
	if _, err := p.Execute(ctx, name, addr, password, "SaveWorld"); err != nil {
		p.logger.Warn("SaveWorld failed during graceful stop", zap.String("server", name), zap.Error(err))
	}
	if _, err := p.Execute(ctx, name, addr, password, "DoExit"); err != nil {
		return fmt.Errorf("DoExit: %w", err)
	}
	return nil
}

// GetChat issues the getchat command used by the Chat Poller (C8).
func (p *Pool) GetChat(ctx context.Context, name, addr, password string) (string, error) {
	return p.Execute(ctx, name, addr, password, "getchat")
}
