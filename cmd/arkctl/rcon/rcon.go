package rcon

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"sync"
	"time"

	arkerrors "github.com/tjper/arkctl/cmd/arkctl/errors"
)

// connectTimeout and commandTimeout implement the §4.7 timeout requirements.
const (
	connectTimeout = 5 * time.Second
	commandTimeout = 5 * time.Second
)

// Client is a single authenticated RCON connection to one server. Commands
// are serialized: Execute holds mu for the full round trip, so one command
// is in flight per connection. mu is a plain sync.Mutex, which does not
// grant waiting callers the lock in arrival order.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial opens a TCP connection to addr and authenticates with password,
// classifying every failure per §4.7.
func Dial(ctx context.Context, addr, password string) (*Client, error) {
	dialer := net.Dialer{Timeout: connectTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		if isRefused(err) {
			return nil, arkerrors.Wrap(arkerrors.RconConnectionRefused, err, "dial rcon %s", addr)
		}
		return nil, arkerrors.Wrap(arkerrors.RconTransportError, err, "dial rcon %s", addr)
	}

	c := &Client{conn: conn}
	if err := c.authenticate(password); err != nil {
		conn.Close()
		return nil, err
	}
	return c, nil
}

func (c *Client) authenticate(password string) error {
	id := rand.Int31()
	if err := c.conn.SetDeadline(time.Now().Add(connectTimeout)); err != nil {
		return arkerrors.Wrap(arkerrors.RconTransportError, err, "set auth deadline")
	}
	if _, err := c.conn.Write(encode(packet{id: id, typ: typeAuth, body: password})); err != nil {
		return arkerrors.Wrap(arkerrors.RconTransportError, err, "write auth packet")
	}

	// The server sends an empty SERVERDATA_RESPONSE_VALUE packet immediately
	// before the SERVERDATA_AUTH_RESPONSE packet; skip it if present.
	p, err := decode(c.conn)
	if err != nil {
		return classifyReadError(err)
	}
	if p.typ == typeResponseValue {
		p, err = decode(c.conn)
		if err != nil {
			return classifyReadError(err)
		}
	}

	if p.typ != typeAuthResponse {
		return arkerrors.New(arkerrors.RconProtocolError, "unexpected packet type %d during auth", p.typ)
	}
	if p.id == -1 {
		return arkerrors.New(arkerrors.RconAuthFailed, "rcon authentication rejected")
	}
	return nil
}

// Execute sends command and returns the server's response body.
func (c *Client) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	deadline := time.Now().Add(commandTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := c.conn.SetDeadline(deadline); err != nil {
		return "", arkerrors.Wrap(arkerrors.RconTransportError, err, "set command deadline")
	}

	id := rand.Int31()
	if _, err := c.conn.Write(encode(packet{id: id, typ: typeExecCommand, body: command})); err != nil {
		return "", arkerrors.Wrap(arkerrors.RconTransportError, err, "write command %q", command)
	}

	p, err := decode(c.conn)
	if err != nil {
		return "", classifyReadError(err)
	}
	if p.id != id {
		return "", arkerrors.New(arkerrors.RconProtocolError, "response id %d does not match request id %d", p.id, id)
	}
	return p.body, nil
}

// Close releases the underlying TCP connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.Close()
}

func isRefused(err error) bool {
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return opErr.Op == "dial"
	}
	return false
}

func classifyReadError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return arkerrors.Wrap(arkerrors.RconTimeout, err, "rcon response timed out")
	}
	return arkerrors.Wrap(arkerrors.RconTransportError, err, "rcon read failed")
}

