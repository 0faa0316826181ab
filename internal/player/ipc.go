package player

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
)

// ErrClosed is returned by commands issued after the connection went away.
var ErrClosed = errors.New("mpv connection closed")

type mpvCommand struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// mpv sends responses and events on the same stream. Events carry "event",
// responses carry "request_id".
type mpvMessage struct {
	Event     string          `json:"event"`
	Reason    string          `json:"reason"`
	Name      string          `json:"name"`
	Data      json.RawMessage `json:"data"`
	RequestID int64           `json:"request_id"`
	Error     string          `json:"error"`
}

// Event is an asynchronous mpv notification.
type Event struct {
	Name   string // e.g. "end-file", "pause", "unpause"
	Reason string // end-file only: "eof", "stop", "quit", "error"
}

type response struct {
	data json.RawMessage
	err  error
}

// Client speaks mpv's JSON IPC protocol over a single connection.
type Client struct {
	conn   net.Conn
	nextID atomic.Int64

	writeMu sync.Mutex

	mu      sync.Mutex
	pending map[int64]chan response
	closed  bool

	events chan Event
	done   chan struct{}
}

// NewClient starts reading from conn.
func NewClient(conn net.Conn) *Client {
	c := &Client{
		conn:    conn,
		pending: make(map[int64]chan response),
		events:  make(chan Event, 64),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Events delivers mpv events until the connection closes.
func (c *Client) Events() <-chan Event {
	return c.events
}

// Done is closed when the connection is gone.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Command sends a command and waits for its response.
func (c *Client) Command(ctx context.Context, args ...any) (json.RawMessage, error) {
	id := c.nextID.Add(1)
	ch := make(chan response, 1)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil, ErrClosed
	}
	c.pending[id] = ch
	c.mu.Unlock()

	data, err := json.Marshal(mpvCommand{Command: args, RequestID: id})
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("marshal command: %w", err)
	}
	data = append(data, '\n')

	c.writeMu.Lock()
	_, err = c.conn.Write(data)
	c.writeMu.Unlock()
	if err != nil {
		c.forget(id)
		return nil, fmt.Errorf("write command: %w", err)
	}

	select {
	case resp := <-ch:
		return resp.data, resp.err
	case <-ctx.Done():
		c.forget(id)
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}
}

// GetFloat reads a numeric property.
func (c *Client) GetFloat(ctx context.Context, property string) (float64, error) {
	raw, err := c.Command(ctx, "get_property", property)
	if err != nil {
		return 0, err
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("property %s: %w", property, err)
	}
	return v, nil
}

// GetBool reads a boolean property.
func (c *Client) GetBool(ctx context.Context, property string) (bool, error) {
	raw, err := c.Command(ctx, "get_property", property)
	if err != nil {
		return false, err
	}
	var v bool
	if err := json.Unmarshal(raw, &v); err != nil {
		return false, fmt.Errorf("property %s: %w", property, err)
	}
	return v, nil
}

// Set writes a property.
func (c *Client) Set(ctx context.Context, property string, value any) error {
	_, err := c.Command(ctx, "set_property", property, value)
	return err
}

// Close closes the connection. Pending commands fail with ErrClosed.
func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) forget(id int64) {
	c.mu.Lock()
	delete(c.pending, id)
	c.mu.Unlock()
}

func (c *Client) readLoop() {
	defer func() {
		c.mu.Lock()
		c.closed = true
		c.pending = nil
		c.mu.Unlock()
		close(c.done)
		close(c.events)
	}()

	reader := bufio.NewReader(c.conn)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			return
		}

		var msg mpvMessage
		if err := json.Unmarshal(line, &msg); err != nil {
			continue // Skip malformed lines
		}

		if msg.Event != "" {
			select {
			case c.events <- Event{Name: msg.Event, Reason: msg.Reason}:
			default:
			}
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[msg.RequestID]
		delete(c.pending, msg.RequestID)
		c.mu.Unlock()
		if !ok {
			continue
		}

		resp := response{data: msg.Data}
		if msg.Error != "" && msg.Error != "success" {
			resp.err = fmt.Errorf("mpv error: %s", msg.Error)
		}
		ch <- resp
	}
}
