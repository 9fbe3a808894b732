package remote

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/san-kum/mindstone/internal/state"
)

// Client is a loop sensor and actuator backed by a remote worker.
type Client struct {
	ws     *websocket.Conn
	latest *state.Latest
	logger *slog.Logger

	writeMu sync.Mutex

	mu      sync.Mutex
	lastErr error
	readErr error
	done    chan struct{}
}

// Dial connects to the worker's websocket endpoint, e.g. ws://host:8090/ws.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, http.Header{})
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	c := &Client{
		ws:     ws,
		latest: state.NewLatest(),
		logger: logger,
		done:   make(chan struct{}),
	}
	go c.readLoop()
	return c, nil
}

func (c *Client) readLoop() {
	defer close(c.done)
	defer c.latest.Close()
	var seq state.Sequencer
	for {
		var msg Message
		if err := c.ws.ReadJSON(&msg); err != nil {
			c.mu.Lock()
			c.readErr = err
			c.mu.Unlock()
			return
		}
		switch msg.Type {
		case TypeObservation:
			// A snapshot can arrive twice around connect; repeats are dropped.
			snap := msg.Snapshot()
			if seq.Accept(snap) != nil {
				continue
			}
			c.latest.Publish(snap)
		case TypeError:
			c.logger.Warn("worker reported error", "error", msg.Error)
			c.mu.Lock()
			c.lastErr = fmt.Errorf("%w: %s", ErrRemote, msg.Error)
			c.mu.Unlock()
		}
	}
}

// Acquire returns the newest observation not yet consumed. It fails at once
// after the connection is lost.
func (c *Client) Acquire(ctx context.Context, timeout time.Duration) (state.Snapshot, bool) {
	return c.latest.Acquire(ctx, timeout)
}

// Apply sends out as a command. An error the worker reported since the
// previous Apply is returned once.
func (c *Client) Apply(ctx context.Context, out state.Output) error {
	c.mu.Lock()
	pending := c.lastErr
	c.lastErr = nil
	readErr := c.readErr
	c.mu.Unlock()
	if readErr != nil {
		return fmt.Errorf("connection lost: %w", readErr)
	}

	deadline := time.Now().Add(5 * time.Second)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(deadline)
	err := c.ws.WriteJSON(Message{
		Type:   TypeCommand,
		Time:   out.SourceTime(),
		Values: out.Values(),
		SentAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("send command: %w", err)
	}
	return pending
}

// Close sends a close frame and waits for the read loop to end.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	err := c.ws.Close()
	<-c.done
	return err
}
