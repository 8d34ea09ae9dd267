package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// WSOptions tunes a websocket bridge client
type WSOptions struct {
	APIKey            string
	RequestTimeout    time.Duration
	ReconnectDelay    time.Duration
	MaxReconnectDelay time.Duration
	PingInterval      time.Duration
	Logger            *slog.Logger

	// OnPush receives frames that do not answer a request
	OnPush func(Response)
}

type result struct {
	resp Response
	err  error
}

// WSClient is a bridge reached over a websocket session
type WSClient struct {
	endpoint string
	opts     WSOptions
	log      *slog.Logger

	connectMu sync.Mutex

	mu      sync.Mutex
	conn    *websocket.Conn
	send    chan []byte
	pending map[string]chan result

	// State
	connected    bool
	reconnecting bool
	started      bool
	lastError    error
	lastSeen     time.Time

	done      chan struct{}
	closeOnce sync.Once
}

// NewWSClient creates a websocket bridge client for endpoint (ws:// or wss://)
func NewWSClient(endpoint string, opts WSOptions) *WSClient {
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 15 * time.Second
	}
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = 1 * time.Second
	}
	if opts.MaxReconnectDelay < opts.ReconnectDelay {
		opts.MaxReconnectDelay = 30 * time.Second
	}
	if opts.PingInterval <= 0 {
		opts.PingInterval = 30 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &WSClient{
		endpoint: endpoint,
		opts:     opts,
		log:      logger,
		pending:  make(map[string]chan result),
		done:     make(chan struct{}),
	}
}

// Connect dials the bridge. Once connected the client keeps the session
// alive, reconnecting with exponential backoff until Close.
func (c *WSClient) Connect(ctx context.Context) error {
	c.connectMu.Lock()
	defer c.connectMu.Unlock()

	c.mu.Lock()
	started := c.started
	c.mu.Unlock()
	if started {
		return nil
	}

	select {
	case <-c.done:
		return ErrNotConnected
	default:
	}

	conn, err := c.dial(ctx)
	if err != nil {
		c.setError(err)
		return err
	}

	send := c.attach(conn)

	c.mu.Lock()
	c.started = true
	c.mu.Unlock()

	go c.connectionLoop(conn, send)
	return nil
}

// Close stops the session and fails outstanding requests
func (c *WSClient) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
		c.mu.Lock()
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
	})
	return nil
}

// Status returns the current connection status
func (c *WSClient) Status() ConnectionStatus {
	c.mu.Lock()
	defer c.mu.Unlock()

	errStr := ""
	if c.lastError != nil {
		errStr = c.lastError.Error()
	}

	return ConnectionStatus{
		Connected:    c.connected,
		Reconnecting: c.reconnecting,
		LastError:    errStr,
		LastSeen:     c.lastSeen,
	}
}

// Printers asks the remote bridge for its printers
func (c *WSClient) Printers(ctx context.Context) ([]string, error) {
	resp, err := c.call(ctx, Request{Call: CallPrinters})
	if err != nil {
		return nil, err
	}
	return resp.Printers, nil
}

// NewConfig creates a single-copy job config
func (c *WSClient) NewConfig(printerID string) Config {
	return Config{Printer: printerID, Copies: 1}
}

// Print submits a job to the remote bridge and waits for its outcome
func (c *WSClient) Print(ctx context.Context, cfg Config, data []Segment) error {
	_, err := c.call(ctx, Request{Call: CallPrint, Config: &cfg, Data: data})
	return err
}

func (c *WSClient) call(ctx context.Context, req Request) (Response, error) {
	req.ID = uuid.NewString()
	payload, err := json.Marshal(req)
	if err != nil {
		return Response{}, err
	}

	ch := make(chan result, 1)

	c.mu.Lock()
	send := c.send
	if send == nil {
		c.mu.Unlock()
		return Response{}, ErrNotConnected
	}
	c.pending[req.ID] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, req.ID)
		c.mu.Unlock()
	}()

	timer := time.NewTimer(c.opts.RequestTimeout)
	defer timer.Stop()

	select {
	case send <- payload:
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.done:
		return Response{}, ErrNotConnected
	case <-timer.C:
		return Response{}, fmt.Errorf("%s: send timed out", req.Call)
	}

	select {
	case res := <-ch:
		if res.err != nil {
			return Response{}, res.err
		}
		if res.resp.Error != "" {
			return res.resp, &RemoteError{Message: res.resp.Error}
		}
		return res.resp, nil
	case <-ctx.Done():
		return Response{}, ctx.Err()
	case <-c.done:
		return Response{}, ErrNotConnected
	case <-timer.C:
		return Response{}, fmt.Errorf("%s: no response within %v", req.Call, c.opts.RequestTimeout)
	}
}

func (c *WSClient) dial(ctx context.Context) (*websocket.Conn, error) {
	header := http.Header{}
	if c.opts.APIKey != "" {
		header.Set("X-API-Key", c.opts.APIKey)
	}

	c.log.Info("Connecting to bridge", "endpoint", c.endpoint)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, c.endpoint, header)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}
	return conn, nil
}

// connectionLoop runs the session and reconnects after it drops
func (c *WSClient) connectionLoop(conn *websocket.Conn, send chan []byte) {
	delay := c.opts.ReconnectDelay

	for {
		c.runConnection(conn, send)

		for {
			select {
			case <-c.done:
				return
			case <-time.After(delay):
			}

			var err error
			conn, err = c.dial(context.Background())
			if err == nil {
				break
			}

			c.mu.Lock()
			c.reconnecting = true
			c.lastError = err
			c.mu.Unlock()

			c.log.Warn("Bridge connection failed", "error", err, "retry_in", delay)

			// Exponential backoff
			delay *= 2
			if delay > c.opts.MaxReconnectDelay {
				delay = c.opts.MaxReconnectDelay
			}
		}

		// Connected successfully, reset delay
		send = c.attach(conn)
		delay = c.opts.ReconnectDelay
	}
}

// attach makes conn the live session so calls can be sent on it
func (c *WSClient) attach(conn *websocket.Conn) chan []byte {
	send := make(chan []byte, 16)

	c.mu.Lock()
	c.conn = conn
	c.send = send
	c.connected = true
	c.reconnecting = false
	c.lastError = nil
	c.lastSeen = time.Now()
	c.mu.Unlock()

	c.log.Info("Bridge connected", "endpoint", c.endpoint)
	return send
}

// runConnection handles read/write on an established connection
func (c *WSClient) runConnection(conn *websocket.Conn, send chan []byte) {
	stop := make(chan struct{})

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		defer close(stop)
		c.readLoop(conn)
	}()

	go func() {
		defer wg.Done()
		c.writeLoop(conn, send, stop)
	}()

	wg.Wait()

	c.mu.Lock()
	c.connected = false
	c.conn = nil
	c.send = nil
	pending := c.pending
	c.pending = make(map[string]chan result)
	c.mu.Unlock()
	conn.Close()

	for _, ch := range pending {
		ch <- result{err: ErrNotConnected}
	}

	c.log.Warn("Bridge disconnected", "endpoint", c.endpoint)
}

// readLoop reads incoming frames and routes answers to their callers
func (c *WSClient) readLoop(conn *websocket.Conn) {
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.setError(err)
				c.log.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var resp Response
		if err := json.Unmarshal(message, &resp); err != nil {
			c.log.Warn("Failed to parse message", "error", err)
			continue
		}

		c.mu.Lock()
		c.lastSeen = time.Now()
		ch, ok := c.pending[resp.ID]
		if ok {
			delete(c.pending, resp.ID)
		}
		c.mu.Unlock()

		switch {
		case ok:
			ch <- result{resp: resp}
		case resp.Type == TypePong:
			// Heartbeat response, nothing to do
		case c.opts.OnPush != nil:
			c.opts.OnPush(resp)
		}
	}
}

// writeLoop handles outgoing frames and pings
func (c *WSClient) writeLoop(conn *websocket.Conn, send <-chan []byte, stop <-chan struct{}) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()

	write := func(data []byte) bool {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			c.setError(err)
			c.log.Warn("WebSocket write error", "error", err)
			conn.Close()
			return false
		}
		return true
	}

	ping, _ := json.Marshal(Request{Type: TypePing})

	for {
		select {
		case <-c.done:
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(time.Second))
			conn.Close()
			return
		case <-stop:
			return
		case message := <-send:
			if !write(message) {
				return
			}
		case <-ticker.C:
			if !write(ping) {
				return
			}
		}
	}
}

func (c *WSClient) setError(err error) {
	if errors.Is(err, context.Canceled) {
		return
	}
	c.mu.Lock()
	c.lastError = err
	c.mu.Unlock()
}
