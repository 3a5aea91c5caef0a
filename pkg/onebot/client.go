package onebot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

// ErrGatewayDisconnected is returned by Call when no live connection is
// available to carry the request.
var ErrGatewayDisconnected = errors.New("onebot: gateway disconnected")

// EventHandler processes one decoded inbound event. The client runs each
// call on its own goroutine, so a handler may block on gateway, LLM or
// webhook I/O without stalling the read loop.
type EventHandler func(evt Event)

// Client is a reconnecting OneBot V11 WebSocket client. A single instance
// owns at most one live connection at a time; reconnects happen with a
// backoff that doubles from 1s up to 30s while Run's context stays alive.
type Client struct {
	url         string
	accessToken string
	callTimeout time.Duration
	onEvent     EventHandler

	mu       sync.Mutex
	conn     *websocket.Conn
	pending  map[string]chan actionResponse
	connected bool
}

// SetOnEvent installs the event handler after construction, for composition
// roots that need the client itself (to build an adapter/engine) before the
// dispatcher closing over it can be built.
func (c *Client) SetOnEvent(handler EventHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onEvent = handler
}

type Config struct {
	URL         string
	AccessToken string
	CallTimeout time.Duration
	OnEvent     EventHandler
}

func NewClient(cfg Config) *Client {
	timeout := cfg.CallTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:         cfg.URL,
		accessToken: cfg.AccessToken,
		callTimeout: timeout,
		onEvent:     cfg.OnEvent,
		pending:     make(map[string]chan actionResponse),
	}
}

// Run dials the gateway and services it until ctx is canceled, reconnecting
// on any disconnect with a backoff that doubles from 1s to at most 30s. It
// blocks; callers run it in its own goroutine.
func (c *Client) Run(ctx context.Context) {
	backoff := time.Second
	const maxBackoff = 30 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := c.runOnce(ctx); err != nil {
			slog.Warn("onebot gateway connection lost", "error", err, "retry_in", backoff)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

func (c *Client) runOnce(ctx context.Context) error {
	header := http.Header{}
	if c.accessToken != "" {
		header.Set("Authorization", "Bearer "+c.accessToken)
	}

	dialCtx, cancelDial := context.WithTimeout(ctx, 15*time.Second)
	defer cancelDial()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, c.url, header)
	if err != nil {
		return fmt.Errorf("dial %s: %w", sanitizeURL(c.url), err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	slog.Info("onebot gateway connected", "url", sanitizeURL(c.url))

	defer func() {
		c.mu.Lock()
		c.connected = false
		c.conn = nil
		pending := c.pending
		c.pending = make(map[string]chan actionResponse)
		c.mu.Unlock()
		for _, ch := range pending {
			close(ch)
		}
		conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		_, data, err := conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("read: %w", err)
		}
		c.handleFrame(data)
	}
}

func (c *Client) handleFrame(data []byte) {
	var envelope struct {
		Echo string `json:"echo"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && envelope.Echo != "" {
		c.mu.Lock()
		ch, ok := c.pending[envelope.Echo]
		if ok {
			delete(c.pending, envelope.Echo)
		}
		c.mu.Unlock()
		if ok {
			var resp actionResponse
			if err := json.Unmarshal(data, &resp); err == nil {
				ch <- resp
			}
			close(ch)
			return
		}
	}

	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		slog.Debug("onebot: failed to decode frame", "error", err)
		return
	}
	evt.raw = data
	c.mu.Lock()
	handler := c.onEvent
	c.mu.Unlock()
	if handler != nil {
		// Each inbound event gets its own goroutine so a slow handler
		// (gateway call, LLM call, webhook POST) never stalls the read
		// loop that feeds it.
		go handler(evt)
	}
}

// Call issues an action and waits for its correlated response, or for ctx
// to expire, whichever comes first. out, if non-nil, receives the decoded
// "data" payload.
func (c *Client) Call(ctx context.Context, action string, params any, out any) error {
	c.mu.Lock()
	conn := c.conn
	if conn == nil || !c.connected {
		c.mu.Unlock()
		return ErrGatewayDisconnected
	}
	echo := uuid.NewString()
	respCh := make(chan actionResponse, 1)
	c.pending[echo] = respCh
	c.mu.Unlock()

	payload, err := json.Marshal(actionRequest{Action: action, Params: params, Echo: echo})
	if err != nil {
		c.cancelPending(echo)
		return fmt.Errorf("marshal action %s: %w", action, err)
	}

	c.mu.Lock()
	writeErr := conn.WriteMessage(websocket.TextMessage, payload)
	c.mu.Unlock()
	if writeErr != nil {
		c.cancelPending(echo)
		return fmt.Errorf("write action %s: %w", action, writeErr)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	select {
	case <-callCtx.Done():
		c.cancelPending(echo)
		return fmt.Errorf("action %s: %w", action, callCtx.Err())
	case resp, ok := <-respCh:
		if !ok {
			return ErrGatewayDisconnected
		}
		if resp.Status == "failed" || resp.RetCode != 0 {
			return fmt.Errorf("action %s failed: retcode=%d msg=%s wording=%s", action, resp.RetCode, resp.Msg, resp.Wording)
		}
		if out != nil && len(resp.Data) > 0 {
			if err := json.Unmarshal(resp.Data, out); err != nil {
				return fmt.Errorf("decode response for %s: %w", action, err)
			}
		}
		return nil
	}
}

func (c *Client) cancelPending(echo string) {
	c.mu.Lock()
	delete(c.pending, echo)
	c.mu.Unlock()
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func sanitizeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "invalid-url"
	}
	u.User = nil
	return u.String()
}
