// Package socket adapts the socket.io client to the push channel: handlers
// receive raw JSON arguments and Run blocks for the lifetime of a session.
package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/zishang520/engine.io/v2/types"
	sio "github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"
)

const (
	defaultPath            = "/socket.io/"
	reasonServerDisconnect = "io server disconnect"
)

var (
	// ErrConnectRejected is returned when the server refuses the namespace
	// connection, typically an authentication failure. No reconnect follows.
	ErrConnectRejected = errors.New("socket.io connect rejected")
	// ErrServerDisconnect is returned when the server closes the namespace on purpose.
	ErrServerDisconnect = errors.New("socket.io server disconnect")
)

// Handler receives the JSON-encoded arguments of an event.
type Handler func(args []json.RawMessage)

// Options configures a Client.
type Options struct {
	URL            string // http(s) origin of the socket.io server
	Path           string // defaults to /socket.io/
	Namespace      string // defaults to "/"
	Auth           map[string]any
	ReconnectDelay time.Duration // <= 0 disables reconnection
	Logger         *zap.Logger
}

// Client owns one socket.io connection. Nothing is dialed until Run.
type Client struct {
	opts   Options
	logger *zap.Logger

	mu           sync.RWMutex
	handlers     map[string][]Handler
	onConnect    func()
	onDisconnect func(reason error)

	sockMu sync.Mutex
	sock   *sio.Socket

	stopped   chan error
	closeOnce sync.Once
	done      chan struct{}
}

func New(opts Options) *Client {
	if opts.Path == "" {
		opts.Path = defaultPath
	}
	if opts.Namespace == "" {
		opts.Namespace = "/"
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		opts:     opts,
		logger:   logger,
		handlers: make(map[string][]Handler),
		stopped:  make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// On registers a handler for a server event. Handlers for one event run in
// registration order.
func (c *Client) On(event string, h Handler) {
	c.mu.Lock()
	_, known := c.handlers[event]
	c.handlers[event] = append(c.handlers[event], h)
	c.mu.Unlock()

	if known {
		return
	}
	c.sockMu.Lock()
	sock := c.sock
	c.sockMu.Unlock()
	if sock != nil {
		c.attach(sock, event)
	}
}

// OnConnect is called each time the namespace connection is acknowledged.
func (c *Client) OnConnect(fn func()) {
	c.mu.Lock()
	c.onConnect = fn
	c.mu.Unlock()
}

// OnDisconnect is called when an established connection ends.
func (c *Client) OnDisconnect(fn func(reason error)) {
	c.mu.Lock()
	c.onDisconnect = fn
	c.mu.Unlock()
}

// Connected reports whether the namespace connection is currently established.
func (c *Client) Connected() bool {
	c.sockMu.Lock()
	defer c.sockMu.Unlock()
	return c.sock != nil && c.sock.Connected()
}

// Close stops Run. Safe to call more than once.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

// Run connects and blocks until ctx is cancelled, Close is called, or the
// server ends the session. Transport failures are retried by the underlying
// manager when ReconnectDelay > 0.
func (c *Client) Run(ctx context.Context) error {
	c.sockMu.Lock()
	if c.sock != nil {
		c.sockMu.Unlock()
		return errors.New("socket.io client already running")
	}
	sock := c.dial()
	c.sock = sock
	c.sockMu.Unlock()

	defer func() {
		sock.Disconnect()
		c.sockMu.Lock()
		c.sock = nil
		c.sockMu.Unlock()
	}()

	select {
	case <-ctx.Done():
		return nil
	case <-c.done:
		return nil
	case err := <-c.stopped:
		return err
	}
}

func (c *Client) dial() *sio.Socket {
	opts := sio.DefaultOptions()
	opts.SetPath(c.opts.Path)
	opts.SetAutoConnect(false)
	if c.opts.Auth != nil {
		opts.SetAuth(c.opts.Auth)
	}
	opts.SetReconnection(c.opts.ReconnectDelay > 0)
	if c.opts.ReconnectDelay > 0 {
		delay := float64(c.opts.ReconnectDelay.Milliseconds())
		opts.SetReconnectionDelay(delay)
		opts.SetReconnectionDelayMax(delay)
	}

	manager := sio.NewManager(c.opts.URL, opts)
	sock := manager.Socket(c.opts.Namespace, opts)

	_ = sock.On("connect", func(...any) {
		c.mu.RLock()
		fn := c.onConnect
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	})
	_ = sock.On("connect_error", func(args ...any) {
		err := fmt.Errorf("%w: %s", ErrConnectRejected, firstArg(args))
		if sock.Active() && c.opts.ReconnectDelay > 0 {
			c.logger.Warn("socket.io connect failed, retrying", zap.Error(err))
			return
		}
		c.stop(err)
	})
	_ = sock.On("disconnect", func(args ...any) {
		reason := firstArg(args)
		err := fmt.Errorf("socket.io disconnect: %s", reason)
		if reason == reasonServerDisconnect {
			err = ErrServerDisconnect
		}
		c.mu.RLock()
		fn := c.onDisconnect
		c.mu.RUnlock()
		if fn != nil {
			fn(err)
		}
		if reason == reasonServerDisconnect || c.opts.ReconnectDelay <= 0 {
			c.stop(err)
		}
	})

	c.mu.RLock()
	events := make([]string, 0, len(c.handlers))
	for event := range c.handlers {
		events = append(events, event)
	}
	c.mu.RUnlock()
	for _, event := range events {
		c.attach(sock, event)
	}

	sock.Connect()
	return sock
}

func (c *Client) attach(sock *sio.Socket, event string) {
	_ = sock.On(types.EventName(event), func(args ...any) {
		raw := encodeArgs(args)
		c.mu.RLock()
		handlers := append([]Handler(nil), c.handlers[event]...)
		c.mu.RUnlock()
		for _, h := range handlers {
			h(raw)
		}
	})
}

func (c *Client) stop(err error) {
	select {
	case c.stopped <- err:
	default:
	}
}

func encodeArgs(args []any) []json.RawMessage {
	out := make([]json.RawMessage, 0, len(args))
	for _, arg := range args {
		data, err := json.Marshal(arg)
		if err != nil {
			continue
		}
		out = append(out, data)
	}
	return out
}

func firstArg(args []any) string {
	if len(args) == 0 || args[0] == nil {
		return ""
	}
	if err, ok := args[0].(error); ok {
		return err.Error()
	}
	return fmt.Sprint(args[0])
}
