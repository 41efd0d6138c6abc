package gateway

import (
	"context"
	"net/http"
	"time"

	"github.com/contentforge/studio/internal/models"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const viewTimeout = 5 * time.Second

func NewHub(opts Options) *Hub {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &Hub{
		clients:     make(map[string]struct{}),
		broadcast:   make(chan Message, 256),
		register:    make(chan clientMeta, 256),
		unregister:  make(chan clientMeta, 256),
		source:      opts.Source,
		onRefresh:   opts.OnRefresh,
		accessToken: opts.AccessToken,
		logger:      logger,
		sio:         socketio.NewServer(nil, nil),
	}
	h.emit = h.emitNamespace
	h.registerNamespaces()
	return h
}

// Run starts the hub loop. It returns when ctx is done.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.sio.Close(nil)
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.sid] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug("gateway client connected", zap.String("sid", c.sid))

		case c := <-h.unregister:
			h.mu.Lock()
			delete(h.clients, c.sid)
			h.mu.Unlock()
			h.logger.Debug("gateway client disconnected", zap.String("sid", c.sid))

		case msg := <-h.broadcast:
			h.emit(msg)
		}
	}
}

// Broadcast queues an event for every connected client. Events are dropped
// when the queue is full.
func (h *Hub) Broadcast(event string, payload interface{}) {
	select {
	case h.broadcast <- Message{Event: event, Payload: payload}:
	default:
		h.logger.Warn("gateway queue full, dropping event", zap.String("event", event))
	}
}

// ViewChanged pushes the current snapshot to every client.
func (h *Hub) ViewChanged(reason string) {
	if h.source == nil || h.ClientCount() == 0 {
		return
	}
	ctx, cancel := contextWithViewTimeout()
	defer cancel()
	h.Broadcast(eventViewUpdated, map[string]interface{}{
		"reason": reason,
		"view":   h.source.View(ctx),
	})
}

// JobCompleted forwards a push event to every client.
func (h *Hub) JobCompleted(ev models.JobCompletedEvent) {
	h.Broadcast(eventJobCompleted, ev)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Handler returns the socket.io HTTP handler mounted at /socket.io.
func (h *Hub) Handler() http.Handler {
	return h.sio.ServeHandler(nil)
}

func (h *Hub) emitNamespace(msg Message) {
	h.sio.Of(namespaceStudio, nil).Emit("message", formatMessage(msg.Event, msg.Payload))
}

func formatMessage(event string, payload interface{}) gatewayPayload {
	return gatewayPayload{Type: event, Data: payload}
}

func contextWithViewTimeout() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), viewTimeout)
}
