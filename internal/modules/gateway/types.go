package gateway

import (
	"context"
	"sync"

	"github.com/contentforge/studio/internal/modules/syncer"
	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

const (
	namespaceStudio = "/studio"

	eventGatewayConnect = "GATEWAY_CONNECT"
	eventViewUpdated    = "VIEW_UPDATED"
	eventJobCompleted   = "JOB_COMPLETED"
	eventAuthFailed     = "AUTH_FAILED"

	messageVisibility = "VISIBILITY"
	messageFocus      = "FOCUS"
)

// Message is the envelope used by hub broadcasts.
type Message struct {
	Event   string      `json:"event"`
	Payload interface{} `json:"payload"`
}

type gatewayPayload struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type clientMeta struct {
	sid string
}

// ViewSource provides the snapshot pushed to UIs.
type ViewSource interface {
	View(ctx context.Context) syncer.Snapshot
}

// Options wires a Hub. AccessToken, when set, must be presented by clients.
type Options struct {
	Source      ViewSource
	OnRefresh   func(reason string)
	AccessToken string
	Logger      *zap.Logger
}

// Hub fans coordinator changes out to local UI clients over socket.io.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]struct{}

	broadcast  chan Message
	register   chan clientMeta
	unregister chan clientMeta

	source      ViewSource
	onRefresh   func(reason string)
	accessToken string
	logger      *zap.Logger
	sio         *socketio.Server
	emit        func(msg Message)
}
