package gateway

import (
	"encoding/json"
	"strings"

	socketio "github.com/zishang520/socket.io/v2/socket"
	"go.uber.org/zap"
)

type inboundMessage struct {
	Type    string                 `json:"type"`
	Payload map[string]interface{} `json:"payload"`
}

func (h *Hub) registerNamespaces() {
	ns := h.sio.Of(namespaceStudio, nil)
	_ = ns.On("connection", func(args ...any) {
		client, ok := args[0].(*socketio.Socket)
		if !ok {
			return
		}

		if !h.authorized(extractToken(client)) {
			_ = client.Emit("message", formatMessage(eventAuthFailed, "auth failed"))
			client.Disconnect(true)
			return
		}

		sid := string(client.Id())
		h.register <- clientMeta{sid: sid}
		_ = client.Emit("message", formatMessage(eventGatewayConnect, h.connectPayload()))

		_ = client.On("message", func(eventArgs ...any) {
			msg, ok := parseInboundMessage(eventArgs...)
			if !ok {
				return
			}
			if reason := refreshReason(msg); reason != "" && h.onRefresh != nil {
				h.logger.Debug("gateway refresh requested", zap.String("sid", sid), zap.String("reason", reason))
				go h.onRefresh(reason)
			}
		})

		_ = client.On("disconnect", func(_ ...any) {
			h.unregister <- clientMeta{sid: sid}
		})
	})
}

func (h *Hub) authorized(token string) bool {
	if h.accessToken == "" {
		return true
	}
	return normalizeToken(token) == h.accessToken
}

func (h *Hub) connectPayload() interface{} {
	if h.source == nil {
		return nil
	}
	ctx, cancel := contextWithViewTimeout()
	defer cancel()
	return h.source.View(ctx)
}

// refreshReason maps UI lifecycle messages to a refresh trigger. A page
// becoming hidden does not refresh.
func refreshReason(msg inboundMessage) string {
	switch msg.Type {
	case messageVisibility:
		if visible, ok := msg.Payload["visible"].(bool); ok && !visible {
			return ""
		}
		return "visibility"
	case messageFocus:
		return "focus"
	}
	return ""
}

func extractToken(client *socketio.Socket) string {
	handshake := client.Handshake()
	if handshake == nil {
		return ""
	}
	if token := firstValueFromMultiMap(handshake.Query, "token"); token != "" {
		return token
	}
	return firstValueFromMultiMap(handshake.Headers, "authorization")
}

func firstValueFromMultiMap(values map[string][]string, key string) string {
	for k, list := range values {
		if !strings.EqualFold(strings.TrimSpace(k), key) || len(list) == 0 {
			continue
		}
		if v := strings.TrimSpace(list[0]); v != "" {
			return v
		}
	}
	return ""
}

func normalizeToken(raw string) string {
	token := strings.TrimSpace(raw)
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		return strings.TrimSpace(token[7:])
	}
	return token
}

func parseInboundMessage(args ...any) (inboundMessage, bool) {
	if len(args) == 0 || args[0] == nil {
		return inboundMessage{}, false
	}

	var msg inboundMessage
	switch raw := args[0].(type) {
	case map[string]interface{}:
		msg.Type, _ = raw["type"].(string)
		msg.Payload, _ = raw["payload"].(map[string]interface{})
	case string:
		if err := json.Unmarshal([]byte(raw), &msg); err != nil {
			return inboundMessage{}, false
		}
	case []byte:
		if err := json.Unmarshal(raw, &msg); err != nil {
			return inboundMessage{}, false
		}
	default:
		data, err := json.Marshal(raw)
		if err != nil {
			return inboundMessage{}, false
		}
		if err := json.Unmarshal(data, &msg); err != nil {
			return inboundMessage{}, false
		}
	}

	msg.Type = strings.ToUpper(strings.TrimSpace(msg.Type))
	if msg.Type == "" {
		return inboundMessage{}, false
	}
	if msg.Payload == nil {
		msg.Payload = map[string]interface{}{}
	}
	return msg, true
}
