package bark

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultServerURL = "https://api.day.app"

// ConfigFunc is called on each push to get the latest Bark settings.
type ConfigFunc func() (key, serverURL, group string)

// Service sends phone notifications via the Bark API.
type Service struct {
	configFn   ConfigFunc
	httpClient *http.Client

	mu         sync.Mutex
	lastPushAt map[string]time.Time
	throttleD  time.Duration
}

// New creates a Bark service. Repeated PushOnce calls for the same key within
// throttle are dropped; throttle <= 0 means ten minutes.
func New(configFn ConfigFunc, throttle time.Duration) *Service {
	if throttle <= 0 {
		throttle = 10 * time.Minute
	}
	return &Service{
		configFn:   configFn,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		lastPushAt: make(map[string]time.Time),
		throttleD:  throttle,
	}
}

// Enabled reports whether a device key is configured.
func (s *Service) Enabled() bool {
	key, _, _ := s.configFn()
	return key != ""
}

type pushPayload struct {
	DeviceKey string `json:"device_key"`
	Title     string `json:"title"`
	Body      string `json:"body"`
	Group     string `json:"group,omitempty"`
}

// Push sends a notification immediately.
func (s *Service) Push(ctx context.Context, title, body string) error {
	key, serverURL, group := s.configFn()
	if key == "" {
		return fmt.Errorf("bark key not configured")
	}
	if serverURL == "" {
		serverURL = defaultServerURL
	}

	b, err := json.Marshal(pushPayload{DeviceKey: key, Title: title, Body: body, Group: group})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(serverURL, "/")+"/push", bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("bark push: status %d", resp.StatusCode)
	}
	return nil
}

// PushOnce sends a notification unless one with the same key went out within
// the throttle window. It reports whether a push was attempted.
func (s *Service) PushOnce(ctx context.Context, key, title, body string) (bool, error) {
	if !s.Enabled() {
		return false, nil
	}

	s.mu.Lock()
	now := time.Now()
	if last, ok := s.lastPushAt[key]; ok && now.Sub(last) < s.throttleD {
		s.mu.Unlock()
		return false, nil
	}
	s.lastPushAt[key] = now
	for k, at := range s.lastPushAt {
		if now.Sub(at) >= s.throttleD {
			delete(s.lastPushAt, k)
		}
	}
	s.mu.Unlock()

	return true, s.Push(ctx, title, body)
}
