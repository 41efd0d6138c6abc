// Package push receives job completion events from the backend's socket.io
// channel and applies them to the Job Store before notifying subscribers.
package push

import (
	"context"
	"encoding/json"
	"errors"
	"sort"
	"sync"

	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/modules/jobs"
	"github.com/contentforge/studio/internal/pkg/socket"
	"go.uber.org/zap"
)

const (
	// EventJobCompleted is the backend event carrying a JobCompletedEvent.
	EventJobCompleted = "job_completed"
	// Wildcard subscribes to events for every job.
	Wildcard = "*"
)

// Handler is called after an event has been applied to the Job Store.
// applied is false when the job is not known locally.
type Handler func(ev models.JobCompletedEvent, applied bool)

// Conn is the subset of *socket.Client the listener drives.
type Conn interface {
	On(event string, h socket.Handler)
	OnConnect(fn func())
	OnDisconnect(fn func(reason error))
	Run(ctx context.Context) error
	Connected() bool
	Close()
}

// Dialer builds an unconnected channel authenticated with token.
type Dialer func(token string) Conn

// SocketDialer returns a Dialer backed by the socket.io client.
func SocketDialer(opts socket.Options) Dialer {
	return func(token string) Conn {
		o := opts
		o.Auth = map[string]any{"token": token}
		return socket.New(o)
	}
}

type subscription struct {
	id uint64
	fn Handler
}

// Listener owns at most one push channel at a time.
type Listener struct {
	store  *jobs.Store
	dial   Dialer
	logger *zap.Logger

	mu     sync.Mutex
	conn   Conn
	cancel context.CancelFunc
	token  string
	userID string
	closed bool
	nextID uint64
	subs   map[string][]subscription
}

func NewListener(store *jobs.Store, dial Dialer, logger *zap.Logger) *Listener {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Listener{
		store:  store,
		dial:   dial,
		logger: logger,
		subs:   make(map[string][]subscription),
	}
}

// Connect opens the push channel for the session identified by token. Events
// for other users are dropped when userID is set. Connect is a no-op while a
// channel for the same session is open; a channel opened for another token or
// user is closed and redialed.
func (l *Listener) Connect(ctx context.Context, token, userID string) error {
	if token == "" {
		return errors.New("push: empty token")
	}
	l.mu.Lock()
	if l.conn != nil && l.token == token && l.userID == userID {
		l.mu.Unlock()
		return nil
	}
	stale, staleCancel := l.conn, l.cancel
	l.closed = false
	l.token = token
	l.userID = userID
	conn := l.dial(token)
	runCtx, cancel := context.WithCancel(ctx)
	l.conn = conn
	l.cancel = cancel
	l.mu.Unlock()

	if stale != nil {
		l.logger.Info("push session changed, redialing", zap.String("user", userID))
		staleCancel()
		stale.Close()
	}

	conn.On(EventJobCompleted, l.onJobCompleted)
	conn.OnConnect(func() {
		l.logger.Info("push channel connected", zap.String("user", userID))
	})
	conn.OnDisconnect(func(reason error) {
		l.logger.Warn("push channel disconnected", zap.Error(reason))
	})

	go func() {
		err := conn.Run(runCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			l.logger.Warn("push channel stopped", zap.Error(err))
		}
		l.mu.Lock()
		if l.conn == conn {
			l.conn = nil
			l.cancel = nil
		}
		l.mu.Unlock()
		cancel()
	}()
	return nil
}

// Connected reports whether the push channel is currently up.
func (l *Listener) Connected() bool {
	l.mu.Lock()
	conn := l.conn
	l.mu.Unlock()
	return conn != nil && conn.Connected()
}

// Disconnect closes the channel and releases per-job subscriptions, which
// belong to the session that submitted those jobs. Wildcard subscriptions
// survive for a later Connect.
func (l *Listener) Disconnect() {
	l.mu.Lock()
	conn, cancel := l.conn, l.cancel
	l.conn, l.cancel = nil, nil
	l.token, l.userID = "", ""
	for key := range l.subs {
		if key != Wildcard {
			delete(l.subs, key)
		}
	}
	l.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if conn != nil {
		conn.Close()
	}
}

// Close disconnects and releases every subscription. Events arriving after
// Close are ignored until the next Connect.
func (l *Listener) Close() {
	l.Disconnect()
	l.mu.Lock()
	l.closed = true
	l.subs = make(map[string][]subscription)
	l.mu.Unlock()
}

// Subscribe registers fn for events of jobID, or of every job when jobID is
// Wildcard. A per-job subscription fires once and is then released. The
// returned function unsubscribes and may be called any number of times.
func (l *Listener) Subscribe(jobID string, fn Handler) func() {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.subs[jobID] = append(l.subs[jobID], subscription{id: id, fn: fn})
	l.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			l.mu.Lock()
			l.removeLocked(jobID, id)
			l.mu.Unlock()
		})
	}
}

func (l *Listener) removeLocked(key string, id uint64) {
	list := l.subs[key]
	for i, s := range list {
		if s.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(l.subs, key)
		return
	}
	l.subs[key] = list
}

// Apply applies ev to the Job Store, then fires the job's own subscribers and
// then the wildcard subscribers. It returns false when the event was dropped
// before reaching the store.
func (l *Listener) Apply(ev models.JobCompletedEvent) bool {
	if !ev.Valid() {
		l.logger.Warn("dropping malformed push event", zap.String("job", ev.JobID), zap.String("status", string(ev.Status)))
		return false
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return false
	}
	if l.userID != "" && ev.UserID != "" && ev.UserID != l.userID {
		l.mu.Unlock()
		l.logger.Warn("dropping push event for another user", zap.String("job", ev.JobID))
		return false
	}
	l.mu.Unlock()

	applied := l.store.ApplyCompletion(ev)
	if !applied {
		l.logger.Debug("push event for unknown job", zap.String("job", ev.JobID))
	}

	l.mu.Lock()
	perJob := l.subs[ev.JobID]
	delete(l.subs, ev.JobID)
	wildcard := append([]subscription(nil), l.subs[Wildcard]...)
	l.mu.Unlock()

	sort.Slice(perJob, func(i, j int) bool { return perJob[i].id < perJob[j].id })
	for _, s := range perJob {
		s.fn(ev, applied)
	}
	for _, s := range wildcard {
		s.fn(ev, applied)
	}
	return true
}

func (l *Listener) onJobCompleted(args []json.RawMessage) {
	if len(args) == 0 {
		l.logger.Warn("job_completed without payload")
		return
	}
	var ev models.JobCompletedEvent
	if err := json.Unmarshal(args[0], &ev); err != nil {
		l.logger.Warn("undecodable job_completed payload", zap.Error(err))
		return
	}
	l.logger.Debug("push received",
		zap.String("job", ev.JobID), zap.String("status", string(ev.Status)))
	l.Apply(ev)
}
