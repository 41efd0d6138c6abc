// Package session holds the signed-in user and bearer token. There is one
// Manager per daemon; components that need the token get it injected.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/contentforge/studio/internal/models"
	"github.com/contentforge/studio/internal/pkg/apiclient"
	jwtpkg "github.com/contentforge/studio/internal/pkg/jwt"
	"go.uber.org/zap"
)

var (
	ErrNotAuthenticated  = errors.New("not signed in")
	ErrMissingCredential = errors.New("email and password are required")
)

// Backend is the auth subset of the backend client.
type Backend interface {
	Login(ctx context.Context, creds models.Credentials) (*models.AuthResult, error)
	Register(ctx context.Context, reg models.Registration) (*models.AuthResult, error)
	Me(ctx context.Context) (*models.User, error)
}

// State is a point-in-time view of the session.
type State struct {
	Token     string       `json:"-"`
	User      *models.User `json:"user,omitempty"`
	ExpiresAt *time.Time   `json:"expiresAt,omitempty"`
}

// SignedIn reports whether the state carries a token.
func (s State) SignedIn() bool { return s.Token != "" }

// Manager is safe for concurrent use.
type Manager struct {
	backend Backend
	store   TokenStore
	profile string
	logger  *zap.Logger
	now     func() time.Time

	mu       sync.RWMutex
	state    State
	watchers []func(State)
}

func NewManager(backend Backend, store TokenStore, profile string, logger *zap.Logger) *Manager {
	if store == nil {
		store = NewMemoryStore()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if profile == "" {
		profile = "default"
	}
	return &Manager{backend: backend, store: store, profile: profile, logger: logger, now: time.Now}
}

// OnChange registers fn to run after every sign-in and sign-out.
func (m *Manager) OnChange(fn func(State)) {
	m.mu.Lock()
	m.watchers = append(m.watchers, fn)
	m.mu.Unlock()
}

// Token returns the bearer token, or "" when signed out.
func (m *Manager) Token() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Token
}

// User returns the signed-in user.
func (m *Manager) User() (*models.User, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.state.User == nil {
		return nil, false
	}
	u := *m.state.User
	return &u, true
}

// UserID returns the signed-in user's id, or "".
func (m *Manager) UserID() string {
	if u, ok := m.User(); ok {
		return u.ID
	}
	return ""
}

func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

func (m *Manager) Login(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredential
	}
	res, err := m.backend.Login(ctx, models.Credentials{Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return m.establish(ctx, res)
}

func (m *Manager) Register(ctx context.Context, name, email, password string) (*models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrMissingCredential
	}
	res, err := m.backend.Register(ctx, models.Registration{Name: strings.TrimSpace(name), Email: email, Password: password})
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return m.establish(ctx, res)
}

// Restore reloads a persisted token and confirms it with the backend. It
// returns false without error when there is nothing to restore.
func (m *Manager) Restore(ctx context.Context) (bool, error) {
	token, err := m.store.Load(ctx, m.profile)
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if token == "" {
		return false, nil
	}

	expiry, err := m.expiry(token)
	if err != nil {
		m.logger.Warn("discarding unreadable session token", zap.Error(err))
		_ = m.store.Clear(ctx, m.profile)
		return false, nil
	}

	m.mu.Lock()
	m.state = State{Token: token, ExpiresAt: expiry}
	m.mu.Unlock()

	user, err := m.backend.Me(ctx)
	if err != nil {
		if apiclient.IsStatus(err, http.StatusUnauthorized) {
			m.Logout(ctx)
			return false, nil
		}
		m.mu.Lock()
		m.state = State{}
		m.mu.Unlock()
		return false, fmt.Errorf("verify session: %w", err)
	}

	m.mu.Lock()
	m.state.User = user
	st := m.state
	m.mu.Unlock()
	m.logger.Info("session restored", zap.String("user", user.ID), zap.String("profile", m.profile))
	m.fire(st)
	return true, nil
}

// Logout forgets the session locally. It is safe to call when signed out.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	was := m.state.SignedIn()
	m.state = State{}
	m.mu.Unlock()

	if err := m.store.Clear(ctx, m.profile); err != nil {
		m.logger.Warn("session clear failed", zap.Error(err))
	}
	if was {
		m.logger.Info("signed out", zap.String("profile", m.profile))
		m.fire(State{})
	}
}

func (m *Manager) establish(ctx context.Context, res *models.AuthResult) (*models.User, error) {
	expiry, err := m.expiry(res.Token)
	if err != nil {
		return nil, err
	}
	user := res.User
	if user.ID == "" {
		if claims, err := jwtpkg.Inspect(res.Token); err == nil {
			user.ID = claims.Subject()
		}
	}

	st := State{Token: res.Token, User: &user, ExpiresAt: expiry}
	m.mu.Lock()
	m.state = st
	m.mu.Unlock()

	var ttl time.Duration
	if expiry != nil {
		ttl = expiry.Sub(m.now())
	}
	if err := m.store.Save(ctx, m.profile, res.Token, ttl); err != nil {
		m.logger.Warn("session persist failed", zap.Error(err))
	}
	m.logger.Info("signed in", zap.String("user", user.ID), zap.String("email", user.Email))
	m.fire(st)
	out := user
	return &out, nil
}

// expiry returns the token's exp, nil when it has none, and an error when
// the token is unreadable or already expired.
func (m *Manager) expiry(token string) (*time.Time, error) {
	claims, err := jwtpkg.Inspect(token)
	if err != nil {
		return nil, err
	}
	if claims.Expired(m.now()) {
		return nil, fmt.Errorf("%w: token expired", jwtpkg.ErrMalformed)
	}
	exp := claims.Expiry()
	if exp.IsZero() {
		return nil, nil
	}
	return &exp, nil
}

func (m *Manager) fire(st State) {
	m.mu.RLock()
	watchers := append([]func(State){}, m.watchers...)
	m.mu.RUnlock()
	for _, fn := range watchers {
		fn(st)
	}
}
