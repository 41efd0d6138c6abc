package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/contentforge/studio/internal/config"
	"github.com/contentforge/studio/internal/middleware"
	"github.com/contentforge/studio/internal/modules/gateway"
	"github.com/contentforge/studio/internal/modules/push"
	"github.com/contentforge/studio/internal/modules/savedhint"
	"github.com/contentforge/studio/internal/modules/session"
	"github.com/contentforge/studio/internal/modules/syncer"
	"github.com/contentforge/studio/internal/pkg/apiclient"
	"github.com/contentforge/studio/internal/pkg/bark"
	pkgcron "github.com/contentforge/studio/internal/pkg/cron"
	pkgredis "github.com/contentforge/studio/internal/pkg/redis"
	"github.com/contentforge/studio/internal/pkg/socket"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// App holds all application dependencies.
type App struct {
	cfg    *config.AppConfig
	router *gin.Engine
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	rc       *pkgredis.Client
	backend  *apiclient.Client
	session  *session.Manager
	coord    *syncer.Coordinator
	listener *push.Listener
	hub      *gateway.Hub
	bark     *bark.Service
	sched    *pkgcron.Scheduler
	idem     middleware.IdempotenceStore
	started  time.Time
}

// New wires the application: Redis → backend client → session → sync → gateway → routes.
// Nothing talks to the backend until Start.
func New(logger *zap.Logger, cfg *config.AppConfig) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := applyRuntimeSettings(cfg); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	a := &App{cfg: cfg, logger: logger, ctx: ctx, cancel: cancel, started: time.Now()}

	var tokens session.TokenStore = session.NewMemoryStore()
	var hints savedhint.Cache = savedhint.NewMemoryCache()
	a.idem = middleware.NewMemoryIdempotenceStore()
	if cfg.Redis.Enable {
		rc, err := pkgredis.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("redis: %w", err)
		}
		a.rc = rc
		tokens = session.NewRedisStore(rc)
		hints = savedhint.NewRedisCache(rc, 0)
		a.idem = rc
	}

	a.backend = apiclient.New(apiclient.Options{
		BaseURL:   cfg.Backend.URL,
		APIPrefix: cfg.Backend.APIPrefix,
		Timeout:   cfg.BackendTimeout(),
		Logger:    logger.Named("backend"),
	})
	a.session = session.NewManager(a.backend, tokens, cfg.Auth.Profile, logger.Named("session"))
	a.backend.SetTokenSource(a.session.Token)
	a.backend.SetUnauthorizedHook(func() {
		a.logger.Warn("backend rejected the session token, signing out")
		a.session.Logout(context.Background())
	})

	a.coord = syncer.New(syncer.Options{
		Backend:     a.backend,
		Hints:       hints,
		UserID:      a.session.UserID,
		Logger:      logger.Named("sync"),
		BaseContext: ctx,
	})
	a.listener = push.NewListener(a.coord.Jobs(), push.SocketDialer(socket.Options{
		URL:            cfg.Push.URL,
		ReconnectDelay: cfg.ReconnectDelay(),
		Logger:         logger.Named("socket"),
	}), logger.Named("push"))
	a.listener.Subscribe(push.Wildcard, a.coord.HandlePush)

	a.bark = bark.New(func() (string, string, string) {
		b := cfg.Notify.Bark
		return b.Key, b.Server, b.Group
	}, 0)
	if a.bark.Enabled() {
		a.listener.Subscribe(push.Wildcard, a.notifyCompletion)
	}

	a.hub = gateway.NewHub(gateway.Options{
		Source:      a.coord,
		OnRefresh:   a.refreshInBackground,
		AccessToken: cfg.AccessToken,
		Logger:      logger.Named("gateway"),
	})
	a.coord.SetNotifier(a.hub)
	a.session.OnChange(a.onSessionChange)

	a.sched = pkgcron.New()
	registerCronJobs(a.sched, a.coord, a.session, cfg.RefreshInterval(), logger)

	a.router = newRouter(cfg, logger)
	a.registerRoutes()
	return a, nil
}

func newRouter(cfg *config.AppConfig, logger *zap.Logger) *gin.Engine {
	if cfg.IsDev() {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.HandleMethodNotAllowed = true
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(logger))

	corsConfig := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.HeaderRequestID, "X-Idempotence"},
		ExposeHeaders:    []string{"Content-Length", middleware.HeaderRequestID},
		AllowCredentials: true,
	}
	if len(cfg.AllowedOrigins) > 0 {
		patterns := cfg.AllowedOrigins
		corsConfig.AllowOriginFunc = func(origin string) bool {
			host := extractOriginHost(origin)
			for _, pattern := range patterns {
				if matchOriginPattern(pattern, host) {
					return true
				}
			}
			return false
		}
	} else {
		corsConfig.AllowOriginFunc = isLoopbackOrigin
	}
	router.Use(cors.New(corsConfig))
	return router
}

// Start runs the background loops and restores or opens the backend session.
func (a *App) Start() {
	go a.hub.Run(a.ctx)
	a.sched.Start(a.ctx)

	restored, err := a.session.Restore(a.ctx)
	if err != nil {
		a.logger.Warn("session restore failed", zap.Error(err))
	}
	if restored || a.cfg.Auth.Email == "" {
		return
	}
	if _, err := a.session.Login(a.ctx, a.cfg.Auth.Email, a.cfg.Auth.Password); err != nil {
		a.logger.Warn("startup login failed", zap.String("email", a.cfg.Auth.Email), zap.Error(err))
	}
}

func (a *App) onSessionChange(st session.State) {
	if !st.SignedIn() {
		a.listener.Disconnect()
		a.coord.Reset()
		return
	}
	if !a.cfg.Push.Disable {
		userID := ""
		if st.User != nil {
			userID = st.User.ID
		}
		if err := a.listener.Connect(a.ctx, st.Token, userID); err != nil {
			a.logger.Warn("push connect failed", zap.Error(err))
		}
	}
	if err := a.coord.Load(a.ctx); err != nil {
		a.logger.Warn("initial load failed", zap.Error(err))
	}
}

func (a *App) refreshInBackground(reason string) {
	if a.session.Token() == "" {
		return
	}
	if err := a.coord.Refresh(a.ctx, reason); err != nil {
		a.logger.Warn("refresh failed", zap.String("reason", reason), zap.Error(err))
	}
}

// Addr returns the listen address.
func (a *App) Addr() string { return fmt.Sprintf("127.0.0.1:%d", a.cfg.Port) }

// Router returns the HTTP handler.
func (a *App) Router() http.Handler { return a.router }

// Shutdown stops background loops and releases connections.
func (a *App) Shutdown() {
	a.cancel()
	a.listener.Close()
	if a.rc != nil {
		if err := a.rc.Close(); err != nil {
			a.logger.Warn("redis close failed", zap.Error(err))
		}
	}
}
