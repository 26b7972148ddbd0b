// Package server exposes the tracker over a JSON API under /api/v1.
package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	"github.com/julianstephens/ididit/internal/instance"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/praise"
	"github.com/julianstephens/ididit/internal/profile"
	"github.com/julianstephens/ididit/internal/storage"
)

// Config holds the listener and tracker settings.
type Config struct {
	Host             string
	Port             int
	Timeout          time.Duration
	PurgeInterval    time.Duration
	ShutdownTimeout  time.Duration
	ConfirmationMode string
	Probability      float64
	Location         *time.Location
	// LockDir is where the lockfile goes; empty disables it.
	LockDir string
	Debug   bool
}

type Server struct {
	cfg      Config
	store    storage.Provider
	auth     *auth.Service
	dos      *dos.Manager
	profiles *profile.Service
	praise   *praise.Picker
	registry *registry
	secret   string
	now      func() time.Time
}

func New(store storage.Provider, authSvc *auth.Service, cfg Config) *Server {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{
		cfg:      cfg,
		store:    store,
		auth:     authSvc,
		dos:      dos.NewManager(store, cfg.Timeout),
		profiles: profile.NewService(store, cfg.Timeout),
		praise:   praise.NewPicker(store, cfg.Timeout),
		now:      time.Now,
	}
	s.registry = newRegistry(s.newTracker)
	return s
}

func (s *Server) newTracker(session achievement.Session) *achievement.Tracker {
	decider, err := achievement.DeciderFor(s.cfg.ConfirmationMode, s.cfg.Probability)
	if err != nil {
		logger.Warn("invalid confirmation mode, asking every time", "mode", s.cfg.ConfirmationMode, "error", err)
		decider = achievement.FixedDecider(true)
	}
	return achievement.NewTracker(achievement.Config{
		Accessor: achievement.NewAccessor(s.store, s.cfg.Timeout),
		Dos:      s.store,
		Session:  session,
		Decider:  decider,
		Praise:   s.praise,
		Location: s.cfg.Location,
		Now:      s.now,
	})
}

// Handler builds the gin engine with every route.
func (s *Server) Handler() http.Handler {
	if !s.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery(), logRequests())

	router.GET("/healthz", s.requireSecret, s.handleHealth)

	v1 := router.Group("/api/v1")

	authGroup := v1.Group("/auth")
	authGroup.POST("/signup", s.handleSignUp)
	authGroup.POST("/login", s.handleLogin)
	authGroup.POST("/logout", s.requireSession, s.handleLogout)
	authGroup.GET("/me", s.requireSession, s.handleMe)
	authGroup.PUT("/password", s.requireSession, s.handleChangePassword)

	private := v1.Group("", s.requireSession)

	private.GET("/dos", s.handleListDos)
	private.POST("/dos", s.handleCreateDo)
	private.PUT("/dos/:id", s.handleUpdateDo)
	private.DELETE("/dos/:id", s.handleDeleteDo)

	private.GET("/achievements", s.handleListAchievements)
	private.POST("/achievements/toggle", s.handleToggle)
	private.PUT("/achievements/memo", s.handleSaveMemo)

	private.GET("/confirmation", s.handlePending)
	private.POST("/confirmation/confirm", s.handleConfirm)
	private.POST("/confirmation/cancel", s.handleCancel)

	private.GET("/celebration", s.handleCelebration)
	private.POST("/celebration/close", s.handleCloseCelebration)

	private.GET("/profile", s.handleGetProfile)
	private.PATCH("/profile", s.handleUpdateProfile)
	private.DELETE("/account", s.handleDeleteAccount)

	private.GET("/message-sets", s.handleListSets)
	private.POST("/message-sets", s.handleCreateSet)
	private.GET("/message-sets/:id", s.handleGetSet)
	private.POST("/message-sets/:id/messages", s.handleAddMessage)

	return router
}

// purge removes expired sessions and their trackers.
func (s *Server) purge(ctx context.Context) {
	ids, err := s.auth.PurgeExpired(ctx)
	if err != nil {
		logger.Error("failed to purge expired sessions", "error", err)
		return
	}
	if n := s.registry.drop(ids...); len(ids) > 0 {
		logger.Info("purged expired sessions", "sessions", len(ids), "trackers", n)
	}
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port)))
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	port := listener.Addr().(*net.TCPAddr).Port
	if s.cfg.LockDir != "" {
		lock, err := instance.Acquire(s.cfg.LockDir, port)
		if err != nil {
			listener.Close()
			return err
		}
		s.secret = lock.Secret
		defer func() {
			if err := lock.Release(); err != nil {
				logger.Warn("failed to release lockfile", "error", err)
			}
		}()
	}

	scheduler := cron.New(cron.WithLocation(s.cfg.Location))
	interval := s.cfg.PurgeInterval
	if interval <= 0 {
		interval = constants.DefaultPurgeInterval
	}
	if _, err := scheduler.AddFunc(fmt.Sprintf("@every %s", interval), func() { s.purge(ctx) }); err != nil {
		listener.Close()
		return fmt.Errorf("failed to schedule session purge: %w", err)
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving api", "addr", listener.Addr().String())
		if err := httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down api server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
