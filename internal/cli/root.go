package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/backup"
	"github.com/julianstephens/ididit/internal/config"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/keyring"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/migration"
	"github.com/julianstephens/ididit/internal/praise"
	"github.com/julianstephens/ididit/internal/profile"
	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/storage/postgres"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/utils"
)

// Context is handed to every command's Run method.
type Context struct {
	Store      storage.Provider
	Config     config.Config
	ConfigPath string
	// Tokens keeps the signed-in session between runs.
	Tokens   auth.TokenStore
	Location *time.Location
	Now      func() time.Time

	authSvc *auth.Service
	session *auth.SessionContext
}

// IsPostgres reports whether database names a PostgreSQL connection.
func IsPostgres(database string) bool {
	return strings.HasPrefix(database, "postgres://") ||
		strings.HasPrefix(database, "postgresql://") ||
		strings.Contains(database, "host=")
}

// ResolveDatabase picks the database in order: flag, config/env, keyring, default path.
func ResolveDatabase(flag string, cfg config.Config) string {
	if flag != "" {
		return config.ExpandHome(flag)
	}
	if cfg.Database != "" {
		return cfg.Database
	}
	if connStr, err := keyring.GetConnectionString(); err == nil {
		return connStr
	} else if !errors.Is(err, keyring.ErrNotFound) {
		logger.Debug("keyring lookup failed", "error", err)
	}
	return config.ExpandHome(constants.DefaultDBPath)
}

// OpenStore returns the store for database without connecting.
// PostgreSQL connection strings must not embed a password.
func OpenStore(database string) (storage.Provider, error) {
	if !IsPostgres(database) {
		return sqlite.NewStore(database), nil
	}
	if err := postgres.ValidateConnString(database); err != nil {
		if errors.Is(err, postgres.ErrEmbeddedCredentials) {
			return nil, fmt.Errorf("PostgreSQL connection strings with embedded credentials are not allowed; use the OS keyring (ididit keyring set), IDIDIT_DB_CONNECTION or .pgpass")
		}
		return nil, err
	}
	return postgres.New(database), nil
}

// NewContext builds the command context from the loaded configuration.
func NewContext(store storage.Provider, cfg config.Config, configPath string, tokens auth.TokenStore) (*Context, error) {
	loc, err := utils.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return &Context{
		Store:      store,
		Config:     cfg,
		ConfigPath: configPath,
		Tokens:     tokens,
		Location:   loc,
		Now:        time.Now,
	}, nil
}

// Timeout bounds each store call.
func (c *Context) Timeout() time.Duration {
	return c.Config.RemoteTimeout
}

// Auth returns the auth service, creating it on first use.
func (c *Context) Auth(ctx context.Context) (*auth.Service, error) {
	if c.authSvc != nil {
		return c.authSvc, nil
	}
	svc, err := auth.NewService(ctx, c.Store, auth.Options{
		Secret:     c.Config.Server.JWTSecret,
		SessionTTL: c.Config.Server.SessionTTL,
		Timeout:    c.Timeout(),
		Now:        c.Now,
	})
	if err != nil {
		return nil, err
	}
	c.authSvc = svc
	return svc, nil
}

// Session returns the session context with any stored token loaded.
func (c *Context) Session(ctx context.Context) (*auth.SessionContext, error) {
	if c.session != nil {
		return c.session, nil
	}
	svc, err := c.Auth(ctx)
	if err != nil {
		return nil, err
	}
	session := auth.NewSessionContext(svc, c.Tokens)
	if err := session.Load(ctx); err != nil && !apperrors.IsSession(err) {
		return nil, err
	}
	c.session = session
	return session, nil
}

// RequireUser returns the signed-in session or a hint to sign in.
func (c *Context) RequireUser(ctx context.Context) (*auth.SessionContext, string, error) {
	session, err := c.Session(ctx)
	if err != nil {
		return nil, "", err
	}
	userID, err := session.RequireUser()
	if err != nil {
		if session.Expired() {
			return nil, "", fmt.Errorf("%s 'ididit auth login' でログインしてください", constants.MsgSessionExpired)
		}
		return nil, "", errors.New("ログインしていません。'ididit auth login' でログインしてください")
	}
	return session, userID, nil
}

func (c *Context) Dos() *dos.Manager {
	return dos.NewManager(c.Store, c.Timeout()).WithClock(c.Now)
}

func (c *Context) Profiles() *profile.Service {
	return profile.NewService(c.Store, c.Timeout()).WithClock(c.Now)
}

func (c *Context) Praise() *praise.Picker {
	return praise.NewPicker(c.Store, c.Timeout())
}

// Tracker builds the achievement tracker for the signed-in session.
func (c *Context) Tracker(session *auth.SessionContext) (*achievement.Tracker, error) {
	decider, err := achievement.DeciderFor(c.Config.Confirmation.Mode, c.Config.Confirmation.Probability)
	if err != nil {
		return nil, err
	}
	return achievement.NewTracker(achievement.Config{
		Accessor: achievement.NewAccessor(c.Store, c.Timeout()),
		Dos:      c.Store,
		Session:  session,
		Decider:  decider,
		Praise:   c.Praise(),
		Location: c.Location,
		Now:      c.Now,
	}), nil
}

// Today is the current date in the configured timezone.
func (c *Context) Today() string {
	return utils.Today(c.Now(), c.Location)
}

// IsSQLite reports whether the store is a local SQLite file.
func IsSQLite(store storage.Provider) bool {
	_, ok := store.(*sqlite.Store)
	return ok
}

// MigrationRunner opens the store and returns its schema runner.
func MigrationRunner(store storage.Provider) (*migration.Runner, error) {
	m, ok := store.(interface {
		Migrations() (*migration.Runner, error)
	})
	if !ok {
		return nil, fmt.Errorf("store %T does not support migrations", store)
	}
	if err := store.Load(); err != nil {
		return nil, err
	}
	return m.Migrations()
}

// PerformAutomaticBackup creates an automatic backup and silently handles errors
func (c *Context) PerformAutomaticBackup(ctx context.Context) {
	if !IsSQLite(c.Store) {
		return
	}
	mgr := backup.NewManager(c.Store.GetConfigPath())
	if _, err := mgr.Create(ctx); err != nil {
		// Log warning but don't interrupt user workflow
		logger.Warn("Automatic backup failed", "error", err)
	}
}

// Fail classifies err for display; nil stays nil.
func Fail(err error, op string) error {
	if err == nil {
		return nil
	}
	ue := apperrors.Handle(err, op)
	logger.Debug("command failed", "op", op, "kind", ue.Kind, "error", err)
	return ue
}
