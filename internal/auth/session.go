package auth

import (
	"context"
	"errors"
	"sync"

	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
)

// TokenStore persists the session token between runs.
type TokenStore interface {
	LoadToken() (string, error)
	SaveToken(token string) error
	ClearToken() error
}

// MemoryTokens is a TokenStore that lives as long as the process.
type MemoryTokens struct {
	mu    sync.Mutex
	token string
}

func (m *MemoryTokens) LoadToken() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token, nil
}

func (m *MemoryTokens) SaveToken(token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
	return nil
}

func (m *MemoryTokens) ClearToken() error {
	return m.SaveToken("")
}

// State is what listeners see on every auth change.
type State struct {
	SignedIn bool
	UserID   string
	Email    string
	Expired  bool
}

// SessionContext is the signed-in user of one client (a CLI run, a TUI, or one
// API session). It is passed explicitly to everything that needs the user id.
type SessionContext struct {
	svc    *Service
	tokens TokenStore

	mu        sync.RWMutex
	session   models.Session
	email     string
	token     string
	signedIn  bool
	expired   bool
	listeners []func(State)
}

// NewSessionContext returns a signed-out context.
func NewSessionContext(svc *Service, tokens TokenStore) *SessionContext {
	if tokens == nil {
		tokens = &MemoryTokens{}
	}
	return &SessionContext{svc: svc, tokens: tokens}
}

// Load restores the stored session. No stored token leaves the context signed
// out without error; an invalid one is cleared and reported as ErrSessionExpired.
func (c *SessionContext) Load(ctx context.Context) error {
	token, err := c.tokens.LoadToken()
	if err != nil {
		return err
	}
	if token == "" {
		return nil
	}
	return c.adopt(ctx, token)
}

// Adopt verifies a token obtained elsewhere (an Authorization header) and signs in with it.
func (c *SessionContext) Adopt(ctx context.Context, token string) error {
	return c.adopt(ctx, token)
}

func (c *SessionContext) adopt(ctx context.Context, token string) error {
	session, err := c.svc.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionExpired) {
			c.MarkExpired()
		}
		return err
	}
	user, err := c.svc.User(ctx, session.UserID)
	if err != nil {
		return err
	}
	if err := c.tokens.SaveToken(token); err != nil {
		return err
	}
	c.set(session, user.Email, token)
	return nil
}

// SignIn authenticates and stores the token.
func (c *SessionContext) SignIn(ctx context.Context, email, password string) error {
	res, err := c.svc.SignIn(ctx, email, password)
	if err != nil {
		return err
	}
	return c.store(res)
}

// SignUp registers, then behaves like SignIn.
func (c *SessionContext) SignUp(ctx context.Context, email, password string) error {
	res, err := c.svc.SignUp(ctx, email, password)
	if err != nil {
		return err
	}
	return c.store(res)
}

func (c *SessionContext) store(res Result) error {
	if err := c.tokens.SaveToken(res.Token); err != nil {
		return err
	}
	c.set(res.Session, res.User.Email, res.Token)
	return nil
}

func (c *SessionContext) set(session models.Session, email, token string) {
	c.mu.Lock()
	c.session = session
	c.email = email
	c.token = token
	c.signedIn = true
	c.expired = false
	c.mu.Unlock()
	c.notify()
}

// Clear signs out on the server side and forgets the token.
func (c *SessionContext) Clear(ctx context.Context) error {
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()

	var signOutErr error
	if token != "" {
		signOutErr = c.svc.SignOut(ctx, token)
	}
	c.reset(false)
	if err := c.tokens.ClearToken(); err != nil {
		return err
	}
	return signOutErr
}

// MarkExpired drops the session after a session error reported by any call.
func (c *SessionContext) MarkExpired() {
	c.reset(true)
	if err := c.tokens.ClearToken(); err != nil {
		logger.Warn("failed to clear stored session token", "error", err)
	}
}

func (c *SessionContext) reset(expired bool) {
	c.mu.Lock()
	c.session = models.Session{}
	c.email = ""
	c.token = ""
	c.signedIn = false
	c.expired = expired
	c.mu.Unlock()
	c.notify()
}

// OnChange registers fn to run after every sign-in, sign-out or expiry.
func (c *SessionContext) OnChange(fn func(State)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *SessionContext) notify() {
	c.mu.RLock()
	st := c.stateLocked()
	listeners := append(([]func(State))(nil), c.listeners...)
	c.mu.RUnlock()
	for _, fn := range listeners {
		fn(st)
	}
}

func (c *SessionContext) stateLocked() State {
	return State{SignedIn: c.signedIn, UserID: c.session.UserID, Email: c.email, Expired: c.expired}
}

// State returns a snapshot.
func (c *SessionContext) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.stateLocked()
}

// UserID returns the signed-in user id, or "" when signed out.
func (c *SessionContext) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.UserID
}

// RequireUser returns the user id or ErrSessionExpired.
func (c *SessionContext) RequireUser() (string, error) {
	if id := c.UserID(); id != "" {
		return id, nil
	}
	return "", apperrors.ErrSessionExpired
}

func (c *SessionContext) Email() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.email
}

func (c *SessionContext) SessionID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session.ID
}

func (c *SessionContext) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// Expired reports whether the last session ended because it expired.
func (c *SessionContext) Expired() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.expired
}

func (c *SessionContext) SignedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.signedIn
}

// Service returns the underlying auth service.
func (c *SessionContext) Service() *Service {
	return c.svc
}
