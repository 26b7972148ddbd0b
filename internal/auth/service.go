package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

var (
	// ErrInvalidCredentials is returned for an unknown email or a wrong password.
	ErrInvalidCredentials = apperrors.Validation("メールアドレスまたはパスワードが正しくありません。")
	// ErrEmailTaken is returned by SignUp when the email is already registered.
	ErrEmailTaken = apperrors.Validation("このメールアドレスは既に登録されています。")
)

// Options configures a Service. Zero values take the defaults.
type Options struct {
	Secret     string
	SessionTTL time.Duration
	Timeout    time.Duration
	Now        func() time.Time
}

// Service issues and verifies session tokens against the store.
type Service struct {
	store   storage.Provider
	secret  []byte
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// Result is a freshly signed-in session.
type Result struct {
	User    models.User
	Session models.Session
	Token   string
}

// NewService resolves the signing secret: opts.Secret, then the one persisted in
// the settings table, else a new random secret that is persisted for next time.
func NewService(ctx context.Context, store storage.Provider, opts Options) (*Service, error) {
	s := &Service{
		store:   store,
		ttl:     opts.SessionTTL,
		timeout: opts.Timeout,
		now:     opts.Now,
	}
	if s.ttl <= 0 {
		s.ttl = constants.DefaultSessionTTL
	}
	if s.now == nil {
		s.now = time.Now
	}

	secret := opts.Secret
	if secret == "" {
		var err error
		if secret, err = s.storedSecret(ctx); err != nil {
			return nil, err
		}
	}
	s.secret = []byte(secret)
	return s, nil
}

func (s *Service) storedSecret(ctx context.Context) (string, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	secret, err := s.store.GetSetting(ctx, constants.SettingJWTSecret)
	if err == nil {
		return secret, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return "", fmt.Errorf("failed to read signing secret: %w", err)
	}

	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate signing secret: %w", err)
	}
	secret = base64.RawURLEncoding.EncodeToString(buf)
	if err := s.store.SetSetting(ctx, constants.SettingJWTSecret, secret); err != nil {
		return "", fmt.Errorf("failed to store signing secret: %w", err)
	}
	logger.Info("generated session signing secret")
	return secret, nil
}

// NormalizeEmail trims and lower-cases an address and checks that it parses.
func NormalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", apperrors.Validation("メールアドレスを入力してください。")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", apperrors.Validation("メールアドレスの形式が正しくありません。")
	}
	return email, nil
}

// ValidatePassword enforces the minimum length.
func ValidatePassword(password string) error {
	if len([]rune(password)) < constants.MinPasswordLength {
		return apperrors.Validation("パスワードは%d文字以上で入力してください。", constants.MinPasswordLength)
	}
	return nil
}

// SignUp registers a user, creates the profile and signs in.
func (s *Service) SignUp(ctx context.Context, email, password string) (Result, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Result{}, err
	}
	if err := ValidatePassword(password); err != nil {
		return Result{}, err
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	if _, err := s.store.GetUserByEmail(ctx, email); err == nil {
		return Result{}, ErrEmailTaken
	} else if !errors.Is(err, storage.ErrNotFound) {
		return Result{}, err
	}

	hash, err := argon2id.CreateHash(password, argon2id.DefaultParams)
	if err != nil {
		return Result{}, fmt.Errorf("failed to hash password: %w", err)
	}
	id, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate user id: %w", err)
	}
	now := s.now()
	user := models.User{
		ID:           id.String(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.store.AddUser(ctx, user); err != nil {
		if apperrors.IsConflict(err) {
			return Result{}, ErrEmailTaken
		}
		return Result{}, fmt.Errorf("failed to insert user: %w", err)
	}
	logger.Info("registered user", "user_id", user.ID)

	return s.startSession(ctx, user)
}

// SignIn checks the password, makes sure a profile exists and opens a session.
func (s *Service) SignIn(ctx context.Context, email, password string) (Result, error) {
	email, err := NormalizeEmail(email)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return Result{}, ErrInvalidCredentials
		}
		return Result{}, err
	}
	match, err := argon2id.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil {
		return Result{}, fmt.Errorf("failed to compare password: %w", err)
	}
	if !match {
		logger.Warn("password mismatch", "user_id", user.ID)
		return Result{}, ErrInvalidCredentials
	}

	return s.startSession(ctx, user)
}

func (s *Service) startSession(ctx context.Context, user models.User) (Result, error) {
	now := s.now()
	profile := models.Profile{ID: user.ID, Email: user.Email, CreatedAt: now, UpdatedAt: now}
	created, err := s.store.EnsureProfile(ctx, profile)
	if err != nil {
		return Result{}, fmt.Errorf("failed to ensure profile: %w", err)
	}
	if created {
		logger.Debug("created profile", "user_id", user.ID)
	}

	id, err := uuid.NewV7()
	if err != nil {
		return Result{}, fmt.Errorf("failed to generate session id: %w", err)
	}
	session := models.Session{
		ID:        id.String(),
		UserID:    user.ID,
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.AddSession(ctx, session); err != nil {
		return Result{}, fmt.Errorf("failed to insert session: %w", err)
	}

	token, err := s.sign(session, now)
	if err != nil {
		return Result{}, err
	}
	logger.Info("signed in", "user_id", user.ID, "session_id", session.ID)
	return Result{User: user, Session: session, Token: token}, nil
}

func (s *Service) sign(session models.Session, now time.Time) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        session.ID,
		Issuer:    constants.AppName,
		Subject:   session.UserID,
		ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		NotBefore: jwt.NewNumericDate(now),
		IssuedAt:  jwt.NewNumericDate(now),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify checks the token signature and expiry and that its session still exists.
// Any failure is reported as ErrSessionExpired.
func (s *Service) Verify(ctx context.Context, token string) (models.Session, error) {
	if token == "" {
		return models.Session{}, apperrors.ErrSessionExpired
	}
	t, err := jwt.ParseWithClaims(
		token,
		&jwt.RegisteredClaims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
			}
			return s.secret, nil
		},
		jwt.WithIssuer(constants.AppName),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return models.Session{}, fmt.Errorf("%w: %w", apperrors.ErrSessionExpired, err)
	}
	claims, ok := t.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.ID == "" {
		return models.Session{}, fmt.Errorf("%w: malformed claims", apperrors.ErrSessionExpired)
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	session, err := s.store.GetSession(ctx, claims.ID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Session{}, fmt.Errorf("%w: session revoked", apperrors.ErrSessionExpired)
		}
		return models.Session{}, err
	}
	if session.UserID != claims.Subject || session.Expired(s.now()) {
		return models.Session{}, apperrors.ErrSessionExpired
	}
	return session, nil
}

// SignOut deletes the token's session. An already invalid token is not an error.
func (s *Service) SignOut(ctx context.Context, token string) error {
	session, err := s.Verify(ctx, token)
	if err != nil {
		if errors.Is(err, apperrors.ErrSessionExpired) {
			return nil
		}
		return err
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.DeleteSession(ctx, session.ID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	logger.Info("signed out", "user_id", session.UserID, "session_id", session.ID)
	return nil
}

// ChangePassword replaces the user's password hash.
func (s *Service) ChangePassword(ctx context.Context, userID, newPassword string) error {
	if err := ValidatePassword(newPassword); err != nil {
		return err
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	hash, err := argon2id.CreateHash(newPassword, argon2id.DefaultParams)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	user.PasswordHash = hash
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	logger.Info("changed password", "user_id", userID)
	return nil
}

// User returns the account behind a session.
func (s *Service) User(ctx context.Context, userID string) (models.User, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.GetUser(ctx, userID)
}

// PurgeExpired deletes expired sessions and returns their ids.
func (s *Service) PurgeExpired(ctx context.Context) ([]string, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	ids, err := s.store.DeleteExpiredSessions(ctx, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to purge sessions: %w", err)
	}
	if len(ids) > 0 {
		logger.Info("purged expired sessions", "count", len(ids))
	}
	return ids, nil
}
