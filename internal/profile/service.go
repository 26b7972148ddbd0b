// Package profile manages per-user settings: birthday, praise set and account.
package profile

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// ErrEmailTaken is returned by ChangeEmail when another account uses the address.
var ErrEmailTaken = auth.ErrEmailTaken

// SignOuter ends the current session.
type SignOuter interface {
	Clear(ctx context.Context) error
}

type Service struct {
	store   storage.Provider
	timeout time.Duration
	now     func() time.Time
}

func NewService(store storage.Provider, timeout time.Duration) *Service {
	return &Service{store: store, timeout: timeout, now: time.Now}
}

// WithClock replaces the clock used for timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) Get(ctx context.Context, userID string) (models.Profile, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()
	return s.store.GetProfile(ctx, userID)
}

// Ensure creates the profile for the user when missing and returns it.
func (s *Service) Ensure(ctx context.Context, userID string) (models.Profile, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	now := s.now()
	created, err := s.store.EnsureProfile(ctx, models.Profile{ID: user.ID, Email: user.Email, CreatedAt: now, UpdatedAt: now})
	if err != nil {
		return models.Profile{}, fmt.Errorf("failed to create profile: %w", err)
	}
	if created {
		logger.Info("profile created", "user_id", userID)
	}
	return s.store.GetProfile(ctx, userID)
}

func (s *Service) update(ctx context.Context, userID string, apply func(*models.Profile) error) (models.Profile, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	p, err := s.store.GetProfile(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	if err := apply(&p); err != nil {
		return models.Profile{}, err
	}
	p.UpdatedAt = s.now()
	if err := s.store.UpdateProfile(ctx, p); err != nil {
		return models.Profile{}, fmt.Errorf("failed to update profile: %w", err)
	}
	return p, nil
}

// SetBirthday stores a YYYY-MM-DD birthday; an empty value clears it.
func (s *Service) SetBirthday(ctx context.Context, userID, birthday string) (models.Profile, error) {
	birthday = strings.TrimSpace(birthday)
	if birthday != "" {
		d, err := time.Parse(constants.DateFormat, birthday)
		if err != nil {
			return models.Profile{}, apperrors.Validation("誕生日の形式が正しくありません（YYYY-MM-DD）: %s", birthday)
		}
		if d.After(s.now()) {
			return models.Profile{}, apperrors.Validation("誕生日に未来の日付は指定できません。")
		}
	}
	return s.update(ctx, userID, func(p *models.Profile) error {
		p.Birthday = models.OptionalText(birthday)
		return nil
	})
}

// SelectMessageSet picks the praise set by id or name; an empty value reverts to the default set.
func (s *Service) SelectMessageSet(ctx context.Context, userID, ref string) (models.Profile, error) {
	ref = strings.TrimSpace(ref)
	var setID *string
	if ref != "" {
		set, err := s.resolveSet(ctx, ref)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return models.Profile{}, apperrors.Validation("メッセージセット「%s」が見つかりません。", ref)
			}
			return models.Profile{}, err
		}
		setID = &set.ID
	}
	return s.update(ctx, userID, func(p *models.Profile) error {
		p.SelectedMessageSetID = setID
		return nil
	})
}

func (s *Service) resolveSet(ctx context.Context, ref string) (models.MessageSet, error) {
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()
	set, err := s.store.GetMessageSet(ctx, ref)
	if err == nil || !errors.Is(err, storage.ErrNotFound) {
		return set, err
	}
	return s.store.GetMessageSetByName(ctx, ref)
}

// ChangeEmail updates the sign-in address and the profile copy of it.
func (s *Service) ChangeEmail(ctx context.Context, userID, email string) (models.Profile, error) {
	email, err := auth.NormalizeEmail(email)
	if err != nil {
		return models.Profile{}, err
	}

	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()

	if other, err := s.store.GetUserByEmail(ctx, email); err == nil && other.ID != userID {
		return models.Profile{}, ErrEmailTaken
	} else if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return models.Profile{}, err
	}

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return models.Profile{}, err
	}
	user.Email = email
	user.UpdatedAt = s.now()
	if err := s.store.UpdateUser(ctx, user); err != nil {
		if apperrors.IsConflict(err) {
			return models.Profile{}, ErrEmailTaken
		}
		return models.Profile{}, fmt.Errorf("failed to update user: %w", err)
	}
	return s.update(ctx, userID, func(p *models.Profile) error {
		p.Email = email
		return nil
	})
}

// DeleteAccount signs out and removes the user with every Do, achievement and session.
func (s *Service) DeleteAccount(ctx context.Context, userID string, session SignOuter) error {
	if session != nil {
		if err := session.Clear(ctx); err != nil {
			logger.Warn("sign out before account deletion failed", "user_id", userID, "error", err)
		}
	}
	ctx, cancel := storage.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	logger.Info("account deleted", "user_id", userID)
	return nil
}
