// Package dos manages a user's Dos: at most three daily intentions.
package dos

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// ErrLimitReached is returned by Add when the user already has MaxDosPerUser Dos.
var ErrLimitReached = apperrors.Validation(constants.MsgDoLimitReached)

// Input is the editable part of a Do.
type Input struct {
	Title       string
	Description string
}

func (in Input) normalize() (string, *string, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		return "", nil, apperrors.Validation("タイトルを入力してください。")
	}
	if utf8.RuneCountInString(title) > constants.DoTitleMaxLength {
		return "", nil, apperrors.Validation("タイトルは%d文字以内で入力してください。", constants.DoTitleMaxLength)
	}
	desc := models.OptionalText(in.Description)
	if desc != nil && utf8.RuneCountInString(*desc) > constants.DoDescriptionMaxLength {
		return "", nil, apperrors.Validation("説明は%d文字以内で入力してください。", constants.DoDescriptionMaxLength)
	}
	return title, desc, nil
}

// Manager wraps Do storage with validation and the per-user limit.
type Manager struct {
	store   storage.Provider
	timeout time.Duration
	now     func() time.Time
}

func NewManager(store storage.Provider, timeout time.Duration) *Manager {
	return &Manager{store: store, timeout: timeout, now: time.Now}
}

// WithClock replaces the clock used for timestamps.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

func (m *Manager) List(ctx context.Context, userID string) ([]models.Do, error) {
	ctx, cancel := storage.WithTimeout(ctx, m.timeout)
	defer cancel()
	dos, err := m.store.ListDos(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list dos: %w", err)
	}
	return dos, nil
}

func (m *Manager) Get(ctx context.Context, userID, id string) (models.Do, error) {
	ctx, cancel := storage.WithTimeout(ctx, m.timeout)
	defer cancel()
	return m.store.GetDo(ctx, userID, id)
}

// Add creates a Do with a trimmed title. A blank description is stored as NULL.
func (m *Manager) Add(ctx context.Context, userID string, in Input) (models.Do, error) {
	title, desc, err := in.normalize()
	if err != nil {
		return models.Do{}, err
	}

	ctx, cancel := storage.WithTimeout(ctx, m.timeout)
	defer cancel()

	n, err := m.store.CountDos(ctx, userID)
	if err != nil {
		return models.Do{}, fmt.Errorf("failed to count dos: %w", err)
	}
	if n >= constants.MaxDosPerUser {
		return models.Do{}, ErrLimitReached
	}

	now := m.now()
	do := models.Do{
		ID:          uuid.NewString(),
		UserID:      userID,
		Title:       title,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := m.store.AddDo(ctx, do); err != nil {
		return models.Do{}, fmt.Errorf("failed to add do: %w", err)
	}
	logger.Info("do added", "do_id", do.ID, "title", do.Title)
	return do, nil
}

// Update replaces the title and description of an existing Do.
func (m *Manager) Update(ctx context.Context, userID, id string, in Input) (models.Do, error) {
	title, desc, err := in.normalize()
	if err != nil {
		return models.Do{}, err
	}

	ctx, cancel := storage.WithTimeout(ctx, m.timeout)
	defer cancel()

	do, err := m.store.GetDo(ctx, userID, id)
	if err != nil {
		return models.Do{}, err
	}
	do.Title = title
	do.Description = desc
	do.UpdatedAt = m.now()
	if err := m.store.UpdateDo(ctx, do); err != nil {
		return models.Do{}, fmt.Errorf("failed to update do: %w", err)
	}
	return do, nil
}

// Delete removes the Do together with its achievements.
func (m *Manager) Delete(ctx context.Context, userID, id string) error {
	ctx, cancel := storage.WithTimeout(ctx, m.timeout)
	defer cancel()
	if err := m.store.DeleteDo(ctx, userID, id); err != nil {
		return err
	}
	logger.Info("do deleted", "do_id", id)
	return nil
}

// Find resolves a Do by id, exact title, or a unique case-insensitive title prefix.
func (m *Manager) Find(ctx context.Context, userID, ref string) (models.Do, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Do{}, apperrors.Validation("Doを指定してください。")
	}
	dos, err := m.List(ctx, userID)
	if err != nil {
		return models.Do{}, err
	}

	for _, d := range dos {
		if d.ID == ref || d.Title == ref {
			return d, nil
		}
	}

	var matches []models.Do
	lower := strings.ToLower(ref)
	for _, d := range dos {
		if strings.HasPrefix(strings.ToLower(d.Title), lower) {
			matches = append(matches, d)
		}
	}
	switch len(matches) {
	case 0:
		return models.Do{}, fmt.Errorf("do %q: %w", ref, storage.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		return models.Do{}, apperrors.Validation("「%s」に一致するDoが複数あります。", ref)
	}
}

// IsNotFound reports whether err means the Do does not exist for the user.
func IsNotFound(err error) bool {
	return errors.Is(err, storage.ErrNotFound)
}
