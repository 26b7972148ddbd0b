package achievement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// Accessor is the only path from the tracker to stored achievements.
// Each call is one independent store operation bounded by the remote timeout.
type Accessor struct {
	store   storage.Provider
	timeout time.Duration
	now     func() time.Time
}

func NewAccessor(store storage.Provider, timeout time.Duration) *Accessor {
	return &Accessor{store: store, timeout: timeout, now: time.Now}
}

func (a *Accessor) row(userID, doID, day string, memo *string) (models.Achievement, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return models.Achievement{}, fmt.Errorf("failed to generate achievement id: %w", err)
	}
	return models.Achievement{
		ID:           id.String(),
		UserID:       userID,
		DoID:         doID,
		AchievedDate: day,
		Memo:         memo,
		CreatedAt:    a.now(),
	}, nil
}

// Create records the achievement unless it already exists. It reports whether
// this call created the row; an existing row is returned without error.
func (a *Accessor) Create(ctx context.Context, userID, doID, day string) (models.Achievement, bool, error) {
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()

	row, err := a.row(userID, doID, day, nil)
	if err != nil {
		return models.Achievement{}, false, err
	}
	stored, created, err := a.store.InsertAchievement(ctx, row)
	if err == nil {
		return stored, created, nil
	}
	if !apperrors.IsConflict(err) {
		return models.Achievement{}, false, err
	}

	// A driver that reports the duplicate instead of skipping it still means the row exists.
	logger.Debug("achievement already recorded", "do_id", doID, "date", day)
	existing, getErr := a.store.GetAchievement(ctx, row.Key())
	if getErr != nil {
		return models.Achievement{}, false, getErr
	}
	return existing, false, nil
}

// Get returns the achievement for (user, do, day) or an error wrapping storage.ErrNotFound.
func (a *Accessor) Get(ctx context.Context, userID, doID, day string) (models.Achievement, error) {
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.GetAchievement(ctx, models.AchievementKey{UserID: userID, DoID: doID, Day: day})
}

// Exists reports whether (user, do, day) is recorded.
func (a *Accessor) Exists(ctx context.Context, userID, doID, day string) (bool, error) {
	_, err := a.Get(ctx, userID, doID, day)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Delete removes the row matching the unique triple. Deleting nothing is not an error.
func (a *Accessor) Delete(ctx context.Context, userID, doID, day string) (bool, error) {
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.DeleteAchievement(ctx, models.AchievementKey{UserID: userID, DoID: doID, Day: day})
}

// DeleteByID removes a row already resolved from a listing.
func (a *Accessor) DeleteByID(ctx context.Context, userID, id string) (bool, error) {
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.DeleteAchievementByID(ctx, userID, id)
}

// UpsertMemo sets the memo of (user, do, day), creating the row when absent.
func (a *Accessor) UpsertMemo(ctx context.Context, userID, doID, day string, memo *string) (models.Achievement, error) {
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()

	row, err := a.row(userID, doID, day, memo)
	if err != nil {
		return models.Achievement{}, err
	}
	return a.store.UpsertAchievementMemo(ctx, row)
}

// Month lists the user's achievements in the month "YYYY-MM".
func (a *Accessor) Month(ctx context.Context, userID, month string) ([]models.Achievement, error) {
	start, end, err := MonthRange(month)
	if err != nil {
		return nil, err
	}
	ctx, cancel := storage.WithTimeout(ctx, a.timeout)
	defer cancel()
	return a.store.ListAchievements(ctx, userID, start, end)
}

// MonthRange returns the first and last day of "YYYY-MM" in storage format.
func MonthRange(month string) (string, string, error) {
	first, err := time.Parse(constants.MonthFormat, month)
	if err != nil {
		return "", "", apperrors.Validation("月の形式が正しくありません（YYYY-MM）: %s", month)
	}
	last := first.AddDate(0, 1, -1)
	return first.Format(constants.DateFormat), last.Format(constants.DateFormat), nil
}
