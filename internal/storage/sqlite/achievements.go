package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

const achievementColumns = "id, user_id, do_id, achieved_date, memo, created_at"

func scanAchievement(row scanner) (models.Achievement, error) {
	var a models.Achievement
	var memo sql.NullString
	var createdAt string
	if err := row.Scan(&a.ID, &a.UserID, &a.DoID, &a.AchievedDate, &memo, &createdAt); err != nil {
		return models.Achievement{}, err
	}
	a.Memo = nullString(memo)
	var err error
	if a.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Achievement{}, err
	}
	return a, nil
}

// InsertAchievement inserts only when the Do belongs to the user and the
// (user, do, day) row is absent. A duplicate returns the existing row.
func (s *Store) InsertAchievement(ctx context.Context, a models.Achievement) (models.Achievement, bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		SELECT ?, user_id, id, ?, ?, ?
		FROM dos WHERE id = ? AND user_id = ?
		ON CONFLICT(user_id, do_id, achieved_date) DO NOTHING`,
		a.ID, a.AchievedDate, a.Memo, formatTime(a.CreatedAt), a.DoID, a.UserID)
	if err != nil {
		return models.Achievement{}, false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return models.Achievement{}, false, err
	}

	stored, err := s.GetAchievement(ctx, a.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Achievement{}, false, fmt.Errorf("do %s: %w", a.DoID, storage.ErrNotFound)
		}
		return models.Achievement{}, false, err
	}
	return stored, n > 0, nil
}

func (s *Store) GetAchievement(ctx context.Context, key models.AchievementKey) (models.Achievement, error) {
	a, err := scanAchievement(s.db.QueryRowContext(ctx, `
		SELECT `+achievementColumns+` FROM achievements
		WHERE user_id = ? AND do_id = ? AND achieved_date = ?`,
		key.UserID, key.DoID, key.Day))
	if err != nil {
		return models.Achievement{}, notFound("achievement", err)
	}
	return a, nil
}

func (s *Store) ListAchievements(ctx context.Context, userID, startDay, endDay string) ([]models.Achievement, error) {
	return s.queryAchievements(ctx, `
		SELECT `+achievementColumns+` FROM achievements
		WHERE user_id = ? AND achieved_date >= ? AND achieved_date <= ?
		ORDER BY achieved_date, created_at, id`,
		userID, startDay, endDay)
}

func (s *Store) queryAchievements(ctx context.Context, query string, args ...any) ([]models.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Achievement
	for rows.Next() {
		a, err := scanAchievement(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *Store) UpsertAchievementMemo(ctx context.Context, a models.Achievement) (models.Achievement, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO achievements (`+achievementColumns+`)
		SELECT ?, user_id, id, ?, ?, ?
		FROM dos WHERE id = ? AND user_id = ?
		ON CONFLICT(user_id, do_id, achieved_date) DO UPDATE SET memo = excluded.memo`,
		a.ID, a.AchievedDate, a.Memo, formatTime(a.CreatedAt), a.DoID, a.UserID)
	if err != nil {
		return models.Achievement{}, err
	}
	stored, err := s.GetAchievement(ctx, a.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Achievement{}, fmt.Errorf("do %s: %w", a.DoID, storage.ErrNotFound)
		}
		return models.Achievement{}, err
	}
	return stored, nil
}

func (s *Store) DeleteAchievement(ctx context.Context, key models.AchievementKey) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM achievements WHERE user_id = ? AND do_id = ? AND achieved_date = ?",
		key.UserID, key.DoID, key.Day)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteAchievementByID(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM achievements WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
