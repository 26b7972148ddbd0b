package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

const achievementReturning = "id, user_id, do_id, to_char(achieved_date, 'YYYY-MM-DD'), memo, created_at"

func scanAchievement(row scanner) (models.Achievement, error) {
	var a models.Achievement
	var memo sql.NullString
	if err := row.Scan(&a.ID, &a.UserID, &a.DoID, &a.AchievedDate, &memo, &a.CreatedAt); err != nil {
		return models.Achievement{}, err
	}
	a.Memo = nullString(memo)
	return a, nil
}

// InsertAchievement inserts only when the Do belongs to the user and the
// (user, do, day) row is absent. A duplicate returns the existing row.
func (s *Store) InsertAchievement(ctx context.Context, a models.Achievement) (models.Achievement, bool, error) {
	stored, err := scanAchievement(s.db.QueryRowContext(ctx, `
		INSERT INTO achievements (id, user_id, do_id, achieved_date, memo, created_at)
		SELECT $1, user_id, id, $2::date, $3, $4
		FROM dos WHERE id = $5 AND user_id = $6
		ON CONFLICT ON CONSTRAINT achievements_user_do_date_key DO NOTHING
		RETURNING `+achievementReturning,
		a.ID, a.AchievedDate, a.Memo, a.CreatedAt, a.DoID, a.UserID))
	if err == nil {
		return stored, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return models.Achievement{}, false, err
	}

	stored, err = s.GetAchievement(ctx, a.Key())
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Achievement{}, false, fmt.Errorf("do %s: %w", a.DoID, storage.ErrNotFound)
		}
		return models.Achievement{}, false, err
	}
	return stored, false, nil
}

func (s *Store) GetAchievement(ctx context.Context, key models.AchievementKey) (models.Achievement, error) {
	a, err := scanAchievement(s.db.QueryRowContext(ctx, `
		SELECT `+achievementReturning+` FROM achievements
		WHERE user_id = $1 AND do_id = $2 AND achieved_date = $3::date`,
		key.UserID, key.DoID, key.Day))
	if err != nil {
		return models.Achievement{}, notFound("achievement", err)
	}
	return a, nil
}

func (s *Store) ListAchievements(ctx context.Context, userID, startDay, endDay string) ([]models.Achievement, error) {
	return s.queryAchievements(ctx, `
		SELECT `+achievementReturning+` FROM achievements
		WHERE user_id = $1 AND achieved_date BETWEEN $2::date AND $3::date
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
	stored, err := scanAchievement(s.db.QueryRowContext(ctx, `
		INSERT INTO achievements (id, user_id, do_id, achieved_date, memo, created_at)
		SELECT $1, user_id, id, $2::date, $3, $4
		FROM dos WHERE id = $5 AND user_id = $6
		ON CONFLICT ON CONSTRAINT achievements_user_do_date_key DO UPDATE SET memo = EXCLUDED.memo
		RETURNING `+achievementReturning,
		a.ID, a.AchievedDate, a.Memo, a.CreatedAt, a.DoID, a.UserID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.Achievement{}, fmt.Errorf("do %s: %w", a.DoID, storage.ErrNotFound)
		}
		return models.Achievement{}, err
	}
	return stored, nil
}

func (s *Store) DeleteAchievement(ctx context.Context, key models.AchievementKey) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM achievements WHERE user_id = $1 AND do_id = $2 AND achieved_date = $3::date",
		key.UserID, key.DoID, key.Day)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (s *Store) DeleteAchievementByID(ctx context.Context, userID, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM achievements WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}
