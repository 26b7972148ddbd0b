package sqlite

import (
	"context"
	"database/sql"

	"github.com/julianstephens/ididit/internal/models"
)

const doColumns = "id, user_id, title, description, created_at, updated_at"

func scanDo(row scanner) (models.Do, error) {
	var d models.Do
	var description sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &description, &createdAt, &updatedAt); err != nil {
		return models.Do{}, err
	}
	d.Description = nullString(description)
	var err error
	if d.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Do{}, err
	}
	if d.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Do{}, err
	}
	return d, nil
}

func (s *Store) queryDos(ctx context.Context, query string, args ...any) ([]models.Do, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dos []models.Do
	for rows.Next() {
		d, err := scanDo(rows)
		if err != nil {
			return nil, err
		}
		dos = append(dos, d)
	}
	return dos, rows.Err()
}

func (s *Store) AddDo(ctx context.Context, do models.Do) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO dos ("+doColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		do.ID, do.UserID, do.Title, do.Description, formatTime(do.CreatedAt), formatTime(do.UpdatedAt))
	return err
}

func (s *Store) GetDo(ctx context.Context, userID, id string) (models.Do, error) {
	d, err := scanDo(s.db.QueryRowContext(ctx,
		"SELECT "+doColumns+" FROM dos WHERE id = ? AND user_id = ?", id, userID))
	if err != nil {
		return models.Do{}, notFound("do", err)
	}
	return d, nil
}

func (s *Store) ListDos(ctx context.Context, userID string) ([]models.Do, error) {
	return s.queryDos(ctx,
		"SELECT "+doColumns+" FROM dos WHERE user_id = ? ORDER BY created_at, id", userID)
}

func (s *Store) CountDos(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM dos WHERE user_id = ?", userID).Scan(&n)
	return n, err
}

func (s *Store) UpdateDo(ctx context.Context, do models.Do) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE dos SET title = ?, description = ?, updated_at = ? WHERE id = ? AND user_id = ?",
		do.Title, do.Description, formatTime(do.UpdatedAt), do.ID, do.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res, "do")
}

func (s *Store) DeleteDo(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dos WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res, "do")
}
