package postgres

import (
	"context"
	"database/sql"

	"github.com/julianstephens/ididit/internal/models"
)

const doColumns = "id, user_id, title, description, created_at, updated_at"

func scanDo(row scanner) (models.Do, error) {
	var d models.Do
	var description sql.NullString
	if err := row.Scan(&d.ID, &d.UserID, &d.Title, &description, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return models.Do{}, err
	}
	d.Description = nullString(description)
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
		"INSERT INTO dos ("+doColumns+") VALUES ($1, $2, $3, $4, $5, $6)",
		do.ID, do.UserID, do.Title, do.Description, do.CreatedAt, do.UpdatedAt)
	return err
}

func (s *Store) GetDo(ctx context.Context, userID, id string) (models.Do, error) {
	d, err := scanDo(s.db.QueryRowContext(ctx,
		"SELECT "+doColumns+" FROM dos WHERE id = $1 AND user_id = $2", id, userID))
	if err != nil {
		return models.Do{}, notFound("do", err)
	}
	return d, nil
}

func (s *Store) ListDos(ctx context.Context, userID string) ([]models.Do, error) {
	return s.queryDos(ctx,
		"SELECT "+doColumns+" FROM dos WHERE user_id = $1 ORDER BY created_at, id", userID)
}

func (s *Store) CountDos(ctx context.Context, userID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM dos WHERE user_id = $1", userID).Scan(&n)
	return n, err
}

func (s *Store) UpdateDo(ctx context.Context, do models.Do) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE dos SET title = $1, description = $2, updated_at = $3 WHERE id = $4 AND user_id = $5",
		do.Title, do.Description, do.UpdatedAt, do.ID, do.UserID)
	if err != nil {
		return err
	}
	return requireAffected(res, "do")
}

func (s *Store) DeleteDo(ctx context.Context, userID, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM dos WHERE id = $1 AND user_id = $2", id, userID)
	if err != nil {
		return err
	}
	return requireAffected(res, "do")
}
