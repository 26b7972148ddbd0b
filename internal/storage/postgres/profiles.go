package postgres

import (
	"context"
	"database/sql"

	"github.com/julianstephens/ididit/internal/models"
)

const profileSelect = `SELECT id, email, to_char(birthday, 'YYYY-MM-DD'), selected_message_set_id, created_at, updated_at FROM profiles`

func scanProfile(row scanner) (models.Profile, error) {
	var p models.Profile
	var birthday, setID sql.NullString
	if err := row.Scan(&p.ID, &p.Email, &birthday, &setID, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return models.Profile{}, err
	}
	p.Birthday = nullString(birthday)
	p.SelectedMessageSetID = nullString(setID)
	return p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, profile models.Profile) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, email, birthday, selected_message_set_id, created_at, updated_at)
		VALUES ($1, $2, $3::date, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING`,
		profile.ID, profile.Email, profile.Birthday, profile.SelectedMessageSetID,
		profile.CreatedAt, profile.UpdatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (models.Profile, error) {
	p, err := scanProfile(s.db.QueryRowContext(ctx, profileSelect+" WHERE id = $1", userID))
	if err != nil {
		return models.Profile{}, notFound("profile", err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile models.Profile) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET email = $1, birthday = $2::date, selected_message_set_id = $3, updated_at = $4
		WHERE id = $5`,
		profile.Email, profile.Birthday, profile.SelectedMessageSetID, profile.UpdatedAt, profile.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, "profile")
}

func (s *Store) listProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, profileSelect+" ORDER BY created_at, id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []models.Profile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}
