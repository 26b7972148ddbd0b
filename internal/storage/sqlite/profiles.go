package sqlite

import (
	"context"
	"database/sql"

	"github.com/julianstephens/ididit/internal/models"
)

const profileColumns = "id, email, birthday, selected_message_set_id, created_at, updated_at"

func scanProfile(row scanner) (models.Profile, error) {
	var p models.Profile
	var birthday, setID sql.NullString
	var createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Email, &birthday, &setID, &createdAt, &updatedAt); err != nil {
		return models.Profile{}, err
	}
	p.Birthday = nullString(birthday)
	p.SelectedMessageSetID = nullString(setID)
	var err error
	if p.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return models.Profile{}, err
	}
	if p.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return models.Profile{}, err
	}
	return p, nil
}

func (s *Store) EnsureProfile(ctx context.Context, profile models.Profile) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING`,
		profile.ID, profile.Email, profile.Birthday, profile.SelectedMessageSetID,
		formatTime(profile.CreatedAt), formatTime(profile.UpdatedAt))
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
	p, err := scanProfile(s.db.QueryRowContext(ctx, "SELECT "+profileColumns+" FROM profiles WHERE id = ?", userID))
	if err != nil {
		return models.Profile{}, notFound("profile", err)
	}
	return p, nil
}

func (s *Store) UpdateProfile(ctx context.Context, profile models.Profile) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET email = ?, birthday = ?, selected_message_set_id = ?, updated_at = ?
		WHERE id = ?`,
		profile.Email, profile.Birthday, profile.SelectedMessageSetID, formatTime(profile.UpdatedAt), profile.ID)
	if err != nil {
		return err
	}
	return requireAffected(res, "profile")
}

func (s *Store) listProfiles(ctx context.Context) ([]models.Profile, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+profileColumns+" FROM profiles ORDER BY created_at, id")
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
