package postgres

import (
	"context"
	"database/sql"

	"github.com/julianstephens/ididit/internal/models"
)

const messageSetColumns = "id, name, description, created_at"

func scanMessageSet(row scanner) (models.MessageSet, error) {
	var m models.MessageSet
	var description sql.NullString
	if err := row.Scan(&m.ID, &m.Name, &description, &m.CreatedAt); err != nil {
		return models.MessageSet{}, err
	}
	m.Description = nullString(description)
	return m, nil
}

func (s *Store) ListMessageSets(ctx context.Context) ([]models.MessageSet, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+messageSetColumns+" FROM message_sets ORDER BY created_at, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []models.MessageSet
	for rows.Next() {
		m, err := scanMessageSet(rows)
		if err != nil {
			return nil, err
		}
		sets = append(sets, m)
	}
	return sets, rows.Err()
}

func (s *Store) GetMessageSet(ctx context.Context, id string) (models.MessageSet, error) {
	m, err := scanMessageSet(s.db.QueryRowContext(ctx, "SELECT "+messageSetColumns+" FROM message_sets WHERE id = $1", id))
	if err != nil {
		return models.MessageSet{}, notFound("message set", err)
	}
	return m, nil
}

func (s *Store) GetMessageSetByName(ctx context.Context, name string) (models.MessageSet, error) {
	m, err := scanMessageSet(s.db.QueryRowContext(ctx, "SELECT "+messageSetColumns+" FROM message_sets WHERE name = $1", name))
	if err != nil {
		return models.MessageSet{}, notFound("message set", err)
	}
	return m, nil
}

func (s *Store) AddMessageSet(ctx context.Context, set models.MessageSet) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO message_sets ("+messageSetColumns+") VALUES ($1, $2, $3, $4)",
		set.ID, set.Name, set.Description, set.CreatedAt)
	return err
}

func (s *Store) ListPraiseMessages(ctx context.Context, setID string) ([]models.PraiseMessage, error) {
	return s.queryPraiseMessages(ctx, `
		SELECT id, set_id, message, created_at FROM praise_messages
		WHERE set_id = $1 ORDER BY created_at, id`, setID)
}

func (s *Store) queryPraiseMessages(ctx context.Context, query string, args ...any) ([]models.PraiseMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []models.PraiseMessage
	for rows.Next() {
		var m models.PraiseMessage
		if err := rows.Scan(&m.ID, &m.SetID, &m.Message, &m.CreatedAt); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func (s *Store) AddPraiseMessage(ctx context.Context, msg models.PraiseMessage) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO praise_messages (id, set_id, message, created_at) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING`,
		msg.ID, msg.SetID, msg.Message, msg.CreatedAt)
	return err
}
