package sqlite

import (
	"context"
	"fmt"

	"github.com/julianstephens/ididit/internal/storage"
)

// Snapshot reads every table for `ididit init --source`.
func (s *Store) Snapshot(ctx context.Context) (storage.Snapshot, error) {
	var snap storage.Snapshot
	var err error

	if snap.Users, err = s.ListUsers(ctx); err != nil {
		return snap, fmt.Errorf("failed to read users: %w", err)
	}
	if snap.Profiles, err = s.listProfiles(ctx); err != nil {
		return snap, fmt.Errorf("failed to read profiles: %w", err)
	}
	if snap.MessageSets, err = s.ListMessageSets(ctx); err != nil {
		return snap, fmt.Errorf("failed to read message sets: %w", err)
	}
	if snap.PraiseMessages, err = s.queryPraiseMessages(ctx,
		"SELECT id, set_id, message, created_at FROM praise_messages ORDER BY created_at, id"); err != nil {
		return snap, fmt.Errorf("failed to read praise messages: %w", err)
	}
	if snap.Dos, err = s.queryDos(ctx, "SELECT "+doColumns+" FROM dos ORDER BY created_at, id"); err != nil {
		return snap, fmt.Errorf("failed to read dos: %w", err)
	}
	if snap.Achievements, err = s.queryAchievements(ctx,
		"SELECT "+achievementColumns+" FROM achievements ORDER BY achieved_date, id"); err != nil {
		return snap, fmt.Errorf("failed to read achievements: %w", err)
	}
	return snap, nil
}
