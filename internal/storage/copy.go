package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/julianstephens/ididit/internal/constants"
)

const defaultTimeout = constants.DefaultRemoteTimeout

// CopyResult counts the rows written by Copy.
type CopyResult struct {
	Users          int
	Profiles       int
	MessageSets    int
	PraiseMessages int
	Dos            int
	Achievements   int
}

// Copy moves every row from src into dst, which must already be initialized.
// Message sets whose name already exists in dst are reused, and their messages are
// re-pointed at the existing set.
func Copy(ctx context.Context, src, dst Provider, progress func(string)) (CopyResult, error) {
	if progress == nil {
		progress = func(string) {}
	}
	var res CopyResult

	snap, err := src.Snapshot(ctx)
	if err != nil {
		return res, fmt.Errorf("failed to read source: %w", err)
	}

	progress("Migrating users...")
	for _, u := range snap.Users {
		if err := dst.AddUser(ctx, u); err != nil {
			return res, fmt.Errorf("failed to add user %s: %w", u.ID, err)
		}
		res.Users++
	}

	progress("Migrating message sets...")
	setIDs := make(map[string]string, len(snap.MessageSets))
	for _, set := range snap.MessageSets {
		existing, err := dst.GetMessageSetByName(ctx, set.Name)
		switch {
		case err == nil:
			setIDs[set.ID] = existing.ID
			continue
		case !errors.Is(err, ErrNotFound):
			return res, fmt.Errorf("failed to look up message set %q: %w", set.Name, err)
		}
		if err := dst.AddMessageSet(ctx, set); err != nil {
			return res, fmt.Errorf("failed to add message set %q: %w", set.Name, err)
		}
		setIDs[set.ID] = set.ID
		res.MessageSets++
	}
	for _, msg := range snap.PraiseMessages {
		if mapped, ok := setIDs[msg.SetID]; ok {
			msg.SetID = mapped
		}
		if err := dst.AddPraiseMessage(ctx, msg); err != nil {
			return res, fmt.Errorf("failed to add praise message %s: %w", msg.ID, err)
		}
		res.PraiseMessages++
	}

	progress("Migrating profiles...")
	for _, p := range snap.Profiles {
		if p.SelectedMessageSetID != nil {
			if mapped, ok := setIDs[*p.SelectedMessageSetID]; ok {
				p.SelectedMessageSetID = &mapped
			}
		}
		if _, err := dst.EnsureProfile(ctx, p); err != nil {
			return res, fmt.Errorf("failed to add profile %s: %w", p.ID, err)
		}
		if err := dst.UpdateProfile(ctx, p); err != nil {
			return res, fmt.Errorf("failed to update profile %s: %w", p.ID, err)
		}
		res.Profiles++
	}

	progress("Migrating dos...")
	for _, d := range snap.Dos {
		if err := dst.AddDo(ctx, d); err != nil {
			return res, fmt.Errorf("failed to add do %s: %w", d.ID, err)
		}
		res.Dos++
	}

	progress("Migrating achievements...")
	for _, a := range snap.Achievements {
		if _, _, err := dst.InsertAchievement(ctx, a); err != nil {
			return res, fmt.Errorf("failed to add achievement %s: %w", a.ID, err)
		}
		res.Achievements++
	}

	return res, nil
}
