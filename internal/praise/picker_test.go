package praise

import (
	"context"
	"errors"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/storage/storagetest"
)

func setupPicker(t *testing.T) (*Picker, *sqlite.Store, models.User) {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "praise.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	user := storagetest.Fixtures{T: t, Store: store, Now: time.Now()}.User("me@example.com")
	return NewPicker(store, time.Second).WithSeed(7), store, user
}

func messagesOf(t *testing.T, p *Picker, ref string) []string {
	t.Helper()
	_, msgs, err := p.Messages(context.Background(), ref)
	if err != nil {
		t.Fatalf("Messages(%q) error = %v", ref, err)
	}
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = m.Message
	}
	return out
}

func TestPickDefaultSet(t *testing.T) {
	p, _, user := setupPicker(t)
	defaults := messagesOf(t, p, constants.DefaultMessageSetName)
	if len(defaults) == 0 {
		t.Fatal("default message set is empty")
	}
	for i := 0; i < 20; i++ {
		msg, err := p.Pick(context.Background(), user.ID)
		if err != nil {
			t.Fatalf("Pick() error = %v", err)
		}
		if !slices.Contains(defaults, msg) {
			t.Errorf("Pick() = %q, not in the default set", msg)
		}
	}
}

func TestPickSelectedSet(t *testing.T) {
	p, store, user := setupPicker(t)
	ctx := context.Background()

	set, err := p.AddSet(ctx, "  自分用  ", "")
	if err != nil {
		t.Fatalf("AddSet() error = %v", err)
	}
	if set.Name != "自分用" || set.Description != nil {
		t.Errorf("AddSet() = %+v", set)
	}

	profile, _ := store.GetProfile(ctx, user.ID)
	profile.SelectedMessageSetID = &set.ID
	if err := store.UpdateProfile(ctx, profile); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	// An empty selected set falls through to the default.
	msg, err := p.Pick(ctx, user.ID)
	if err != nil || !slices.Contains(messagesOf(t, p, constants.DefaultMessageSetName), msg) {
		t.Errorf("Pick() with empty selected set = %q, %v", msg, err)
	}

	if _, err := p.AddMessage(ctx, set.ID, " 今日もえらい "); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}
	msg, err = p.Pick(ctx, user.ID)
	if err != nil || msg != "今日もえらい" {
		t.Errorf("Pick() = %q, %v; want the only custom message", msg, err)
	}
}

func TestPickWithoutMessages(t *testing.T) {
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "empty.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	defer store.Close()

	p := NewPicker(emptyDefault{store}, time.Second)
	if _, err := p.Pick(context.Background(), "nobody"); !errors.Is(err, ErrNoMessages) {
		t.Errorf("Pick() error = %v, want ErrNoMessages", err)
	}
}

// emptyDefault hides the seeded default set.
type emptyDefault struct {
	*sqlite.Store
}

func (emptyDefault) GetMessageSetByName(context.Context, string) (models.MessageSet, error) {
	return models.MessageSet{}, storage.ErrNotFound
}

func TestAddValidation(t *testing.T) {
	p, _, _ := setupPicker(t)
	ctx := context.Background()
	if _, err := p.AddSet(ctx, " ", ""); !apperrors.IsValidation(err) {
		t.Errorf("AddSet(blank) error = %v", err)
	}
	if _, err := p.AddMessage(ctx, constants.DefaultMessageSetName, ""); !apperrors.IsValidation(err) {
		t.Errorf("AddMessage(blank) error = %v", err)
	}
	if _, err := p.AddMessage(ctx, "no-such-set", "hi"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("AddMessage(unknown set) error = %v", err)
	}
	if _, err := p.AddSet(ctx, constants.DefaultMessageSetName, ""); !apperrors.IsConflict(err) {
		t.Errorf("AddSet(duplicate) error = %v, want conflict", err)
	}
}

func TestSetsIncludesSeeds(t *testing.T) {
	p, _, _ := setupPicker(t)
	sets, err := p.Sets(context.Background())
	if err != nil {
		t.Fatalf("Sets() error = %v", err)
	}
	names := make([]string, len(sets))
	for i, s := range sets {
		names[i] = s.Name
	}
	if !slices.Contains(names, constants.DefaultMessageSetName) {
		t.Errorf("Sets() = %v, missing the default set", names)
	}
}
