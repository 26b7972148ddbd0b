package storage_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/storage/storagetest"
)

func newSQLite(t *testing.T, name string) *sqlite.Store {
	t.Helper()
	s := sqlite.NewStore(filepath.Join(t.TempDir(), name))
	if err := s.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 5, 10, 9, 0, 0, 0, time.UTC)
	src := newSQLite(t, "src.db")
	dst := newSQLite(t, "dst.db")

	f := storagetest.Fixtures{T: t, Store: src, Now: now}
	u := f.User("copy@example.com")
	d := f.Do(u.ID, "読書")
	memo := "3章まで"
	a := storagetest.Achievement(u.ID, d.ID, "2024-05-09", now)
	a.Memo = &memo
	if _, _, err := src.InsertAchievement(ctx, a); err != nil {
		t.Fatalf("InsertAchievement() error = %v", err)
	}

	custom := models.MessageSet{ID: "custom-set", Name: "自分用", CreatedAt: now}
	if err := src.AddMessageSet(ctx, custom); err != nil {
		t.Fatalf("AddMessageSet() error = %v", err)
	}
	if err := src.AddPraiseMessage(ctx, models.PraiseMessage{ID: "m1", SetID: custom.ID, Message: "天才！", CreatedAt: now}); err != nil {
		t.Fatalf("AddPraiseMessage() error = %v", err)
	}
	p, err := src.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetProfile() error = %v", err)
	}
	p.SelectedMessageSetID = &custom.ID
	if err := src.UpdateProfile(ctx, p); err != nil {
		t.Fatalf("UpdateProfile() error = %v", err)
	}

	var steps []string
	res, err := storage.Copy(ctx, src, dst, func(msg string) { steps = append(steps, msg) })
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if res.Users != 1 || res.Dos != 1 || res.Achievements != 1 || res.Profiles != 1 {
		t.Errorf("Copy() = %+v", res)
	}
	// Seeded sets already exist in dst; only the custom one is new.
	if res.MessageSets != 1 {
		t.Errorf("MessageSets copied = %d, want 1", res.MessageSets)
	}
	if len(steps) == 0 {
		t.Error("progress callback never called")
	}

	got, err := dst.GetAchievement(ctx, a.Key())
	if err != nil {
		t.Fatalf("GetAchievement() on dst error = %v", err)
	}
	if got.MemoText() != memo {
		t.Errorf("memo = %q, want %q", got.MemoText(), memo)
	}
	gotProfile, err := dst.GetProfile(ctx, u.ID)
	if err != nil {
		t.Fatalf("GetProfile() on dst error = %v", err)
	}
	if gotProfile.SelectedMessageSetID == nil || *gotProfile.SelectedMessageSetID != custom.ID {
		t.Errorf("selected set = %v, want %s", gotProfile.SelectedMessageSetID, custom.ID)
	}
}

func TestWithTimeoutDefault(t *testing.T) {
	ctx, cancel := storage.WithTimeout(context.Background(), 0)
	defer cancel()
	deadline, ok := ctx.Deadline()
	if !ok {
		t.Fatal("WithTimeout() context has no deadline")
	}
	if remaining := time.Until(deadline); remaining <= 0 || remaining > 31*time.Second {
		t.Errorf("deadline in %v, want about 30s", remaining)
	}
}
