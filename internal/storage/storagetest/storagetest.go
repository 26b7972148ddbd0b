// Package storagetest holds the behavior every storage.Provider must share.
package storagetest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
)

// Fixtures creates users and Dos directly through a provider.
type Fixtures struct {
	T     testing.TB
	Store storage.Provider
	Now   time.Time
}

// User inserts a user with a profile.
func (f Fixtures) User(email string) models.User {
	f.T.Helper()
	u := models.User{
		ID:           uuid.NewString(),
		Email:        email,
		PasswordHash: "hash",
		CreatedAt:    f.Now,
		UpdatedAt:    f.Now,
	}
	ctx := context.Background()
	if err := f.Store.AddUser(ctx, u); err != nil {
		f.T.Fatalf("AddUser() error = %v", err)
	}
	if _, err := f.Store.EnsureProfile(ctx, models.Profile{ID: u.ID, Email: email, CreatedAt: f.Now, UpdatedAt: f.Now}); err != nil {
		f.T.Fatalf("EnsureProfile() error = %v", err)
	}
	return u
}

// Do inserts a Do owned by userID.
func (f Fixtures) Do(userID, title string) models.Do {
	f.T.Helper()
	d := models.Do{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: f.Now,
		UpdatedAt: f.Now,
	}
	if err := f.Store.AddDo(context.Background(), d); err != nil {
		f.T.Fatalf("AddDo() error = %v", err)
	}
	return d
}

// Achievement builds an unsaved achievement row.
func Achievement(userID, doID, day string, now time.Time) models.Achievement {
	return models.Achievement{
		ID:           uuid.NewString(),
		UserID:       userID,
		DoID:         doID,
		AchievedDate: day,
		CreatedAt:    now,
	}
}

// Run exercises a freshly initialized provider returned by open.
func Run(t *testing.T, open func(t *testing.T) storage.Provider) {
	now := time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

	t.Run("Settings", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		if _, err := s.GetSetting(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetSetting(missing) error = %v, want ErrNotFound", err)
		}
		for _, v := range []string{"a", "b"} {
			if err := s.SetSetting(ctx, "k", v); err != nil {
				t.Fatalf("SetSetting() error = %v", err)
			}
		}
		got, err := s.GetSetting(ctx, "k")
		if err != nil || got != "b" {
			t.Errorf("GetSetting() = %q, %v; want b", got, err)
		}
	})

	t.Run("UsersAndSessions", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("a@example.com")

		byEmail, err := s.GetUserByEmail(ctx, "a@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if diff := cmp.Diff(u, byEmail, timeEqual); diff != "" {
			t.Errorf("GetUserByEmail() mismatch (-want +got):\n%s", diff)
		}

		dup := u
		dup.ID = uuid.NewString()
		if err := s.AddUser(ctx, dup); err == nil {
			t.Error("AddUser() with duplicate email succeeded")
		}

		live := models.Session{ID: uuid.NewString(), UserID: u.ID, ExpiresAt: now.Add(time.Hour), CreatedAt: now}
		dead := models.Session{ID: uuid.NewString(), UserID: u.ID, ExpiresAt: now.Add(-time.Minute), CreatedAt: now}
		for _, sess := range []models.Session{live, dead} {
			if err := s.AddSession(ctx, sess); err != nil {
				t.Fatalf("AddSession() error = %v", err)
			}
		}
		purged, err := s.DeleteExpiredSessions(ctx, now)
		if err != nil {
			t.Fatalf("DeleteExpiredSessions() error = %v", err)
		}
		if diff := cmp.Diff([]string{dead.ID}, purged); diff != "" {
			t.Errorf("purged ids mismatch (-want +got):\n%s", diff)
		}
		if _, err := s.GetSession(ctx, live.ID); err != nil {
			t.Errorf("live session gone: %v", err)
		}

		if err := s.DeleteUser(ctx, u.ID); err != nil {
			t.Fatalf("DeleteUser() error = %v", err)
		}
		if _, err := s.GetSession(ctx, live.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("session survived user deletion: %v", err)
		}
		if _, err := s.GetProfile(ctx, u.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("profile survived user deletion: %v", err)
		}
	})

	t.Run("Profiles", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("p@example.com")

		created, err := s.EnsureProfile(ctx, models.Profile{ID: u.ID, Email: u.Email, CreatedAt: now, UpdatedAt: now})
		if err != nil || created {
			t.Errorf("second EnsureProfile() = %v, %v; want false, nil", created, err)
		}

		sets, err := s.ListMessageSets(ctx)
		if err != nil || len(sets) == 0 {
			t.Fatalf("ListMessageSets() = %d sets, %v; want seeded sets", len(sets), err)
		}

		p, err := s.GetProfile(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		birthday := "1990-04-01"
		p.Birthday = &birthday
		p.SelectedMessageSetID = &sets[0].ID
		p.UpdatedAt = now.Add(time.Minute)
		if err := s.UpdateProfile(ctx, p); err != nil {
			t.Fatalf("UpdateProfile() error = %v", err)
		}
		got, err := s.GetProfile(ctx, u.ID)
		if err != nil {
			t.Fatalf("GetProfile() error = %v", err)
		}
		if diff := cmp.Diff(p, got, timeEqual); diff != "" {
			t.Errorf("profile mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("DosAreScopedToOwner", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		alice := f.User("alice@example.com")
		bob := f.User("bob@example.com")
		d := f.Do(alice.ID, "読書")
		f.Now = now.Add(time.Second)
		f.Do(alice.ID, "散歩")

		if _, err := s.GetDo(ctx, bob.ID, d.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetDo() as other user error = %v, want ErrNotFound", err)
		}
		if err := s.DeleteDo(ctx, bob.ID, d.ID); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("DeleteDo() as other user error = %v, want ErrNotFound", err)
		}

		dos, err := s.ListDos(ctx, alice.ID)
		if err != nil {
			t.Fatalf("ListDos() error = %v", err)
		}
		if len(dos) != 2 || dos[0].Title != "読書" || dos[1].Title != "散歩" {
			t.Errorf("ListDos() = %+v, want oldest first", dos)
		}
		if n, err := s.CountDos(ctx, alice.ID); err != nil || n != 2 {
			t.Errorf("CountDos() = %d, %v; want 2", n, err)
		}

		desc := "毎日10ページ"
		d.Description = &desc
		d.Title = "読書する"
		if err := s.UpdateDo(ctx, d); err != nil {
			t.Fatalf("UpdateDo() error = %v", err)
		}
		got, err := s.GetDo(ctx, alice.ID, d.ID)
		if err != nil {
			t.Fatalf("GetDo() error = %v", err)
		}
		if diff := cmp.Diff(d, got, timeEqual); diff != "" {
			t.Errorf("GetDo() mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("InsertAchievementIsIdempotent", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("a@example.com")
		d := f.Do(u.ID, "筋トレ")

		first, created, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now))
		if err != nil || !created {
			t.Fatalf("InsertAchievement() = %v, %v; want created", created, err)
		}
		again, created, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now))
		if err != nil {
			t.Fatalf("duplicate InsertAchievement() error = %v", err)
		}
		if created {
			t.Error("duplicate InsertAchievement() reported created")
		}
		if again.ID != first.ID {
			t.Errorf("duplicate returned id %s, want existing %s", again.ID, first.ID)
		}

		list, err := s.ListAchievements(ctx, u.ID, "2024-05-01", "2024-05-31")
		if err != nil || len(list) != 1 {
			t.Errorf("ListAchievements() = %d rows, %v; want 1", len(list), err)
		}
	})

	t.Run("ConcurrentInsertCreatesOneRow", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("c@example.com")
		d := f.Do(u.ID, "瞑想")

		const workers = 8
		var wg sync.WaitGroup
		createdCount := make(chan bool, workers)
		errs := make(chan error, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, created, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now))
				if err != nil {
					errs <- err
					return
				}
				createdCount <- created
			}()
		}
		wg.Wait()
		close(createdCount)
		close(errs)
		for err := range errs {
			t.Errorf("concurrent InsertAchievement() error = %v", err)
		}
		n := 0
		for c := range createdCount {
			if c {
				n++
			}
		}
		if n != 1 {
			t.Errorf("%d inserts reported created, want 1", n)
		}
		list, err := s.ListAchievements(ctx, u.ID, "2024-05-10", "2024-05-10")
		if err != nil || len(list) != 1 {
			t.Errorf("ListAchievements() = %d rows, %v; want 1", len(list), err)
		}
	})

	t.Run("InsertAchievementForeignDo", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		owner := f.User("owner@example.com")
		other := f.User("other@example.com")
		d := f.Do(owner.ID, "日記")

		_, _, err := s.InsertAchievement(ctx, Achievement(other.ID, d.ID, "2024-05-10", now))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("InsertAchievement() for another user's do error = %v, want ErrNotFound", err)
		}
		_, _, err = s.InsertAchievement(ctx, Achievement(owner.ID, uuid.NewString(), "2024-05-10", now))
		if !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("InsertAchievement() for missing do error = %v, want ErrNotFound", err)
		}
	})

	t.Run("MemoUpsert", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("m@example.com")
		d := f.Do(u.ID, "英語")

		first, _, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now))
		if err != nil {
			t.Fatalf("InsertAchievement() error = %v", err)
		}
		memo := "単語を30個"
		a := Achievement(u.ID, d.ID, "2024-05-10", now)
		a.Memo = &memo
		got, err := s.UpsertAchievementMemo(ctx, a)
		if err != nil {
			t.Fatalf("UpsertAchievementMemo() error = %v", err)
		}
		if got.ID != first.ID || got.MemoText() != memo {
			t.Errorf("UpsertAchievementMemo() = %+v, want id %s with memo", got, first.ID)
		}

		fresh := Achievement(u.ID, d.ID, "2024-05-11", now)
		fresh.Memo = &memo
		got, err = s.UpsertAchievementMemo(ctx, fresh)
		if err != nil || got.ID != fresh.ID {
			t.Errorf("UpsertAchievementMemo() on absent row = %+v, %v; want inserted", got, err)
		}
	})

	t.Run("DeleteAchievement", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("d@example.com")
		d := f.Do(u.ID, "片付け")
		a, _, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now))
		if err != nil {
			t.Fatalf("InsertAchievement() error = %v", err)
		}

		removed, err := s.DeleteAchievement(ctx, a.Key())
		if err != nil || !removed {
			t.Errorf("DeleteAchievement() = %v, %v; want true", removed, err)
		}
		removed, err = s.DeleteAchievement(ctx, a.Key())
		if err != nil || removed {
			t.Errorf("second DeleteAchievement() = %v, %v; want false, nil", removed, err)
		}

		b, _, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-12", now))
		if err != nil {
			t.Fatalf("InsertAchievement() error = %v", err)
		}
		if removed, err := s.DeleteAchievementByID(ctx, "someone-else", b.ID); err != nil || removed {
			t.Errorf("DeleteAchievementByID() as other user = %v, %v; want false", removed, err)
		}
		if err := s.DeleteDo(ctx, u.ID, d.ID); err != nil {
			t.Fatalf("DeleteDo() error = %v", err)
		}
		if _, err := s.GetAchievement(ctx, b.Key()); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("achievement survived do deletion: %v", err)
		}
	})

	t.Run("ListAchievementsRange", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("r@example.com")
		d := f.Do(u.ID, "ストレッチ")
		for _, day := range []string{"2024-04-30", "2024-05-01", "2024-05-31", "2024-06-01"} {
			if _, _, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, day, now)); err != nil {
				t.Fatalf("InsertAchievement(%s) error = %v", day, err)
			}
		}
		list, err := s.ListAchievements(ctx, u.ID, "2024-05-01", "2024-05-31")
		if err != nil {
			t.Fatalf("ListAchievements() error = %v", err)
		}
		var days []string
		for _, a := range list {
			days = append(days, a.AchievedDate)
		}
		if diff := cmp.Diff([]string{"2024-05-01", "2024-05-31"}, days); diff != "" {
			t.Errorf("days mismatch (-want +got):\n%s", diff)
		}
	})

	t.Run("MessageSets", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		set := models.MessageSet{ID: uuid.NewString(), Name: "テスト", CreatedAt: now}
		if err := s.AddMessageSet(ctx, set); err != nil {
			t.Fatalf("AddMessageSet() error = %v", err)
		}
		for i := 0; i < 2; i++ {
			msg := models.PraiseMessage{ID: uuid.NewString(), SetID: set.ID, Message: fmt.Sprintf("すごい%d", i), CreatedAt: now.Add(time.Duration(i) * time.Second)}
			if err := s.AddPraiseMessage(ctx, msg); err != nil {
				t.Fatalf("AddPraiseMessage() error = %v", err)
			}
		}
		byName, err := s.GetMessageSetByName(ctx, "テスト")
		if err != nil || byName.ID != set.ID {
			t.Errorf("GetMessageSetByName() = %+v, %v", byName, err)
		}
		msgs, err := s.ListPraiseMessages(ctx, set.ID)
		if err != nil || len(msgs) != 2 || msgs[0].Message != "すごい0" {
			t.Errorf("ListPraiseMessages() = %+v, %v", msgs, err)
		}
		if _, err := s.GetMessageSet(ctx, uuid.NewString()); !errors.Is(err, storage.ErrNotFound) {
			t.Errorf("GetMessageSet(missing) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("Snapshot", func(t *testing.T) {
		s := open(t)
		ctx := context.Background()
		f := Fixtures{T: t, Store: s, Now: now}
		u := f.User("s@example.com")
		d := f.Do(u.ID, "料理")
		if _, _, err := s.InsertAchievement(ctx, Achievement(u.ID, d.ID, "2024-05-10", now)); err != nil {
			t.Fatalf("InsertAchievement() error = %v", err)
		}
		snap, err := s.Snapshot(ctx)
		if err != nil {
			t.Fatalf("Snapshot() error = %v", err)
		}
		if len(snap.Users) != 1 || len(snap.Profiles) != 1 || len(snap.Dos) != 1 || len(snap.Achievements) != 1 {
			t.Errorf("Snapshot() = %d users, %d profiles, %d dos, %d achievements",
				len(snap.Users), len(snap.Profiles), len(snap.Dos), len(snap.Achievements))
		}
		if len(snap.MessageSets) == 0 || len(snap.PraiseMessages) == 0 {
			t.Error("Snapshot() is missing the seeded message sets")
		}
	})
}

// timeEqual compares instants, ignoring location and monotonic readings.
var timeEqual = cmp.Comparer(func(a, b time.Time) bool { return a.Equal(b) })
