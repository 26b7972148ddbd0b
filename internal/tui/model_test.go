package tui

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/praise"
	"github.com/julianstephens/ididit/internal/profile"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/tui/components/calview"
	"github.com/julianstephens/ididit/internal/tui/components/dolist"
	"github.com/julianstephens/ididit/internal/tui/components/settings"
)

var testNow = time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

const testDay = "2024-05-01"

type fixture struct {
	store   *sqlite.Store
	deps    Deps
	userID  string
	running models.Do
}

func newFixture(t *testing.T, confirm bool, signIn bool) *fixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "ididit.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	t.Cleanup(func() { store.Close() })

	ctx := context.Background()
	now := func() time.Time { return testNow }
	svc, err := auth.NewService(ctx, store, auth.Options{Secret: "test-secret", SessionTTL: time.Hour, Timeout: 5 * time.Second, Now: now})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	session := auth.NewSessionContext(svc, &auth.MemoryTokens{})
	if err := session.SignUp(ctx, "runner@example.com", "password123"); err != nil {
		t.Fatalf("SignUp() error = %v", err)
	}

	f := &fixture{store: store, userID: session.UserID()}
	mgr := dos.NewManager(store, 5*time.Second).WithClock(now)
	f.running, err = mgr.Add(ctx, f.userID, dos.Input{Title: "ランニング"})
	if err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if !signIn {
		if err := session.Clear(ctx); err != nil {
			t.Fatalf("Clear() error = %v", err)
		}
	}

	picker := praise.NewPicker(store, 5*time.Second).WithSeed(1)
	f.deps = Deps{
		Session: session,
		Tracker: achievement.NewTracker(achievement.Config{
			Accessor: achievement.NewAccessor(store, 5*time.Second),
			Dos:      store,
			Session:  session,
			Decider:  achievement.FixedDecider(confirm),
			Praise:   picker,
			Location: time.UTC,
			Now:      now,
		}),
		Dos:         mgr,
		Profiles:    profile.NewService(store, 5*time.Second).WithClock(now),
		Praise:      picker,
		Today:       func() string { return testDay },
		ConfirmMode: constants.ConfirmationModeAlways,
	}
	return f
}

func (f *fixture) achieved(t *testing.T) (models.Achievement, bool) {
	t.Helper()
	a, err := f.store.GetAchievement(context.Background(), models.AchievementKey{UserID: f.userID, DoID: f.running.ID, Day: testDay})
	if err != nil {
		return models.Achievement{}, false
	}
	return a, true
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	mm, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return mm, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestNewModelSignedOut(t *testing.T) {
	f := newFixture(t, false, false)
	m := NewModel(f.deps)
	if m.State() != constants.StateSignIn {
		t.Errorf("state = %v, want sign in", m.State())
	}
	if m.View() == "" {
		t.Error("empty sign-in view")
	}
}

func TestToggleWithConfirmationAndMemo(t *testing.T) {
	f := newFixture(t, true, true)
	m := NewModel(f.deps)
	if m.State() != constants.StateDos {
		t.Fatalf("state = %v, want Do list", m.State())
	}

	m, _ = update(t, m, dolist.ToggleDoMsg{Do: f.running, Date: testDay})
	if m.State() != constants.StateConfirmAchievement {
		t.Fatalf("state = %v, want confirmation", m.State())
	}
	if _, ok := f.achieved(t); ok {
		t.Fatal("achievement written before confirmation")
	}

	m, _ = update(t, m, runes("y"))
	if m.State() != constants.StateCelebration {
		t.Fatalf("state = %v, want celebration", m.State())
	}
	if !f.deps.Tracker.Celebration().IsOpen {
		t.Error("celebration not open")
	}

	for _, r := range "よく走った" {
		m, _ = update(t, m, runes(string(r)))
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != constants.StateDos {
		t.Fatalf("state = %v after closing, want Do list", m.State())
	}
	a, ok := f.achieved(t)
	if !ok {
		t.Fatal("achievement not recorded")
	}
	if a.MemoText() != "よく走った" {
		t.Errorf("memo = %q", a.MemoText())
	}
	if item, ok := m.doList.Selected(); !ok || !item.Achieved || item.Memo != "よく走った" {
		t.Errorf("Do list item = %+v, %v", item, ok)
	}
}

func TestConfirmationLater(t *testing.T) {
	f := newFixture(t, true, true)
	m := NewModel(f.deps)

	m, _ = update(t, m, dolist.ToggleDoMsg{Do: f.running, Date: testDay})
	m, _ = update(t, m, runes("n"))
	if m.State() != constants.StateDos {
		t.Errorf("state = %v, want Do list", m.State())
	}
	if _, ok := f.deps.Tracker.Pending(); ok {
		t.Error("gate still pending after cancel")
	}
	if _, ok := f.achieved(t); ok {
		t.Error("cancel wrote an achievement")
	}
}

func TestCelebrationRejectsLongMemo(t *testing.T) {
	f := newFixture(t, false, true)
	m := NewModel(f.deps)

	m, _ = update(t, m, dolist.ToggleDoMsg{Do: f.running, Date: testDay})
	if m.State() != constants.StateCelebration {
		t.Fatalf("state = %v, want celebration", m.State())
	}
	long := make([]rune, constants.MemoMaxLength+1)
	for i := range long {
		long[i] = 'あ'
	}
	m.memoInput.SetValue(string(long))
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.State() != constants.StateCelebration {
		t.Errorf("state = %v, want celebration kept open", m.State())
	}
	if m.formError == "" {
		t.Error("no error shown for long memo")
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.State() != constants.StateDos || f.deps.Tracker.Celebration().IsOpen {
		t.Errorf("esc did not dismiss: state = %v", m.State())
	}
	if a, ok := f.achieved(t); !ok || a.Memo != nil {
		t.Errorf("achievement = %+v, %v; want recorded without memo", a, ok)
	}
}

func TestUntoggleSkipsConfirmation(t *testing.T) {
	f := newFixture(t, true, true)
	m := NewModel(f.deps)
	if _, _, err := achievement.NewAccessor(f.store, time.Second).Create(context.Background(), f.userID, f.running.ID, testDay); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	f.deps.Tracker.Invalidate()

	m, _ = update(t, m, dolist.ToggleDoMsg{Do: f.running, Date: testDay, Achieved: true})
	if m.State() != constants.StateDos {
		t.Errorf("state = %v, want Do list", m.State())
	}
	if _, ok := f.achieved(t); ok {
		t.Error("un-mark left the achievement")
	}
}

func TestDeleteDo(t *testing.T) {
	f := newFixture(t, false, true)
	m := NewModel(f.deps)

	m, _ = update(t, m, dolist.DeleteDoMsg{Do: f.running})
	if m.State() != constants.StateConfirmDelete {
		t.Fatalf("state = %v, want delete confirmation", m.State())
	}
	m, _ = update(t, m, runes("n"))
	if len(m.dos) != 1 {
		t.Fatalf("dos = %d after cancel, want 1", len(m.dos))
	}

	m, _ = update(t, m, dolist.DeleteDoMsg{Do: f.running})
	m, _ = update(t, m, runes("y"))
	if m.State() != constants.StateDos {
		t.Errorf("state = %v, want Do list", m.State())
	}
	if len(m.dos) != 0 {
		t.Errorf("dos = %d after delete, want 0", len(m.dos))
	}
}

func TestTabsAndCalendar(t *testing.T) {
	f := newFixture(t, false, true)
	m := NewModel(f.deps)
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 100, Height: 40})

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.State() != constants.StateSettings {
		t.Fatalf("state = %v, want settings", m.State())
	}
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyTab})
	if m.State() != constants.StateCalendar {
		t.Fatalf("state = %v, want calendar", m.State())
	}

	m, cmd := update(t, m, runes("<"))
	if cmd == nil {
		t.Fatal("month change returned no command")
	}
	changed, ok := cmd().(calview.MonthChangedMsg)
	if !ok || changed.Month != "2024-04" {
		t.Fatalf("msg = %+v, want April", changed)
	}
	m, _ = update(t, m, changed)

	m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if cmd == nil {
		t.Fatal("enter returned no command")
	}
	m, _ = update(t, m, cmd())
	if m.State() != constants.StateDos || m.doList.Date() != "2024-04-01" {
		t.Errorf("state = %v date = %s, want Do list for 2024-04-01", m.State(), m.doList.Date())
	}
	if m.View() == "" {
		t.Error("empty view")
	}
}

func TestSignOut(t *testing.T) {
	f := newFixture(t, false, true)
	m := NewModel(f.deps)
	m, _ = update(t, m, settings.SignOutMsg{})
	if m.State() != constants.StateSignIn {
		t.Errorf("state = %v, want sign in", m.State())
	}
	if f.deps.Session.SignedIn() {
		t.Error("session still signed in")
	}
}

func TestRollDate(t *testing.T) {
	f := newFixture(t, false, true)
	day := testDay
	f.deps.Today = func() string { return day }
	m := NewModel(f.deps)

	day = "2024-05-02"
	m, cmd := update(t, m, tickMsg(testNow))
	if cmd == nil {
		t.Error("tick did not reschedule")
	}
	if m.doList.Date() != day {
		t.Errorf("Do list date = %s, want %s", m.doList.Date(), day)
	}
}
