package achievement

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage/sqlite"
	"github.com/julianstephens/ididit/internal/storage/storagetest"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSession struct {
	mu      sync.Mutex
	userID  string
	expired bool
}

func (s *fakeSession) RequireUser() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID == "" {
		return "", apperrors.ErrSessionExpired
	}
	return s.userID, nil
}

func (s *fakeSession) MarkExpired() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.userID = ""
	s.expired = true
}

type fixedPraise struct {
	msg string
	err error
}

func (p fixedPraise) Pick(context.Context, string) (string, error) { return p.msg, p.err }

type fixture struct {
	store   *sqlite.Store
	session *fakeSession
	tracker *Tracker
	user    models.User
	do      models.Do
}

func setup(t *testing.T, decider Decider) fixture {
	t.Helper()
	store := sqlite.NewStore(filepath.Join(t.TempDir(), "tracker.db"))
	if err := store.Init(); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	now := time.Date(2024, 5, 31, 7, 0, 0, 0, time.UTC)
	f := storagetest.Fixtures{T: t, Store: store, Now: now}
	user := f.User("runner@example.com")
	do := f.Do(user.ID, "Run 5k")

	session := &fakeSession{userID: user.ID}
	tracker := NewTracker(Config{
		Accessor: NewAccessor(store, time.Second),
		Dos:      store,
		Session:  session,
		Decider:  decider,
		Praise:   fixedPraise{msg: "すごい！"},
		Location: time.UTC,
		Now:      func() time.Time { return now },
	})
	return fixture{store: store, session: session, tracker: tracker, user: user, do: do}
}

func boolPtr(b bool) *bool { return &b }

func countRows(t *testing.T, f fixture, month string) int {
	t.Helper()
	rows, err := f.tracker.accessor.Month(context.Background(), f.user.ID, month)
	if err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	return len(rows)
}

func TestToggleCreatesAndCelebrates(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()

	res, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-01"})
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if res.Outcome != OutcomeCreated || !res.Created {
		t.Errorf("Toggle() = %+v, want created", res)
	}
	if res.Achievement.DoID != f.do.ID || res.Achievement.AchievedDate != "2024-05-01" || res.Achievement.Memo != nil {
		t.Errorf("row = %+v", res.Achievement)
	}

	want := Celebration{
		IsOpen:       true,
		DoTitle:      "Run 5k",
		Date:         "2024年05月01日",
		DoID:         f.do.ID,
		AchievedDate: "2024-05-01",
		Message:      "すごい！",
	}
	if diff := cmp.Diff(want, f.tracker.Celebration()); diff != "" {
		t.Errorf("Celebration() mismatch (-want +got):\n%s", diff)
	}
	if f.tracker.RefreshCounter() != 1 {
		t.Errorf("RefreshCounter() = %d, want 1", f.tracker.RefreshCounter())
	}
}

func TestToggleRoundTrip(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()
	req := ToggleRequest{DoID: f.do.ID, Date: "2024-05-02"}

	if _, err := f.tracker.Toggle(ctx, req); err != nil {
		t.Fatalf("Toggle() create error = %v", err)
	}
	// Populate the month cache so removal resolves by row id.
	if _, err := f.tracker.Month(ctx, "2024-05"); err != nil {
		t.Fatalf("Month() error = %v", err)
	}
	req.CurrentlyAchieved = true
	res, err := f.tracker.Toggle(ctx, req)
	if err != nil || res.Outcome != OutcomeRemoved {
		t.Fatalf("Toggle() remove = %+v, %v", res, err)
	}
	if n := countRows(t, f, "2024-05"); n != 0 {
		t.Fatalf("%d rows after removal, want 0", n)
	}

	req.CurrentlyAchieved = false
	if _, err := f.tracker.Toggle(ctx, req); err != nil {
		t.Fatalf("Toggle() re-create error = %v", err)
	}
	if n := countRows(t, f, "2024-05"); n != 1 {
		t.Errorf("%d rows after re-create, want 1", n)
	}
	if got := f.tracker.RefreshCounter(); got != 3 {
		t.Errorf("RefreshCounter() = %d, want 3", got)
	}
}

func TestToggleDuplicateIsNotAnError(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()
	req := ToggleRequest{DoID: f.do.ID, Date: "2024-05-03"}

	first, err := f.tracker.Toggle(ctx, req)
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	f.tracker.DismissCelebration()

	// A stale view still thinks the Do is unachieved.
	second, err := f.tracker.Toggle(ctx, req)
	if err != nil {
		t.Fatalf("duplicate Toggle() error = %v", err)
	}
	if second.Created || second.Achievement.ID != first.Achievement.ID {
		t.Errorf("duplicate Toggle() = %+v, want existing row", second)
	}
	if !f.tracker.Celebration().IsOpen {
		t.Error("duplicate Toggle() did not open the celebration")
	}
}

func TestConcurrentTogglesCreateOneRow(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-04"}); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("concurrent Toggle() error = %v", err)
	}
	if n := countRows(t, f, "2024-05"); n != 1 {
		t.Errorf("%d rows, want 1", n)
	}
}

func TestConfirmationGate(t *testing.T) {
	f := setup(t, FixedDecider(true))
	ctx := context.Background()

	res, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-05"})
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if res.Outcome != OutcomeNeedsConfirmation {
		t.Fatalf("Outcome = %v, want needs_confirmation", res.Outcome)
	}
	want := PendingRequest{DoID: f.do.ID, Title: "Run 5k", Date: "2024-05-05"}
	if got, ok := f.tracker.Pending(); !ok || got != want {
		t.Errorf("Pending() = %+v, %v; want %+v", got, ok, want)
	}
	if n := countRows(t, f, "2024-05"); n != 0 {
		t.Fatalf("gate wrote %d rows before confirmation", n)
	}
	if f.tracker.RefreshCounter() != 0 {
		t.Error("opening the gate bumped the refresh counter")
	}

	confirmed, err := f.tracker.Confirm(ctx)
	if err != nil {
		t.Fatalf("Confirm() error = %v", err)
	}
	if confirmed.Outcome != OutcomeCreated || !confirmed.Created {
		t.Errorf("Confirm() = %+v", confirmed)
	}
	if _, err := f.tracker.Confirm(ctx); !errors.Is(err, ErrNothingPending) {
		t.Errorf("second Confirm() error = %v, want ErrNothingPending", err)
	}
	if n := countRows(t, f, "2024-05"); n != 1 {
		t.Errorf("%d rows after two confirms, want 1", n)
	}
	if c := f.tracker.Celebration(); !c.IsOpen || c.Date != "2024年05月05日" {
		t.Errorf("Celebration() = %+v", c)
	}
}

func TestConcurrentConfirmsCreateOneRow(t *testing.T) {
	f := setup(t, FixedDecider(true))
	ctx := context.Background()
	if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-06"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	committed := 0
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.tracker.Confirm(ctx); err == nil {
				mu.Lock()
				committed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if committed != 1 {
		t.Errorf("%d confirms committed, want 1", committed)
	}
	if n := countRows(t, f, "2024-05"); n != 1 {
		t.Errorf("%d rows, want 1", n)
	}
}

func TestCancelNeverWrites(t *testing.T) {
	f := setup(t, FixedDecider(true))
	ctx := context.Background()
	if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-07"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	f.tracker.Cancel()
	if _, ok := f.tracker.Pending(); ok {
		t.Error("gate still pending after Cancel()")
	}
	if _, err := f.tracker.Confirm(ctx); !errors.Is(err, ErrNothingPending) {
		t.Errorf("Confirm() after Cancel error = %v", err)
	}
	if n := countRows(t, f, "2024-05"); n != 0 {
		t.Errorf("%d rows after cancel, want 0", n)
	}
}

func TestConfirmFlagOverridesDecider(t *testing.T) {
	tests := []struct {
		name    string
		decider Decider
		confirm *bool
		want    Outcome
	}{
		{name: "decider asks", decider: FixedDecider(true), want: OutcomeNeedsConfirmation},
		{name: "flag skips", decider: FixedDecider(true), confirm: boolPtr(false), want: OutcomeCreated},
		{name: "flag forces", decider: FixedDecider(false), confirm: boolPtr(true), want: OutcomeNeedsConfirmation},
		{name: "decider skips", decider: FixedDecider(false), want: OutcomeCreated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setup(t, tt.decider)
			res, err := f.tracker.Toggle(context.Background(), ToggleRequest{DoID: f.do.ID, Date: "2024-05-08", Confirm: tt.confirm})
			if err != nil {
				t.Fatalf("Toggle() error = %v", err)
			}
			if res.Outcome != tt.want {
				t.Errorf("Outcome = %v, want %v", res.Outcome, tt.want)
			}
		})
	}
}

func TestUnmarkNeverAsks(t *testing.T) {
	f := setup(t, FixedDecider(true))
	res, err := f.tracker.Toggle(context.Background(), ToggleRequest{DoID: f.do.ID, Date: "2024-05-09", CurrentlyAchieved: true})
	if err != nil || res.Outcome != OutcomeRemoved {
		t.Errorf("Toggle() unmark = %+v, %v; want removed without confirmation", res, err)
	}
}

func TestToggleErrors(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()

	_, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: "missing", Date: "2024-05-01"})
	if !apperrors.IsValidation(err) {
		t.Errorf("unknown Do error = %v, want validation", err)
	}
	_, err = f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-06-01"})
	if !apperrors.IsValidation(err) {
		t.Errorf("future date error = %v, want validation", err)
	}
	if countRows(t, f, "2024-06") != 0 {
		t.Error("future toggle wrote a row")
	}
	_, err = f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-06-01", Confirm: boolPtr(true)})
	if !apperrors.IsValidation(err) {
		t.Errorf("future date with confirmation error = %v, want validation", err)
	}
	if _, ok := f.tracker.Pending(); ok {
		t.Error("future date reached the confirmation gate")
	}
	_, err = f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "05/01/2024"})
	if !apperrors.IsValidation(err) {
		t.Errorf("bad date error = %v, want validation", err)
	}
	if n := countRows(t, f, "2024-05"); n != 0 {
		t.Errorf("failed toggles wrote %d rows", n)
	}

	var ue *apperrors.UserError
	if !errors.As(err, &ue) || ue.Message == "" {
		t.Errorf("error %v is not a UserError with a message", err)
	}
}

func TestToggleSessionExpired(t *testing.T) {
	f := setup(t, FixedDecider(false))
	f.session.MarkExpired()

	_, err := f.tracker.Toggle(context.Background(), ToggleRequest{DoID: f.do.ID, Date: "2024-05-01"})
	var ue *apperrors.UserError
	if !errors.As(err, &ue) || ue.Kind != apperrors.KindSession {
		t.Fatalf("Toggle() error = %v, want session UserError", err)
	}
	if ue.Message != constants.MsgSessionExpired {
		t.Errorf("message = %q", ue.Message)
	}
}

func TestCloseCelebration(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()
	res, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-10"})
	if err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	tooLong := strings.Repeat("あ", constants.MemoMaxLength+1)
	if err := f.tracker.CloseCelebration(ctx, tooLong); !apperrors.IsValidation(err) {
		t.Errorf("CloseCelebration() long memo error = %v, want validation", err)
	}
	if !f.tracker.Celebration().IsOpen {
		t.Fatal("celebration closed after a rejected memo")
	}

	if err := f.tracker.CloseCelebration(ctx, "  5kmを28分で  "); err != nil {
		t.Fatalf("CloseCelebration() error = %v", err)
	}
	if f.tracker.Celebration().IsOpen {
		t.Error("celebration still open")
	}
	got, err := f.tracker.accessor.Get(ctx, f.user.ID, f.do.ID, "2024-05-10")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.MemoText() != "5kmを28分で" || got.ID != res.Achievement.ID {
		t.Errorf("row after memo = %+v", got)
	}
}

func TestCloseCelebrationEmptyMemoLeavesRow(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()
	if _, err := f.tracker.SaveMemo(ctx, f.do.ID, "2024-05-11", "既存のメモ"); err != nil {
		t.Fatalf("SaveMemo() error = %v", err)
	}
	if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-11"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	before := f.tracker.RefreshCounter()
	if err := f.tracker.CloseCelebration(ctx, "   "); err != nil {
		t.Fatalf("CloseCelebration() error = %v", err)
	}
	if f.tracker.RefreshCounter() != before {
		t.Error("empty memo bumped the refresh counter")
	}
	got, _ := f.tracker.accessor.Get(ctx, f.user.ID, f.do.ID, "2024-05-11")
	if got.MemoText() != "既存のメモ" {
		t.Errorf("memo = %q, want untouched", got.MemoText())
	}
}

func TestCloseCelebrationRecreatesMissingRow(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()
	if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-12"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	if _, err := f.tracker.accessor.Delete(ctx, f.user.ID, f.do.ID, "2024-05-12"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := f.tracker.CloseCelebration(ctx, "消えても大丈夫"); err != nil {
		t.Fatalf("CloseCelebration() error = %v", err)
	}
	got, err := f.tracker.accessor.Get(ctx, f.user.ID, f.do.ID, "2024-05-12")
	if err != nil || got.MemoText() != "消えても大丈夫" {
		t.Errorf("row = %+v, %v; want recreated with memo", got, err)
	}
}

func TestSaveMemo(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()

	cleared, err := f.tracker.SaveMemo(ctx, f.do.ID, "2024-05-20", "  ")
	if err != nil {
		t.Fatalf("SaveMemo() clear on unachieved day error = %v", err)
	}
	if cleared.ID != "" {
		t.Errorf("SaveMemo() = %+v, want no row", cleared)
	}
	if exists, _ := f.tracker.accessor.Exists(ctx, f.user.ID, f.do.ID, "2024-05-20"); exists {
		t.Fatal("clearing a memo recorded the day as achieved")
	}
	before := f.tracker.RefreshCounter()

	row, err := f.tracker.SaveMemo(ctx, f.do.ID, "2024-05-20", "雨でも走った")
	if err != nil {
		t.Fatalf("SaveMemo() error = %v", err)
	}
	if row.ID == "" || row.MemoText() != "雨でも走った" {
		t.Errorf("SaveMemo() = %+v", row)
	}
	if f.tracker.RefreshCounter() == before {
		t.Error("refresh counter did not move")
	}

	row, err = f.tracker.SaveMemo(ctx, f.do.ID, "2024-05-20", "")
	if err != nil {
		t.Fatalf("SaveMemo() clear error = %v", err)
	}
	if row.ID == "" || row.Memo != nil {
		t.Errorf("SaveMemo() clear = %+v, want the row without memo", row)
	}

	if _, err := f.tracker.SaveMemo(ctx, f.do.ID, "2024-06-01", "まだ先"); !apperrors.IsValidation(err) {
		t.Errorf("future memo error = %v, want validation", err)
	}
	if countRows(t, f, "2024-06") != 0 {
		t.Error("future memo wrote a row")
	}
}

func TestMonthSharedFetchIgnoresCallerCancel(t *testing.T) {
	f := setup(t, FixedDecider(false))
	if _, err := f.tracker.Toggle(context.Background(), ToggleRequest{DoID: f.do.ID, Date: "2024-05-14"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rows, err := f.tracker.Month(ctx, "2024-05")
	if err != nil {
		t.Fatalf("Month() with a cancelled caller error = %v", err)
	}
	if len(rows) != 1 {
		t.Errorf("Month() = %d rows, want 1", len(rows))
	}
}

func TestMonthCacheFollowsRefreshCounter(t *testing.T) {
	f := setup(t, FixedDecider(false))
	ctx := context.Background()

	var seen []uint64
	f.tracker.OnRefresh(func(n uint64) { seen = append(seen, n) })

	first, err := f.tracker.Month(ctx, "2024-05")
	if err != nil || len(first) != 0 {
		t.Fatalf("Month() = %v, %v", first, err)
	}
	if _, err := f.tracker.Toggle(ctx, ToggleRequest{DoID: f.do.ID, Date: "2024-05-13"}); err != nil {
		t.Fatalf("Toggle() error = %v", err)
	}
	second, err := f.tracker.Month(ctx, "2024-05")
	if err != nil || len(second) != 1 {
		t.Errorf("Month() after toggle = %d rows, %v; want 1", len(second), err)
	}
	achieved, err := f.tracker.IsAchieved(ctx, f.do.ID, "2024-05-13")
	if err != nil || !achieved {
		t.Errorf("IsAchieved() = %v, %v", achieved, err)
	}
	if diff := cmp.Diff([]uint64{1}, seen, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("OnRefresh calls mismatch (-want +got):\n%s", diff)
	}
}

func TestPraiseFallback(t *testing.T) {
	tests := []struct {
		name string
		src  PraiseSource
		want string
	}{
		{name: "nil source", src: nil, want: constants.FallbackPraise},
		{name: "error", src: fixedPraise{err: errors.New("boom")}, want: constants.FallbackPraise},
		{name: "blank", src: fixedPraise{msg: "  "}, want: constants.FallbackPraise},
		{name: "message", src: fixedPraise{msg: "最高！"}, want: "最高！"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FetchPraise(context.Background(), tt.src, "u"); got != tt.want {
				t.Errorf("FetchPraise() = %q, want %q", got, tt.want)
			}
		})
	}
}
