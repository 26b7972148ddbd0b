package achievement

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/logger"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/storage"
	"github.com/julianstephens/ididit/internal/utils"
)

// Outcome is what a toggle did.
type Outcome int

const (
	OutcomeNone Outcome = iota
	OutcomeNeedsConfirmation
	OutcomeCreated
	OutcomeRemoved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNeedsConfirmation:
		return "needs_confirmation"
	case OutcomeCreated:
		return "created"
	case OutcomeRemoved:
		return "removed"
	default:
		return "none"
	}
}

// ToggleRequest mirrors a click on a Do's achievement button.
type ToggleRequest struct {
	DoID              string
	Date              string // YYYY-MM-DD; empty means today
	CurrentlyAchieved bool
	// Confirm forces the confirmation decision; nil leaves it to the Decider.
	Confirm *bool
}

// ToggleResult reports what happened.
type ToggleResult struct {
	Outcome     Outcome
	Achievement models.Achievement // set for OutcomeCreated
	// Created is false when the row already existed.
	Created bool
	Pending PendingRequest // set for OutcomeNeedsConfirmation
}

// DoLookup resolves a Do owned by a user.
type DoLookup interface {
	GetDo(ctx context.Context, userID, id string) (models.Do, error)
}

// Session is the signed-in user the tracker acts for.
type Session interface {
	RequireUser() (string, error)
	MarkExpired()
}

// Config wires a Tracker.
type Config struct {
	Accessor *Accessor
	Dos      DoLookup
	Session  Session
	Decider  Decider
	Praise   PraiseSource
	Location *time.Location
	Now      func() time.Time
}

type monthEntry struct {
	counter uint64
	rows    []models.Achievement
}

// Tracker runs the toggle, confirmation and celebration workflow for one session.
type Tracker struct {
	accessor *Accessor
	dos      DoLookup
	session  Session
	decider  Decider
	praise   PraiseSource
	loc      *time.Location
	now      func() time.Time

	gate Gate

	mu          sync.Mutex
	celebration Celebration
	months      map[string]monthEntry
	listeners   []func(uint64)

	refresh atomic.Uint64
	fetches singleflight.Group
}

func NewTracker(cfg Config) *Tracker {
	t := &Tracker{
		accessor: cfg.Accessor,
		dos:      cfg.Dos,
		session:  cfg.Session,
		decider:  cfg.Decider,
		praise:   cfg.Praise,
		loc:      cfg.Location,
		now:      cfg.Now,
		months:   make(map[string]monthEntry),
	}
	if t.decider == nil {
		t.decider = FixedDecider(false)
	}
	if t.loc == nil {
		t.loc = time.Local
	}
	if t.now == nil {
		t.now = time.Now
	}
	return t
}

// Today returns the current date in the tracker's time zone.
func (t *Tracker) Today() string {
	return t.now().In(t.loc).Format(constants.DateFormat)
}

// Toggle removes an achieved (Do, date) or records an unachieved one, possibly
// holding it at the confirmation gate first. Errors are *apperrors.UserError.
func (t *Tracker) Toggle(ctx context.Context, req ToggleRequest) (ToggleResult, error) {
	userID, err := t.session.RequireUser()
	if err != nil {
		return ToggleResult{}, t.fail(err, constants.OpToggleAchievement)
	}
	day, err := t.normalizeDate(req.Date)
	if err != nil {
		return ToggleResult{}, t.fail(err, constants.OpToggleAchievement)
	}

	if req.CurrentlyAchieved {
		return t.remove(ctx, userID, req.DoID, day)
	}
	if err := t.notFuture(day); err != nil {
		return ToggleResult{}, t.fail(err, constants.OpToggleAchievement)
	}

	do, err := t.lookupDo(ctx, userID, req.DoID)
	if err != nil {
		return ToggleResult{}, t.fail(err, constants.OpToggleAchievement)
	}

	confirm := t.decider.NeedsConfirmation()
	if req.Confirm != nil {
		confirm = *req.Confirm
	}
	if confirm {
		pending := PendingRequest{DoID: do.ID, Title: do.Title, Date: day}
		t.gate.Open(pending)
		logger.Debug("achievement awaiting confirmation", "do_id", do.ID, "date", day)
		return ToggleResult{Outcome: OutcomeNeedsConfirmation, Pending: pending}, nil
	}

	row, created, err := t.accessor.Create(ctx, userID, do.ID, day)
	if err != nil {
		return ToggleResult{}, t.fail(err, constants.OpCreateAchievement)
	}
	t.celebrate(ctx, userID, do.Title, row)
	t.bump()
	return ToggleResult{Outcome: OutcomeCreated, Achievement: row, Created: created}, nil
}

func (t *Tracker) remove(ctx context.Context, userID, doID, day string) (ToggleResult, error) {
	var err error
	if id, ok := t.cachedID(userID, doID, day); ok {
		_, err = t.accessor.DeleteByID(ctx, userID, id)
	} else {
		_, err = t.accessor.Delete(ctx, userID, doID, day)
	}
	if err != nil {
		return ToggleResult{}, t.fail(err, constants.OpToggleAchievement)
	}
	t.bump()
	return ToggleResult{Outcome: OutcomeRemoved}, nil
}

// cachedID finds the row id in the current month listing, if it was fetched.
func (t *Tracker) cachedID(userID, doID, day string) (string, bool) {
	if len(day) < len(constants.MonthFormat) {
		return "", false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	entry, ok := t.months[monthKey(userID, day[:len(constants.MonthFormat)])]
	if !ok || entry.counter != t.refresh.Load() {
		return "", false
	}
	for _, a := range entry.rows {
		if a.DoID == doID && a.AchievedDate == day {
			return a.ID, true
		}
	}
	return "", false
}

// Confirm commits the pending request. A second Confirm returns ErrNothingPending.
func (t *Tracker) Confirm(ctx context.Context) (ToggleResult, error) {
	var result ToggleResult
	err := t.gate.Confirm(ctx, func(ctx context.Context, req PendingRequest) error {
		userID, err := t.session.RequireUser()
		if err != nil {
			return err
		}

		existing, err := t.accessor.Get(ctx, userID, req.DoID, req.Date)
		created := false
		switch {
		case err == nil:
		case errors.Is(err, storage.ErrNotFound):
			existing, created, err = t.accessor.Create(ctx, userID, req.DoID, req.Date)
			if err != nil {
				return err
			}
		default:
			return err
		}

		t.celebrate(ctx, userID, req.Title, existing)
		t.bump()
		result = ToggleResult{Outcome: OutcomeCreated, Achievement: existing, Created: created}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrNothingPending) {
			return ToggleResult{}, err
		}
		return ToggleResult{}, t.fail(err, constants.OpCreateAchievement)
	}
	return result, nil
}

// Cancel closes the confirmation gate without writing.
func (t *Tracker) Cancel() {
	t.gate.Cancel()
}

// Pending returns the request held at the confirmation gate.
func (t *Tracker) Pending() (PendingRequest, bool) {
	return t.gate.Pending()
}

func (t *Tracker) celebrate(ctx context.Context, userID, title string, row models.Achievement) {
	msg := FetchPraise(ctx, t.praise, userID)
	c := Celebration{
		IsOpen:       true,
		DoTitle:      title,
		Date:         DisplayDate(row.AchievedDate),
		DoID:         row.DoID,
		AchievedDate: row.AchievedDate,
		Message:      msg,
	}
	t.mu.Lock()
	t.celebration = c
	t.mu.Unlock()
}

// Celebration returns the current celebration state.
func (t *Tracker) Celebration() Celebration {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.celebration
}

// CloseCelebration saves a non-empty memo and closes the modal. An empty memo
// leaves the record untouched. A too-long memo keeps the modal open.
func (t *Tracker) CloseCelebration(ctx context.Context, memo string) error {
	c := t.Celebration()
	if !c.IsOpen {
		return nil
	}
	text, err := NormalizeMemo(memo)
	if err != nil {
		return t.fail(err, constants.OpSaveMemo)
	}
	if text != nil {
		userID, err := t.session.RequireUser()
		if err != nil {
			return t.fail(err, constants.OpSaveMemo)
		}
		if _, err := t.accessor.UpsertMemo(ctx, userID, c.DoID, c.AchievedDate, text); err != nil {
			return t.fail(err, constants.OpSaveMemo)
		}
		t.bump()
	}
	t.DismissCelebration()
	return nil
}

// DismissCelebration closes the modal without saving.
func (t *Tracker) DismissCelebration() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.celebration = Celebration{}
}

// SaveMemo upserts a memo for any (Do, date) outside the celebration flow.
// A blank memo only clears an existing row; on a day that was not achieved
// nothing is written and the returned achievement has no ID.
func (t *Tracker) SaveMemo(ctx context.Context, doID, date, memo string) (models.Achievement, error) {
	userID, err := t.session.RequireUser()
	if err != nil {
		return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
	}
	day, err := t.normalizeDate(date)
	if err == nil {
		err = t.notFuture(day)
	}
	if err != nil {
		return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
	}
	if _, err := t.lookupDo(ctx, userID, doID); err != nil {
		return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
	}
	text, err := NormalizeMemo(memo)
	if err != nil {
		return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
	}
	if text == nil {
		exists, err := t.accessor.Exists(ctx, userID, doID, day)
		if err != nil {
			return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
		}
		if !exists {
			return models.Achievement{UserID: userID, DoID: doID, AchievedDate: day}, nil
		}
	}
	row, err := t.accessor.UpsertMemo(ctx, userID, doID, day, text)
	if err != nil {
		return models.Achievement{}, t.fail(err, constants.OpSaveMemo)
	}
	t.bump()
	return row, nil
}

// RefreshCounter is the invalidation signal for derived views.
func (t *Tracker) RefreshCounter() uint64 {
	return t.refresh.Load()
}

// OnRefresh registers fn to run after every successful mutation.
func (t *Tracker) OnRefresh(fn func(uint64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Invalidate bumps the counter after a change made outside the tracker (a Do
// edited or deleted).
func (t *Tracker) Invalidate() {
	t.bump()
}

func (t *Tracker) bump() {
	n := t.refresh.Add(1)
	t.mu.Lock()
	listeners := append(([]func(uint64))(nil), t.listeners...)
	t.mu.Unlock()
	for _, fn := range listeners {
		fn(n)
	}
}

// Month returns the achievements of "YYYY-MM", re-fetched whenever the refresh
// counter moved. Concurrent callers for the same month share one fetch.
func (t *Tracker) Month(ctx context.Context, month string) ([]models.Achievement, error) {
	userID, err := t.session.RequireUser()
	if err != nil {
		return nil, t.fail(err, constants.OpLoadAchievements)
	}
	key := monthKey(userID, month)
	counter := t.refresh.Load()

	t.mu.Lock()
	entry, ok := t.months[key]
	t.mu.Unlock()
	if ok && entry.counter == counter {
		return entry.rows, nil
	}

	// The fetch is shared, so one caller's cancellation must not fail the others.
	shared := context.WithoutCancel(ctx)
	v, err, _ := t.fetches.Do(key+"|"+strconv.FormatUint(counter, 10), func() (any, error) {
		rows, err := t.accessor.Month(shared, userID, month)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.months[key] = monthEntry{counter: counter, rows: rows}
		t.mu.Unlock()
		return rows, nil
	})
	if err != nil {
		return nil, t.fail(err, constants.OpLoadAchievements)
	}
	return v.([]models.Achievement), nil
}

// IsAchieved reports whether the Do is recorded on date according to the month listing.
func (t *Tracker) IsAchieved(ctx context.Context, doID, date string) (bool, error) {
	day, err := t.normalizeDate(date)
	if err != nil {
		return false, t.fail(err, constants.OpLoadAchievements)
	}
	rows, err := t.Month(ctx, day[:len(constants.MonthFormat)])
	if err != nil {
		return false, err
	}
	for _, a := range rows {
		if a.DoID == doID && a.AchievedDate == day {
			return true, nil
		}
	}
	return false, nil
}

func monthKey(userID, month string) string {
	return userID + "|" + month
}

func (t *Tracker) lookupDo(ctx context.Context, userID, doID string) (models.Do, error) {
	if doID == "" {
		return models.Do{}, apperrors.Validation("Doが指定されていません。")
	}
	ctx, cancel := storage.WithTimeout(ctx, t.accessor.timeout)
	defer cancel()
	do, err := t.dos.GetDo(ctx, userID, doID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return models.Do{}, apperrors.Validation("指定されたDoが見つかりません。")
		}
		return models.Do{}, err
	}
	return do, nil
}

func (t *Tracker) normalizeDate(date string) (string, error) {
	if date == "" {
		return t.Today(), nil
	}
	d, err := utils.ParseDateInLocation(date, t.loc)
	if err != nil {
		return "", apperrors.Validation("日付の形式が正しくありません（YYYY-MM-DD）: %s", date)
	}
	return d.Format(constants.DateFormat), nil
}

// notFuture rejects days after today in the tracker's time zone.
func (t *Tracker) notFuture(day string) error {
	if day > t.Today() {
		return apperrors.Validation("未来の日付は記録できません: %s", day)
	}
	return nil
}

// fail classifies err for display and drops the session on a session error.
func (t *Tracker) fail(err error, op string) error {
	ue := apperrors.Handle(err, op)
	if ue.Kind == apperrors.KindSession {
		t.session.MarkExpired()
	}
	logger.Debug("tracker operation failed", "op", op, "kind", ue.Kind, "error", err)
	return ue
}

// DisplayDate renders YYYY-MM-DD as 2006年01月02日; unparsable input is returned as-is.
func DisplayDate(day string) string {
	d, err := time.Parse(constants.DateFormat, day)
	if err != nil {
		return day
	}
	return d.Format(constants.DisplayDateFormat)
}

// String implements fmt.Stringer for logs.
func (r ToggleResult) String() string {
	return fmt.Sprintf("%s(%s)", r.Outcome, r.Achievement.ID)
}
