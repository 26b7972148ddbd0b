package habits

import (
	"context"
	"fmt"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
)

// MarkCmd toggles a Do for a day: an achieved day is un-marked, anything else
// is recorded, possibly after the "ほんとに？" question.
type MarkCmd struct {
	Do   string `arg:"" help:"Do ID or title."`
	Date string `help:"Day to toggle (YYYY-MM-DD, default today)."`
	Yes  bool   `short:"y" help:"Record without asking for confirmation." xor:"confirm"`
	Ask  bool   `help:"Always ask for confirmation." xor:"confirm"`
	Memo string `short:"m" help:"Memo to attach to a newly recorded day (not allowed when un-marking)."`

	ask askFunc
}

func (c *MarkCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	do, err := ctx.Dos().Find(bg, userID, c.Do)
	if err != nil {
		return cli.Fail(err, constants.OpLoadDos)
	}
	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}

	achieved, err := tracker.IsAchieved(bg, do.ID, c.Date)
	if err != nil {
		return err
	}
	if achieved && c.Memo != "" {
		return cli.Fail(apperrors.Validation("「%s」はこの日に達成済みのため取り消されます。メモは `ididit memo` で編集してください。", do.Title), constants.OpToggleAchievement)
	}
	req := achievement.ToggleRequest{DoID: do.ID, Date: c.Date, CurrentlyAchieved: achieved}
	switch {
	case c.Yes:
		skip := false
		req.Confirm = &skip
	case c.Ask:
		force := true
		req.Confirm = &force
	}

	result, err := tracker.Toggle(bg, req)
	if err != nil {
		return err
	}

	if result.Outcome == achievement.OutcomeNeedsConfirmation {
		ask := c.ask
		if ask == nil {
			ask = huhAsk
		}
		title := fmt.Sprintf("「%s」 %s", result.Pending.Title, constants.MsgConfirmQuestion)
		ok, err := ask(title, constants.MsgConfirmYes, constants.MsgConfirmLater)
		if err != nil {
			tracker.Cancel()
			return err
		}
		if !ok {
			tracker.Cancel()
			fmt.Println("またあとで！")
			return nil
		}
		if result, err = tracker.Confirm(bg); err != nil {
			return err
		}
	}

	switch result.Outcome {
	case achievement.OutcomeRemoved:
		fmt.Printf("✓ 「%s」の%sの達成を取り消しました。\n", do.Title, achievement.DisplayDate(dateOr(c.Date, ctx.Today())))
	case achievement.OutcomeCreated:
		printCelebration(tracker.Celebration())
		if err := tracker.CloseCelebration(bg, c.Memo); err != nil {
			return err
		}
		if c.Memo != "" {
			fmt.Println("✓ メモを保存しました。")
		}
	}
	return nil
}

func printCelebration(c achievement.Celebration) {
	fmt.Printf("🎉 %s\n", constants.MsgCelebrationTitle)
	fmt.Printf("   %s  %s\n", c.Date, c.DoTitle)
	fmt.Printf("   %s\n", c.Message)
	fmt.Printf("   シェア: %s\n", c.ShareURL())
}

func dateOr(date, fallback string) string {
	if date == "" {
		return fallback
	}
	return date
}

// MemoCmd writes the memo of a (Do, day), recording the day if needed. Without
// text it clears the memo of an achieved day and leaves other days alone.
type MemoCmd struct {
	Do   string `arg:"" help:"Do ID or title."`
	Memo string `arg:"" optional:"" help:"Memo text; omit to clear."`
	Date string `help:"Day of the memo (YYYY-MM-DD, default today)."`
}

func (c *MemoCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	do, err := ctx.Dos().Find(bg, userID, c.Do)
	if err != nil {
		return cli.Fail(err, constants.OpLoadDos)
	}
	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}
	row, err := tracker.SaveMemo(bg, do.ID, c.Date, c.Memo)
	if err != nil {
		return err
	}
	if row.ID == "" {
		fmt.Printf("「%s」は%sに達成されていないため、消去するメモはありません。\n", do.Title, achievement.DisplayDate(row.AchievedDate))
		return nil
	}
	if row.Memo == nil {
		fmt.Printf("✓ 「%s」%sのメモを消去しました。\n", do.Title, achievement.DisplayDate(row.AchievedDate))
		return nil
	}
	fmt.Printf("✓ 「%s」%sのメモを保存しました。\n", do.Title, achievement.DisplayDate(row.AchievedDate))
	return nil
}
