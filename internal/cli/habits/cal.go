package habits

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/calendar"
	"github.com/julianstephens/ididit/internal/cli"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/utils"
)

// CalCmd prints a month with one star per achievement on each day.
type CalCmd struct {
	Month string `arg:"" optional:"" help:"Month to show (YYYY-MM, default this month)."`
	Memos bool   `help:"List the month's memos under the calendar."`
	Plain bool   `help:"Print without colors."`
}

func (c *CalCmd) Run(ctx *cli.Context) error {
	bg := context.Background()
	session, userID, err := ctx.RequireUser(bg)
	if err != nil {
		return err
	}
	today := ctx.Today()
	month := c.Month
	if month == "" {
		if month, err = utils.MonthOf(today); err != nil {
			return err
		}
	}
	if _, err := calendar.ParseMonth(month); err != nil {
		return cli.Fail(err, constants.OpLoadAchievements)
	}

	tracker, err := ctx.Tracker(session)
	if err != nil {
		return err
	}
	var (
		rows []models.Achievement
		list []models.Do
	)
	g, gctx := errgroup.WithContext(bg)
	g.Go(func() error {
		var err error
		rows, err = tracker.Month(gctx, month)
		return err
	})
	if c.Memos {
		g.Go(func() error {
			var err error
			if list, err = ctx.Dos().List(gctx, userID); err != nil {
				return cli.Fail(err, constants.OpLoadDos)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}
	m, err := calendar.Build(month, rows, today, "")
	if err != nil {
		return cli.Fail(err, constants.OpLoadAchievements)
	}

	if c.Plain {
		fmt.Print(m.String())
	} else {
		fmt.Println(calendar.Render(m))
	}
	fmt.Printf("\n今月の達成: %d\n", m.Total())

	if !c.Memos {
		return nil
	}
	titles := make(map[string]string, len(list))
	for _, do := range list {
		titles[do.ID] = do.Title
	}
	sorted := slices.Clone(rows)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].AchievedDate != sorted[j].AchievedDate {
			return sorted[i].AchievedDate < sorted[j].AchievedDate
		}
		return titles[sorted[i].DoID] < titles[sorted[j].DoID]
	})
	printed := false
	for _, a := range sorted {
		if a.Memo == nil {
			continue
		}
		if !printed {
			fmt.Println("\nメモ:")
			printed = true
		}
		fmt.Printf("  %s %s: %s\n", achievement.DisplayDate(a.AchievedDate), titles[a.DoID], *a.Memo)
	}
	if !printed {
		fmt.Println("\nメモはありません。")
	}
	return nil
}
