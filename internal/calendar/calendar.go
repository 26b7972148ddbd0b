// Package calendar lays out a month of achievements as a Sunday-first grid.
package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/julianstephens/ididit/internal/constants"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/models"
)

// Weekdays are the column headers, Sunday first.
var Weekdays = [7]string{"日", "月", "火", "水", "木", "金", "土"}

// Day is one cell of the grid.
type Day struct {
	Date     string // YYYY-MM-DD format
	Day      int
	InMonth  bool
	Count    int
	Today    bool
	Selected bool
}

// Stars renders the day's achievement count.
func (d Day) Stars() string {
	return Stars(d.Count)
}

// Month is a full grid: every week has seven days, padded with the adjacent months.
type Month struct {
	First time.Time
	Weeks [][7]Day
}

// Key returns the month as YYYY-MM.
func (m Month) Key() string { return m.First.Format(constants.MonthFormat) }

// Title returns the month as e.g. 2024年05月.
func (m Month) Title() string { return m.First.Format(constants.DisplayMonthFormat) }

// Total is the number of achievements in the month.
func (m Month) Total() int {
	n := 0
	for _, w := range m.Weeks {
		for _, d := range w {
			if d.InMonth {
				n += d.Count
			}
		}
	}
	return n
}

// Find returns the cell for date, if it is part of the grid.
func (m Month) Find(date string) (Day, bool) {
	for _, w := range m.Weeks {
		for _, d := range w {
			if d.Date == date {
				return d, true
			}
		}
	}
	return Day{}, false
}

// Stars is up to MaxStarsPerDay stars with a "+" when the count exceeds it.
func Stars(count int) string {
	if count <= 0 {
		return ""
	}
	if count > constants.MaxStarsPerDay {
		return strings.Repeat("★", constants.MaxStarsPerDay) + "+"
	}
	return strings.Repeat("★", count)
}

// ParseMonth parses YYYY-MM.
func ParseMonth(month string) (time.Time, error) {
	t, err := time.Parse(constants.MonthFormat, month)
	if err != nil {
		return time.Time{}, apperrors.Validation("月の形式が正しくありません（YYYY-MM）: %s", month)
	}
	return t, nil
}

// Shift moves a YYYY-MM month by n months.
func Shift(month string, n int) (string, error) {
	t, err := ParseMonth(month)
	if err != nil {
		return "", err
	}
	return t.AddDate(0, n, 0).Format(constants.MonthFormat), nil
}

// ShiftDay moves a YYYY-MM-DD date by n days.
func ShiftDay(date string, n int) (string, error) {
	t, err := time.Parse(constants.DateFormat, date)
	if err != nil {
		return "", apperrors.Validation("日付の形式が正しくありません（YYYY-MM-DD）: %s", date)
	}
	return t.AddDate(0, 0, n).Format(constants.DateFormat), nil
}

// Build lays out month with per-day counts taken from achievements.
func Build(month string, achievements []models.Achievement, today, selected string) (Month, error) {
	first, err := ParseMonth(month)
	if err != nil {
		return Month{}, err
	}
	counts := models.CountByDay(achievements)

	start := first.AddDate(0, 0, -int(first.Weekday()))
	last := first.AddDate(0, 1, -1)
	end := last.AddDate(0, 0, int(time.Saturday-last.Weekday()))

	m := Month{First: first}
	var week [7]Day
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		date := d.Format(constants.DateFormat)
		cell := Day{
			Date:     date,
			Day:      d.Day(),
			InMonth:  d.Month() == first.Month(),
			Today:    date == today,
			Selected: date == selected,
		}
		if cell.InMonth {
			cell.Count = counts[date]
		}
		week[d.Weekday()] = cell
		if d.Weekday() == time.Saturday {
			m.Weeks = append(m.Weeks, week)
			week = [7]Day{}
		}
	}
	return m, nil
}

// String is a plain-text rendering used in logs and tests.
func (m Month) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n%s\n", m.Title(), strings.Join(Weekdays[:], " "))
	for _, w := range m.Weeks {
		cells := make([]string, 7)
		for i, d := range w {
			if !d.InMonth {
				cells[i] = "  "
				continue
			}
			cells[i] = fmt.Sprintf("%2d", d.Day)
		}
		b.WriteString(strings.Join(cells, " "))
		b.WriteByte('\n')
	}
	return b.String()
}
