package calview

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/calendar"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/models"
)

// MonthChangedMsg asks for the achievements of Month to be loaded.
type MonthChangedMsg struct {
	Month string
}

// OpenDayMsg asks for the Do list of Date.
type OpenDayMsg struct {
	Date string
}

type KeyMap struct {
	PrevDay   key.Binding
	NextDay   key.Binding
	PrevWeek  key.Binding
	NextWeek  key.Binding
	PrevMonth key.Binding
	NextMonth key.Binding
	Today     key.Binding
	Open      key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		PrevDay: key.NewBinding(
			key.WithKeys("left", "h"),
			key.WithHelp("←/h", "prev day"),
		),
		NextDay: key.NewBinding(
			key.WithKeys("right", "l"),
			key.WithHelp("→/l", "next day"),
		),
		PrevWeek: key.NewBinding(
			key.WithKeys("up", "k"),
			key.WithHelp("↑/k", "prev week"),
		),
		NextWeek: key.NewBinding(
			key.WithKeys("down", "j"),
			key.WithHelp("↓/j", "next week"),
		),
		PrevMonth: key.NewBinding(
			key.WithKeys("<", "p"),
			key.WithHelp("<", "prev month"),
		),
		NextMonth: key.NewBinding(
			key.WithKeys(">", "n"),
			key.WithHelp(">", "next month"),
		),
		Today: key.NewBinding(
			key.WithKeys("t"),
			key.WithHelp("t", "today"),
		),
		Open: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open day"),
		),
	}
}

var (
	memoTitleStyle = lipgloss.NewStyle().Bold(true).MarginTop(1)
	memoStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

// Model is the month grid with a selected day.
type Model struct {
	keys     KeyMap
	today    string
	selected string
	rows     []models.Achievement // of Month()
	titles   map[string]string
	err      error
}

func New(today string) Model {
	return Model{keys: DefaultKeyMap(), today: today, selected: today}
}

func (m Model) Keys() KeyMap { return m.keys }

// Month is the month of the selected day.
func (m Model) Month() string { return m.selected[:len(constants.MonthFormat)] }

func (m Model) Selected() string { return m.selected }

// SetToday moves the today marker, e.g. after midnight.
func (m *Model) SetToday(today string) { m.today = today }

// SetAchievements replaces the rows of month.
func (m *Model) SetAchievements(month string, rows []models.Achievement, err error) {
	if month != m.Month() {
		return
	}
	m.rows = rows
	m.err = err
}

// SetDos names the Dos in the day detail.
func (m *Model) SetDos(dos []models.Do) {
	m.titles = make(map[string]string, len(dos))
	for _, d := range dos {
		m.titles[d.ID] = d.Title
	}
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.PrevDay):
		return m.move(calendar.ShiftDay, -1)
	case key.Matches(keyMsg, m.keys.NextDay):
		return m.move(calendar.ShiftDay, 1)
	case key.Matches(keyMsg, m.keys.PrevWeek):
		return m.move(calendar.ShiftDay, -7)
	case key.Matches(keyMsg, m.keys.NextWeek):
		return m.move(calendar.ShiftDay, 7)
	case key.Matches(keyMsg, m.keys.PrevMonth):
		return m.shiftMonth(-1)
	case key.Matches(keyMsg, m.keys.NextMonth):
		return m.shiftMonth(1)
	case key.Matches(keyMsg, m.keys.Today):
		return m.jump(m.today)
	case key.Matches(keyMsg, m.keys.Open):
		date := m.selected
		return m, func() tea.Msg { return OpenDayMsg{Date: date} }
	}
	return m, nil
}

func (m Model) move(shift func(string, int) (string, error), n int) (Model, tea.Cmd) {
	next, err := shift(m.selected, n)
	if err != nil {
		return m, nil
	}
	return m.jump(next)
}

func (m Model) shiftMonth(n int) (Model, tea.Cmd) {
	month, err := calendar.Shift(m.Month(), n)
	if err != nil {
		return m, nil
	}
	return m.jump(month + "-01")
}

func (m Model) jump(date string) (Model, tea.Cmd) {
	before := m.Month()
	m.selected = date
	if m.Month() == before {
		return m, nil
	}
	m.rows = nil
	m.err = nil
	month := m.Month()
	return m, func() tea.Msg { return MonthChangedMsg{Month: month} }
}

func (m Model) View() string {
	grid, err := calendar.Build(m.Month(), m.rows, m.today, m.selected)
	if err != nil {
		return errStyle.Render(err.Error())
	}

	var b strings.Builder
	b.WriteString(calendar.Render(grid))
	b.WriteString("\n")
	if m.err != nil {
		b.WriteString(errStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}

	b.WriteString(memoTitleStyle.Render(achievement.DisplayDate(m.selected)))
	b.WriteString("\n")
	var lines []string
	for _, a := range m.rows {
		if a.AchievedDate != m.selected {
			continue
		}
		title := m.titles[a.DoID]
		if title == "" {
			title = "(削除されたDo)"
		}
		line := "  ✓ " + title
		if memo := a.MemoText(); memo != "" {
			line += "  " + memoStyle.Render(memo)
		}
		lines = append(lines, line)
	}
	if len(lines) == 0 {
		lines = append(lines, memoStyle.Render("  達成記録はありません"))
	}
	b.WriteString(strings.Join(lines, "\n"))
	return b.String()
}
