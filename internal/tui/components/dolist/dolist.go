package dolist

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/models"
)

type AddDoMsg struct{}

type EditDoMsg struct {
	Do models.Do
}

type DeleteDoMsg struct {
	Do models.Do
}

// ToggleDoMsg asks for the Do's achievement on Date to be flipped.
type ToggleDoMsg struct {
	Do       models.Do
	Date     string
	Achieved bool
}

type MemoDoMsg struct {
	Do   models.Do
	Date string
	Memo string
}

type Item struct {
	Do       models.Do
	Achieved bool
	Memo     string
}

func (i Item) Title() string {
	if i.Achieved {
		return "✓ " + i.Do.Title
	}
	return "○ " + i.Do.Title
}

func (i Item) Description() string {
	switch {
	case i.Memo != "":
		return "📝 " + i.Memo
	case i.Do.Description != nil:
		return *i.Do.Description
	case i.Achieved:
		return "達成済み"
	default:
		return "未達成"
	}
}

func (i Item) FilterValue() string { return i.Do.Title }

type KeyMap struct {
	Toggle key.Binding
	Add    key.Binding
	Edit   key.Binding
	Delete key.Binding
	Memo   key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Toggle: key.NewBinding(
			key.WithKeys(" ", "enter"),
			key.WithHelp("space", "I did it!"),
		),
		Add: key.NewBinding(
			key.WithKeys("a"),
			key.WithHelp("a", "add do"),
		),
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit do"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete do"),
		),
		Memo: key.NewBinding(
			key.WithKeys("w"),
			key.WithHelp("w", "memo"),
		),
	}
}

type Model struct {
	list  list.Model
	keys  KeyMap
	date  string
	count int
}

func New(width, height int) Model {
	l := list.New(nil, list.NewDefaultDelegate(), width, height)
	l.Title = "Do"
	l.SetShowTitle(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	keys := DefaultKeyMap()
	l.AdditionalShortHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Memo}
	}
	l.AdditionalFullHelpKeys = func() []key.Binding {
		return []key.Binding{keys.Toggle, keys.Add, keys.Edit, keys.Delete, keys.Memo}
	}
	return Model{list: l, keys: keys}
}

// SetDos lists dos with their state on date taken from the month's achievements.
func (m *Model) SetDos(dos []models.Do, achievements []models.Achievement, date string) {
	m.date = date
	m.count = len(dos)
	byDo := make(map[string]models.Achievement)
	for _, a := range achievements {
		if a.AchievedDate == date {
			byDo[a.DoID] = a
		}
	}
	items := make([]list.Item, len(dos))
	for i, d := range dos {
		a, ok := byDo[d.ID]
		items[i] = Item{Do: d, Achieved: ok, Memo: a.MemoText()}
	}
	m.list.SetItems(items)
}

func (m Model) Date() string { return m.date }

// Selected returns the highlighted item.
func (m Model) Selected() (Item, bool) {
	i, ok := m.list.SelectedItem().(Item)
	return i, ok
}

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Add):
			if m.count >= constants.MaxDosPerUser {
				return m, m.list.NewStatusMessage(constants.MsgDoLimitReached)
			}
			return m, func() tea.Msg { return AddDoMsg{} }
		case key.Matches(msg, m.keys.Toggle):
			if i, ok := m.Selected(); ok {
				date := m.date
				return m, func() tea.Msg { return ToggleDoMsg{Do: i.Do, Date: date, Achieved: i.Achieved} }
			}
		case key.Matches(msg, m.keys.Edit):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return EditDoMsg{Do: i.Do} }
			}
		case key.Matches(msg, m.keys.Delete):
			if i, ok := m.Selected(); ok {
				return m, func() tea.Msg { return DeleteDoMsg{Do: i.Do} }
			}
		case key.Matches(msg, m.keys.Memo):
			if i, ok := m.Selected(); ok {
				date := m.date
				return m, func() tea.Msg { return MemoDoMsg{Do: i.Do, Date: date, Memo: i.Memo} }
			}
		}
	}

	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	header := fmt.Sprintf("%s  (%d/%d)\n", achievement.DisplayDate(m.date), m.count, constants.MaxDosPerUser)
	if len(m.list.Items()) == 0 {
		return header + "\n  Doがまだありません。\n  'a' で追加しましょう。"
	}
	return header + m.list.View()
}

func (m *Model) SetSize(width, height int) {
	m.list.SetSize(width, height-1)
}
