package tui

import (
	"fmt"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/ididit/internal/constants"
)

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.state {
	case constants.StateCalendar:
		content = docStyle.Render(m.calendar.View())
	case constants.StateDos:
		content = docStyle.Render(m.doList.View())
	case constants.StateSettings:
		content = m.settings.View()
	case constants.StateSignIn, constants.StateAddDo, constants.StateEditDo, constants.StateEditMemo, constants.StateEditSettings:
		content = docStyle.Render(m.viewForm())
	case constants.StateConfirmAchievement:
		content = m.viewConfirmAchievement()
	case constants.StateCelebration:
		content = m.viewCelebration()
	case constants.StateConfirmDelete:
		content = m.viewConfirmDelete()
	}

	var status string
	if m.status != "" {
		status = warningStyle.Render(m.status)
	}

	parts := []string{}
	if m.state != constants.StateSignIn {
		parts = append(parts, m.viewTabs())
	}
	parts = append(parts, status, content, m.help.View(m))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m Model) viewTabs() string {
	titles := map[constants.SessionState]string{
		constants.StateCalendar: "カレンダー",
		constants.StateDos:      "Doリスト",
		constants.StateSettings: "設定",
	}
	var out []string
	for _, t := range tabs {
		if m.state == t {
			out = append(out, activeTabStyle.Render(titles[t]))
		} else {
			out = append(out, inactiveTabStyle.Render(titles[t]))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, out...)
}

func (m Model) viewForm() string {
	if m.form == nil {
		return ""
	}
	view := m.form.View()
	if m.formError != "" {
		view = lipgloss.JoinVertical(lipgloss.Left, view, dangerStyle.Render(m.formError))
	}
	return view
}

func (m Model) center(s string) string {
	if m.width == 0 {
		return s
	}
	return lipgloss.Place(m.width, m.height-4, lipgloss.Center, lipgloss.Center, s)
}

func (m Model) viewConfirmAchievement() string {
	req, ok := m.deps.Tracker.Pending()
	if !ok {
		return ""
	}
	return m.center(modalStyle.Render(lipgloss.JoinVertical(lipgloss.Center,
		fmt.Sprintf("「%s」", req.Title),
		mutedStyle.Render(req.Date),
		"",
		celebrationTitleStyle.Render(constants.MsgConfirmQuestion),
		"",
		fmt.Sprintf("[y] %s    [n] %s", constants.MsgConfirmYes, constants.MsgConfirmLater),
	)))
}

func (m Model) viewCelebration() string {
	c := m.deps.Tracker.Celebration()
	counter := mutedStyle.Render(fmt.Sprintf("%d/%d", utf8.RuneCountInString(m.memoInput.Value()), constants.MemoMaxLength))
	lines := []string{
		celebrationTitleStyle.Render("🎉 " + constants.MsgCelebrationTitle + " 🎉"),
		"",
		fmt.Sprintf("「%s」", c.DoTitle),
		mutedStyle.Render(c.Date),
		"",
		c.Message,
		"",
		m.memoInput.View(),
		counter,
	}
	if m.formError != "" {
		lines = append(lines, dangerStyle.Render(m.formError))
	}
	lines = append(lines, "", mutedStyle.Render("シェア: "+c.ShareURL()), "", "[enter] 保存して閉じる    [esc] 閉じる")
	return m.center(modalStyle.Render(lipgloss.JoinVertical(lipgloss.Center, lines...)))
}

func (m Model) viewConfirmDelete() string {
	title := ""
	if m.doToDelete != nil {
		title = m.doToDelete.Title
	}
	return m.center(lipgloss.JoinVertical(lipgloss.Center,
		dangerStyle.Render(fmt.Sprintf("「%s」", title)),
		dangerStyle.Render(constants.MsgDeleteDoConfirm),
		"",
		"[y] Yes",
		"[n] No",
	))
}
