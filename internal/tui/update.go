package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/tui/components/calview"
	"github.com/julianstephens/ididit/internal/tui/components/dolist"
	"github.com/julianstephens/ididit/internal/tui/components/settings"
)

var tabs = []constants.SessionState{constants.StateCalendar, constants.StateDos, constants.StateSettings}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.doList.SetSize(msg.Width-4, msg.Height-8)
		m.settings.SetSize(msg.Width, msg.Height-4)
		return m, nil
	case tickMsg:
		m.rollDate()
		return m, tick()
	case calview.MonthChangedMsg:
		m.loadAchievements()
		return m, nil
	case calview.OpenDayMsg:
		m.date = msg.Date
		m.refreshDoList()
		m.state = constants.StateDos
		return m, nil
	case dolist.AddDoMsg:
		return m.openDoForm(nil)
	case dolist.EditDoMsg:
		do := msg.Do
		return m.openDoForm(&do)
	case dolist.DeleteDoMsg:
		do := msg.Do
		m.doToDelete = &do
		m.previousState = m.state
		m.state = constants.StateConfirmDelete
		return m, nil
	case dolist.ToggleDoMsg:
		return m.toggle(msg)
	case dolist.MemoDoMsg:
		return m.openMemoForm(msg)
	case settings.EditSettingsMsg:
		return m.openSettingsForm()
	case settings.SignOutMsg:
		return m.signOut()
	}

	switch m.state {
	case constants.StateSignIn:
		return m.updateSignIn(msg)
	case constants.StateAddDo, constants.StateEditDo:
		return m.updateDoForm(msg)
	case constants.StateEditMemo:
		return m.updateMemoForm(msg)
	case constants.StateEditSettings:
		return m.updateSettingsForm(msg)
	case constants.StateConfirmAchievement:
		return m.updateConfirmAchievement(msg)
	case constants.StateCelebration:
		return m.updateCelebration(msg)
	case constants.StateConfirmDelete:
		return m.updateConfirmDelete(msg)
	}

	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(keyMsg, m.keys.Tab):
			m.state = nextTab(m.state, 1)
			return m, nil
		case key.Matches(keyMsg, m.keys.ShiftTab):
			m.state = nextTab(m.state, -1)
			return m, nil
		case key.Matches(keyMsg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
			return m, nil
		}
		m.status = ""
	}

	var cmd tea.Cmd
	switch m.state {
	case constants.StateCalendar:
		m.calendar, cmd = m.calendar.Update(msg)
	case constants.StateDos:
		m.doList, cmd = m.doList.Update(msg)
	case constants.StateSettings:
		m.settings, cmd = m.settings.Update(msg)
	}
	return m, cmd
}

func nextTab(state constants.SessionState, step int) constants.SessionState {
	for i, t := range tabs {
		if t == state {
			return tabs[(i+step+len(tabs))%len(tabs)]
		}
	}
	return state
}

// rollDate moves "today" forward after midnight.
func (m *Model) rollDate() {
	today := m.deps.Today()
	if today == m.today {
		return
	}
	if m.date == m.today {
		m.date = today
	}
	m.today = today
	m.calendar.SetToday(today)
	m.refreshDoList()
}

// fail shows err and sends the user to sign in when the session is gone.
func (m *Model) fail(err error, op string) {
	ue := apperrors.Handle(err, op)
	m.status = ue.Message
	if ue.Kind == apperrors.KindSession || m.deps.Session.Expired() {
		m.openSignIn(constants.MsgSessionExpired)
	}
}

func (m Model) toggle(msg dolist.ToggleDoMsg) (tea.Model, tea.Cmd) {
	result, err := m.deps.Tracker.Toggle(context.Background(), achievement.ToggleRequest{
		DoID:              msg.Do.ID,
		Date:              msg.Date,
		CurrentlyAchieved: msg.Achieved,
	})
	if err != nil {
		m.fail(err, constants.OpToggleAchievement)
		return m, m.formInit()
	}
	return m.applyToggle(result)
}

func (m Model) applyToggle(result achievement.ToggleResult) (tea.Model, tea.Cmd) {
	m.syncRefresh()
	switch result.Outcome {
	case achievement.OutcomeNeedsConfirmation:
		m.previousState = m.state
		m.state = constants.StateConfirmAchievement
	case achievement.OutcomeCreated:
		m.state = constants.StateCelebration
		m.formError = ""
		m.memoInput.SetValue("")
		return m, m.memoInput.Focus()
	case achievement.OutcomeRemoved:
		m.status = "達成を取り消しました"
	}
	return m, nil
}

func (m Model) updateConfirmAchievement(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Yes):
		result, err := m.deps.Tracker.Confirm(context.Background())
		m.state = m.previousState
		if err != nil {
			m.fail(err, constants.OpCreateAchievement)
			return m, m.formInit()
		}
		return m.applyToggle(result)
	case key.Matches(keyMsg, m.keys.No):
		m.deps.Tracker.Cancel()
		m.state = m.previousState
		m.status = "またあとで！"
	}
	return m, nil
}

func (m Model) updateCelebration(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(keyMsg, m.keys.Enter):
			if err := m.deps.Tracker.CloseCelebration(context.Background(), m.memoInput.Value()); err != nil {
				// The modal stays open so the memo can be shortened.
				m.formError = apperrors.Handle(err, constants.OpSaveMemo).Message
				if m.deps.Session.Expired() {
					m.fail(err, constants.OpSaveMemo)
					return m, m.formInit()
				}
				return m, nil
			}
			m.closeCelebration()
			return m, nil
		case key.Matches(keyMsg, m.keys.Esc):
			m.deps.Tracker.DismissCelebration()
			m.closeCelebration()
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.memoInput, cmd = m.memoInput.Update(msg)
	return m, cmd
}

func (m *Model) closeCelebration() {
	m.memoInput.Blur()
	m.formError = ""
	m.state = constants.StateDos
	m.syncRefresh()
}

func (m Model) updateConfirmDelete(msg tea.Msg) (tea.Model, tea.Cmd) {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok || m.doToDelete == nil {
		return m, nil
	}
	switch {
	case key.Matches(keyMsg, m.keys.Yes):
		do := *m.doToDelete
		m.doToDelete = nil
		m.state = m.previousState
		if err := m.deps.Dos.Delete(context.Background(), m.userID(), do.ID); err != nil {
			m.fail(err, constants.OpDeleteDo)
			return m, m.formInit()
		}
		m.deps.Tracker.Invalidate()
		m.status = "「" + do.Title + "」を削除しました"
		m.loadDos()
		m.syncRefresh()
	case key.Matches(keyMsg, m.keys.No):
		m.doToDelete = nil
		m.state = m.previousState
	}
	return m, nil
}

func (m Model) signOut() (tea.Model, tea.Cmd) {
	if err := m.deps.Session.Clear(context.Background()); err != nil {
		m.status = apperrors.Handle(err, constants.OpSignOut).Message
		return m, nil
	}
	m.dos = nil
	m.deps.Tracker.Invalidate()
	m.openSignIn("ログアウトしました")
	return m, m.formInit()
}

func (m Model) saveDo(in dos.Input) (Model, error) {
	ctx := context.Background()
	var err error
	if m.editingDo != nil {
		_, err = m.deps.Dos.Update(ctx, m.userID(), m.editingDo.ID, in)
	} else {
		_, err = m.deps.Dos.Add(ctx, m.userID(), in)
	}
	if err != nil {
		return m, err
	}
	m.loadDos()
	return m, nil
}
