package tui

import (
	"context"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/ididit/internal/achievement"
	"github.com/julianstephens/ididit/internal/auth"
	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/praise"
	"github.com/julianstephens/ididit/internal/profile"
	"github.com/julianstephens/ididit/internal/tui/components/calview"
	"github.com/julianstephens/ididit/internal/tui/components/dolist"
	"github.com/julianstephens/ididit/internal/tui/components/settings"
)

// Deps are the services the TUI drives.
type Deps struct {
	Session     *auth.SessionContext
	Tracker     *achievement.Tracker
	Dos         *dos.Manager
	Profiles    *profile.Service
	Praise      *praise.Picker
	Today       func() string
	ConfirmMode string
}

type SignInFormModel struct {
	SignUp   bool
	Email    string
	Password string
}

type DoFormModel struct {
	Title       string
	Description string
}

type MemoFormModel struct {
	Do   models.Do
	Date string
	Memo string
}

type SettingsFormModel struct {
	Birthday     string
	MessageSetID string
}

// tickMsg checks for a date change.
type tickMsg time.Time

type Model struct {
	deps          Deps
	state         constants.SessionState
	previousState constants.SessionState
	keys          KeyMap
	help          help.Model
	calendar      calview.Model
	doList        dolist.Model
	settings      settings.Model
	form          *huh.Form
	signInForm    *SignInFormModel
	doForm        *DoFormModel
	memoForm      *MemoFormModel
	settingsForm  *SettingsFormModel
	memoInput     textinput.Model
	editingDo     *models.Do
	doToDelete    *models.Do
	dos           []models.Do
	date          string // day shown in the Do list
	today         string
	seenRefresh   uint64
	status        string
	formError     string // Error message to display for form operations
	quitting      bool
	width         int
	height        int
}

func NewModel(deps Deps) Model {
	today := deps.Today()
	memo := textinput.New()
	memo.Placeholder = "ひとことメモ（任意）"

	m := Model{
		deps:      deps,
		state:     constants.StateDos,
		keys:      DefaultKeyMap(),
		help:      help.New(),
		calendar:  calview.New(today),
		doList:    dolist.New(0, 0),
		settings:  settings.New(deps.ConfirmMode, 0, 0),
		memoInput: memo,
		date:      today,
		today:     today,
	}
	if !deps.Session.SignedIn() {
		status := ""
		if deps.Session.Expired() {
			status = constants.MsgSessionExpired
		}
		m.openSignIn(status)
		return m
	}
	m.reload()
	return m
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{tick()}
	if m.form != nil {
		cmds = append(cmds, m.form.Init())
	}
	return tea.Batch(cmds...)
}

func tick() tea.Cmd {
	return tea.Tick(time.Minute, func(t time.Time) tea.Msg { return tickMsg(t) })
}

// State is the current screen.
func (m Model) State() constants.SessionState { return m.state }

// Status is the last message shown under the tabs.
func (m Model) Status() string { return m.status }

func (m Model) ShortHelp() []key.Binding {
	keys := []key.Binding{m.keys.Tab, m.keys.Quit, m.keys.Help}
	switch m.state {
	case constants.StateCalendar:
		ck := m.calendar.Keys()
		keys = append(keys, ck.PrevMonth, ck.NextMonth, ck.Open)
	case constants.StateDos:
		dk := dolist.DefaultKeyMap()
		keys = append(keys, dk.Toggle, dk.Add, dk.Memo)
	case constants.StateSettings:
		sk := m.settings.Keys()
		keys = append(keys, sk.Edit, sk.SignOut)
	case constants.StateConfirmAchievement, constants.StateConfirmDelete:
		keys = []key.Binding{m.keys.Yes, m.keys.No}
	case constants.StateCelebration:
		keys = []key.Binding{m.keys.Enter, m.keys.Esc}
	}
	return keys
}

func (m Model) FullHelp() [][]key.Binding {
	global := []key.Binding{m.keys.Tab, m.keys.ShiftTab, m.keys.Quit, m.keys.Help}

	var actions []key.Binding
	switch m.state {
	case constants.StateCalendar:
		ck := m.calendar.Keys()
		actions = []key.Binding{ck.PrevDay, ck.NextDay, ck.PrevWeek, ck.NextWeek, ck.PrevMonth, ck.NextMonth, ck.Today, ck.Open}
	case constants.StateDos:
		dk := dolist.DefaultKeyMap()
		actions = []key.Binding{dk.Toggle, dk.Add, dk.Edit, dk.Delete, dk.Memo}
	case constants.StateSettings:
		sk := m.settings.Keys()
		actions = []key.Binding{sk.Edit, sk.SignOut}
	}

	return [][]key.Binding{global, actions}
}

func (m *Model) userID() string {
	return m.deps.Session.UserID()
}

// reload refreshes every view from the store.
func (m *Model) reload() {
	m.loadDos()
	m.loadAchievements()
	m.loadProfile()
}

func (m *Model) loadDos() {
	list, err := m.deps.Dos.List(context.Background(), m.userID())
	if err != nil {
		m.fail(err, constants.OpLoadDos)
		return
	}
	m.dos = list
	m.calendar.SetDos(list)
	m.refreshDoList()
}

// loadAchievements re-reads the calendar month and the Do list's month.
func (m *Model) loadAchievements() {
	m.seenRefresh = m.deps.Tracker.RefreshCounter()
	month := m.calendar.Month()
	rows, err := m.deps.Tracker.Month(context.Background(), month)
	m.calendar.SetAchievements(month, rows, err)
	if err != nil {
		m.status = err.Error()
	}
	m.refreshDoList()
}

func (m *Model) refreshDoList() {
	rows, err := m.deps.Tracker.Month(context.Background(), m.date[:len(constants.MonthFormat)])
	if err != nil {
		m.status = err.Error()
		rows = nil
	}
	m.doList.SetDos(m.dos, rows, m.date)
}

func (m *Model) loadProfile() {
	ctx := context.Background()
	p, err := m.deps.Profiles.Ensure(ctx, m.userID())
	if err != nil {
		m.fail(err, constants.OpLoadProfile)
		return
	}
	sets, err := m.deps.Praise.Sets(ctx)
	if err != nil {
		m.fail(err, constants.OpLoadMessageSets)
		return
	}
	m.settings.SetProfile(p, sets, constants.DefaultMessageSetName)
}

// syncRefresh reloads achievement views when the tracker's counter moved.
func (m *Model) syncRefresh() {
	if m.deps.Tracker.RefreshCounter() != m.seenRefresh {
		m.loadAchievements()
	}
}
