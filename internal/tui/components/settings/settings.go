package settings

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/julianstephens/ididit/internal/models"
)

type EditSettingsMsg struct{}

type SignOutMsg struct{}

type KeyMap struct {
	Edit    key.Binding
	SignOut key.Binding
}

func DefaultKeyMap() KeyMap {
	return KeyMap{
		Edit: key.NewBinding(
			key.WithKeys("e"),
			key.WithHelp("e", "edit profile"),
		),
		SignOut: key.NewBinding(
			key.WithKeys("o"),
			key.WithHelp("o", "sign out"),
		),
	}
}

type Model struct {
	keys        KeyMap
	profile     models.Profile
	setName     string
	sets        []models.MessageSet
	confirmMode string
	width       int
	height      int
}

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Width(20)

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("255")).
			Bold(true)

	sectionStyle = lipgloss.NewStyle().
			MarginTop(1).
			MarginBottom(1)
)

func New(confirmMode string, width, height int) Model {
	return Model{
		keys:        DefaultKeyMap(),
		confirmMode: confirmMode,
		width:       width,
		height:      height,
	}
}

func (m Model) Keys() KeyMap { return m.keys }

// SetProfile shows p with the name of its selected message set.
func (m *Model) SetProfile(p models.Profile, sets []models.MessageSet, defaultSet string) {
	m.profile = p
	m.sets = sets
	m.setName = defaultSet
	if p.SelectedMessageSetID == nil {
		return
	}
	for _, s := range sets {
		if s.ID == *p.SelectedMessageSetID {
			m.setName = s.Name
		}
	}
}

func (m Model) Profile() models.Profile { return m.profile }

func (m Model) Sets() []models.MessageSet { return m.sets }

func (m Model) Init() tea.Cmd {
	return nil
}

func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok {
		switch {
		case key.Matches(msg, m.keys.Edit):
			return m, func() tea.Msg { return EditSettingsMsg{} }
		case key.Matches(msg, m.keys.SignOut):
			return m, func() tea.Msg { return SignOutMsg{} }
		}
	}
	return m, nil
}

func (m Model) View() string {
	if m.width == 0 {
		return ""
	}

	birthday := "(未設定)"
	if m.profile.Birthday != nil {
		birthday = *m.profile.Birthday
	}

	var sections []string

	profileTitle := titleStyle.Render("プロフィール")
	profileContent := lipgloss.JoinVertical(
		lipgloss.Left,
		fmt.Sprintf("%s %s", labelStyle.Render("メールアドレス:"), valueStyle.Render(m.profile.Email)),
		fmt.Sprintf("%s %s", labelStyle.Render("誕生日:"), valueStyle.Render(birthday)),
	)
	sections = append(sections, sectionStyle.Render(profileTitle+"\n"+profileContent))

	praiseTitle := titleStyle.Render("ほめ言葉")
	praiseContent := lipgloss.JoinVertical(
		lipgloss.Left,
		fmt.Sprintf("%s %s", labelStyle.Render("メッセージセット:"), valueStyle.Render(m.setName)),
		fmt.Sprintf("%s %s", labelStyle.Render("確認モード:"), valueStyle.Render(m.confirmMode)),
	)
	sections = append(sections, sectionStyle.Render(praiseTitle+"\n"+praiseContent))

	helpText := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Italic(true).
		MarginTop(2).
		Render("'e' で編集 / 'o' でログアウト")

	sections = append(sections, helpText)

	content := lipgloss.JoinVertical(lipgloss.Left, sections...)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Left,
		lipgloss.Top,
		lipgloss.NewStyle().Padding(1, 2).Render(content),
	)
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
}
