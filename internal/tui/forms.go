package tui

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"

	"github.com/julianstephens/ididit/internal/constants"
	"github.com/julianstephens/ididit/internal/dos"
	apperrors "github.com/julianstephens/ididit/internal/errors"
	"github.com/julianstephens/ididit/internal/models"
	"github.com/julianstephens/ididit/internal/tui/components/dolist"
)

func notBlank(msg string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return apperrors.Validation("%s", msg)
		}
		return nil
	}
}

// formInit starts the open form, if any.
func (m Model) formInit() tea.Cmd {
	if m.form == nil {
		return nil
	}
	return m.form.Init()
}

// stepForm feeds msg to the form. It reports the form's state after the update;
// esc aborts.
func (m *Model) stepForm(msg tea.Msg) (huh.FormState, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.Type == tea.KeyEsc {
		return huh.StateAborted, nil
	}
	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}
	return m.form.State, cmd
}

func (m *Model) closeForm(state constants.SessionState) {
	m.form = nil
	m.formError = ""
	m.state = state
}

// openSignIn shows the sign-in form with an optional notice.
func (m *Model) openSignIn(notice string) {
	email := ""
	if m.signInForm != nil {
		email = m.signInForm.Email
	}
	m.signInForm = &SignInFormModel{Email: email}
	m.status = notice
	m.state = constants.StateSignIn
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[bool]().
				Title("I did it!").
				Options(
					huh.NewOption("ログイン", false),
					huh.NewOption("新規登録", true),
				).
				Value(&m.signInForm.SignUp),
			huh.NewInput().
				Title("メールアドレス").
				Value(&m.signInForm.Email).
				Validate(notBlank("メールアドレスを入力してください。")),
			huh.NewInput().
				Title("パスワード").
				EchoMode(huh.EchoModePassword).
				Value(&m.signInForm.Password).
				Validate(notBlank("パスワードを入力してください。")),
		),
	)
}

func (m Model) updateSignIn(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "ctrl+c" {
		m.quitting = true
		return m, tea.Quit
	}
	state, cmd := m.stepForm(msg)
	switch state {
	case huh.StateCompleted:
		ctx := context.Background()
		in := *m.signInForm
		op := constants.OpSignIn
		var err error
		if in.SignUp {
			op = constants.OpSignUp
			err = m.deps.Session.SignUp(ctx, in.Email, in.Password)
		} else {
			err = m.deps.Session.SignIn(ctx, in.Email, in.Password)
		}
		if err != nil {
			m.openSignIn(apperrors.Handle(err, op).Message)
			return m, m.formInit()
		}
		m.closeForm(constants.StateDos)
		m.status = m.deps.Session.Email() + " でログインしました"
		m.deps.Tracker.Invalidate()
		m.reload()
		return m, nil
	case huh.StateAborted:
		m.quitting = true
		return m, tea.Quit
	}
	return m, cmd
}

func (m Model) openDoForm(editing *models.Do) (tea.Model, tea.Cmd) {
	m.editingDo = editing
	m.doForm = &DoFormModel{}
	m.previousState = m.state
	m.state = constants.StateAddDo
	title := "Doを追加"
	if editing != nil {
		m.doForm.Title = editing.Title
		m.doForm.Description = editing.DescriptionText()
		m.state = constants.StateEditDo
		title = "Doを編集"
	}
	m.formError = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title(title).
				Placeholder("例: 腕立て伏せ10回").
				CharLimit(constants.DoTitleMaxLength).
				Value(&m.doForm.Title).
				Validate(notBlank("タイトルを入力してください。")),
			huh.NewText().
				Title("説明（任意）").
				CharLimit(constants.DoDescriptionMaxLength).
				Value(&m.doForm.Description),
		),
	)
	return m, m.form.Init()
}

func (m Model) updateDoForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	state, cmd := m.stepForm(msg)
	switch state {
	case huh.StateCompleted:
		next, err := m.saveDo(dos.Input{Title: m.doForm.Title, Description: m.doForm.Description})
		if err != nil {
			if apperrors.IsSession(err) {
				m.fail(err, constants.OpSaveDo)
				return m, m.formInit()
			}
			// Stay in the form to allow a retry.
			m.formError = apperrors.Handle(err, constants.OpSaveDo).Message
			m.form.State = huh.StateNormal
			return m, cmd
		}
		next.editingDo = nil
		next.closeForm(next.previousState)
		return next, nil
	case huh.StateAborted:
		m.editingDo = nil
		m.closeForm(m.previousState)
		return m, nil
	}
	return m, cmd
}

func (m Model) openMemoForm(msg dolist.MemoDoMsg) (tea.Model, tea.Cmd) {
	m.memoForm = &MemoFormModel{Do: msg.Do, Date: msg.Date, Memo: msg.Memo}
	m.previousState = m.state
	m.state = constants.StateEditMemo
	m.formError = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewText().
				Title("「" + msg.Do.Title + "」のメモ").
				Description("空にするとメモを消去します").
				Value(&m.memoForm.Memo),
		),
	)
	return m, m.form.Init()
}

func (m Model) updateMemoForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	state, cmd := m.stepForm(msg)
	switch state {
	case huh.StateCompleted:
		f := m.memoForm
		if _, err := m.deps.Tracker.SaveMemo(context.Background(), f.Do.ID, f.Date, f.Memo); err != nil {
			if m.deps.Session.Expired() {
				m.fail(err, constants.OpSaveMemo)
				return m, m.formInit()
			}
			m.formError = apperrors.Handle(err, constants.OpSaveMemo).Message
			m.form.State = huh.StateNormal
			return m, cmd
		}
		m.closeForm(m.previousState)
		m.status = "メモを保存しました"
		m.syncRefresh()
		return m, nil
	case huh.StateAborted:
		m.closeForm(m.previousState)
		return m, nil
	}
	return m, cmd
}

func (m Model) openSettingsForm() (tea.Model, tea.Cmd) {
	p := m.settings.Profile()
	m.settingsForm = &SettingsFormModel{}
	if p.Birthday != nil {
		m.settingsForm.Birthday = *p.Birthday
	}
	var options []huh.Option[string]
	for _, s := range m.settings.Sets() {
		if s.Name == constants.DefaultMessageSetName {
			options = append([]huh.Option[string]{huh.NewOption(s.Name, "")}, options...)
			continue
		}
		options = append(options, huh.NewOption(s.Name, s.ID))
	}
	if p.SelectedMessageSetID != nil {
		m.settingsForm.MessageSetID = *p.SelectedMessageSetID
	}

	m.previousState = m.state
	m.state = constants.StateEditSettings
	m.formError = ""
	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("誕生日（YYYY-MM-DD、空欄で未設定）").
				Value(&m.settingsForm.Birthday),
			huh.NewSelect[string]().
				Title("ほめ言葉のメッセージセット").
				Options(options...).
				Value(&m.settingsForm.MessageSetID),
		),
	)
	return m, m.form.Init()
}

func (m Model) updateSettingsForm(msg tea.Msg) (tea.Model, tea.Cmd) {
	state, cmd := m.stepForm(msg)
	switch state {
	case huh.StateCompleted:
		ctx := context.Background()
		f := m.settingsForm
		_, err := m.deps.Profiles.SetBirthday(ctx, m.userID(), f.Birthday)
		if err == nil {
			_, err = m.deps.Profiles.SelectMessageSet(ctx, m.userID(), f.MessageSetID)
		}
		if err != nil {
			if apperrors.IsSession(err) {
				m.fail(err, constants.OpSaveProfile)
				return m, m.formInit()
			}
			m.formError = apperrors.Handle(err, constants.OpSaveProfile).Message
			m.form.State = huh.StateNormal
			return m, cmd
		}
		m.closeForm(m.previousState)
		m.loadProfile()
		m.status = "プロフィールを更新しました"
		return m, nil
	case huh.StateAborted:
		m.closeForm(m.previousState)
		return m, nil
	}
	return m, cmd
}
