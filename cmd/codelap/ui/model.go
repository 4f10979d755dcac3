package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"codelap/internal/app"
	"codelap/internal/logging"
	"codelap/internal/session"
	"codelap/internal/types"
)

// Page identifies the visible screen.
type Page int

const (
	PageLogin Page = iota
	PagePlans
	PageRoadmap
	PageStep
)

func (p Page) String() string {
	switch p {
	case PageLogin:
		return "login"
	case PagePlans:
		return "plans"
	case PageRoadmap:
		return "roadmap"
	case PageStep:
		return "step"
	}
	return "unknown"
}

// Messages shared between pages.
type (
	// RedirectLoginMsg is sent when the session expires.
	RedirectLoginMsg struct{}

	// restoredMsg carries the result of the startup session restore.
	restoredMsg struct{ user *types.User }

	// loggedInMsg switches from the login page once a session exists.
	loggedInMsg struct{ user *types.User }

	// openRoadmapMsg shows the current plan.
	openRoadmapMsg struct{}

	// openStepMsg opens a step of the current plan.
	openStepMsg struct{ step int }

	// backMsg returns to the previous page.
	backMsg struct{}
)

// Model is the root bubbletea model. It owns the pages and routes messages
// to the visible one.
type Model struct {
	ctx    context.Context
	app    *app.App
	styles Styles
	md     Markdown

	width  int
	height int
	page   Page

	login   LoginPage
	plans   PlansPage
	roadmap RoadmapPage
	step    StepPage

	status string
	err    error
}

// NewModel builds the root model over a.
func NewModel(ctx context.Context, a *app.App) Model {
	theme := ThemeFor(a.Config.UI.Theme)
	styles := NewStyles(theme)
	md := NewMarkdown(theme, a.Config.UI.WordWrap)
	return Model{
		ctx:     ctx,
		app:     a,
		styles:  styles,
		md:      md,
		page:    PageLogin,
		login:   NewLoginPage(ctx, a, styles),
		plans:   NewPlansPage(ctx, a, styles),
		roadmap: NewRoadmapPage(a, styles),
		step:    NewStepPage(ctx, a, styles, md),
	}
}

// Run starts the interactive interface and blocks until it exits.
func Run(ctx context.Context, a *app.App) error {
	m := NewModel(ctx, a)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	// Expire runs inside commands, off the update goroutine, so Send
	// cannot block the event loop.
	a.Session.SetNavigator(session.NavigatorFunc(func() { p.Send(RedirectLoginMsg{}) }))
	defer a.Session.SetNavigator(nil)

	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

// Init restores the persisted session.
func (m Model) Init() tea.Cmd {
	a, ctx := m.app, m.ctx
	return func() tea.Msg {
		return restoredMsg{user: a.Restore(ctx)}
	}
}

// Update handles messages.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := bodyHeight(msg.Height)
		m.login = m.login.SetSize(msg.Width, h)
		m.plans = m.plans.SetSize(msg.Width, h)
		m.roadmap = m.roadmap.SetSize(msg.Width, h)
		m.step = m.step.SetSize(msg.Width, h)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m, tea.Quit
		}
		m.err = nil

	case restoredMsg:
		if msg.user == nil {
			logging.UI("No session restored, showing login")
			return m.show(PageLogin)
		}
		m.status = "Welcome back, " + msg.user.DisplayName()
		return m.showHome()

	case loggedInMsg:
		m.status = "Logged in as " + msg.user.DisplayName()
		return m.showHome()

	case RedirectLoginMsg:
		logging.UI("Session expired, returning to login")
		m.status = ""
		m.err = types.ErrAuthorizationExpired
		m.login = m.login.Reset()
		return m.show(PageLogin)

	case openRoadmapMsg:
		m.roadmap = m.roadmap.Refresh()
		return m.show(PageRoadmap)

	case openStepMsg:
		var err error
		m.step, err = m.step.Open(msg.step)
		if err != nil {
			m.err = err
			return m, nil
		}
		return m.show(PageStep)

	case backMsg:
		switch m.page {
		case PageStep:
			m.roadmap = m.roadmap.Refresh()
			return m.show(PageRoadmap)
		case PageRoadmap:
			return m.show(PagePlans)
		}
		return m, nil
	}

	return m.updatePage(msg)
}

func (m Model) updatePage(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.page {
	case PageLogin:
		m.login, cmd = m.login.Update(msg)
	case PagePlans:
		m.plans, cmd = m.plans.Update(msg)
	case PageRoadmap:
		m.roadmap, cmd = m.roadmap.Update(msg)
	case PageStep:
		m.step, cmd = m.step.Update(msg)
	}
	return m, cmd
}

// showHome goes to the roadmap when a plan is attached, else to the plans page.
func (m Model) showHome() (tea.Model, tea.Cmd) {
	if _, ok := m.app.Progress.Current(); ok {
		m.roadmap = m.roadmap.Refresh()
		return m.show(PageRoadmap)
	}
	return m.show(PagePlans)
}

func (m Model) show(p Page) (tea.Model, tea.Cmd) {
	logging.UIDebug("Page %s -> %s", m.page, p)
	m.page = p
	switch p {
	case PageLogin:
		return m, m.login.Focus()
	case PagePlans:
		var cmd tea.Cmd
		m.plans, cmd = m.plans.Refresh()
		return m, cmd
	}
	return m, nil
}

// CurrentPage reports the visible page.
func (m Model) CurrentPage() Page { return m.page }

// View renders the model.
func (m Model) View() string {
	header := m.styles.Header.Render("codelap")
	if u := m.app.Session.User(); u != nil {
		header += m.styles.Muted.Render("  " + u.DisplayName())
	}

	var body string
	switch m.page {
	case PageLogin:
		body = m.login.View()
	case PagePlans:
		body = m.plans.View()
	case PageRoadmap:
		body = m.roadmap.View()
	case PageStep:
		body = m.step.View()
	}

	footer := m.styles.Footer.Render(m.status)
	if m.err != nil {
		footer = m.styles.Footer.Render(m.styles.Error.Render(describeError(m.err)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

// describeError turns client errors into a line for the status bar.
func describeError(err error) string {
	var authErr *types.AuthenticationError
	var valErr *types.ValidationError
	var reqErr *types.RequestFailure
	switch {
	case errors.Is(err, types.ErrAuthorizationExpired):
		return "Your session expired. Please log in again."
	case errors.As(err, &authErr):
		return "Login failed: " + authErr.Message
	case errors.As(err, &valErr):
		return valErr.Message
	case errors.As(err, &reqErr) && reqErr.Status == 0:
		return "Backend unreachable: " + reqErr.Message
	}
	return err.Error()
}
