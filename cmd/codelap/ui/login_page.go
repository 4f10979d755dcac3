package ui

import (
	"context"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"codelap/internal/app"
	"codelap/internal/types"
)

const (
	fieldUsername = iota
	fieldPassword
	fieldEmail
)

type registeredMsg struct {
	user *types.User
	err  error
}

type loginFailedMsg struct{ err error }

// LoginPage collects credentials for login or registration.
type LoginPage struct {
	ctx    context.Context
	app    *app.App
	styles Styles

	inputs      []textinput.Model
	focus       int
	registering bool
	pending     bool
	spinner     spinner.Model

	err   error
	info  string
	width int
}

// NewLoginPage creates the login page.
func NewLoginPage(ctx context.Context, a *app.App, styles Styles) LoginPage {
	inputs := make([]textinput.Model, 3)
	for i := range inputs {
		ti := textinput.New()
		ti.CharLimit = 128
		ti.Width = 32
		inputs[i] = ti
	}
	inputs[fieldUsername].Placeholder = "username"
	inputs[fieldPassword].Placeholder = "password"
	inputs[fieldPassword].EchoMode = textinput.EchoPassword
	inputs[fieldPassword].EchoCharacter = '•'
	inputs[fieldEmail].Placeholder = "email (optional)"

	return LoginPage{
		ctx:     ctx,
		app:     a,
		styles:  styles,
		inputs:  inputs,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
	}
}

// SetSize records the available width.
func (p LoginPage) SetSize(width, _ int) LoginPage {
	p.width = width
	return p
}

// Reset clears the password and any pending state, keeping the username.
func (p LoginPage) Reset() LoginPage {
	p.inputs[fieldPassword].SetValue("")
	p.pending = false
	p.err = nil
	return p
}

// Focus focuses the active field.
func (p LoginPage) Focus() tea.Cmd {
	return p.inputs[p.focus].Focus()
}

func (p LoginPage) fieldCount() int {
	if p.registering {
		return 3
	}
	return 2
}

func (p LoginPage) moveFocus(delta int) (LoginPage, tea.Cmd) {
	p.inputs[p.focus].Blur()
	n := p.fieldCount()
	p.focus = ((p.focus+delta)%n + n) % n
	return p, p.inputs[p.focus].Focus()
}

// Update handles messages.
func (p LoginPage) Update(msg tea.Msg) (LoginPage, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !p.pending {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case loginFailedMsg:
		p.pending = false
		p.err = msg.err
		p.inputs[fieldPassword].SetValue("")
		return p, nil

	case registeredMsg:
		p.pending = false
		if msg.err != nil {
			p.err = msg.err
			return p, nil
		}
		p.registering = false
		p.err = nil
		p.info = "Account created for " + msg.user.Username + ". Log in to continue."
		p.inputs[fieldPassword].SetValue("")
		p.inputs[p.focus].Blur()
		p.focus = fieldPassword
		return p, p.inputs[p.focus].Focus()

	case tea.KeyMsg:
		if p.pending {
			return p, nil
		}
		switch msg.String() {
		case "tab", "down":
			return p.moveFocus(1)
		case "shift+tab", "up":
			return p.moveFocus(-1)
		case "ctrl+r":
			p.registering = !p.registering
			p.err = nil
			p.info = ""
			if p.focus >= p.fieldCount() {
				return p.moveFocus(0)
			}
			return p, nil
		case "enter":
			if p.focus < p.fieldCount()-1 {
				return p.moveFocus(1)
			}
			return p.submit()
		}
	}

	var cmd tea.Cmd
	p.inputs[p.focus], cmd = p.inputs[p.focus].Update(msg)
	return p, cmd
}

func (p LoginPage) submit() (LoginPage, tea.Cmd) {
	username := strings.TrimSpace(p.inputs[fieldUsername].Value())
	password := p.inputs[fieldPassword].Value()
	if username == "" || password == "" {
		p.err = &types.ValidationError{Message: "username and password are required"}
		return p, nil
	}

	p.pending = true
	p.err = nil
	p.info = ""
	ctx, a := p.ctx, p.app

	if p.registering {
		create := types.UserCreate{Username: username, Password: password, Email: strings.TrimSpace(p.inputs[fieldEmail].Value())}
		return p, tea.Batch(p.spinner.Tick, func() tea.Msg {
			user, err := a.Session.Register(ctx, create)
			return registeredMsg{user: user, err: err}
		})
	}

	creds := types.UserLogin{Username: username, Password: password}
	return p, tea.Batch(p.spinner.Tick, func() tea.Msg {
		user, err := a.Session.Login(ctx, creds)
		if err != nil {
			return loginFailedMsg{err: err}
		}
		return loggedInMsg{user: user}
	})
}

// View renders the page.
func (p LoginPage) View() string {
	var sb strings.Builder
	title := "Log in"
	if p.registering {
		title = "Create an account"
	}
	sb.WriteString(p.styles.Title.Render(title) + "\n")

	labels := []string{"Username", "Password", "Email"}
	for i := 0; i < p.fieldCount(); i++ {
		label := p.styles.Muted.Render(labels[i] + ": ")
		if i == p.focus {
			label = p.styles.Selected.Render(labels[i] + ": ")
		}
		sb.WriteString(label + p.inputs[i].View() + "\n")
	}
	sb.WriteString("\n")

	switch {
	case p.pending:
		sb.WriteString(p.spinner.View() + " contacting " + p.app.API.BaseURL() + "\n")
	case p.err != nil:
		sb.WriteString(p.styles.Error.Render(describeError(p.err)) + "\n")
	case p.info != "":
		sb.WriteString(p.styles.Success.Render(p.info) + "\n")
	}

	mode := "ctrl+r: register instead"
	if p.registering {
		mode = "ctrl+r: back to login"
	}
	sb.WriteString("\n" + p.styles.Muted.Render("enter: next/submit · tab: switch field · "+mode+" · ctrl+c: quit"))
	return p.styles.Content.Render(sb.String())
}
