package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"codelap/internal/app"
	"codelap/internal/exercise"
	"codelap/internal/logging"
	"codelap/internal/types"
)

// submitDoneMsg carries a finished validation. sess identifies the session
// that submitted so results for a closed step are dropped.
type submitDoneMsg struct {
	sess *exercise.Session
	out  *exercise.Outcome
	err  error
}

// StepPage shows one step and edits its coding exercises.
type StepPage struct {
	ctx    context.Context
	app    *app.App
	styles Styles
	md     Markdown

	sess     *exercise.Session
	desc     viewport.Model
	blanks   BlankEditor
	area     textarea.Model
	freeform bool

	showHints bool
	pending   bool
	spinner   spinner.Model
	result    *types.ValidationResult
	info      string
	err       error

	width, height int
}

// NewStepPage creates the step page.
func NewStepPage(ctx context.Context, a *app.App, styles Styles, md Markdown) StepPage {
	area := textarea.New()
	area.ShowLineNumbers = true
	area.CharLimit = 0
	area.SetHeight(10)
	return StepPage{
		ctx:     ctx,
		app:     a,
		styles:  styles,
		md:      md,
		desc:    viewport.New(80, 8),
		area:    area,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
	}
}

// SetSize lays out the description and editor for the available area.
func (p StepPage) SetSize(width, height int) StepPage {
	p.width, p.height = width, height
	p.desc.Width = contentWidth(width)
	p.desc.Height = clamp(height/3, 3, 12)
	p.area.SetWidth(contentWidth(width) - 2)
	p.area.SetHeight(clamp(height/3, 4, 20))
	return p
}

// Open starts a session for step n of the current plan.
func (p StepPage) Open(n int) (StepPage, error) {
	sess, err := p.app.StepSession(n)
	if err != nil {
		return p, err
	}
	logging.UIDebug("Opened step %d with %d exercise(s)", n, sess.Count())
	p.sess = sess
	p.pending = false
	p.showHints = false
	p.info, p.err = "", nil
	return p.sync(), nil
}

// sync rebuilds the editor from the session's current exercise.
func (p StepPage) sync() StepPage {
	p.result = p.sess.LastResult()
	step := p.sess.Step()
	ex, ok := p.sess.Exercise()
	if !ok {
		p.desc.SetContent(p.md.Render(ExerciseMarkdown(step, nil)))
		p.freeform = false
		p.blanks = BlankEditor{}
		return p
	}

	p.desc.SetContent(p.md.Render(ExerciseMarkdown(step, &ex)))
	p.desc.GotoTop()
	if tmpl := p.sess.Template(); tmpl != nil {
		p.freeform = false
		p.area.Blur()
		p.blanks = NewBlankEditor(tmpl, p.sess.Answers(), p.styles)
		if p.showHints {
			p.blanks = p.blanks.ToggleHints()
		}
		p.blanks.Focus()
		return p
	}
	p.freeform = true
	p.blanks = BlankEditor{}
	p.area.SetValue(p.sess.Code())
	p.area.Focus()
	return p
}

// Update handles messages.
func (p StepPage) Update(msg tea.Msg) (StepPage, tea.Cmd) {
	if p.sess == nil {
		return p, nil
	}
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if !p.pending {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case submitDoneMsg:
		if msg.sess != p.sess {
			return p, nil
		}
		return p.finishSubmit(msg)

	case tea.KeyMsg:
		return p.handleKey(msg)
	}
	return p, nil
}

func (p StepPage) handleKey(msg tea.KeyMsg) (StepPage, tea.Cmd) {
	switch msg.String() {
	case "esc":
		return p, func() tea.Msg { return backMsg{} }
	case "ctrl+s":
		return p.submit()
	case "ctrl+n":
		if p.sess.Next() {
			p.info, p.err = "", nil
			return p.sync(), p.focusCmd()
		}
		return p, nil
	case "ctrl+p":
		if p.sess.Previous() {
			p.info, p.err = "", nil
			return p.sync(), p.focusCmd()
		}
		return p, nil
	case "ctrl+g":
		p.showHints = !p.showHints
		p.blanks = p.blanks.ToggleHints()
		return p, nil
	case "ctrl+r":
		if p.sess.Count() == 0 {
			return p, nil
		}
		if err := p.sess.Reset(); err != nil {
			p.err = err
		}
		p.info = "Exercise reset to its template"
		return p.sync(), p.focusCmd()
	case "pgup", "pgdown":
		var cmd tea.Cmd
		p.desc, cmd = p.desc.Update(msg)
		return p, cmd
	case "enter":
		if p.sess.Count() == 0 {
			return p.markComplete()
		}
	}

	if p.sess.Count() == 0 {
		return p, nil
	}
	if p.freeform {
		return p.editCode(msg)
	}
	switch msg.String() {
	case "tab", "down", "enter":
		var cmd tea.Cmd
		p.blanks, cmd = p.blanks.Move(1)
		return p, cmd
	case "shift+tab", "up":
		var cmd tea.Cmd
		p.blanks, cmd = p.blanks.Move(-1)
		return p, cmd
	}
	return p.editBlank(msg)
}

func (p StepPage) focusCmd() tea.Cmd {
	if p.freeform {
		return p.area.Focus()
	}
	return p.blanks.Focus()
}

func (p StepPage) editBlank(msg tea.KeyMsg) (StepPage, tea.Cmd) {
	_, before := p.blanks.Focused()
	var cmd tea.Cmd
	p.blanks, cmd = p.blanks.Update(msg)
	placeholder, after := p.blanks.Focused()
	if after != before {
		if err := p.sess.SetAnswer(placeholder, after); err != nil && !types.IsNotFound(err) {
			p.err = fmt.Errorf("draft not saved: %w", err)
		}
	}
	return p, cmd
}

func (p StepPage) editCode(msg tea.KeyMsg) (StepPage, tea.Cmd) {
	before := p.area.Value()
	var cmd tea.Cmd
	p.area, cmd = p.area.Update(msg)
	if after := p.area.Value(); after != before {
		if err := p.sess.SetCode(after); err != nil {
			p.err = fmt.Errorf("draft not saved: %w", err)
		}
	}
	return p, cmd
}

func (p StepPage) submit() (StepPage, tea.Cmd) {
	if p.sess.Count() == 0 {
		return p.markComplete()
	}
	if p.pending || p.sess.Submitting() {
		p.info = "A submission is already in progress"
		return p, nil
	}
	p.pending = true
	p.info, p.err = "", nil
	sess, ctx := p.sess, p.ctx
	return p, tea.Batch(p.spinner.Tick, func() tea.Msg {
		out, err := sess.Submit(ctx)
		return submitDoneMsg{sess: sess, out: out, err: err}
	})
}

func (p StepPage) finishSubmit(msg submitDoneMsg) (StepPage, tea.Cmd) {
	p.pending = false
	switch {
	case errors.Is(msg.err, types.ErrSuperseded):
		return p, nil
	case errors.Is(msg.err, types.ErrAuthorizationExpired):
		// The session navigator redirects to login.
		return p, nil
	case msg.err != nil && msg.out == nil:
		p.err = msg.err
		p.result = p.sess.LastResult()
		return p, nil
	}

	p.err = msg.err
	if msg.out.Advanced {
		p = p.sync()
		p.result = msg.out.Result
		p.info = fmt.Sprintf("Correct! On to exercise %d of %d", p.sess.Index()+1, p.sess.Count())
		return p, p.focusCmd()
	}
	p.result = msg.out.Result
	if msg.out.StepCompleted {
		p.info = fmt.Sprintf("Step %d complete!", p.sess.Step().Step)
	}
	return p, nil
}

func (p StepPage) markComplete() (StepPage, tea.Cmd) {
	if err := p.sess.MarkComplete(); err != nil {
		p.err = err
		return p, nil
	}
	p.info = fmt.Sprintf("Step %d complete!", p.sess.Step().Step)
	return p, nil
}

// View renders the page.
func (p StepPage) View() string {
	if p.sess == nil {
		return p.styles.Content.Render(p.styles.Muted.Render("No step open."))
	}
	step := p.sess.Step()
	completed := p.app.Progress.IsStepComplete(step.Step)

	var sb strings.Builder
	title := fmt.Sprintf("Step %d: %s", step.Step, step.Title)
	sb.WriteString(p.styles.Title.Render(title) + " " + p.styles.Check(completed) + "\n")
	sb.WriteString(p.desc.View() + "\n")
	sb.WriteString(p.styles.RenderDivider(contentWidth(p.width)) + "\n")

	if p.sess.Count() == 0 {
		sb.WriteString(p.styles.Muted.Render("This step has no coding exercises.") + "\n\n")
		sb.WriteString(p.status(completed))
		sb.WriteString(p.styles.Muted.Render("enter: mark complete · pgup/pgdn: scroll · esc: roadmap"))
		return p.styles.Content.Render(sb.String())
	}

	ex, _ := p.sess.Exercise()
	sb.WriteString(p.styles.Bold.Render(fmt.Sprintf("Exercise %d/%d: %s", p.sess.Index()+1, p.sess.Count(), ex.Title)))
	sb.WriteString(p.styles.Muted.Render(fmt.Sprintf("  · %d/%d passed", p.sess.Passed(), p.sess.Count())) + "\n")

	if p.freeform {
		sb.WriteString(p.area.View() + "\n")
	} else {
		sb.WriteString(p.blanks.View() + "\n")
	}

	if p.showHints && len(ex.Hints) > 0 {
		sb.WriteString(p.styles.Info.Render("Hints:") + "\n")
		for _, h := range ex.Hints {
			sb.WriteString(p.styles.Info.Render("  • "+h) + "\n")
		}
	}

	if p.result != nil {
		sb.WriteString("\n" + p.feedback(p.result) + "\n")
	}
	sb.WriteString(p.status(completed))
	sb.WriteString(p.styles.Muted.Render("ctrl+s: submit · tab: next blank · ctrl+n/ctrl+p: exercise · ctrl+g: hints · ctrl+r: reset · esc: roadmap"))
	return p.styles.Content.Render(sb.String())
}

func (p StepPage) status(completed bool) string {
	switch {
	case p.pending:
		return p.spinner.View() + " Validating...\n\n"
	case p.err != nil:
		return p.styles.Error.Render(describeError(p.err)) + "\n\n"
	case p.info != "":
		return p.styles.Success.Render(p.info) + "\n\n"
	case completed:
		return p.styles.Success.Render("Step complete") + "\n\n"
	}
	return "\n"
}

func (p StepPage) feedback(r *types.ValidationResult) string {
	var sb strings.Builder
	verdict := p.styles.Error.Render("✗ Not quite")
	if r.IsCorrect {
		verdict = p.styles.Success.Render("✓ Correct")
	}
	sb.WriteString(verdict + p.styles.Muted.Render(fmt.Sprintf("  score %.0f/100", r.Score)) + "\n")
	if r.Feedback != "" {
		sb.WriteString(r.Feedback + "\n")
	}
	if r.ExecutionResult != "" {
		sb.WriteString(p.styles.Muted.Render("Output:") + "\n" + indentLines(r.ExecutionResult, "  ") + "\n")
	}
	if r.ErrorMessage != "" {
		sb.WriteString(p.styles.Error.Render("Error: "+r.ErrorMessage) + "\n")
	}
	for _, h := range r.Hints {
		sb.WriteString(p.styles.Info.Render("  • "+h) + "\n")
	}
	return p.styles.Feedback.Render(strings.TrimRight(sb.String(), "\n"))
}

func indentLines(s, prefix string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = prefix + l
	}
	return strings.Join(lines, "\n")
}
