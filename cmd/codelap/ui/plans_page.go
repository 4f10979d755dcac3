package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"codelap/internal/app"
	"codelap/internal/logging"
	"codelap/internal/types"
)

const searchLimit = 10

type plansMode int

const (
	modeSaved plansMode = iota
	modeSearch
	modeResults
)

type (
	searchDoneMsg struct {
		resp *types.SearchResponse
		err  error
	}
	generateDoneMsg struct {
		plan types.LearningPlan
		err  error
	}
)

// PlansPage lists saved plans and drives repository search and plan generation.
type PlansPage struct {
	ctx    context.Context
	app    *app.App
	styles Styles

	mode    plansMode
	saved   []types.LearningPlan
	results []types.RepositoryInfo
	prereqs []string
	cursor  int

	query   textinput.Model
	spinner spinner.Model
	pending string
	err     error

	width, height int
}

// NewPlansPage creates the plans page.
func NewPlansPage(ctx context.Context, a *app.App, styles Styles) PlansPage {
	q := textinput.New()
	q.Placeholder = "search term or https://github.com/owner/repo"
	q.CharLimit = 256
	q.Width = 48
	return PlansPage{
		ctx:     ctx,
		app:     a,
		styles:  styles,
		query:   q,
		spinner: spinner.New(spinner.WithSpinner(spinner.Dot), spinner.WithStyle(styles.Spinner)),
	}
}

// SetSize records the available area.
func (p PlansPage) SetSize(width, height int) PlansPage {
	p.width, p.height = width, height
	return p
}

// Refresh reloads the saved plans and shows them. The remembered search
// results stay available behind 'r'.
func (p PlansPage) Refresh() (PlansPage, tea.Cmd) {
	saved, err := p.app.SavedPlans()
	if err != nil {
		p.err = err
	}
	p.saved = saved
	if p.pending == "" {
		p.mode = modeSaved
		p.query.Blur()
	}
	p.cursor = clamp(p.cursor, 0, len(p.saved)-1)
	return p, nil
}

func (p PlansPage) rows() int {
	if p.mode == modeResults {
		return len(p.results)
	}
	return len(p.saved)
}

// Update handles messages.
func (p PlansPage) Update(msg tea.Msg) (PlansPage, tea.Cmd) {
	switch msg := msg.(type) {
	case spinner.TickMsg:
		if p.pending == "" {
			return p, nil
		}
		var cmd tea.Cmd
		p.spinner, cmd = p.spinner.Update(msg)
		return p, cmd

	case searchDoneMsg:
		p.pending = ""
		if msg.err != nil {
			p.err = msg.err
			p.mode = modeSearch
			return p, p.query.Focus()
		}
		p.results = msg.resp.Repositories
		p.prereqs = msg.resp.AIPrerequisites
		p.mode = modeResults
		p.cursor = 0
		return p, nil

	case generateDoneMsg:
		p.pending = ""
		if msg.err != nil {
			p.err = msg.err
			return p, nil
		}
		return p, func() tea.Msg { return openRoadmapMsg{} }

	case tea.KeyMsg:
		if p.pending != "" {
			return p, nil
		}
		if p.mode == modeSearch {
			return p.updateSearch(msg)
		}
		return p.updateList(msg)
	}
	return p, nil
}

func (p PlansPage) updateSearch(msg tea.KeyMsg) (PlansPage, tea.Cmd) {
	switch msg.String() {
	case "esc":
		p.query.Blur()
		p.mode = modeSaved
		return p, nil
	case "enter":
		query := strings.TrimSpace(p.query.Value())
		if query == "" {
			return p, nil
		}
		p.query.Blur()
		p.err = nil
		p.pending = "Searching for " + query
		ctx, a := p.ctx, p.app
		return p, tea.Batch(p.spinner.Tick, func() tea.Msg {
			resp, err := a.Search(ctx, query, searchLimit)
			return searchDoneMsg{resp: resp, err: err}
		})
	}
	var cmd tea.Cmd
	p.query, cmd = p.query.Update(msg)
	return p, cmd
}

func (p PlansPage) updateList(msg tea.KeyMsg) (PlansPage, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		p.cursor = clamp(p.cursor-1, 0, p.rows()-1)
	case "down", "j":
		p.cursor = clamp(p.cursor+1, 0, p.rows()-1)
	case "/":
		p.mode = modeSearch
		p.err = nil
		return p, p.query.Focus()
	case "r":
		if resp, ok := p.app.LastSearch(); ok {
			p.results = resp.Repositories
			p.prereqs = resp.AIPrerequisites
			p.mode = modeResults
			p.cursor = 0
		}
	case "s":
		if p.mode == modeResults {
			p.mode = modeSaved
			p.cursor = 0
		}
	case "esc":
		if p.mode == modeResults {
			p.mode = modeSaved
			p.cursor = 0
			return p, nil
		}
		if _, ok := p.app.Progress.Current(); ok {
			return p, func() tea.Msg { return openRoadmapMsg{} }
		}
	case "d":
		if p.mode == modeSaved && p.cursor < len(p.saved) {
			title := p.saved[p.cursor].Title
			saved, err := p.app.RemovePlan(title)
			if err != nil {
				p.err = err
				return p, nil
			}
			logging.UI("Removed saved plan %q", title)
			p.saved = saved
			p.cursor = clamp(p.cursor, 0, len(p.saved)-1)
		}
	case "enter":
		return p.choose()
	}
	return p, nil
}

func (p PlansPage) choose() (PlansPage, tea.Cmd) {
	switch p.mode {
	case modeSaved:
		if p.cursor >= len(p.saved) {
			return p, nil
		}
		if _, err := p.app.Open(p.saved[p.cursor].Title); err != nil {
			p.err = err
			return p, nil
		}
		return p, func() tea.Msg { return openRoadmapMsg{} }

	case modeResults:
		if p.cursor >= len(p.results) {
			return p, nil
		}
		repo := p.results[p.cursor]
		p.err = nil
		p.pending = "Generating a plan for " + repo.FullName
		ctx, a := p.ctx, p.app
		return p, tea.Batch(p.spinner.Tick, func() tea.Msg {
			plan, err := a.Generate(ctx, repo)
			return generateDoneMsg{plan: plan, err: err}
		})
	}
	return p, nil
}

// View renders the page.
func (p PlansPage) View() string {
	var sb strings.Builder

	switch p.mode {
	case modeSearch:
		sb.WriteString(p.styles.Title.Render("Find a repository") + "\n")
		sb.WriteString(p.query.View() + "\n\n")
		sb.WriteString(p.styles.Muted.Render("enter: search · esc: cancel"))

	case modeResults:
		sb.WriteString(p.styles.Title.Render(fmt.Sprintf("Repositories (%d)", len(p.results))) + "\n")
		if len(p.prereqs) > 0 {
			sb.WriteString(p.styles.Subtitle.Render("Prerequisites: "+strings.Join(p.prereqs, ", ")) + "\n\n")
		}
		if len(p.results) == 0 {
			sb.WriteString(p.styles.Muted.Render("No repositories matched.") + "\n")
		}
		for i, r := range p.results {
			line := fmt.Sprintf("%-40s %6d★ %s", r.FullName, r.Stars, r.Language)
			sb.WriteString(p.cursorLine(i, line) + "\n")
			if i == p.cursor && r.Description != "" {
				sb.WriteString("    " + p.styles.Muted.Render(truncate(r.Description, contentWidth(p.width)-4)) + "\n")
			}
		}
		sb.WriteString("\n" + p.styles.Muted.Render("enter: generate plan · /: new search · s/esc: saved plans"))

	default:
		sb.WriteString(p.styles.Title.Render("Saved plans") + "\n")
		if len(p.saved) == 0 {
			sb.WriteString(p.styles.Muted.Render("No saved plans yet. Press / to search for a repository.") + "\n")
		}
		for i, plan := range p.saved {
			line := fmt.Sprintf("%-40s %s · %d steps", plan.Title, plan.DifficultyLevel, len(plan.LearningSteps))
			sb.WriteString(p.cursorLine(i, line) + "\n")
		}
		sb.WriteString("\n" + p.styles.Muted.Render("enter: open · d: remove · /: search · r: last results · esc: roadmap"))
	}

	if p.pending != "" {
		sb.WriteString("\n\n" + p.spinner.View() + " " + p.pending)
	} else if p.err != nil {
		sb.WriteString("\n\n" + p.styles.Error.Render(describeError(p.err)))
	}
	return p.styles.Content.Render(sb.String())
}

func (p PlansPage) cursorLine(i int, line string) string {
	if i == p.cursor {
		return p.styles.Selected.Render("> " + line)
	}
	return "  " + line
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	return min(max(v, lo), hi)
}
