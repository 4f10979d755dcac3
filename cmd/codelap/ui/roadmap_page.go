package ui

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	progressbar "github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"

	"codelap/internal/app"
	"codelap/internal/logging"
	"codelap/internal/types"
)

// RoadmapPage shows the current plan's steps with completion marks.
type RoadmapPage struct {
	app    *app.App
	styles Styles
	bar    progressbar.Model

	plan       types.LearningPlan
	attached   bool
	cursor     int
	confirming bool

	info string
	err  error

	width, height int
}

// NewRoadmapPage creates the roadmap page.
func NewRoadmapPage(a *app.App, styles Styles) RoadmapPage {
	return RoadmapPage{
		app:    a,
		styles: styles,
		bar:    progressbar.New(progressbar.WithDefaultGradient(), progressbar.WithWidth(40)),
	}
}

// SetSize records the available area.
func (p RoadmapPage) SetSize(width, height int) RoadmapPage {
	p.width, p.height = width, height
	p.bar.Width = clamp(width-20, 10, 60)
	return p
}

// Refresh reloads the current plan and its completion overlay.
func (p RoadmapPage) Refresh() RoadmapPage {
	p.plan, p.attached = p.app.Progress.Current()
	p.cursor = clamp(p.cursor, 0, len(p.plan.LearningSteps)-1)
	p.confirming = false
	return p
}

// Update handles messages.
func (p RoadmapPage) Update(msg tea.Msg) (RoadmapPage, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}

	if p.confirming {
		p.confirming = false
		if key.String() != "y" {
			p.info = "Reset cancelled"
			return p, nil
		}
		if err := p.app.Progress.ResetProgress(); err != nil {
			p.err = err
		} else {
			p.info = "Progress reset"
			logging.UI("Progress reset for %q", p.plan.Title)
		}
		return p.Refresh(), nil
	}

	p.info, p.err = "", nil
	steps := p.plan.LearningSteps
	switch key.String() {
	case "up", "k":
		p.cursor = clamp(p.cursor-1, 0, len(steps)-1)
	case "down", "j":
		p.cursor = clamp(p.cursor+1, 0, len(steps)-1)
	case "c":
		if next, ok := p.app.Progress.NextIncomplete(); ok {
			for i, s := range steps {
				if s.Step == next.Step {
					p.cursor = i
				}
			}
		} else {
			p.info = "All steps complete"
		}
	case "enter":
		if p.cursor < len(steps) {
			n := steps[p.cursor].Step
			return p, func() tea.Msg { return openStepMsg{step: n} }
		}
	case "a":
		saved, err := p.app.Approve()
		if err != nil {
			p.err = err
			return p, nil
		}
		p.info = fmt.Sprintf("Saved %q (%d saved plans)", p.plan.Title, len(saved))
	case "R":
		if p.attached {
			p.confirming = true
		}
	case "e":
		path, err := p.export()
		if err != nil {
			p.err = err
			return p, nil
		}
		p.info = "Exported to " + path
	case "esc", "p":
		return p, func() tea.Msg { return backMsg{} }
	}
	return p, nil
}

func (p RoadmapPage) export() (string, error) {
	data, err := p.app.Progress.Export(time.Now())
	if err != nil {
		return "", err
	}
	path := filepath.Join(p.app.Workspace, p.app.Progress.ExportFilename())
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write export: %w", err)
	}
	return path, nil
}

// View renders the page.
func (p RoadmapPage) View() string {
	if !p.attached {
		return p.styles.Content.Render(p.styles.Muted.Render("No plan is open. Press esc to pick or generate one."))
	}

	var sb strings.Builder
	sb.WriteString(p.styles.Title.Render(p.plan.Title) + "\n")
	if p.plan.Description != "" {
		sb.WriteString(p.styles.Subtitle.Render(truncate(p.plan.Description, contentWidth(p.width))) + "\n\n")
	}

	sum := p.app.Progress.Summary()
	sb.WriteString(p.bar.ViewAs(sum.Percent()/100) + fmt.Sprintf("  %d/%d steps\n\n", sum.Completed, sum.Total))

	for i, step := range p.plan.LearningSteps {
		line := fmt.Sprintf("%2d. %s", step.Step, step.Title)
		if step.Duration != "" {
			line += p.styles.Muted.Render("  " + step.Duration)
		}
		if n := len(step.CodingExercises); n > 0 {
			line += p.styles.Muted.Render(fmt.Sprintf("  [%d exercise(s)]", n))
		}
		prefix := "  "
		if i == p.cursor {
			prefix = p.styles.Selected.Render("> ")
		}
		sb.WriteString(prefix + p.styles.Check(step.Completed) + " " + line + "\n")
	}

	sb.WriteString("\n")
	switch {
	case p.confirming:
		sb.WriteString(p.styles.Warning.Render("Clear all progress for this plan? (y/N)"))
	case p.err != nil:
		sb.WriteString(p.styles.Error.Render(describeError(p.err)))
	case p.info != "":
		sb.WriteString(p.styles.Success.Render(p.info))
	default:
		sb.WriteString(p.styles.Muted.Render("enter: open step · c: continue · a: save plan · e: export · R: reset · esc: plans"))
	}
	return p.styles.Content.Render(sb.String())
}
