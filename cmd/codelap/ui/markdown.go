package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"codelap/internal/logging"
	"codelap/internal/types"
)

// Markdown renders markdown for the terminal. The zero value, or one whose
// renderer failed to build, returns the source unchanged.
type Markdown struct {
	renderer *glamour.TermRenderer
	cache    *renderCache
}

const markdownCacheSize = 64

// NewMarkdown builds a renderer for the theme. width <= 0 disables wrapping.
func NewMarkdown(theme Theme, width int) Markdown {
	style := "light"
	if theme.IsDark {
		style = "dark"
	}
	opts := []glamour.TermRendererOption{glamour.WithStandardStyle(style)}
	if width > 0 {
		opts = append(opts, glamour.WithWordWrap(width))
	}
	r, err := glamour.NewTermRenderer(opts...)
	if err != nil {
		logging.Get(logging.CategoryUI).Warn("Markdown renderer unavailable: %v", err)
		return Markdown{}
	}
	return Markdown{renderer: r, cache: newRenderCache(markdownCacheSize)}
}

// Render renders md, falling back to the raw text on error.
func (m Markdown) Render(md string) string {
	if m.renderer == nil {
		return md
	}
	return m.cache.getOrCompute(cacheKey(md), func() string {
		out, err := m.renderer.Render(md)
		if err != nil {
			logging.UIDebug("Markdown render failed: %v", err)
			return md
		}
		return strings.TrimRight(out, "\n") + "\n"
	})
}

// PlanMarkdown describes a plan and its roadmap.
func PlanMarkdown(plan types.LearningPlan) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "# %s\n\n", plan.Title)
	if plan.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", plan.Description)
	}
	meta := []string{}
	if plan.DifficultyLevel != "" {
		meta = append(meta, "**Difficulty:** "+plan.DifficultyLevel)
	}
	if plan.EstimatedDuration != "" {
		meta = append(meta, "**Duration:** "+plan.EstimatedDuration)
	}
	if len(meta) > 0 {
		sb.WriteString(strings.Join(meta, " · ") + "\n\n")
	}
	writeList(&sb, "Prerequisites", plan.Prerequisites)
	writeList(&sb, "Learning objectives", plan.LearningObjectives)
	if len(plan.TechnologiesCovered) > 0 {
		fmt.Fprintf(&sb, "**Technologies:** %s\n\n", strings.Join(plan.TechnologiesCovered, ", "))
	}

	sb.WriteString("## Roadmap\n\n")
	for _, step := range plan.LearningSteps {
		mark := " "
		if step.Completed {
			mark = "x"
		}
		line := fmt.Sprintf("- [%s] **%d. %s**", mark, step.Step, step.Title)
		if step.Duration != "" {
			line += " _(" + step.Duration + ")_"
		}
		if n := len(step.CodingExercises); n > 0 {
			line += fmt.Sprintf(" · %d exercise(s)", n)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// StepMarkdown describes one step: description, resources and exercises.
func StepMarkdown(step types.LearningStep) string {
	var sb strings.Builder
	status := ""
	if step.Completed {
		status = " ✓"
	}
	fmt.Fprintf(&sb, "# Step %d: %s%s\n\n", step.Step, step.Title, status)
	if step.Duration != "" {
		fmt.Fprintf(&sb, "_Estimated time: %s_\n\n", step.Duration)
	}
	if step.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", step.Description)
	}
	writeList(&sb, "Resources", step.Resources)
	writeList(&sb, "Exercises", step.Exercises)

	for i, ex := range step.CodingExercises {
		fmt.Fprintf(&sb, "## Exercise %d: %s\n\n", i+1, ex.Title)
		if ex.Difficulty != "" {
			fmt.Fprintf(&sb, "_Difficulty: %s_\n\n", ex.Difficulty)
		}
		if ex.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", ex.Description)
		}
		if ex.CodeTemplate != "" {
			fmt.Fprintf(&sb, "```\n%s\n```\n\n", strings.TrimRight(ex.CodeTemplate, "\n"))
		}
		if ex.IsFillInTheBlank() {
			sb.WriteString("Blanks:\n\n")
			for _, b := range ex.Blanks {
				line := fmt.Sprintf("- `%s`", b.Placeholder)
				if b.Hint != "" {
					line += " - " + b.Hint
				}
				sb.WriteString(line + "\n")
			}
			sb.WriteString("\n")
		}
		if ex.ExpectedOutput != "" {
			fmt.Fprintf(&sb, "Expected output:\n\n```\n%s\n```\n\n", strings.TrimRight(ex.ExpectedOutput, "\n"))
		}
	}
	return sb.String()
}

func writeList(sb *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(sb, "**%s**\n\n", title)
	for _, item := range items {
		fmt.Fprintf(sb, "- %s\n", item)
	}
	sb.WriteString("\n")
}

// ExerciseMarkdown describes the exercise being edited on the step page.
// With no exercise it falls back to the step description.
func ExerciseMarkdown(step types.LearningStep, ex *types.CodingExercise) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "## Step %d: %s\n\n", step.Step, step.Title)
	if ex == nil {
		if step.Description != "" {
			fmt.Fprintf(&sb, "%s\n\n", step.Description)
		}
		writeList(&sb, "Resources", step.Resources)
		writeList(&sb, "Exercises", step.Exercises)
		return sb.String()
	}
	fmt.Fprintf(&sb, "### %s\n\n", ex.Title)
	if ex.Difficulty != "" {
		fmt.Fprintf(&sb, "_Difficulty: %s_\n\n", ex.Difficulty)
	}
	if ex.Description != "" {
		fmt.Fprintf(&sb, "%s\n\n", ex.Description)
	}
	writeList(&sb, "Checks", ex.ValidationRules)
	if ex.ExpectedOutput != "" {
		fmt.Fprintf(&sb, "Expected output:\n\n```\n%s\n```\n", strings.TrimRight(ex.ExpectedOutput, "\n"))
	}
	return sb.String()
}
