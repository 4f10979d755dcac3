package main

import (
	"fmt"
	"strings"

	"codelap/cmd/codelap/ui"
	"codelap/internal/progress"
	"codelap/internal/types"
)

func cliStyles() ui.Styles {
	if cfg == nil {
		return ui.DefaultStyles()
	}
	return ui.NewStyles(ui.ThemeFor(cfg.UI.Theme))
}

// printMarkdown renders md unless --plain is set, which keeps output stable
// for scripts.
func printMarkdown(md string) {
	if plainOutput {
		fmt.Print(md)
		return
	}
	width := 80
	theme := ui.DetectTheme()
	if cfg != nil {
		width = cfg.UI.WordWrap
		theme = ui.ThemeFor(cfg.UI.Theme)
	}
	fmt.Print(ui.NewMarkdown(theme, width).Render(md))
}

func printSummary(sum progress.Summary) {
	fmt.Printf("Progress: %d/%d steps (%.0f%%)\n", sum.Completed, sum.Total, sum.Percent())
}

func repositoryTable(resp *types.SearchResponse) *ui.SimpleTable {
	table := ui.NewSimpleTable(fmt.Sprintf("Results for %q", resp.Query), []string{"#", "Repository", "Stars", "Language", "Description"})
	table.MaxCellWidth = 60
	for i, r := range resp.Repositories {
		table.AddRow(fmt.Sprint(i+1), r.FullName, fmt.Sprint(r.Stars), r.Language, r.Description)
	}
	return table
}

func planTable(plans []types.LearningPlan) *ui.SimpleTable {
	table := ui.NewSimpleTable("Saved plans", []string{"Title", "Difficulty", "Duration", "Steps"})
	table.MaxCellWidth = 50
	for _, p := range plans {
		table.AddRow(p.Title, p.DifficultyLevel, p.EstimatedDuration, fmt.Sprint(len(p.LearningSteps)))
	}
	return table
}

func printValidation(res *types.ValidationResult) {
	styles := cliStyles()
	if res.IsCorrect {
		fmt.Println(styles.Success.Render("Correct!") + fmt.Sprintf(" score %.0f/100", res.Score))
	} else {
		fmt.Println(styles.Error.Render("Not quite.") + fmt.Sprintf(" score %.0f/100", res.Score))
	}
	if res.Feedback != "" {
		fmt.Println(res.Feedback)
	}
	if res.ExecutionResult != "" {
		fmt.Printf("Output:\n%s\n", indent(res.ExecutionResult))
	}
	if res.ErrorMessage != "" {
		fmt.Printf("Error:\n%s\n", indent(res.ErrorMessage))
	}
	for _, h := range res.Hints {
		fmt.Printf("Hint: %s\n", h)
	}
}

func indent(s string) string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	for i, l := range lines {
		lines[i] = "  " + l
	}
	return strings.Join(lines, "\n")
}
