package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"codelap/internal/exercise"
	"codelap/internal/types"
)

// BlankEditor renders a fill-in-the-blank template with one text input per
// blank. The code preview shows each slot with its current answer, or the
// placeholder while unanswered.
type BlankEditor struct {
	tmpl      *exercise.Template
	blanks    []types.Blank
	inputs    []textinput.Model
	focus     int
	showHints bool
	styles    Styles
}

// NewBlankEditor creates an editor over tmpl seeded with answers.
func NewBlankEditor(tmpl *exercise.Template, answers exercise.Answers, styles Styles) BlankEditor {
	blanks := tmpl.Blanks()
	inputs := make([]textinput.Model, len(blanks))
	for i, b := range blanks {
		ti := textinput.New()
		ti.Placeholder = b.Placeholder
		ti.Prompt = ""
		ti.CharLimit = 256
		ti.Width = 24
		ti.SetValue(answers[b.Placeholder])
		inputs[i] = ti
	}
	return BlankEditor{tmpl: tmpl, blanks: blanks, inputs: inputs, styles: styles}
}

// Len returns the number of blanks.
func (e BlankEditor) Len() int { return len(e.inputs) }

// Focused returns the placeholder and value of the focused blank.
func (e BlankEditor) Focused() (string, string) {
	if e.focus >= len(e.inputs) {
		return "", ""
	}
	return e.blanks[e.focus].Placeholder, e.inputs[e.focus].Value()
}

// Answers collects the current answers keyed by placeholder.
func (e BlankEditor) Answers() exercise.Answers {
	out := make(exercise.Answers, len(e.inputs))
	for i, in := range e.inputs {
		out[e.blanks[i].Placeholder] = in.Value()
	}
	return out
}

// Focus focuses the active blank.
func (e BlankEditor) Focus() tea.Cmd {
	if len(e.inputs) == 0 {
		return nil
	}
	return e.inputs[e.focus].Focus()
}

// Blur removes focus from every blank.
func (e BlankEditor) Blur() BlankEditor {
	for i := range e.inputs {
		e.inputs[i].Blur()
	}
	return e
}

// Move shifts focus by delta, wrapping around.
func (e BlankEditor) Move(delta int) (BlankEditor, tea.Cmd) {
	n := len(e.inputs)
	if n == 0 {
		return e, nil
	}
	e.inputs[e.focus].Blur()
	e.focus = ((e.focus+delta)%n + n) % n
	return e, e.inputs[e.focus].Focus()
}

// ToggleHints shows or hides the per-blank hints.
func (e BlankEditor) ToggleHints() BlankEditor {
	e.showHints = !e.showHints
	return e
}

// Update forwards msg to the focused input.
func (e BlankEditor) Update(msg tea.Msg) (BlankEditor, tea.Cmd) {
	if len(e.inputs) == 0 {
		return e, nil
	}
	var cmd tea.Cmd
	e.inputs[e.focus], cmd = e.inputs[e.focus].Update(msg)
	return e, cmd
}

// Preview renders the code with answers written into the slots.
func (e BlankEditor) Preview() string {
	var sb strings.Builder
	for i, line := range e.tmpl.Lines() {
		if i > 0 {
			sb.WriteString("\n")
		}
		for _, seg := range line {
			if !seg.IsBlank() {
				sb.WriteString(seg.Text)
				continue
			}
			value := e.inputs[seg.Blank].Value()
			style := e.styles.BlankFilled
			if value == "" {
				value = seg.Text
				style = e.styles.Blank
			}
			if seg.Blank == e.focus {
				style = e.styles.BlankActive
			}
			sb.WriteString(style.Render(value))
		}
	}
	return sb.String()
}

// View renders the preview followed by the inputs.
func (e BlankEditor) View() string {
	var sb strings.Builder
	sb.WriteString(e.styles.CodeBlock.Render(e.Preview()) + "\n")

	unmatched := map[int]bool{}
	for _, b := range e.tmpl.Unmatched() {
		unmatched[b] = true
	}
	for i, b := range e.blanks {
		label := fmt.Sprintf("  %-14s ", b.Placeholder)
		if i == e.focus {
			label = e.styles.Selected.Render(fmt.Sprintf("> %-14s ", b.Placeholder))
		}
		line := label + e.inputs[i].View()
		if unmatched[i] {
			line += e.styles.Muted.Render("  (not in template)")
		}
		if e.showHints && b.Hint != "" {
			line += e.styles.Info.Render("  hint: " + b.Hint)
		}
		sb.WriteString(line + "\n")
	}

	answers := e.Answers()
	sb.WriteString(e.styles.Muted.Render(fmt.Sprintf("%d/%d blanks filled", e.tmpl.Filled(answers), len(e.blanks))))
	return sb.String()
}
