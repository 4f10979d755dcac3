// Package exercise implements the fill-in-the-blank editor and the per-step
// exercise session that submits code for validation.
package exercise

import (
	"strings"

	"codelap/internal/types"
)

// Answers maps a blank's placeholder to the user's current answer.
type Answers map[string]string

// Span is one placeholder occurrence in a template, as byte offsets.
type Span struct {
	Start int
	End   int
	Blank int // index into the template's blanks
}

// Segment is a piece of one rendered line: literal text or a blank slot.
type Segment struct {
	Text  string
	Blank int // -1 for literal text
}

// IsBlank reports whether the segment is an editable slot.
func (s Segment) IsBlank() bool { return s.Blank >= 0 }

// Template is a code template whose placeholder positions were fixed at parse
// time. Rendering writes answers into those positions only, so an answer that
// contains placeholder text, or a placeholder that is a substring of another,
// is never substituted twice.
type Template struct {
	source string
	blanks []types.Blank
	spans  []Span
}

// ParseTemplate records every placeholder occurrence in code. Scanning is
// left to right; at each offset the longest matching placeholder wins, and
// among equal lengths the earlier blank wins. Blanks with an empty
// placeholder never match.
func ParseTemplate(code string, blanks []types.Blank) *Template {
	t := &Template{source: code, blanks: append([]types.Blank(nil), blanks...)}

	for i := 0; i < len(code); {
		best := -1
		for b, blank := range t.blanks {
			p := blank.Placeholder
			if p == "" || !strings.HasPrefix(code[i:], p) {
				continue
			}
			if best < 0 || len(p) > len(t.blanks[best].Placeholder) {
				best = b
			}
		}
		if best < 0 {
			i++
			continue
		}
		end := i + len(t.blanks[best].Placeholder)
		t.spans = append(t.spans, Span{Start: i, End: end, Blank: best})
		i = end
	}
	return t
}

// Source returns the unmodified template.
func (t *Template) Source() string { return t.source }

// Blanks returns the template's blanks in their declared order.
func (t *Template) Blanks() []types.Blank { return append([]types.Blank(nil), t.blanks...) }

// Spans returns the placeholder occurrences in source order.
func (t *Template) Spans() []Span { return append([]Span(nil), t.spans...) }

// Occurrences counts how many spans belong to blank b.
func (t *Template) Occurrences(b int) int {
	n := 0
	for _, s := range t.spans {
		if s.Blank == b {
			n++
		}
	}
	return n
}

// Unmatched lists blanks whose placeholder never occurs in the template.
func (t *Template) Unmatched() []int {
	var out []int
	for b := range t.blanks {
		if t.Occurrences(b) == 0 {
			out = append(out, b)
		}
	}
	return out
}

// answer returns the text written into a span of blank b.
func (t *Template) answer(b int, answers Answers) string {
	p := t.blanks[b].Placeholder
	if a := answers[p]; a != "" {
		return a
	}
	return p
}

// Render rebuilds the code with each placeholder occurrence replaced by its
// answer. Unanswered blanks echo their placeholder.
func (t *Template) Render(answers Answers) string {
	var sb strings.Builder
	sb.Grow(len(t.source))
	prev := 0
	for _, s := range t.spans {
		sb.WriteString(t.source[prev:s.Start])
		sb.WriteString(t.answer(s.Blank, answers))
		prev = s.End
	}
	sb.WriteString(t.source[prev:])
	return sb.String()
}

// Filled counts blanks with a non-whitespace answer.
func (t *Template) Filled(answers Answers) int {
	n := 0
	for _, b := range t.blanks {
		if strings.TrimSpace(answers[b.Placeholder]) != "" {
			n++
		}
	}
	return n
}

// Complete reports whether every blank has an answer.
func (t *Template) Complete(answers Answers) bool {
	return t.Filled(answers) == len(t.blanks)
}

// Lines splits the template into numbered lines of literal and blank
// segments for display. A placeholder is kept whole on the line it starts on.
func (t *Template) Lines() [][]Segment {
	lines := [][]Segment{nil}
	addText := func(text string) {
		parts := strings.Split(text, "\n")
		for i, part := range parts {
			if i > 0 {
				lines = append(lines, nil)
			}
			if part != "" {
				last := len(lines) - 1
				lines[last] = append(lines[last], Segment{Text: part, Blank: -1})
			}
		}
	}

	prev := 0
	for _, s := range t.spans {
		addText(t.source[prev:s.Start])
		last := len(lines) - 1
		lines[last] = append(lines[last], Segment{Text: t.source[s.Start:s.End], Blank: s.Blank})
		prev = s.End
	}
	addText(t.source[prev:])
	return lines
}

// Recover extracts answers from code previously produced by Render. It
// returns false when the code no longer fits the template, e.g. after free
// editing, or when more than one split of the code into answers fits, as
// with adjacent blanks or an answer that contains the text after its blank.
func (t *Template) Recover(code string) (Answers, bool) {
	var found Answers
	if t.match(code, 0, 0, 0, Answers{}, &found) != 1 {
		return nil, false
	}
	for p, v := range found {
		if v == "" {
			delete(found, p)
		}
	}
	return found, true
}

// match counts the ways code[pos:] fits the template from span i on, where
// prev is the source offset just past span i-1. Counting stops at two. The
// answers of the first fit are stored in found.
func (t *Template) match(code string, pos, i, prev int, answers Answers, found *Answers) int {
	if i == len(t.spans) {
		if code[pos:] != t.source[prev:] {
			return 0
		}
		if *found == nil {
			*found = copyAnswers(answers)
		}
		return 1
	}

	s := t.spans[i]
	lit := t.source[prev:s.Start]
	if !strings.HasPrefix(code[pos:], lit) {
		return 0
	}
	pos += len(lit)
	p := t.blanks[s.Blank].Placeholder

	assign := func(value string) (Answers, bool) {
		if value == p {
			value = ""
		}
		if seen, ok := answers[p]; ok && seen != value {
			return nil, false
		}
		next := copyAnswers(answers)
		next[p] = value
		return next, true
	}

	if i+1 == len(t.spans) {
		tail := t.source[s.End:]
		if !strings.HasSuffix(code[pos:], tail) {
			return 0
		}
		next, ok := assign(code[pos : len(code)-len(tail)])
		if !ok {
			return 0
		}
		return t.match(code, len(code)-len(tail), i+1, s.End, next, found)
	}

	sep := t.source[s.End:t.spans[i+1].Start]
	if sep == "" {
		// Adjacent blanks never split uniquely.
		return 2
	}
	count := 0
	for off := 0; off+len(sep) <= len(code)-pos && count < 2; off++ {
		if !strings.HasPrefix(code[pos+off:], sep) {
			continue
		}
		next, ok := assign(code[pos : pos+off])
		if !ok {
			continue
		}
		count += t.match(code, pos+off, i+1, s.End, next, found)
	}
	return count
}

func copyAnswers(a Answers) Answers {
	out := make(Answers, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}
