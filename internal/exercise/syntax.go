package exercise

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"

	"codelap/internal/logging"
)

// SyntaxIssue is a parse problem in submitted code. Row and Column are 1-based.
type SyntaxIssue struct {
	Row     int
	Column  int
	Missing bool   // the parser inserted a token that is absent
	Text    string // offending source, or the missing node type
}

func (i SyntaxIssue) String() string {
	if i.Missing {
		return fmt.Sprintf("%d:%d: missing %s", i.Row, i.Column, i.Text)
	}
	return fmt.Sprintf("%d:%d: unexpected %q", i.Row, i.Column, i.Text)
}

// maxIssues bounds the report for badly broken input.
const maxIssues = 20

// Languages lists the names accepted by SyntaxCheck.
func Languages() []string { return []string{"python", "go", "javascript"} }

func language(name string) (*sitter.Language, bool) {
	switch strings.ToLower(name) {
	case "python", "py":
		return python.GetLanguage(), true
	case "go", "golang":
		return golang.GetLanguage(), true
	case "javascript", "js":
		return javascript.GetLanguage(), true
	}
	return nil, false
}

// LanguageForFile guesses a language from a file extension, defaulting to
// python.
func LanguageForFile(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return "go"
	case ".js", ".mjs", ".cjs":
		return "javascript"
	}
	return "python"
}

// SyntaxCheck parses code locally and reports ERROR and MISSING nodes. It is
// advisory; the backend remains the judge of correctness. Fill-in-the-blank
// code still holding placeholders will usually report issues.
func SyntaxCheck(ctx context.Context, lang, code string) ([]SyntaxIssue, error) {
	l, ok := language(lang)
	if !ok {
		return nil, fmt.Errorf("unsupported language %q (want one of %s)", lang, strings.Join(Languages(), ", "))
	}

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(l)

	src := []byte(code)
	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parse failed: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var issues []SyntaxIssue
	var walk func(n *sitter.Node)
	walk = func(n *sitter.Node) {
		if len(issues) >= maxIssues {
			return
		}
		if n.IsMissing() || n.IsError() {
			p := n.StartPoint()
			issue := SyntaxIssue{Row: int(p.Row) + 1, Column: int(p.Column) + 1, Missing: n.IsMissing()}
			if issue.Missing {
				issue.Text = n.Type()
			} else {
				issue.Text = firstLine(n.Content(src))
			}
			issues = append(issues, issue)
			if n.IsError() {
				return
			}
		}
		if !n.HasError() {
			return
		}
		for i := 0; i < int(n.ChildCount()); i++ {
			walk(n.Child(i))
		}
	}
	walk(root)

	logging.ExerciseDebug("Syntax check (%s): %d issue(s)", lang, len(issues))
	return issues, nil
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 40 {
		s = s[:40] + "..."
	}
	return s
}
