package exercise

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelap/internal/types"
)

func blanks(placeholders ...string) []types.Blank {
	out := make([]types.Blank, len(placeholders))
	for i, p := range placeholders {
		out[i] = types.Blank{Placeholder: p}
	}
	return out
}

func TestRenderSingleBlank(t *testing.T) {
	tmpl := ParseTemplate("print(__BLANK1__)", blanks("__BLANK1__"))

	assert.Equal(t, "print(x)", tmpl.Render(Answers{"__BLANK1__": "x"}))
	assert.Equal(t, "print(__BLANK1__)", tmpl.Render(Answers{}), "unanswered blank echoes its placeholder")
	assert.Equal(t, "print(__BLANK1__)", tmpl.Render(Answers{"__BLANK1__": ""}))
}

func TestRenderEveryOccurrence(t *testing.T) {
	tmpl := ParseTemplate("a = ___\nb = ___ + 1", blanks("___"))
	require.Equal(t, 2, tmpl.Occurrences(0))
	assert.Equal(t, "a = 5\nb = 5 + 1", tmpl.Render(Answers{"___": "5"}))
}

func TestRenderDoesNotResubstitute(t *testing.T) {
	tmpl := ParseTemplate("x = _A_; y = _B_", blanks("_A_", "_B_"))

	got := tmpl.Render(Answers{"_A_": "_B_", "_B_": "2"})
	assert.Equal(t, "x = _B_; y = 2", got, "an answer containing another placeholder stays literal")
}

func TestOverlappingPlaceholdersPreferLongest(t *testing.T) {
	tmpl := ParseTemplate("f(__X__, __X__1)", blanks("__X__", "__X__1"))

	spans := tmpl.Spans()
	require.Len(t, spans, 2)
	assert.Equal(t, 0, spans[0].Blank)
	assert.Equal(t, 1, spans[1].Blank)
	assert.Equal(t, "f(a, b)", tmpl.Render(Answers{"__X__": "a", "__X__1": "b"}))
}

func TestUnmatchedAndEmptyPlaceholders(t *testing.T) {
	tmpl := ParseTemplate("print(__A__)", blanks("__A__", "__MISSING__", ""))

	assert.Equal(t, []int{1, 2}, tmpl.Unmatched())
	assert.Equal(t, "print(1)", tmpl.Render(Answers{"__A__": "1", "": "boom"}))
}

func TestFilledAndComplete(t *testing.T) {
	tmpl := ParseTemplate("__A__ + __B__", blanks("__A__", "__B__"))

	assert.Equal(t, 0, tmpl.Filled(Answers{}))
	assert.Equal(t, 1, tmpl.Filled(Answers{"__A__": "1", "__B__": "   "}), "whitespace is not an answer")
	assert.False(t, tmpl.Complete(Answers{"__A__": "1"}))
	assert.True(t, tmpl.Complete(Answers{"__A__": "1", "__B__": "2"}))
}

func TestLines(t *testing.T) {
	tmpl := ParseTemplate("def f():\n    return __R__\n", blanks("__R__"))

	lines := tmpl.Lines()
	require.Len(t, lines, 3)
	assert.Equal(t, []Segment{{Text: "def f():", Blank: -1}}, lines[0])
	assert.Equal(t, []Segment{{Text: "    return ", Blank: -1}, {Text: "__R__", Blank: 0}}, lines[1])
	assert.Empty(t, lines[2])
	assert.True(t, lines[1][1].IsBlank())
}

func TestRecover(t *testing.T) {
	tmpl := ParseTemplate("for __V__ in range(__N__):\n    print(__V__)", blanks("__V__", "__N__"))

	t.Run("round trip", func(t *testing.T) {
		answers := Answers{"__V__": "i", "__N__": "10"}
		got, ok := tmpl.Recover(tmpl.Render(answers))
		require.True(t, ok)
		assert.Equal(t, answers, got)
	})

	t.Run("partially answered", func(t *testing.T) {
		got, ok := tmpl.Recover(tmpl.Render(Answers{"__N__": "3"}))
		require.True(t, ok)
		assert.Equal(t, Answers{"__N__": "3"}, got)
	})

	t.Run("answer containing trailing text", func(t *testing.T) {
		answers := Answers{"__V__": "x)", "__N__": "2"}
		got, ok := tmpl.Recover(tmpl.Render(answers))
		require.True(t, ok)
		assert.Equal(t, answers, got)
	})

	t.Run("free edit", func(t *testing.T) {
		_, ok := tmpl.Recover("while True:\n    pass")
		assert.False(t, ok)
	})

	t.Run("inconsistent repeats", func(t *testing.T) {
		_, ok := tmpl.Recover("for i in range(10):\n    print(j)")
		assert.False(t, ok)
	})

	t.Run("answer containing the next separator", func(t *testing.T) {
		pair := ParseTemplate("print(__A__, __B__)", blanks("__A__", "__B__"))
		code := pair.Render(Answers{"__A__": "a, b", "__B__": "c"})
		_, ok := pair.Recover(code)
		assert.False(t, ok, "both a|b, c and a, b|c fit %q", code)

		got, ok := pair.Recover(pair.Render(Answers{"__A__": "a", "__B__": "c"}))
		require.True(t, ok)
		assert.Equal(t, Answers{"__A__": "a", "__B__": "c"}, got)
	})

	t.Run("adjacent blanks", func(t *testing.T) {
		adj := ParseTemplate("__A____B__", blanks("__A__", "__B__"))
		_, ok := adj.Recover("12")
		assert.False(t, ok)
	})
}
