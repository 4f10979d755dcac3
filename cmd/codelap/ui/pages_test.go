package ui

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelap/internal/app"
	"codelap/internal/config"
	"codelap/internal/exercise"
	"codelap/internal/types"
)

func fakeBackend(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/login":
			_ = json.NewEncoder(w).Encode(types.Token{AccessToken: "tok", TokenType: "bearer"})
		case "/users/me":
			if r.Header.Get("Authorization") != "Bearer tok" {
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"detail": "Not authenticated"})
				return
			}
			_ = json.NewEncoder(w).Encode(types.User{ID: 1, Username: "grace"})
		case "/validate-code":
			var sub types.CodingExerciseSubmission
			_ = json.NewDecoder(r.Body).Decode(&sub)
			ok := strings.Contains(sub.UserCode, "hello")
			score := 0.0
			if ok {
				score = 100
			}
			_ = json.NewEncoder(w).Encode(types.ValidationResult{ExerciseID: sub.ExerciseID, IsCorrect: ok, Score: score, Feedback: "checked", Hints: []string{}})
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestApp(t *testing.T) *app.App {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = fakeBackend(t).URL
	cfg.Storage.Path = ":memory:"
	cfg.UI.Theme = "dark"
	a, err := app.New(cfg, t.TempDir(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func testPlan() types.LearningPlan {
	return types.LearningPlan{
		Title: "Go Tour",
		LearningSteps: []types.LearningStep{
			{
				Step:  1,
				Title: "Printing",
				CodingExercises: []types.CodingExercise{{
					ID:           "p-1",
					Title:        "Say hello",
					CodeTemplate: "fmt.Println(__MSG__)\n// __MSG__ again",
					Blanks:       []types.Blank{{Placeholder: "__MSG__", Hint: "a greeting"}},
				}},
			},
			{Step: 2, Title: "Reading", Resources: []string{"https://go.dev/tour"}},
		},
	}
}

func keys(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// runBatch runs cmd and any batched commands, returning the messages that are
// not spinner ticks.
func runBatch(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, runBatch(c)...)
		}
		return out
	}
	if _, ok := msg.(submitDoneMsg); ok {
		return []tea.Msg{msg}
	}
	return nil
}

func TestThemeFor(t *testing.T) {
	assert.True(t, ThemeFor("dark").IsDark)
	assert.False(t, ThemeFor("light").IsDark)
	assert.Equal(t, DarkTheme(), ThemeFor("DARK"))
}

func TestSimpleTableMissingCells(t *testing.T) {
	table := NewSimpleTable("Repos", []string{"Name", "Stars"})
	table.AddRow("pallets/flask")
	table.AddRow("tiangolo/fastapi", "70000")
	out := table.View(DefaultStyles())
	assert.Contains(t, out, "pallets/flask")
	assert.Contains(t, out, "70000")
}

func TestMarkdownBuilders(t *testing.T) {
	plan := testPlan()
	md := PlanMarkdown(plan)
	assert.Contains(t, md, "Go Tour")
	assert.Contains(t, md, "Printing")

	step := StepMarkdown(plan.LearningSteps[0])
	assert.Contains(t, step, "Step 1: Printing")
	assert.Contains(t, step, "`__MSG__` - a greeting")

	ex := plan.LearningSteps[0].CodingExercises[0]
	assert.Contains(t, ExerciseMarkdown(plan.LearningSteps[0], &ex), "### Say hello")
	assert.Contains(t, ExerciseMarkdown(plan.LearningSteps[1], nil), "https://go.dev/tour")

	// The zero renderer passes text through.
	assert.Equal(t, "# hi", Markdown{}.Render("# hi"))
}

func TestBlankEditorPreview(t *testing.T) {
	blanks := []types.Blank{{Placeholder: "__A__", Hint: "first"}, {Placeholder: "__B__"}}
	tmpl := exercise.ParseTemplate("x = __A__ + __B__\nprint(__A__)", blanks)
	e := NewBlankEditor(tmpl, exercise.Answers{"__A__": "1"}, DefaultStyles())

	assert.Equal(t, 2, e.Len())
	preview := e.Preview()
	assert.Contains(t, preview, "1")
	assert.Contains(t, preview, "__B__")
	assert.Contains(t, e.View(), "1/2 blanks filled")
	assert.NotContains(t, e.View(), "hint: first")
	assert.Contains(t, e.ToggleHints().View(), "hint: first")

	e.Focus()
	e, _ = e.Move(-1)
	placeholder, _ := e.Focused()
	assert.Equal(t, "__B__", placeholder, "focus wraps backwards")

	e, _ = e.Update(keys("2"))
	assert.Equal(t, exercise.Answers{"__A__": "1", "__B__": "2"}, e.Answers())
	assert.Equal(t, "x = 1 + 2\nprint(1)", tmpl.Render(e.Answers()))
}

func TestModelRouting(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	m := NewModel(ctx, a)

	next, _ := m.Update(restoredMsg{})
	m = next.(Model)
	assert.Equal(t, PageLogin, m.CurrentPage())

	user, err := a.Session.Login(ctx, types.UserLogin{Username: "grace", Password: "x"})
	require.NoError(t, err)
	next, _ = m.Update(loggedInMsg{user: user})
	m = next.(Model)
	assert.Equal(t, PagePlans, m.CurrentPage(), "no plan attached yet")

	a.Progress.AttachPlan(testPlan())
	next, _ = m.Update(openRoadmapMsg{})
	m = next.(Model)
	assert.Equal(t, PageRoadmap, m.CurrentPage())
	assert.Contains(t, m.View(), "Go Tour")

	next, _ = m.Update(openStepMsg{step: 9})
	m = next.(Model)
	assert.Equal(t, PageRoadmap, m.CurrentPage(), "missing step stays on the roadmap")
	assert.Contains(t, m.View(), "step 9")

	next, _ = m.Update(openStepMsg{step: 1})
	m = next.(Model)
	assert.Equal(t, PageStep, m.CurrentPage())

	next, _ = m.Update(RedirectLoginMsg{})
	m = next.(Model)
	assert.Equal(t, PageLogin, m.CurrentPage())
	assert.Contains(t, m.View(), "session expired")
}

func TestStepPageSubmitCompletesStep(t *testing.T) {
	a := newTestApp(t)
	a.Progress.AttachPlan(testPlan())

	p := NewStepPage(context.Background(), a, DefaultStyles(), Markdown{}).SetSize(100, 40)
	p, err := p.Open(1)
	require.NoError(t, err)
	assert.False(t, p.freeform)

	p, _ = p.Update(keys("hello"))
	draft, ok := a.Progress.LoadDraft("p-1")
	require.True(t, ok, "answers are autosaved")
	assert.Equal(t, "fmt.Println(hello)\n// hello again", draft)

	p, cmd := p.submit()
	assert.True(t, p.pending)
	assert.Contains(t, p.View(), "Validating")

	again, _ := p.submit()
	assert.Equal(t, "A submission is already in progress", again.info)

	msgs := runBatch(cmd)
	require.Len(t, msgs, 1)
	p, _ = p.Update(msgs[0])
	assert.False(t, p.pending)
	assert.True(t, a.Progress.IsStepComplete(1))
	assert.Contains(t, p.info, "Step 1 complete")
	assert.Contains(t, p.View(), "✓ Correct")
}

func TestStepPageDropsStaleResult(t *testing.T) {
	a := newTestApp(t)
	a.Progress.AttachPlan(testPlan())

	p, err := NewStepPage(context.Background(), a, DefaultStyles(), Markdown{}).Open(1)
	require.NoError(t, err)
	p.pending = true

	other, err := a.StepSession(1)
	require.NoError(t, err)
	p, _ = p.Update(submitDoneMsg{sess: other, err: types.ErrSuperseded})
	assert.True(t, p.pending, "result for another session is ignored")
}

func TestStepPageWithoutExercises(t *testing.T) {
	a := newTestApp(t)
	a.Progress.AttachPlan(testPlan())

	p, err := NewStepPage(context.Background(), a, DefaultStyles(), Markdown{}).Open(2)
	require.NoError(t, err)
	assert.Contains(t, p.View(), "no coding exercises")

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.True(t, a.Progress.IsStepComplete(2))
	assert.Contains(t, p.info, "Step 2 complete")
}

func TestRoadmapPageKeys(t *testing.T) {
	a := newTestApp(t)
	a.Progress.AttachPlan(testPlan())

	p := NewRoadmapPage(a, DefaultStyles()).SetSize(100, 40).Refresh()
	require.NoError(t, a.Progress.CompleteStep(2))
	p = p.Refresh()
	assert.Contains(t, p.View(), "1/2 steps")

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.Equal(t, openStepMsg{step: 1}, cmd())

	p, _ = p.Update(keys("R"))
	assert.True(t, p.confirming)
	p, _ = p.Update(keys("y"))
	assert.False(t, a.Progress.IsStepComplete(2))
	assert.Equal(t, "Progress reset", p.info)

	p, _ = p.Update(keys("a"))
	assert.ErrorIs(t, p.err, types.ErrNotAuthenticated)
}

func TestLoginPageRequiresCredentials(t *testing.T) {
	a := newTestApp(t)
	p := NewLoginPage(context.Background(), a, DefaultStyles())
	p.Focus()

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Equal(t, fieldPassword, p.focus, "enter moves to the password field")

	p, cmd := p.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.Contains(t, p.View(), "username and password are required")

	p, _ = p.Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	assert.True(t, p.registering)
	assert.Contains(t, p.View(), "Create an account")
}
