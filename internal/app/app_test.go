package app

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codelap/internal/config"
	"codelap/internal/session"
	"codelap/internal/types"
)

// backend is a minimal stand-in for the learning backend.
type backend struct {
	expired atomic.Bool // when set, authenticated calls answer 401
	lastGen atomic.Value
}

func (b *backend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	writeJSON := func(status int, v interface{}) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(v)
	}
	authed := r.Header.Get("Authorization") == "Bearer good-token"

	switch r.URL.Path {
	case "/login":
		var creds types.UserLogin
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "pw" {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
			return
		}
		writeJSON(http.StatusOK, types.Token{AccessToken: "good-token", TokenType: "bearer"})
	case "/users/me":
		if !authed || b.expired.Load() {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
			return
		}
		writeJSON(http.StatusOK, types.User{ID: 3, Username: "ada"})
	case "/search-repo":
		writeJSON(http.StatusOK, types.SearchResponse{
			Query:        "flask",
			SearchType:   "search",
			Repositories: []types.RepositoryInfo{{ID: 11, FullName: "pallets/flask", HTMLURL: "https://github.com/pallets/flask"}},
			TotalCount:   1,
		})
	case "/generate-plan":
		var req types.GeneratePlanRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		b.lastGen.Store(req)
		writeJSON(http.StatusOK, types.GeneratePlanResponse{
			Success: true,
			LearningPlan: &types.LearningPlan{
				Title: "Flask Basics",
				LearningSteps: []types.LearningStep{
					{Step: 1, Title: "Setup", CodingExercises: []types.CodingExercise{{ID: "ex-1", CodeTemplate: "print(__A__)", Blanks: []types.Blank{{Placeholder: "__A__"}}}}},
					{Step: 2, Title: "Read", Completed: true},
				},
			},
		})
	case "/validate-code":
		if b.expired.Load() {
			writeJSON(http.StatusUnauthorized, map[string]string{"detail": "Token expired"})
			return
		}
		var sub types.CodingExerciseSubmission
		_ = json.NewDecoder(r.Body).Decode(&sub)
		writeJSON(http.StatusOK, types.ValidationResult{
			ExerciseID: sub.ExerciseID,
			IsCorrect:  strings.Contains(sub.UserCode, "hello"),
			Hints:      []string{},
		})
	default:
		http.NotFound(w, r)
	}
}

func newTestApp(t *testing.T, nav session.Navigator) (*App, *backend) {
	t.Helper()
	b := &backend{}
	server := httptest.NewServer(b)
	t.Cleanup(server.Close)

	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL
	cfg.Storage.Path = ":memory:"

	a, err := New(cfg, t.TempDir(), nav)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, b
}

func TestLoginApproveAndOpen(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Approve()
	require.ErrorIs(t, err, types.ErrNotAuthenticated)

	_, err = a.Session.Login(ctx, types.UserLogin{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	id, ok := a.UserID()
	require.True(t, ok)
	assert.Equal(t, 3, id)

	_, err = a.Approve()
	assert.True(t, types.IsNotFound(err), "nothing to approve before generating")

	plan, err := a.Generate(ctx, types.RepositoryInfo{ID: 11, FullName: "pallets/flask"})
	require.NoError(t, err)
	assert.Equal(t, "Flask Basics", plan.Title)
	assert.False(t, plan.LearningSteps[1].Completed, "backend completion flags are ignored")

	saved, err := a.Approve()
	require.NoError(t, err)
	require.Len(t, saved, 1)

	require.NoError(t, a.Progress.Detach())
	opened, err := a.Open("Flask Basics")
	require.NoError(t, err)
	assert.Equal(t, "Flask Basics", opened.Title)

	_, err = a.Open("Nope")
	assert.True(t, types.IsNotFound(err))

	left, err := a.RemovePlan("Flask Basics")
	require.NoError(t, err)
	assert.Empty(t, left)
}

func TestGenerateSendsOneIdentifier(t *testing.T) {
	a, b := newTestApp(t, nil)
	ctx := context.Background()

	_, err := a.Generate(ctx, types.RepositoryInfo{ID: 11, FullName: "pallets/flask"})
	require.NoError(t, err)
	req := b.lastGen.Load().(types.GeneratePlanRequest)
	require.NotNil(t, req.RepositoryInfo)
	assert.Equal(t, "pallets/flask", req.RepositoryInfo.FullName)
	assert.Empty(t, req.RepositoryURL)

	_, err = a.GenerateFromURL(ctx, "https://github.com/pallets/flask")
	require.NoError(t, err)
	req = b.lastGen.Load().(types.GeneratePlanRequest)
	assert.Nil(t, req.RepositoryInfo)
	assert.Equal(t, "https://github.com/pallets/flask", req.RepositoryURL)
}

func TestSearchIsRemembered(t *testing.T) {
	a, _ := newTestApp(t, nil)

	_, ok := a.LastSearch()
	assert.False(t, ok)

	_, err := a.Search(context.Background(), "flask", 5)
	require.NoError(t, err)

	last, ok := a.LastSearch()
	require.True(t, ok)
	require.Len(t, last.Repositories, 1)
	assert.Equal(t, "pallets/flask", last.Repositories[0].FullName)
}

func TestRestoreAfterRestart(t *testing.T) {
	b := &backend{}
	server := httptest.NewServer(b)
	t.Cleanup(server.Close)
	ctx := context.Background()

	ws := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.API.BaseURL = server.URL

	first, err := New(cfg, ws, nil)
	require.NoError(t, err)
	assert.Nil(t, first.Restore(ctx))
	_, err = first.Session.Login(ctx, types.UserLogin{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	_, err = first.Generate(ctx, types.RepositoryInfo{FullName: "pallets/flask"})
	require.NoError(t, err)
	require.NoError(t, first.Progress.CompleteStep(2))
	require.NoError(t, first.Close())

	second, err := New(cfg, ws, nil)
	require.NoError(t, err)
	t.Cleanup(func() { second.Close() })

	user := second.Restore(ctx)
	require.NotNil(t, user)
	assert.Equal(t, "ada", user.Username)
	current, ok := second.Progress.Current()
	require.True(t, ok)
	assert.Equal(t, "Flask Basics", current.Title)
	assert.Equal(t, []int{2}, current.CompletedSteps())
}

func TestExpiredSessionRedirects(t *testing.T) {
	var redirects atomic.Int32
	a, b := newTestApp(t, session.NavigatorFunc(func() { redirects.Add(1) }))
	ctx := context.Background()

	_, err := a.Session.Login(ctx, types.UserLogin{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	_, err = a.Generate(ctx, types.RepositoryInfo{FullName: "pallets/flask"})
	require.NoError(t, err)

	b.expired.Store(true)
	s, err := a.StepSession(1)
	require.NoError(t, err)
	_, err = s.Submit(ctx)
	require.ErrorIs(t, err, types.ErrAuthorizationExpired)

	assert.Equal(t, int32(1), redirects.Load())
	assert.False(t, a.Session.IsAuthenticated())
	assert.Empty(t, a.Session.Token())
}

func TestStepSessionCompletesStep(t *testing.T) {
	a, _ := newTestApp(t, nil)
	ctx := context.Background()
	_, err := a.Generate(ctx, types.RepositoryInfo{FullName: "pallets/flask"})
	require.NoError(t, err)

	_, err = a.StepSession(9)
	assert.True(t, types.IsNotFound(err))

	s, err := a.StepSession(1)
	require.NoError(t, err)
	require.NoError(t, s.SetAnswer("__A__", `"hello"`))
	out, err := s.Submit(ctx)
	require.NoError(t, err)
	assert.True(t, out.StepCompleted)
	assert.True(t, a.Progress.IsStepComplete(1))
}

func TestLoginRejected(t *testing.T) {
	a, _ := newTestApp(t, nil)
	_, err := a.Session.Login(context.Background(), types.UserLogin{Username: "ada", Password: "wrong"})
	var authErr *types.AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.False(t, a.Session.IsAuthenticated())
}
