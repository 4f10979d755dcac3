// Package app wires the stores and the backend client together.
// The CLI and the TUI both start from New so they share one wiring.
package app

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"codelap/internal/apiclient"
	"codelap/internal/config"
	"codelap/internal/exercise"
	"codelap/internal/logging"
	"codelap/internal/plans"
	"codelap/internal/progress"
	"codelap/internal/session"
	"codelap/internal/storage"
	"codelap/internal/types"
)

// App is one running client instance.
type App struct {
	Config    *config.Config
	Workspace string
	KV        *storage.SQLite
	API       *apiclient.Client
	Session   *session.Store
	Progress  *progress.Store
	Plans     *plans.Store
}

// New opens local storage and wires the client to the session: the client
// reads the bearer token from the session, and any 401 on an authenticated
// call expires the session and redirects through nav. nav may be nil.
func New(cfg *config.Config, workspace string, nav session.Navigator) (*App, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if workspace == "" {
		workspace, _ = os.Getwd()
	}
	timer := logging.StartTimer(logging.CategoryBoot, "app.New")
	defer timer.Stop()

	dbPath := config.ResolvePath(workspace, cfg.Storage.Path)
	kv, err := storage.Open(cfg.Storage.Driver, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local storage: %w", err)
	}

	api := apiclient.New(apiclient.Config{BaseURL: cfg.BaseURL(), Timeout: cfg.GetAPITimeout()})
	sess := session.New(kv, api, nav)
	api.SetTokenSource(sess.Token)
	api.OnUnauthorized(sess.Expire)

	a := &App{
		Config:    cfg,
		Workspace: workspace,
		KV:        kv,
		API:       api,
		Session:   sess,
		Plans:     plans.New(kv),
	}
	a.Progress = progress.New(kv, progress.Keys{Scoped: cfg.Progress.ScopeKeys, UserID: a.UserID})

	logging.Boot("App ready: api=%s storage=%s (%s)", api.BaseURL(), dbPath, kv.Driver())
	return a, nil
}

// Close releases local storage.
func (a *App) Close() error {
	return a.KV.Close()
}

// Restore rebuilds the session from the persisted token and reattaches the
// last current plan. Both are best effort.
func (a *App) Restore(ctx context.Context) *types.User {
	user := a.Session.RestoreSession(ctx)
	if _, ok := a.Progress.RestoreCurrent(); ok {
		logging.Boot("Reattached current plan")
	}
	return user
}

// UserID returns the logged-in user's id.
func (a *App) UserID() (int, bool) {
	if u := a.Session.User(); u != nil {
		return u.ID, true
	}
	return 0, false
}

func (a *App) requireUser() (int, error) {
	id, ok := a.UserID()
	if !ok {
		return 0, types.ErrNotAuthenticated
	}
	return id, nil
}

// Search queries the backend and remembers the results so a later call can
// refer to a repository by its position.
func (a *App) Search(ctx context.Context, query string, limit int) (*types.SearchResponse, error) {
	resp, err := a.API.SearchRepositories(ctx, types.SearchRequest{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	data, err := json.Marshal(resp)
	if err == nil {
		err = a.KV.Set(storage.KeyLastSearch, string(data))
	}
	if err != nil {
		logging.Get(logging.CategoryStorage).Warn("Failed to remember search results: %v", err)
	}
	return resp, nil
}

// LastSearch returns the remembered results of the previous search.
func (a *App) LastSearch() (*types.SearchResponse, bool) {
	raw, found, err := a.KV.Get(storage.KeyLastSearch)
	if err != nil || !found {
		return nil, false
	}
	var resp types.SearchResponse
	if err := json.Unmarshal([]byte(raw), &resp); err != nil {
		logging.StorageError("Discarding malformed search results: %v", err)
		return nil, false
	}
	return &resp, true
}

// Generate asks the backend for a learning plan for repo and attaches the
// result as the current plan.
func (a *App) Generate(ctx context.Context, repo types.RepositoryInfo) (types.LearningPlan, error) {
	return a.generate(ctx, repo.FullName, types.GeneratePlanRequest{RepositoryInfo: &repo})
}

// GenerateFromURL is Generate for a repository the backend has not returned
// from a search.
func (a *App) GenerateFromURL(ctx context.Context, url string) (types.LearningPlan, error) {
	return a.generate(ctx, url, types.GeneratePlanRequest{RepositoryURL: url})
}

func (a *App) generate(ctx context.Context, label string, req types.GeneratePlanRequest) (types.LearningPlan, error) {
	timer := logging.StartTimer(logging.CategoryPlans, "generate "+label)
	defer timer.StopWithThreshold(30 * time.Second)

	resp, err := a.API.GeneratePlan(ctx, req)
	if err != nil {
		return types.LearningPlan{}, err
	}
	if resp.LearningPlan == nil {
		return types.LearningPlan{}, &types.RequestFailure{Status: 200, Message: "response carried no learning plan"}
	}
	plan := a.Progress.AttachPlan(*resp.LearningPlan)
	logging.Plans("Generated plan %q with %d steps", plan.Title, len(plan.LearningSteps))
	return plan, nil
}

// Approve saves the current plan for the logged-in user.
func (a *App) Approve() ([]types.LearningPlan, error) {
	id, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	current, ok := a.Progress.Current()
	if !ok {
		return nil, &types.NotFoundError{Kind: "current plan"}
	}
	return a.Plans.Save(id, current)
}

// SavedPlans lists the logged-in user's saved plans.
func (a *App) SavedPlans() ([]types.LearningPlan, error) {
	id, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	return a.Plans.List(id), nil
}

// FindPlan returns a saved plan by title.
func (a *App) FindPlan(title string) (types.LearningPlan, error) {
	id, err := a.requireUser()
	if err != nil {
		return types.LearningPlan{}, err
	}
	return a.Plans.Find(id, title)
}

// Open attaches a saved plan as the current plan.
func (a *App) Open(title string) (types.LearningPlan, error) {
	p, err := a.FindPlan(title)
	if err != nil {
		return types.LearningPlan{}, err
	}
	return a.Progress.AttachPlan(p), nil
}

// RemovePlan deletes a saved plan.
func (a *App) RemovePlan(title string) ([]types.LearningPlan, error) {
	id, err := a.requireUser()
	if err != nil {
		return nil, err
	}
	return a.Plans.Remove(id, title)
}

// StepSession opens an exercise session for step n of the current plan.
func (a *App) StepSession(n int) (*exercise.Session, error) {
	step, err := a.Progress.Step(n)
	if err != nil {
		return nil, err
	}
	return exercise.NewSession(step, a.API, a.Progress), nil
}

// Logout ends the session. The current plan stays attached.
func (a *App) Logout() error {
	return a.Session.Logout()
}
