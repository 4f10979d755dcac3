package apiclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"codelap/internal/types"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{BaseURL: server.URL + "/", Timeout: 5 * time.Second, HTTPClient: server.Client()})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestLoginSendsCredentialsWithoutToken(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, PathLogin, r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.Header.Get(RequestIDHeader))

		var creds types.UserLogin
		require.NoError(t, json.NewDecoder(r.Body).Decode(&creds))
		assert.Equal(t, types.UserLogin{Username: "ada", Password: "pw"}, creds)

		writeJSON(w, http.StatusOK, types.Token{AccessToken: "tok", TokenType: "bearer"})
	})

	tok, err := client.Login(context.Background(), types.UserLogin{Username: "ada", Password: "pw"})
	require.NoError(t, err)
	assert.Equal(t, "tok", tok.AccessToken)
}

func TestBearerTokenAttached(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, types.User{ID: 7, Username: "ada"})
	})
	client.SetTokenSource(func() string { return "secret" })

	user, err := client.CurrentUser(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, user.ID)
}

func TestLogin401IsAuthenticationError(t *testing.T) {
	var hooked atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Incorrect username or password"})
	})
	client.OnUnauthorized(func() { hooked.Add(1) })

	_, err := client.Login(context.Background(), types.UserLogin{Username: "ada", Password: "bad"})
	var authErr *types.AuthenticationError
	require.ErrorAs(t, err, &authErr)
	assert.Equal(t, "Incorrect username or password", authErr.Message)
	assert.Equal(t, int32(0), hooked.Load(), "bad credentials must not force a logout")
}

func TestAuthenticated401TriggersHook(t *testing.T) {
	paths := []string{PathCurrentUser, PathSearchRepo, PathGeneratePlan, PathValidateCode, PathHealth}
	var hooked atomic.Int32
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Could not validate credentials"})
	})
	client.OnUnauthorized(func() { hooked.Add(1) })
	ctx := context.Background()

	calls := map[string]func() error{
		PathCurrentUser: func() error { _, err := client.CurrentUser(ctx); return err },
		PathSearchRepo: func() error {
			_, err := client.SearchRepositories(ctx, types.SearchRequest{Query: "fastapi"})
			return err
		},
		PathGeneratePlan: func() error {
			_, err := client.GeneratePlan(ctx, types.GeneratePlanRequest{RepositoryID: 1})
			return err
		},
		PathValidateCode: func() error {
			_, err := client.ValidateCode(ctx, types.CodingExerciseSubmission{ExerciseID: "e"})
			return err
		},
		PathHealth: func() error { _, err := client.Health(ctx); return err },
	}
	for i, p := range paths {
		err := calls[p]()
		require.Error(t, err, p)
		assert.True(t, errors.Is(err, types.ErrAuthorizationExpired), p)
		assert.Equal(t, http.StatusUnauthorized, types.StatusOf(err), p)
		assert.Equal(t, int32(i+1), hooked.Load(), p)
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		check   func(t *testing.T, err error)
		message string
	}{
		{
			name:   "registration conflict",
			status: http.StatusBadRequest,
			body:   `{"detail":"Username already registered"}`,
			check: func(t *testing.T, err error) {
				var ve *types.ValidationError
				require.ErrorAs(t, err, &ve)
			},
			message: "Username already registered",
		},
		{
			name:   "pydantic detail list",
			status: http.StatusUnprocessableEntity,
			body:   `{"detail":[{"loc":["body","username"],"msg":"field required","type":"value_error.missing"}]}`,
			check: func(t *testing.T, err error) {
				var ve *types.ValidationError
				require.ErrorAs(t, err, &ve)
			},
			message: "username: field required",
		},
		{
			name:   "server error",
			status: http.StatusInternalServerError,
			body:   `{"detail":"GitHub API error: boom"}`,
			check: func(t *testing.T, err error) {
				var rf *types.RequestFailure
				require.ErrorAs(t, err, &rf)
				assert.Equal(t, http.StatusInternalServerError, rf.Status)
			},
			message: "GitHub API error: boom",
		},
		{
			name:   "plain text body",
			status: http.StatusBadGateway,
			body:   `upstream down`,
			check: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusBadGateway, types.StatusOf(err))
			},
			message: "upstream down",
		},
		{
			name:   "empty body",
			status: http.StatusServiceUnavailable,
			check: func(t *testing.T, err error) {
				assert.Equal(t, http.StatusServiceUnavailable, types.StatusOf(err))
			},
			message: "Service Unavailable",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			})
			_, err := client.Register(context.Background(), types.UserCreate{Username: "ada", Password: "pw"})
			require.Error(t, err)
			tt.check(t, err)
			assert.Contains(t, err.Error(), tt.message)
		})
	}
}

func TestBadRequestOutsideRegisterIsRequestFailure(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid GitHub URL"})
	})

	_, err := client.SearchRepositories(context.Background(), types.SearchRequest{Query: "https://github.com/nope"})
	var rf *types.RequestFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusBadRequest, rf.Status)
	assert.Equal(t, "Invalid GitHub URL", rf.Message)

	var ve *types.ValidationError
	assert.False(t, errors.As(err, &ve))

	_, err = client.GeneratePlan(context.Background(), types.GeneratePlanRequest{RepositoryURL: "x"})
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, http.StatusBadRequest, types.StatusOf(err))
}

func TestGeneratePlanUnsuccessful(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, types.GeneratePlanResponse{Success: false, ErrorMessage: "LLM quota exhausted"})
	})

	resp, err := client.GeneratePlan(context.Background(), types.GeneratePlanRequest{RepositoryURL: "https://github.com/a/b"})
	var rf *types.RequestFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "LLM quota exhausted", rf.Message)
	require.NotNil(t, resp)
	assert.False(t, resp.Success)
}

func TestGeneratePlanAndSearch(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case PathSearchRepo:
			var req types.SearchRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "fastapi", req.Query)
			writeJSON(w, http.StatusOK, types.SearchResponse{
				Query: req.Query, SearchType: "search", TotalCount: 1,
				Repositories: []types.RepositoryInfo{{ID: 42, FullName: "tiangolo/fastapi", Stars: 70000}},
			})
		case PathGeneratePlan:
			var req types.GeneratePlanRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			require.NotNil(t, req.RepositoryInfo)
			assert.Equal(t, 42, req.RepositoryInfo.ID)
			writeJSON(w, http.StatusOK, types.GeneratePlanResponse{
				Success:      true,
				LearningPlan: &types.LearningPlan{Title: "FastAPI Deep Dive", LearningSteps: []types.LearningStep{{Step: 1}}},
			})
		default:
			http.NotFound(w, r)
		}
	})
	ctx := context.Background()

	sr, err := client.SearchRepositories(ctx, types.SearchRequest{Query: "fastapi", Limit: 5})
	require.NoError(t, err)
	require.Len(t, sr.Repositories, 1)

	repo := sr.Repositories[0]
	gp, err := client.GeneratePlan(ctx, types.GeneratePlanRequest{RepositoryInfo: &repo})
	require.NoError(t, err)
	assert.Equal(t, "FastAPI Deep Dive", gp.LearningPlan.Title)
}

func TestTransportFailureHasZeroStatus(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	client := New(Config{BaseURL: url, Timeout: time.Second})
	_, err := client.Health(context.Background())
	var rf *types.RequestFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, 0, rf.Status)
}

func TestContextDeadlineRespected(t *testing.T) {
	release := make(chan struct{})
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := client.Health(ctx)
	var rf *types.RequestFailure
	require.ErrorAs(t, err, &rf)
	assert.Equal(t, "request timed out", rf.Message)
}

func TestMalformedSuccessBody(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("{not json"))
	})
	_, err := client.Health(context.Background())
	assert.ErrorContains(t, err, "failed to parse response")
}
