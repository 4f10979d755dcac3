// Package apiclient maps typed requests to the learning backend's REST
// endpoints. It holds no session state of its own: the bearer token is read
// from a TokenSource on every request, and authorization rejections are
// reported to an UnauthorizedHandler before the error reaches the caller.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"codelap/internal/logging"
	"codelap/internal/types"
)

// Endpoint paths.
const (
	PathLogin        = "/login"
	PathRegister     = "/register"
	PathCurrentUser  = "/users/me"
	PathSearchRepo   = "/search-repo"
	PathGeneratePlan = "/generate-plan"
	PathValidateCode = "/validate-code"
	PathHealth       = "/health"
)

// RequestIDHeader carries the per-call correlation id.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout applies when the caller's context has no deadline.
const DefaultTimeout = 60 * time.Second

// TokenSource yields the current bearer token, or "" when there is none.
type TokenSource func() string

// UnauthorizedHandler is invoked once per 401 on an authenticated endpoint.
type UnauthorizedHandler func()

// Client talks to the backend over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration

	mu             sync.RWMutex
	tokens         TokenSource
	onUnauthorized UnauthorizedHandler
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client // optional
}

// New creates a client for the backend at cfg.BaseURL.
func New(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		timeout:    timeout,
	}
}

// BaseURL returns the backend root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// SetTokenSource installs the bearer token provider.
func (c *Client) SetTokenSource(ts TokenSource) {
	c.mu.Lock()
	c.tokens = ts
	c.mu.Unlock()
}

// OnUnauthorized installs the forced-logout hook.
func (c *Client) OnUnauthorized(h UnauthorizedHandler) {
	c.mu.Lock()
	c.onUnauthorized = h
	c.mu.Unlock()
}

// Login exchanges credentials for a token. A 401 is an AuthenticationError
// and does not trigger the unauthorized hook.
func (c *Client) Login(ctx context.Context, creds types.UserLogin) (*types.Token, error) {
	var tok types.Token
	if err := c.do(ctx, http.MethodPost, PathLogin, creds, &tok); err != nil {
		return nil, err
	}
	if tok.AccessToken == "" {
		return nil, &types.RequestFailure{Status: http.StatusOK, Message: "login response carried no access token"}
	}
	return &tok, nil
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, u types.UserCreate) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, http.MethodPost, PathRegister, u, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// CurrentUser fetches the profile for the bearer token.
func (c *Client) CurrentUser(ctx context.Context) (*types.User, error) {
	var user types.User
	if err := c.do(ctx, http.MethodGet, PathCurrentUser, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// SearchRepositories runs a repository search or resolves a GitHub URL.
func (c *Client) SearchRepositories(ctx context.Context, req types.SearchRequest) (*types.SearchResponse, error) {
	var resp types.SearchResponse
	if err := c.do(ctx, http.MethodPost, PathSearchRepo, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GeneratePlan asks the backend for a learning plan. A success=false answer
// is returned as a RequestFailure carrying the backend's error message.
func (c *Client) GeneratePlan(ctx context.Context, req types.GeneratePlanRequest) (*types.GeneratePlanResponse, error) {
	var resp types.GeneratePlanResponse
	if err := c.do(ctx, http.MethodPost, PathGeneratePlan, req, &resp); err != nil {
		return nil, err
	}
	if !resp.Success || resp.LearningPlan == nil {
		msg := resp.ErrorMessage
		if msg == "" {
			msg = "plan generation failed"
		}
		return &resp, &types.RequestFailure{Status: http.StatusOK, Message: msg}
	}
	return &resp, nil
}

// ValidateCode submits exercise code for checking.
func (c *Client) ValidateCode(ctx context.Context, sub types.CodingExerciseSubmission) (*types.ValidationResult, error) {
	var res types.ValidationResult
	if err := c.do(ctx, http.MethodPost, PathValidateCode, sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// Health checks backend liveness.
func (c *Client) Health(ctx context.Context) (*types.HealthStatus, error) {
	var hs types.HealthStatus
	if err := c.do(ctx, http.MethodGet, PathHealth, nil, &hs); err != nil {
		return nil, err
	}
	return &hs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	// Auto-apply timeout if context has no deadline
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	reqID := uuid.NewString()
	log := logging.WithRequestID(logging.CategoryAPI, reqID)
	start := time.Now()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(RequestIDHeader, reqID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	tokens, onUnauthorized := c.tokens, c.onUnauthorized
	c.mu.RUnlock()
	if tokens != nil {
		if tok := tokens(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Warn("%s %s failed after %v: %v", method, path, time.Since(start), err)
		return &types.RequestFailure{Message: transportMessage(err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Warn("%s %s: failed to read response: %v", method, path, err)
		return &types.RequestFailure{Status: resp.StatusCode, Message: fmt.Sprintf("failed to read response: %v", err)}
	}
	log.Info("%s %s -> %d (%v)", method, path, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(resp.StatusCode, data)
		return classify(resp.StatusCode, path, msg, onUnauthorized)
	}

	if out == nil || len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		log.Warn("%s %s: undecodable body: %v", method, path, err)
		return &types.RequestFailure{Status: resp.StatusCode, Message: fmt.Sprintf("failed to parse response: %v", err)}
	}
	return nil
}

func classify(status int, path, msg string, onUnauthorized UnauthorizedHandler) error {
	switch {
	case status == http.StatusUnauthorized && path == PathLogin:
		return &types.AuthenticationError{Message: msg}
	case status == http.StatusUnauthorized:
		logging.APIWarn("%s rejected the session; forcing logout", path)
		if onUnauthorized != nil {
			onUnauthorized()
		}
		return fmt.Errorf("%w: %w", types.ErrAuthorizationExpired, &types.RequestFailure{Status: status, Message: msg})
	case path == PathRegister && (status == http.StatusBadRequest || status == http.StatusConflict || status == http.StatusUnprocessableEntity):
		return &types.ValidationError{Status: status, Message: msg}
	default:
		return &types.RequestFailure{Status: status, Message: msg}
	}
}

// errorMessage flattens a FastAPI error body. detail is either a string or a
// list of {loc, msg, type} objects.
func errorMessage(status int, body []byte) string {
	var envelope struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil && s != "" {
			return s
		}
		var items []struct {
			Loc []interface{} `json:"loc"`
			Msg string        `json:"msg"`
		}
		if json.Unmarshal(envelope.Detail, &items) == nil && len(items) > 0 {
			parts := make([]string, 0, len(items))
			for _, it := range items {
				if len(it.Loc) > 0 {
					parts = append(parts, fmt.Sprintf("%v: %s", it.Loc[len(it.Loc)-1], it.Msg))
				} else {
					parts = append(parts, it.Msg)
				}
			}
			return strings.Join(parts, "; ")
		}
	}
	if text := strings.TrimSpace(string(body)); text != "" && len(text) < 512 {
		return text
	}
	return http.StatusText(status)
}

func transportMessage(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "request timed out"
	case errors.Is(err, context.Canceled):
		return "request canceled"
	default:
		return err.Error()
	}
}
