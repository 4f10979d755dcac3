// Package session holds the authenticated identity. The bearer token and a
// cached copy of the user profile live in the key/value store so a session
// survives restarts; the in-memory user is the source of IsAuthenticated.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"codelap/internal/logging"
	"codelap/internal/storage"
	"codelap/internal/types"
)

// AuthAPI is the subset of the backend client the session needs.
type AuthAPI interface {
	Login(ctx context.Context, creds types.UserLogin) (*types.Token, error)
	Register(ctx context.Context, u types.UserCreate) (*types.User, error)
	CurrentUser(ctx context.Context) (*types.User, error)
}

// Navigator sends the user to the login entry point.
type Navigator interface {
	RedirectToLogin()
}

// NavigatorFunc adapts a function to Navigator.
type NavigatorFunc func()

// RedirectToLogin calls f.
func (f NavigatorFunc) RedirectToLogin() { f() }

// Claims are the unverified JWT claims of the held token.
type Claims struct {
	Subject   string
	ExpiresAt time.Time // zero when the token carries no exp
}

// Expired reports whether the claims carry an exp at or before now.
func (c Claims) Expired(now time.Time) bool {
	return !c.ExpiresAt.IsZero() && !now.Before(c.ExpiresAt)
}

// Store is the session store.
type Store struct {
	kv  storage.KV
	api AuthAPI

	mu   sync.RWMutex
	nav  Navigator
	user *types.User
	now  func() time.Time
}

// New creates a session store. nav may be nil and set later with SetNavigator.
func New(kv storage.KV, api AuthAPI, nav Navigator) *Store {
	return &Store{kv: kv, api: api, nav: nav, now: time.Now}
}

// SetNavigator replaces the redirect target, e.g. when the TUI starts.
func (s *Store) SetNavigator(nav Navigator) {
	s.mu.Lock()
	s.nav = nav
	s.mu.Unlock()
}

// Login exchanges credentials for a token, persists it and loads the user.
// Backend rejections are returned unmodified. If the profile cannot be
// fetched after a successful login the token is discarded.
func (s *Store) Login(ctx context.Context, creds types.UserLogin) (*types.User, error) {
	logging.Session("Login attempt for %s", creds.Username)

	tok, err := s.api.Login(ctx, creds)
	if err != nil {
		logging.SessionWarn("Login rejected for %s: %v", creds.Username, err)
		return nil, err
	}
	if err := s.kv.Set(storage.KeyToken, tok.AccessToken); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		logging.SessionWarn("Profile fetch after login failed, discarding token: %v", err)
		s.clear()
		return nil, err
	}

	s.setUser(user)
	logging.Session("Logged in as %s (id=%d)", user.Username, user.ID)
	return cloneUser(user), nil
}

// Register creates an account. It does not establish a session.
func (s *Store) Register(ctx context.Context, u types.UserCreate) (*types.User, error) {
	logging.Session("Register attempt for %s", u.Username)
	user, err := s.api.Register(ctx, u)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Logout clears the persisted token and cached profile. It is idempotent
// and makes no network call.
func (s *Store) Logout() error {
	logging.Session("Logout")
	return s.clear()
}

// Expire is the forced-logout path for a rejected session: it clears the
// session and redirects to login.
func (s *Store) Expire() {
	logging.SessionWarn("Session expired, redirecting to login")
	if err := s.clear(); err != nil {
		logging.SessionWarn("Failed to clear expired session: %v", err)
	}

	s.mu.RLock()
	nav := s.nav
	s.mu.RUnlock()
	if nav != nil {
		nav.RedirectToLogin()
	}
}

// RestoreSession rebuilds the session from a persisted token. It returns nil
// when there is no usable token; it never fails.
func (s *Store) RestoreSession(ctx context.Context) *types.User {
	tok := s.Token()
	if tok == "" {
		if _, found, _ := s.kv.Get(storage.KeyUser); found {
			s.clear()
		}
		return nil
	}

	if claims, err := parseClaims(tok); err == nil && claims.Expired(s.now()) {
		logging.Session("Persisted token expired at %s, discarding", claims.ExpiresAt.Format(time.RFC3339))
		s.clear()
		return nil
	}

	user, err := s.api.CurrentUser(ctx)
	if err != nil {
		logging.SessionWarn("Session restore failed, discarding token: %v", err)
		s.clear()
		return nil
	}

	s.setUser(user)
	logging.Session("Restored session for %s", user.Username)
	return cloneUser(user)
}

// IsAuthenticated is true iff a user is held.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// User returns a copy of the held user, or nil.
func (s *Store) User() *types.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneUser(s.user)
}

// CachedUser returns the profile persisted by the last login without a
// network call. It is informational only and does not authenticate.
func (s *Store) CachedUser() *types.User {
	raw, found, err := s.kv.Get(storage.KeyUser)
	if err != nil || !found {
		return nil
	}
	var u types.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		logging.SessionWarn("Cached user is malformed: %v", err)
		return nil
	}
	return &u
}

// Token returns the persisted bearer token, or "".
func (s *Store) Token() string {
	tok, found, err := s.kv.Get(storage.KeyToken)
	if err != nil {
		logging.SessionWarn("Failed to read token: %v", err)
		return ""
	}
	if !found {
		return ""
	}
	return tok
}

// Claims returns the unverified claims of the held token.
func (s *Store) Claims() (Claims, error) {
	tok := s.Token()
	if tok == "" {
		return Claims{}, errors.New("no token")
	}
	return parseClaims(tok)
}

func parseClaims(tok string) (Claims, error) {
	var rc jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok, &rc); err != nil {
		return Claims{}, fmt.Errorf("token is not a JWT: %w", err)
	}
	c := Claims{Subject: rc.Subject}
	if rc.ExpiresAt != nil {
		c.ExpiresAt = rc.ExpiresAt.Time
	}
	return c, nil
}

func (s *Store) setUser(u *types.User) {
	s.mu.Lock()
	s.user = cloneUser(u)
	s.mu.Unlock()

	data, err := json.Marshal(u)
	if err != nil {
		return
	}
	if err := s.kv.Set(storage.KeyUser, string(data)); err != nil {
		logging.SessionWarn("Failed to cache user profile: %v", err)
	}
}

func (s *Store) clear() error {
	s.mu.Lock()
	s.user = nil
	s.mu.Unlock()

	return errors.Join(s.kv.Delete(storage.KeyToken), s.kv.Delete(storage.KeyUser))
}

func cloneUser(u *types.User) *types.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.UpdatedAt != nil {
		t := *u.UpdatedAt
		c.UpdatedAt = &t
	}
	return &c
}
