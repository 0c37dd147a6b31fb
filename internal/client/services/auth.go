// Package services contains the application services of the session manager.
// This file defines the authentication service: login (rate limited), admin
// login, registration, the OAuth callback, and logout.
package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/reviewly/authsession/internal/client/credential"
	"github.com/reviewly/authsession/internal/client/ratelimit"
	"github.com/reviewly/authsession/internal/common"
	"github.com/reviewly/authsession/internal/logging"
)

const (
	loginPath      = "/api/auth/login"
	adminLoginPath = "/api/auth/admin-login"
	registerPath   = "/api/auth/register"
)

// API is the slice of the HTTP client the auth flows need.
type API interface {
	Post(ctx context.Context, path string, body, out any) error
}

// CredentialStore persists the pair after a successful authentication.
type CredentialStore interface {
	Save(ctx context.Context, cred credential.Credential) error
}

// SessionState is the in-memory view updated on login/logout.
type SessionState interface {
	Login(tok string, user *credential.User)
	Logout(ctx context.Context)
}

// AuthService drives the platform's authentication flows.
//
// Contract:
//   - Login / AdminLogin: authenticate against the backend, guarded by the
//     failed-attempt limiter; persist the credential and update the session.
//   - Register: create an account; the success path matches Login.
//   - OAuthCallback: consume the provider redirect's query parameters.
//   - Logout: clear credentials and reset the session view.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*credential.User, error)
	AdminLogin(ctx context.Context, name, password string) error
	Register(ctx context.Context, name, email, password string) (*credential.User, error)
	OAuthCallback(ctx context.Context, rawQuery string) (*credential.User, error)
	Logout(ctx context.Context)
}

type authService struct {
	api     API
	store   CredentialStore
	session SessionState
	limiter *ratelimit.Limiter
	log     logging.Logger
}

// NewAuthService constructs an AuthService bound to the given collaborators.
func NewAuthService(api API, store CredentialStore, session SessionState, limiter *ratelimit.Limiter, log logging.Logger) AuthService {
	return &authService{api: api, store: store, session: session, limiter: limiter, log: log}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token string           `json:"token"`
	User  *credential.User `json:"user"`
}

// Login authenticates with the public login endpoint. The limiter is
// consulted before the request is submitted and told the outcome afterwards;
// only a rejection by the server counts as a failed attempt.
func (s *authService) Login(ctx context.Context, email, password string) (*credential.User, error) {
	if d := s.limiter.Check(email); !d.Allowed {
		return nil, fmt.Errorf("%w: try again in %s", common.ErrRateLimited, formatRetryAfter(d.RetryAfter))
	}

	var resp loginResponse
	err := s.api.Post(ctx, loginPath, loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			s.limiter.Record(email, false)
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	s.limiter.Record(email, true)

	if err := s.establish(ctx, resp.Token, resp.User); err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return resp.User, nil
}

type adminLoginRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
}

type adminLoginResponse struct {
	Token string           `json:"token"`
	User  *credential.User `json:"user"`
}

// AdminLogin authenticates with the admin endpoint. It shares the login
// limiter, keyed by the admin name. The endpoint returns no profile, so a
// minimal user is synthesized from the name to keep the stored pair whole.
func (s *authService) AdminLogin(ctx context.Context, name, password string) error {
	if d := s.limiter.Check(name); !d.Allowed {
		return fmt.Errorf("%w: try again in %s", common.ErrRateLimited, formatRetryAfter(d.RetryAfter))
	}

	var resp adminLoginResponse
	err := s.api.Post(ctx, adminLoginPath, adminLoginRequest{Name: name, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, common.ErrUnauthorized) {
			s.limiter.Record(name, false)
		}
		return fmt.Errorf("admin login: %w", err)
	}
	s.limiter.Record(name, true)

	user := resp.User
	if !user.WellFormed() {
		user = &credential.User{ID: "admin:" + name, Name: name, Email: name}
	}
	if err := s.establish(ctx, resp.Token, user); err != nil {
		return fmt.Errorf("admin login: %w", err)
	}
	return nil
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account; on success the returned credential feeds the
// same path as Login.
func (s *authService) Register(ctx context.Context, name, email, password string) (*credential.User, error) {
	var resp loginResponse
	err := s.api.Post(ctx, registerPath, registerRequest{Name: name, Email: email, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}

	if err := s.establish(ctx, resp.Token, resp.User); err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	return resp.User, nil
}

// OAuthCallback consumes the provider redirect: the query carries `token`
// and a URL-encoded JSON `user`. A malformed user stores nothing.
func (s *authService) OAuthCallback(ctx context.Context, rawQuery string) (*credential.User, error) {
	q, err := url.ParseQuery(rawQuery)
	if err != nil {
		return nil, fmt.Errorf("oauth callback: parse query: %w", err)
	}

	tok := q.Get("token")
	var user credential.User
	if raw := q.Get("user"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			return nil, fmt.Errorf("oauth callback: decode user: %w", err)
		}
	}

	if err := s.establish(ctx, tok, &user); err != nil {
		return nil, fmt.Errorf("oauth callback: %w", err)
	}
	return &user, nil
}

// Logout resets the session, which clears both credential channels.
func (s *authService) Logout(ctx context.Context) {
	s.session.Logout(ctx)
}

// establish validates the returned pair, persists it, and flips the session
// view. Persistence is best-effort: with every channel down the session
// still works in memory until the process exits.
func (s *authService) establish(ctx context.Context, tok string, user *credential.User) error {
	if tok == "" || !user.WellFormed() {
		return fmt.Errorf("response missing credential fields")
	}
	if err := s.store.Save(ctx, credential.Credential{Token: tok, User: user}); err != nil {
		s.log.Warn(ctx, "credential could not be persisted", "error", err)
	}
	s.session.Login(tok, user)
	return nil
}

func formatRetryAfter(d time.Duration) string {
	if d < time.Minute {
		return d.Round(time.Second).String()
	}
	return d.Round(time.Minute).String()
}
