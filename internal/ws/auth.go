package ws

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"sync"
)

// SessionState is the restricted part of the persisted state: credentials,
// the pending login nonce, and informational counters.
type SessionState struct {
	Token      string     `json:"token,omitempty"`
	User       *User      `json:"user,omitempty"`
	RateLimit  *RateLimit `json:"ratelimit,omitempty"`
	OAuthState string     `json:"oauthState,omitempty"`
}

// Auth owns the session state and runs the OAuth login flow.
type Auth struct {
	mu        sync.Mutex
	state     SessionState
	gateway   Gateway
	exchanger TokenExchanger
	nonces    NonceSource
	logger    Logger
}

// NewAuth creates an Auth starting from a restored session state.
func NewAuth(state SessionState, gateway Gateway, exchanger TokenExchanger, nonces NonceSource, logger Logger) *Auth {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Auth{
		state:     state,
		gateway:   gateway,
		exchanger: exchanger,
		nonces:    nonces,
		logger:    logger,
	}
}

// Token returns the current bearer token, or "" when logged out.
func (a *Auth) Token() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state.Token
}

// State returns a copy of the session state for persisting.
func (a *Auth) State() SessionState {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := a.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	if s.RateLimit != nil {
		rl := *s.RateLimit
		s.RateLimit = &rl
	}
	return s
}

// BeginLogin starts a login attempt and returns the URL the user must visit.
// Any earlier pending attempt is replaced.
func (a *Auth) BeginLogin() (string, error) {
	nonce, err := a.nonces.Nonce()
	if err != nil {
		return "", fmt.Errorf("generating login state: %w", err)
	}

	a.mu.Lock()
	a.state.OAuthState = nonce
	a.mu.Unlock()

	a.logger.Debug("login started")
	return a.exchanger.AuthCodeURL(nonce), nil
}

// CompleteLogin finishes the attempt started by BeginLogin. The pending nonce
// is consumed whatever the outcome; a state that does not equal it aborts the
// login with *AuthMismatchError and stores nothing.
//
// When the profile fetch fails the token is kept and the error returned.
func (a *Auth) CompleteLogin(ctx context.Context, code, state string) error {
	a.mu.Lock()
	pending := a.state.OAuthState
	a.state.OAuthState = ""
	a.mu.Unlock()

	if pending == "" || subtle.ConstantTimeCompare([]byte(pending), []byte(state)) != 1 {
		a.logger.Warn("login aborted: state mismatch")
		return &AuthMismatchError{}
	}

	token, err := a.exchanger.ExchangeToken(ctx, code, state)
	if err != nil {
		return fmt.Errorf("exchanging authorization code: %w", err)
	}

	a.mu.Lock()
	a.state.Token = token
	a.state.User = nil
	a.mu.Unlock()

	if err := a.RefreshUser(ctx); err != nil {
		return err
	}
	a.logger.Info("logged in", "user", a.State().User.Login)
	return nil
}

// RefreshUser fetches the profile of the token's owner.
func (a *Auth) RefreshUser(ctx context.Context) error {
	if a.Token() == "" {
		return ErrNotAuthenticated
	}

	user, err := a.gateway.GetUser(ctx)
	if err != nil {
		a.checkUnauthorized(err)
		return fmt.Errorf("fetching user profile: %w", err)
	}

	a.mu.Lock()
	a.state.User = user
	a.mu.Unlock()
	return nil
}

// RefreshRateLimit fetches the API quota counters and records them.
func (a *Auth) RefreshRateLimit(ctx context.Context) (RateLimit, error) {
	rl, err := a.gateway.GetRateLimit(ctx)
	if err != nil {
		a.checkUnauthorized(err)
		return RateLimit{}, fmt.Errorf("fetching rate limit: %w", err)
	}

	a.mu.Lock()
	a.state.RateLimit = &rl
	a.mu.Unlock()
	return rl, nil
}

// RecordRateLimit stores quota counters observed as a side effect of other
// requests.
func (a *Auth) RecordRateLimit(rl RateLimit) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.RateLimit = &rl
}

// Logout clears the token and profile.
func (a *Auth) Logout() {
	a.clear()
	a.logger.Info("logged out")
}

// InvalidCredentials clears the token and profile after the remote rejected them.
func (a *Auth) InvalidCredentials() {
	a.clear()
	a.logger.Warn("credentials rejected, token cleared")
}

func (a *Auth) clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.state.Token = ""
	a.state.User = nil
}

func (a *Auth) checkUnauthorized(err error) {
	if errors.Is(err, ErrUnauthorized) {
		a.InvalidCredentials()
	}
}
