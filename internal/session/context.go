package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"courseattend/internal/apiclient"
	"courseattend/internal/logger"
	"courseattend/internal/metrics"
)

// ErrNoToken is returned by Login when the backend answered without a token.
var ErrNoToken = errors.New("session: login response carried no token")

// Context is the explicit per-visitor session handed to the API client and
// page models. Login sets it, Logout and Clear tear it down; both replace
// the whole state at once.
type Context struct {
	mu    sync.RWMutex
	id    string
	store Store
	ttl   time.Duration
	cur   *Session
}

// New creates an empty context under a fresh id.
func New(store Store, ttl time.Duration) *Context {
	return &Context{id: uuid.NewString(), store: store, ttl: ttl}
}

// Resume loads the context stored under id. A missing or expired session
// yields an empty context that keeps the id.
func Resume(ctx context.Context, store Store, id string, ttl time.Duration) (*Context, error) {
	c := &Context{id: id, store: store, ttl: ttl}
	s, err := store.Get(ctx, id)
	switch {
	case errors.Is(err, ErrNotFound):
		return c, nil
	case err != nil:
		return nil, err
	}
	c.cur = &s
	return c, nil
}

// ID is the console session id.
func (c *Context) ID() string { return c.id }

// Login stores the token and profile from a successful login.
func (c *Context) Login(ctx context.Context, res *apiclient.LoginResult) error {
	if res == nil || res.Token == "" {
		return ErrNoToken
	}
	s := Session{Token: res.Token, User: res.User}
	ttl := c.tokenTTL(res.Token)
	if err := c.store.Put(ctx, c.id, s, ttl); err != nil {
		return err
	}
	c.mu.Lock()
	c.cur = &s
	c.mu.Unlock()
	metrics.SessionEvents.WithLabelValues("login").Inc()
	return nil
}

// Logout clears the session.
func (c *Context) Logout(ctx context.Context) error {
	c.mu.Lock()
	c.cur = nil
	c.mu.Unlock()
	metrics.SessionEvents.WithLabelValues("logout").Inc()
	return c.store.Delete(ctx, c.id)
}

// Clear drops the session after the backend rejected its token.
func (c *Context) Clear() {
	c.mu.Lock()
	had := c.cur != nil
	c.cur = nil
	c.mu.Unlock()
	if !had {
		return
	}
	metrics.SessionEvents.WithLabelValues("unauthorized").Inc()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.store.Delete(ctx, c.id); err != nil {
		logger.LogError("session clear failed", err, "session_id", c.id)
	}
}

// Token returns the bearer token, or "" when logged out.
func (c *Context) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return ""
	}
	return c.cur.Token
}

// User returns the logged-in profile.
func (c *Context) User() (apiclient.User, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.cur == nil {
		return apiclient.User{}, false
	}
	return c.cur.User, true
}

// Authenticated reports whether a token is held.
func (c *Context) Authenticated() bool {
	return c.Token() != ""
}

// tokenTTL shortens the configured TTL to the token's own expiry when the
// backend token is a JWT. The signature is not checked here; the backend
// remains the authority.
func (c *Context) tokenTTL(token string) time.Duration {
	ttl := c.ttl
	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil || claims.ExpiresAt == nil {
		return ttl
	}
	left := time.Until(claims.ExpiresAt.Time)
	if left <= 0 {
		return time.Second
	}
	if ttl <= 0 || left < ttl {
		return left
	}
	return ttl
}
