// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/danielhkuo/startup-votes/models"
)

var (
	ErrNoSession    = errors.New("no stored session")
	ErrTokenExpired = errors.New("session token expired")
	ErrInvalidToken = errors.New("invalid token format")
)

// Session is the stored login: an opaque bearer token plus the user it belongs to.
type Session struct {
	Token   string
	User    models.User
	SavedAt time.Time
}

// Store persists a single session. Load returns ErrNoSession when empty.
type Store interface {
	Load(ctx context.Context) (Session, error)
	Save(ctx context.Context, s Session) error
	Clear(ctx context.Context) error
}

// TokenExpired reports whether token is a JWT whose exp claim is not after now.
// Tokens that are not JWTs carry no expiry and are never considered expired.
func TokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !now.Before(exp.Time)
}

// Manager owns the current session. The stored session is read once and
// cached; Save and Invalidate write through to the store.
type Manager struct {
	store Store
	now   func() time.Time

	mu     sync.Mutex
	loaded bool
	cur    *Session
}

func NewManager(store Store) *Manager {
	return &Manager{store: store, now: time.Now}
}

// Current returns the stored session if its token is still usable.
// An expired session is cleared and reported as ErrTokenExpired.
func (m *Manager) Current(ctx context.Context) (Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.loaded {
		s, err := m.store.Load(ctx)
		switch {
		case errors.Is(err, ErrNoSession):
			m.cur = nil
		case err != nil:
			return Session{}, fmt.Errorf("failed to load session: %w", err)
		default:
			m.cur = &s
		}
		m.loaded = true
	}

	if m.cur == nil {
		return Session{}, ErrNoSession
	}
	if TokenExpired(m.cur.Token, m.now()) {
		slog.Info("stored token expired, clearing session", "user_id", m.cur.User.ID)
		if err := m.store.Clear(ctx); err != nil {
			slog.Warn("failed to clear expired session", "error", err)
		}
		m.cur = nil
		return Session{}, ErrTokenExpired
	}
	return *m.cur, nil
}

// Token returns the bearer token of the current session.
func (m *Manager) Token(ctx context.Context) (string, error) {
	s, err := m.Current(ctx)
	if err != nil {
		return "", err
	}
	return s.Token, nil
}

// Save stores a freshly issued token for user.
func (m *Manager) Save(ctx context.Context, token string, user models.User) (Session, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Session{}, ErrInvalidToken
	}
	if TokenExpired(token, m.now()) {
		return Session{}, ErrTokenExpired
	}

	s := Session{Token: token, User: user, SavedAt: m.now()}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.Save(ctx, s); err != nil {
		return Session{}, fmt.Errorf("failed to save session: %w", err)
	}
	m.cur = &s
	m.loaded = true
	return s, nil
}

// Invalidate discards the session, used on logout and on 401/403 from a backend.
func (m *Manager) Invalidate(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cur = nil
	m.loaded = true
	if err := m.store.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}
