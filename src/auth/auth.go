// Package auth resolves session tokens to users and checks ownership.
// Callers pass the resolved UserID explicitly; nothing here reads ambient
// request state.
package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elee1766/gauntletfuse/src/storage"
)

var (
	// ErrUnauthenticated indicates a missing, unknown or expired token
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrForbidden indicates the user does not own the entity
	ErrForbidden = errors.New("forbidden")
)

// UserID identifies a resolved user.
type UserID string

// Authenticator resolves session tokens against the sessions table.
type Authenticator struct {
	store *storage.Store
	now   func() time.Time
}

// New creates an Authenticator.
func New(store *storage.Store) *Authenticator {
	return &Authenticator{store: store, now: time.Now}
}

// CurrentUser returns the user the token belongs to, or ErrUnauthenticated.
func (a *Authenticator) CurrentUser(ctx context.Context, token string) (UserID, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", ErrUnauthenticated
	}
	sess, err := storage.GetSession(ctx, a.store.Conn(), token)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", ErrUnauthenticated
		}
		return "", fmt.Errorf("failed to look up session: %w", err)
	}
	if !sess.ExpiresAt.After(a.now()) {
		return "", fmt.Errorf("%w: session expired", ErrUnauthenticated)
	}
	return UserID(sess.UserID), nil
}

// IssueToken creates a session for the user valid for ttl.
func (a *Authenticator) IssueToken(ctx context.Context, user UserID, ttl time.Duration) (string, error) {
	if _, err := a.store.Users.Get(ctx, string(user)); err != nil {
		return "", err
	}
	sess := &storage.Session{UserID: string(user), ExpiresAt: a.now().Add(ttl).UTC()}
	if err := storage.CreateSession(ctx, a.store.Conn(), sess); err != nil {
		return "", fmt.Errorf("failed to create session: %w", err)
	}
	return sess.Token, nil
}

// Revoke deletes a session token.
func (a *Authenticator) Revoke(ctx context.Context, token string) error {
	return storage.DeleteSession(ctx, a.store.Conn(), token)
}

// EnsureUser returns the user with the given email, creating it first if
// needed.
func (a *Authenticator) EnsureUser(ctx context.Context, email, name string) (*storage.User, error) {
	u, err := storage.GetUserByEmail(ctx, a.store.Conn(), email)
	if err == nil {
		return u, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	u = &storage.User{Email: email, Name: name}
	if err := a.store.Users.Create(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// RequireOwner returns ErrForbidden unless user owns the entity.
func RequireOwner(user UserID, ownerID string) error {
	if user == "" {
		return ErrUnauthenticated
	}
	if string(user) != ownerID {
		return ErrForbidden
	}
	return nil
}

// CanRead reports whether user may read an entity with the given owner. A
// nil owner marks a shared entity.
func CanRead(user UserID, ownerID *string) bool {
	return ownerID == nil || string(user) == *ownerID
}
