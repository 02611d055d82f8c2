package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

// GetSession retrieves a session by its token
func GetSession(ctx context.Context, db sqlscan.Querier, token string) (*Session, error) {
	query := `SELECT token, user_id, expires_at, created_at FROM sessions WHERE token = ?`
	var s Session
	err := sqlscan.Get(ctx, db, &s, query, token)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "session", ID: "token"}
		}
		return nil, err
	}
	return &s, nil
}

// CreateSession creates a new session in the database. A token is generated
// when the session has none.
func CreateSession(ctx context.Context, db Execer, session *Session) error {
	if session.Token == "" {
		token, err := GenerateToken()
		if err != nil {
			return err
		}
		session.Token = token
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}

	query := `INSERT INTO sessions (token, user_id, expires_at, created_at) VALUES (?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, session.Token, session.UserID, session.ExpiresAt.UTC(), session.CreatedAt)
	if err != nil {
		return classifyConstraint("session", err)
	}
	return nil
}

// DeleteSession removes a session
func DeleteSession(ctx context.Context, db Execer, token string) error {
	_, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE token = ?`, token)
	return err
}

// DeleteExpiredSessions removes every session that expired before now
func DeleteExpiredSessions(ctx context.Context, db Execer, now time.Time) (int64, error) {
	res, err := db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < ?`, now.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// GetUserByEmail finds a user by email address
func GetUserByEmail(ctx context.Context, db sqlscan.Querier, email string) (*User, error) {
	query := `SELECT id, email, name, created_at FROM users WHERE email = ?`
	var u User
	err := sqlscan.Get(ctx, db, &u, query, email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &NotFoundError{Entity: "user", ID: email}
		}
		return nil, err
	}
	return &u, nil
}

// Conn exposes the store's connection for the free functions above.
func (s *Store) Conn() ExecQuerier {
	return s.conn
}
