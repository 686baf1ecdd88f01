// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/danielhkuo/startup-votes/db"
	"github.com/danielhkuo/startup-votes/models"
)

// DefaultProfile is the session row used by the local page adapter.
const DefaultProfile = "default"

// SQLStore keeps the session in the session table.
type SQLStore struct {
	db      *sql.DB
	dialect string
	profile string
}

func NewSQLStore(conn *sql.DB, dialect string) *SQLStore {
	return &SQLStore{db: conn, dialect: dialect, profile: DefaultProfile}
}

func (s *SQLStore) Load(ctx context.Context) (Session, error) {
	var token, userJSON string
	var savedAt int64
	err := s.db.QueryRowContext(ctx, db.Rebind(s.dialect, `
		SELECT token, user_json, saved_at FROM session WHERE id = ?
	`), s.profile).Scan(&token, &userJSON, &savedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, ErrNoSession
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to query session: %w", err)
	}

	var user models.User
	if err := json.Unmarshal([]byte(userJSON), &user); err != nil {
		return Session{}, fmt.Errorf("failed to decode stored user: %w", err)
	}
	return Session{Token: token, User: user, SavedAt: time.UnixMilli(savedAt)}, nil
}

func (s *SQLStore) Save(ctx context.Context, sess Session) error {
	userJSON, err := json.Marshal(sess.User)
	if err != nil {
		return fmt.Errorf("failed to encode user: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, db.Rebind(s.dialect, `DELETE FROM session WHERE id = ?`), s.profile); err != nil {
		return fmt.Errorf("failed to replace session: %w", err)
	}
	_, err = tx.ExecContext(ctx, db.Rebind(s.dialect, `
		INSERT INTO session (id, token, user_json, saved_at)
		VALUES (?, ?, ?, ?)
	`), s.profile, sess.Token, string(userJSON), sess.SavedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to insert session: %w", err)
	}
	return tx.Commit()
}

func (s *SQLStore) Clear(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, db.Rebind(s.dialect, `DELETE FROM session WHERE id = ?`), s.profile)
	if err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}
