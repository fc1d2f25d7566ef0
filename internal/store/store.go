// Package store provides PostgreSQL-backed persistence for user, group and
// anonymous-message records. Schema changes ship as embedded migrations and
// are applied at startup.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// User is a registered bot user.
type User struct {
	UserID    int64     `db:"user_id"`
	Username  string    `db:"username"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	CreatedAt time.Time `db:"created_at"`
}

// Store wraps the database handle.
type Store struct {
	db *sqlx.DB
}

// Open connects to Postgres, verifies the connection and applies pending
// migrations.
func Open(dsn string) (*Store, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// runMigrations applies embedded SQL migrations forward.
func runMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("store: migration source: %w", err)
	}
	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("store: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("store: migrate init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("store: migrate up: %w", err)
	}
	return nil
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// NormalizeUsername strips a leading @ and lowercases, so lookups match
// however the user typed the handle.
func NormalizeUsername(username string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(username), "@"))
}

// AddUser inserts a user record, ignoring duplicates (re-running /start
// must not fail). The username is normalized before storage.
func (s *Store) AddUser(ctx context.Context, userID int64, username, firstName, lastName string) error {
	const query = `
		INSERT INTO users (user_id, username, first_name, last_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id) DO UPDATE
		SET username = EXCLUDED.username,
		    first_name = EXCLUDED.first_name,
		    last_name = EXCLUDED.last_name`

	_, err := s.db.ExecContext(ctx, query, userID, NormalizeUsername(username), firstName, lastName)
	if err != nil {
		return fmt.Errorf("store: add user: %w", err)
	}
	return nil
}

// UserExists reports whether the user has started the bot before.
func (s *Store) UserExists(ctx context.Context, userID int64) (bool, error) {
	var exists bool
	err := s.db.GetContext(ctx, &exists,
		`SELECT EXISTS (SELECT 1 FROM users WHERE user_id = $1)`, userID)
	if err != nil {
		return false, fmt.Errorf("store: user exists: %w", err)
	}
	return exists, nil
}

// UserIDByUsername resolves a handle to a user ID. Returns (0, false) when
// the handle is unknown.
func (s *Store) UserIDByUsername(ctx context.Context, username string) (int64, bool, error) {
	var id int64
	err := s.db.GetContext(ctx, &id,
		`SELECT user_id FROM users WHERE username = $1`, NormalizeUsername(username))
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("store: user by username: %w", err)
	}
	return id, true, nil
}

// GetUser fetches a user record. Returns nil when not found.
func (s *Store) GetUser(ctx context.Context, userID int64) (*User, error) {
	var u User
	err := s.db.GetContext(ctx, &u,
		`SELECT user_id, username, first_name, last_name, created_at
		 FROM users WHERE user_id = $1`, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store: get user: %w", err)
	}
	return &u, nil
}

// AddGroup records a group the bot was added to, ignoring duplicates.
func (s *Store) AddGroup(ctx context.Context, groupID int64, title string) error {
	const query = `
		INSERT INTO groups (group_id, title)
		VALUES ($1, $2)
		ON CONFLICT (group_id) DO UPDATE SET title = EXCLUDED.title`

	if _, err := s.db.ExecContext(ctx, query, groupID, title); err != nil {
		return fmt.Errorf("store: add group: %w", err)
	}
	return nil
}

// LinkUserGroup records that a user was seen in a group.
func (s *Store) LinkUserGroup(ctx context.Context, userID, groupID int64) error {
	const query = `
		INSERT INTO user_groups (user_id, group_id)
		VALUES ($1, $2)
		ON CONFLICT DO NOTHING`

	if _, err := s.db.ExecContext(ctx, query, userID, groupID); err != nil {
		return fmt.Errorf("store: link user group: %w", err)
	}
	return nil
}

// RecordAnonMessage persists an audit row for a delivered link-based
// anonymous message (sender and receiver only; used for abuse follow-up).
func (s *Store) RecordAnonMessage(ctx context.Context, senderID, receiverID int64, text string) error {
	const query = `
		INSERT INTO anon_messages (sender_id, receiver_id, message)
		VALUES ($1, $2, $3)`

	if _, err := s.db.ExecContext(ctx, query, senderID, receiverID, text); err != nil {
		return fmt.Errorf("store: record anon message: %w", err)
	}
	return nil
}
