package session

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"
	"github.com/saravenpi/parley/internal/models"
)

// Key names mirror what the web client kept in local storage.
const (
	KeyToken    = "authToken"
	KeyUserID   = "userId"
	KeyUserName = "userName"
)

var ErrNoSession = errors.New("no saved session")

// Store persists the authenticated identity in a small SQLite key/value
// table so a session survives restarts.
type Store struct {
	db *sql.DB
}

// GetDBPath returns the session database path inside dir.
func GetDBPath(dir string) string {
	return filepath.Join(dir, "session.db")
}

func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	db, err := sql.Open("sqlite3", GetDBPath(dir))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	query := `
		CREATE TABLE IF NOT EXISTS kv (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`
	if _, err := db.Exec(query); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create session table: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Save writes token, user id and display name in one transaction.
func (s *Store) Save(token, userID, displayName string) error {
	if token == "" || userID == "" {
		return fmt.Errorf("token and user id are required")
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO kv (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`
	values := [][2]string{
		{KeyToken, token},
		{KeyUserID, userID},
		{KeyUserName, displayName},
	}
	for _, kv := range values {
		if _, err := tx.Exec(query, kv[0], kv[1]); err != nil {
			return fmt.Errorf("failed to save %s: %w", kv[0], err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

// Clear removes the token, user id and display name.
func (s *Store) Clear() error {
	query := `DELETE FROM kv WHERE key IN (?, ?, ?)`
	if _, err := s.db.Exec(query, KeyToken, KeyUserID, KeyUserName); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

func (s *Store) IsAuthenticated() bool {
	token, err := s.get(KeyToken)
	return err == nil && token != ""
}

// Load returns the saved session or ErrNoSession.
func (s *Store) Load() (models.Session, error) {
	rows, err := s.db.Query(`SELECT key, value FROM kv WHERE key IN (?, ?, ?)`, KeyToken, KeyUserID, KeyUserName)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to query session: %w", err)
	}
	defer rows.Close()

	values := make(map[string]string, 3)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return models.Session{}, fmt.Errorf("failed to scan session: %w", err)
		}
		values[key] = value
	}
	if err := rows.Err(); err != nil {
		return models.Session{}, fmt.Errorf("failed to read session: %w", err)
	}

	sess := models.Session{
		Token:       values[KeyToken],
		UserID:      values[KeyUserID],
		DisplayName: values[KeyUserName],
	}
	if !sess.Valid() {
		return models.Session{}, ErrNoSession
	}
	return sess, nil
}

func (s *Store) get(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return value, nil
}
