package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/gspace/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/gspace/internal/core/domain"
	"github.com/custodia-labs/gspace/internal/core/ports/driven"
)

// DatabaseName is the file name of the token database.
const DatabaseName = "tokens.db"

// Ensure Store implements the interface.
var _ driven.TokenStore = (*Store)(nil)

// Store persists OAuth2 tokens in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore creates a new SQLite store in the specified data directory.
// If dataDir is empty, defaults to ~/.gspace.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".gspace")
	}

	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseName)

	// WAL mode for concurrent readers while a refresh writes.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db, path: dbPath}

	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// migrate runs all pending migrations, each in its own transaction.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if strings.HasSuffix(entry.Name(), ".up.sql") {
			upFiles = append(upFiles, entry.Name())
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_tokens.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning migration %s: %w", name, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %s: %w", name, err)
		}
	}

	return nil
}

// Save stores or replaces tokens for a user.
func (s *Store) Save(ctx context.Context, userID string, record domain.TokenRecord) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}

	var extra sql.NullString
	if len(record.AdditionalData) > 0 {
		data, err := json.Marshal(record.AdditionalData)
		if err != nil {
			return fmt.Errorf("marshalling additional data: %w", err)
		}
		extra = sql.NullString{String: string(data), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tokens (user_id, access_token, refresh_token, token_type, expires_at, created_at, updated_at, additional_data)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			expires_at = excluded.expires_at,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at,
			additional_data = excluded.additional_data
	`, userID, record.AccessToken, nullString(record.RefreshToken), nullString(record.TokenType),
		formatTime(record.ExpiresAt), formatTime(record.CreatedAt), formatTime(time.Now()), extra)
	if err != nil {
		return fmt.Errorf("saving tokens: %w", err)
	}
	return nil
}

// Load retrieves tokens for a user.
func (s *Store) Load(ctx context.Context, userID string) (*domain.TokenRecord, error) {
	if err := domain.ValidateUserID(userID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, `
		SELECT access_token, refresh_token, token_type, expires_at, created_at, additional_data
		FROM tokens WHERE user_id = ?
	`, userID)

	var (
		record                     domain.TokenRecord
		refreshToken, tokenType    sql.NullString
		expiresAt, createdAt, data sql.NullString
	)
	if err := row.Scan(&record.AccessToken, &refreshToken, &tokenType, &expiresAt, &createdAt, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("tokens for %q: %w", userID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("loading tokens: %w", err)
	}

	record.RefreshToken = refreshToken.String
	record.TokenType = tokenType.String
	var err error
	if record.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, fmt.Errorf("parsing expires_at: %w", err)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if data.Valid && data.String != "" {
		if err := json.Unmarshal([]byte(data.String), &record.AdditionalData); err != nil {
			return nil, fmt.Errorf("parsing additional data: %w", err)
		}
	}
	return &record, nil
}

// Delete removes tokens for a user.
func (s *Store) Delete(ctx context.Context, userID string) error {
	if err := domain.ValidateUserID(userID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE user_id = ?", userID); err != nil {
		return fmt.Errorf("deleting tokens: %w", err)
	}
	return nil
}

// List returns the users with stored tokens, sorted.
func (s *Store) List(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT user_id FROM tokens ORDER BY user_id")
	if err != nil {
		return nil, fmt.Errorf("listing tokens: %w", err)
	}
	defer rows.Close()

	users := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning user id: %w", err)
		}
		users = append(users, id)
	}
	return users, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func parseTime(s sql.NullString) (time.Time, error) {
	if !s.Valid || s.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, s.String)
}
