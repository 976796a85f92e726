package registry

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"normlex/pkg/types"
)

// SQLiteStore persists frameworks in a SQLite database. The framework body
// is stored as a JSON document next to the columns used for lookups.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if necessary initializes) a SQLite-backed store.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_sync=NORMAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS frameworks (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		authority TEXT NOT NULL,
		jurisdiction TEXT NOT NULL,
		effective_date DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		document TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_frameworks_authority ON frameworks(authority);
	CREATE INDEX IF NOT EXISTS idx_frameworks_jurisdiction ON frameworks(jurisdiction);
	CREATE INDEX IF NOT EXISTS idx_frameworks_effective_date ON frameworks(effective_date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Create stores a new framework. Fails if the ID is already taken.
func (s *SQLiteStore) Create(ctx context.Context, framework *types.NormativeFramework) error {
	if err := framework.Validate(); err != nil {
		return err
	}

	document, err := json.Marshal(framework)
	if err != nil {
		return fmt.Errorf("failed to encode framework: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO frameworks (id, title, authority, jurisdiction, effective_date, updated_at, document)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		framework.ID, framework.Title, framework.Authority, string(framework.Jurisdiction),
		framework.EffectiveDate, framework.UpdatedAt, string(document))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrAlreadyExists, framework.ID)
		}
		return fmt.Errorf("failed to insert framework: %w", err)
	}
	return nil
}

// Get returns the framework with the given ID.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*types.NormativeFramework, error) {
	var document string
	err := s.db.QueryRowContext(ctx,
		`SELECT document FROM frameworks WHERE id = ? LIMIT 1`, id).Scan(&document)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to retrieve framework: %w", err)
	}

	var framework types.NormativeFramework
	if err := json.Unmarshal([]byte(document), &framework); err != nil {
		return nil, fmt.Errorf("failed to decode framework %s: %w", id, err)
	}
	return &framework, nil
}

// Update replaces a stored framework. Fails if the ID is unknown.
func (s *SQLiteStore) Update(ctx context.Context, framework *types.NormativeFramework) error {
	if err := framework.Validate(); err != nil {
		return err
	}

	document, err := json.Marshal(framework)
	if err != nil {
		return fmt.Errorf("failed to encode framework: %w", err)
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE frameworks
		SET title = ?, authority = ?, jurisdiction = ?, effective_date = ?, updated_at = ?, document = ?
		WHERE id = ?`,
		framework.Title, framework.Authority, string(framework.Jurisdiction),
		framework.EffectiveDate, framework.UpdatedAt, string(document), framework.ID)
	if err != nil {
		return fmt.Errorf("failed to update framework: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, framework.ID)
	}
	return nil
}

// Delete removes a framework by ID.
func (s *SQLiteStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM frameworks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete framework: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// List returns all frameworks ordered by ID.
func (s *SQLiteStore) List(ctx context.Context) ([]types.NormativeFramework, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT document FROM frameworks ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list frameworks: %w", err)
	}
	defer rows.Close()

	frameworks := make([]types.NormativeFramework, 0)
	for rows.Next() {
		var document string
		if err := rows.Scan(&document); err != nil {
			return nil, fmt.Errorf("failed to scan framework row: %w", err)
		}
		var framework types.NormativeFramework
		if err := json.Unmarshal([]byte(document), &framework); err != nil {
			return nil, fmt.Errorf("failed to decode framework document: %w", err)
		}
		frameworks = append(frameworks, framework)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return frameworks, nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func isUniqueViolation(err error) bool {
	// go-sqlite3 wraps constraint failures in its own error type, but the
	// message check keeps this file free of a direct dependency on the
	// driver's error codes.
	return err != nil && strings.Contains(err.Error(), "constraint failed")
}
